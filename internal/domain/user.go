package domain

import "time"

// User mirrors a profile from the identity provider.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncUserRequest is posted by the frontend once the identity provider has a session.
type SyncUserRequest struct {
	ClerkID  string `json:"clerkId,omitempty"`
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// UserID returns whichever identifier the client sent.
func (r SyncUserRequest) UserID() string {
	if r.ID != "" {
		return r.ID
	}
	return r.ClerkID
}
