package domain

import "time"

// Match is one play-through of a prompt.
type Match struct {
	ID          string     `json:"id"`
	UserID      *string    `json:"user_id"`
	PromptID    string     `json:"prompt_id"`
	IsAnonymous bool       `json:"is_anonymous"`
	TimeElapsed int        `json:"time_elapsed"`
	BaseScore   int        `json:"score_ai"`
	TimeBonus   int        `json:"time_bonus"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	EvaluatedAt *time.Time `json:"evaluated_at,omitempty"`
}

// TotalScore is the match's contribution to the leaderboard.
func (m Match) TotalScore() int {
	return m.BaseScore + m.TimeBonus
}

// OwnedBy reports whether the match belongs to userID.
func (m Match) OwnedBy(userID string) bool {
	return m.UserID != nil && *m.UserID == userID
}

// SubmittedResource is a URL submitted against a match.
type SubmittedResource struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateMatchRequest is the body of POST /matches. When AssociateUserID and
// MatchID are set the request reassigns an anonymous match instead.
type CreateMatchRequest struct {
	PromptID        string     `json:"promptId"`
	Resources       []string   `json:"resources"`
	TimeElapsed     int        `json:"timeElapsed"`
	StartTime       *int64     `json:"startTime,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	MatchID         string     `json:"matchId,omitempty"`
	AssociateUserID string     `json:"associateUserId,omitempty"`
}

// IsAssociation reports whether the request asks to claim an anonymous match.
func (r CreateMatchRequest) IsAssociation() bool {
	return r.AssociateUserID != "" && r.MatchID != ""
}

// NewMatch carries everything needed to insert a match and its resources.
type NewMatch struct {
	UserID      *string
	PromptID    string
	IsAnonymous bool
	TimeElapsed int
	StartedAt   time.Time
	CompletedAt *time.Time
	URLs        []string
}

// MatchDetail is a match with its evaluations, as shown on the result page.
type MatchDetail struct {
	Match       Match              `json:"match"`
	Prompt      *Prompt            `json:"prompt,omitempty"`
	Evaluations []EvaluationResult `json:"evaluations"`
	Total       int                `json:"total"`
}

// MatchHistoryEntry is a row of a user's dashboard history.
type MatchHistoryEntry struct {
	ID          string     `json:"id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	BaseScore   int        `json:"score_ai"`
	TimeElapsed int        `json:"time_elapsed"`
	TimeBonus   int        `json:"time_bonus"`
	PromptTitle string     `json:"prompt_title"`
	PromptLevel int        `json:"prompt_level"`
}
