package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// UserService mirrors identity provider profiles into the store.
type UserService struct {
	users  UserStore
	logger *slog.Logger
}

func NewUserService(users UserStore, logger *slog.Logger) *UserService {
	return &UserService{users: users, logger: logger}
}

// SyncUser creates the user on first sight and refreshes the profile after.
func (s *UserService) SyncUser(ctx context.Context, req domain.SyncUserRequest) (*domain.User, error) {
	id := strings.TrimSpace(req.UserID())
	if id == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidRequest)
	}

	username := strings.TrimSpace(req.Username)
	if username == "" {
		username = id
	}

	user, err := s.users.UpsertUser(ctx, domain.User{
		ID:       id,
		Username: username,
		Email:    strings.TrimSpace(req.Email),
	})
	if err != nil {
		return nil, fmt.Errorf("upserting user: %w", err)
	}

	s.logger.Debug("user synced", "user_id", id)
	return user, nil
}
