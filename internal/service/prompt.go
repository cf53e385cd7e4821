package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// PromptService chooses which challenge a player gets next.
type PromptService struct {
	prompts  PromptStore
	maxLevel int
	pick     func(n int) int
	logger   *slog.Logger
}

func NewPromptService(prompts PromptStore, cfg *config.GameConfig, logger *slog.Logger) *PromptService {
	return &PromptService{
		prompts:  prompts,
		maxLevel: cfg.MaxLevel,
		pick:     rand.Intn,
		logger:   logger,
	}
}

// NextPrompt advances the user one level past their most recent match and
// returns a random unplayed prompt, trying the following levels (wrapping)
// when a level is exhausted. Anonymous players start at level 1.
func (s *PromptService) NextPrompt(ctx context.Context, userID string) (*domain.NextPrompt, error) {
	var played []domain.PlayedPrompt
	if userID != "" {
		var err error
		played, err = s.prompts.PlayedPrompts(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("listing played prompts: %w", err)
		}
	}

	level := 1
	if len(played) > 0 && played[0].Level > 0 {
		level = s.following(played[0].Level)
	}

	exclude := make([]string, 0, len(played))
	for _, p := range played {
		exclude = append(exclude, p.PromptID)
	}

	for tried := 0; tried < s.maxLevel; tried++ {
		candidates, err := s.prompts.ListPromptsByLevel(ctx, level, exclude)
		if err != nil {
			return nil, fmt.Errorf("listing prompts for level %d: %w", level, err)
		}
		if len(candidates) > 0 {
			p := candidates[s.pick(len(candidates))]
			return &domain.NextPrompt{Prompt: &p}, nil
		}
		level = s.following(level)
	}

	total, err := s.prompts.CountPrompts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting prompts: %w", err)
	}
	if len(played) >= total {
		return &domain.NextPrompt{Done: true, Message: "All challenges completed"}, nil
	}

	s.logger.Warn("no prompt available", "user_id", userID, "played", len(played), "total", total)
	return nil, domain.ErrNoPromptAvailable
}

func (s *PromptService) following(level int) int {
	return level%s.maxLevel + 1
}
