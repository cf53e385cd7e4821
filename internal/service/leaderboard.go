package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
	"github.com/JeczzuDev/pov-ia-minigame/internal/scoring"
)

// LeaderboardService provides business logic for leaderboard operations
type LeaderboardService struct {
	store  StandingsStore
	cache  StandingsCache
	hub    Broadcaster
	config *config.LeaderboardConfig
	logger *slog.Logger
}

// NewLeaderboardService creates a new leaderboard service. cache and hub may
// be nil.
func NewLeaderboardService(
	store StandingsStore,
	cache StandingsCache,
	hub Broadcaster,
	cfg *config.LeaderboardConfig,
	logger *slog.Logger,
) *LeaderboardService {
	if cache == nil {
		cache = nopCache{}
	}
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &LeaderboardService{
		store:  store,
		cache:  cache,
		hub:    hub,
		config: cfg,
		logger: logger,
	}
}

func (s *LeaderboardService) clampLimit(n int) int {
	if n <= 0 {
		n = s.config.DefaultLimit
	}
	if n > s.config.MaxLimit {
		n = s.config.MaxLimit
	}
	return n
}

// GetLeaderboard returns the top entries. When includeMatchID names an
// anonymous match it is ranked alongside the registered players, which
// bypasses the cache.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, includeMatchID string, limit int) (*domain.Leaderboard, error) {
	limit = s.clampLimit(limit)

	if includeMatchID != "" {
		rows, err := s.store.ListStandingRows(ctx, includeMatchID)
		if err != nil {
			return nil, fmt.Errorf("listing standing rows: %w", err)
		}
		entries := scoring.Aggregate(rows, includeMatchID)
		return &domain.Leaderboard{
			Entries:      scoring.Rank(entries, limit),
			TotalPlayers: int64(len(entries)),
		}, nil
	}

	entries, total, err := s.cache.TopStandings(ctx, limit)
	if err == nil {
		return &domain.Leaderboard{Entries: entries, TotalPlayers: total}, nil
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("failed to read cached standings", "error", err)
	}

	all, err := s.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	return &domain.Leaderboard{Entries: top(all, limit), TotalPlayers: int64(len(all))}, nil
}

// GetUserStanding returns a registered user's rank and cumulative score.
func (s *LeaderboardService) GetUserStanding(ctx context.Context, userID string) (*domain.LeaderboardEntry, error) {
	entry, err := s.cache.StandingOf(ctx, userID)
	if err == nil {
		return entry, nil
	}
	if errors.Is(err, domain.ErrPlayerNotFound) {
		return nil, err
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		s.logger.Warn("failed to read cached standing", "user_id", userID, "error", err)
	}

	all, err := s.Rebuild(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].UserID == userID {
			return &all[i], nil
		}
	}
	return nil, domain.ErrPlayerNotFound
}

// Rebuild recomputes the global standings from the store and replaces the
// cached copy, unless the standings were invalidated while it was reading.
func (s *LeaderboardService) Rebuild(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	// read the generation before the rows
	gen, genErr := s.cache.StandingsGeneration(ctx)

	rows, err := s.store.ListStandingRows(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("listing standing rows: %w", err)
	}
	ranked := scoring.Rank(scoring.Aggregate(rows, ""), 0)

	if genErr != nil {
		s.logger.Warn("failed to read standings generation", "error", genErr)
		return ranked, nil
	}
	switch err := s.cache.ReplaceStandings(ctx, gen, ranked); {
	case err == nil:
	case errors.Is(err, domain.ErrStaleStandings):
		s.logger.Debug("standings changed during rebuild, not caching", "generation", gen)
	default:
		s.logger.Warn("failed to cache standings", "error", err)
	}
	return ranked, nil
}

// Invalidate drops the cached standings so the next read rebuilds them.
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if err := s.cache.InvalidateStandings(ctx); err != nil {
		s.logger.Warn("failed to invalidate standings", "error", err)
	}
}

// Publish rebuilds the standings and pushes the top n to live subscribers.
func (s *LeaderboardService) Publish(ctx context.Context, n int) error {
	all, err := s.Rebuild(ctx)
	if err != nil {
		return err
	}
	s.hub.Broadcast(domain.TopicLeaderboard, domain.MsgLeaderboardUpdate, domain.Leaderboard{
		Entries:      top(all, s.clampLimit(n)),
		TotalPlayers: int64(len(all)),
	})
	return nil
}

func top(entries []domain.LeaderboardEntry, n int) []domain.LeaderboardEntry {
	if n > 0 && len(entries) > n {
		return entries[:n]
	}
	return entries
}
