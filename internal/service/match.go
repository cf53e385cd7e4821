package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
	"github.com/JeczzuDev/pov-ia-minigame/internal/urlcheck"
)

// MatchService records played rounds and hands anonymous ones over to
// registered users.
type MatchService struct {
	matches   MatchStore
	prompts   PromptStore
	users     UserStore
	evals     EvaluationStore
	standings *LeaderboardService
	events    EventPublisher
	game      *config.GameConfig
	assoc     *config.AssociationConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewMatchService creates a match service. events may be nil.
func NewMatchService(
	store Store,
	standings *LeaderboardService,
	events EventPublisher,
	game *config.GameConfig,
	assoc *config.AssociationConfig,
	logger *slog.Logger,
) *MatchService {
	if events == nil {
		events = nopPublisher{}
	}
	return &MatchService{
		matches:   store,
		prompts:   store,
		users:     store,
		evals:     store,
		standings: standings,
		events:    events,
		game:      game,
		assoc:     assoc,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateMatch validates the submission and stores the match with its
// resources. An empty userID creates an anonymous match.
func (s *MatchService) CreateMatch(ctx context.Context, userID string, req domain.CreateMatchRequest) (*domain.Match, error) {
	if strings.TrimSpace(req.PromptID) == "" {
		return nil, fmt.Errorf("%w: promptId is required", domain.ErrInvalidRequest)
	}

	urls, err := s.validateResources(req.Resources)
	if err != nil {
		return nil, err
	}

	if _, err := s.prompts.GetPrompt(ctx, req.PromptID); err != nil {
		return nil, err
	}

	now := s.now()
	elapsed := s.elapsedSeconds(req, now)

	nm := domain.NewMatch{
		PromptID:    req.PromptID,
		IsAnonymous: userID == "",
		TimeElapsed: elapsed,
		StartedAt:   now.Add(-time.Duration(elapsed) * time.Second),
		CompletedAt: req.CompletedAt,
		URLs:        urls,
	}
	if nm.CompletedAt == nil {
		nm.CompletedAt = &now
	}
	if userID != "" {
		nm.UserID = &userID
	}

	match, _, err := s.matches.CreateMatch(ctx, nm)
	if err != nil {
		if errors.Is(err, domain.ErrPromptAlreadyCompleted) {
			return nil, err
		}
		return nil, fmt.Errorf("creating match: %w", err)
	}

	s.logger.Info("match created",
		"match_id", match.ID,
		"prompt_id", match.PromptID,
		"anonymous", match.IsAnonymous,
		"resources", len(urls),
	)

	event := domain.MatchEvent{
		MatchID:   match.ID,
		EventType: domain.EventMatchSubmitted,
		Timestamp: now,
	}
	if err := s.events.PublishMatchEvent(ctx, event); err != nil {
		// The client still calls /evaluate; the queue only speeds it up.
		s.logger.Warn("failed to publish match event", "match_id", match.ID, "error", err)
	}

	return match, nil
}

func (s *MatchService) validateResources(resources []string) ([]string, error) {
	urls := urlcheck.Clean(resources)
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: at least one resource is required", domain.ErrInvalidRequest)
	}
	if len(urls) > s.game.MaxResources {
		return nil, fmt.Errorf("%w: %d submitted, at most %d allowed", domain.ErrTooManyResources, len(urls), s.game.MaxResources)
	}
	for _, u := range urls {
		if !urlcheck.IsValid(u) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidResource, u)
		}
	}
	if urlcheck.HasDuplicates(urls) {
		return nil, domain.ErrDuplicateResource
	}
	return urls, nil
}

// elapsedSeconds prefers the client's reported count, falls back to the
// start timestamp, and clamps to the round length.
func (s *MatchService) elapsedSeconds(req domain.CreateMatchRequest, now time.Time) int {
	elapsed := req.TimeElapsed
	if elapsed <= 0 && req.StartTime != nil {
		elapsed = int(now.Sub(time.UnixMilli(*req.StartTime)).Seconds())
	}

	limit := int(s.game.Duration.Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > limit {
		elapsed = limit
	}
	return elapsed
}

// AssociateMatch gives an anonymous match to userID. The user row is polled
// for a short while because the profile sync can still be in flight.
func (s *MatchService) AssociateMatch(ctx context.Context, matchID, userID string) (*domain.Match, error) {
	if matchID == "" || userID == "" {
		return nil, fmt.Errorf("%w: matchId and associateUserId are required", domain.ErrInvalidRequest)
	}

	if err := s.waitForUser(ctx, userID); err != nil {
		return nil, err
	}

	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.OwnedBy(userID) {
		return match, nil
	}
	if match.UserID != nil {
		return nil, domain.ErrMatchAlreadyOwned
	}

	taken, err := s.matches.HasMatchForPrompt(ctx, userID, match.PromptID, match.ID)
	if err != nil {
		return nil, fmt.Errorf("checking prompt history: %w", err)
	}
	if taken {
		return nil, domain.ErrPromptAlreadyCompleted
	}

	if err := s.matches.AssignMatchOwner(ctx, match.ID, userID); err != nil {
		if errors.Is(err, domain.ErrPromptAlreadyCompleted) || errors.Is(err, domain.ErrMatchAlreadyOwned) {
			return nil, err
		}
		return nil, fmt.Errorf("assigning match owner: %w", err)
	}

	match.UserID = &userID
	match.IsAnonymous = false

	s.logger.Info("match associated", "match_id", match.ID, "user_id", userID)
	if s.standings != nil {
		s.standings.Invalidate(ctx)
	}
	return match, nil
}

func (s *MatchService) waitForUser(ctx context.Context, userID string) error {
	attempts := s.assoc.Attempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		_, err := s.users.GetUser(ctx, userID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return fmt.Errorf("looking up user: %w", err)
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.assoc.Interval):
		}
	}
	return domain.ErrUserNotFound
}

// GetMatch returns a match with its evaluations. Owned matches are private
// to their owner; anonymous ones are readable by anyone holding the id.
func (s *MatchService) GetMatch(ctx context.Context, matchID, requesterID string) (*domain.MatchDetail, error) {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match.UserID != nil && !match.OwnedBy(requesterID) {
		return nil, domain.ErrForbidden
	}

	evals, err := s.evals.ListEvaluations(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("listing evaluations: %w", err)
	}

	detail := &domain.MatchDetail{
		Match:       *match,
		Evaluations: evals,
		Total:       match.TotalScore(),
	}

	prompt, err := s.prompts.GetPrompt(ctx, match.PromptID)
	switch {
	case err == nil:
		detail.Prompt = prompt
	case errors.Is(err, domain.ErrPromptNotFound):
	default:
		return nil, fmt.Errorf("loading prompt: %w", err)
	}

	return detail, nil
}

// History lists the user's matches, newest first.
func (s *MatchService) History(ctx context.Context, userID string) ([]domain.MatchHistoryEntry, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	entries, err := s.matches.ListUserMatches(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user matches: %w", err)
	}
	return entries, nil
}
