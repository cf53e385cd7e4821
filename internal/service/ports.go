package service

import (
	"context"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// UserStore persists profiles mirrored from the identity provider.
type UserStore interface {
	UpsertUser(ctx context.Context, user domain.User) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

// PromptStore reads the challenge catalogue.
type PromptStore interface {
	GetPrompt(ctx context.Context, promptID string) (*domain.Prompt, error)
	// ListPromptsByLevel returns prompts at level whose ids are not in exclude.
	ListPromptsByLevel(ctx context.Context, level int, exclude []string) ([]domain.Prompt, error)
	CountPrompts(ctx context.Context) (int, error)
	// PlayedPrompts lists the user's matches, most recently completed first.
	PlayedPrompts(ctx context.Context, userID string) ([]domain.PlayedPrompt, error)
}

// MatchStore persists matches and their submitted resources.
type MatchStore interface {
	// CreateMatch inserts the match and its resources atomically. It returns
	// domain.ErrPromptAlreadyCompleted when the user already has a match for
	// the prompt.
	CreateMatch(ctx context.Context, m domain.NewMatch) (*domain.Match, []domain.SubmittedResource, error)
	GetMatch(ctx context.Context, matchID string) (*domain.Match, error)
	// AssignMatchOwner makes the match non-anonymous and owned by userID.
	AssignMatchOwner(ctx context.Context, matchID, userID string) error
	HasMatchForPrompt(ctx context.Context, userID, promptID, excludeMatchID string) (bool, error)
	ListResources(ctx context.Context, matchID string) ([]domain.SubmittedResource, error)
	ListUserMatches(ctx context.Context, userID string) ([]domain.MatchHistoryEntry, error)
	// ListUnevaluatedMatches returns ids of matches with resources but no evaluations.
	ListUnevaluatedMatches(ctx context.Context, limit int) ([]string, error)
}

// EvaluationStore persists model judgments and the model selection.
type EvaluationStore interface {
	ListEvaluations(ctx context.Context, matchID string) ([]domain.EvaluationResult, error)
	// SaveEvaluation stores evals and the match scores in one transaction.
	// It reports false without writing when the match was already evaluated.
	SaveEvaluation(ctx context.Context, matchID string, evals []domain.Evaluation, base, bonus int) (bool, error)
	// GetConfigValue returns "" for a missing key.
	GetConfigValue(ctx context.Context, key string) (string, error)
	GetAIModel(ctx context.Context, modelID string) (*domain.AIModel, error)
}

// StandingsStore reads scored matches for leaderboard aggregation.
type StandingsStore interface {
	// ListStandingRows returns every match owned by a registered user, plus
	// the match named by includeMatchID when non-empty.
	ListStandingRows(ctx context.Context, includeMatchID string) ([]domain.StandingRow, error)
}

// Store is everything a backend must provide.
type Store interface {
	UserStore
	PromptStore
	MatchStore
	EvaluationStore
	StandingsStore
}

// StandingsCache holds the ranked global standings. Every invalidation bumps
// a generation; a rebuild started under an older generation is not cached.
type StandingsCache interface {
	StandingsGeneration(ctx context.Context) (int64, error)
	// ReplaceStandings returns domain.ErrStaleStandings when generation is
	// no longer current.
	ReplaceStandings(ctx context.Context, generation int64, entries []domain.LeaderboardEntry) error
	// TopStandings returns domain.ErrCacheMiss when nothing is cached.
	TopStandings(ctx context.Context, n int) ([]domain.LeaderboardEntry, int64, error)
	StandingOf(ctx context.Context, userID string) (*domain.LeaderboardEntry, error)
	InvalidateStandings(ctx context.Context) error
}

// EvaluationLocker serializes evaluation of a match across instances.
type EvaluationLocker interface {
	AcquireEvaluation(ctx context.Context, matchID string) (token string, ok bool, err error)
	ReleaseEvaluation(ctx context.Context, matchID, token string) error
}

// Completer sends a prompt to a generative model and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, model domain.AIModel, prompt string) (string, error)
}

// EventPublisher announces match lifecycle events.
type EventPublisher interface {
	PublishMatchEvent(ctx context.Context, event domain.MatchEvent) error
}

// Broadcaster pushes messages to live subscribers of a topic.
type Broadcaster interface {
	Broadcast(topic, msgType string, payload interface{})
}

type nopCache struct{}

func (nopCache) StandingsGeneration(context.Context) (int64, error) { return 0, nil }
func (nopCache) ReplaceStandings(context.Context, int64, []domain.LeaderboardEntry) error {
	return nil
}
func (nopCache) TopStandings(context.Context, int) ([]domain.LeaderboardEntry, int64, error) {
	return nil, 0, domain.ErrCacheMiss
}
func (nopCache) StandingOf(context.Context, string) (*domain.LeaderboardEntry, error) {
	return nil, domain.ErrCacheMiss
}
func (nopCache) InvalidateStandings(context.Context) error { return nil }

type nopLocker struct{}

func (nopLocker) AcquireEvaluation(context.Context, string) (string, bool, error) { return "", true, nil }
func (nopLocker) ReleaseEvaluation(context.Context, string, string) error { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishMatchEvent(context.Context, domain.MatchEvent) error { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, string, interface{}) {}
