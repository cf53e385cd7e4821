package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
	"github.com/JeczzuDev/pov-ia-minigame/internal/scoring"
)

// EvaluationService scores a match's resources with the configured model.
// A match is evaluated at most once; later calls return the stored result.
type EvaluationService struct {
	matches   MatchStore
	prompts   PromptStore
	evals     EvaluationStore
	completer Completer
	locker    EvaluationLocker
	standings *LeaderboardService
	hub       Broadcaster
	topN      int
	timeout   time.Duration
	group     singleflight.Group
	logger    *slog.Logger
	now       func() time.Time
}

// NewEvaluationService creates an evaluation service. locker and hub may be
// nil. timeout bounds one shared evaluation; zero means no bound.
func NewEvaluationService(
	store Store,
	completer Completer,
	locker EvaluationLocker,
	standings *LeaderboardService,
	hub Broadcaster,
	topN int,
	timeout time.Duration,
	logger *slog.Logger,
) *EvaluationService {
	if locker == nil {
		locker = nopLocker{}
	}
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &EvaluationService{
		matches:   store,
		prompts:   store,
		evals:     store,
		completer: completer,
		locker:    locker,
		standings: standings,
		hub:       hub,
		topN:      topN,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
	}
}

// Evaluate scores the match. Concurrent calls for the same match in this
// process share one evaluation; a call racing another instance gets
// domain.ErrEvaluationInProgress.
//
// The shared evaluation is detached from every caller's context, so a caller
// that gives up returns ctx.Err() without cancelling the others.
func (s *EvaluationService) Evaluate(ctx context.Context, matchID string) (*domain.MatchEvaluation, error) {
	if matchID == "" {
		return nil, fmt.Errorf("%w: matchId is required", domain.ErrInvalidRequest)
	}

	ch := s.group.DoChan(matchID, func() (interface{}, error) {
		work := context.WithoutCancel(ctx)
		if s.timeout > 0 {
			var cancel context.CancelFunc
			work, cancel = context.WithTimeout(work, s.timeout)
			defer cancel()
		}
		return s.evaluate(work, matchID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.MatchEvaluation), nil
	}
}

func (s *EvaluationService) evaluate(ctx context.Context, matchID string) (*domain.MatchEvaluation, error) {
	match, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if stored, ok, err := s.stored(ctx, match); err != nil || ok {
		return stored, err
	}

	token, acquired, err := s.locker.AcquireEvaluation(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("acquiring evaluation lock: %w", err)
	}
	if !acquired {
		return nil, domain.ErrEvaluationInProgress
	}
	defer func() {
		if err := s.locker.ReleaseEvaluation(context.WithoutCancel(ctx), matchID, token); err != nil {
			s.logger.Warn("failed to release evaluation lock", "match_id", matchID, "error", err)
		}
	}()

	resources, err := s.matches.ListResources(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}

	if len(resources) == 0 {
		return s.save(ctx, match, nil, nil)
	}

	var (
		prompt *domain.Prompt
		model  *domain.AIModel
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		prompt, err = s.prompts.GetPrompt(gctx, match.PromptID)
		return err
	})
	g.Go(func() error {
		var err error
		model, err = s.resolveModel(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	started := s.now()
	reply, err := s.completer.Complete(ctx, *model, BuildScoringPrompt(prompt.Description, resources))
	if err != nil {
		return nil, fmt.Errorf("evaluating match %s with %s: %w", matchID, model.ID, err)
	}

	ids := make([]string, len(resources))
	for i, r := range resources {
		ids[i] = r.ID
	}
	verdicts, err := ParseVerdicts(reply, ids)
	if err != nil {
		s.logger.Warn("model reply rejected", "match_id", matchID, "model_id", model.ID, "error", err)
		return nil, err
	}

	s.logger.Info("model evaluation received",
		"match_id", matchID,
		"model_id", model.ID,
		"duration", s.now().Sub(started),
	)

	evals := make([]domain.Evaluation, 0, len(resources))
	for _, r := range resources {
		v := verdicts[r.ID]
		evals = append(evals, domain.Evaluation{
			ID:          uuid.NewString(),
			MatchID:     matchID,
			ResourceID:  r.ID,
			ModelID:     model.ID,
			Score:       v.Score,
			Explanation: v.Explanation,
			CreatedAt:   started,
		})
	}
	return s.save(ctx, match, resources, evals)
}

// stored returns the persisted result when the match was already evaluated.
func (s *EvaluationService) stored(ctx context.Context, match *domain.Match) (*domain.MatchEvaluation, bool, error) {
	results, err := s.evals.ListEvaluations(ctx, match.ID)
	if err != nil {
		return nil, false, fmt.Errorf("listing evaluations: %w", err)
	}
	if len(results) == 0 && match.EvaluatedAt == nil {
		return nil, false, nil
	}
	return &domain.MatchEvaluation{
		MatchID:     match.ID,
		Total:       match.TotalScore(),
		BaseScore:   match.BaseScore,
		TimeBonus:   match.TimeBonus,
		TimeElapsed: match.TimeElapsed,
		Evaluations: results,
	}, true, nil
}

func (s *EvaluationService) save(
	ctx context.Context,
	match *domain.Match,
	resources []domain.SubmittedResource,
	evals []domain.Evaluation,
) (*domain.MatchEvaluation, error) {
	scores := make([]int, len(evals))
	for i, e := range evals {
		scores[i] = e.Score
	}
	result := scoring.Compute(scores, match.TimeElapsed)

	saved, err := s.evals.SaveEvaluation(ctx, match.ID, evals, result.Base, result.Bonus)
	if err != nil {
		return nil, fmt.Errorf("saving evaluation: %w", err)
	}
	if !saved {
		// Another writer finished first.
		current, err := s.matches.GetMatch(ctx, match.ID)
		if err != nil {
			return nil, err
		}
		stored, _, err := s.stored(ctx, current)
		return stored, err
	}

	urls := make(map[string]string, len(resources))
	for _, r := range resources {
		urls[r.ID] = r.URL
	}
	out := &domain.MatchEvaluation{
		MatchID:     match.ID,
		Total:       result.Total,
		BaseScore:   result.Base,
		TimeBonus:   result.Bonus,
		TimeElapsed: match.TimeElapsed,
		Evaluations: make([]domain.EvaluationResult, 0, len(evals)),
	}
	if len(evals) == 0 {
		out.Message = "No resources submitted"
	}
	for _, e := range evals {
		out.Evaluations = append(out.Evaluations, domain.EvaluationResult{
			ID:          e.ID,
			ResourceID:  e.ResourceID,
			URL:         urls[e.ResourceID],
			Score:       e.Score,
			Explanation: e.Explanation,
		})
	}

	s.logger.Info("match evaluated", "match_id", match.ID, "base", result.Base, "bonus", result.Bonus)

	s.hub.Broadcast(domain.MatchTopic(match.ID), domain.MsgMatchEvaluated, out)
	if s.standings != nil && !match.IsAnonymous && match.UserID != nil {
		s.standings.Invalidate(ctx)
		if err := s.standings.Publish(ctx, s.topN); err != nil {
			s.logger.Warn("failed to publish standings", "error", err)
		}
	}
	return out, nil
}

// resolveModel picks the community winner model, falling back to the default.
func (s *EvaluationService) resolveModel(ctx context.Context) (*domain.AIModel, error) {
	var modelID string
	for _, key := range []string{domain.ConfigCommunityWinnerModel, domain.ConfigDefaultAIModel} {
		v, err := s.evals.GetConfigValue(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		if v != "" {
			modelID = v
			break
		}
	}
	if modelID == "" {
		return nil, domain.ErrModelNotConfigured
	}

	model, err := s.evals.GetAIModel(ctx, modelID)
	if err != nil {
		if errors.Is(err, domain.ErrModelNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("loading model %s: %w", modelID, err)
	}
	return model, nil
}

// Backlog lists matches still waiting for an evaluation.
func (s *EvaluationService) Backlog(ctx context.Context, limit int) ([]string, error) {
	return s.matches.ListUnevaluatedMatches(ctx, limit)
}
