package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

const matchColumns = `id::text, user_id, prompt_id::text, is_anonymous, time_elapsed,
	score_ai, time_bonus, started_at, completed_at, evaluated_at`

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var m domain.Match
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.PromptID,
		&m.IsAnonymous,
		&m.TimeElapsed,
		&m.BaseScore,
		&m.TimeBonus,
		&m.StartedAt,
		&m.CompletedAt,
		&m.EvaluatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMatch inserts the match and its resources in one transaction.
func (r *Repository) CreateMatch(ctx context.Context, nm domain.NewMatch) (*domain.Match, []domain.SubmittedResource, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO matches (id, user_id, prompt_id, is_anonymous, time_elapsed, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + matchColumns
	m, err := scanMatch(tx.QueryRow(ctx, query,
		uuid.NewString(),
		nm.UserID,
		nm.PromptID,
		nm.IsAnonymous,
		nm.TimeElapsed,
		nm.StartedAt,
		nm.CompletedAt,
	))
	if err != nil {
		if _, ok := isPgError(err, codeUniqueViolation); ok {
			return nil, nil, domain.ErrPromptAlreadyCompleted
		}
		if pgErr, ok := isPgError(err, codeForeignKeyViolation); ok {
			if pgErr.ConstraintName == "matches_user_id_fkey" {
				return nil, nil, domain.ErrUserNotFound
			}
			return nil, nil, domain.ErrPromptNotFound
		}
		return nil, nil, fmt.Errorf("inserting match: %w", err)
	}

	now := time.Now().UTC()
	resources := make([]domain.SubmittedResource, 0, len(nm.URLs))
	batch := &pgx.Batch{}
	for _, u := range nm.URLs {
		res := domain.SubmittedResource{
			ID:        uuid.NewString(),
			MatchID:   m.ID,
			URL:       u,
			CreatedAt: now,
		}
		resources = append(resources, res)
		batch.Queue(`INSERT INTO submitted_resources (id, match_id, url, created_at) VALUES ($1, $2, $3, $4)`,
			res.ID, res.MatchID, res.URL, res.CreatedAt)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, nil, fmt.Errorf("inserting resources: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("committing match: %w", err)
	}
	return m, resources, nil
}

func (r *Repository) GetMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	if _, err := uuid.Parse(matchID); err != nil {
		return nil, domain.ErrMatchNotFound
	}

	m, err := scanMatch(r.pool.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMatchNotFound
		}
		return nil, fmt.Errorf("getting match: %w", err)
	}
	return m, nil
}

// AssignMatchOwner claims an anonymous match for userID. The partial unique
// index on (user_id, prompt_id) rejects a second match for the same prompt.
func (r *Repository) AssignMatchOwner(ctx context.Context, matchID, userID string) error {
	query := `
		UPDATE matches SET user_id = $2, is_anonymous = false
		WHERE id = $1 AND (user_id IS NULL OR user_id = $2)
	`
	result, err := r.pool.Exec(ctx, query, matchID, userID)
	if err != nil {
		if _, ok := isPgError(err, codeUniqueViolation); ok {
			return domain.ErrPromptAlreadyCompleted
		}
		if _, ok := isPgError(err, codeForeignKeyViolation); ok {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("assigning match owner: %w", err)
	}
	if result.RowsAffected() == 0 {
		if _, err := r.GetMatch(ctx, matchID); err != nil {
			return err
		}
		return domain.ErrMatchAlreadyOwned
	}
	return nil
}

func (r *Repository) HasMatchForPrompt(ctx context.Context, userID, promptID, excludeMatchID string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM matches
			WHERE user_id = $1 AND prompt_id::text = $2 AND id::text <> $3
		)
	`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, promptID, excludeMatchID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking prompt completion: %w", err)
	}
	return exists, nil
}

func (r *Repository) ListResources(ctx context.Context, matchID string) ([]domain.SubmittedResource, error) {
	query := `
		SELECT id::text, match_id::text, url, created_at
		FROM submitted_resources
		WHERE match_id::text = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("listing resources: %w", err)
	}
	defer rows.Close()

	var out []domain.SubmittedResource
	for rows.Next() {
		var res domain.SubmittedResource
		if err := rows.Scan(&res.ID, &res.MatchID, &res.URL, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning resource: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// ListUserMatches returns the user's history, newest first.
func (r *Repository) ListUserMatches(ctx context.Context, userID string) ([]domain.MatchHistoryEntry, error) {
	query := `
		SELECT m.id::text, m.started_at, m.completed_at, m.score_ai, m.time_elapsed, m.time_bonus,
			   p.title, p.level
		FROM matches m
		JOIN prompts p ON p.id = m.prompt_id
		WHERE m.user_id = $1
		ORDER BY m.started_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user matches: %w", err)
	}
	defer rows.Close()

	var out []domain.MatchHistoryEntry
	for rows.Next() {
		var e domain.MatchHistoryEntry
		err := rows.Scan(
			&e.ID,
			&e.StartedAt,
			&e.CompletedAt,
			&e.BaseScore,
			&e.TimeElapsed,
			&e.TimeBonus,
			&e.PromptTitle,
			&e.PromptLevel,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning match history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListUnevaluatedMatches returns up to limit matches that have resources but
// no evaluations, oldest first. limit <= 0 means no limit.
func (r *Repository) ListUnevaluatedMatches(ctx context.Context, limit int) ([]string, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	query := `
		SELECT m.id::text
		FROM matches m
		WHERE m.evaluated_at IS NULL
		  AND EXISTS (SELECT 1 FROM submitted_resources r WHERE r.match_id = m.id)
		  AND NOT EXISTS (SELECT 1 FROM ai_evaluations e WHERE e.match_id = m.id)
		ORDER BY m.started_at
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, lim)
	if err != nil {
		return nil, fmt.Errorf("listing unevaluated matches: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning match id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) ListEvaluations(ctx context.Context, matchID string) ([]domain.EvaluationResult, error) {
	query := `
		SELECT e.id::text, e.resource_id::text, r.url, e.score, e.explanation
		FROM ai_evaluations e
		JOIN submitted_resources r ON r.id = e.resource_id
		WHERE e.match_id::text = $1
		ORDER BY r.created_at, r.id
	`
	rows, err := r.pool.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("listing evaluations: %w", err)
	}
	defer rows.Close()

	out := []domain.EvaluationResult{}
	for rows.Next() {
		var e domain.EvaluationResult
		if err := rows.Scan(&e.ID, &e.ResourceID, &e.URL, &e.Score, &e.Explanation); err != nil {
			return nil, fmt.Errorf("scanning evaluation: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveEvaluation writes evals and the match scores atomically. The match row
// is locked first, so a concurrent save sees the evaluated_at it set and
// reports false.
func (r *Repository) SaveEvaluation(ctx context.Context, matchID string, evals []domain.Evaluation, base, bonus int) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var evaluatedAt *time.Time
	var existing bool
	err = tx.QueryRow(ctx, `
		SELECT m.evaluated_at,
			   EXISTS (SELECT 1 FROM ai_evaluations e WHERE e.match_id = m.id)
		FROM matches m
		WHERE m.id = $1
		FOR UPDATE OF m
	`, matchID).Scan(&evaluatedAt, &existing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrMatchNotFound
		}
		return false, fmt.Errorf("locking match: %w", err)
	}
	if evaluatedAt != nil || existing {
		return false, nil
	}

	if len(evals) > 0 {
		batch := &pgx.Batch{}
		for _, e := range evals {
			batch.Queue(`
				INSERT INTO ai_evaluations (id, match_id, resource_id, model_id, score, explanation, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, e.ID, matchID, e.ResourceID, e.ModelID, e.Score, e.Explanation, e.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return false, fmt.Errorf("inserting evaluations: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE matches SET score_ai = $2, time_bonus = $3, evaluated_at = now()
		WHERE id = $1
	`, matchID, base, bonus)
	if err != nil {
		return false, fmt.Errorf("updating match scores: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing evaluation: %w", err)
	}
	return true, nil
}
