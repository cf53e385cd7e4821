package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

func (r *Repository) GetPrompt(ctx context.Context, promptID string) (*domain.Prompt, error) {
	if _, err := uuid.Parse(promptID); err != nil {
		return nil, domain.ErrPromptNotFound
	}

	query := `SELECT id::text, title, description, level, created_at FROM prompts WHERE id = $1`
	var p domain.Prompt
	err := r.pool.QueryRow(ctx, query, promptID).Scan(&p.ID, &p.Title, &p.Description, &p.Level, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPromptNotFound
		}
		return nil, fmt.Errorf("getting prompt: %w", err)
	}
	return &p, nil
}

func (r *Repository) ListPromptsByLevel(ctx context.Context, level int, exclude []string) ([]domain.Prompt, error) {
	if exclude == nil {
		exclude = []string{}
	}
	query := `
		SELECT id::text, title, description, level, created_at
		FROM prompts
		WHERE level = $1 AND NOT (id::text = ANY($2))
		ORDER BY id
	`
	rows, err := r.pool.Query(ctx, query, level, exclude)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	defer rows.Close()

	var out []domain.Prompt
	for rows.Next() {
		var p domain.Prompt
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Level, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) CountPrompts(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM prompts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting prompts: %w", err)
	}
	return n, nil
}

// PlayedPrompts lists the user's prompts, most recently completed first.
func (r *Repository) PlayedPrompts(ctx context.Context, userID string) ([]domain.PlayedPrompt, error) {
	query := `
		SELECT m.prompt_id::text, p.level
		FROM matches m
		JOIN prompts p ON p.id = m.prompt_id
		WHERE m.user_id = $1
		ORDER BY COALESCE(m.completed_at, m.started_at) DESC NULLS LAST
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing played prompts: %w", err)
	}
	defer rows.Close()

	var out []domain.PlayedPrompt
	for rows.Next() {
		var pp domain.PlayedPrompt
		if err := rows.Scan(&pp.PromptID, &pp.Level); err != nil {
			return nil, fmt.Errorf("scanning played prompt: %w", err)
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

// SavePrompt inserts or replaces a prompt. A blank id gets a fresh one.
func (r *Repository) SavePrompt(ctx context.Context, p domain.Prompt) (*domain.Prompt, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	query := `
		INSERT INTO prompts (id, title, description, level, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (id)
		DO UPDATE SET title = $2, description = $3, level = $4
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query, p.ID, p.Title, p.Description, p.Level).Scan(&p.CreatedAt); err != nil {
		return nil, fmt.Errorf("saving prompt: %w", err)
	}
	return &p, nil
}
