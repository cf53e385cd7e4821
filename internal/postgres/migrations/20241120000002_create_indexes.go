package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed 0002_create_indexes.sql
var createIndexesSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, createIndexesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.ExecContext(ctx, `DROP INDEX IF EXISTS
				idx_matches_user_prompt, idx_matches_user_started, idx_matches_unevaluated,
				idx_prompts_level, idx_resources_match, idx_evaluations_match`)
			return err
		},
	)
}
