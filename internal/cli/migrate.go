package cli

import (
	"github.com/spf13/cobra"

	"github.com/JeczzuDev/pov-ia-minigame/internal/postgres"
)

func newMigrateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			return postgres.Migrate(cmd.Context(), cfg.Postgres.ConnectionString(), logger)
		},
	}
}
