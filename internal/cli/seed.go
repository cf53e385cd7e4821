package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JeczzuDev/pov-ia-minigame/internal/postgres"
	"github.com/JeczzuDev/pov-ia-minigame/internal/seed"
)

func newSeedCmd(opts *options) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load prompts, AI models and app config from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("seed needs the postgres driver, got %q", cfg.Storage.Driver)
			}

			data, err := seed.Load(file)
			if err != nil {
				return err
			}

			repo, err := postgres.NewRepository(&cfg.Postgres, logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			return seed.Apply(cmd.Context(), repo, data, logger)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "seed.yaml", "seed file")
	return cmd
}
