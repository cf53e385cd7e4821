// Package cli wires the povia server commands.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
)

// options are the flags shared by every subcommand. Each can also be set
// through a POVIA_ environment variable.
type options struct {
	configPath string
	logLevel   string
	port       int
	storage    string
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	v := viper.New()
	v.SetEnvPrefix("POVIA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "povia",
		Short: "Backend for the POV-IA resource hunting minigame",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			bindEnv(v, cmd.Flags())
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := cmd.PersistentFlags()
	pf.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	pf.StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to YAML config (env: POVIA_CONFIG)")
	pf.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (env: POVIA_LOG_LEVEL)")
	pf.IntVarP(&opts.port, "port", "p", 0, "port to listen on, overrides config (env: POVIA_PORT)")
	pf.StringVar(&opts.storage, "storage", "", "postgres or memory, overrides config (env: POVIA_STORAGE)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newSeedCmd(opts))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

// bindEnv fills every flag the user did not pass from its POVIA_ variable.
func bindEnv(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// load reads the config file and applies flag overrides. A missing file
// falls back to defaults.
func (o *options) load(logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Warn("config file not found, using defaults", "path", o.configPath)
		cfg = config.DefaultConfig()
	case err != nil:
		return nil, err
	}

	if o.port > 0 {
		cfg.Server.Port = o.port
	}
	if o.storage != "" {
		cfg.Storage.Driver = strings.ToLower(o.storage)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// setup loads the config and returns a logger at its level.
func (o *options) setup() (*config.Config, *slog.Logger, error) {
	boot := newLogger(o.logLevel)
	cfg, err := o.load(boot)
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
