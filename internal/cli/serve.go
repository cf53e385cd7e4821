package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JeczzuDev/pov-ia-minigame/internal/ai"
	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/handler"
	"github.com/JeczzuDev/pov-ia-minigame/internal/kafka"
	"github.com/JeczzuDev/pov-ia-minigame/internal/memory"
	"github.com/JeczzuDev/pov-ia-minigame/internal/postgres"
	"github.com/JeczzuDev/pov-ia-minigame/internal/redis"
	"github.com/JeczzuDev/pov-ia-minigame/internal/seed"
	"github.com/JeczzuDev/pov-ia-minigame/internal/service"
	"github.com/JeczzuDev/pov-ia-minigame/internal/websocket"
	"github.com/JeczzuDev/pov-ia-minigame/internal/worker"
)

type serveFlags struct {
	migrate  bool
	seedFile string
}

func newServeCmd(opts *options) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, flags, logger)
		},
	}

	cmd.Flags().BoolVar(&flags.migrate, "migrate", true, "apply migrations on start (env: POVIA_MIGRATE)")
	cmd.Flags().StringVar(&flags.seedFile, "seed", "", "seed file applied on start (env: POVIA_SEED)")
	return cmd
}

type seedableStore interface {
	service.Store
	seed.Target
}

func openStore(ctx context.Context, cfg *config.Config, flags *serveFlags, logger *slog.Logger) (seedableStore, handler.Checker, func(), error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore(), nil, func() {}, nil
	}

	logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	repo, err := postgres.NewRepository(&cfg.Postgres, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	if flags.migrate {
		if err := repo.RunMigrations(ctx); err != nil {
			repo.Close()
			return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return repo, repo, repo.Close, nil
}

func serve(ctx context.Context, cfg *config.Config, flags *serveFlags, logger *slog.Logger) error {
	checks := map[string]handler.Checker{}

	store, dbCheck, closeStore, err := openStore(ctx, cfg, flags, logger)
	if err != nil {
		return err
	}
	defer closeStore()
	if dbCheck != nil {
		checks["postgres"] = dbCheck
	}

	if flags.seedFile != "" {
		data, err := seed.Load(flags.seedFile)
		if err != nil {
			return err
		}
		if err := seed.Apply(ctx, store, data, logger); err != nil {
			return err
		}
	}

	var (
		cache  service.StandingsCache
		locker service.EvaluationLocker
		events service.EventPublisher
	)
	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		rc, err := redis.NewCache(&cfg.Redis, logger)
		if err != nil {
			return err
		}
		defer rc.Close()
		cache, locker = rc, rc
		checks["redis"] = rc
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer, err = kafka.NewProducer(&cfg.Kafka, logger)
		if err != nil {
			logger.Warn("failed to create Kafka producer, evaluation stays request driven", "error", err)
		} else {
			defer producer.Close()
			events = producer
		}
	}

	hub := websocket.NewHub(logger)
	go hub.Run()
	defer hub.Stop()

	leaderboard := service.NewLeaderboardService(store, cache, hub, &cfg.Leaderboard, logger)
	evaluations := service.NewEvaluationService(store, ai.NewClient(&cfg.AI, logger), locker, leaderboard, hub, cfg.Standings.TopN, cfg.AI.Timeout, logger)
	services := handler.Services{
		Matches:     service.NewMatchService(store, leaderboard, events, &cfg.Game, &cfg.Association, logger),
		Prompts:     service.NewPromptService(store, &cfg.Game, logger),
		Evaluations: evaluations,
		Leaderboard: leaderboard,
		Users:       service.NewUserService(store, logger),
	}

	if cfg.Kafka.Enabled && producer != nil {
		consumer, err := kafka.NewConsumer(&cfg.Kafka, evaluations, cfg.AI.Timeout, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without it", "error", err)
		} else if err := consumer.Start(); err != nil {
			logger.Warn("failed to start Kafka consumer, continuing without it", "error", err)
		} else {
			defer func() {
				if err := consumer.Stop(); err != nil {
					logger.Error("failed to stop Kafka consumer", "error", err)
				}
			}()
		}
	}

	if cfg.Standings.Enabled {
		standings := worker.NewStandingsWorker(leaderboard, &cfg.Standings, logger)
		if err := standings.Start(ctx); err != nil {
			return err
		}
		defer func() {
			if err := standings.Stop(); err != nil {
				logger.Error("failed to stop standings worker", "error", err)
			}
		}()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.NewHandler(services, hub, cfg, checks, logger).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
