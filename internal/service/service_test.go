package service_test

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
	"github.com/JeczzuDev/pov-ia-minigame/internal/memory"
	"github.com/JeczzuDev/pov-ia-minigame/internal/service"
)

type stubCompleter struct {
	calls atomic.Int32
	model atomic.Value
	reply func(prompt string) (string, error)
	delay time.Duration
}

func (c *stubCompleter) Complete(_ context.Context, model domain.AIModel, prompt string) (string, error) {
	c.calls.Add(1)
	c.model.Store(model.ID)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.reply(prompt)
}

type recordingHub struct {
	topics chan string
}

func (h *recordingHub) Broadcast(topic, _ string, _ interface{}) {
	select {
	case h.topics <- topic:
	default:
	}
}

type fixture struct {
	store       *memory.Store
	matches     *service.MatchService
	prompts     *service.PromptService
	evaluations *service.EvaluationService
	leaderboard *service.LeaderboardService
	users       *service.UserService
	completer   *stubCompleter
	hub         *recordingHub
	logger      *slog.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.Association.Attempts = 2
	cfg.Association.Interval = time.Millisecond

	store := memory.NewStore()
	for _, p := range []domain.Prompt{
		{ID: "p1", Title: "Goroutines", Description: "Explain goroutine scheduling", Level: 1},
		{ID: "p2", Title: "Channels", Description: "Buffered vs unbuffered channels", Level: 2},
		{ID: "p3", Title: "Generics", Description: "Type parameters in Go", Level: 3},
	} {
		if _, err := store.SavePrompt(ctx, p); err != nil {
			t.Fatalf("seed prompt: %v", err)
		}
	}
	if err := store.SaveAIModel(ctx, domain.AIModel{ID: "m-default", Name: "Default", Provider: "openai", Model: "gpt-4o-mini", Active: true}); err != nil {
		t.Fatalf("seed model: %v", err)
	}
	if err := store.SetConfigValue(ctx, domain.ConfigDefaultAIModel, "m-default"); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	for _, u := range []domain.User{{ID: "u1", Username: "alice"}, {ID: "u2", Username: "bob"}} {
		if _, err := store.UpsertUser(ctx, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}

	completer := &stubCompleter{reply: func(string) (string, error) { return "{}", nil }}
	hub := &recordingHub{topics: make(chan string, 16)}

	lb := service.NewLeaderboardService(store, nil, hub, &cfg.Leaderboard, logger)
	return &fixture{
		store:       store,
		matches:     service.NewMatchService(store, lb, nil, &cfg.Game, &cfg.Association, logger),
		prompts:     service.NewPromptService(store, &cfg.Game, logger),
		evaluations: service.NewEvaluationService(store, completer, nil, lb, hub, cfg.Standings.TopN, cfg.AI.Timeout, logger),
		leaderboard: lb,
		users:       service.NewUserService(store, logger),
		completer:   completer,
		hub:         hub,
		logger:      logger,
	}
}

// evaluator builds an evaluation service over the fixture's store with its
// own model and lock.
func (f *fixture) evaluator(completer service.Completer, locker service.EvaluationLocker) *service.EvaluationService {
	return service.NewEvaluationService(f.store, completer, locker, f.leaderboard, f.hub, 10, time.Second, f.logger)
}

// scoreAll answers every resource id in order with the given scores.
func (f *fixture) scoreAll(t *testing.T, matchID string, scores ...int) {
	t.Helper()
	resources, err := f.store.ListResources(context.Background(), matchID)
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	f.completer.reply = func(string) (string, error) {
		body := "{"
		for i, r := range resources {
			if i > 0 {
				body += ","
			}
			body += `"` + r.ID + `":{"score":` + strconv.Itoa(scores[i]) + `,"explanation":"ok"}`
		}
		return body + "}", nil
	}
}
