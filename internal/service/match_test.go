package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

func TestCreateMatchValidatesResources(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name string
		req  domain.CreateMatchRequest
		want error
	}{
		{"missing prompt", domain.CreateMatchRequest{Resources: []string{"https://go.dev"}}, domain.ErrInvalidRequest},
		{"no resources", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{" ", ""}}, domain.ErrInvalidRequest},
		{"too many", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{
			"https://a.com", "https://b.com", "https://c.com", "https://d.com", "https://e.com",
		}}, domain.ErrTooManyResources},
		{"invalid url", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://10.0.0.1/x"}}, domain.ErrInvalidResource},
		{"duplicate", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"http://go.dev/", "https://go.dev"}}, domain.ErrDuplicateResource},
		{"unknown prompt", domain.CreateMatchRequest{PromptID: "nope", Resources: []string{"https://go.dev"}}, domain.ErrPromptNotFound},
	}
	for _, tc := range cases {
		if _, err := f.matches.CreateMatch(ctx, "u1", tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestCreateMatchClampsElapsed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	m, err := f.matches.CreateMatch(ctx, "", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://go.dev"}, TimeElapsed: 600})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.TimeElapsed != 60 {
		t.Fatalf("expected elapsed clamped to 60, got %d", m.TimeElapsed)
	}
	if !m.IsAnonymous || m.UserID != nil {
		t.Fatalf("expected anonymous match, got %+v", m)
	}
}

func TestCreateMatchRejectsReplayByUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	req := domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://go.dev"}}

	if _, err := f.matches.CreateMatch(ctx, "u1", req); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := f.matches.CreateMatch(ctx, "u1", req); !errors.Is(err, domain.ErrPromptAlreadyCompleted) {
		t.Fatalf("expected ErrPromptAlreadyCompleted, got %v", err)
	}
}

func TestAssociateMatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	anon, _ := f.matches.CreateMatch(ctx, "", domain.CreateMatchRequest{PromptID: "p2", Resources: []string{"https://go.dev"}})

	m, err := f.matches.AssociateMatch(ctx, anon.ID, "u1")
	if err != nil {
		t.Fatalf("associate: %v", err)
	}
	if !m.OwnedBy("u1") || m.IsAnonymous {
		t.Fatalf("expected match owned by u1, got %+v", m)
	}

	// repeating is a no-op
	if _, err := f.matches.AssociateMatch(ctx, anon.ID, "u1"); err != nil {
		t.Fatalf("repeat associate: %v", err)
	}
	if _, err := f.matches.AssociateMatch(ctx, anon.ID, "u2"); !errors.Is(err, domain.ErrMatchAlreadyOwned) {
		t.Fatalf("expected ErrMatchAlreadyOwned, got %v", err)
	}
}

func TestAssociateMatchRejectsCompletedPrompt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.matches.CreateMatch(ctx, "u1", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://go.dev"}}); err != nil {
		t.Fatalf("create owned: %v", err)
	}
	anon, _ := f.matches.CreateMatch(ctx, "", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://go.dev"}})

	_, err := f.matches.AssociateMatch(ctx, anon.ID, "u1")
	if !errors.Is(err, domain.ErrPromptAlreadyCompleted) {
		t.Fatalf("expected ErrPromptAlreadyCompleted, got %v", err)
	}
	if domain.ErrorCode(err) != "PROMPT_ALREADY_COMPLETED" {
		t.Fatalf("unexpected code %q", domain.ErrorCode(err))
	}
}

func TestAssociateMatchUnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	anon, _ := f.matches.CreateMatch(ctx, "", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://go.dev"}})
	if _, err := f.matches.AssociateMatch(ctx, anon.ID, "ghost"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestGetMatchVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	owned, _ := f.matches.CreateMatch(ctx, "u1", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://go.dev"}})
	anon, _ := f.matches.CreateMatch(ctx, "", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://go.dev"}})

	if _, err := f.matches.GetMatch(ctx, owned.ID, "u2"); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	detail, err := f.matches.GetMatch(ctx, owned.ID, "u1")
	if err != nil {
		t.Fatalf("owner get: %v", err)
	}
	if detail.Prompt == nil || detail.Prompt.Title != "Goroutines" {
		t.Fatalf("expected prompt in detail, got %+v", detail.Prompt)
	}
	if _, err := f.matches.GetMatch(ctx, anon.ID, ""); err != nil {
		t.Fatalf("anonymous get: %v", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.matches.History(ctx, ""); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	_, _ = f.matches.CreateMatch(ctx, "u1", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://go.dev"}, TimeElapsed: 40})
	_, _ = f.matches.CreateMatch(ctx, "u1", domain.CreateMatchRequest{PromptID: "p2", Resources: []string{"https://go.dev"}, TimeElapsed: 10})

	history, err := f.matches.History(ctx, "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(history))
	}
	// the second match started 30s later
	if history[0].PromptTitle != "Channels" {
		t.Fatalf("expected newest first, got %+v", history)
	}
}
