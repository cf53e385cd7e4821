package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

func TestNextPromptStartsAtLevelOne(t *testing.T) {
	f := newFixture(t)

	next, err := f.prompts.NextPrompt(context.Background(), "")
	if err != nil {
		t.Fatalf("next prompt: %v", err)
	}
	if next.Done || next.Prompt == nil || next.Prompt.Level != 1 {
		t.Fatalf("expected a level 1 prompt, got %+v", next)
	}
}

func TestNextPromptAdvancesAndWraps(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.matches.CreateMatch(ctx, "u1", domain.CreateMatchRequest{PromptID: "p1", Resources: []string{"https://go.dev"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	next, err := f.prompts.NextPrompt(ctx, "u1")
	if err != nil {
		t.Fatalf("next prompt: %v", err)
	}
	if next.Prompt == nil || next.Prompt.ID != "p2" {
		t.Fatalf("expected p2, got %+v", next)
	}

	// Level 3 was last; levels 4..10 are empty and 1 is played, so it wraps to 2.
	if _, err := f.matches.CreateMatch(ctx, "u1", domain.CreateMatchRequest{PromptID: "p3", Resources: []string{"https://go.dev"}}); err != nil {
		t.Fatalf("create: %v", err)
	}
	next, err = f.prompts.NextPrompt(ctx, "u1")
	if err != nil {
		t.Fatalf("next prompt: %v", err)
	}
	if next.Prompt == nil || next.Prompt.ID != "p2" {
		t.Fatalf("expected wrap to p2, got %+v", next)
	}
}

func TestNextPromptDoneWhenAllPlayed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for _, id := range []string{"p1", "p2", "p3"} {
		if _, err := f.matches.CreateMatch(ctx, "u1", domain.CreateMatchRequest{PromptID: id, Resources: []string{"https://go.dev"}}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	next, err := f.prompts.NextPrompt(ctx, "u1")
	if err != nil {
		t.Fatalf("next prompt: %v", err)
	}
	if !next.Done || next.Prompt != nil {
		t.Fatalf("expected done, got %+v", next)
	}
}

func TestNextPromptOutOfRangeLevel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A prompt outside 1..MaxLevel can never be picked, so the catalogue is
	// not exhausted but nothing is available.
	if _, err := f.store.SavePrompt(ctx, domain.Prompt{ID: "p99", Level: 42}); err != nil {
		t.Fatalf("save prompt: %v", err)
	}
	for _, id := range []string{"p1", "p2", "p3"} {
		_, _ = f.matches.CreateMatch(ctx, "u1", domain.CreateMatchRequest{PromptID: id, Resources: []string{"https://go.dev"}})
	}

	if _, err := f.prompts.NextPrompt(ctx, "u1"); !errors.Is(err, domain.ErrNoPromptAvailable) {
		t.Fatalf("expected ErrNoPromptAvailable, got %v", err)
	}
}
