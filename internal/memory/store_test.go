package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestCreateMatchRejectsReplayedPrompt(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	nm := domain.NewMatch{UserID: strPtr("u1"), PromptID: "p1", URLs: []string{"https://a.com"}}
	m, res, err := s.CreateMatch(ctx, nm)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if len(res) != 1 || res[0].MatchID != m.ID {
		t.Fatalf("unexpected resources %+v", res)
	}

	if _, _, err := s.CreateMatch(ctx, nm); !errors.Is(err, domain.ErrPromptAlreadyCompleted) {
		t.Fatalf("expected ErrPromptAlreadyCompleted, got %v", err)
	}

	// anonymous replays are allowed
	anon := domain.NewMatch{PromptID: "p1", IsAnonymous: true, URLs: []string{"https://a.com"}}
	if _, _, err := s.CreateMatch(ctx, anon); err != nil {
		t.Fatalf("anonymous create failed: %v", err)
	}
	if _, _, err := s.CreateMatch(ctx, anon); err != nil {
		t.Fatalf("second anonymous create failed: %v", err)
	}
}

func TestSaveEvaluationOnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	m, res, _ := s.CreateMatch(ctx, domain.NewMatch{PromptID: "p1", URLs: []string{"https://a.com"}})
	evals := []domain.Evaluation{{ID: "e1", MatchID: m.ID, ResourceID: res[0].ID, Score: 7}}

	saved, err := s.SaveEvaluation(ctx, m.ID, evals, 7, 3)
	if err != nil || !saved {
		t.Fatalf("first save: saved=%v err=%v", saved, err)
	}
	saved, err = s.SaveEvaluation(ctx, m.ID, evals, 9, 9)
	if err != nil || saved {
		t.Fatalf("second save: saved=%v err=%v", saved, err)
	}

	got, _ := s.GetMatch(ctx, m.ID)
	if got.BaseScore != 7 || got.TimeBonus != 3 || got.EvaluatedAt == nil {
		t.Fatalf("unexpected match after save %+v", got)
	}

	results, _ := s.ListEvaluations(ctx, m.ID)
	if len(results) != 1 || results[0].URL != "https://a.com" {
		t.Fatalf("unexpected evaluations %+v", results)
	}
}

func TestAssignMatchOwner(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	owned, _, _ := s.CreateMatch(ctx, domain.NewMatch{UserID: strPtr("u1"), PromptID: "p1"})
	anon, _, _ := s.CreateMatch(ctx, domain.NewMatch{PromptID: "p1", IsAnonymous: true})
	other, _, _ := s.CreateMatch(ctx, domain.NewMatch{PromptID: "p2", IsAnonymous: true})

	if err := s.AssignMatchOwner(ctx, anon.ID, "u1"); !errors.Is(err, domain.ErrPromptAlreadyCompleted) {
		t.Fatalf("expected ErrPromptAlreadyCompleted, got %v", err)
	}
	if err := s.AssignMatchOwner(ctx, owned.ID, "u2"); !errors.Is(err, domain.ErrMatchAlreadyOwned) {
		t.Fatalf("expected ErrMatchAlreadyOwned, got %v", err)
	}
	if err := s.AssignMatchOwner(ctx, other.ID, "u1"); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	got, _ := s.GetMatch(ctx, other.ID)
	if !got.OwnedBy("u1") || got.IsAnonymous {
		t.Fatalf("match not reassigned: %+v", got)
	}
}

func TestPlayedPromptsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.SavePrompt(ctx, domain.Prompt{ID: "p1", Level: 1})
	_, _ = s.SavePrompt(ctx, domain.Prompt{ID: "p2", Level: 2})

	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	_, _, _ = s.CreateMatch(ctx, domain.NewMatch{UserID: strPtr("u1"), PromptID: "p2", CompletedAt: &newer})
	_, _, _ = s.CreateMatch(ctx, domain.NewMatch{UserID: strPtr("u1"), PromptID: "p1", CompletedAt: &older})

	played, err := s.PlayedPrompts(ctx, "u1")
	if err != nil {
		t.Fatalf("played prompts: %v", err)
	}
	if len(played) != 2 || played[0].PromptID != "p2" || played[0].Level != 2 {
		t.Fatalf("unexpected order %+v", played)
	}
}

func TestListStandingRowsFiltersAnonymous(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, _ = s.UpsertUser(ctx, domain.User{ID: "u1", Username: "alice"})

	_, _, _ = s.CreateMatch(ctx, domain.NewMatch{UserID: strPtr("u1"), PromptID: "p1"})
	anon, _, _ := s.CreateMatch(ctx, domain.NewMatch{PromptID: "p1", IsAnonymous: true})
	_, _, _ = s.CreateMatch(ctx, domain.NewMatch{PromptID: "p2", IsAnonymous: true})

	rows, _ := s.ListStandingRows(ctx, "")
	if len(rows) != 1 || rows[0].Username != "alice" {
		t.Fatalf("expected only alice's match, got %+v", rows)
	}

	rows, _ = s.ListStandingRows(ctx, anon.ID)
	if len(rows) != 2 {
		t.Fatalf("expected included anonymous match, got %+v", rows)
	}
}
