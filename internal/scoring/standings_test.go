package scoring

import (
	"testing"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

func TestAggregateSumsPerUser(t *testing.T) {
	rows := []domain.StandingRow{
		{MatchID: "m1", UserID: "u1", Username: "alice", BaseScore: 8, TimeBonus: 2},
		{MatchID: "m2", UserID: "u1", Username: "alice-renamed", BaseScore: 5},
	}

	entries := Aggregate(rows, "")
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Score != 15 {
		t.Fatalf("expected total 15, got %d", entries[0].Score)
	}
	if entries[0].Username != "alice" {
		t.Fatalf("expected first-seen username, got %q", entries[0].Username)
	}
}

func TestAggregateExcludesAnonymousUnlessIncluded(t *testing.T) {
	rows := []domain.StandingRow{
		{MatchID: "m1", UserID: "u1", Username: "alice", BaseScore: 10},
		{MatchID: "m2", IsAnonymous: true, BaseScore: 20, TimeBonus: 3},
		{MatchID: "m3", IsAnonymous: true, BaseScore: 30},
	}

	entries := Aggregate(rows, "")
	if len(entries) != 1 || entries[0].UserID != "u1" {
		t.Fatalf("expected only alice, got %+v", entries)
	}

	entries = Aggregate(rows, "m2")
	if len(entries) != 2 {
		t.Fatalf("expected alice and the included match, got %+v", entries)
	}
	var anon *domain.LeaderboardEntry
	for i := range entries {
		if entries[i].Anonymous {
			anon = &entries[i]
		}
	}
	if anon == nil || anon.MatchID != "m2" || anon.Score != 23 || anon.Username != AnonymousName {
		t.Fatalf("unexpected anonymous entry %+v", anon)
	}
}

func TestAggregateSkipsAnonymousFlagEvenWithUser(t *testing.T) {
	rows := []domain.StandingRow{
		{MatchID: "m1", UserID: "u1", Username: "alice", IsAnonymous: true, BaseScore: 10},
	}
	if entries := Aggregate(rows, ""); len(entries) != 0 {
		t.Fatalf("expected no entries, got %+v", entries)
	}
}

func TestRankOrdersAndTruncates(t *testing.T) {
	entries := []domain.LeaderboardEntry{
		{UserID: "u1", Username: "carol", Score: 5},
		{UserID: "u2", Username: "alice", Score: 12},
		{UserID: "u3", Username: "bob", Score: 12},
		{UserID: "u4", Username: "dave", Score: 1},
	}

	ranked := Rank(entries, 3)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(ranked))
	}
	want := []string{"alice", "bob", "carol"}
	for i, name := range want {
		if ranked[i].Username != name || ranked[i].Rank != int64(i+1) {
			t.Fatalf("position %d: got %+v, want %s", i, ranked[i], name)
		}
	}
	if entries[0].Rank != 0 {
		t.Fatalf("Rank must not mutate its input")
	}
}
