package scoring

import (
	"sort"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// AnonymousName is shown for entries without a username.
const AnonymousName = "Anonymous"

// Aggregate folds scored matches into per-user totals. Anonymous or ownerless
// rows only count when their match id equals includeMatchID. The result is
// unordered; see Rank.
func Aggregate(rows []domain.StandingRow, includeMatchID string) []domain.LeaderboardEntry {
	byKey := make(map[string]*domain.LeaderboardEntry)
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		owned := row.UserID != "" && !row.IsAnonymous
		included := includeMatchID != "" && row.MatchID == includeMatchID
		if !owned && !included {
			continue
		}

		key := row.UserID
		if !owned {
			key = "match:" + row.MatchID
		}

		entry, ok := byKey[key]
		if !ok {
			name := row.Username
			if name == "" {
				name = AnonymousName
			}
			entry = &domain.LeaderboardEntry{
				UserID:    row.UserID,
				Username:  name,
				Anonymous: !owned,
			}
			if !owned {
				entry.MatchID = row.MatchID
			}
			byKey[key] = entry
			order = append(order, key)
		}
		entry.Score += row.Total()
	}

	entries := make([]domain.LeaderboardEntry, 0, len(order))
	for _, key := range order {
		entries = append(entries, *byKey[key])
	}
	return entries
}

// Rank sorts entries by score descending, assigns 1-based ranks and keeps at
// most limit entries when limit is positive.
func Rank(entries []domain.LeaderboardEntry, limit int) []domain.LeaderboardEntry {
	ranked := make([]domain.LeaderboardEntry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Username < ranked[j].Username
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].Rank = int64(i + 1)
	}
	return ranked
}
