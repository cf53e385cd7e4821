package domain

// LeaderboardEntry represents a single entry in the leaderboard
type LeaderboardEntry struct {
	Rank      int64  `json:"rank"`
	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username"`
	Score     int64  `json:"score"`
	Anonymous bool   `json:"anonymous,omitempty"`
	MatchID   string `json:"match_id,omitempty"`
}

// StandingRow is one scored match as read for leaderboard aggregation.
type StandingRow struct {
	MatchID     string
	UserID      string
	Username    string
	IsAnonymous bool
	BaseScore   int64
	TimeBonus   int64
}

// Total is the row's contribution to its owner's standing.
func (r StandingRow) Total() int64 {
	return r.BaseScore + r.TimeBonus
}

// Leaderboard is the response for the standings endpoint.
type Leaderboard struct {
	Entries      []LeaderboardEntry `json:"leaderboard"`
	TotalPlayers int64              `json:"total_players"`
}
