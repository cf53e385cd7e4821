package domain

import "time"

// Event types carried on the match topic.
const (
	EventMatchSubmitted = "match_submitted"
	EventMatchEvaluated = "match_evaluated"
)

// MatchEvent is the message published when a match changes state.
type MatchEvent struct {
	MatchID   string    `json:"match_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Live update topics and message types.
const (
	TopicLeaderboard     = "leaderboard"
	MsgLeaderboardUpdate = "leaderboard_update"
	MsgMatchEvaluated    = EventMatchEvaluated
	matchTopicPrefix     = "match:"
)

// MatchTopic is the topic a result page subscribes to.
func MatchTopic(matchID string) string {
	return matchTopicPrefix + matchID
}
