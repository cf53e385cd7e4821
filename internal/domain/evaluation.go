package domain

import "time"

// AIModel is a row of ai_models.
type AIModel struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	Active   bool   `json:"active" yaml:"active"`
}

// app_config keys that select the scoring model, in priority order.
const (
	ConfigCommunityWinnerModel = "community_winner_model"
	ConfigDefaultAIModel       = "default_ai_model"
)

// Evaluation is one scored judgment of a resource.
type Evaluation struct {
	ID          string    `json:"id"`
	MatchID     string    `json:"match_id"`
	ResourceID  string    `json:"resource_id"`
	ModelID     string    `json:"model_id"`
	Score       int       `json:"score"`
	Explanation string    `json:"explanation"`
	CreatedAt   time.Time `json:"created_at"`
}

// EvaluationResult is an evaluation joined with the URL it judged.
type EvaluationResult struct {
	ID          string `json:"id"`
	ResourceID  string `json:"resource_id"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

// EvaluateRequest is the body of POST /evaluate.
type EvaluateRequest struct {
	MatchID string `json:"matchId"`
}

// MatchEvaluation is the score breakdown returned by POST /evaluate.
type MatchEvaluation struct {
	MatchID     string             `json:"match_id"`
	Total       int                `json:"total"`
	BaseScore   int                `json:"baseScore"`
	TimeBonus   int                `json:"timeBonus"`
	TimeElapsed int                `json:"timeElapsed"`
	Evaluations []EvaluationResult `json:"evaluations"`
	Message     string             `json:"message,omitempty"`
}
