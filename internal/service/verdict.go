package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// Verdict is the model's judgment of one resource.
type Verdict struct {
	Score       int
	Explanation string
}

const (
	minVerdictScore = 1
	maxVerdictScore = 10
)

// BuildScoringPrompt renders the instruction sent to the model.
func BuildScoringPrompt(challenge string, resources []domain.SubmittedResource) string {
	var b strings.Builder
	b.WriteString("Score each resource from 1 to 10 and give an explanation of at most 200 characters. ")
	b.WriteString("Judge technical accuracy, depth, level of detail, practical usefulness, source quality, ")
	b.WriteString("clarity, and how well the resources complement each other. Repeated resources are not allowed.\n")
	b.WriteString("Problem: ")
	b.WriteString(strings.TrimSpace(challenge))
	b.WriteString("\nResources (id: url):\n")
	for _, r := range resources {
		fmt.Fprintf(&b, "- %s: %s\n", r.ID, r.URL)
	}
	b.WriteString("Reply with only a valid JSON object on a single line, without code blocks or commentary, ")
	b.WriteString(`keyed by resource id. Example: {"<resource_id>": {"score": 7, "explanation": "..."}}`)
	return b.String()
}

// ParseVerdicts decodes the model reply and checks that every resource got
// an integer score within range.
func ParseVerdicts(raw string, resourceIDs []string) (map[string]Verdict, error) {
	body := extractJSONObject(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: no json object in reply", domain.ErrMalformedModelResponse)
	}

	var decoded map[string]struct {
		Score       json.Number `json:"score"`
		Explanation string      `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedModelResponse, err)
	}

	verdicts := make(map[string]Verdict, len(resourceIDs))
	for _, id := range resourceIDs {
		v, ok := decoded[id]
		if !ok {
			return nil, fmt.Errorf("%w: resource %s missing", domain.ErrMalformedModelResponse, id)
		}
		score, err := integralScore(v.Score)
		if err != nil {
			return nil, fmt.Errorf("%w: resource %s: %v", domain.ErrMalformedModelResponse, id, err)
		}
		verdicts[id] = Verdict{Score: score, Explanation: strings.TrimSpace(v.Explanation)}
	}
	return verdicts, nil
}

func integralScore(n json.Number) (int, error) {
	if n == "" {
		return 0, fmt.Errorf("score missing")
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("score %q is not a number", n)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("score %v is not an integer", f)
	}
	if f < minVerdictScore || f > maxVerdictScore {
		return 0, fmt.Errorf("score %v out of range", f)
	}
	return int(f), nil
}

// extractJSONObject drops markdown fences and any prose around the outermost
// object.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}
