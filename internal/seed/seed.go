// Package seed loads the prompt catalogue, model rows and app_config
// entries from YAML.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// Data is the contents of a seed file.
type Data struct {
	Prompts []domain.Prompt   `yaml:"prompts"`
	Models  []domain.AIModel  `yaml:"models"`
	Config  map[string]string `yaml:"config"`
}

// Target is a store that accepts seed rows.
type Target interface {
	SavePrompt(ctx context.Context, p domain.Prompt) (*domain.Prompt, error)
	SaveAIModel(ctx context.Context, m domain.AIModel) error
	SetConfigValue(ctx context.Context, key, value string) error
}

// Load reads and validates a seed file.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes seed YAML and checks it references only known models.
func Parse(raw []byte) (*Data, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	// Prompt ids are fixed in the file so re-seeding updates rows in place.
	prompts := make(map[string]struct{}, len(data.Prompts))
	for i, p := range data.Prompts {
		if p.Title == "" || p.Description == "" {
			return nil, fmt.Errorf("prompt %d: title and description are required", i)
		}
		if _, err := uuid.Parse(p.ID); err != nil {
			return nil, fmt.Errorf("prompt %q: id must be a uuid, got %q", p.Title, p.ID)
		}
		if _, dup := prompts[p.ID]; dup {
			return nil, fmt.Errorf("prompt %q: duplicate id %s", p.Title, p.ID)
		}
		prompts[p.ID] = struct{}{}
		if p.Level < 1 {
			return nil, fmt.Errorf("prompt %q: level must be at least 1", p.Title)
		}
	}

	models := make(map[string]struct{}, len(data.Models))
	for _, m := range data.Models {
		if m.ID == "" || m.Model == "" {
			return nil, fmt.Errorf("model %q: id and model are required", m.Name)
		}
		if m.Provider != "openai" && m.Provider != "gemini" {
			return nil, fmt.Errorf("model %q: unknown provider %q", m.ID, m.Provider)
		}
		models[m.ID] = struct{}{}
	}

	for _, key := range []string{domain.ConfigCommunityWinnerModel, domain.ConfigDefaultAIModel} {
		id, ok := data.Config[key]
		if !ok || id == "" {
			continue
		}
		if _, known := models[id]; !known {
			return nil, fmt.Errorf("%s references unknown model %q", key, id)
		}
	}

	return &data, nil
}

// Apply writes data to target. Models go first so config entries never
// point at a missing row.
func Apply(ctx context.Context, target Target, data *Data, logger *slog.Logger) error {
	for _, m := range data.Models {
		if err := target.SaveAIModel(ctx, m); err != nil {
			return fmt.Errorf("seeding model %s: %w", m.ID, err)
		}
	}

	for _, p := range data.Prompts {
		if _, err := target.SavePrompt(ctx, p); err != nil {
			return fmt.Errorf("seeding prompt %q: %w", p.Title, err)
		}
	}

	for k, v := range data.Config {
		if err := target.SetConfigValue(ctx, k, v); err != nil {
			return fmt.Errorf("seeding config %s: %w", k, err)
		}
	}

	logger.Info("seed applied",
		"prompts", len(data.Prompts),
		"models", len(data.Models),
		"config_keys", len(data.Config),
	)
	return nil
}
