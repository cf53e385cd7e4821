// Package ai calls hosted generative models over HTTP.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Client sends single-turn prompts to the provider named by the model row.
type Client struct {
	providers map[string]config.ProviderConfig
	timeout   time.Duration
	client    *fasthttp.Client
	logger    *slog.Logger
}

func NewClient(cfg *config.AIConfig, logger *slog.Logger) *Client {
	return &Client{
		providers: cfg.Providers,
		timeout:   cfg.Timeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     32,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: time.Minute,
		},
		logger: logger,
	}
}

// Complete returns the model's text reply. Failures wrap
// domain.ErrModelUnavailable.
func (c *Client) Complete(ctx context.Context, model domain.AIModel, prompt string) (string, error) {
	provider, ok := c.providers[model.Provider]
	if !ok {
		return "", fmt.Errorf("%w: provider %q not configured", domain.ErrModelUnavailable, model.Provider)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		text string
		err  error
	)
	switch model.Provider {
	case ProviderOpenAI:
		text, err = c.completeOpenAI(ctx, provider, model.Model, prompt)
	case ProviderGemini:
		text, err = c.completeGemini(ctx, provider, model.Model, prompt)
	default:
		return "", fmt.Errorf("%w: unsupported provider %q", domain.ErrModelUnavailable, model.Provider)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return text, nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) completeOpenAI(ctx context.Context, p config.ProviderConfig, model, prompt string) (string, error) {
	body := openAIRequest{
		Model:       model,
		Messages:    []openAIMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	}
	body.ResponseFormat.Type = "json_object"

	url := strings.TrimRight(p.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + p.APIKey}

	resp, err := doJSON[openAIResponse](ctx, c, url, headers, body)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"responseMimeType"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (c *Client) completeGemini(ctx context.Context, p config.ProviderConfig, model, prompt string) (string, error) {
	body := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	body.GenerationConfig.Temperature = 0.2
	body.GenerationConfig.ResponseMimeType = "application/json"

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(p.BaseURL, "/"), model)
	headers := map[string]string{"x-goog-api-key": p.APIKey}

	resp, err := doJSON[geminiResponse](ctx, c, url, headers, body)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

func doJSON[T any](ctx context.Context, c *Client, url string, headers map[string]string, payload any) (*T, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.SetBody(raw)

	started := time.Now()
	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return nil, err
	}

	c.logger.Debug("model request completed",
		"status", resp.StatusCode(),
		"duration", time.Since(started),
	)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}
