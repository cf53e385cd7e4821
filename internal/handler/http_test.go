package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
	"github.com/JeczzuDev/pov-ia-minigame/internal/memory"
	"github.com/JeczzuDev/pov-ia-minigame/internal/service"
	"github.com/JeczzuDev/pov-ia-minigame/internal/websocket"
)

// scriptedCompleter scores every resource listed in the prompt with score.
type scriptedCompleter struct {
	score int
}

func (c *scriptedCompleter) Complete(_ context.Context, _ domain.AIModel, prompt string) (string, error) {
	var parts []string
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		id, _, ok := strings.Cut(strings.TrimPrefix(line, "- "), ":")
		if !ok {
			continue
		}
		parts = append(parts, fmt.Sprintf(`"%s":{"score":%d,"explanation":"fine"}`, id, c.score))
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

type testServer struct {
	*httptest.Server
	store *memory.Store
	cfg   *config.Config
}

func newTestServer(t *testing.T, token string) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	cfg := config.DefaultConfig()
	cfg.Auth.GatewayToken = token
	cfg.Association.Attempts = 1

	store := memory.NewStore()
	if _, err := store.SavePrompt(ctx, domain.Prompt{ID: "p1", Title: "Goroutines", Description: "Scheduling", Level: 1}); err != nil {
		t.Fatalf("seed prompt: %v", err)
	}
	if err := store.SaveAIModel(ctx, domain.AIModel{ID: "m1", Name: "m", Provider: "openai", Model: "gpt-4o-mini", Active: true}); err != nil {
		t.Fatalf("seed model: %v", err)
	}
	if err := store.SetConfigValue(ctx, domain.ConfigDefaultAIModel, "m1"); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	if _, err := store.UpsertUser(ctx, domain.User{ID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	hub := websocket.NewHub(logger)
	go hub.Run()
	t.Cleanup(hub.Stop)

	lb := service.NewLeaderboardService(store, nil, hub, &cfg.Leaderboard, logger)
	services := Services{
		Matches:     service.NewMatchService(store, lb, nil, &cfg.Game, &cfg.Association, logger),
		Prompts:     service.NewPromptService(store, &cfg.Game, logger),
		Evaluations: service.NewEvaluationService(store, &scriptedCompleter{score: 8}, nil, lb, hub, cfg.Standings.TopN, cfg.AI.Timeout, logger),
		Leaderboard: lb,
		Users:       service.NewUserService(store, logger),
	}

	srv := httptest.NewServer(NewHandler(services, hub, cfg, nil, logger).Router())
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, store: store, cfg: cfg}
}

type call struct {
	method string
	path   string
	body   interface{}
	user   string
	token  string
}

func (s *testServer) do(t *testing.T, c call) (int, APIResponse, json.RawMessage) {
	t.Helper()

	var body io.Reader
	if c.body != nil {
		raw, err := json.Marshal(c.body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(c.method, s.URL+c.path, body)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.Header.Set("X-User-ID", c.user)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	var envelope struct {
		APIResponse
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, envelope.APIResponse, envelope.Data
}

func TestAnonymousPlayThroughAndClaim(t *testing.T) {
	s := newTestServer(t, "")

	status, _, data := s.do(t, call{method: http.MethodPost, path: "/api/v1/matches", body: map[string]interface{}{
		"promptId":    "p1",
		"resources":   []string{"https://go.dev/doc/effective_go", "pkg.go.dev/sync"},
		"timeElapsed": 12,
	}})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	var created struct {
		MatchID string `json:"matchId"`
	}
	if err := json.Unmarshal(data, &created); err != nil || created.MatchID == "" {
		t.Fatalf("expected match id, got %s (%v)", data, err)
	}

	status, _, data = s.do(t, call{method: http.MethodPost, path: "/api/v1/evaluate", body: map[string]string{"matchId": created.MatchID}})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var eval domain.MatchEvaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		t.Fatalf("decode evaluation: %v", err)
	}
	// 8+8 plus the bonus for 12s
	if eval.BaseScore != 16 || eval.TimeBonus != 3 || eval.Total != 19 {
		t.Fatalf("unexpected evaluation %+v", eval)
	}

	status, _, data = s.do(t, call{method: http.MethodGet, path: "/api/v1/leaderboard?includeMatchId=" + created.MatchID})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var lb domain.Leaderboard
	if err := json.Unmarshal(data, &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || !lb.Entries[0].Anonymous || lb.Entries[0].Score != 19 {
		t.Fatalf("expected included anonymous entry, got %+v", lb.Entries)
	}

	status, _, _ = s.do(t, call{method: http.MethodPost, path: "/api/v1/matches", user: "u2", body: map[string]string{
		"matchId":         created.MatchID,
		"associateUserId": "u1",
	}})
	if status != http.StatusForbidden {
		t.Fatalf("claiming for someone else: expected 403, got %d", status)
	}

	status, _, _ = s.do(t, call{method: http.MethodPost, path: "/api/v1/matches", user: "u1", body: map[string]string{
		"matchId":         created.MatchID,
		"associateUserId": "u1",
	}})
	if status != http.StatusOK {
		t.Fatalf("claim: expected 200, got %d", status)
	}

	status, _, data = s.do(t, call{method: http.MethodGet, path: "/api/v1/leaderboard"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if err := json.Unmarshal(data, &lb); err != nil {
		t.Fatalf("decode leaderboard: %v", err)
	}
	if len(lb.Entries) != 1 || lb.Entries[0].UserID != "u1" || lb.Entries[0].Score != 19 {
		t.Fatalf("expected alice with 19, got %+v", lb.Entries)
	}

	status, _, _ = s.do(t, call{method: http.MethodGet, path: "/api/v1/matches/" + created.MatchID, user: "u2"})
	if status != http.StatusForbidden {
		t.Fatalf("reading another user's match: expected 403, got %d", status)
	}
}

func TestCreateMatchErrors(t *testing.T) {
	s := newTestServer(t, "")

	tests := []struct {
		name   string
		body   map[string]interface{}
		status int
		code   string
	}{
		{"missing prompt", map[string]interface{}{"resources": []string{"https://go.dev"}}, http.StatusBadRequest, ""},
		{"no resources", map[string]interface{}{"promptId": "p1", "resources": []string{}}, http.StatusBadRequest, ""},
		{"duplicate", map[string]interface{}{"promptId": "p1", "resources": []string{"https://go.dev", "http://go.dev/"}}, http.StatusBadRequest, "DUPLICATE_RESOURCE"},
		{"unknown prompt", map[string]interface{}{"promptId": "nope", "resources": []string{"https://go.dev"}}, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp, _ := s.do(t, call{method: http.MethodPost, path: "/api/v1/matches", body: tt.body})
			if status != tt.status {
				t.Fatalf("expected %d, got %d (%s)", tt.status, status, resp.Error)
			}
			if resp.Success || resp.Code != tt.code {
				t.Fatalf("unexpected envelope %+v", resp)
			}
		})
	}

	body := map[string]interface{}{"promptId": "p1", "resources": []string{"https://go.dev"}}
	if status, _, _ := s.do(t, call{method: http.MethodPost, path: "/api/v1/matches", user: "u1", body: body}); status != http.StatusCreated {
		t.Fatalf("first match: expected 201, got %d", status)
	}
	status, resp, _ := s.do(t, call{method: http.MethodPost, path: "/api/v1/matches", user: "u1", body: body})
	if status != http.StatusConflict || resp.Code != "PROMPT_ALREADY_COMPLETED" {
		t.Fatalf("replay: expected 409 PROMPT_ALREADY_COMPLETED, got %d %+v", status, resp)
	}
}

func TestGatewayToken(t *testing.T) {
	s := newTestServer(t, "s3cret")

	if status, _, _ := s.do(t, call{method: http.MethodGet, path: "/api/v1/prompts/next"}); status != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", status)
	}
	if status, _, _ := s.do(t, call{method: http.MethodGet, path: "/api/v1/prompts/next", token: "wrong"}); status != http.StatusUnauthorized {
		t.Fatalf("wrong token: expected 401, got %d", status)
	}
	status, _, data := s.do(t, call{method: http.MethodGet, path: "/api/v1/prompts/next", token: "s3cret"})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var next domain.NextPrompt
	if err := json.Unmarshal(data, &next); err != nil || next.Prompt == nil || next.Prompt.ID != "p1" {
		t.Fatalf("expected p1, got %s (%v)", data, err)
	}

	if status, _, _ := s.do(t, call{method: http.MethodGet, path: "/health"}); status != http.StatusOK {
		t.Fatalf("health must not need the token, got %d", status)
	}
}

func TestSyncUser(t *testing.T) {
	s := newTestServer(t, "")

	if status, _, _ := s.do(t, call{method: http.MethodPost, path: "/api/v1/users/sync", body: map[string]string{"username": "x"}}); status != http.StatusUnauthorized {
		t.Fatalf("anonymous sync: expected 401, got %d", status)
	}
	if status, _, _ := s.do(t, call{method: http.MethodPost, path: "/api/v1/users/sync", user: "u3", body: map[string]string{"clerkId": "u4", "username": "x"}}); status != http.StatusForbidden {
		t.Fatalf("sync for another id: expected 403, got %d", status)
	}

	status, _, data := s.do(t, call{method: http.MethodPost, path: "/api/v1/users/sync", user: "u3", body: map[string]string{"clerkId": "u3", "username": "carol"}})
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil || user.ID != "u3" || user.Username != "carol" {
		t.Fatalf("unexpected user %s (%v)", data, err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrMatchNotFound, http.StatusNotFound},
		{fmt.Errorf("wrap: %w", domain.ErrTooManyResources), http.StatusBadRequest},
		{domain.ErrEvaluationInProgress, http.StatusConflict},
		{domain.ErrMalformedModelResponse, http.StatusBadGateway},
		{domain.ErrModelNotConfigured, http.StatusServiceUnavailable},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestMatchTopicFollowsMatchVisibility(t *testing.T) {
	s := newTestServer(t, "")

	status, _, data := s.do(t, call{method: http.MethodPost, path: "/api/v1/matches", user: "u1", body: map[string]interface{}{
		"promptId":  "p1",
		"resources": []string{"https://go.dev/doc"},
	}})
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	var created struct {
		MatchID string `json:"matchId"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	topic := domain.MatchTopic(created.MatchID)

	follow := func(user string) websocket.Message {
		t.Helper()
		header := http.Header{}
		if user != "" {
			header.Set("X-User-ID", user)
		}
		conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(s.URL, "http")+"/ws", header)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer conn.Close()

		if err := conn.WriteJSON(websocket.ClientMessage{Type: websocket.MessageTypeSubscribe, Topic: topic}); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg websocket.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg
	}

	for _, user := range []string{"u2", ""} {
		if msg := follow(user); msg.Type != websocket.MessageTypeError {
			t.Fatalf("user %q: expected subscription to be denied, got %+v", user, msg)
		}
	}
	if msg := follow("u1"); msg.Type != websocket.MessageTypeSubscribed || msg.Topic != topic {
		t.Fatalf("owner: expected ack, got %+v", msg)
	}
}
