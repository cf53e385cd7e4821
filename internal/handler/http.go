package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/JeczzuDev/pov-ia-minigame/internal/config"
	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
	"github.com/JeczzuDev/pov-ia-minigame/internal/service"
	"github.com/JeczzuDev/pov-ia-minigame/internal/websocket"
)

// Services bundles the application services the handler routes to.
type Services struct {
	Matches     *service.MatchService
	Prompts     *service.PromptService
	Evaluations *service.EvaluationService
	Leaderboard *service.LeaderboardService
	Users       *service.UserService
}

// Checker is a dependency probed by the readiness endpoint.
type Checker interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the game API
type Handler struct {
	services Services
	hub      *websocket.Hub
	auth     config.AuthConfig
	origins  []string
	checks   map[string]Checker
	logger   *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, hub *websocket.Hub, cfg *config.Config, checks map[string]Checker, logger *slog.Logger) *Handler {
	return &Handler{
		services: services,
		hub:      hub,
		auth:     cfg.Auth,
		origins:  cfg.Server.AllowedOrigins,
		checks:   checks,
		logger:   logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", h.auth.UserHeader},
		AllowCredentials: true,
	}).Handler)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", websocket.Handler(h.hub, h.origins, h.auth.UserHeader, h.canFollow, h.logger))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.gatewayAuth)
		r.Use(h.identity)

		r.Post("/matches", h.CreateMatch)
		r.Get("/matches/{matchID}", h.GetMatch)
		r.Post("/evaluate", h.Evaluate)
		r.Get("/prompts/next", h.NextPrompt)

		r.Get("/leaderboard", h.GetLeaderboard)
		r.Get("/leaderboard/users/{userID}", h.GetUserStanding)

		r.Post("/users/sync", h.SyncUser)
		r.Get("/users/me/matches", h.History)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// canFollow lets a websocket client follow a match only when it could read
// the match over HTTP.
func (h *Handler) canFollow(ctx context.Context, userID, topic string) error {
	matchID, ok := strings.CutPrefix(topic, domain.MatchTopic(""))
	if !ok {
		return nil
	}
	_, err := h.services.Matches.GetMatch(ctx, matchID, userID)
	return err
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
		Code:    domain.ErrorCode(err),
	})
}

// writeServiceError maps a service error to its status. Unclassified errors
// are logged and hidden behind a generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"op", op,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeError(w, status, domain.ErrInternalError)
		return
	}
	if status == http.StatusBadGateway || status == http.StatusServiceUnavailable {
		h.logger.Warn("model evaluation failed", "op", op, "error", err)
	}
	h.writeError(w, status, err)
}

func statusFor(err error) int {
	switch {
	case domain.IsNotFoundError(err), errors.Is(err, domain.ErrModelNotFound):
		return http.StatusNotFound
	case domain.IsValidationError(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPromptAlreadyCompleted),
		errors.Is(err, domain.ErrMatchAlreadyOwned),
		errors.Is(err, domain.ErrEvaluationInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMalformedModelResponse),
		errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrModelNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return false
	}
	return true
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections":       h.hub.TotalConnections(),
		"leaderboard_subscribers": h.hub.SubscriberCount(domain.TopicLeaderboard),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck pings every backing service.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, c := range h.checks {
		if err := c.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		h.writeJSON(w, http.StatusServiceUnavailable, APIResponse{
			Success: false,
			Data:    failed,
			Error:   "dependencies unavailable",
		})
		return
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}
