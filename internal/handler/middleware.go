package handler

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserID returns the caller's identity, or "" for an anonymous request.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// gatewayAuth requires the gateway's bearer token when one is configured.
func (h *Handler) gatewayAuth(next http.Handler) http.Handler {
	if h.auth.GatewayToken == "" {
		return next
	}
	expected := []byte(h.auth.GatewayToken)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			h.logger.Warn("rejected gateway token", "path", r.URL.Path)
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// identity reads the user id the gateway resolved from its session.
func (h *Handler) identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(h.auth.UserHeader))
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
