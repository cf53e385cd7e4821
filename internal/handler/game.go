package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JeczzuDev/pov-ia-minigame/internal/domain"
)

// CreateMatch stores a submission, or claims an anonymous match when the
// body names associateUserId and matchId.
func (h *Handler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateMatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	userID := UserID(r.Context())

	if req.IsAssociation() {
		if userID == "" {
			h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
			return
		}
		if req.AssociateUserID != userID {
			h.writeError(w, http.StatusForbidden, domain.ErrForbidden)
			return
		}
		match, err := h.services.Matches.AssociateMatch(r.Context(), req.MatchID, userID)
		if err != nil {
			h.writeServiceError(w, r, "associate_match", err)
			return
		}
		h.writeSuccess(w, map[string]interface{}{"ok": true, "matchId": match.ID})
		return
	}

	match, err := h.services.Matches.CreateMatch(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, "create_match", err)
		return
	}
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"matchId": match.ID},
	})
}

// GetMatch returns a match with its evaluations for the result page.
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")
	detail, err := h.services.Matches.GetMatch(r.Context(), matchID, UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "get_match", err)
		return
	}
	h.writeSuccess(w, detail)
}

// Evaluate scores a match, or returns the stored score if it already has one.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req domain.EvaluateRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.services.Evaluations.Evaluate(r.Context(), req.MatchID)
	if err != nil {
		h.writeServiceError(w, r, "evaluate", err)
		return
	}
	h.writeSuccess(w, result)
}

// NextPrompt picks the caller's next unplayed challenge.
func (h *Handler) NextPrompt(w http.ResponseWriter, r *http.Request) {
	next, err := h.services.Prompts.NextPrompt(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "next_prompt", err)
		return
	}
	h.writeSuccess(w, next)
}

// GetLeaderboard returns the global standings.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
			return
		}
		limit = n
	}

	lb, err := h.services.Leaderboard.GetLeaderboard(r.Context(), r.URL.Query().Get("includeMatchId"), limit)
	if err != nil {
		h.writeServiceError(w, r, "get_leaderboard", err)
		return
	}
	h.writeSuccess(w, lb)
}

// GetUserStanding returns one player's rank and cumulative score.
func (h *Handler) GetUserStanding(w http.ResponseWriter, r *http.Request) {
	entry, err := h.services.Leaderboard.GetUserStanding(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeServiceError(w, r, "get_user_standing", err)
		return
	}
	h.writeSuccess(w, entry)
}

// SyncUser mirrors the caller's identity-provider profile.
func (h *Handler) SyncUser(w http.ResponseWriter, r *http.Request) {
	userID := UserID(r.Context())
	if userID == "" {
		h.writeError(w, http.StatusUnauthorized, domain.ErrUnauthorized)
		return
	}

	var req domain.SyncUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	if id := req.UserID(); id != "" && id != userID {
		h.writeError(w, http.StatusForbidden, domain.ErrForbidden)
		return
	}
	req.ID = userID

	user, err := h.services.Users.SyncUser(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "sync_user", err)
		return
	}
	h.writeSuccess(w, user)
}

// History lists the caller's matches for the dashboard.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.services.Matches.History(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, "history", err)
		return
	}
	if entries == nil {
		entries = []domain.MatchHistoryEntry{}
	}
	h.writeSuccess(w, entries)
}
