// Package user exposes account state and interest profile endpoints.
package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	relayservice "github.com/miryas-ai/backend/internal/service/relay"
	"github.com/miryas-ai/backend/internal/storage"
	"github.com/miryas-ai/backend/pkg/utils"
)

// Handler serves the user account routes.
type Handler struct {
	relay  *relayservice.Service
	logger *zap.Logger
}

func New(relay *relayservice.Service, logger *zap.Logger) *Handler {
	return &Handler{relay: relay, logger: logger}
}

// RegisterRoutes mounts the user endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/user/init", h.handleInit)
	r.Get("/user/tier", h.handleTier)
	r.Post("/user/interest", h.handleSetInterest)
	r.Get("/user/interest", h.handleGetInterest)
}

func (h *Handler) handleInit(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	state, err := h.relay.InitUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("user init failed", zap.Int64("user_id", userID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, state)
}

func (h *Handler) handleTier(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	state, err := h.relay.UserState(r.Context(), userID)
	if errors.Is(err, storage.ErrUserNotFound) {
		utils.RespondError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.logger.Error("user read failed", zap.Int64("user_id", userID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, state)
}

func (h *Handler) handleSetInterest(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID          int64    `json:"user_id"`
		CurrentInterest string   `json:"current_interest"`
		InterestTags    []string `json:"interest_tags"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	if err := h.relay.SetInterest(r.Context(), payload.UserID, payload.CurrentInterest, payload.InterestTags); err != nil {
		h.logger.Error("interest save failed", zap.Int64("user_id", payload.UserID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (h *Handler) handleGetInterest(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.relay.Interest(r.Context(), userID)
	if errors.Is(err, storage.ErrInterestNotFound) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{})
		return
	}
	if err != nil {
		h.logger.Error("interest read failed", zap.Int64("user_id", userID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"current_interest": profile.CurrentInterest,
		"interest_tags":    profile.Tags,
	})
}

func queryUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "user_id query parameter is required")
		return 0, false
	}
	return userID, true
}
