// Package chat exposes the message relay endpoints.
package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/miryas-ai/backend/internal/model/chat"
	"github.com/miryas-ai/backend/internal/service/llm"
	relayservice "github.com/miryas-ai/backend/internal/service/relay"
	"github.com/miryas-ai/backend/internal/storage"
	"github.com/miryas-ai/backend/pkg/utils"
)

// Handler serves the chat relay routes.
type Handler struct {
	relay  *relayservice.Service
	logger *zap.Logger
}

func New(relay *relayservice.Service, logger *zap.Logger) *Handler {
	return &Handler{relay: relay, logger: logger}
}

// RegisterRoutes mounts the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat/send", h.handleSend)
	r.Get("/chat/history", h.handleHistory)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID  int64  `json:"user_id"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.UserID <= 0 || strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "user_id and message are required")
		return
	}

	reply, err := h.relay.Send(r.Context(), payload.UserID, payload.Message)
	if err != nil {
		h.respondSendError(w, err)
		return
	}
	if reply.Limited {
		utils.RespondJSON(w, http.StatusOK, map[string]string{
			"result":  "limit",
			"message": reply.Notice,
		})
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"reply":  reply.Text,
		"status": "ok",
	})
}

func (h *Handler) respondSendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, llm.ErrMalformedRequest):
		utils.RespondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, llm.ErrKeysExhausted):
		utils.RespondError(w, http.StatusServiceUnavailable, "please try again later")
	case errors.Is(err, storage.ErrUserNotFound):
		utils.RespondError(w, http.StatusNotFound, "user not found")
	default:
		h.logger.Error("send failed", zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

type historyTurn struct {
	Role      chat.Role `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		utils.RespondError(w, http.StatusBadRequest, "user_id query parameter is required")
		return
	}

	limit := relayservice.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	turns, err := h.relay.History(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("history read failed", zap.Int64("user_id", userID), zap.Error(err))
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]historyTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, historyTurn{Role: t.Role, Content: t.Content, CreatedAt: t.CreatedAt})
	}
	utils.RespondJSON(w, http.StatusOK, out)
}
