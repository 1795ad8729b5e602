// Package handler wires HTTP routes to core services.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/miryas-ai/backend/internal/auth"
	chathandler "github.com/miryas-ai/backend/internal/handler/chat"
	userhandler "github.com/miryas-ai/backend/internal/handler/user"
	"github.com/miryas-ai/backend/internal/middleware"
	relayservice "github.com/miryas-ai/backend/internal/service/relay"
	"github.com/miryas-ai/backend/pkg/utils"
)

// NewRouter assembles the HTTP surface: a public health check and the
// token-gated relay API under /api.
func NewRouter(relay *relayservice.Service, verifier *auth.Verifier, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := relay.Healthy(req.Context()); err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "storage unavailable")
			return
		}
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	chatHandler := chathandler.New(relay, logger)
	userHandler := userhandler.New(relay, logger)

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.RequireAuth(verifier, logger))
		userHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
	})

	return r
}
