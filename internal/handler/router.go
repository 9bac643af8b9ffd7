package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/msfrancis/mediguide/backend/internal/handler/chat"
	emergencyHandler "github.com/msfrancis/mediguide/backend/internal/handler/emergency"
	gatewayHandler "github.com/msfrancis/mediguide/backend/internal/handler/gateway"
	hospitalHandler "github.com/msfrancis/mediguide/backend/internal/handler/hospital"
	streamHandler "github.com/msfrancis/mediguide/backend/internal/handler/stream"
	wsHandler "github.com/msfrancis/mediguide/backend/internal/handler/ws"
	middlewarePkg "github.com/msfrancis/mediguide/backend/internal/middleware"
	hospitalModel "github.com/msfrancis/mediguide/backend/internal/model/hospital"
	"github.com/msfrancis/mediguide/backend/internal/model/profile"
	chatService "github.com/msfrancis/mediguide/backend/internal/service/chat"
	emergencyService "github.com/msfrancis/mediguide/backend/internal/service/emergency"
	gatewayService "github.com/msfrancis/mediguide/backend/internal/service/gateway"
	"github.com/msfrancis/mediguide/backend/pkg/logger"
	"github.com/msfrancis/mediguide/backend/pkg/utils"
)

// Deps bundles everything the router wires together.
type Deps struct {
	ChatSvc    *chatService.Service
	GatewaySvc *gatewayService.Service
	Profiles   profile.Store
	Hospitals  hospitalModel.Store

	// NewDispatcher builds a dispatcher around a per-request locator and
	// notifier; nil disables the emergency routes.
	NewDispatcher func(emergencyService.Locator, emergencyService.Notifier) *emergencyService.Dispatcher

	// AutoLocator is the location source for watchdog-triggered
	// dispatches, where no browser request carries a fix. nil aborts
	// those dispatches with the location-unavailable notice.
	AutoLocator emergencyService.Locator
}

// logNotifier surfaces auto-dispatch notices in the server log; there is no
// open client connection to push them to.
type logNotifier struct{}

func (logNotifier) Notify(title, detail string) {
	logger.Infof("[emergency] %s: %s", title, detail)
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	var onInactive func(sessionID, userID string) func()
	if deps.NewDispatcher != nil {
		onInactive = func(sessionID, userID string) func() {
			return func() {
				logger.Warnf("[watchdog] session=%s user unresponsive, auto-triggering emergency", sessionID)
				dispatcher := deps.NewDispatcher(deps.AutoLocator, logNotifier{})
				_, err := dispatcher.Dispatch(context.Background(), emergencyService.Options{
					UserID:        userID,
					AutoTriggered: true,
				})
				if err != nil {
					logger.Errorf("[watchdog] auto-dispatch failed: %v", err)
				}
			}
		}
	}

	sessions := chatHandler.New(deps.ChatSvc, deps.Profiles, onInactive)
	streams := streamHandler.New(deps.ChatSvc)
	sockets := wsHandler.New(deps.ChatSvc)

	r.Route("/api", func(api chi.Router) {
		sessions.RegisterRoutes(api)

		api.Get("/stream/{sessionID}", func(w http.ResponseWriter, r *http.Request) {
			sessionID := chi.URLParam(r, "sessionID")
			userMessage := r.URL.Query().Get("message")

			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streams.HandleStreamRequest(r.Context(), w, sessionID, userMessage); err != nil {
				logger.Warnf("[stream] request ended with error: %v", err)
			}
		})

		api.Get("/ws/chat", sockets.HandleChat)

		if deps.GatewaySvc != nil {
			api.Post("/chat", gatewayHandler.New(deps.GatewaySvc).HandleChat)
		}

		if deps.Hospitals != nil {
			api.Get("/hospitals", hospitalHandler.New(deps.Hospitals).HandleList)
		}

		if deps.NewDispatcher != nil {
			api.Post("/emergency", emergencyHandler.New(deps.NewDispatcher).HandleDispatch)
		}
	})

	return r
}
