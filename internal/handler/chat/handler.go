package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatModel "github.com/msfrancis/mediguide/backend/internal/model/chat"
	"github.com/msfrancis/mediguide/backend/internal/model/profile"
	chatService "github.com/msfrancis/mediguide/backend/internal/service/chat"
	"github.com/msfrancis/mediguide/backend/pkg/utils"
)

// Handler exposes session housekeeping over REST. The actual send/receive
// cycle lives with the stream and ws handlers.
type Handler struct {
	chatSvc  *chatService.Service
	profiles profile.Store
	// onInactive builds the inactivity callback for a new session.
	onInactive func(sessionID, userID string) func()
}

func New(chatSvc *chatService.Service, profiles profile.Store, onInactive func(sessionID, userID string) func()) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		profiles:   profiles,
		onInactive: onInactive,
	}
}

// RegisterRoutes mounts the session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Delete("/session/{sessionID}", h.handleCloseSession)
	r.Get("/session/{sessionID}/messages", h.handleListMessages)
	r.Put("/session/{sessionID}/language", h.handleSetLanguage)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		UserID   string `json:"userId"`
		Language string `json:"language"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lang := chatModel.ParseLanguage(payload.Language)

	session, err := h.chatSvc.CreateSession(r.Context(), payload.UserID, lang)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if h.onInactive != nil {
		_ = h.chatSvc.AttachWatchdog(session.ID, h.onInactive(session.ID, payload.UserID))
	}

	h.attachProfile(r.Context(), session.ID, payload.UserID)

	utils.RespondJSON(w, http.StatusCreated, session)
}

// attachProfile loads the user's health profile into the session when one
// exists. A missing profile is not an error.
func (h *Handler) attachProfile(ctx context.Context, sessionID, userID string) {
	if h.profiles == nil || userID == "" {
		return
	}
	p, err := h.profiles.Get(ctx, userID)
	if err != nil {
		return
	}
	_ = h.chatSvc.SetProfile(sessionID, p)
}

func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	h.chatSvc.CloseSession(chi.URLParam(r, "sessionID"))
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatSvc.Messages(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (h *Handler) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lang := chatModel.ParseLanguage(payload.Language)
	if err := h.chatSvc.SetLanguage(chi.URLParam(r, "sessionID"), lang); err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"language": string(lang)})
}

func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, chatService.ErrSessionNotFound) {
		status = http.StatusNotFound
	}
	utils.RespondError(w, status, err.Error())
}
