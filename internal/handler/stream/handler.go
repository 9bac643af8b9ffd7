package stream

import (
	"context"
	"fmt"
	"net/http"

	chatModel "github.com/msfrancis/mediguide/backend/internal/model/chat"
	chatService "github.com/msfrancis/mediguide/backend/internal/service/chat"
	"github.com/msfrancis/mediguide/backend/pkg/logger"
	"github.com/msfrancis/mediguide/backend/pkg/utils"
)

// Handler relays one send/receive cycle as Server-Sent Events: the assistant
// message re-emitted in full on every delta, notices as they surface, and a
// final end frame.
type Handler struct {
	chatSvc *chatService.Service
}

func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse is one SSE frame sent to the UI.
type StreamResponse struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content,omitempty"`
	Title     string `json:"title,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
}

// sseSink forwards session output onto the open SSE response.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) OnAssistant(msg chatModel.Message) {
	utils.SendSSEChunk(s.w, s.flusher, StreamResponse{
		Event:     "assistant",
		SessionID: msg.SessionID,
		MessageID: msg.ID,
		Content:   msg.Content,
	})
}

func (s *sseSink) OnNotice(n chatService.Notice) {
	utils.SendSSEChunk(s.w, s.flusher, StreamResponse{
		Event:   "notice",
		Title:   n.Title,
		Content: n.Detail,
	})
}

// HandleStreamRequest runs the cycle for one user message.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, sessionID, userMessage string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	sink := &sseSink{w: w, flusher: flusher}

	err := h.chatSvc.SendMessage(ctx, sessionID, userMessage, sink)
	if err != nil {
		logger.Warnf("[stream] session=%s send failed: %v", sessionID, err)
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Content:   err.Error(),
		})
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})
	return err
}
