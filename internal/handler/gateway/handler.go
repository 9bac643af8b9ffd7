package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/msfrancis/mediguide/backend/internal/llm"
	gatewayService "github.com/msfrancis/mediguide/backend/internal/service/gateway"
	"github.com/msfrancis/mediguide/backend/pkg/logger"
	"github.com/msfrancis/mediguide/backend/pkg/utils"
)

// Handler exposes the chat gateway: it accepts {messages, language} and
// relays the upstream model stream as newline-delimited delta frames,
// terminated by the [DONE] marker.
type Handler struct {
	gw *gatewayService.Service
}

func New(gw *gatewayService.Service) *Handler {
	return &Handler{gw: gw}
}

// deltaFrame is the wire shape of one streamed chunk.
type deltaFrame struct {
	Choices []deltaChoice `json:"choices"`
}

type deltaChoice struct {
	Delta deltaContent `json:"delta"`
}

type deltaContent struct {
	Content string `json:"content"`
}

// HandleChat serves POST /api/chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var req llm.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "messages are required")
		return
	}

	reader, err := h.gw.StreamCompletion(r.Context(), req.Messages, req.Language)
	if err != nil {
		logger.Errorf("[gateway] upstream stream failed: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "upstream model unavailable")
		return
	}
	defer reader.Close()

	utils.SetupSSEHeaders(w)

	for {
		chunk, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Errorf("[gateway] upstream chunk failed: %v", err)
			break
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}

		frame := deltaFrame{Choices: []deltaChoice{{Delta: deltaContent{Content: chunk.Content}}}}
		utils.SendSSEChunk(w, flusher, frame)
	}

	utils.SendSSELine(w, flusher, "[DONE]")
}
