package ws

import (
	"net/http"

	"github.com/gorilla/websocket"

	chatModel "github.com/msfrancis/mediguide/backend/internal/model/chat"
	chatService "github.com/msfrancis/mediguide/backend/internal/service/chat"
	"github.com/msfrancis/mediguide/backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Handler runs chat cycles over a long-lived WebSocket: the client sends one
// request frame per message and receives the growing assistant message plus
// notices until the cycle's end frame.
type Handler struct {
	chatSvc *chatService.Service
}

func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// clientFrame is what the browser sends for one cycle.
type clientFrame struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// serverFrame mirrors the SSE relay's frame shape.
type serverFrame struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	MessageID string `json:"messageId,omitempty"`
	Content   string `json:"content,omitempty"`
	Title     string `json:"title,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
}

// wsSink forwards session output onto the socket. gorilla allows one writer
// at a time; the session invokes the sink strictly in order, so no extra
// locking is needed.
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) OnAssistant(msg chatModel.Message) {
	s.write(serverFrame{
		Event:     "assistant",
		SessionID: msg.SessionID,
		MessageID: msg.ID,
		Content:   msg.Content,
	})
}

func (s *wsSink) OnNotice(n chatService.Notice) {
	s.write(serverFrame{Event: "notice", Title: n.Title, Content: n.Detail})
}

func (s *wsSink) write(frame serverFrame) {
	if err := s.conn.WriteJSON(frame); err != nil {
		logger.Warnf("[ws] write failed: %v", err)
	}
}

// HandleChat upgrades the connection and serves cycles until the client
// disconnects.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}

	for {
		var frame clientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warnf("[ws] read failed: %v", err)
			}
			return
		}

		err := h.chatSvc.SendMessage(r.Context(), frame.SessionID, frame.Message, sink)
		if err != nil {
			sink.write(serverFrame{
				Event:     "error",
				SessionID: frame.SessionID,
				Content:   err.Error(),
			})
		}
		sink.write(serverFrame{
			Event:     "end",
			SessionID: frame.SessionID,
			Finished:  true,
		})
	}
}
