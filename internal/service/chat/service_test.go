package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msfrancis/mediguide/backend/internal/llm"
	chatModel "github.com/msfrancis/mediguide/backend/internal/model/chat"
	"github.com/msfrancis/mediguide/backend/internal/model/profile"
)

// recordingSink captures everything a cycle surfaces.
type recordingSink struct {
	mu       sync.Mutex
	updates  []string
	notices  []Notice
	onUpdate func()
}

func (s *recordingSink) OnAssistant(msg chatModel.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, msg.Content)
	if s.onUpdate != nil {
		s.onUpdate()
	}
}

func (s *recordingSink) OnNotice(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

func frameServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, frame := range frames {
			io.WriteString(w, frame)
			flusher.Flush()
		}
	}))
}

func newTestService(t *testing.T, url string, cfg Config) *Service {
	t.Helper()
	return NewService(llm.NewClient(url, ""), cfg)
}

func createSession(t *testing.T, svc *Service, userID string) chatModel.Session {
	t.Helper()
	session, err := svc.CreateSession(context.Background(), userID, chatModel.LanguageEnglish)
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}
	return session
}

func TestSendMessageStreamsAssistant(t *testing.T) {
	srv := frameServer(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"He\"}}]}\n\n",
		"data: {\"choices\":[{\"delta\":{\"content\":\"llo\"}}]}\n\n",
		"data: [DONE]\n\n",
	)
	defer srv.Close()

	svc := newTestService(t, srv.URL, Config{})
	session := createSession(t, svc, "")
	sess, _ := svc.lookup(session.ID)

	sink := &recordingSink{}
	sink.onUpdate = func() {
		// Deltas only arrive while the session is consuming the body.
		if sess.state != stateStreaming {
			t.Errorf("expected stateStreaming during delta, got %d", sess.state)
		}
	}

	if err := svc.SendMessage(context.Background(), session.ID, "I have a headache", sink); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	messages, _ := svc.Messages(context.Background(), session.ID)
	if len(messages) != 2 {
		t.Fatalf("expected user+assistant, got %d messages", len(messages))
	}
	if messages[0].Role != chatModel.RoleUser || messages[0].Content != "I have a headache" {
		t.Fatalf("unexpected user message: %+v", messages[0])
	}
	if messages[1].Role != chatModel.RoleAssistant || messages[1].Content != "Hello" {
		t.Fatalf("unexpected assistant message: %+v", messages[1])
	}

	// Observers saw the growing message, full string each time.
	if len(sink.updates) != 2 || sink.updates[0] != "He" || sink.updates[1] != "Hello" {
		t.Fatalf("unexpected updates: %q", sink.updates)
	}
	if len(sink.notices) != 0 {
		t.Fatalf("unexpected notices: %+v", sink.notices)
	}
	if sess.state != stateIdle {
		t.Fatalf("expected stateIdle after cycle, got %d", sess.state)
	}
}

func TestSendMessageZeroDeltasCreatesNoAssistant(t *testing.T) {
	srv := frameServer(t, "data: [DONE]\n\n")
	defer srv.Close()

	svc := newTestService(t, srv.URL, Config{})
	session := createSession(t, svc, "")

	if err := svc.SendMessage(context.Background(), session.ID, "hello?", &recordingSink{}); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	messages, _ := svc.Messages(context.Background(), session.ID)
	if len(messages) != 1 || messages[0].Role != chatModel.RoleUser {
		t.Fatalf("expected only the user message, got %+v", messages)
	}
}

func TestSendMessageHistoryWindow(t *testing.T) {
	var captured llm.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, Config{HistoryWindow: 4})
	session := createSession(t, svc, "")
	sess, _ := svc.lookup(session.ID)

	// Seed prior turns beyond the window.
	for i, content := range []string{"one", "two", "three", "four", "five"} {
		role := chatModel.RoleUser
		if i%2 == 1 {
			role = chatModel.RoleAssistant
		}
		sess.messages = append(sess.messages, chatModel.Message{
			ID: content, SessionID: session.ID, Role: role, Content: content,
		})
	}

	if err := svc.SendMessage(context.Background(), session.ID, "six", &recordingSink{}); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	if len(captured.Messages) != 4 {
		t.Fatalf("expected window of 4, got %d", len(captured.Messages))
	}
	want := []string{"three", "four", "five", "six"}
	for i, m := range captured.Messages {
		if m.Content != want[i] {
			t.Fatalf("window[%d]=%q want %q", i, m.Content, want[i])
		}
	}
	if captured.Language != "en" {
		t.Fatalf("expected language tag, got %q", captured.Language)
	}
}

func TestSendMessageProfileContext(t *testing.T) {
	var captured llm.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&captured)
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, Config{})
	session := createSession(t, svc, "user-1")
	svc.SetProfile(session.ID, &profile.Profile{
		UserID:    "user-1",
		FullName:  "Asha Rao",
		Age:       34,
		HeightCM:  160,
		WeightKG:  60,
		Allergies: "peanuts",
	})

	if err := svc.SendMessage(context.Background(), session.ID, "I feel dizzy", &recordingSink{}); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	if len(captured.Messages) != 1 {
		t.Fatalf("expected one message, got %d", len(captured.Messages))
	}
	content := captured.Messages[0].Content
	for _, needle := range []string{
		"I feel dizzy",
		"User's name is Asha",
		"Age: 34 years",
		"BMI: 23.4",
		"ALLERGIES (CRITICAL - NEVER suggest remedies containing these): peanuts",
	} {
		if !strings.Contains(content, needle) {
			t.Fatalf("request content missing %q:\n%s", needle, content)
		}
	}
}

func TestSendMessageRateLimitSetsCooldown(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, srv.URL, Config{CooldownDefault: 15 * time.Second})
	svc.now = func() time.Time { return base }
	session := createSession(t, svc, "")

	sink := &recordingSink{}
	err := svc.SendMessage(context.Background(), session.ID, "hello", sink)
	var rateErr *llm.RateLimitError
	if !errors.As(err, &rateErr) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}

	// The optimistic user message was retracted.
	if messages, _ := svc.Messages(context.Background(), session.ID); len(messages) != 0 {
		t.Fatalf("expected rollback, got %+v", messages)
	}
	if len(sink.notices) != 1 {
		t.Fatalf("expected one notice, got %+v", sink.notices)
	}

	// 4.9s later: still cooling down.
	svc.now = func() time.Time { return base.Add(4900 * time.Millisecond) }
	if err := svc.SendMessage(context.Background(), session.ID, "again", sink); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected ErrCooldown at 4.9s, got %v", err)
	}

	// 5.1s later: the send proceeds.
	svc.now = func() time.Time { return base.Add(5100 * time.Millisecond) }
	if err := svc.SendMessage(context.Background(), session.ID, "again", sink); err != nil {
		t.Fatalf("expected send to proceed at 5.1s, got %v", err)
	}
}

func TestSendMessageServerErrorRollsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad request"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	svc := newTestService(t, srv.URL, Config{})
	session := createSession(t, svc, "")

	sink := &recordingSink{}
	err := svc.SendMessage(context.Background(), session.ID, "hello", sink)
	var srvErr *llm.ServerError
	if !errors.As(err, &srvErr) {
		t.Fatalf("expected ServerError, got %v", err)
	}

	if messages, _ := svc.Messages(context.Background(), session.ID); len(messages) != 0 {
		t.Fatalf("expected rollback, got %+v", messages)
	}
	if len(sink.notices) != 1 || sink.notices[0].Title != "Unable to send message" {
		t.Fatalf("expected failure notice, got %+v", sink.notices)
	}

	sess, _ := svc.lookup(session.ID)
	if sess.state != stateIdle {
		t.Fatalf("busy flag must clear on failure, state=%d", sess.state)
	}
}

func TestWatchdogArmsAfterAssistantReply(t *testing.T) {
	srv := frameServer(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hi\"}}]}\n\n",
		"data: [DONE]\n\n",
	)
	defer srv.Close()

	svc := newTestService(t, srv.URL, Config{WatchdogTimeout: 20 * time.Millisecond})
	session := createSession(t, svc, "user-1")

	var fires atomic.Int32
	if err := svc.AttachWatchdog(session.ID, func() { fires.Add(1) }); err != nil {
		t.Fatalf("AttachWatchdog err: %v", err)
	}

	if err := svc.SendMessage(context.Background(), session.ID, "hello", &recordingSink{}); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}

	// The cycle ended on an assistant reply, so the countdown is armed.
	time.Sleep(120 * time.Millisecond)
	if got := fires.Load(); got != 1 {
		t.Fatalf("expected 1 fire after quiet spell, got %d", got)
	}

	// Closing the session stops the timer for good.
	svc.CloseSession(session.ID)
	time.Sleep(120 * time.Millisecond)
	if got := fires.Load(); got != 1 {
		t.Fatalf("expected no fires after close, got %d", got)
	}
}

func TestSendMessageGuards(t *testing.T) {
	srv := frameServer(t, "data: [DONE]\n\n")
	defer srv.Close()

	svc := newTestService(t, srv.URL, Config{})
	session := createSession(t, svc, "")
	sess, _ := svc.lookup(session.ID)

	if err := svc.SendMessage(context.Background(), session.ID, "   ", &recordingSink{}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	sess.state = stateSending
	if err := svc.SendMessage(context.Background(), session.ID, "hi", &recordingSink{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	sess.state = stateIdle

	if err := svc.SendMessage(context.Background(), "missing", "hi", &recordingSink{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
