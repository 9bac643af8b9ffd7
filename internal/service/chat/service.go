package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/msfrancis/mediguide/backend/internal/llm"
	chatModel "github.com/msfrancis/mediguide/backend/internal/model/chat"
	"github.com/msfrancis/mediguide/backend/internal/model/profile"
	"github.com/msfrancis/mediguide/backend/internal/service/watchdog"
	"github.com/msfrancis/mediguide/backend/internal/stream"
	"github.com/msfrancis/mediguide/backend/pkg/logger"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrBusy            = errors.New("a request is already in flight")
	ErrCooldown        = errors.New("service is cooling down after a rate limit")
)

// sessionState tracks where a session is in its send/receive cycle.
type sessionState int

const (
	stateIdle sessionState = iota
	stateSending
	stateStreaming
)

// Notice is a user-visible status message, the backend equivalent of a
// toast.
type Notice struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// Sink receives the observable output of one send/receive cycle: the
// assistant message as it grows, and every notice the cycle surfaces.
type Sink interface {
	OnAssistant(msg chatModel.Message)
	OnNotice(n Notice)
}

// Config bounds the session behavior.
type Config struct {
	// HistoryWindow is the number of most recent messages sent upstream.
	HistoryWindow int
	// CooldownDefault applies after a 429 without a retry-after hint.
	CooldownDefault time.Duration
	// WatchdogTimeout arms the inactivity watchdog; zero disables it.
	WatchdogTimeout time.Duration
}

// session is the live state behind one conversation.
type session struct {
	mu            sync.Mutex
	info          chatModel.Session
	messages      []chatModel.Message
	state         sessionState
	cooldownUntil time.Time
	profile       *profile.Profile
	watchdog      *watchdog.Watchdog
}

// Service owns conversation sessions and orchestrates send/receive cycles
// against the chat streaming endpoint.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*session

	client *llm.Client
	cfg    Config
	now    func() time.Time
}

func NewService(client *llm.Client, cfg Config) *Service {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.CooldownDefault <= 0 {
		cfg.CooldownDefault = 15 * time.Second
	}
	return &Service{
		sessions: make(map[string]*session),
		client:   client,
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateSession provisions a conversation for a user.
func (s *Service) CreateSession(_ context.Context, userID string, lang chatModel.Language) (chatModel.Session, error) {
	sess := &session{
		info: chatModel.Session{
			ID:        uuid.NewString(),
			UserID:    userID,
			Language:  lang,
			CreatedAt: s.now().UTC(),
		},
		messages: make([]chatModel.Message, 0, 16),
	}

	s.mu.Lock()
	s.sessions[sess.info.ID] = sess
	s.mu.Unlock()

	return sess.info, nil
}

// AttachWatchdog binds the inactivity callback to a session. The timer arms
// whenever the conversation is left waiting on the user after an assistant
// reply, and fires the callback at most once per quiet spell. A zero
// configured timeout disables the watchdog entirely.
func (s *Service) AttachWatchdog(sessionID string, onInactive func()) error {
	if s.cfg.WatchdogTimeout <= 0 || onInactive == nil {
		return nil
	}
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.watchdog != nil {
		sess.watchdog.Stop()
	}
	sess.watchdog = watchdog.New(s.cfg.WatchdogTimeout, onInactive)
	return nil
}

// CloseSession tears a session down, releasing its watchdog timer.
func (s *Service) CloseSession(sessionID string) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	sess.mu.Lock()
	wd := sess.watchdog
	sess.mu.Unlock()
	if wd != nil {
		wd.Stop()
	}
}

// GetSession returns the session descriptor.
func (s *Service) GetSession(_ context.Context, sessionID string) (chatModel.Session, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return chatModel.Session{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.info, nil
}

// Messages returns a copy of the visible history.
func (s *Service) Messages(_ context.Context, sessionID string) ([]chatModel.Message, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	copied := make([]chatModel.Message, len(sess.messages))
	copy(copied, sess.messages)
	return copied, nil
}

// SetLanguage switches the language tag included in future requests.
func (s *Service) SetLanguage(sessionID string, lang chatModel.Language) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.info.Language = lang
	sess.mu.Unlock()
	return nil
}

// SetProfile attaches the read-only health profile used to build request
// context.
func (s *Service) SetProfile(sessionID string, p *profile.Profile) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.profile = p
	sess.mu.Unlock()
	return nil
}

func (s *Service) lookup(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// SendMessage runs one full send/receive cycle: append the user message,
// call the chat endpoint, fold streamed deltas into a growing assistant
// message, and surface every failure as a notice. The busy gate admits at
// most one cycle per session at a time; a cooldown deadline set by a rate
// limit rejects sends until it passes.
func (s *Service) SendMessage(ctx context.Context, sessionID, content string, sink Sink) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	userMsg, req, err := s.begin(sess, content, sink)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	wd := sess.watchdog
	sess.mu.Unlock()
	if wd != nil {
		wd.Disarm()
	}
	defer s.finish(sess)

	llmStream, err := s.client.StreamChat(ctx, req)
	if err != nil {
		s.failSend(sess, userMsg.ID, err, sink)
		return err
	}
	defer llmStream.Close()

	sess.mu.Lock()
	sess.state = stateStreaming
	sess.mu.Unlock()

	agg := stream.NewAggregator(func(full string) {
		sink.OnAssistant(s.upsertAssistant(sess, full))
	})

	if err := consume(llmStream, agg); err != nil {
		// The partial assistant text stays visible; the optimistic
		// user message is retracted since no full reply followed.
		s.failSend(sess, userMsg.ID, err, sink)
		return err
	}

	logger.Debugf("[chat] session=%s cycle complete, assistant length=%d", sessionID, len(agg.Content()))
	return nil
}

// begin applies the send guards, appends the optimistic user message and
// builds the upstream request. It returns the appended message so failure
// paths can retract it.
func (s *Service) begin(sess *session, content string, sink Sink) (chatModel.Message, llm.Request, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return chatModel.Message{}, llm.Request{}, ErrEmptyMessage
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != stateIdle {
		return chatModel.Message{}, llm.Request{}, ErrBusy
	}
	if now := s.now(); now.Before(sess.cooldownUntil) {
		sink.OnNotice(Notice{
			Title:  "Please wait",
			Detail: "The service is busy right now. Try again in a few seconds.",
		})
		return chatModel.Message{}, llm.Request{}, ErrCooldown
	}

	userMsg := chatModel.Message{
		ID:        uuid.NewString(),
		SessionID: sess.info.ID,
		Role:      chatModel.RoleUser,
		Content:   trimmed,
		CreatedAt: s.now().UTC(),
	}
	sess.messages = append(sess.messages, userMsg)
	sess.state = stateSending

	return userMsg, s.buildRequest(sess), nil
}

// buildRequest takes the last N messages and prepends the profile context to
// the earliest one when that message is from the user. Caller holds sess.mu.
func (s *Service) buildRequest(sess *session) llm.Request {
	window := sess.messages
	if len(window) > s.cfg.HistoryWindow {
		window = window[len(window)-s.cfg.HistoryWindow:]
	}

	userContext := buildProfileContext(sess.profile)

	messages := make([]llm.ChatMessage, 0, len(window))
	for i, m := range window {
		content := m.Content
		if i == 0 && m.Role == chatModel.RoleUser && userContext != "" {
			content += userContext
		}
		messages = append(messages, llm.ChatMessage{Role: m.Role, Content: content})
	}

	return llm.Request{
		Messages: messages,
		Language: string(sess.info.Language),
	}
}

// consume drains the stream into the aggregator until the terminal marker or
// the body ends.
func consume(llmStream *llm.Stream, agg *stream.Aggregator) error {
	for {
		ev, err := llmStream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch ev.Kind {
		case stream.EventDelta:
			agg.Append(ev.Delta)
		case stream.EventDone:
			return nil
		}
	}
}

// upsertAssistant creates the assistant message on the first delta and
// replaces its content in place afterwards, so observers always see one
// consistent full string.
func (s *Service) upsertAssistant(sess *session, full string) chatModel.Message {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if n := len(sess.messages); n > 0 && sess.messages[n-1].Role == chatModel.RoleAssistant {
		sess.messages[n-1].Content = full
		return sess.messages[n-1]
	}

	msg := chatModel.Message{
		ID:        uuid.NewString(),
		SessionID: sess.info.ID,
		Role:      chatModel.RoleAssistant,
		Content:   full,
		CreatedAt: s.now().UTC(),
	}
	sess.messages = append(sess.messages, msg)
	return msg
}

// failSend retracts the optimistic user message, applies the cooldown on
// rate limits and surfaces a single user-visible notice.
func (s *Service) failSend(sess *session, userMsgID string, err error, sink Sink) {
	sess.mu.Lock()
	var rateErr *llm.RateLimitError
	if errors.As(err, &rateErr) {
		wait := s.cfg.CooldownDefault
		if rateErr.HasRetryAfter {
			wait = rateErr.RetryAfter
		}
		sess.cooldownUntil = s.now().Add(wait)
	}

	for i, m := range sess.messages {
		if m.ID == userMsgID {
			sess.messages = append(sess.messages[:i], sess.messages[i+1:]...)
			break
		}
	}
	sess.mu.Unlock()

	logger.Warnf("[chat] session=%s send failed: %v", sess.info.ID, err)
	sink.OnNotice(Notice{
		Title:  "Unable to send message",
		Detail: userFacing(err),
	})
}

// finish clears the busy flag no matter how the cycle ended and re-arms the
// inactivity watchdog when the conversation is waiting on the user.
func (s *Service) finish(sess *session) {
	sess.mu.Lock()
	sess.state = stateIdle
	lastIsAssistant := false
	if n := len(sess.messages); n > 0 {
		lastIsAssistant = sess.messages[n-1].Role == chatModel.RoleAssistant
	}
	wd := sess.watchdog
	sess.mu.Unlock()

	if wd == nil {
		return
	}
	if lastIsAssistant {
		wd.Activity()
	} else {
		wd.Disarm()
	}
}

func userFacing(err error) string {
	if err == nil {
		return "Please try again later."
	}
	return err.Error()
}
