package stream

import (
	"encoding/json"
	"strings"
)

const (
	payloadPrefix = "data: "
	terminalToken = "[DONE]"
)

// EventKind classifies a decoded line.
type EventKind int

const (
	// EventNone marks heartbeats, comments and frames without a delta.
	EventNone EventKind = iota
	// EventDelta carries an incremental fragment of assistant text.
	EventDelta
	// EventDone is the terminal marker; no further input should be read.
	EventDone
)

// Event is the typed result of parsing one protocol line.
type Event struct {
	Kind  EventKind
	Delta string
}

// framePayload mirrors the chat-completion delta frame. Absent fields stay
// zero; a frame without content is simply not a delta.
type framePayload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// EventParser classifies decoded lines into events. A payload that fails to
// parse is held back once and retried joined with the following line: a JSON
// string containing a literal newline is decoded as two lines upstream, and
// rejoining recovers the single logical frame. The retry is bounded to one
// held line; a frame that still fails is dropped, never fatal.
type EventParser struct {
	pending    string
	hasPending bool
}

// Parse consumes one decoded line and returns the event it produces.
func (p *EventParser) Parse(line string) Event {
	if p.hasPending {
		pending := p.pending
		p.hasPending = false
		p.pending = ""
		// A newline between JSON tokens rejoins as-is; a newline inside
		// a string literal must be rejoined as its escape sequence to
		// be valid JSON again.
		if ev, ok := parsePayload(pending + "\n" + line); ok {
			return ev
		}
		if ev, ok := parsePayload(pending + `\n` + line); ok {
			return ev
		}
		// Combined frame is genuinely malformed; drop it and let the
		// current line speak for itself.
	}
	return p.classify(line)
}

// Flush discards a held payload that never found its continuation. Called
// at end of stream.
func (p *EventParser) Flush() {
	p.hasPending = false
	p.pending = ""
}

func (p *EventParser) classify(line string) Event {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, ":") {
		return Event{Kind: EventNone}
	}
	if !strings.HasPrefix(line, payloadPrefix) {
		return Event{Kind: EventNone}
	}

	body := strings.TrimSpace(line[len(payloadPrefix):])
	if body == terminalToken {
		return Event{Kind: EventDone}
	}

	if ev, ok := parsePayload(body); ok {
		return ev
	}

	p.pending = body
	p.hasPending = true
	return Event{Kind: EventNone}
}

func parsePayload(body string) (Event, bool) {
	var payload framePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Event{}, false
	}
	if len(payload.Choices) == 0 || payload.Choices[0].Delta.Content == "" {
		return Event{Kind: EventNone}, true
	}
	return Event{Kind: EventDelta, Delta: payload.Choices[0].Delta.Content}, true
}
