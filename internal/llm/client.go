package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/msfrancis/mediguide/backend/internal/stream"
)

// ChatMessage is one turn in the request sent to the chat endpoint.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the wire format of the chat streaming endpoint.
type Request struct {
	Messages []ChatMessage `json:"messages"`
	Language string        `json:"language"`
}

// RateLimitError is returned on a 429 response. RetryAfter carries the
// server-provided backoff hint when present.
type RateLimitError struct {
	RetryAfter    time.Duration
	HasRetryAfter bool
}

func (e *RateLimitError) Error() string {
	return "rate limit exceeded, please try again in a moment"
}

// ServerError is returned for any other non-2xx response.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Client talks to the chat-completion streaming endpoint.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

func NewClient(url, apiKey string) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			// No overall timeout: the response body streams for as
			// long as the model generates.
			Timeout: 0,
		},
	}
}

// StreamChat posts the request and returns the open response stream. Errors
// are classified per the caller's backoff policy: *RateLimitError for 429,
// *ServerError for other non-2xx statuses, and plain transport errors
// otherwise.
func (c *Client) StreamChat(ctx context.Context, req Request) (*Stream, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat endpoint unreachable: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, rateLimitError(resp)
		}
		return nil, &ServerError{
			Status:  resp.StatusCode,
			Message: errorMessage(resp.Body),
		}
	}

	return newStream(resp.Body), nil
}

func rateLimitError(resp *http.Response) *RateLimitError {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return &RateLimitError{}
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds < 0 {
		return &RateLimitError{}
	}
	return &RateLimitError{
		RetryAfter:    time.Duration(seconds * float64(time.Second)),
		HasRetryAfter: true,
	}
}

// errorMessage pulls the "error" field out of a JSON error body, tolerating
// bodies that are not JSON at all.
func errorMessage(body io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}

// Stream reads the newline-delimited frames of one chat response and yields
// typed events. It stops reading input as soon as the terminal marker
// arrives.
type Stream struct {
	body   io.ReadCloser
	dec    *stream.LineDecoder
	parser stream.EventParser
	done   bool
}

func newStream(body io.ReadCloser) *Stream {
	return &Stream{
		body: body,
		dec:  stream.NewLineDecoder(body),
	}
}

// Recv returns the next delta or terminal event. io.EOF signals the stream
// is exhausted, whether by terminal marker or by the body ending. Frames
// that stay malformed after the parser's rejoin retry are skipped here, not
// surfaced.
func (s *Stream) Recv() (stream.Event, error) {
	if s.done {
		return stream.Event{}, io.EOF
	}

	for {
		line, err := s.dec.Next()
		if err == io.EOF {
			s.done = true
			s.parser.Flush()
			return stream.Event{}, io.EOF
		}
		if err != nil {
			return stream.Event{}, fmt.Errorf("read stream chunk: %w", err)
		}

		ev := s.parser.Parse(line)
		switch ev.Kind {
		case stream.EventDelta:
			return ev, nil
		case stream.EventDone:
			s.done = true
			return ev, nil
		}
	}
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}
