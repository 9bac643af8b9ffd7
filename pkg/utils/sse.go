package utils

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/msfrancis/mediguide/backend/pkg/logger"
)

// SetupSSEHeaders prepares a response for Server-Sent Events.
func SetupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// SendSSEChunk marshals the payload into one data frame and flushes it.
func SendSSEChunk(w http.ResponseWriter, flusher http.Flusher, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Errorf("failed to marshal sse payload: %v", err)
		return
	}
	SendSSELine(w, flusher, string(data))
}

// SendSSELine writes one raw data line, e.g. the terminal marker.
func SendSSELine(w http.ResponseWriter, flusher http.Flusher, line string) {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", line); err != nil {
		logger.Errorf("failed to write sse frame: %v", err)
		return
	}
	flusher.Flush()
}
