package chi

import (
	"fmt"
	"net/http"
	"strings"
)

// EndMarker is the data of the final event of every stream.
const EndMarker = "[END]"

// sseWriter writes Server-Sent Events and flushes after each one.
type sseWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) *sseWriter {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, rc: http.NewResponseController(w)}
}

// Data sends an unnamed event. Multi-line payloads become one data line each.
func (s *sseWriter) Data(payload string) error {
	return s.send("", payload)
}

// Event sends a named event.
func (s *sseWriter) Event(name, payload string) error {
	return s.send(name, payload)
}

// End sends the end marker.
func (s *sseWriter) End() error {
	return s.send("", EndMarker)
}

func (s *sseWriter) send(event, payload string) error {
	var b strings.Builder
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(payload, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')

	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("flush event: %w", err)
	}
	return nil
}
