package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/koopa0/quill/internal/stream"
)

// sseWriter adapts mux output to the SSE wire format. The primary text
// channel travels as default (unnamed) data frames; sideband events carry
// their type as the SSE event name, so consumers can distinguish and
// reassemble both channels in receipt order.
//
// Headers and the 200 status are deferred until the first event, so a
// failure before any streaming can still produce a JSON error response.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) start() {
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

// write frames one event. Content is JSON-encoded, so the data field never
// spans multiple lines.
func (s *sseWriter) write(ev stream.Event) error {
	if !s.started {
		s.start()
	}

	data, err := json.Marshal(ev.Content)
	if err != nil {
		return fmt.Errorf("encoding event content: %w", err)
	}

	if ev.Type == stream.EventMessage {
		_, err = fmt.Fprintf(s.w, "data: %s\n\n", data)
	} else {
		_, err = fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", ev.Type, data)
	}
	if err != nil {
		return fmt.Errorf("writing event: %w", err)
	}

	s.flusher.Flush()
	return nil
}

// done writes the clean termination marker. Its absence tells the client
// the stream ended abruptly.
func (s *sseWriter) done() {
	if !s.started {
		s.start()
	}
	fmt.Fprint(s.w, "event: done\ndata: \"\"\n\n")
	s.flusher.Flush()
}
