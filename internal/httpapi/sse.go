package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// The stream pushes the full request list as a named event whenever it
// changes, and a comment line otherwise so idle connections survive
// proxies that reap quiet streams.
const (
	streamEventName = "requests"
	streamInterval  = 1 * time.Second
)

func (s *Server) handleRequestStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var last []byte
	send := func() bool {
		payload, err := json.Marshal(s.jobs.Jobs())
		if err != nil {
			return false
		}
		if bytes.Equal(payload, last) {
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return false
			}
			flusher.Flush()
			return true
		}
		last = payload
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", streamEventName, payload); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}
