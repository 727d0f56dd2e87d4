package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// changeEvent is streamed for each committed mutation of a store.
type changeEvent struct {
	Persistent bool `json:"persistent"`
	Ignored    bool `json:"ignored"`
	Size       int  `json:"size"`
}

// eventBuffer bounds how far a slow client may fall behind before events are dropped.
const eventBuffer = 16

// storeEvents streams change notifications as server-sent events.
func (s *Server) storeEvents(w http.ResponseWriter, r *http.Request) {
	store, ok := s.lookup(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	name := chi.URLParam(r, "name")
	events := make(chan changeEvent, eventBuffer)
	unsubscribe := store.Subscribe(func() {
		ev := changeEvent{
			Persistent: store.IsLastChangePersistent(),
			Ignored:    store.IsLastChangeIgnored(),
			Size:       store.Root().Len(),
		}
		select {
		case events <- ev:
		default:
			s.logger.Debug("event dropped", "store", name)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("event encode failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
