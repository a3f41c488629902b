package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/automeet/logger"
)

// DefaultKeepAlive is the comment interval that keeps idle streams open
// through proxies.
const DefaultKeepAlive = 30 * time.Second

// ServeOptions tunes one stream.
type ServeOptions struct {
	// Initial is called after the client is registered. Its events are
	// written first, so nothing published in between is missed.
	Initial func() []Event
	// KeepAlive defaults to DefaultKeepAlive.
	KeepAlive time.Duration
}

// Serve streams events for clientID until the request ends, the hub drops
// the client or a Final event is written.
func Serve(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, opts ServeOptions) {
	log := hub.log.WithFields(logger.Fields("client_id", clientID))

	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("response writer does not support streaming")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server's write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("could not clear write deadline", logger.Fields(logger.FieldError, err.Error()))
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	client := NewClient(clientID)
	hub.Register(client)
	defer hub.Unregister(client)

	connected, _ := json.Marshal(map[string]string{"client_id": clientID})
	if _, err := (Event{Type: EventConnected, Data: connected}).WriteTo(w); err != nil {
		return
	}
	if opts.Initial != nil {
		for _, e := range opts.Initial() {
			if _, err := e.WriteTo(w); err != nil {
				return
			}
			if e.Final {
				flusher.Flush()
				return
			}
		}
	}
	flusher.Flush()

	interval := opts.KeepAlive
	if interval <= 0 {
		interval = DefaultKeepAlive
	}
	keepAlive := time.NewTicker(interval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug("sse client disconnected")
			return

		case e, ok := <-client.Events():
			if !ok {
				return
			}
			if _, err := e.WriteTo(w); err != nil {
				return
			}
			flusher.Flush()
			if e.Final {
				return
			}

		case <-keepAlive.C:
			if _, err := fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix()); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
