package sse

import (
	"fmt"
	"io"
	"strings"
)

// Event types sent by this package. Publishers may use their own.
const (
	EventConnected = "connected"
	EventJob       = "job"
	EventError     = "error"
)

// Event is one message on the stream.
type Event struct {
	// Type is the SSE event name. Empty sends an unnamed message.
	Type string
	Data []byte
	// Final ends the receiving client's stream after delivery.
	Final bool
}

// WriteTo writes e in the text/event-stream format. Multi-line data is
// split across data fields.
func (e Event) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if e.Type != "" {
		fmt.Fprintf(&b, "event: %s\n", e.Type)
	}
	for _, line := range strings.Split(string(e.Data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteByte('\n')
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
