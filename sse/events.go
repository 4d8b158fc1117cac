package sse

import (
	"bytes"
	"fmt"
	"strings"
)

// Event type constants used on the wire. Domain-specific event types belong
// to the application; these cover the delivery layer itself.
const (
	// EventTypeConnected is sent when a client successfully attaches.
	EventTypeConnected = "connected"

	// EventTypeKeepAlive marks the periodic keep-alive comments.
	EventTypeKeepAlive = "keepalive"

	// EventTypeMessage is a generic message event.
	EventTypeMessage = "message"

	// EventTypeComplete is broadcast when a published stream finishes.
	EventTypeComplete = "complete"

	// EventTypeError is broadcast when a published stream fails.
	EventTypeError = "error"
)

// Event is a single server-sent event.
type Event struct {
	// Event is the event type from the "event:" line. Empty for data-only
	// events.
	Event string
	// Data is the payload. Multi-line data is joined with newlines.
	Data string
	// ID is the event ID from the "id:" line.
	ID string
}

// Encode serializes the event into its wire form: optional "id:" and
// "event:" lines, one "data:" line per payload line, and a blank line
// terminator. Reader parses the output back into an equal event, newlines
// in the payload included.
func (e *Event) Encode() []byte {
	var b bytes.Buffer
	if e.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.ID)
	}
	if e.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", e.Event)
	}
	if e.Data == "" {
		b.WriteString("data: \n")
	} else {
		for _, line := range strings.Split(e.Data, "\n") {
			fmt.Fprintf(&b, "data: %s\n", line)
		}
	}
	b.WriteByte('\n')
	return b.Bytes()
}
