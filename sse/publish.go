package sse

import (
	"context"
	"encoding/json"

	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/streams"
)

// StreamEndedEvent is broadcast to matching clients when a published stream
// terminates, carrying the terminal kind and the delivery count.
type StreamEndedEvent struct {
	Type    string `json:"type"`
	Pattern string `json:"pattern"`
	Error   string `json:"error,omitempty"`
	Events  int    `json:"events"`
}

// Publish pumps source into b, delivering each value to the clients matching
// pattern. Demand is windowed: window values are requested up front and
// demand is topped up as values are delivered, so a fast source never runs
// more than window values ahead of the hub. A window of zero or less uses
// a sensible default.
//
// Publish blocks until the stream terminates or ctx is done and broadcasts a
// StreamEndedEvent describing the terminal either way. It returns the stream
// failure, the context error, or nil after completion.
func Publish(ctx context.Context, b Broadcaster, pattern string, source streams.Publisher[[]byte], window int64) error {
	it := streams.ToIterator(source, window)
	defer func() { _ = it.Close() }()

	delivered := 0
	for {
		data, ok, err := it.Next(ctx)
		if err != nil {
			logger.Error("Stream publish failed", map[string]interface{}{
				logger.FieldPattern: pattern,
				logger.FieldError:   err.Error(),
				"events":            delivered,
			})
			b.BroadcastToPattern(pattern, endEvent(pattern, EventTypeError, err, delivered))
			return err
		}
		if !ok {
			logger.Debug("Stream publish complete", map[string]interface{}{
				logger.FieldPattern: pattern,
				"events":            delivered,
			})
			b.BroadcastToPattern(pattern, endEvent(pattern, EventTypeComplete, nil, delivered))
			return nil
		}
		b.BroadcastToPattern(pattern, data)
		delivered++
	}
}

func endEvent(pattern, eventType string, err error, delivered int) []byte {
	ev := StreamEndedEvent{
		Type:    eventType,
		Pattern: pattern,
		Events:  delivered,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	data, _ := json.Marshal(ev)
	return data
}
