package sse

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/kbukum/streamkit/streams"
	"github.com/kbukum/streamkit/streams/streamtest"
)

// recordingBroadcaster captures every broadcast in order.
type recordingBroadcaster struct {
	patterns []string
	payloads [][]byte
}

func (r *recordingBroadcaster) BroadcastToPattern(pattern string, data []byte) {
	r.patterns = append(r.patterns, pattern)
	r.payloads = append(r.payloads, data)
}

func TestPublish_DeliversValuesThenComplete(t *testing.T) {
	rec := &recordingBroadcaster{}
	source := streams.FromSlice([][]byte{
		[]byte("a"), []byte("b"), []byte("c"),
	})

	err := Publish(context.Background(), rec, "jobs:*", source, 8)
	if err != nil {
		t.Fatalf("publish returned %v", err)
	}

	if len(rec.payloads) != 4 {
		t.Fatalf("broadcast %d payloads, want 4 (3 values + end event)", len(rec.payloads))
	}
	for i, want := range []string{"a", "b", "c"} {
		if string(rec.payloads[i]) != want {
			t.Errorf("payload %d = %q, want %q", i, rec.payloads[i], want)
		}
	}
	for i, pattern := range rec.patterns {
		if pattern != "jobs:*" {
			t.Errorf("broadcast %d used pattern %q, want %q", i, pattern, "jobs:*")
		}
	}

	var end StreamEndedEvent
	if err := json.Unmarshal(rec.payloads[3], &end); err != nil {
		t.Fatalf("end event is not valid JSON: %v", err)
	}
	if end.Type != EventTypeComplete {
		t.Errorf("end event type = %q, want %q", end.Type, EventTypeComplete)
	}
	if end.Pattern != "jobs:*" {
		t.Errorf("end event pattern = %q, want %q", end.Pattern, "jobs:*")
	}
	if end.Events != 3 {
		t.Errorf("end event count = %d, want 3", end.Events)
	}
	if end.Error != "" {
		t.Errorf("end event error = %q, want empty", end.Error)
	}
}

func TestPublish_SourceFailure(t *testing.T) {
	boom := errors.New("upstream exploded")
	rec := &recordingBroadcaster{}

	err := Publish(context.Background(), rec, "jobs:1", streams.Fail[[]byte](boom), 8)
	if !errors.Is(err, boom) {
		t.Fatalf("publish returned %v, want %v", err, boom)
	}

	if len(rec.payloads) != 1 {
		t.Fatalf("broadcast %d payloads, want 1 end event", len(rec.payloads))
	}
	var end StreamEndedEvent
	if err := json.Unmarshal(rec.payloads[0], &end); err != nil {
		t.Fatalf("end event is not valid JSON: %v", err)
	}
	if end.Type != EventTypeError {
		t.Errorf("end event type = %q, want %q", end.Type, EventTypeError)
	}
	if end.Error != boom.Error() {
		t.Errorf("end event error = %q, want %q", end.Error, boom.Error())
	}
	if end.Events != 0 {
		t.Errorf("end event count = %d, want 0", end.Events)
	}
}

func TestPublish_MidstreamFailure(t *testing.T) {
	boom := errors.New("source broke mid-stream")
	rec := &recordingBroadcaster{}
	source := streams.FromIterator(context.Background(), &scriptedIterator{
		values: [][]byte{[]byte("a"), []byte("b")},
		err:    boom,
	})

	err := Publish(context.Background(), rec, "jobs:2", source, 8)
	if !errors.Is(err, boom) {
		t.Fatalf("publish returned %v, want %v", err, boom)
	}

	if len(rec.payloads) != 3 {
		t.Fatalf("broadcast %d payloads, want 3 (2 values + end event)", len(rec.payloads))
	}
	var end StreamEndedEvent
	if err := json.Unmarshal(rec.payloads[2], &end); err != nil {
		t.Fatalf("end event is not valid JSON: %v", err)
	}
	if end.Type != EventTypeError {
		t.Errorf("end event type = %q, want %q", end.Type, EventTypeError)
	}
	if end.Events != 2 {
		t.Errorf("end event count = %d, want 2", end.Events)
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	rec := &recordingBroadcaster{}
	pub := streamtest.NewPublisher[[]byte]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Publish(ctx, rec, "jobs:3", pub, 4)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("publish returned %v, want context.Canceled", err)
	}

	// The window is requested up front even though nothing was delivered.
	if got := pub.Subscription().Requested(); got != 4 {
		t.Errorf("requested %d, want 4", got)
	}
	if !pub.Subscription().Cancelled() {
		t.Error("subscription not cancelled on abandon")
	}

	if len(rec.payloads) != 1 {
		t.Fatalf("broadcast %d payloads, want 1 end event", len(rec.payloads))
	}
	var end StreamEndedEvent
	if err := json.Unmarshal(rec.payloads[0], &end); err != nil {
		t.Fatalf("end event is not valid JSON: %v", err)
	}
	if end.Type != EventTypeError {
		t.Errorf("end event type = %q, want %q", end.Type, EventTypeError)
	}
	if end.Error != context.Canceled.Error() {
		t.Errorf("end event error = %q, want %q", end.Error, context.Canceled.Error())
	}
}

// scriptedIterator yields fixed values, then a scripted terminal.
type scriptedIterator struct {
	values [][]byte
	err    error
	i      int
}

func (s *scriptedIterator) Next(context.Context) ([]byte, bool, error) {
	if s.i < len(s.values) {
		v := s.values[s.i]
		s.i++
		return v, true, nil
	}
	if s.err != nil {
		return nil, false, s.err
	}
	return nil, false, nil
}

func (s *scriptedIterator) Close() error { return nil }
