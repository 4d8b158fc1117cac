package sse

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/kbukum/streamkit/streams"
)

// FromReader exposes an event stream as a demand-driven publisher. Each unit
// of demand delivers one event; like the other pull sources it reads one
// event ahead so exhaustion completes the stream in the same call that
// delivers the final event.
//
// The publisher assumes ownership of r: the reader is closed exactly once
// when the subscription ends, whether by completion, failure, or
// cancellation. A read failure terminates the stream with OnError.
func FromReader(r Reader) streams.Publisher[*Event] {
	return streams.FromIterator(context.Background(), &readerIterator{r: r})
}

// readerIterator adapts a Reader to the streams pull shape. The context is
// ignored: reads block on the underlying stream and are released by closing
// it.
type readerIterator struct {
	r Reader
}

func (it *readerIterator) Next(context.Context) (*Event, bool, error) {
	ev, err := it.r.Next()
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ev, true, nil
}

func (it *readerIterator) Close() error {
	return it.r.Close()
}

// DataLines flattens each event's data block into its individual lines,
// delivered one per unit of downstream demand. Events with an empty payload
// contribute nothing to the output.
func DataLines(events streams.Publisher[*Event]) streams.Publisher[string] {
	return streams.FlattenMap(events, func(e *Event) streams.Batch[string] {
		if e == nil || e.Data == "" {
			return streams.BatchOf[string]()
		}
		return streams.BatchOf(strings.Split(e.Data, "\n")...)
	})
}
