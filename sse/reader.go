package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize caps a single wire line. Lines beyond this fail the scan.
const maxLineSize = 1 << 20

// Reader reads server-sent events from a stream.
type Reader interface {
	// Next returns the next event. It returns io.EOF when the stream ends.
	Next() (*Event, error)
	// Close releases the underlying stream.
	Close() error
}

type reader struct {
	scanner *bufio.Scanner
	body    io.ReadCloser
}

// NewReader wraps a readable stream, typically an HTTP response body with
// content type text/event-stream.
func NewReader(body io.ReadCloser) Reader {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &reader{scanner: sc, body: body}
}

// Next returns the next event. Fields other than id, event, and data are
// ignored, as are comment lines. Returns io.EOF when the stream ends.
func (r *reader) Next() (*Event, error) {
	var event Event
	var hasData bool

	for r.scanner.Scan() {
		line := r.scanner.Text()

		// Blank line signals end of event.
		if line == "" {
			if hasData {
				return &event, nil
			}
			continue
		}

		// Comment line.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value := parseLine(line)
		switch field {
		case "data":
			if hasData {
				event.Data += "\n" + value
			} else {
				event.Data = value
				hasData = true
			}
		case "event":
			event.Event = value
		case "id":
			event.ID = value
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Stream ended without a trailing blank line.
	if hasData {
		return &event, nil
	}
	return nil, io.EOF
}

// Close releases the underlying stream.
func (r *reader) Close() error {
	return r.body.Close()
}

// parseLine splits a wire line into field and value, stripping the single
// optional space after the colon.
func parseLine(line string) (field, value string) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return line, ""
	}
	field = line[:idx]
	value = line[idx+1:]
	if value != "" && value[0] == ' ' {
		value = value[1:]
	}
	return field, value
}
