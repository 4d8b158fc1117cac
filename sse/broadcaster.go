package sse

// Broadcaster delivers data to connected clients selected by pattern.
// Publishers depend on this abstraction rather than on a concrete Hub.
type Broadcaster interface {
	// BroadcastToPattern sends data to all clients whose ID matches the
	// glob pattern, e.g. "stream:*" or "stream:abc123".
	BroadcastToPattern(pattern string, data []byte)
}
