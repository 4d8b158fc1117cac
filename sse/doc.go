// Package sse delivers stream values to browsers over Server-Sent Events.
//
// It bridges the streams package to HTTP: a Publisher feeds the hub through
// Publish, the hub fans events out to connected clients by glob pattern, and
// Handler serves each client connection on a gin route. Reader parses the
// same wire format on the client side and FromReader turns a response body
// into a Publisher.
//
// # Architecture
//
//   - Hub: central router fanning broadcast messages out to clients
//   - Handler: gin endpoint attaching each request to the hub
//   - Server: h2c HTTP server hosting the handler
//   - Component: hub + handler + server under one lifecycle
//   - Publish: drains a streams.Publisher into the hub under windowed demand
//   - Reader/FromReader: client-side wire parsing back into streams
//
// # Usage
//
//	comp := sse.NewComponent(serverCfg, cfg)
//	registry.Register(comp)
//
//	source := observability.Instrument(ctx, encoded, metrics, "jobs")
//	go sse.Publish(ctx, comp.Hub(), "jobs:*", source, 64)
package sse
