// Package observability provides OpenTelemetry tracing and metrics
// integration, including stream delivery instruments.
//
// Tracing:
//
//	cfg := observability.DefaultTracerConfig("relay")
//	tp, err := observability.InitTracer(ctx, &cfg)
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanStreamPublish)
//	defer span.End()
//
// Stream metrics:
//
//	metrics, err := observability.NewStreamMetrics(observability.Meter("relay"))
//	pub := observability.Instrument(ctx, source, metrics, "orders")
//
// Every value, terminal outcome and demand request flowing through pub is
// recorded under the "orders" stream attribute.
//
// Lifecycle:
//
//	comp := observability.NewComponent(observability.Config{Enabled: true})
//	registry.Register(comp)
//
// Health Checks:
//
//	health := observability.NewServiceHealth("relay", "1.0.0")
//	health.AddComponent(checker.CheckHealth(ctx))
package observability
