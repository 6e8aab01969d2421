// Package telemetry groups the observability packages of mailrules.
//
// # Components
//
//   - logging: slog construction, context fields and email redaction
//   - metrics: Prometheus metrics for evaluation, tie-breaks and caches
//   - tracing: OpenTelemetry provider setup for evaluator spans
package telemetry
