// Package observability provides the shared logging and tracing
// infrastructure for the data access service.
//
// Logging is backed by zap behind the Logger interface so packages do not
// depend on zap directly. Tracing uses OpenTelemetry with an optional OTLP
// gRPC exporter; when disabled, spans are no-ops. Metrics are defined
// per package using prometheus/client_golang.
package observability
