// Package observe provides telemetry for guarded resources: an
// Observer bundling an OpenTelemetry tracer and meter with a
// structured JSON logger, operation metrics with a fallback dimension,
// and an Instrumentation helper that wraps guarded operations in spans
// and metric recordings.
package observe
