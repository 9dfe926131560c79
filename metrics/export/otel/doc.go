// Package otel publishes goStage client metrics through OpenTelemetry.
//
// [NewOTelExporter] registers one Int64ObservableCounter per client counter.
// The login latency histogram becomes a cumulative bucket gauge labeled by
// "le" and a count gauge. A single callback reads
// [goStage.Client.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
