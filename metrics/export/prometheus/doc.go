// Package prometheus renders goStage client metrics in the Prometheus text
// exposition format.
//
// [NewExporter] reads a [goStage.Client] snapshot on every render. Counter
// names follow gostage_*_total and the single histogram is
// gostage_login_latency_seconds. stagectl prints the rendering with its
// metrics command; long-running embedders mount [Exporter.Handler].
//
// # What this package must NOT do
//
//   - Register in a global registry. Callers mount the Handler.
//   - Mutate client state.
package prometheus
