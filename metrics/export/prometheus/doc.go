// Package prometheus provides Prometheus collectors for memberauth metrics.
//
// [NewPrometheusExporter] accepts an [memberauth.Engine] and exposes an [http.Handler]
// that renders all memberauth counters and histograms in Prometheus text exposition
// format. Counter names are prefixed memberauth_*_total; the single histogram is
// memberauth_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
