// Package metrics defines the observability events emitted by solves and
// the sinks that record them. Sinks like PromSink and InfluxSink live in
// infra/metrics and register themselves by name; NewMetricsSink returns a
// MultiSink automatically when multiple sinks are configured.
package metrics
