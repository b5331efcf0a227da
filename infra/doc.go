// Package infra contains technical adapters: the gonum solver engine,
// zerolog logging, Prometheus and InfluxDB metrics, Sentry monitoring, the
// MQTT result publisher and problem file codecs. These packages depend only
// on the interfaces defined in the core packages.
package infra
