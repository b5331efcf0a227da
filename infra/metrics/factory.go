package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/flownet/core/factory"
	coremetrics "github.com/kilianp07/flownet/core/metrics"
)

// InfluxConfig is the conf block of an "influx" sink entry.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// DefaultInfluxBucket is used when an influx sink names no bucket.
const DefaultInfluxBucket = "flownet"

func newInfluxFromConf(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c InfluxConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	if c.URL == "" {
		return nil, errors.New("influx sink: url is required")
	}
	if c.Bucket == "" {
		c.Bucket = DefaultInfluxBucket
	}
	return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
}

func init() {
	builtins := map[string]factory.Factory[coremetrics.MetricsSink]{
		"nop": func(map[string]any) (coremetrics.MetricsSink, error) {
			return coremetrics.NopSink{}, nil
		},
		"prometheus": func(map[string]any) (coremetrics.MetricsSink, error) {
			return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
		},
		"influx": newInfluxFromConf,
	}
	for name, f := range builtins {
		_ = coremetrics.RegisterMetricsSink(name, f)
	}
}
