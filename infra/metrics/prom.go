package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/flownet/core/metrics"
)

// PromSink records solve events in Prometheus metrics.
type PromSink struct {
	solves   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	size     *prometheus.GaugeVec
	sweeps   prometheus.Counter
}

// NewPromSink registers solve metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered under the same name are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flownet_solves_total",
		Help: "Total number of solves by outcome",
	}, []string{"problem", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flownet_solve_duration_seconds",
		Help:    "Wall-clock time spent building, solving and interpreting a model",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	size := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flownet_model_size",
		Help: "Size of the last model built for a problem",
	}, []string{"problem", "kind"})
	sweeps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flownet_sweep_points_total",
		Help: "Total number of parameter sweep points evaluated",
	})

	var err error
	if solves, err = register(reg, solves); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if size, err = register(reg, size); err != nil {
		return nil, err
	}
	if sweeps, err = register(reg, sweeps); err != nil {
		return nil, err
	}
	return &PromSink{solves: solves, duration: duration, size: size, sweeps: sweeps}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve counts the solve and records its duration and model size.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.solves.WithLabelValues(ev.Problem, ev.Status).Inc()
	s.duration.WithLabelValues(ev.Status).Observe(ev.Duration.Seconds())
	s.size.WithLabelValues(ev.Problem, "variables").Set(float64(ev.Variables))
	s.size.WithLabelValues(ev.Problem, "integers").Set(float64(ev.Integers))
	s.size.WithLabelValues(ev.Problem, "constraints").Set(float64(ev.Constraints))
	return nil
}

// RecordSweep adds the sweep's points to the counter.
func (s *PromSink) RecordSweep(ev coremetrics.SweepEvent) error {
	s.sweeps.Add(float64(ev.Points))
	return nil
}
