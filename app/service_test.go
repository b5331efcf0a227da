package app

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flownet/config"
	"github.com/kilianp07/flownet/core/factory"
	coremetrics "github.com/kilianp07/flownet/core/metrics"
	"github.com/kilianp07/flownet/core/problem"
	"github.com/kilianp07/flownet/core/runlog"
	"github.com/kilianp07/flownet/core/scenario"
	"github.com/kilianp07/flownet/core/sweep"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.RunLog = runlog.Config{Backend: runlog.BackendJSONL, Path: filepath.Join(t.TempDir(), "runs.jsonl")}
	cfg.Sweep.Workers = 2
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestService_SolveAndQueryRuns(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	run, err := svc.Solve(context.Background(), scenario.Transportation())
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, run.Solution.Status)

	recs, err := svc.Runs.Query(context.Background(), runlog.Query{Problem: "transportation"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, run.ID, recs[0].RunID)
}

func TestService_SolveScenario(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer svc.Close()

	res, err := svc.SolveScenario(context.Background(), "village-supply")
	require.NoError(t, err)
	require.NotNil(t, res.Network)
	assert.Nil(t, res.Model)
	assert.Equal(t, problem.StatusOptimal, res.Network.Solution.Status)

	res, err = svc.SolveScenario(context.Background(), "knapsack")
	require.NoError(t, err)
	require.NotNil(t, res.Model)
	assert.Equal(t, problem.StatusOptimal, res.Model.Status)

	_, err = svc.SolveScenario(context.Background(), "nope")
	assert.Error(t, err)
}

func TestService_Sweep(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweep.Grid = sweep.Grid{PVCapex: []float64{100_000, 140_000}}
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	pts, err := svc.Sweep(context.Background(), scenario.DefaultDESParams(), sweep.Grid{})
	require.NoError(t, err)
	require.Len(t, pts, 2)
	assert.Equal(t, 140_000.0, pts[1].Params.PVCapex)

	pts, err = svc.Sweep(context.Background(), scenario.DefaultDESParams(), sweep.Grid{FeedInTariff: []float64{0, 1}})
	require.NoError(t, err)
	assert.Len(t, pts, 2)
}

func TestService_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Solver.Type = "cplex"
	_, err := New(cfg)
	assert.ErrorContains(t, err, "solver")

	cfg = testConfig(t)
	cfg.Metrics.Sinks = append(cfg.Metrics.Sinks, factory.ModuleConfig{Type: "statsd"})
	_, err = New(cfg)
	assert.ErrorContains(t, err, "metrics sink")

	cfg = testConfig(t)
	cfg.Monitoring.DSN = "not a dsn"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "monitoring")

	cfg = testConfig(t)
	cfg.Publish.Enabled = true
	cfg.Publish.MQTT.Broker = "tcp://127.0.0.1:1"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "mqtt publisher")
}

var sinkCloses atomic.Int32

type closingSink struct{ coremetrics.NopSink }

func (closingSink) Close() { sinkCloses.Add(1) }

func init() {
	_ = coremetrics.RegisterMetricsSink("closing", func(map[string]any) (coremetrics.MetricsSink, error) {
		return closingSink{}, nil
	})
}

func TestService_FailedStartClosesSink(t *testing.T) {
	before := sinkCloses.Load()
	cfg := testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "closing"}}
	cfg.RunLog.Backend = "kafka"
	_, err := New(cfg)
	assert.ErrorContains(t, err, "run log")
	assert.Equal(t, before+1, sinkCloses.Load())

	cfg = testConfig(t)
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "closing"}}
	cfg.Publish.Enabled = true
	cfg.Publish.MQTT.Broker = "tcp://127.0.0.1:1"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "mqtt publisher")
	assert.Equal(t, before+2, sinkCloses.Load())
}

func TestService_ServeMetrics(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()
	assert.NoError(t, svc.ServeMetrics(context.Background()), "no address configured")

	cfg.Metrics.PrometheusAddr = "127.0.0.1:0"
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, svc.ServeMetrics(ctx))
}
