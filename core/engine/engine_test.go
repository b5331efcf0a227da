package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flownet/core/lpmodel"
	"github.com/kilianp07/flownet/core/metrics"
	"github.com/kilianp07/flownet/core/monitoring"
	"github.com/kilianp07/flownet/core/mqtt"
	"github.com/kilianp07/flownet/core/problem"
	"github.com/kilianp07/flownet/core/runlog"
	"github.com/kilianp07/flownet/core/solver"
	"github.com/kilianp07/flownet/infra/gonumlp"
)

type captureSink struct {
	events []metrics.SolveEvent
	err    error
}

func (c *captureSink) RecordSolve(ev metrics.SolveEvent) error {
	c.events = append(c.events, ev)
	return c.err
}

func newEngine(sink metrics.MetricsSink) *Engine {
	return New(Config{}, gonumlp.New(gonumlp.Config{}, nil), sink, nil)
}

func checkTransport(t *testing.T, p problem.Description, sol problem.Solution) {
	t.Helper()
	for _, n := range p.Nodes {
		switch n.Role {
		case problem.RoleSupply:
			assert.LessOrEqual(t, sol.Outflow(n.ID), n.Amount+1e-6, n.ID)
		case problem.RoleDemand:
			assert.InDelta(t, n.Amount, sol.Inflow(n.ID), 1e-6, n.ID)
		}
	}
	assert.Len(t, sol.Flows, len(p.Arcs))
	require.NotNil(t, sol.Objective)
	assert.InDelta(t, recomputed(p, sol), *sol.Objective, 1e-6)
}

func TestSolve_TransportationBalanced(t *testing.T) {
	p := transportation([]float64{70, 50, 30}, []float64{40, 30, 20, 60})
	sol, err := newEngine(nil).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	checkTransport(t, p, sol)
	assert.InDelta(t, 350, *sol.Objective, 1e-6)
	assert.InDelta(t, 30, sol.Flows[problem.ArcKey{From: "W2", To: "S2"}], 1e-6)
}

func TestSolve_TransportationShortOfSupply(t *testing.T) {
	p := transportation([]float64{50, 40, 30}, []float64{40, 30, 20, 60})
	sol, err := newEngine(nil).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, problem.StatusInfeasible, sol.Status)
	assert.Empty(t, sol.Flows)
	assert.Nil(t, sol.Objective)
}

func TestSolve_TransportationSurplus(t *testing.T) {
	p := transportation([]float64{70, 50, 30}, []float64{40, 30, 20, 30})
	sol, err := newEngine(nil).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	checkTransport(t, p, sol)
	assert.InDelta(t, 250, *sol.Objective, 1e-6)
}

func TestSolve_ActivationThreshold(t *testing.T) {
	sol, err := newEngine(nil).Solve(context.Background(), gatedArc(100, 1, -1))
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	k := problem.ArcKey{From: "S", To: "D"}
	assert.Equal(t, 1, sol.Activations[k])
	assert.InDelta(t, 100, sol.Flows[k], 1e-6)
	assert.InDelta(t, -100, *sol.Objective, 1e-6)

	// With a positive cost nothing should flow and the arc stays off.
	sol, err = newEngine(nil).Solve(context.Background(), gatedArc(100, 1, 3))
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.Equal(t, 0, sol.Activations[k])
	assert.Equal(t, 0.0, sol.Flows[k])
}

func TestSolve_ThresholdForbidsSmallFlows(t *testing.T) {
	p := gatedArc(100, 5, -1)
	// At most 3 units may move, below the threshold of 5.
	p.Constraints = []problem.LinearConstraint{{
		Name:     "cap_small",
		Terms:    []problem.Term{{Var: problem.Flow("S", "D"), Coef: 1}},
		Relation: problem.RelLE,
		RHS:      3,
	}}
	sol, err := newEngine(nil).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	k := problem.ArcKey{From: "S", To: "D"}
	assert.Equal(t, 0, sol.Activations[k])
	assert.Equal(t, 0.0, sol.Flows[k])
}

func TestSolve_SmallFlowOnWideArcPaysFixedCost(t *testing.T) {
	// The relaxation puts active near flow/10000, inside the integrality
	// tolerance.
	p := problem.Description{
		Name:  "wide",
		Sense: problem.Minimize,
		Nodes: []problem.Node{
			{ID: "S", Role: problem.RoleSupply, Amount: 10000},
			{ID: "D", Role: problem.RoleDemand, Amount: 0.005, Relation: problem.RelGE},
		},
		Arcs: []problem.Arc{{From: "S", To: "D", Cost: 1, Activation: true, FixedCost: 10}},
	}
	sol, err := newEngine(nil).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	k := problem.ArcKey{From: "S", To: "D"}
	assert.InDelta(t, 0.005, sol.Flows[k], 1e-9)
	assert.Equal(t, 1, sol.Activations[k])
	require.NotNil(t, sol.Objective)
	assert.InDelta(t, 10.005, *sol.Objective, 1e-6)
}

func TestSolve_ClosedHubCarriesNothing(t *testing.T) {
	p := problem.Description{
		Name:  "hub",
		Sense: problem.Minimize,
		Nodes: []problem.Node{
			{ID: "S", Role: problem.RoleSupply, Amount: 50},
			{ID: "T", Role: problem.RoleTransshipment, ActivationCost: problem.Float(100)},
			{ID: "D", Role: problem.RoleDemand, Amount: 30},
		},
		Arcs: []problem.Arc{{From: "S", To: "T", Cost: 1}, {From: "T", To: "D", Cost: 1}},
	}
	sol, err := newEngine(nil).Solve(context.Background(), p)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.Equal(t, 1, sol.NodeActivations["T"])
	assert.InDelta(t, 30, sol.Inflow("T"), 1e-6)
	require.NotNil(t, sol.Objective)
	assert.InDelta(t, 160, *sol.Objective, 1e-6)

	// Without the route through T the demand cannot be met.
	p.Constraints = []problem.LinearConstraint{{
		Name:     "keep_closed",
		Terms:    []problem.Term{{Var: problem.Open("T"), Coef: 1}},
		Relation: problem.RelEQ,
		RHS:      0,
	}}
	sol, err = newEngine(nil).Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, problem.StatusInfeasible, sol.Status)
}

func TestSolve_Unbounded(t *testing.T) {
	sol, err := newEngine(nil).Solve(context.Background(), circulation())
	require.NoError(t, err)
	assert.Equal(t, problem.StatusUnbounded, sol.Status)
	assert.Empty(t, sol.Flows)
	assert.Nil(t, sol.Objective)

	m := lpmodel.New("ray")
	x, err := m.AddVariable("x", 0, math.Inf(1), lpmodel.Continuous)
	require.NoError(t, err)
	require.NoError(t, m.SetObjective(lpmodel.Maximize, []lpmodel.Term{{Var: x, Coef: 2}}, 0))
	ms, err := newEngine(nil).SolveModel(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, problem.StatusUnbounded, ms.Status)
	assert.Empty(t, ms.Values)
}

func TestSolve_ValidationError(t *testing.T) {
	sink := &captureSink{}
	e := newEngine(sink)
	runs := runlog.NewMemoryStore()
	e.SetRunLog(runs)

	p := transportation([]float64{70}, []float64{40})
	p.Arcs = append(p.Arcs, p.Arcs[0])
	_, err := e.Solve(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, problem.ErrValidation))

	require.Len(t, sink.events, 1)
	assert.Equal(t, "invalid", sink.events[0].Status)
	recs, err := runs.Query(context.Background(), runlog.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.NotEmpty(t, recs[0].Error)
}

func TestSolve_ErrorsPropagate(t *testing.T) {
	p := transportation([]float64{70}, []float64{40})
	cases := []error{solver.ErrTimedOut, solver.ErrSolverUnavailable}
	for _, want := range cases {
		s := solver.Func(func(context.Context, *lpmodel.Model, solver.Options) (solver.RawResult, error) {
			return solver.RawResult{}, want
		})
		sink := &captureSink{}
		_, err := New(Config{}, s, sink, nil).Solve(context.Background(), p)
		assert.ErrorIs(t, err, want)
		require.Len(t, sink.events, 1)
		assert.NotEqual(t, "optimal", sink.events[0].Status)
	}

	_, err := New(Config{}, nil, nil, nil).Solve(context.Background(), p)
	assert.ErrorIs(t, err, solver.ErrSolverUnavailable)
}

func TestSolve_PassesTimeLimit(t *testing.T) {
	var got solver.Options
	s := solver.Func(func(_ context.Context, _ *lpmodel.Model, opts solver.Options) (solver.RawResult, error) {
		got = opts
		return solver.RawResult{Status: solver.StatusNotSolved, Reason: "stopped"}, nil
	})
	sol, err := New(Config{TimeLimit: 3 * time.Second}, s, nil, nil).Solve(context.Background(), transportation([]float64{70}, []float64{40}))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, got.TimeLimit)
	assert.Equal(t, problem.StatusNotSolved, sol.Status)
	assert.Nil(t, sol.Objective)
}

func TestRun_RecordsMetricsAndRunLog(t *testing.T) {
	sink := &captureSink{err: errors.New("sink down")}
	e := newEngine(sink)
	runs := runlog.NewMemoryStore()
	e.SetRunLog(runs)

	p := transportation([]float64{70, 50, 30}, []float64{40, 30, 20, 60})
	run, err := e.Run(context.Background(), p)
	require.NoError(t, err, "sink failures must not fail the solve")
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 1, run.Nodes)

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, run.ID, ev.RunID)
	assert.Equal(t, "optimal", ev.Status)
	assert.Equal(t, 12, ev.Variables)
	assert.Equal(t, 7, ev.Constraints)
	assert.Zero(t, ev.Integers)

	recs, err := runs.Query(context.Background(), runlog.Query{Problem: "transportation"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, run.ID, recs[0].RunID)
	assert.Equal(t, problem.StatusOptimal, recs[0].Status)
	require.NotNil(t, recs[0].Solution)
	assert.Equal(t, run.Solution, *recs[0].Solution)
}

func TestSolve_Deterministic(t *testing.T) {
	e := newEngine(nil)
	p := transportation([]float64{70, 50, 30}, []float64{40, 30, 20, 30})
	first, err := e.Solve(context.Background(), p)
	require.NoError(t, err)
	second, err := e.Solve(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSolveModel_Knapsack(t *testing.T) {
	m := lpmodel.New("knapsack")
	x1, err := m.AddVariable("x1", 0, 1, lpmodel.Continuous)
	require.NoError(t, err)
	x2, err := m.AddVariable("x2", 0, 1, lpmodel.Continuous)
	require.NoError(t, err)
	require.NoError(t, m.AddConstraint("weight", []lpmodel.Term{{Var: x1, Coef: 10}, {Var: x2, Coef: 20}}, lpmodel.LE, 50))
	require.NoError(t, m.SetObjective(lpmodel.Maximize, []lpmodel.Term{{Var: x1, Coef: 60}, {Var: x2, Coef: 100}}, 0))

	sink := &captureSink{}
	sol, err := newEngine(sink).SolveModel(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.InDelta(t, 1, sol.Values["x1"], 1e-9)
	assert.InDelta(t, 1, sol.Values["x2"], 1e-9)
	assert.InDelta(t, 160, *sol.Objective, 1e-9)
	require.Len(t, sink.events, 1)
	assert.Equal(t, "knapsack", sink.events[0].Problem)

	_, err = newEngine(nil).SolveModel(context.Background(), nil)
	assert.ErrorIs(t, err, problem.ErrValidation)
}

type capturePublisher struct {
	msgs []mqtt.Message
	err  error
}

func (c *capturePublisher) Publish(_ context.Context, msg mqtt.Message) error {
	c.msgs = append(c.msgs, msg)
	return c.err
}

func (c *capturePublisher) Close() {}

func TestRun_Publishes(t *testing.T) {
	pub := &capturePublisher{err: mqtt.ErrPublishFailed}
	e := newEngine(nil)
	e.SetPublisher(pub)

	run, err := e.Run(context.Background(), transportation([]float64{70, 50, 30}, []float64{40, 30, 20, 60}))
	require.NoError(t, err, "publish failures must not fail the solve")
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, run.ID, pub.msgs[0].RunID)
	assert.Equal(t, "transportation", pub.msgs[0].Problem)
	assert.Equal(t, run.Solution, pub.msgs[0].Solution)

	p := transportation([]float64{70}, []float64{40})
	p.Sense = "sideways"
	_, err = e.Run(context.Background(), p)
	require.Error(t, err)
	assert.Len(t, pub.msgs, 1, "rejected descriptions are not published")
}

type captureMonitor struct {
	monitoring.NopMonitor
	errs []error
	tags []map[string]string
}

func (c *captureMonitor) CaptureException(err error, tags map[string]string) {
	c.errs = append(c.errs, err)
	c.tags = append(c.tags, tags)
}

func TestSolve_UnexpectedErrorsAreReported(t *testing.T) {
	mon := &captureMonitor{}
	monitoring.Init(mon)
	t.Cleanup(func() { monitoring.Init(nil) })

	boom := errors.New("lu factorization failed")
	for _, want := range []error{boom, solver.ErrTimedOut, context.Canceled} {
		s := solver.Func(func(context.Context, *lpmodel.Model, solver.Options) (solver.RawResult, error) {
			return solver.RawResult{}, want
		})
		_, err := New(Config{}, s, nil, nil).Solve(context.Background(), transportation([]float64{70}, []float64{40}))
		assert.ErrorIs(t, err, want)
	}
	require.Len(t, mon.errs, 1)
	assert.Equal(t, boom, mon.errs[0])
	assert.Equal(t, "transportation", mon.tags[0]["problem"])
}
