// Package sweep evaluates the DES sizing model over a grid of parameters on
// a bounded worker pool.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/kilianp07/flownet/core/interpret"
	"github.com/kilianp07/flownet/core/logger"
	"github.com/kilianp07/flownet/core/lpmodel"
	"github.com/kilianp07/flownet/core/metrics"
	"github.com/kilianp07/flownet/core/monitoring"
	"github.com/kilianp07/flownet/core/scenario"
)

// Grid lists the values swept for each parameter. An empty list keeps the
// base value.
type Grid struct {
	PVCapex        []float64 `json:"pv_capex"`
	CapacityFactor []float64 `json:"capacity_factor"`
	FeedInTariff   []float64 `json:"feed_in_tariff"`
}

// DefaultGrid is three PV prices by three capacity factors by three tariffs.
func DefaultGrid() Grid {
	return Grid{
		PVCapex:        []float64{100_000, 120_000, 140_000},
		CapacityFactor: []float64{0.10, 0.13, 0.16},
		FeedInTariff:   []float64{5, 10, 15},
	}
}

// Points expands the grid around base in cartesian order: PV capex
// outermost, feed-in tariff innermost.
func (g Grid) Points(base scenario.DESParams) []scenario.DESParams {
	or := func(v []float64, d float64) []float64 {
		if len(v) == 0 {
			return []float64{d}
		}
		return v
	}
	var out []scenario.DESParams
	for _, capex := range or(g.PVCapex, base.PVCapex) {
		for _, cf := range or(g.CapacityFactor, base.CapacityFactor) {
			for _, fit := range or(g.FeedInTariff, base.FeedInTariff) {
				p := base
				p.PVCapex, p.CapacityFactor, p.FeedInTariff = capex, cf, fit
				out = append(out, p)
			}
		}
	}
	return out
}

// ModelSolver solves a bare model. *engine.Engine implements it.
type ModelSolver interface {
	SolveModel(ctx context.Context, m *lpmodel.Model) (interpret.ModelSolution, error)
}

// Point is the outcome at one grid point.
type Point struct {
	Params   scenario.DESParams      `json:"params"`
	Solution interpret.ModelSolution `json:"solution"`
	Error    string                  `json:"error,omitempty"`
}

// Runner evaluates grids.
type Runner struct {
	solver  ModelSolver
	workers int
	sink    metrics.MetricsSink
	log     logger.Logger
}

// New returns a Runner using at most workers concurrent solves.
func New(s ModelSolver, workers int, sink metrics.MetricsSink, log logger.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Runner{solver: s, workers: workers, sink: sink, log: log}
}

type job struct {
	ctx context.Context
	idx int
	out []Point
}

// Run solves every point of g around base. Results are in Points order
// regardless of completion order. Per-point failures are reported in
// Point.Error; Run only fails when the pool cannot be used or ctx ends.
func (r *Runner) Run(ctx context.Context, base scenario.DESParams, g Grid) ([]Point, error) {
	params := g.Points(base)
	out := make([]Point, len(params))
	for i, p := range params {
		out[i].Params = p
	}
	start := time.Now()

	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(r.workers, func(arg interface{}) {
		j := arg.(job)
		// A panicking point is marked failed and the panic continues to
		// the pool's handler, which reports it and releases the point.
		defer func() {
			if p := recover(); p != nil {
				j.out[j.idx].Error = fmt.Sprintf("panic: %v", p)
				panic(p)
			}
		}()
		r.solvePoint(j.ctx, &j.out[j.idx])
		wg.Done()
	}, ants.WithPanicHandler(func(p interface{}) {
		monitoring.Recover(p)
		wg.Done()
	}))
	if err != nil {
		return nil, fmt.Errorf("sweep pool: %w", err)
	}
	defer pool.Release()

	for i := range out {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Invoke(job{ctx: ctx, idx: i, out: out}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("sweep submit: %w", err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ev := metrics.SweepEvent{Points: len(out), Workers: r.workers, Duration: time.Since(start), Time: start}
	for _, p := range out {
		if p.Error != "" {
			ev.Failed++
		}
	}
	if rec, ok := r.sink.(metrics.SweepRecorder); ok {
		if err := rec.RecordSweep(ev); err != nil {
			r.log.Warnf("record sweep: %v", err)
		}
	}
	r.log.Infof("sweep of %d points finished in %s (%d failed)", ev.Points, ev.Duration, ev.Failed)
	return out, nil
}

func (r *Runner) solvePoint(ctx context.Context, pt *Point) {
	m, err := scenario.DESSizing(pt.Params)
	if err == nil {
		pt.Solution, err = r.solver.SolveModel(ctx, m)
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.log.Warnf("sweep point capex=%v cf=%v fit=%v: %v", pt.Params.PVCapex, pt.Params.CapacityFactor, pt.Params.FeedInTariff, err)
		}
		pt.Error = err.Error()
	}
}
