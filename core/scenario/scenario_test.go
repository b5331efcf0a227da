package scenario

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flownet/core/engine"
	"github.com/kilianp07/flownet/core/problem"
	"github.com/kilianp07/flownet/infra/gonumlp"
)

func newEngine() *engine.Engine {
	return engine.New(engine.Config{}, gonumlp.New(gonumlp.Config{}, nil), nil, nil)
}

func TestCatalog(t *testing.T) {
	list := List()
	require.Len(t, list, 7)
	for i, s := range list {
		if i > 0 {
			assert.Less(t, list[i-1].Name, s.Name)
		}
		assert.True(t, (s.Network == nil) != (s.Model == nil), s.Name)
		if s.Network != nil {
			assert.NoError(t, s.Network().Validate(), s.Name)
		}
	}
	_, err := Get("missing")
	assert.Error(t, err)
}

func TestNetworks(t *testing.T) {
	cases := []struct {
		name      string
		objective float64
	}{
		{"transportation", 350},
		{"facility-location", 2860},
		{"energy-dispatch", 80},
		{"village-supply", 1081},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Get(tc.name)
			require.NoError(t, err)
			p := s.Network()
			sol, err := newEngine().Solve(context.Background(), p)
			require.NoError(t, err)
			require.Equal(t, problem.StatusOptimal, sol.Status)
			assert.InDelta(t, tc.objective, *sol.Objective, 1e-5)
			for _, n := range p.Nodes {
				if n.Role == problem.RoleDemand {
					assert.InDelta(t, n.Amount, sol.Inflow(n.ID), 1e-6, n.ID)
				}
			}
		})
	}
}

func TestFacilityLocation_Openings(t *testing.T) {
	sol, err := newEngine().Solve(context.Background(), FacilityLocation())
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1, "D": 1, "E": 0}, sol.NodeActivations)
	assert.Zero(t, sol.Outflow("E"))
}

func TestVillageSupply_SideConstraints(t *testing.T) {
	sol, err := newEngine().Solve(context.Background(), VillageSupply())
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)

	var c3, v4 int
	for k, on := range sol.Activations {
		if k.From == "C3" {
			c3 += on
		}
		if k.To == "V4" {
			v4 += on
		}
		f := sol.Flows[k]
		if on == 1 {
			assert.GreaterOrEqual(t, f, 1-1e-6, k.String())
		} else {
			assert.Zero(t, f, k.String())
		}
	}
	assert.LessOrEqual(t, c3, 1)
	assert.GreaterOrEqual(t, v4, 2)
	assert.InDelta(t, 59, sol.Flows[problem.ArcKey{From: "C2", To: "V4"}], 1e-6)
}

func TestModels(t *testing.T) {
	e := newEngine()

	m, err := Bento()
	require.NoError(t, err)
	sol, err := e.SolveModel(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.InDelta(t, 6000, *sol.Objective, 1e-6)
	assert.LessOrEqual(t, 20*sol.Values["bento_a"]+30*sol.Values["bento_b"], 600.0)

	m, err = Knapsack()
	require.NoError(t, err)
	sol, err = e.SolveModel(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.Equal(t, map[string]float64{"x1": 1, "x2": 1}, sol.Values)
	assert.InDelta(t, 160, *sol.Objective, 1e-9)
}

func TestDESSizing(t *testing.T) {
	p := DefaultDESParams()
	m, err := DESSizing(p)
	require.NoError(t, err)
	sol, err := newEngine().SolveModel(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)

	// PV is cheaper than the grid and exporting does not pay, so PV covers
	// exactly the demand and the battery stays empty.
	yield := p.CapacityFactor * HoursPerYear
	assert.InDelta(t, p.Demand/yield, sol.Values[DESPV], 1e-6)
	assert.InDelta(t, 0, sol.Values[DESImport], 1e-6)
	assert.InDelta(t, 0, sol.Values[DESBattery], 1e-6)
	assert.InDelta(t, p.Demand*p.CRF*p.PVCapex/yield, *sol.Objective, 1e-3)
}

func TestDESSizing_GridOnly(t *testing.T) {
	p := DefaultDESParams()
	p.PVCapex = 500_000
	m, err := DESSizing(p)
	require.NoError(t, err)
	sol, err := newEngine().SolveModel(context.Background(), m)
	require.NoError(t, err)
	require.Equal(t, problem.StatusOptimal, sol.Status)
	assert.InDelta(t, 0, sol.Values[DESPV], 1e-9)
	assert.InDelta(t, p.Demand, sol.Values[DESImport], 1e-6)
	assert.InDelta(t, p.Demand*p.GridPrice, *sol.Objective, 1e-6)
}

func TestDESSizing_ProfitableExportIsUnbounded(t *testing.T) {
	p := DefaultDESParams()
	p.PVCapex, p.CapacityFactor, p.FeedInTariff = 100_000, 0.16, 15
	m, err := DESSizing(p)
	require.NoError(t, err)
	sol, err := newEngine().SolveModel(context.Background(), m)
	require.NoError(t, err)
	assert.Equal(t, problem.StatusUnbounded, sol.Status)
}

func TestDESParams_Validate(t *testing.T) {
	p := DefaultDESParams()
	p.CapacityFactor = 0
	_, err := DESSizing(p)
	assert.Error(t, err)

	p = DefaultDESParams()
	p.Demand = -1
	assert.Error(t, p.Validate())
}
