package scenario

import (
	"fmt"
	"math"

	"github.com/kilianp07/flownet/core/lpmodel"
)

// HoursPerYear converts a capacity factor into annual energy per kW.
const HoursPerYear = 24 * 365

// DESParams describes a single-node distributed energy system: an annual
// demand met by PV, a battery and the grid, with surplus PV sold back.
type DESParams struct {
	// Demand is the annual electricity demand in kWh.
	Demand float64 `json:"demand"`
	// CapacityFactor of the PV array, between 0 and 1.
	CapacityFactor float64 `json:"capacity_factor"`
	// CRF is the capital recovery factor annualising capital costs.
	CRF float64 `json:"crf"`
	// PVCapex in currency per kW.
	PVCapex float64 `json:"pv_capex"`
	// BatteryCapex in currency per kWh.
	BatteryCapex float64 `json:"battery_capex"`
	// GridPrice in currency per imported kWh.
	GridPrice float64 `json:"grid_price"`
	// FeedInTariff in currency per exported kWh.
	FeedInTariff float64 `json:"feed_in_tariff"`
	// ChargeEfficiency and DischargeEfficiency of the battery.
	ChargeEfficiency    float64 `json:"charge_efficiency"`
	DischargeEfficiency float64 `json:"discharge_efficiency"`
}

// DefaultDESParams is a household-scale system where exporting does not
// pay for itself.
func DefaultDESParams() DESParams {
	return DESParams{
		Demand:              10_000,
		CapacityFactor:      0.13,
		CRF:                 0.0802,
		PVCapex:             120_000,
		BatteryCapex:        40_000,
		GridPrice:           9,
		FeedInTariff:        5,
		ChargeEfficiency:    0.95,
		DischargeEfficiency: 0.95,
	}
}

// Validate rejects parameters that cannot describe a physical system.
func (p DESParams) Validate() error {
	checks := []struct {
		name string
		v    float64
	}{
		{"demand", p.Demand},
		{"crf", p.CRF},
		{"pv_capex", p.PVCapex},
		{"battery_capex", p.BatteryCapex},
		{"grid_price", p.GridPrice},
		{"feed_in_tariff", p.FeedInTariff},
	}
	for _, c := range checks {
		if c.v < 0 || math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return fmt.Errorf("des: %s must be a non-negative number, got %v", c.name, c.v)
		}
	}
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"capacity_factor", p.CapacityFactor},
		{"charge_efficiency", p.ChargeEfficiency},
		{"discharge_efficiency", p.DischargeEfficiency},
	} {
		if !(c.v > 0 && c.v <= 1) {
			return fmt.Errorf("des: %s must be in (0, 1], got %v", c.name, c.v)
		}
	}
	return nil
}

// DES variable names.
const (
	DESPV        = "pv_kw"
	DESBattery   = "battery_kwh"
	DESImport    = "grid_import_kwh"
	DESExport    = "grid_export_kwh"
	DESCharge    = "battery_charge_kwh"
	DESDischarge = "battery_discharge_kwh"
)

// DESSizing builds the annualised cost model of p. When exporting earns
// more per kW than the PV costs, the model is unbounded.
func DESSizing(p DESParams) (*lpmodel.Model, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := lpmodel.New("des-sizing")
	ids := make(map[string]lpmodel.VarID, 6)
	for _, name := range []string{DESPV, DESBattery, DESImport, DESExport, DESCharge, DESDischarge} {
		id, err := m.AddVariable(name, 0, math.Inf(1), lpmodel.Continuous)
		if err != nil {
			return nil, err
		}
		ids[name] = id
	}
	pvYield := p.CapacityFactor * HoursPerYear
	t := func(name string, c float64) lpmodel.Term { return lpmodel.Term{Var: ids[name], Coef: c} }

	constraints := []struct {
		name  string
		terms []lpmodel.Term
		op    lpmodel.Op
		rhs   float64
	}{
		{"energy_balance", []lpmodel.Term{
			t(DESPV, pvYield), t(DESImport, 1), t(DESDischarge, 1), t(DESCharge, -1), t(DESExport, -1),
		}, lpmodel.EQ, p.Demand},
		{"charge_limit", []lpmodel.Term{t(DESCharge, 1), t(DESBattery, -p.ChargeEfficiency)}, lpmodel.LE, 0},
		{"discharge_limit", []lpmodel.Term{t(DESDischarge, 1), t(DESBattery, -p.DischargeEfficiency)}, lpmodel.LE, 0},
		{"discharge_losses", []lpmodel.Term{t(DESDischarge, 1), t(DESCharge, -p.DischargeEfficiency)}, lpmodel.LE, 0},
		{"export_limit", []lpmodel.Term{t(DESExport, 1), t(DESPV, -pvYield)}, lpmodel.LE, 0},
	}
	for _, c := range constraints {
		if err := m.AddConstraint(c.name, c.terms, c.op, c.rhs); err != nil {
			return nil, err
		}
	}
	err := m.SetObjective(lpmodel.Minimize, []lpmodel.Term{
		t(DESPV, p.CRF*p.PVCapex),
		t(DESBattery, p.CRF*p.BatteryCapex),
		t(DESImport, p.GridPrice),
		t(DESExport, -p.FeedInTariff),
	}, 0)
	return m, err
}

// Bento plans integer production of two lunch boxes against 15 kg of rice
// and 600 minutes of labour.
func Bento() (*lpmodel.Model, error) {
	m := lpmodel.New("bento")
	a, err := m.AddVariable("bento_a", 0, math.Inf(1), lpmodel.Integer)
	if err != nil {
		return nil, err
	}
	b, err := m.AddVariable("bento_b", 0, math.Inf(1), lpmodel.Integer)
	if err != nil {
		return nil, err
	}
	if err := m.AddConstraint("rice_g", []lpmodel.Term{{Var: a, Coef: 200}, {Var: b, Coef: 150}}, lpmodel.LE, 15_000); err != nil {
		return nil, err
	}
	if err := m.AddConstraint("labour_min", []lpmodel.Term{{Var: a, Coef: 20}, {Var: b, Coef: 30}}, lpmodel.LE, 600); err != nil {
		return nil, err
	}
	return m, m.SetObjective(lpmodel.Maximize, []lpmodel.Term{{Var: a, Coef: 200}, {Var: b, Coef: 300}}, 0)
}

// Knapsack packs fractions of two items into a capacity of 50.
func Knapsack() (*lpmodel.Model, error) {
	m := lpmodel.New("knapsack")
	x1, err := m.AddVariable("x1", 0, 1, lpmodel.Continuous)
	if err != nil {
		return nil, err
	}
	x2, err := m.AddVariable("x2", 0, 1, lpmodel.Continuous)
	if err != nil {
		return nil, err
	}
	if err := m.AddConstraint("weight", []lpmodel.Term{{Var: x1, Coef: 10}, {Var: x2, Coef: 20}}, lpmodel.LE, 50); err != nil {
		return nil, err
	}
	return m, m.SetObjective(lpmodel.Maximize, []lpmodel.Term{{Var: x1, Coef: 60}, {Var: x2, Coef: 100}}, 0)
}
