// Package scenario holds the built-in example problems: flow networks
// expressed as problem.Descriptions and small models that are not networks
// expressed directly as lpmodel.Models.
package scenario

import (
	"fmt"
	"sort"

	"github.com/kilianp07/flownet/core/lpmodel"
	"github.com/kilianp07/flownet/core/problem"
)

// Scenario is a named example. Exactly one of Network and Model is set.
type Scenario struct {
	Name    string
	Summary string
	Network func() problem.Description
	Model   func() (*lpmodel.Model, error)
}

var catalog = map[string]Scenario{
	"transportation": {
		Name:    "transportation",
		Summary: "three warehouses ship to four stores at minimum cost",
		Network: Transportation,
	},
	"facility-location": {
		Name:    "facility-location",
		Summary: "open a subset of five facilities to serve four clients",
		Network: FacilityLocation,
	},
	"energy-dispatch": {
		Name:    "energy-dispatch",
		Summary: "dispatch solar, wind and diesel against a fixed demand",
		Network: EnergyDispatch,
	},
	"village-supply": {
		Name:    "village-supply",
		Summary: "energy centers supply villages over switchable links",
		Network: VillageSupply,
	},
	"des-sizing": {
		Name:    "des-sizing",
		Summary: "size PV and battery for a distributed energy system",
		Model:   func() (*lpmodel.Model, error) { return DESSizing(DefaultDESParams()) },
	},
	"bento": {
		Name:    "bento",
		Summary: "integer production plan under rice and labour limits",
		Model:   Bento,
	},
	"knapsack": {
		Name:    "knapsack",
		Summary: "fractional knapsack with two items",
		Model:   Knapsack,
	},
}

// Get returns the scenario called name.
func Get(name string) (Scenario, error) {
	s, ok := catalog[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q", name)
	}
	return s, nil
}

// List returns all scenarios sorted by name.
func List() []Scenario {
	out := make([]Scenario, 0, len(catalog))
	for _, s := range catalog {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
