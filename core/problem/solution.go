package problem

// Status is the outcome of a solve as seen by the caller.
type Status string

const (
	StatusOptimal    Status = "optimal"
	StatusInfeasible Status = "infeasible"
	StatusUnbounded  Status = "unbounded"
	StatusNotSolved  Status = "not_solved"
)

// Solution is the structured result of one solve. On StatusOptimal the flow
// and activation maps cover every arc of the originating description (zero
// entries included) and Objective is set. On any other status the maps are
// empty and Objective is nil.
type Solution struct {
	Status          Status             `json:"status"`
	Flows           map[ArcKey]float64 `json:"flows"`
	Activations     map[ArcKey]int     `json:"activations"`
	NodeActivations map[string]int     `json:"node_activations"`
	Objective       *float64           `json:"objective,omitempty"`
}

// Optimal reports whether the solution carries values.
func (s Solution) Optimal() bool { return s.Status == StatusOptimal }

// Outflow sums the flow leaving node id.
func (s Solution) Outflow(id string) float64 {
	var sum float64
	for k, v := range s.Flows {
		if k.From == id {
			sum += v
		}
	}
	return sum
}

// Inflow sums the flow entering node id.
func (s Solution) Inflow(id string) float64 {
	var sum float64
	for k, v := range s.Flows {
		if k.To == id {
			sum += v
		}
	}
	return sum
}
