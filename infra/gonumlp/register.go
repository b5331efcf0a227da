package gonumlp

import (
	"github.com/kilianp07/flownet/core/factory"
	"github.com/kilianp07/flownet/core/solver"
	"github.com/kilianp07/flownet/infra/logger"
)

// Name is the registry key of this engine.
const Name = "gonum"

func init() {
	_ = solver.Register(Name, func(conf map[string]any) (solver.Solver, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return New(c, logger.New("gonumlp")), nil
	})
}
