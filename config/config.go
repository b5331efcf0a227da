// Package config loads the flownet configuration file.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/flownet/core/interpret"
	"github.com/kilianp07/flownet/core/metrics"
	"github.com/kilianp07/flownet/core/runlog"
	"github.com/kilianp07/flownet/core/sweep"
	"github.com/kilianp07/flownet/infra/gonumlp"
	"github.com/kilianp07/flownet/infra/monitoring"
	"github.com/kilianp07/flownet/infra/mqtt"
)

type Config struct {
	Solver     SolverConfig      `json:"solver"`
	Interpret  InterpretConfig   `json:"interpret"`
	Sweep      SweepConfig       `json:"sweep"`
	RunLog     runlog.Config     `json:"runlog"`
	Metrics    metrics.Config    `json:"metrics"`
	Publish    PublishConfig     `json:"publish"`
	Monitoring monitoring.Config `json:"monitoring"`
}

// SolverConfig selects the solver engine. Conf is decoded by the engine's
// factory, e.g. tolerance, integrality_tolerance and max_nodes for gonum.
type SolverConfig struct {
	Type string `json:"type" validate:"required"`
	// TimeLimit bounds every solve. Zero means no limit.
	TimeLimit time.Duration  `json:"time_limit" validate:"gte=0"`
	Conf      map[string]any `json:"conf"`
}

// InterpretConfig tunes how raw solver values are cleaned.
type InterpretConfig struct {
	// Tolerance below which flows are reported as zero.
	Tolerance float64 `json:"tolerance" validate:"gte=0"`
}

// SweepConfig sizes the parameter sweep worker pool and its default grid.
type SweepConfig struct {
	Workers int        `json:"workers" validate:"gte=0"`
	Grid    sweep.Grid `json:"grid"`
}

// PublishConfig enables publishing solve results over MQTT.
type PublishConfig struct {
	Enabled bool        `json:"enabled"`
	MQTT    mqtt.Config `json:"mqtt" validate:"-"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Solver.Type == "" {
		c.Solver.Type = gonumlp.Name
	}
	if c.Interpret.Tolerance == 0 {
		c.Interpret.Tolerance = interpret.DefaultTolerance
	}
	if c.Sweep.Workers == 0 {
		c.Sweep.Workers = runtime.NumCPU()
	}
	if len(c.Sweep.Grid.PVCapex)+len(c.Sweep.Grid.CapacityFactor)+len(c.Sweep.Grid.FeedInTariff) == 0 {
		c.Sweep.Grid = sweep.DefaultGrid()
	}
	c.RunLog.SetDefaults()
	if c.Publish.MQTT.Topic == "" {
		c.Publish.MQTT.Topic = mqtt.DefaultTopic
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks every section. The MQTT section is only checked when
// publishing is enabled.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.Publish.Enabled {
		if err := validate.Struct(c.Publish.MQTT); err != nil {
			return fmt.Errorf("publish.mqtt: %w", formatValidationError(err))
		}
	}
	return nil
}

func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if _, rest, ok := strings.Cut(ns, "."); ok {
			ns = rest
		}
		msg := fmt.Sprintf("%s: failed %q", ns, fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s: failed %q (%s)", ns, fe.Tag(), fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Default returns the configuration used when no file is given, with
// environment overrides applied.
func Default() (*Config, error) {
	return load(koanf.New("."))
}

// Load reads a YAML or JSON file, applies K_ environment overrides (with __
// separating nested keys, e.g. K_SOLVER__TIME_LIMIT=30s), fills defaults
// and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	return load(k)
}

func load(k *koanf.Koanf) (*Config, error) {
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
