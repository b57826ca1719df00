// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters. Loaded once at
// startup and immutable thereafter.
type Config struct {
	Sim       SimConfig       `yaml:"sim"`
	Grid      GridConfig      `yaml:"grid"`
	Transport TransportConfig `yaml:"transport"`
	Power     PowerConfig     `yaml:"power"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Belts     []BeltConfig    `yaml:"belts"`
	Junctions [][2]int        `yaml:"junctions"`
	Machines  []MachineConfig `yaml:"machines"`
	Spawners  []SpawnerConfig `yaml:"spawners"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimConfig holds tick clock parameters.
type SimConfig struct {
	TicksPerSecond int `yaml:"ticks_per_second"` // clamped to [1, 1000]
}

// GridConfig holds grid dimensions.
type GridConfig struct {
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	CellSize float64 `yaml:"cell_size"` // world units per cell edge
}

// TransportConfig holds belt movement parameters.
type TransportConfig struct {
	TicksPerCell  int     `yaml:"ticks_per_cell"`
	GateTransport bool    `yaml:"gate_transport"` // belts stop when the network loses power
	Watts         float64 `yaml:"watts"`          // belt network draw when gated
}

// PowerConfig holds power allocation and day/night cycle parameters.
type PowerConfig struct {
	ChargeTicks int     `yaml:"charge_ticks"` // powered ticks until fully charged
	ChargeDecay float64 `yaml:"charge_decay"` // charge lost per unpowered tick
	DayTicks    int     `yaml:"day_ticks"`
	NightTicks  int     `yaml:"night_ticks"`
}

// TelemetryConfig holds stats collection parameters.
type TelemetryConfig struct {
	StatsWindow float64 `yaml:"stats_window"` // seconds per stats window
}

// BeltConfig lays a straight run of transport cells.
type BeltConfig struct {
	Start  [2]int `yaml:"start"`
	Dir    string `yaml:"dir"` // north | east | south | west
	Length int    `yaml:"length"`
}

// MachineConfig describes one stationary machine.
type MachineConfig struct {
	Name              string   `yaml:"name"`
	Kind              string   `yaml:"kind"` // processor | sink | generator | blocker
	Cell              [2]int   `yaml:"cell"`
	Extra             [][2]int `yaml:"extra"`  // additional footprint cells (reserved by a blocker)
	Input             string   `yaml:"input"`  // approach direction accepted; empty = any
	Facing            string   `yaml:"facing"` // output direction (processors)
	ProcessingSeconds float64  `yaml:"processing_seconds"`
	Watts             float64  `yaml:"watts"`
	Accepts           []string `yaml:"accepts"` // empty = accept any type
	Output            string   `yaml:"output"`  // processor output type; empty keeps input type
	DayWatts          float64  `yaml:"day_watts"`
	NightWatts        float64  `yaml:"night_watts"`
}

// SpawnerConfig drops new items onto a cell at a fixed interval.
type SpawnerConfig struct {
	Cell          [2]int `yaml:"cell"`
	Item          string `yaml:"item"`
	IntervalTicks int    `yaml:"interval_ticks"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	StatsWindowTicks int     // Telemetry.StatsWindow converted to ticks
	SecondsPerTick   float64 // 1 / ticks_per_second
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Sim.TicksPerSecond < 1 {
		c.Sim.TicksPerSecond = 1
	}
	if c.Sim.TicksPerSecond > 1000 {
		c.Sim.TicksPerSecond = 1000
	}
	if c.Transport.TicksPerCell < 1 {
		c.Transport.TicksPerCell = 1
	}
	if c.Power.ChargeTicks < 1 {
		c.Power.ChargeTicks = 1
	}

	c.Derived.SecondsPerTick = 1 / float64(c.Sim.TicksPerSecond)
	c.Derived.StatsWindowTicks = int(c.Telemetry.StatsWindow * float64(c.Sim.TicksPerSecond))
	if c.Derived.StatsWindowTicks < 1 {
		c.Derived.StatsWindowTicks = 1
	}
}

// ProcessingTicks converts a machine's processing duration to ticks.
func (c *Config) ProcessingTicks(m *MachineConfig) int {
	t := int(m.ProcessingSeconds * float64(c.Sim.TicksPerSecond))
	if t < 1 {
		t = 1
	}
	return t
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
