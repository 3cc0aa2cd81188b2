package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"
	stdlog "github.com/named-data/ndnd-ncc/std/log"
)

// CoreConfig holds process-wide settings: profiling output paths and the
// base directory configuration files are resolved relative to.
type CoreConfig struct {
	BaseDir      string `yaml:"-"`
	LogLevel     string `yaml:"log_level"`
	CpuProfile   string `yaml:"-"`
	MemProfile   string `yaml:"-"`
	BlockProfile string `yaml:"-"`
	// DebugListen is the address the trace/strategy-choice debug HTTP
	// surface binds to. Empty disables it.
	DebugListen string `yaml:"debug_listen"`
	// StateDir is the directory durable state is written under: a badger
	// database mirroring measurement-table TTLs, and a sqlite database
	// persisting strategy-choice assignments. Empty keeps both tables
	// purely in-memory (what every unit test in this module uses).
	StateDir string `yaml:"state_dir"`
}

// resolvedStateDir resolves StateDir relative to BaseDir (the
// configuration file's directory) when it is not already absolute, "" if
// state persistence is disabled.
func (c CoreConfig) resolvedStateDir() string {
	if c.StateDir == "" {
		return ""
	}
	if filepath.IsAbs(c.StateDir) || c.BaseDir == "" {
		return c.StateDir
	}
	return filepath.Join(c.BaseDir, c.StateDir)
}

// MeasurementsDBPath returns the badger directory NewMeasurements should
// open, or "" if durable measurements are disabled.
func (c CoreConfig) MeasurementsDBPath() string {
	dir := c.resolvedStateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "measurements")
}

// FibStrategyDBPath returns the sqlite file NewFibStrategyTable should
// open, or "" if durable strategy-choice persistence is disabled.
func (c CoreConfig) FibStrategyDBPath() string {
	dir := c.resolvedStateDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "strategy-choice.db")
}

// NccConfig exposes the NCC strategy's build-time tunables (spec.md §6) as
// configuration so a deployment can adjust them without a rebuild.
type NccConfig struct {
	// UpdateMeasurementsNLevels bounds how many ancestor measurement
	// entries a single on-Data/on-timeout update walks (spec.md §4.4/4.6).
	UpdateMeasurementsNLevels int `yaml:"update_measurements_n_levels"`
	// AdjustPredictUpShift/DownShift parameterize the prediction
	// arithmetic of spec.md §4.1.
	AdjustPredictUpShift   uint `yaml:"adjust_predict_up_shift"`
	AdjustPredictDownShift uint `yaml:"adjust_predict_down_shift"`
	// RngSeed seeds the per-instance propagate-jitter RNG (spec.md §9).
	// Zero means "derive from the current time" at strategy start.
	RngSeed uint64 `yaml:"rng_seed"`
}

// FwConfig holds forwarding-thread-level settings.
type FwConfig struct {
	Threads int       `yaml:"threads"`
	Ncc     NccConfig `yaml:"ncc"`
}

// Config is the top-level forwarder configuration, loaded from YAML.
type Config struct {
	Core CoreConfig `yaml:"core"`
	Fw   FwConfig   `yaml:"fw"`
}

// DefaultConfig returns a Config populated with the constants spec.md §6
// specifies for the NCC strategy and sane defaults for everything else.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			LogLevel: "INFO",
		},
		Fw: FwConfig{
			Threads: 1,
			Ncc: NccConfig{
				UpdateMeasurementsNLevels: 2,
				AdjustPredictUpShift:      3,
				AdjustPredictDownShift:    4,
				RngSeed:                   0,
			},
		},
	}
}

// ReadYaml decodes a YAML configuration file into cfg, following the
// teacher's toolutils.ReadYaml(config, configfile) call shape.
func ReadYaml(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyLogLevel parses Core.LogLevel and installs it on the package Log.
func (c *Config) ApplyLogLevel() {
	level, err := stdlog.ParseLevel(c.Core.LogLevel)
	if err != nil {
		level = stdlog.LevelInfo
	}
	Log.SetLevel(level)
}

// MeasurementsLifetime is spec.md §6's MEASUREMENTS_LIFETIME constant.
const MeasurementsLifetime = 16 * time.Second
