// Package config holds the tunable knobs for the debugging engine:
// sampling intervals, buffer capacities, alert thresholds, and
// logging. Values come from Defaults, optionally a YAML file, then
// DEVPROBE_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "DEVPROBE_"

// Config is the complete engine configuration.
type Config struct {
	// Memory controls the memory monitor.
	Memory MemoryConfig `yaml:"memory"`
	// Performance controls the performance monitor.
	Performance PerformanceConfig `yaml:"performance"`
	// Network controls the network monitor.
	Network NetworkConfig `yaml:"network"`
	// Console controls the interactive console.
	Console ConsoleConfig `yaml:"console"`
	// Breakpoints controls the breakpoint registry.
	Breakpoints BreakpointConfig `yaml:"breakpoints"`
	// Logging controls engine log output.
	Logging LoggingConfig `yaml:"logging"`
}

// MemoryConfig configures the memory monitor.
type MemoryConfig struct {
	// SampleInterval is the time between memory samples.
	SampleInterval time.Duration `yaml:"sampleInterval"`
	// BufferCapacity is how many samples are retained.
	BufferCapacity int `yaml:"bufferCapacity"`
	// UsedBytesThreshold raises a memory pressure alert when
	// exceeded. Zero disables the alert.
	UsedBytesThreshold uint64 `yaml:"usedBytesThreshold"`
}

// PerformanceConfig configures the performance monitor.
type PerformanceConfig struct {
	// SampleInterval is the time between performance samples.
	SampleInterval time.Duration `yaml:"sampleInterval"`
	// BufferCapacity is how many samples are retained.
	BufferCapacity int `yaml:"bufferCapacity"`
	// RollingWindow is the number of samples averaged for
	// AvgFrameTime.
	RollingWindow int `yaml:"rollingWindow"`
	// DegradedFrameTime raises a degradation alert when a frame
	// exceeds it. Zero disables the alert.
	DegradedFrameTime time.Duration `yaml:"degradedFrameTime"`
	// CPUThreshold raises a degradation alert when CPU percent
	// exceeds it. Zero disables the alert.
	CPUThreshold float64 `yaml:"cpuThreshold"`
}

// NetworkConfig configures the network monitor.
type NetworkConfig struct {
	// CaptureEnabled turns network capture on or off.
	CaptureEnabled bool `yaml:"captureEnabled"`
	// EventCapacity is how many network events are retained.
	EventCapacity int `yaml:"eventCapacity"`
	// StalenessWindow marks pending requests as failed after this
	// long without a response.
	StalenessWindow time.Duration `yaml:"stalenessWindow"`
}

// ConsoleConfig configures the interactive console.
type ConsoleConfig struct {
	// HistoryLimit is how many console entries are retained.
	HistoryLimit int `yaml:"historyLimit"`
	// ExecTimeout bounds a single expression evaluation.
	ExecTimeout time.Duration `yaml:"execTimeout"`
}

// BreakpointConfig configures the breakpoint registry.
type BreakpointConfig struct {
	// EvalTimeout bounds a single condition evaluation.
	EvalTimeout time.Duration `yaml:"evalTimeout"`
}

// LoggingConfig configures engine log output.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn",
	// "error").
	Level string `yaml:"level"`
}

// Defaults returns the default configuration.
func Defaults() Config {
	return Config{
		Memory: MemoryConfig{
			SampleInterval:     time.Second,
			BufferCapacity:     256,
			UsedBytesThreshold: 0,
		},
		Performance: PerformanceConfig{
			SampleInterval:    time.Second,
			BufferCapacity:    256,
			RollingWindow:     10,
			DegradedFrameTime: 0,
			CPUThreshold:      0,
		},
		Network: NetworkConfig{
			CaptureEnabled:  true,
			EventCapacity:   512,
			StalenessWindow: 30 * time.Second,
		},
		Console: ConsoleConfig{
			HistoryLimit: 200,
			ExecTimeout:  2 * time.Second,
		},
		Breakpoints: BreakpointConfig{
			EvalTimeout: 250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// validLevels mirrors what logging.ParseLevel accepts.
var validLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks the configuration for invalid values.
func (c Config) Validate() error {
	if c.Memory.SampleInterval <= 0 {
		return fmt.Errorf("memory.sampleInterval: %w", ErrInvalidInterval)
	}
	if c.Performance.SampleInterval <= 0 {
		return fmt.Errorf("performance.sampleInterval: %w", ErrInvalidInterval)
	}
	if c.Network.StalenessWindow <= 0 {
		return fmt.Errorf("network.stalenessWindow: %w", ErrInvalidInterval)
	}
	if c.Console.ExecTimeout <= 0 {
		return fmt.Errorf("console.execTimeout: %w", ErrInvalidInterval)
	}
	if c.Breakpoints.EvalTimeout <= 0 {
		return fmt.Errorf("breakpoints.evalTimeout: %w", ErrInvalidInterval)
	}
	if c.Memory.BufferCapacity < 1 {
		return fmt.Errorf("memory.bufferCapacity: %w", ErrInvalidCapacity)
	}
	if c.Performance.BufferCapacity < 1 {
		return fmt.Errorf("performance.bufferCapacity: %w", ErrInvalidCapacity)
	}
	if c.Performance.RollingWindow < 1 {
		return fmt.Errorf("performance.rollingWindow: %w", ErrInvalidCapacity)
	}
	if c.Network.EventCapacity < 1 {
		return fmt.Errorf("network.eventCapacity: %w", ErrInvalidCapacity)
	}
	if c.Console.HistoryLimit < 1 {
		return fmt.Errorf("console.historyLimit: %w", ErrInvalidCapacity)
	}
	if c.Performance.CPUThreshold < 0 {
		return fmt.Errorf("performance.cpuThreshold: %w", ErrInvalidThreshold)
	}
	if c.Performance.DegradedFrameTime < 0 {
		return fmt.Errorf("performance.degradedFrameTime: %w", ErrInvalidThreshold)
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level %q: %w", c.Logging.Level, ErrInvalidLogLevel)
	}
	return nil
}

// LoadFile reads a YAML configuration file, merging it over the
// defaults. A missing file is not an error; the defaults are
// returned.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays DEVPROBE_* environment variables onto the
// configuration. Unset variables leave the existing value; malformed
// values are reported.
func (c *Config) ApplyEnv() error {
	for _, o := range envOverrides {
		val, ok := os.LookupEnv(EnvPrefix + o.suffix)
		if !ok {
			continue
		}
		if err := o.apply(c, val); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, o.suffix, err)
		}
	}
	return nil
}

// envOverride maps one environment variable suffix to a setter.
type envOverride struct {
	suffix string
	apply  func(*Config, string) error
}

var envOverrides = []envOverride{
	{"LOG_LEVEL", func(c *Config, v string) error {
		c.Logging.Level = v
		return nil
	}},
	{"MEMORY_INTERVAL", func(c *Config, v string) error {
		return parseDuration(v, &c.Memory.SampleInterval)
	}},
	{"MEMORY_CAPACITY", func(c *Config, v string) error {
		return parseInt(v, &c.Memory.BufferCapacity)
	}},
	{"MEMORY_THRESHOLD_BYTES", func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return err
		}
		c.Memory.UsedBytesThreshold = n
		return nil
	}},
	{"PERF_INTERVAL", func(c *Config, v string) error {
		return parseDuration(v, &c.Performance.SampleInterval)
	}},
	{"PERF_CAPACITY", func(c *Config, v string) error {
		return parseInt(v, &c.Performance.BufferCapacity)
	}},
	{"PERF_WINDOW", func(c *Config, v string) error {
		return parseInt(v, &c.Performance.RollingWindow)
	}},
	{"PERF_DEGRADED_FRAME", func(c *Config, v string) error {
		return parseDuration(v, &c.Performance.DegradedFrameTime)
	}},
	{"PERF_CPU_THRESHOLD", func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.Performance.CPUThreshold = f
		return nil
	}},
	{"NETWORK_CAPTURE", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Network.CaptureEnabled = b
		return nil
	}},
	{"NETWORK_CAPACITY", func(c *Config, v string) error {
		return parseInt(v, &c.Network.EventCapacity)
	}},
	{"NETWORK_STALENESS", func(c *Config, v string) error {
		return parseDuration(v, &c.Network.StalenessWindow)
	}},
	{"CONSOLE_HISTORY", func(c *Config, v string) error {
		return parseInt(v, &c.Console.HistoryLimit)
	}},
	{"CONSOLE_TIMEOUT", func(c *Config, v string) error {
		return parseDuration(v, &c.Console.ExecTimeout)
	}},
	{"BREAKPOINT_TIMEOUT", func(c *Config, v string) error {
		return parseDuration(v, &c.Breakpoints.EvalTimeout)
	}},
}

func parseDuration(v string, dst *time.Duration) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

// Load reads the file at path (if any), applies environment
// overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
