package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/gotoify"
	"github.com/wippyai/gotoify/vm"
)

// Config is the optional TOML configuration file.
type Config struct {
	Markers MarkersConfig `toml:"markers"`
	Log     LogConfig     `toml:"log"`
	Run     RunConfig     `toml:"run"`
}

// MarkersConfig selects the reserved marker names.
type MarkersConfig struct {
	Label    string `toml:"label"`
	Goto     string `toml:"goto"`
	FoldCase *bool  `toml:"fold-case"`
}

// LogConfig configures diagnostics.
type LogConfig struct {
	Level string `toml:"level"`
}

// RunConfig configures the interpreter.
type RunConfig struct {
	MaxCallDepth  int `toml:"max-call-depth"`
	CheckInterval int `toml:"context-check-interval"`
	MaxSteps      int `toml:"max-steps"`
}

// loadConfig reads path. An empty path yields the defaults.
func loadConfig(path string) (*Config, error) {
	var cfg Config
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// markers returns the marker set, or the zero value to use the defaults.
func (c *Config) markers() gotoify.Markers {
	m := c.Markers
	if m.Label == "" && m.Goto == "" && m.FoldCase == nil {
		return gotoify.Markers{}
	}
	out := gotoify.Markers{Label: m.Label, Goto: m.Goto, FoldCase: gotoify.DefaultMarkers.FoldCase}
	if m.FoldCase != nil {
		out.FoldCase = *m.FoldCase
	}
	if out.Label == "" {
		out.Label = gotoify.DefaultMarkers.Label
	}
	if out.Goto == "" {
		out.Goto = gotoify.DefaultMarkers.Goto
	}
	return out
}

func (c *Config) machineOptions() []vm.Option {
	var opts []vm.Option
	if c.Run.MaxCallDepth > 0 {
		opts = append(opts, vm.WithMaxCallDepth(c.Run.MaxCallDepth))
	}
	if c.Run.CheckInterval > 0 {
		opts = append(opts, vm.WithContextCheckInterval(c.Run.CheckInterval))
	}
	return opts
}

func newLogger(verbose bool, level string) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	if level == "" {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// parseArgs converts a comma-separated argument list. Integers, true, false
// and none are recognized; anything else is passed as a string.
func parseArgs(s string) []vm.Value {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	args := make([]vm.Value, len(parts))
	for i, p := range parts {
		args[i] = parseArg(strings.TrimSpace(p))
	}
	return args
}

func parseArg(s string) vm.Value {
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return n
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "none":
		return nil
	}
	if uq, err := strconv.Unquote(s); err == nil {
		return uq
	}
	return s
}
