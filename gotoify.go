package gotoify

import (
	"go.uber.org/zap"

	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
	"github.com/wippyai/gotoify/internal/engine"
)

// Markers names the reserved globals that introduce label and goto sites.
type Markers = engine.Markers

// Site is the byte span of one marker statement.
type Site = engine.Site

// Label is a declared jump target with its block context.
type Label = engine.Label

// GotoSite is a jump request with its block context.
type GotoSite = engine.GotoSite

// Frame is one entry of a static block context.
type Frame = engine.Frame

// FrameKind is the kind of a block frame.
type FrameKind = engine.FrameKind

// PatchPlan is the rewrite computed for one goto.
type PatchPlan = engine.PatchPlan

// Direction is the way a planned jump travels.
type Direction = engine.Direction

const (
	Forward  = engine.Forward
	Backward = engine.Backward
)

// DefaultMarkers recognizes label and goto, ignoring case.
var DefaultMarkers = engine.DefaultMarkers

// Config configures a transform.
type Config struct {
	// Logger receives debug entries for sites, plans and installs.
	// Defaults to the engine's package logger.
	Logger *zap.Logger
	// Markers overrides the reserved names. Empty names use DefaultMarkers.
	Markers Markers
}

// Option configures Apply.
type Option func(*Config)

// WithMarkers sets the reserved marker names.
func WithMarkers(m Markers) Option {
	return func(c *Config) {
		c.Markers = m
	}
}

// WithLogger sets the logger used for the transform.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// Report describes what a transform would do to a unit.
type Report struct {
	Unit string
	// Labels are listed in the order they appear.
	Labels []*Label
	Gotos  []*GotoSite
	// Plans holds one plan per goto, in the order of Gotos.
	Plans []*PatchPlan
}

// Plan scans and validates u and reports the sites and patches without
// rewriting anything.
func Plan(u *code.Unit, cfg Config) (*Report, error) {
	res, err := newEngine(cfg).Plan(u)
	if err != nil {
		return nil, err
	}
	s := res.Session
	labels := make([]*Label, 0, len(s.Order))
	for _, name := range s.Order {
		labels = append(labels, s.Labels[name])
	}
	return &Report{
		Unit:   u.Name,
		Labels: labels,
		Gotos:  s.Gotos,
		Plans:  res.Plans,
	}, nil
}

// Transform returns u with its marker statements rewritten into jumps. A
// unit without markers is returned unchanged. u itself is never modified.
func Transform(u *code.Unit, cfg Config) (*code.Unit, error) {
	return newEngine(cfg).Rewrite(u)
}

// Apply transforms fn's active unit and installs the result. It returns fn
// so calls can be chained. On any error the original unit stays installed.
//
// If another Apply or Install replaced the unit while the transform ran,
// Apply fails with a concurrent_install error instead of overwriting it.
func Apply(fn *code.Function, opts ...Option) (*code.Function, error) {
	if fn == nil {
		return nil, errors.InvalidInput(errors.PhaseInstall, "nil function")
	}
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	old := fn.Unit()
	next, err := Transform(old, cfg)
	if err != nil {
		return nil, err
	}
	if next == old {
		return fn, nil
	}

	if !fn.Install(old, next) {
		return nil, errors.New(errors.PhaseInstall, errors.KindConcurrentInstall).
			Unit(fn.Name()).
			Detail("active unit changed during transform").
			Build()
	}
	logger(cfg).Debug("unit installed",
		zap.String("function", fn.Name()),
		zap.Int("size", len(next.Code)))
	return fn, nil
}

func newEngine(cfg Config) *engine.Engine {
	return engine.New(engine.Config{Logger: cfg.Logger, Markers: cfg.Markers})
}

func logger(cfg Config) *zap.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return engine.Logger()
}
