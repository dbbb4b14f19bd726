package engine

import (
	"go.uber.org/zap"

	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

// Config configures the rewrite engine.
type Config struct {
	Logger  *zap.Logger
	Markers Markers
}

// Engine runs the scan, validate and patch stages over units.
//
// The engine is stateless between calls. Each call works on an
// independent session.
type Engine struct {
	log     *zap.Logger
	markers Markers
}

// New creates an engine. Zero marker names fall back to DefaultMarkers.
func New(cfg Config) *Engine {
	m := cfg.Markers
	if m.Label == "" && m.Goto == "" {
		m = DefaultMarkers
	} else {
		if m.Label == "" {
			m.Label = DefaultMarkers.Label
		}
		if m.Goto == "" {
			m.Goto = DefaultMarkers.Goto
		}
	}
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	return &Engine{log: log, markers: m}
}

// Markers returns the marker names the engine recognizes.
func (e *Engine) Markers() Markers {
	return e.markers
}

// Result is the outcome of a successful plan.
type Result struct {
	Session *Session
	Plans   []*PatchPlan
}

// Plan scans and validates u without patching it.
func (e *Engine) Plan(u *code.Unit) (*Result, error) {
	if u == nil {
		return nil, errors.InvalidInput(errors.PhaseScan, "nil unit")
	}
	if u.Has(code.FlagGotoPatched) {
		return nil, errors.New(errors.PhaseScan, errors.KindAlreadyTransformed).
			Unit(u.Name).
			Detail("unit was already rewritten").
			Build()
	}

	s, err := Scan(u, e.markers)
	if err != nil {
		return nil, err
	}
	e.log.Debug("markers collected",
		zap.String("unit", u.Name),
		zap.Int("labels", len(s.Labels)),
		zap.Int("gotos", len(s.Gotos)))

	plans, err := Validate(s)
	if err != nil {
		return nil, err
	}
	for _, p := range plans {
		e.log.Debug("goto planned",
			zap.String("unit", u.Name),
			zap.String("label", p.Goto.Label),
			zap.Uint32("site", p.Goto.Site.Start),
			zap.Uint32("target", p.Target()),
			zap.Int("exits", p.Excess),
			zap.Int("prefixes", p.Prefixes),
			zap.Stringer("direction", p.Direction),
			zap.Uint32("displacement", p.Displacement))
	}
	return &Result{Session: s, Plans: plans}, nil
}

// Rewrite plans and patches u, returning the rewritten unit. A unit without
// markers is returned as is.
func (e *Engine) Rewrite(u *code.Unit) (*code.Unit, error) {
	res, err := e.Plan(u)
	if err != nil {
		return nil, err
	}
	if len(res.Session.Labels) == 0 && len(res.Session.Gotos) == 0 {
		e.log.Debug("no markers", zap.String("unit", u.Name))
		return u, nil
	}

	buf, err := Patch(res.Session, res.Plans)
	if err != nil {
		return nil, err
	}
	return u.WithCode(buf).WithFlags(code.FlagGotoPatched), nil
}
