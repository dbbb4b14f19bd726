package engine

import (
	"go.uber.org/multierr"

	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

// Direction is the way a planned jump travels.
type Direction uint8

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// PatchPlan is the rewrite computed for one goto. Offsets are in bytes;
// the displacement is in slots.
type PatchPlan struct {
	Goto  *GotoSite
	Label *Label

	// Excess is the number of loop frames the jump leaves.
	Excess int
	// Prefixes is the number of EXTENDED_ARG slots before the jump.
	Prefixes int

	Displacement uint32
	Direction    Direction
	Jump         code.Opcode
	// JumpAt is the offset of the jump opcode itself.
	JumpAt uint32
}

// Slots returns how many slots of the goto's site the plan writes.
func (p *PatchPlan) Slots() int {
	return p.Excess + p.Prefixes + 1
}

// Target returns the offset the jump lands on.
func (p *PatchPlan) Target() uint32 {
	return p.Label.Target()
}

// Validate checks every goto in the session against its label's context
// and computes a patch plan for each. All gotos are checked; violations are
// combined into one error. Validate never writes to the unit.
func Validate(s *Session) ([]*PatchPlan, error) {
	roles := s.Unit.Layout().Roles()
	plans := make([]*PatchPlan, 0, len(s.Gotos))

	var errs error
	for _, g := range s.Gotos {
		plan, err := planGoto(s.Unit.Name, roles, g, s.Labels[g.Label])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		plans = append(plans, plan)
	}
	if errs != nil {
		return nil, errs
	}
	return plans, nil
}

func planGoto(unit string, roles code.Roles, g *GotoSite, l *Label) (*PatchPlan, error) {
	if l == nil {
		return nil, errors.New(errors.PhaseValidate, errors.KindMissingLabel).
			Unit(unit).
			Label(g.Label).
			Offset(g.Site.Start).
			Build()
	}

	if len(g.Context) < len(l.Context) {
		return nil, errors.NotWithinBlock(unit, g.Label, g.Site.Start,
			"goto is shallower than its label")
	}
	for i, f := range l.Context {
		if g.Context[i].Kind != f.Kind {
			return nil, errors.NotWithinBlock(unit, g.Label, g.Site.Start,
				"label's "+f.Kind.String()+" block does not enclose the goto")
		}
	}

	excess := g.Context[len(l.Context):]
	for _, f := range excess {
		if !f.Kind.Unwindable() {
			return nil, errors.CrossingBoundary(unit, g.Label, g.Site.Start, f.Kind.String())
		}
	}

	capacity := g.Site.Slots()
	start := g.Site.Start / code.UnitSize
	target := l.Target() / code.UnitSize

	for n := 0; n <= code.MaxPrefixes; n++ {
		need := len(excess) + n + 1
		if need > capacity {
			return nil, errors.NestedTooDeep(errors.PhaseValidate, unit, g.Label, g.Site.Start, need, capacity)
		}

		jump := start + uint32(len(excess)+n)
		next := jump + 1
		plan := &PatchPlan{
			Goto:     g,
			Label:    l,
			Excess:   len(excess),
			Prefixes: n,
			JumpAt:   jump * code.UnitSize,
		}
		if target <= jump {
			plan.Direction = Backward
			plan.Jump = roles.JumpBackward
			plan.Displacement = next - target
		} else {
			plan.Direction = Forward
			plan.Jump = roles.JumpForward
			plan.Displacement = target - next
		}
		if code.Fits(plan.Displacement, n) {
			return plan, nil
		}
	}

	return nil, errors.New(errors.PhaseValidate, errors.KindOverflow).
		Unit(unit).
		Label(g.Label).
		Offset(g.Site.Start).
		Detail("jump displacement exceeds %d-bit operand", 8*(code.MaxPrefixes+1)).
		Build()
}
