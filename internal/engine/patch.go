package engine

import (
	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

// Patch applies plans to a private copy of the session's buffer and returns
// it. Every marker site is first cleared to NOP slots; each goto then gets
// its block exits and jump written from the start of its own site.
func Patch(s *Session, plans []*PatchPlan) ([]byte, error) {
	buf := s.Unit.CloneCode()
	roles := s.Unit.Layout().Roles()

	for _, name := range s.Order {
		clearSite(buf, roles, s.Labels[name].Site)
	}
	for _, g := range s.Gotos {
		clearSite(buf, roles, g.Site)
	}

	for _, p := range plans {
		w := &siteWriter{buf: buf, roles: roles, unit: s.Unit.Name, plan: p, at: p.Goto.Site.Start}
		for i := 0; i < p.Excess; i++ {
			if err := w.put(roles.PopBlock, 0); err != nil {
				return nil, err
			}
		}
		for i := p.Prefixes; i > 0; i-- {
			if err := w.put(roles.ExtendedArg, byte(p.Displacement>>(8*uint(i)))); err != nil {
				return nil, err
			}
		}
		if err := w.put(p.Jump, byte(p.Displacement)); err != nil {
			return nil, err
		}
	}

	return buf, nil
}

func clearSite(buf []byte, roles code.Roles, site Site) {
	for off := site.Start; off < site.End; off += code.UnitSize {
		code.PutSlot(buf, off, roles.Nop, 0)
	}
}

// siteWriter writes slots sequentially inside one goto site, refusing to
// leave the site or overwrite anything but a cleared slot.
type siteWriter struct {
	buf   []byte
	roles code.Roles
	unit  string
	plan  *PatchPlan
	at    uint32
}

func (w *siteWriter) put(op code.Opcode, arg byte) error {
	site := w.plan.Goto.Site
	if w.at >= site.End || code.Opcode(w.buf[w.at]) != w.roles.Nop {
		return errors.NestedTooDeep(errors.PhasePatch, w.unit, w.plan.Goto.Label, site.Start,
			w.plan.Slots(), site.Slots())
	}
	code.PutSlot(w.buf, w.at, op, arg)
	w.at += code.UnitSize
	return nil
}
