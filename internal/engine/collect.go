package engine

import (
	"strings"

	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

// Markers names the reserved globals that introduce label and goto sites.
type Markers struct {
	Label string
	Goto  string
	// FoldCase makes "Label" and "LABEL" mark sites too.
	FoldCase bool
}

// DefaultMarkers are the reserved names used when none are configured.
var DefaultMarkers = Markers{Label: "label", Goto: "goto", FoldCase: true}

type markerKind uint8

const (
	markerNone markerKind = iota
	markerLabel
	markerGoto
)

func (m Markers) classify(name string) markerKind {
	eq := func(a, b string) bool { return a == b }
	if m.FoldCase {
		eq = strings.EqualFold
	}
	switch {
	case name == "":
		return markerNone
	case eq(name, m.Label):
		return markerLabel
	case eq(name, m.Goto):
		return markerGoto
	}
	return markerNone
}

// Site is the byte span of one marker: the reserved-name load, the
// attribute access naming the label and the statement's trailing pop.
type Site struct {
	Start uint32 // first slot of the name load, prefixes included
	Attr  uint32 // first slot of the attribute access
	End   uint32 // slot after the trailing pop
}

// Slots returns the number of slots in the site.
func (s Site) Slots() int {
	return int(s.End-s.Start) / code.UnitSize
}

// Label is a declared jump target.
type Label struct {
	Name    string
	Site    Site
	Context []Frame
}

// Target returns the byte offset gotos land on once the site is cleared.
func (l *Label) Target() uint32 {
	return l.Site.End
}

// GotoSite is a jump request to a label.
type GotoSite struct {
	Label   string
	Site    Site
	Context []Frame
}

// Session holds the markers found in one unit.
type Session struct {
	Unit   *code.Unit
	Labels map[string]*Label
	// Order lists label names in the order they appear.
	Order []string
	Gotos []*GotoSite
}

// pending is the one-slot scan state between the reserved-name load and the
// statement's trailing pop.
type pending struct {
	global  code.Instruction
	attr    code.Instruction
	kind    markerKind
	hasAttr bool
}

type scanner struct {
	unit    *code.Unit
	format  code.Format
	roles   code.Roles
	markers Markers
	tracker *tracker
	session *Session
	pending *pending
}

// Scan walks the unit once and collects label and goto sites with their
// block contexts. A duplicate label fails immediately; gotos naming unknown
// labels are reported together after the walk.
func Scan(u *code.Unit, markers Markers) (*Session, error) {
	f := u.Layout()
	s := &scanner{
		unit:    u,
		format:  f,
		roles:   f.Roles(),
		markers: markers,
		tracker: newTracker(f),
		session: &Session{
			Unit:   u,
			Labels: make(map[string]*Label),
		},
	}

	for in, err := range code.Instructions(f, u.Code) {
		if err != nil {
			return nil, err
		}
		if err := s.step(in); err != nil {
			return nil, err
		}
	}

	if err := s.checkMissing(); err != nil {
		return nil, err
	}
	return s.session, nil
}

func (s *scanner) step(in code.Instruction) error {
	if p := s.pending; p != nil {
		s.pending = nil
		switch {
		case p.hasAttr && in.Op == s.roles.PopTop:
			return s.record(p, in)
		case !p.hasAttr && in.Op == s.roles.LoadAttr:
			p.attr, p.hasAttr = in, true
			s.pending = p
			return nil
		}
	}

	if in.Op == s.roles.LoadGlobal {
		if kind := s.markers.classify(s.unit.NameAt(in.Arg)); kind != markerNone {
			s.pending = &pending{global: in, kind: kind}
			return nil
		}
	}

	s.tracker.apply(in)
	return nil
}

func (s *scanner) record(p *pending, pop code.Instruction) error {
	name := s.unit.NameAt(p.attr.Arg)
	site := Site{Start: p.global.Start, Attr: p.attr.Start, End: pop.End()}
	ctx := s.tracker.snapshot()

	switch p.kind {
	case markerLabel:
		if prev, dup := s.session.Labels[name]; dup {
			return errors.DuplicateLabel(s.unit.Name, name, prev.Site.Start, site.Start)
		}
		s.session.Labels[name] = &Label{Name: name, Site: site, Context: ctx}
		s.session.Order = append(s.session.Order, name)
	case markerGoto:
		s.session.Gotos = append(s.session.Gotos, &GotoSite{Label: name, Site: site, Context: ctx})
	}
	return nil
}

func (s *scanner) checkMissing() error {
	var missing []errors.MissingGoto
	for _, g := range s.session.Gotos {
		if _, ok := s.session.Labels[g.Label]; !ok {
			missing = append(missing, errors.MissingGoto{Label: g.Label, Offset: g.Site.Start})
		}
	}
	if len(missing) > 0 {
		return errors.NewMissingLabelsError(s.unit.Name, missing)
	}
	return nil
}
