package engine

import (
	stderrors "errors"
	"testing"

	"go.uber.org/multierr"

	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

func TestTracker_Frames(t *testing.T) {
	b := newBuilder(code.Wordcode)
	b.op(code.OpSetupLoop, 0)
	b.op(code.OpSetupExcept, 0)
	b.op(code.OpSetupWith, 0)
	b.op(code.OpSetupFinally, 0)

	tr := newTracker(code.Wordcode)
	for in, err := range code.Instructions(code.Wordcode, b.buf) {
		if err != nil {
			t.Fatal(err)
		}
		tr.apply(in)
	}

	want := []FrameKind{FrameLoop, FrameTry, FrameExcept, FrameScopedResource, FrameTry}
	got := tr.snapshot()
	if len(got) != len(want) {
		t.Fatalf("depth = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Kind != want[i] {
			t.Errorf("frame %d = %s, want %s", i, got[i].Kind, want[i])
		}
	}

	// Exits past the bottom are ignored.
	pop := code.Instruction{Op: code.OpPopBlock}
	for i := 0; i < 8; i++ {
		tr.apply(pop)
	}
	if tr.depth() != 0 {
		t.Errorf("depth after pops = %d", tr.depth())
	}
}

func TestScan_CollectsSites(t *testing.T) {
	b := newBuilder(code.Wordcode)
	b.loop()
	lbl := b.label("top")
	b.nops(2)
	g := b.jump("top")
	b.exit()

	s, err := Scan(b.unit(), DefaultMarkers)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	l, ok := s.Labels["top"]
	if !ok {
		t.Fatal("label top not collected")
	}
	if l.Site.Start != lbl || l.Site.Slots() != 11 {
		t.Errorf("label site = %+v", l.Site)
	}
	if len(l.Context) != 1 || l.Context[0].Kind != FrameLoop {
		t.Errorf("label context = %v", l.Context)
	}

	if len(s.Gotos) != 1 {
		t.Fatalf("gotos = %d, want 1", len(s.Gotos))
	}
	if s.Gotos[0].Site.Start != g || s.Gotos[0].Site.Attr != g+10 {
		t.Errorf("goto site = %+v", s.Gotos[0].Site)
	}
}

func TestScan_CaseFolding(t *testing.T) {
	b := newBuilder(code.Wordcode)
	b.marker("LABEL", "a")
	b.marker("Goto", "a")

	s, err := Scan(b.unit(), DefaultMarkers)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(s.Labels) != 1 || len(s.Gotos) != 1 {
		t.Errorf("folded markers not recognized: %d labels, %d gotos", len(s.Labels), len(s.Gotos))
	}

	strict := Markers{Label: "label", Goto: "goto"}
	s, err = Scan(b.unit(), strict)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(s.Labels) != 0 || len(s.Gotos) != 0 {
		t.Error("case-sensitive markers matched mixed case names")
	}
}

func TestScan_RequiresStatement(t *testing.T) {
	b := newBuilder(code.Wordcode)
	// label.a used as a value, not a statement.
	b.op(code.OpLoadGlobal, b.name("label"))
	b.op(code.OpLoadAttr, b.name("a"))
	b.op(code.OpReturnValue, 0)
	// goto without attribute access.
	b.op(code.OpLoadGlobal, b.name("goto"))
	b.op(code.OpPopTop, 0)

	s, err := Scan(b.unit(), DefaultMarkers)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(s.Labels) != 0 || len(s.Gotos) != 0 {
		t.Errorf("partial idioms collected: %v %v", s.Labels, s.Gotos)
	}
}

func TestScan_PendingClearedByFrames(t *testing.T) {
	// A block opcode between the global and the attribute cancels the
	// marker, and the block must still be tracked.
	b := newBuilder(code.Wordcode)
	b.op(code.OpLoadGlobal, b.name("label"))
	b.loop()
	b.label("inner")

	s, err := Scan(b.unit(), DefaultMarkers)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	l := s.Labels["inner"]
	if l == nil || len(l.Context) != 1 {
		t.Fatalf("inner label context = %+v", l)
	}
}

func TestScan_DuplicateLabel(t *testing.T) {
	b := newBuilder(code.Wordcode)
	first := b.label("x")
	again := b.label("x")

	_, err := Scan(b.unit(), DefaultMarkers)
	if !stderrors.Is(err, errors.ErrDuplicateLabel) {
		t.Fatalf("expected duplicate label error, got %v", err)
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Offset != int(again) || e.Label != "x" {
		t.Errorf("error = %+v, want offset %d (first %d)", e, again, first)
	}
}

func TestScan_MissingLabels(t *testing.T) {
	b := newBuilder(code.Wordcode)
	b.label("here")
	b.jump("nowhere")
	b.jump("here")
	b.jump("elsewhere")
	b.jump("nowhere")

	_, err := Scan(b.unit(), DefaultMarkers)
	var missing *errors.MissingLabelsError
	if !stderrors.As(err, &missing) {
		t.Fatalf("expected MissingLabelsError, got %v", err)
	}
	labels := missing.Labels()
	if len(labels) != 2 || labels[0] != "elsewhere" || labels[1] != "nowhere" {
		t.Errorf("missing labels = %v", labels)
	}
	if len(missing.Gotos) != 3 {
		t.Errorf("missing gotos = %d, want 3", len(missing.Gotos))
	}
}

func TestScan_MalformedCode(t *testing.T) {
	u := &code.Unit{Code: []byte{0xEE, 0}}
	if _, err := Scan(u, DefaultMarkers); !stderrors.Is(err, &errors.Error{Kind: errors.KindUnknownOpcode}) {
		t.Errorf("expected unknown opcode, got %v", err)
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *unitBuilder)
		want  *errors.Error
	}{
		{
			name: "goto shallower than label",
			build: func(b *unitBuilder) {
				b.loop()
				b.label("in")
				b.exit()
				b.jump("in")
			},
			want: errors.ErrNotWithinBlock,
		},
		{
			name: "kind mismatch",
			build: func(b *unitBuilder) {
				b.loop()
				b.label("in")
				b.exit()
				b.op(code.OpSetupFinally, 0)
				b.jump("in")
				b.exit()
			},
			want: errors.ErrNotWithinBlock,
		},
		{
			name: "leaving try",
			build: func(b *unitBuilder) {
				b.label("out")
				b.op(code.OpSetupFinally, 0)
				b.jump("out")
				b.exit()
			},
			want: errors.ErrCrossingBoundary,
		},
		{
			name: "leaving with",
			build: func(b *unitBuilder) {
				b.op(code.OpSetupWith, 0)
				b.jump("out")
				b.exit()
				b.label("out")
			},
			want: errors.ErrCrossingBoundary,
		},
		{
			name: "leaving loop inside except guard",
			build: func(b *unitBuilder) {
				b.op(code.OpSetupExcept, 0)
				b.loop()
				b.jump("out")
				b.exit()
				b.exit()
				b.op(code.OpPopExcept, 0)
				b.label("out")
			},
			want: errors.ErrCrossingBoundary,
		},
		{
			name: "too many loops",
			build: func(b *unitBuilder) {
				b.label("out")
				for i := 0; i < 12; i++ {
					b.loop()
				}
				b.jump("out")
			},
			want: errors.ErrNestedTooDeep,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(code.Wordcode)
			tt.build(b)
			s, err := Scan(b.unit(), DefaultMarkers)
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			_, err = Validate(s)
			if !stderrors.Is(err, tt.want) {
				t.Errorf("Validate error = %v, want %s", err, tt.want.Kind)
			}
		})
	}
}

func TestValidate_AllowedShapes(t *testing.T) {
	tests := []struct {
		name   string
		build  func(b *unitBuilder)
		excess int
	}{
		{
			name: "same block",
			build: func(b *unitBuilder) {
				b.loop()
				b.label("a")
				b.jump("a")
				b.exit()
			},
		},
		{
			name: "out of one loop",
			build: func(b *unitBuilder) {
				b.loop()
				b.jump("a")
				b.exit()
				b.label("a")
			},
			excess: 1,
		},
		{
			name: "out of loop inside with",
			build: func(b *unitBuilder) {
				b.op(code.OpSetupWith, 0)
				b.loop()
				b.jump("a")
				b.exit()
				b.label("a")
				b.exit()
			},
			excess: 1,
		},
		{
			name: "eight loops",
			build: func(b *unitBuilder) {
				for i := 0; i < 8; i++ {
					b.loop()
				}
				b.jump("a")
				for i := 0; i < 8; i++ {
					b.exit()
				}
				b.label("a")
			},
			excess: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBuilder(code.Wordcode)
			tt.build(b)
			s, err := Scan(b.unit(), DefaultMarkers)
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			plans, err := Validate(s)
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if len(plans) != 1 || plans[0].Excess != tt.excess {
				t.Fatalf("plans = %+v, want excess %d", plans, tt.excess)
			}
		})
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	b := newBuilder(code.Wordcode)
	b.loop()
	b.label("in")
	b.exit()
	b.jump("in")
	b.op(code.OpSetupFinally, 0)
	b.jump("out")
	b.exit()
	b.label("out")
	b.jump("out")

	s, err := Scan(b.unit(), DefaultMarkers)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	plans, err := Validate(s)
	if plans != nil {
		t.Error("plans returned alongside errors")
	}
	errs := multierr.Errors(err)
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), err)
	}
	if !stderrors.Is(errs[0], errors.ErrNotWithinBlock) || !stderrors.Is(errs[1], errors.ErrCrossingBoundary) {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestPatch_BackwardAndForward(t *testing.T) {
	b := newBuilder(code.Wordcode)
	fwd := b.jump("end")
	top := b.label("top")
	back := b.jump("top")
	end := b.label("end")
	u := b.unit()

	out, err := New(Config{}).Rewrite(u)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if !out.Has(code.FlagGotoPatched) {
		t.Error("rewritten unit not flagged")
	}
	if string(u.Code) == string(out.Code) || len(u.Code) != len(out.Code) {
		t.Fatal("buffer not patched in place")
	}

	f := code.Wordcode
	in := decodeAt(t, f, out.Code, fwd)
	if in.Op != code.OpJumpForward {
		t.Fatalf("forward site decoded as %s", code.OpName(f, in.Op))
	}
	if target, _ := code.JumpTarget(f, in); target != end+22 {
		t.Errorf("forward jump lands at %d, want %d", target, end+22)
	}

	in = decodeAt(t, f, out.Code, back)
	if in.Op != code.OpJumpBackward {
		t.Fatalf("backward site decoded as %s", code.OpName(f, in.Op))
	}
	if target, _ := code.JumpTarget(f, in); target != top+22 {
		t.Errorf("backward jump lands at %d, want %d", target, top+22)
	}

	// Label sites become NOP runs.
	for off := top; off < top+22; off += 2 {
		if code.Opcode(out.Code[off]) != code.OpNop {
			t.Fatalf("label slot at %d not cleared", off)
		}
	}
	if u.Has(code.FlagGotoPatched) || code.Opcode(u.Code[top]) != code.OpLoadGlobal {
		t.Error("original unit modified")
	}
}

func TestPatch_ExtendedDisplacement(t *testing.T) {
	f := code.Wordcode
	b := newBuilder(f)
	top := b.label("top")
	fwd := b.jump("end")
	b.nops(300)
	back := b.jump("top")
	end := b.label("end")

	res, err := New(Config{}).Plan(b.unit())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	for _, p := range res.Plans {
		if p.Prefixes != 1 {
			t.Errorf("%s jump uses %d prefixes, want 1", p.Direction, p.Prefixes)
		}
	}

	out, err := New(Config{}).Rewrite(b.unit())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}

	in := decodeAt(t, f, out.Code, fwd)
	if in.Op != code.OpJumpForward || in.Prefixes != 1 || in.Arg <= 255 {
		t.Fatalf("forward jump = %+v", in)
	}
	if target, _ := code.JumpTarget(f, in); target != end+22 {
		t.Errorf("forward jump lands at %d, want %d", target, end+22)
	}

	in = decodeAt(t, f, out.Code, back)
	if in.Op != code.OpJumpBackward || in.Prefixes != 1 {
		t.Fatalf("backward jump = %+v", in)
	}
	if target, _ := code.JumpTarget(f, in); target != top+22 {
		t.Errorf("backward jump lands at %d, want %d", target, top+22)
	}
}

func TestPatch_BlockExits(t *testing.T) {
	f := code.Wordcode
	b := newBuilder(f)
	for i := 0; i < 8; i++ {
		b.loop()
	}
	g := b.jump("out")
	for i := 0; i < 8; i++ {
		b.exit()
	}
	out := b.label("out")

	u, err := New(Config{}).Rewrite(b.unit())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	for i := uint32(0); i < 8; i++ {
		if op := code.Opcode(u.Code[g+2*i]); op != code.OpPopBlock {
			t.Fatalf("slot %d of goto site is %s, want pop_block", i, code.OpName(f, op))
		}
	}
	in := decodeAt(t, f, u.Code, g+16)
	if target, ok := code.JumpTarget(f, in); !ok || target != out+22 {
		t.Errorf("jump lands at %d, want %d", target, out+22)
	}
}

func TestPatch_CompactFormat(t *testing.T) {
	f := code.Compact
	b := newBuilder(f)
	b.label("top")
	b.loop()
	b.jump("top")
	b.exit()
	if _, err := New(Config{}).Rewrite(b.unit()); err != nil {
		t.Fatalf("one loop should fit a compact site: %v", err)
	}

	b = newBuilder(f)
	b.label("top")
	for i := 0; i < 3; i++ {
		b.loop()
	}
	b.jump("top")
	_, err := New(Config{}).Rewrite(b.unit())
	if !stderrors.Is(err, errors.ErrNestedTooDeep) {
		t.Errorf("expected nested too deep, got %v", err)
	}
}

func TestPatch_RefusesForeignSlots(t *testing.T) {
	b := newBuilder(code.Wordcode)
	b.label("a")
	b.jump("a")
	s, err := Scan(b.unit(), DefaultMarkers)
	if err != nil {
		t.Fatal(err)
	}
	plans, err := Validate(s)
	if err != nil {
		t.Fatal(err)
	}

	// A plan claiming more exits than the site holds must be caught.
	plans[0].Excess = 11
	_, err = Patch(s, plans)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhasePatch, Kind: errors.KindNestedTooDeep}) {
		t.Errorf("expected patch-phase nested too deep, got %v", err)
	}
}

func TestEngine_NoMarkers(t *testing.T) {
	b := newBuilder(code.Wordcode)
	b.op(code.OpLoadConst, 0)
	b.op(code.OpReturnValue, 0)
	u := b.unit()

	out, err := New(Config{}).Rewrite(u)
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if out != u {
		t.Error("unit without markers should be returned unchanged")
	}
}

func TestEngine_AlreadyPatched(t *testing.T) {
	b := newBuilder(code.Wordcode)
	b.label("a")
	b.jump("a")

	eng := New(Config{})
	u, err := eng.Rewrite(b.unit())
	if err != nil {
		t.Fatalf("Rewrite failed: %v", err)
	}
	if _, err := eng.Rewrite(u); !stderrors.Is(err, errors.ErrAlreadyTransformed) {
		t.Errorf("expected already transformed, got %v", err)
	}
	if _, err := eng.Plan(nil); !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidInput}) {
		t.Errorf("expected invalid input for nil unit, got %v", err)
	}
}

func TestEngine_CustomMarkers(t *testing.T) {
	b := newBuilder(code.Wordcode)
	b.marker("here", "a")
	b.marker("go", "a")

	eng := New(Config{Markers: Markers{Label: "here", Goto: "go"}})
	res, err := eng.Plan(b.unit())
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(res.Plans) != 1 {
		t.Errorf("plans = %d, want 1", len(res.Plans))
	}

	partial := New(Config{Markers: Markers{Goto: "jump"}}).Markers()
	if partial.Label != "label" || partial.Goto != "jump" {
		t.Errorf("partial markers = %+v", partial)
	}
}
