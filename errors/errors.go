package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode   Phase = "decode"   // instruction stream decoding
	PhaseScan     Phase = "scan"     // marker collection
	PhaseValidate Phase = "validate" // crossing checks and patch planning
	PhasePatch    Phase = "patch"    // byte rewriting
	PhaseInstall  Phase = "install"  // unit rebuild and swap
	PhaseParse    Phase = "parse"    // assembly text parsing
	PhaseAssemble Phase = "assemble" // unit assembly
	PhaseRuntime  Phase = "runtime"  // interpreter execution
)

// Kind categorizes the error
type Kind string

const (
	KindDuplicateLabel      Kind = "duplicate_label"
	KindMissingLabel        Kind = "missing_label"
	KindNotWithinBlock      Kind = "not_within_label_block"
	KindCrossingBoundary    Kind = "crossing_boundary"
	KindNestedTooDeep       Kind = "nested_too_deep"
	KindAlreadyTransformed  Kind = "already_transformed"
	KindConcurrentInstall   Kind = "concurrent_install"
	KindInvalidData         Kind = "invalid_data"
	KindInvalidInput        Kind = "invalid_input"
	KindUnknownOpcode       Kind = "unknown_opcode"
	KindOverflow            Kind = "overflow"
	KindNotFound            Kind = "not_found"
	KindTypeMismatch        Kind = "type_mismatch"
	KindStackUnderflow      Kind = "stack_underflow"
	KindUncaughtException   Kind = "uncaught_exception"
	KindCancelled           Kind = "cancelled"
	KindUnsupportedOperator Kind = "unsupported_operator"
	KindDivisionByZero      Kind = "division_by_zero"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Unit   string
	Label  string
	Detail string
	Offset int
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Unit != "" {
		b.WriteString(" in ")
		b.WriteString(e.Unit)
	}
	if e.Offset >= 0 && (e.Label != "" || e.Offset > 0) {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	if e.Label != "" {
		fmt.Fprintf(&b, " (label %q)", e.Label)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase != "" && t.Phase != e.Phase {
			return false
		}
		return e.Kind == t.Kind
	}
	return false
}

// Sentinels for errors.Is checks against transform failures.
var (
	ErrDuplicateLabel     = &Error{Kind: KindDuplicateLabel}
	ErrMissingLabel       = &Error{Kind: KindMissingLabel}
	ErrNotWithinBlock     = &Error{Kind: KindNotWithinBlock}
	ErrCrossingBoundary   = &Error{Kind: KindCrossingBoundary}
	ErrNestedTooDeep      = &Error{Kind: KindNestedTooDeep}
	ErrAlreadyTransformed = &Error{Kind: KindAlreadyTransformed}
	ErrConcurrentInstall  = &Error{Kind: KindConcurrentInstall}
)

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase:  phase,
			Kind:   kind,
			Offset: -1,
		},
	}
}

// Unit sets the name of the executable unit
func (b *Builder) Unit(name string) *Builder {
	b.err.Unit = name
	return b
}

// Label sets the label name the error refers to
func (b *Builder) Label(name string) *Builder {
	b.err.Label = name
	return b
}

// Offset sets the byte offset of the offending site
func (b *Builder) Offset(off uint32) *Builder {
	b.err.Offset = int(off)
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// DuplicateLabel creates an error for a label declared more than once
func DuplicateLabel(unit, label string, first, again uint32) *Error {
	return &Error{
		Phase:  PhaseScan,
		Kind:   KindDuplicateLabel,
		Unit:   unit,
		Label:  label,
		Offset: int(again),
		Detail: fmt.Sprintf("label appears more than once (first at offset %d)", first),
	}
}

// NotWithinBlock creates an error for a goto outside its label's block
func NotWithinBlock(unit, label string, offset uint32, detail string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindNotWithinBlock,
		Unit:   unit,
		Label:  label,
		Offset: int(offset),
		Detail: detail,
	}
}

// CrossingBoundary creates an error for a goto leaving a try, except or
// scoped-resource block
func CrossingBoundary(unit, label string, offset uint32, frame string) *Error {
	return &Error{
		Phase:  PhaseValidate,
		Kind:   KindCrossingBoundary,
		Unit:   unit,
		Label:  label,
		Offset: int(offset),
		Detail: fmt.Sprintf("goto crosses %s boundary", frame),
	}
}

// NestedTooDeep creates an error for a goto whose exits and jump do not fit
// the reserved space at its site
func NestedTooDeep(phase Phase, unit, label string, offset uint32, need, have int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNestedTooDeep,
		Unit:   unit,
		Label:  label,
		Offset: int(offset),
		Detail: fmt.Sprintf("needs %d slots, site has %d", need, have),
		Value:  need,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
		Offset: -1,
	}
}

// InvalidData creates an invalid data error at an offset
func InvalidData(phase Phase, offset int, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Offset: offset,
		Detail: detail,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Offset: -1,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
		Offset: -1,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(line int, detail string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("line %d: %s", line, detail),
		Offset: -1,
	}
}

// MissingGoto is a single goto that names an undeclared label
type MissingGoto struct {
	Label  string
	Offset uint32
}

// MissingLabelsError is returned when one or more gotos name labels that
// never appear in the unit. Every missing label is listed.
type MissingLabelsError struct {
	Unit  string
	Gotos []MissingGoto
}

// NewMissingLabelsError creates an error from the unmatched goto sites
func NewMissingLabelsError(unit string, gotos []MissingGoto) *MissingLabelsError {
	sorted := make([]MissingGoto, len(gotos))
	copy(sorted, gotos)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Label != sorted[j].Label {
			return sorted[i].Label < sorted[j].Label
		}
		return sorted[i].Offset < sorted[j].Offset
	})
	return &MissingLabelsError{Unit: unit, Gotos: sorted}
}

// Labels returns the distinct missing label names in sorted order
func (e *MissingLabelsError) Labels() []string {
	var names []string
	for _, g := range e.Gotos {
		if len(names) == 0 || names[len(names)-1] != g.Label {
			names = append(names, g.Label)
		}
	}
	return names
}

func (e *MissingLabelsError) Error() string {
	if len(e.Gotos) == 0 {
		return "[scan] missing_label: no gotos specified"
	}

	var b strings.Builder
	labels := e.Labels()
	fmt.Fprintf(&b, "[scan] missing_label: %d label(s) not declared", len(labels))
	if e.Unit != "" {
		b.WriteString(" in ")
		b.WriteString(e.Unit)
	}
	b.WriteByte(':')

	byLabel := make(map[string][]uint32)
	for _, g := range e.Gotos {
		byLabel[g.Label] = append(byLabel[g.Label], g.Offset)
	}
	for _, name := range labels {
		b.WriteString("\n  ")
		b.WriteString(name)
		b.WriteString(": goto at")
		for _, off := range byLabel[name] {
			fmt.Fprintf(&b, " %d", off)
		}
	}

	return b.String()
}

// Is reports whether target matches this error type
func (e *MissingLabelsError) Is(target error) bool {
	if _, ok := target.(*MissingLabelsError); ok {
		return true
	}
	if t, ok := target.(*Error); ok {
		return t.Kind == KindMissingLabel && (t.Phase == "" || t.Phase == PhaseScan)
	}
	return false
}
