package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wippyai/gotoify/asm/internal/token"
	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/errors"
)

// Program is an assembled source file.
type Program struct {
	Format code.Format
	Units  []*code.Unit
}

// Unit returns the unit called name, or nil.
func (p *Program) Unit(name string) *code.Unit {
	for _, u := range p.Units {
		if u.Name == name {
			return u
		}
	}
	return nil
}

// Parse assembles source text into a program.
func Parse(src string) (*Program, error) {
	p := &parser{
		tokens: token.Tokenize(src),
		format: code.Wordcode,
	}
	return p.parse()
}

// MustParse is like Parse but panics on error.
func MustParse(src string) *Program {
	prog, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return prog
}

type parser struct {
	format code.Format
	prog   *Program
	tokens []token.Token
	pos    int
}

func (p *parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

// line returns the line of the last consumed token.
func (p *parser) line() int {
	if p.pos == 0 || len(p.tokens) == 0 {
		return 1
	}
	return p.tokens[min(p.pos, len(p.tokens))-1].Line
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.ParseFailed(p.line(), fmt.Sprintf(format, args...))
}

func (p *parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		return nil, p.errorf("unexpected end of input, expected %v", typ)
	}
	if t.Type != typ {
		return nil, p.errorf("expected %v, got %q", typ, t.Value)
	}
	return t, nil
}

func (p *parser) parse() (*Program, error) {
	p.prog = &Program{Format: p.format}

	for p.peek() != nil {
		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		kw, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}

		switch kw.Value {
		case "format":
			if err := p.parseFormat(); err != nil {
				return nil, err
			}
		case "func":
			u, err := p.parseFunc()
			if err != nil {
				return nil, err
			}
			if p.prog.Unit(u.Name) != nil {
				return nil, p.errorf("function %q defined twice", u.Name)
			}
			p.prog.Units = append(p.prog.Units, u)
		default:
			return nil, p.errorf("unexpected %q at top level", kw.Value)
		}
	}

	return p.prog, nil
}

func (p *parser) parseFormat() error {
	if len(p.prog.Units) > 0 {
		return p.errorf("format must precede functions")
	}
	t, err := p.expect(token.Ident)
	if err != nil {
		return err
	}
	f, ok := code.FormatByName(t.Value)
	if !ok {
		return p.errorf("unknown format %q", t.Value)
	}
	p.format = f
	p.prog.Format = f
	_, err = p.expect(token.RParen)
	return err
}

func (p *parser) parseFunc() (*code.Unit, error) {
	nameTok, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	b := NewBuilder(strings.TrimPrefix(nameTok.Value, "$"), p.format)

	for {
		t := p.peek()
		if t == nil {
			return nil, p.errorf("unexpected end in func %s", nameTok.Value)
		}
		if t.Type == token.RParen {
			p.next()
			break
		}

		if t.Type == token.Ident {
			p.next()
			if err := p.parseOperation(b, t); err != nil {
				return nil, err
			}
			continue
		}

		if _, err := p.expect(token.LParen); err != nil {
			return nil, err
		}
		kw, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}

		switch kw.Value {
		case "args":
			names, err := p.parseNames()
			if err != nil {
				return nil, err
			}
			b.Args(names...)
			continue
		case "locals":
			names, err := p.parseNames()
			if err != nil {
				return nil, err
			}
			for _, n := range names {
				b.Local(n)
			}
			continue
		case "stack":
			n, err := p.parseU32()
			if err != nil {
				return nil, err
			}
			b.StackSize(int(n))
		default:
			if err := p.parseOperation(b, kw); err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.RParen); err != nil {
			return nil, err
		}
	}

	return b.Build()
}

// parseNames reads identifiers up to and including the closing paren.
func (p *parser) parseNames() ([]string, error) {
	var names []string
	for {
		t := p.next()
		if t == nil {
			return nil, p.errorf("unexpected end of input in name list")
		}
		switch t.Type {
		case token.RParen:
			return names, nil
		case token.Ident:
			names = append(names, t.Value)
		default:
			return nil, p.errorf("expected name, got %q", t.Value)
		}
	}
}

// parseOperation handles one instruction whose mnemonic has been consumed.
func (p *parser) parseOperation(b *Builder, opTok *token.Token) error {
	switch opTok.Value {
	case "label", "goto":
		t, err := p.expect(token.Ident)
		if err != nil {
			return err
		}
		b.Marker(opTok.Value, t.Value)
		return nil
	case "mark":
		t, err := p.expect(token.Ident)
		if err != nil {
			return err
		}
		b.Mark(strings.TrimPrefix(t.Value, "$"))
		return nil
	}

	op, info, ok := code.LookupName(p.format, opTok.Value)
	if !ok {
		return p.errorf("unknown instruction %q", opTok.Value)
	}
	if !info.HasArg {
		b.Emit(op, 0)
		return nil
	}

	t := p.next()
	if t == nil {
		return p.errorf("%s expects an operand", info.Name)
	}

	if info.Jump != code.JumpNone && t.Type == token.Ident && strings.HasPrefix(t.Value, "$") {
		b.Jump(op, t.Value[1:])
		return nil
	}
	if op == code.OpLoadConst {
		v, err := p.literal(t)
		if err != nil {
			return err
		}
		b.LoadConst(v)
		return nil
	}

	switch t.Type {
	case token.Number:
		n, err := parseU32(t.Value)
		if err != nil {
			return p.errorf("invalid operand %q for %s", t.Value, info.Name)
		}
		b.Emit(op, n)
		return nil
	case token.Ident:
		return p.symbolicOperand(b, op, info, t.Value)
	}
	return p.errorf("invalid operand %q for %s", t.Value, info.Name)
}

func (p *parser) symbolicOperand(b *Builder, op code.Opcode, info code.OpInfo, name string) error {
	switch op {
	case code.OpLoadFast, code.OpStoreFast:
		b.Emit(op, b.Local(name))
	case code.OpLoadGlobal, code.OpStoreGlobal, code.OpLoadAttr:
		b.Emit(op, b.Name(name))
	case code.OpBinaryOp:
		bo, ok := code.ParseBinaryOperator(name)
		if !ok {
			return p.errorf("unknown binary operator %q", name)
		}
		b.Binary(bo)
	case code.OpCompareOp:
		c, ok := code.ParseComparison(name)
		if !ok {
			return p.errorf("unknown comparison %q", name)
		}
		b.Compare(c)
	default:
		return p.errorf("%s does not take a name operand", info.Name)
	}
	return nil
}

func (p *parser) literal(t *token.Token) (any, error) {
	switch t.Type {
	case token.Number:
		v, err := strconv.ParseInt(strings.ReplaceAll(t.Value, "_", ""), 0, 64)
		if err != nil {
			return nil, p.errorf("invalid integer %q", t.Value)
		}
		return v, nil
	case token.String:
		s, err := strconv.Unquote(`"` + t.Value + `"`)
		if err != nil {
			return nil, p.errorf("invalid string literal %q", t.Value)
		}
		return s, nil
	case token.Ident:
		switch t.Value {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "none":
			return nil, nil
		}
	}
	return nil, p.errorf("invalid constant %q", t.Value)
}

func (p *parser) parseU32() (uint32, error) {
	t, err := p.expect(token.Number)
	if err != nil {
		return 0, err
	}
	n, err := parseU32(t.Value)
	if err != nil {
		return 0, p.errorf("invalid number: %s", t.Value)
	}
	return n, nil
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 32)
	return uint32(v), err
}
