package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/gotoify"
	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/vm"
)

const (
	defaultMaxSteps = 100000
	traceWindow     = 20
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	opStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateTrace
)

// recorder keeps every step of a call, halting once limit is reached.
type recorder struct {
	vm.NoOpObserver
	steps []vm.StepEvent
	limit int
}

func (r *recorder) OnStep(e vm.StepEvent) bool {
	if len(r.steps) >= r.limit {
		return false
	}
	r.steps = append(r.steps, e)
	return true
}

type interactiveModel struct {
	err      error
	cfg      *Config
	fns      []*code.Function
	reports  map[string]*gotoify.Report
	filename string
	result   string
	steps    []vm.StepEvent
	input    textinput.Model
	selected int
	cursor   int
	state    modelState
}

type loadedMsg struct {
	err     error
	fns     []*code.Function
	reports map[string]*gotoify.Report
}

type traceMsg struct {
	err    error
	result string
	steps  []vm.StepEvent
}

func newInteractiveModel(filename string, cfg *Config) *interactiveModel {
	return &interactiveModel{
		filename: filename,
		cfg:      cfg,
		state:    stateSelectFunc,
	}
}

func runInteractive(filename string, cfg *Config) error {
	p := tea.NewProgram(newInteractiveModel(filename, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadProgram
}

func (m *interactiveModel) loadProgram() tea.Msg {
	prog, err := loadProgram(m.filename)
	if err != nil {
		return loadedMsg{err: err}
	}

	reports := make(map[string]*gotoify.Report, len(prog.Units))
	for _, u := range prog.Units {
		r, err := gotoify.Plan(u, gotoify.Config{Markers: m.cfg.markers()})
		if err != nil {
			return loadedMsg{err: fmt.Errorf("%s: %w", u.Name, err)}
		}
		reports[u.Name] = r
	}

	fns, err := transformAll(prog, m.cfg, zap.NewNop())
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{fns: fns, reports: reports}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				return m, tea.Quit
			}

		case "up", "k":
			switch m.state {
			case stateSelectFunc:
				if m.selected > 0 {
					m.selected--
				}
			case stateTrace:
				m.moveCursor(-1)
			}

		case "down", "j":
			switch m.state {
			case stateSelectFunc:
				if m.selected < len(m.fns)-1 {
					m.selected++
				}
			case stateTrace:
				m.moveCursor(1)
			}

		case "pgup":
			m.moveCursor(-traceWindow)

		case "pgdown":
			m.moveCursor(traceWindow)

		case "home":
			m.moveCursor(-len(m.steps))

		case "end":
			m.moveCursor(len(m.steps))

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if len(m.fns) == 0 {
					return m, nil
				}
				fn := m.fns[m.selected]
				if fn.Unit().ArgCount == 0 {
					return m, m.trace(nil)
				}
				m.prepareInput(fn)
				m.state = stateInputArgs
				return m, textinput.Blink

			case stateInputArgs:
				return m, m.trace(parseArgs(m.input.Value()))

			case stateTrace:
				m.reset()
			}

		case "esc":
			if m.state != stateSelectFunc {
				m.reset()
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.fns = msg.fns
		m.reports = msg.reports

	case traceMsg:
		m.steps = msg.steps
		m.result = msg.result
		m.err = msg.err
		m.cursor = 0
		m.state = stateTrace
	}

	if m.state == stateInputArgs {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectFunc
	m.steps = nil
	m.result = ""
	m.err = nil
}

func (m *interactiveModel) moveCursor(delta int) {
	if m.state != stateTrace || len(m.steps) == 0 {
		return
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.steps)-1)
}

func (m *interactiveModel) prepareInput(fn *code.Function) {
	u := fn.Unit()
	ti := textinput.New()
	ti.Placeholder = strings.Join(u.Varnames[:u.ArgCount], ", ")
	ti.Prompt = fn.Name() + "("
	ti.Width = 40
	ti.Focus()
	m.input = ti
}

// trace runs the selected function on a fresh machine, recording each step.
func (m *interactiveModel) trace(args []vm.Value) tea.Cmd {
	fns := m.fns
	fn := fns[m.selected]
	limit := m.cfg.Run.MaxSteps
	if limit <= 0 {
		limit = defaultMaxSteps
	}
	opts := m.cfg.machineOptions()

	return func() tea.Msg {
		rec := &recorder{limit: limit}
		var out strings.Builder
		opts = append(opts, vm.WithFunctions(fns...), vm.WithOutput(&out), vm.WithObserver(rec))
		result, err := vm.New(opts...).Call(context.Background(), fn, args...)
		if err != nil {
			return traceMsg{err: err, steps: rec.steps, result: out.String()}
		}
		return traceMsg{steps: rec.steps, result: out.String() + "=> " + vm.Format(result)}
	}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateTrace {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if m.fns == nil {
		return "Loading program..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("gotoify"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a function to trace:\n\n")
		for i, fn := range m.fns {
			line := m.formatFunc(fn)
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
		if len(m.fns) > 0 {
			b.WriteString("\n")
			b.WriteString(m.viewPlan(m.fns[m.selected].Name()))
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter trace • q quit"))

	case stateInputArgs:
		fn := m.fns[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(fn.Name())))
		b.WriteString(m.input.View())
		b.WriteString(")\n\n")
		b.WriteString(helpStyle.Render("enter trace • esc back"))

	case stateTrace:
		b.WriteString(m.viewTrace())
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(fn *code.Function) string {
	u := fn.Unit()
	line := funcStyle.Render(fn.Name()) + "(" + strings.Join(u.Varnames[:u.ArgCount], ", ") + ")"
	if r := m.reports[fn.Name()]; r != nil && len(r.Gotos) > 0 {
		line += fmt.Sprintf("  %d label(s), %d goto(s)", len(r.Labels), len(r.Gotos))
	}
	return line
}

func (m *interactiveModel) viewPlan(name string) string {
	r := m.reports[name]
	if r == nil || len(r.Plans) == 0 {
		return helpStyle.Render("no gotos") + "\n"
	}
	var b strings.Builder
	for _, p := range r.Plans {
		b.WriteString(fmt.Sprintf("  goto %s @%d -> %d %s, exits %d [%s]\n",
			funcStyle.Render(p.Goto.Label), p.Goto.Site.Start, p.Target(),
			p.Direction, p.Excess, formatContext(p.Goto.Context)))
	}
	return b.String()
}

func (m *interactiveModel) viewTrace() string {
	var b strings.Builder
	fn := m.fns[m.selected]
	b.WriteString(fmt.Sprintf("Trace of %s: %d step(s)\n\n", funcStyle.Render(fn.Name()), len(m.steps)))
	b.WriteString(helpStyle.Render(fmt.Sprintf("  %6s  %-10s %6s  %-18s %4s %6s %5s", "step", "unit", "offset", "op", "arg", "stack", "block")))
	b.WriteString("\n")

	start := max(0, min(m.cursor-traceWindow/2, len(m.steps)-traceWindow))
	end := min(len(m.steps), start+traceWindow)
	for i := start; i < end; i++ {
		s := m.steps[i]
		line := fmt.Sprintf("  %6d  %-10s %6d  %-18s %4d %6d %5d",
			i, s.Unit, s.Offset, s.OpName, s.Arg, s.StackDepth, s.BlockDepth)
		if i == m.cursor {
			b.WriteString(selectedStyle.Render(line))
		} else {
			b.WriteString(opStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.result != "" {
		b.WriteString(resultStyle.Render(m.result))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ step • pgup/pgdown page • enter back • q quit"))
	return b.String()
}
