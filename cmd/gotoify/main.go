package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/gotoify"
	"github.com/wippyai/gotoify/asm"
	"github.com/wippyai/gotoify/code"
	"github.com/wippyai/gotoify/vm"
)

func main() {
	var (
		file        = flag.String("file", "", "Path to assembly source")
		funcName    = flag.String("func", "", "Function to call (optional)")
		args        = flag.String("args", "", "Call arguments (comma-separated)")
		plan        = flag.Bool("plan", false, "Print label and goto sites with their patches")
		configPath  = flag.String("config", "", "TOML configuration file")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive step viewer")
	)
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "Usage: gotoify -file <prog.gasm> [-func name] [-args 1,2] [-config file.toml]")
		fmt.Fprintln(os.Stderr, "       gotoify -file <prog.gasm> -plan")
		fmt.Fprintln(os.Stderr, "       gotoify -file <prog.gasm> -i  (interactive mode)")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode needs a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*file, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	log, err := newLogger(*verbose, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	vm.SetLogger(log)

	if err := run(os.Stdout, *file, *funcName, *args, *plan, cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(w io.Writer, file, funcName, argStr string, planOnly bool, cfg *Config, log *zap.Logger) error {
	prog, err := loadProgram(file)
	if err != nil {
		return err
	}

	if planOnly {
		for _, u := range prog.Units {
			report, err := gotoify.Plan(u, gotoify.Config{Logger: log, Markers: cfg.markers()})
			if err != nil {
				return fmt.Errorf("%s: %w", u.Name, err)
			}
			printReport(w, report)
		}
		return nil
	}

	fns, err := transformAll(prog, cfg, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Program: %s (%s)\n", file, prog.Format.Name())
	for _, fn := range fns {
		state := "unchanged"
		if fn.Unit().Has(code.FlagGotoPatched) {
			state = "patched"
		}
		fmt.Fprintf(w, "  %s: %s\n", fn.Name(), state)
	}

	if funcName == "" {
		return nil
	}
	var target *code.Function
	for _, fn := range fns {
		if fn.Name() == funcName {
			target = fn
		}
	}
	if target == nil {
		return fmt.Errorf("function %q not found", funcName)
	}

	opts := append([]vm.Option{vm.WithFunctions(fns...), vm.WithOutput(w)}, cfg.machineOptions()...)
	m := vm.New(opts...)

	callArgs := parseArgs(argStr)
	fmt.Fprintf(w, "\nCalling %s(%s)...\n", funcName, formatArgs(callArgs))
	result, err := m.Call(context.Background(), target, callArgs...)
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}
	fmt.Fprintf(w, "Result: %s\n", vm.Format(result))
	return nil
}

func loadProgram(path string) (*asm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	prog, err := asm.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", path, err)
	}
	return prog, nil
}

// transformAll wraps every unit in a function and applies the rewrite.
// Failures are collected so every broken function is reported.
func transformAll(prog *asm.Program, cfg *Config, log *zap.Logger) ([]*code.Function, error) {
	fns := make([]*code.Function, 0, len(prog.Units))
	var errs error
	for _, u := range prog.Units {
		fn := code.NewFunction(u)
		if _, err := gotoify.Apply(fn, gotoify.WithMarkers(cfg.markers()), gotoify.WithLogger(log)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", u.Name, err))
			continue
		}
		fns = append(fns, fn)
	}
	if errs != nil {
		return nil, errs
	}
	return fns, nil
}

func printReport(w io.Writer, r *gotoify.Report) {
	fmt.Fprintf(w, "func %s: %d label(s), %d goto(s)\n", r.Unit, len(r.Labels), len(r.Gotos))
	for _, l := range r.Labels {
		fmt.Fprintf(w, "  label %-12s site %4d..%-4d target %4d  [%s]\n",
			l.Name, l.Site.Start, l.Site.End, l.Target(), formatContext(l.Context))
	}
	for _, p := range r.Plans {
		fmt.Fprintf(w, "  goto  %-12s site %4d..%-4d -> %4d  %s %d, exits %d, prefixes %d, slots %d/%d  [%s]\n",
			p.Goto.Label, p.Goto.Site.Start, p.Goto.Site.End, p.Target(),
			p.Direction, p.Displacement, p.Excess, p.Prefixes, p.Slots(), p.Goto.Site.Slots(),
			formatContext(p.Goto.Context))
	}
}

func formatContext(frames []gotoify.Frame) string {
	if len(frames) == 0 {
		return "top"
	}
	parts := make([]string, len(frames))
	for i, f := range frames {
		parts[i] = f.Kind.String()
	}
	return strings.Join(parts, "/")
}

func formatArgs(args []vm.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
		} else {
			parts[i] = vm.Format(a)
		}
	}
	return strings.Join(parts, ", ")
}
