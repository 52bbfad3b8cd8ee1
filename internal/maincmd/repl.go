package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mna/mainer"

	"github.com/kristofer/vex/internal/config"
	"github.com/kristofer/vex/pkg/global"
	"github.com/kristofer/vex/pkg/heap"
	"github.com/kristofer/vex/pkg/stdlib"
	"github.com/kristofer/vex/pkg/vm"
)

// Repl runs a line-oriented read-eval-print loop: a persistent VM and
// global environment carry variable bindings across lines. Each line
// of input is interpreted on its own, since vex statements are already
// semicolon-terminated and need no multi-line buffering.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return &cmdError{code: exitConfig, err: err}
	}

	h := heap.New(heap.Config{
		GrowFactor:       cfg.GCHeapGrowFactor,
		InitialThreshold: cfg.GCInitialThreshold,
		Stress:           cfg.StressGC,
		LogGC:            cfg.LogGC,
		LogWriter:        stdio.Stderr,
	})
	g := global.New()
	v := vm.New(h, g, vm.Config{
		StackMax:    cfg.StackMax,
		FramesMax:   cfg.FramesMax,
		Trace:       cfg.TraceExecution,
		TraceWriter: stdio.Stderr,
		Stdout:      stdio.Stdout,
	})
	stdlib.RegisterWithStdin(v, stdio.Stdin)

	interactive := isatty.IsTerminal(os.Stdin.Fd())
	scanner := bufio.NewScanner(stdio.Stdin)

	for {
		if interactive {
			fmt.Fprint(stdio.Stdout, "vex> ")
		}
		if !scanner.Scan() {
			break
		}

		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := scanner.Text()
		if line == "" {
			continue
		}
		if result, err := v.Interpret(line); err != nil && result != vm.Ok {
			fmt.Fprintln(stdio.Stderr, err)
		}
	}
	return scanner.Err()
}
