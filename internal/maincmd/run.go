package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"

	"github.com/kristofer/vex/internal/config"
	"github.com/kristofer/vex/pkg/global"
	"github.com/kristofer/vex/pkg/heap"
	"github.com/kristofer/vex/pkg/stdlib"
	"github.com/kristofer/vex/pkg/vm"
)

// Run compiles and interprets args[0], exiting with the sysexits-style
// code matching its InterpretResult (spec §6): Ok -> 0, CompileErr -> 65,
// RuntimeErr -> 70.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return &cmdError{code: exitNoInput, err: err}
	}

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

	result, err := v.Interpret(string(data))
	switch result {
	case vm.CompileErr:
		return &cmdError{code: exitDataErr, err: err}
	case vm.RuntimeErr:
		fmt.Fprintln(stdio.Stderr, err)
		return &cmdError{code: exitSoftware, err: err}
	}
	return nil
}
