package maincmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mna/mainer"

	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/compiler"
	"github.com/kristofer/vex/pkg/global"
	"github.com/kristofer/vex/pkg/heap"
)

// Disasm compiles args[0] and prints the disassembly of its top-level
// function and every nested function literal, without running the
// program, exercising pkg/bytecode.Disassemble directly.
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return &cmdError{code: exitNoInput, err: err}
	}

	h := heap.New(heap.Config{})
	g := global.New()
	fn, errs := compiler.Compile(string(data), h, g)
	if fn == nil {
		for _, e := range errs {
			fmt.Fprintln(stdio.Stderr, e.Error())
		}
		return &cmdError{code: exitDataErr, err: errs[0]}
	}

	disassembleNested(stdio.Stdout, fn)
	return nil
}

func disassembleNested(w io.Writer, fn *bytecode.Function) {
	bytecode.Disassemble(w, fn.Chunk, fn.DisplayName())
	for _, v := range fn.Chunk.Constants {
		if v.IsObj() {
			if nested, ok := v.AsObj().(*bytecode.Function); ok {
				disassembleNested(w, nested)
			}
		}
	}
}
