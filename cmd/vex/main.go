// Command vex is the CLI driver: compile-and-run a script, disassemble
// one, or drop into a REPL. The language core lives in pkg/*; this
// binary is thin glue over internal/maincmd, per spec.md §1's "out of
// scope: the command-line driver".
package main

import (
	"os"

	"github.com/mna/mainer"

	"github.com/kristofer/vex/internal/maincmd"
)

var (
	// placeholder values, replaced on build
	version   = "{v}" // must be N.N[.N]
	buildDate = "{d}" // must be YYYY-mm-DD
)

func main() {
	c := maincmd.Cmd{BuildVersion: version, BuildDate: buildDate}
	os.Exit(int(c.Main(os.Args, mainer.CurrentStdio())))
}
