// Package maincmd implements vex's command dispatch: an mna/mainer-based
// Cmd with a reflection-driven "method name is the subcommand name"
// dispatcher, re-pointed at vex's own commands.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
)

const binName = "vex"

const (
	exitUsage    = 64 // EX_USAGE
	exitDataErr  = 65 // EX_DATAERR: compile error
	exitNoInput  = 66 // EX_NOINPUT
	exitSoftware = 70 // EX_SOFTWARE: runtime error
	exitConfig   = 78 // EX_CONFIG
)

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] <command> [<path>...]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] <command> [<path>...]
       %[1]s -h|--help
       %[1]s -v|--version

A bytecode-compiled interpreter for the %[1]s scripting language.

The <command> can be one of:
       run <file>                Compile and execute a script file.
       repl                      Start an interactive read-eval-print loop.
       disasm <file>             Compile a script and print its bytecode
                                 disassembly without running it.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
       -c --config <path>        Load tunables from a vex.yaml file.

More information on the %[1]s repository:
       https://github.com/kristofer/vex
`, binName)
)

// exitCoder is implemented by an error that knows which process exit code
// it should produce (spec §6 "interpret -> InterpretResult" mapped to the
// sysexits-style codes SPEC_FULL.md §1.4 names).
type exitCoder interface {
	error
	ExitCode() int
}

type cmdError struct {
	code int
	err  error
}

func (e *cmdError) Error() string { return e.err.Error() }
func (e *cmdError) ExitCode() int { return e.code }
func (e *cmdError) Unwrap() error { return e.err }

// Cmd is the top-level command, parsed by mainer.Parser and dispatched by
// method name (buildCmds below) to Run/Repl/Disasm.
type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	ConfigPath string `flag:"c,config"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) { c.flags = flags }

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) == 0 {
		return errors.New("no command specified")
	}

	cmdName := c.args[0]
	commands := buildCmds(c)
	c.cmdFn = commands[cmdName]
	if c.cmdFn == nil {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	if (cmdName == "run" || cmdName == "disasm") && len(c.args[1:]) == 0 {
		return fmt.Errorf("%s: a file must be provided", cmdName)
	}
	return nil
}

// Main runs the parsed command and maps its error, if any, to a process
// exit code: a bare error (no ExitCode) becomes mainer.Failure, since
// each command already prints its own errors before returning; an
// exitCoder (returned by Run for a compile/runtime failure) carries its
// own code through unchanged.
func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{EnvVars: false, EnvPrefix: strings.ToUpper(binName) + "_"}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.ExitCode(exitUsage)
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args[1:]); err != nil {
		var ec exitCoder
		if errors.As(err, &ec) {
			return mainer.ExitCode(ec.ExitCode())
		}
		return mainer.Failure
	}
	return mainer.Success
}

// valid commands are those that take a mainer.Stdio and a slice of strings
// as input, and return an error as output.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
