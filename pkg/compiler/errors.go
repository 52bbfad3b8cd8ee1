package compiler

import "fmt"

// CompileError is one diagnostic produced while compiling (spec §6
// "Diagnostics format"). Compile runs to completion collecting every
// error it can rather than stopping at the first (spec §7: "multiple
// compile errors may be reported in one run").
type CompileError struct {
	Line    int
	Where   string // "at '<lexeme>'", "at end", or "" for a scanner-reported message
	Message string
}

func (e CompileError) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
	}
	return fmt.Sprintf("[line %d] Error %s: %s", e.Line, e.Where, e.Message)
}
