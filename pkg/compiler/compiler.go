// Package compiler implements the single-pass Pratt compiler of spec
// §4.4: source text goes straight to bytecode with no intermediate AST,
// resolving locals, upvalues and globals as it parses.
package compiler

import (
	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/global"
	"github.com/kristofer/vex/pkg/heap"
	"github.com/kristofer/vex/pkg/scanner"
	"github.com/kristofer/vex/pkg/token"
)

// FuncType distinguishes the implicit top-level script function from a
// compiled `fun` literal, since only the latter accepts `return <value>`
// (spec §4.4 returnStatement: "Can't return from top-level code.").
type FuncType int

const (
	TypeScript FuncType = iota
	TypeFunction
)

// local is one entry of a Compiler's locals array (spec §3.4):
// `(name, depth, immutable, isCaptured)`. depth == -1 marks a declared
// but not-yet-initialized local (spec: "Can't read local variable in its
// own initializer.").
type local struct {
	name       string
	depth      int
	immutable  bool
	isCaptured bool
}

// upvalueRef is one entry of a Compiler's deduplicated upvalue list (spec
// §3.4): `(index, isLocal)`.
type upvalueRef struct {
	index   int
	isLocal bool
}

type loopKind int

const (
	kindLoop loopKind = iota
	kindSwitch
)

// controlFlow is one entry of the controlFlowStack of spec §3.4:
// `{kind, loopStart, scopeDepth, breakPatchHead}`. breakJumps holds the
// pending forward-jump offsets as a plain slice rather than a linked
// list — patched the same way, at context exit. loopVarSlot/shadowSlot
// are -1 except for a `for (var ...)` loop with a per-iteration shadow
// (see forStatement): when set, continueStatement must copy the shadow
// back to the real counter before jumping, the same write the body's
// normal fall-through path performs.
type controlFlow struct {
	kind        loopKind
	loopStart   int
	scopeDepth  int
	breakJumps  []int
	loopVarSlot int
	shadowSlot  int
}

// Parser holds the token stream and error-accumulation state shared by
// every Compiler in a single compile (the top-level script compiler and
// every nested function compiler it spawns), as explicit fields of a
// value threaded through rather than package-level globals (spec §9).
type Parser struct {
	scanner *scanner.Scanner
	heap    *heap.Heap
	globals *global.Environment

	current, previous token.Token

	hadError  bool
	panicMode bool
	errors    []CompileError

	// anonCounter numbers anonymous function literals for their synthetic
	// debug name (spec §4.4: "anonymous#<n>@<line>").
	anonCounter int
}

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scanner.Next()
		if p.current.Kind != token.Error {
			break
		}
		p.errorAt(p.current, p.current.Lexeme)
	}
}

func (p *Parser) check(k token.Kind) bool { return p.current.Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(k token.Kind, msg string) {
	if p.current.Kind == k {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *Parser) error(msg string)          { p.errorAt(p.previous, msg) }

// errorAt implements the panic-mode scheme of spec §4.4/§7: the first
// error in a run is recorded and flips panicMode; subsequent errors are
// suppressed until synchronize() resets it at the next statement
// boundary.
func (p *Parser) errorAt(t token.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true

	var where string
	switch t.Kind {
	case token.Eof:
		where = "at end"
	case token.Error:
		where = ""
	default:
		where = "at '" + t.Lexeme + "'"
	}
	p.errors = append(p.errors, CompileError{Line: t.Line, Where: where, Message: msg})
}

// Compiler is the per-function compilation state of spec §3.4. Nested
// function literals push a fresh Compiler with enclosing set to the
// Compiler that was active when the `fun` token was seen, forming the
// static chain resolveUpvalue walks.
type Compiler struct {
	p         *Parser
	enclosing *Compiler

	function *bytecode.Function
	funcType FuncType

	locals     []local
	upvalues   []upvalueRef
	scopeDepth int

	control []controlFlow
}

// Compile implements the `compile(source) -> Option<Function>` contract
// of spec §4.4: it returns the top-level function (name-less, arity 0)
// on success, or nil plus every accumulated CompileError otherwise.
func Compile(source string, h *heap.Heap, globals *global.Environment) (*bytecode.Function, []CompileError) {
	p := &Parser{scanner: scanner.New(source), heap: h, globals: globals}
	c := newCompiler(p, nil, TypeScript, "")

	h.PushCompilerRoot(c)
	defer h.PopCompilerRoot()

	p.advance()
	for !p.match(token.Eof) {
		c.declaration()
	}
	fn := c.endCompiler()

	if p.hadError {
		return nil, p.errors
	}
	return fn, nil
}

func newCompiler(p *Parser, enclosing *Compiler, funcType FuncType, name string) *Compiler {
	fn := p.heap.AllocateFunction()
	if name != "" {
		fn.Name = p.heap.InternString(name)
	}
	c := &Compiler{p: p, enclosing: enclosing, function: fn, funcType: funcType}
	// Slot 0 is reserved for the callee (spec §3.4); it has no source
	// name, so no user identifier can ever resolve to it.
	c.locals = append(c.locals, local{name: "", depth: 0, immutable: true})
	return c
}

func (c *Compiler) chunk() *bytecode.Chunk { return c.function.Chunk }

func (c *Compiler) emitByte(b byte) { c.chunk().WriteByte(b, c.p.previous.Line) }

func (c *Compiler) emitOp(op bytecode.OpCode) { c.emitByte(byte(op)) }

func (c *Compiler) emitIndexed(op bytecode.OpCode, index int) {
	if err := c.chunk().WriteIndex(op, index, c.p.previous.Line); err != nil {
		c.p.error(err.Error())
	}
}

func (c *Compiler) emitJump(op bytecode.OpCode) int {
	return c.chunk().WriteJump(op, c.p.previous.Line)
}

func (c *Compiler) patchJump(offset int) {
	if err := c.chunk().PatchJump(offset); err != nil {
		c.p.error(err.Error())
	}
}

func (c *Compiler) emitLoop(op bytecode.OpCode, loopStart int) {
	if err := c.chunk().WriteLoop(op, loopStart, c.p.previous.Line); err != nil {
		c.p.error(err.Error())
	}
}

func (c *Compiler) emitReturn() {
	c.emitOp(bytecode.OpNil)
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) emitPopN(n int) {
	if n <= 0 {
		return
	}
	if n == 1 {
		c.emitOp(bytecode.OpPop)
		return
	}
	c.emitOp(bytecode.OpPopN)
	c.emitByte(byte(n))
}

func (c *Compiler) emitNumber(n float64) {
	switch n {
	case -1:
		c.emitOp(bytecode.OpConstantM1)
	case 0:
		c.emitOp(bytecode.OpConstant0)
	case 1:
		c.emitOp(bytecode.OpConstant1)
	case 2:
		c.emitOp(bytecode.OpConstant2)
	default:
		c.emitConstant(bytecode.Number(n))
	}
}

func (c *Compiler) emitConstant(v bytecode.Value) {
	idx := c.chunk().AddConstant(v)
	c.emitIndexed(bytecode.OpConstant, idx)
}

// endCompiler closes out the function under construction with the
// implicit "NIL; RETURN" spec §4.4 requires of every function body, and
// returns it to the enclosing compiler (or Compile, at the top level).
func (c *Compiler) endCompiler() *bytecode.Function {
	c.emitReturn()
	return c.function
}

func (c *Compiler) beginScope() { c.scopeDepth++ }

// endScope pops every local deeper than the scope being exited (spec
// §4.4 "Scope exit"): a captured local closes its upvalue instead of a
// plain pop, and runs of ordinary locals coalesce into a single POPN.
func (c *Compiler) endScope() {
	c.scopeDepth--
	run := 0
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		if c.locals[len(c.locals)-1].isCaptured {
			c.emitPopN(run)
			run = 0
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			run++
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
	c.emitPopN(run)
}

func (c *Compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

// resolveLocal implements spec §4.4's innermost-to-outermost local
// search over c's own locals, erroring on self-reference from within an
// uninitialized binding's own initializer.
func resolveLocal(c *Compiler, name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			if c.locals[i].depth == -1 {
				c.p.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue implements the recursive capture walk of spec §4.4: a
// local found in the immediately enclosing compiler is marked captured
// there and added as a direct upvalue here; one found further out is
// threaded through as an indirect upvalue at each intervening level.
func resolveUpvalue(c *Compiler, name string) int {
	if c.enclosing == nil {
		return -1
	}
	if local := resolveLocal(c.enclosing, name); local != -1 {
		c.enclosing.locals[local].isCaptured = true
		return c.addUpvalue(local, true)
	}
	if up := resolveUpvalue(c.enclosing, name); up != -1 {
		return c.addUpvalue(up, false)
	}
	return -1
}

// addUpvalue dedups by (index, isLocal) per spec §3.4 and keeps
// function.UpvalueCount in sync so the emitted CLOSURE instruction knows
// how many capture-metadata byte pairs follow it.
func (c *Compiler) addUpvalue(index int, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= 256 {
		c.p.error("Too many closure variables in function.")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	c.function.UpvalueCount = len(c.upvalues)
	return len(c.upvalues) - 1
}

// MarkRoots implements heap.RootMarker: a Compiler's only root is the
// function it is currently building (spec §4.7 "for each active Compiler
// in the enclosing chain, its function under construction").
func (c *Compiler) MarkRoots(h *heap.Heap) {
	if c.function != nil {
		h.MarkObject(c.function)
	}
}
