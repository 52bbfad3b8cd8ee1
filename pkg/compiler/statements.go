package compiler

import (
	"fmt"

	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/token"
)

func (c *Compiler) declaration() {
	switch {
	case c.p.match(token.Var):
		c.varDeclaration(false)
	case c.p.match(token.Const):
		c.varDeclaration(true)
	case c.p.match(token.Fun):
		c.funDeclaration()
	default:
		c.statement()
	}
	if c.p.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration(immutable bool) {
	globalIdx := c.parseVariable("Expect variable name.", immutable)
	if c.p.match(token.Equal) {
		c.expression()
	} else {
		if immutable {
			c.p.error("Const declaration requires an initializer.")
		}
		c.emitOp(bytecode.OpNil)
	}
	c.p.consume(token.Semicolon, "Expect ';' after variable declaration.")
	c.defineVariable(globalIdx, immutable)
}

func (c *Compiler) funDeclaration() {
	globalIdx := c.parseVariable("Expect function name.", false)
	c.markInitialized()
	name := c.p.previous.Lexeme
	c.compileFunctionBody(TypeFunction, name)
	c.defineVariable(globalIdx, false)
}

// functionExpr compiles an anonymous `fun` literal appearing in
// expression position, with the synthetic debug name spec §4.4 mandates.
func (c *Compiler) functionExpr(canAssign bool) {
	c.p.anonCounter++
	name := fmt.Sprintf("anonymous#%d@%d", c.p.anonCounter, c.p.previous.Line)
	c.compileFunctionBody(TypeFunction, name)
}

// compileFunctionBody implements spec §4.4's "Function literal" rule: a
// nested Compiler is pushed as a GC root, parameters become locals at
// depth >= 1, the body compiles as a block, and the outer compiler emits
// CLOSURE plus one (isLocal, index) byte pair per captured upvalue.
func (c *Compiler) compileFunctionBody(funcType FuncType, name string) {
	child := newCompiler(c.p, c, funcType, name)
	c.p.heap.PushCompilerRoot(child)
	defer c.p.heap.PopCompilerRoot()

	child.beginScope()
	child.p.consume(token.LeftParen, "Expect '(' after function name.")
	if !child.p.check(token.RightParen) {
		for {
			child.function.Arity++
			if child.function.Arity > 255 {
				child.p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			paramIdx := child.parseVariable("Expect parameter name.", false)
			child.defineVariable(paramIdx, false)
			if !child.p.match(token.Comma) {
				break
			}
		}
	}
	child.p.consume(token.RightParen, "Expect ')' after parameters.")
	child.p.consume(token.LeftBrace, "Expect '{' before function body.")
	child.block()

	fn := child.endCompiler()
	c.emitClosure(fn, child.upvalues)
}

func (c *Compiler) emitClosure(fn *bytecode.Function, upvalues []upvalueRef) {
	idx := c.chunk().AddConstant(bytecode.FromObj(fn))
	c.emitIndexed(bytecode.OpClosure, idx)
	for _, uv := range upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(byte(uv.index))
	}
}

func (c *Compiler) parseVariable(msg string, immutable bool) int {
	c.p.consume(token.Identifier, msg)
	c.declareVariable(immutable)
	if c.scopeDepth > 0 {
		return -1
	}
	name := c.p.heap.InternString(c.p.previous.Lexeme)
	return c.p.globals.Declare(name, immutable)
}

// declareVariable implements spec §4.4's local-binding half of name
// resolution: at global scope it is a no-op (globals resolve by name at
// the call site, per resolveName), otherwise it registers a new local
// and rejects a duplicate name already declared in the same scope.
func (c *Compiler) declareVariable(immutable bool) {
	if c.scopeDepth == 0 {
		return
	}
	name := c.p.previous.Lexeme
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name == name {
			c.p.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name, immutable)
}

func (c *Compiler) addLocal(name string, immutable bool) {
	if len(c.locals) >= 256 {
		c.p.error("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: -1, immutable: immutable})
}

func (c *Compiler) defineVariable(globalIdx int, immutable bool) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitIndexed(bytecode.OpDefineGlobal, globalIdx)
}

func (c *Compiler) statement() {
	switch {
	case c.p.match(token.Print):
		c.printStatement()
	case c.p.match(token.If):
		c.ifStatement()
	case c.p.match(token.While):
		c.whileStatement()
	case c.p.match(token.Do):
		c.doWhileStatement()
	case c.p.match(token.For):
		c.forStatement()
	case c.p.match(token.Repeat):
		c.repeatStatement()
	case c.p.match(token.Switch):
		c.switchStatement()
	case c.p.match(token.Return):
		c.returnStatement()
	case c.p.match(token.Break):
		c.breakStatement()
	case c.p.match(token.Continue):
		c.continueStatement()
	case c.p.match(token.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.p.check(token.RightBrace) && !c.p.check(token.Eof) {
		c.declaration()
	}
	c.p.consume(token.RightBrace, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.p.consume(token.Semicolon, "Expect ';' after value.")
	c.emitOp(bytecode.OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.p.consume(token.Semicolon, "Expect ';' after expression.")
	c.emitOp(bytecode.OpPop)
}

// ifStatement implements spec §4.4's "if/else if/else" rule. `else if`
// falls out naturally: the else arm is just another statement(), and an
// `if` there recurses into this same function.
func (c *Compiler) ifStatement() {
	c.p.consume(token.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.p.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()

	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop)

	if c.p.match(token.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.p.consume(token.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.p.consume(token.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)

	c.pushControlFlow(kindLoop, loopStart)
	c.statement()
	c.emitLoop(bytecode.OpLoop, loopStart)

	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop)
	c.popControlFlow()
}

// doWhileStatement implements spec §4.4's "do { body } while (cond);"
// rule. LOOP_IF_FALSE pops its condition unconditionally (unlike the
// forward JUMP_IF_TRUE/JUMP_IF_FALSE pair, which spec §4.5 pins as
// non-popping); negating cond first turns "loop while false" into "loop
// while the original condition was true" with no extra POP needed.
func (c *Compiler) doWhileStatement() {
	loopStart := len(c.chunk().Code)
	c.pushControlFlow(kindLoop, loopStart)
	c.statement()
	c.p.consume(token.While, "Expect 'while' after do block.")
	c.p.consume(token.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.p.consume(token.RightParen, "Expect ')' after condition.")
	c.p.consume(token.Semicolon, "Expect ';' after do-while statement.")

	c.emitOp(bytecode.OpNot)
	c.emitLoop(bytecode.OpLoopIfFalse, loopStart)
	c.popControlFlow()
}

// forStatement implements spec §4.4's "for (init; cond; inc) body" rule,
// including the fresh-per-iteration binding for a `var` initializer so a
// closure formed inside the body captures that iteration's value rather
// than the shared counter slot: at the top of each iteration the real
// counter is copied into a shadow local scoped to the body, and copied
// back before the increment clause runs.
func (c *Compiler) forStatement() {
	c.beginScope()
	c.p.consume(token.LeftParen, "Expect '(' after 'for'.")

	loopVarSlot := -1
	switch {
	case c.p.match(token.Semicolon):
	case c.p.match(token.Var):
		c.varDeclaration(false)
		loopVarSlot = len(c.locals) - 1
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.p.match(token.Semicolon) {
		c.expression()
		c.p.consume(token.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(bytecode.OpJumpIfFalse)
		c.emitOp(bytecode.OpPop)
	}

	if !c.p.check(token.RightParen) {
		bodyJump := c.emitJump(bytecode.OpJump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(bytecode.OpPop)
		c.p.consume(token.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(bytecode.OpLoop, loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	} else {
		c.p.consume(token.RightParen, "Expect ')' after for clauses.")
	}

	c.pushControlFlow(kindLoop, loopStart)

	if loopVarSlot != -1 {
		name := c.locals[loopVarSlot].name
		immutable := c.locals[loopVarSlot].immutable

		c.beginScope()
		c.emitByte(byte(bytecode.OpGetLocal))
		c.emitByte(byte(loopVarSlot))
		c.locals = append(c.locals, local{name: name, depth: c.scopeDepth, immutable: immutable})
		shadowSlot := len(c.locals) - 1

		// written directly into the slice element, not through a pointer
		// held across c.statement(): a nested loop/switch compiled inside
		// the body can append to c.control and reallocate its backing
		// array, which would leave a held pointer writing into a stale copy.
		last := len(c.control) - 1
		c.control[last].loopVarSlot = loopVarSlot
		c.control[last].shadowSlot = shadowSlot

		c.statement()

		c.emitShadowCopyBack(loopVarSlot, shadowSlot)
		c.endScope()
	} else {
		c.statement()
	}

	c.emitLoop(bytecode.OpLoop, loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(bytecode.OpPop)
	}
	c.popControlFlow()
	c.endScope()
}

// repeatStatement implements spec §4.4's "repeat (n) body" rule,
// correcting the source's off-by-one ("reads a counter from
// locals[localCount], one past the last local" — spec §9 open question)
// by pushing the count expression and registering the slot it actually
// landed in as a real local before the loop header.
func (c *Compiler) repeatStatement() {
	c.beginScope()
	c.p.consume(token.LeftParen, "Expect '(' after 'repeat'.")
	c.expression()
	c.p.consume(token.RightParen, "Expect ')' after repeat count.")

	c.locals = append(c.locals, local{name: "", depth: c.scopeDepth})
	counterSlot := len(c.locals) - 1

	loopStart := len(c.chunk().Code)
	c.emitByte(byte(bytecode.OpDecLocal))
	c.emitByte(byte(counterSlot))
	c.emitByte(1)
	c.emitNumber(0)
	c.emitOp(bytecode.OpLess)
	c.emitOp(bytecode.OpNot)
	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)

	c.pushControlFlow(kindLoop, loopStart)
	c.statement()
	c.emitLoop(bytecode.OpLoop, loopStart)

	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop)
	c.popControlFlow()
	c.endScope()
}

// switchStatement implements spec §4.4's cascade lowering: the
// discriminant is pushed once and kept on the stack for the whole
// statement (every case label re-tests it via DUP); JUMP_IF_NOT_EQUAL
// consumes the comparison result so the cascade needs no extra pops
// between labels. Fallthrough is the absence of any jump between one
// case's statements and the next label.
func (c *Compiler) switchStatement() {
	c.p.consume(token.LeftParen, "Expect '(' after 'switch'.")
	c.expression()
	c.p.consume(token.RightParen, "Expect ')' after switch value.")
	c.p.consume(token.LeftBrace, "Expect '{' before switch body.")

	c.pushControlFlow(kindSwitch, -1)

	nextTestJump := -1
	sawDefault := false
	for !c.p.check(token.RightBrace) && !c.p.check(token.Eof) {
		switch {
		case c.p.match(token.Case):
			if nextTestJump != -1 {
				c.patchJump(nextTestJump)
			}
			c.emitOp(bytecode.OpDup)
			c.expression()
			c.p.consume(token.Colon, "Expect ':' after case value.")
			c.emitOp(bytecode.OpEqual)
			nextTestJump = c.emitJump(bytecode.OpJumpIfNotEqual)
		case c.p.match(token.Default):
			if nextTestJump != -1 {
				c.patchJump(nextTestJump)
				nextTestJump = -1
			}
			if sawDefault {
				c.p.error("Can't have more than one default case.")
			}
			sawDefault = true
			c.p.consume(token.Colon, "Expect ':' after 'default'.")
		default:
			c.statement()
		}
	}
	if nextTestJump != -1 {
		c.patchJump(nextTestJump)
	}
	c.p.consume(token.RightBrace, "Expect '}' after switch body.")

	// Patch any `break` to land here, right before the shared discriminant
	// pop, so the break path discards it exactly like every other path.
	c.popControlFlow()
	c.emitOp(bytecode.OpPop)
}

func (c *Compiler) returnStatement() {
	if c.funcType == TypeScript {
		c.p.error("Can't return from top-level code.")
	}
	if c.p.match(token.Semicolon) {
		c.emitReturn()
		return
	}
	c.expression()
	c.p.consume(token.Semicolon, "Expect ';' after return value.")
	c.emitOp(bytecode.OpReturn)
}

// breakStatement and continueStatement implement spec §4.4's
// control-flow-stack search: break accepts the nearest Loop or Switch,
// continue only a Loop. Both pop (or close) any locals declared since
// the target context's scopeDepth before transferring control.
func (c *Compiler) breakStatement() {
	if len(c.control) == 0 {
		c.p.error("Can't use 'break' outside of a loop or switch.")
	} else {
		idx := len(c.control) - 1
		c.popLocalsTo(c.control[idx].scopeDepth)
		jump := c.emitJump(bytecode.OpJump)
		c.control[idx].breakJumps = append(c.control[idx].breakJumps, jump)
	}
	c.p.consume(token.Semicolon, "Expect ';' after 'break'.")
}

func (c *Compiler) continueStatement() {
	idx := -1
	for i := len(c.control) - 1; i >= 0; i-- {
		if c.control[i].kind == kindLoop {
			idx = i
			break
		}
	}
	if idx == -1 {
		c.p.error("Can't use 'continue' outside of a loop.")
	} else {
		cf := c.control[idx]
		// the shadow local is still live here, above everything popLocalsTo
		// is about to discard, so the copy-back must run first — otherwise
		// a continue silently drops any mutation the body made to the
		// shadowed loop variable (see forStatement).
		if cf.shadowSlot != -1 {
			c.emitShadowCopyBack(cf.loopVarSlot, cf.shadowSlot)
		}
		c.popLocalsTo(cf.scopeDepth)
		c.emitLoop(bytecode.OpLoop, cf.loopStart)
	}
	c.p.consume(token.Semicolon, "Expect ';' after 'continue'.")
}

// emitShadowCopyBack writes a for-loop's per-iteration shadow local back
// to the real counter slot: GET_LOCAL shadow; SET_LOCAL loopVar; POP.
func (c *Compiler) emitShadowCopyBack(loopVarSlot, shadowSlot int) {
	c.emitByte(byte(bytecode.OpGetLocal))
	c.emitByte(byte(shadowSlot))
	c.emitByte(byte(bytecode.OpSetLocal))
	c.emitByte(byte(loopVarSlot))
	c.emitOp(bytecode.OpPop)
}

func (c *Compiler) pushControlFlow(kind loopKind, loopStart int) {
	c.control = append(c.control, controlFlow{
		kind:        kind,
		loopStart:   loopStart,
		scopeDepth:  c.scopeDepth,
		loopVarSlot: -1,
		shadowSlot:  -1,
	})
}

func (c *Compiler) popControlFlow() {
	n := len(c.control) - 1
	cf := c.control[n]
	c.control = c.control[:n]
	for _, j := range cf.breakJumps {
		c.patchJump(j)
	}
}

// popLocalsTo emits the runtime stack cleanup for a break/continue that
// jumps out of block scopes without actually unwinding the compiler's
// own locals bookkeeping (straight-line code after the jump still needs
// those locals to resolve correctly).
func (c *Compiler) popLocalsTo(depth int) {
	run := 0
	for i := len(c.locals) - 1; i >= 0 && c.locals[i].depth > depth; i-- {
		if c.locals[i].isCaptured {
			c.emitPopN(run)
			run = 0
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			run++
		}
	}
	c.emitPopN(run)
}

// synchronize implements spec §4.4/§7's panic-mode recovery: advance
// until a statement boundary (a just-consumed ';', or a token that
// starts a new declaration or statement).
func (c *Compiler) synchronize() {
	c.p.panicMode = false
	for c.p.current.Kind != token.Eof {
		if c.p.previous.Kind == token.Semicolon {
			return
		}
		switch c.p.current.Kind {
		case token.Fun, token.Var, token.Const, token.For, token.If,
			token.While, token.Do, token.Repeat, token.Switch,
			token.Print, token.Return:
			return
		}
		c.p.advance()
	}
}
