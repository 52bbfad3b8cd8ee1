package compiler

import (
	"strconv"

	"github.com/kristofer/vex/pkg/bytecode"
	"github.com/kristofer/vex/pkg/token"
)

// compoundOps maps a compound-assignment token to the binary op its
// desugaring applies (spec §4.4: "compound-assignment desugars to GET,
// push_value, OP, SET").
var compoundOps = map[token.Kind]bytecode.OpCode{
	token.PlusEqual:  bytecode.OpAdd,
	token.MinusEqual: bytecode.OpSubtract,
	token.StarEqual:  bytecode.OpMultiply,
	token.SlashEqual: bytecode.OpDivide,
}

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

// parsePrecedence is the Pratt-parser core of spec §4.4.
func (c *Compiler) parsePrecedence(prec precedence) {
	c.p.advance()
	prefixRule := getRule(c.p.previous.Kind).prefix
	if prefixRule == nil {
		c.p.error("Expect expression.")
		return
	}
	canAssign := prec <= precAssignment
	prefixRule(c, canAssign)

	for prec <= getRule(c.p.current.Kind).prec {
		c.p.advance()
		infixRule := getRule(c.p.previous.Kind).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.p.match(token.Equal) {
		c.p.error("Invalid assignment target.")
	}
}

func (c *Compiler) number(canAssign bool) {
	n, _ := strconv.ParseFloat(c.p.previous.Lexeme, 64)
	c.emitNumber(n)
}

func (c *Compiler) stringLiteral(canAssign bool) {
	s := c.p.heap.InternString(c.p.previous.Lexeme)
	c.emitConstant(bytecode.FromObj(s))
}

// interpolation lowers a "...${expr}...${expr}..." string (spec §4.1,
// §4.4): the scanner hands back one Interpolation token per literal
// segment preceding a "${", and a single trailing String token for the
// tail after the last embedded expression. The embedded expressions
// themselves need no explicit closing-brace handling here: the scanner
// already swallows the matching '}' and resumes string-literal scanning,
// so by the time an embedded expression() call returns, p.current is
// already the next Interpolation or String token.
func (c *Compiler) interpolation(canAssign bool) {
	joinName := c.p.heap.InternString("joinStr")
	joinIdx := c.p.globals.ResolveOrCreate(joinName)
	c.emitIndexed(bytecode.OpGetGlobal, joinIdx)

	argCount := 0
	for {
		prefix := c.p.heap.InternString(c.p.previous.Lexeme)
		c.emitConstant(bytecode.FromObj(prefix))
		argCount++

		c.expression()
		argCount++

		if c.p.match(token.Interpolation) {
			continue
		}
		c.p.consume(token.String, "Expect string after interpolated expression.")
		tail := c.p.heap.InternString(c.p.previous.Lexeme)
		c.emitConstant(bytecode.FromObj(tail))
		argCount++
		break
	}

	if argCount > 255 {
		c.p.error("Can't have more than 255 arguments.")
	}
	c.emitByte(byte(bytecode.OpCall))
	c.emitByte(byte(argCount))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.p.previous.Kind {
	case token.True:
		c.emitOp(bytecode.OpTrue)
	case token.False:
		c.emitOp(bytecode.OpFalse)
	case token.Nil:
		c.emitOp(bytecode.OpNil)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.p.consume(token.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	opKind := c.p.previous.Kind
	start := len(c.chunk().Code)
	c.parsePrecedence(precUnary)
	switch opKind {
	case token.Minus:
		// `-1` folds into the compact CONSTANT_M1 instead of CONSTANT_1, NEGATE.
		if code := c.chunk().Code; len(code) == start+1 && bytecode.OpCode(code[start]) == bytecode.OpConstant1 {
			code[start] = byte(bytecode.OpConstantM1)
			return
		}
		c.emitOp(bytecode.OpNegate)
	case token.Bang:
		c.emitOp(bytecode.OpNot)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opKind := c.p.previous.Kind
	r := getRule(opKind)
	c.parsePrecedence(r.prec + 1)

	switch opKind {
	case token.Plus:
		c.emitOp(bytecode.OpAdd)
	case token.Minus:
		c.emitOp(bytecode.OpSubtract)
	case token.Star:
		c.emitOp(bytecode.OpMultiply)
	case token.Slash:
		c.emitOp(bytecode.OpDivide)
	case token.Percent:
		c.emitOp(bytecode.OpMod)
	case token.EqualEqual:
		c.emitOp(bytecode.OpEqual)
	case token.BangEqual:
		c.emitOp(bytecode.OpEqual)
		c.emitOp(bytecode.OpNot)
	case token.Greater:
		c.emitOp(bytecode.OpGreater)
	case token.GreaterEqual:
		c.emitOp(bytecode.OpLess)
		c.emitOp(bytecode.OpNot)
	case token.Less:
		c.emitOp(bytecode.OpLess)
	case token.LessEqual:
		c.emitOp(bytecode.OpGreater)
		c.emitOp(bytecode.OpNot)
	}
}

// and_ / or_ implement the short-circuit operators of spec §4.4 exactly
// as described: JUMP_IF_TRUE/JUMP_IF_FALSE never pop (spec §4.5), so the
// not-taken path needs its own explicit POP before evaluating the rhs.
func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	endJump := c.emitJump(bytecode.OpJumpIfTrue)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitByte(byte(bytecode.OpCall))
	c.emitByte(byte(argCount))
}

func (c *Compiler) argumentList() int {
	count := 0
	if !c.p.check(token.RightParen) {
		for {
			c.expression()
			if count == 255 {
				c.p.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.p.match(token.Comma) {
				break
			}
		}
	}
	c.p.consume(token.RightParen, "Expect ')' after arguments.")
	return count
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.p.previous.Lexeme, canAssign)
}

// resolveName implements spec §4.4's resolution order — local, upvalue,
// global — returning the get/set opcode pair, slot/global index and
// whether the binding is immutable.
func (c *Compiler) resolveName(name string) (getOp, setOp bytecode.OpCode, arg int, immutable bool) {
	if arg = resolveLocal(c, name); arg != -1 {
		return bytecode.OpGetLocal, bytecode.OpSetLocal, arg, c.locals[arg].immutable
	}
	if arg = resolveUpvalue(c, name); arg != -1 {
		// Immutability of a captured binding isn't tracked through the
		// upvalue indirection.
		return bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, arg, false
	}
	nameStr := c.p.heap.InternString(name)
	arg = c.p.globals.ResolveOrCreate(nameStr)
	return bytecode.OpGetGlobal, bytecode.OpSetGlobal, arg, c.p.globals.IsImmutable(arg)
}

// namedVariable implements spec §4.4's "Assignment" and "Postfix ++/--"
// emission rules for an identifier already matched as a prefix
// expression: a plain read, a `=`/compound-assignment write, or a
// postfix increment/decrement, gated throughout by canAssign.
func (c *Compiler) namedVariable(name string, canAssign bool) {
	getOp, setOp, arg, immutable := c.resolveName(name)

	switch {
	case canAssign && c.p.match(token.Equal):
		if immutable {
			c.p.error("Cannot assign to immutable variable.")
		}
		c.expression()
		c.emitIndexed(setOp, arg)

	case canAssign && isCompoundAssignOp(c.p.current.Kind):
		binOp := compoundOps[c.p.current.Kind]
		c.p.advance()
		if immutable {
			c.p.error("Cannot assign to immutable variable.")
		}
		c.emitIndexed(getOp, arg)
		c.expression()
		c.emitOp(binOp)
		c.emitIndexed(setOp, arg)

	case canAssign && (c.p.check(token.PlusPlus) || c.p.check(token.MinusMinus)):
		if immutable {
			c.p.error("Cannot assign to immutable variable.")
		}
		c.postfix(arg, getOp, setOp, getOp == bytecode.OpGetLocal)

	default:
		c.emitIndexed(getOp, arg)
	}
}

func isCompoundAssignOp(k token.Kind) bool {
	_, ok := compoundOps[k]
	return ok
}

// postfix implements spec §4.4's two distinct lowerings for `++`/`--`:
// locals get the dedicated INC_LOCAL/DEC_LOCAL opcode (which leaves the
// post-increment value on the stack); anything else (global or upvalue)
// gets the GET; DUP; push 1; ADD/SUB; SET; POP sequence spec §4.4 spells
// out for globals, which — because SET_LOCAL/SET_GLOBAL/SET_UPVALUE
// leave their new value on the stack rather than popping — yields the
// *pre*-increment value as the expression's result once the final POP
// discards the redundant post-increment copy.
func (c *Compiler) postfix(arg int, getOp, setOp bytecode.OpCode, isLocal bool) {
	isIncrement := c.p.current.Kind == token.PlusPlus
	c.p.advance()

	if isLocal {
		op := bytecode.OpIncLocal
		if !isIncrement {
			op = bytecode.OpDecLocal
		}
		c.emitByte(byte(op))
		c.emitByte(byte(arg))
		c.emitByte(1)
		return
	}

	c.emitIndexed(getOp, arg)
	c.emitOp(bytecode.OpDup)
	c.emitNumber(1)
	if isIncrement {
		c.emitOp(bytecode.OpAdd)
	} else {
		c.emitOp(bytecode.OpSubtract)
	}
	c.emitIndexed(setOp, arg)
	c.emitOp(bytecode.OpPop)
}
