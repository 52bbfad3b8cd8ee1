package compiler

import "github.com/kristofer/vex/pkg/token"

// precedence is the Pratt-parser precedence ladder of spec §4.4:
// "None < Assignment < Or < And < Equality < Comparison < Term < Factor <
// Unary < Call < Primary".
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

// parseFn is one arm (prefix or infix) of a token's parse rule.
// canAssign threads through from parsePrecedence so a rule that produces
// an assignable target (namedVariable) knows whether `=` is legal here.
type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix parseFn
	infix  parseFn
	prec   precedence
}

// rules is the static rule table spec §4.4 describes: "a static rule
// table mapping each token kind to {prefix, infix, precedence}".
var rules map[token.Kind]rule

func init() {
	rules = map[token.Kind]rule{
		token.LeftParen: {prefix: (*Compiler).grouping, infix: (*Compiler).call, prec: precCall},
		token.Minus:     {prefix: (*Compiler).unary, infix: (*Compiler).binary, prec: precTerm},
		token.Plus:      {infix: (*Compiler).binary, prec: precTerm},
		token.Slash:     {infix: (*Compiler).binary, prec: precFactor},
		token.Star:      {infix: (*Compiler).binary, prec: precFactor},
		token.Percent:   {infix: (*Compiler).binary, prec: precFactor},
		token.Bang:      {prefix: (*Compiler).unary},

		token.BangEqual:    {infix: (*Compiler).binary, prec: precEquality},
		token.EqualEqual:   {infix: (*Compiler).binary, prec: precEquality},
		token.Less:         {infix: (*Compiler).binary, prec: precComparison},
		token.LessEqual:    {infix: (*Compiler).binary, prec: precComparison},
		token.Greater:      {infix: (*Compiler).binary, prec: precComparison},
		token.GreaterEqual: {infix: (*Compiler).binary, prec: precComparison},

		token.Number:        {prefix: (*Compiler).number},
		token.String:         {prefix: (*Compiler).stringLiteral},
		token.Interpolation: {prefix: (*Compiler).interpolation},
		token.Identifier:    {prefix: (*Compiler).variable},

		token.And: {infix: (*Compiler).and_, prec: precAnd},
		token.Or:  {infix: (*Compiler).or_, prec: precOr},

		token.True:  {prefix: (*Compiler).literal},
		token.False: {prefix: (*Compiler).literal},
		token.Nil:   {prefix: (*Compiler).literal},

		token.Fun: {prefix: (*Compiler).functionExpr},
	}
}

func getRule(k token.Kind) rule { return rules[k] }
