// Package token defines the lexical tokens shared by the scanner and the
// compiler's diagnostics, as a standalone package so pkg/compiler can
// report errors ("Error at '<lexeme>'") without importing the whole
// scanner.
package token

// Kind identifies the lexical category of a Token.
type Kind int

const (
	// Error is never produced for well-formed input; its lexeme carries a
	// diagnostic message instead of source text (see Token.Lexeme).
	Error Kind = iota
	Eof

	// Literals.
	Number
	String
	// Interpolation is emitted for the literal prefix of a "...${" segment;
	// the scanner re-enters string mode on the matching '}'.
	Interpolation
	Identifier

	// Keywords.
	And
	Or
	True
	False
	Nil
	Var
	Const
	Fun
	If
	Else
	While
	Do
	For
	Repeat
	Switch
	Case
	Default
	Break
	Continue
	Return
	Print

	// Single-character punctuation.
	LeftParen
	RightParen
	LeftBrace
	RightBrace
	Comma
	Dot
	Semicolon
	Colon
	Minus
	Plus
	Slash
	Star
	Percent
	Bang
	Equal
	Less
	Greater
	Dollar

	// Two-character operators.
	BangEqual
	EqualEqual
	LessEqual
	GreaterEqual
	PlusEqual
	MinusEqual
	StarEqual
	SlashEqual
	PlusPlus
	MinusMinus
)

var names = map[Kind]string{
	Error: "ERROR", Eof: "EOF",
	Number: "NUMBER", String: "STRING", Interpolation: "INTERPOLATION", Identifier: "IDENTIFIER",
	And: "and", Or: "or", True: "true", False: "false", Nil: "nil",
	Var: "var", Const: "const", Fun: "fun", If: "if", Else: "else",
	While: "while", Do: "do", For: "for", Repeat: "repeat",
	Switch: "switch", Case: "case", Default: "default",
	Break: "break", Continue: "continue", Return: "return", Print: "print",
	LeftParen: "(", RightParen: ")", LeftBrace: "{", RightBrace: "}",
	Comma: ",", Dot: ".", Semicolon: ";", Colon: ":",
	Minus: "-", Plus: "+", Slash: "/", Star: "*", Percent: "%",
	Bang: "!", Equal: "=", Less: "<", Greater: ">", Dollar: "$",
	BangEqual: "!=", EqualEqual: "==", LessEqual: "<=", GreaterEqual: ">=",
	PlusEqual: "+=", MinusEqual: "-=", StarEqual: "*=", SlashEqual: "/=",
	PlusPlus: "++", MinusMinus: "--",
}

// Keywords maps reserved identifiers to their keyword Kind. The scanner
// consults this after recognizing a run of identifier characters.
var Keywords = map[string]Kind{
	"and": And, "or": Or, "true": True, "false": False, "nil": Nil,
	"var": Var, "const": Const, "fun": Fun, "if": If, "else": Else,
	"while": While, "do": Do, "for": For, "repeat": Repeat,
	"switch": Switch, "case": Case, "default": Default,
	"break": Break, "continue": Continue, "return": Return, "print": Print,
}

// String returns the canonical spelling of k, used in diagnostics and
// disassembly.
func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// Token is a single lexical unit: a Kind plus the source slice it was
// scanned from, and the line it starts on. The scanner holds the byte
// range privately and hands the already-sliced lexeme to consumers, so
// call sites never need to reapply a start+length offset themselves.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
}
