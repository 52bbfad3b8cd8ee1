package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristofer/vex/pkg/scanner"
	"github.com/kristofer/vex/pkg/token"
)

func tokens(source string) []token.Token {
	s := scanner.New(source)
	var out []token.Token
	for {
		tok := s.Next()
		out = append(out, tok)
		if tok.Kind == token.Eof {
			return out
		}
	}
}

func kinds(toks []token.Token) []token.Kind {
	ks := make([]token.Kind, len(toks))
	for i, tok := range toks {
		ks[i] = tok.Kind
	}
	return ks
}

func TestScanEmptySourceYieldsOnlyEof(t *testing.T) {
	toks := tokens("")
	require.Len(t, toks, 1)
	assert.Equal(t, token.Eof, toks[0].Kind)
}

func TestScanSkipsWhitespaceLineAndBlockComments(t *testing.T) {
	toks := tokens("  // a line comment\n /* a\n block */ 42")
	assert.Equal(t, []token.Kind{token.Number, token.Eof}, kinds(toks))
	assert.Equal(t, 3, toks[0].Line)
}

func TestScanKeywordsAreDistinguishedFromIdentifiers(t *testing.T) {
	toks := tokens("var const fun notakeyword")
	assert.Equal(t, []token.Kind{
		token.Var, token.Const, token.Fun, token.Identifier, token.Eof,
	}, kinds(toks))
}

func TestScanNumberLiteralsIntegerAndFloat(t *testing.T) {
	toks := tokens("42 3.14")
	require.Len(t, toks, 3)
	assert.Equal(t, "42", toks[0].Lexeme)
	assert.Equal(t, "3.14", toks[1].Lexeme)
}

func TestScanTrailingDotWithoutDigitIsNotPartOfNumber(t *testing.T) {
	toks := tokens("1.")
	assert.Equal(t, []token.Kind{token.Number, token.Dot, token.Eof}, kinds(toks))
	assert.Equal(t, "1", toks[0].Lexeme)
}

func TestScanTwoCharacterOperatorsPreferLongestMatch(t *testing.T) {
	toks := tokens("== != <= >= += -= *= /= ++ --")
	assert.Equal(t, []token.Kind{
		token.EqualEqual, token.BangEqual, token.LessEqual, token.GreaterEqual,
		token.PlusEqual, token.MinusEqual, token.StarEqual, token.SlashEqual,
		token.PlusPlus, token.MinusMinus, token.Eof,
	}, kinds(toks))
}

func TestScanSingleCharacterOperatorsWhenNoMatchFollows(t *testing.T) {
	toks := tokens("= ! < > + - * /")
	assert.Equal(t, []token.Kind{
		token.Equal, token.Bang, token.Less, token.Greater,
		token.Plus, token.Minus, token.Star, token.Slash, token.Eof,
	}, kinds(toks))
}

func TestScanPlainStringLiteral(t *testing.T) {
	toks := tokens(`"hello world"`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.String, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Lexeme)
}

func TestScanUnterminatedStringIsErrorToken(t *testing.T) {
	toks := tokens(`"unterminated`)
	require.Len(t, toks, 2)
	assert.Equal(t, token.Error, toks[0].Kind)
	assert.Contains(t, toks[0].Lexeme, "unterminated")
}

func TestScanNewlineInsideStringIsUnterminated(t *testing.T) {
	toks := tokens("\"abc\ndef\"")
	assert.Equal(t, token.Error, toks[0].Kind)
}

func TestScanDollarOutsideStringIsError(t *testing.T) {
	toks := tokens("$")
	require.Len(t, toks, 2)
	assert.Equal(t, token.Error, toks[0].Kind)
	assert.Contains(t, toks[0].Lexeme, "unexpected '$'")
}

func TestScanStrayDollarInsideStringIsError(t *testing.T) {
	// the scanner does not resynchronize on an error token; it leaves
	// current positioned at the '$' and returns to ordinary scanning, so
	// only the first token is asserted here.
	toks := tokens(`"a $b"`)
	require.NotEmpty(t, toks)
	assert.Equal(t, token.Error, toks[0].Kind)
	assert.Contains(t, toks[0].Lexeme, "stray '$'")
}

func TestScanStringInterpolationSplitsIntoSegments(t *testing.T) {
	// the '}' that closes the interpolation itself produces no token of its
	// own; it just returns the scanner to string mode (spec §4.1).
	toks := tokens(`"hello ${name}!"`)
	kindsGot := kinds(toks)
	assert.Equal(t, []token.Kind{
		token.Interpolation, token.Identifier, token.String, token.Eof,
	}, kindsGot)
	assert.Equal(t, "hello ", toks[0].Lexeme)
	assert.Equal(t, "name", toks[1].Lexeme)
	assert.Equal(t, "!", toks[2].Lexeme)
}

func TestScanStringInterpolationWithBraceExpressionInside(t *testing.T) {
	// the '{' inside the interpolated expression must not be mistaken for
	// the closing '}' of the interpolation itself.
	toks := tokens(`"${ {1;} }"`)
	assert.Equal(t, []token.Kind{
		token.Interpolation, token.LeftBrace, token.Number, token.Semicolon,
		token.RightBrace, token.String, token.Eof,
	}, kinds(toks))
}

func TestScanStringInterpolationNestedExpressionClosesCorrectly(t *testing.T) {
	toks := tokens(`"a${1}b${2}c"`)
	kindsGot := kinds(toks)
	assert.Equal(t, []token.Kind{
		token.Interpolation, token.Number,
		token.Interpolation, token.Number,
		token.String, token.Eof,
	}, kindsGot)
	assert.Equal(t, "a", toks[0].Lexeme)
	assert.Equal(t, "b", toks[2].Lexeme)
	assert.Equal(t, "c", toks[4].Lexeme)
}

func TestScanIdentifierAllowsUnderscoreAndDigitsAfterFirstChar(t *testing.T) {
	toks := tokens("_foo1 bar_2")
	require.Len(t, toks, 3)
	assert.Equal(t, token.Identifier, toks[0].Kind)
	assert.Equal(t, "_foo1", toks[0].Lexeme)
	assert.Equal(t, "bar_2", toks[1].Lexeme)
}

func TestScanLineNumbersAdvanceAcrossNewlines(t *testing.T) {
	toks := tokens("1\n2\n3")
	require.Len(t, toks, 4)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 3, toks[2].Line)
}

func TestScanStopsAtEofOnRepeatedCalls(t *testing.T) {
	s := scanner.New("")
	first := s.Next()
	second := s.Next()
	assert.Equal(t, token.Eof, first.Kind)
	assert.Equal(t, token.Eof, second.Kind)
}
