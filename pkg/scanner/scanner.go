// Package scanner turns vex source text into a token stream for a
// C-like grammar, including a string-interpolation mode that tracks
// brace depth across "${...}" segments. Unterminated strings and a
// stray '$' surface as Error tokens from Next itself rather than as
// compiler-level diagnostics, keeping the token stream lazy and
// one-token-at-a-time.
package scanner

import (
	"unicode"
	"unicode/utf8"

	"github.com/kristofer/vex/pkg/token"
)

// Scanner produces a lazy sequence of Tokens from a source string; the
// sequence always terminates with exactly one Eof token (spec §8 property
// 1: "the scanner, run to Eof, reads exactly len(S) bytes").
type Scanner struct {
	source string
	start   int
	current int
	line    int

	// interpDepths tracks nested "${ ... }" segments: interpDepths[i] is
	// the count of ordinary '{' seen (and not yet closed) since the i'th
	// enclosing interpolation was opened. A '}' with interpDepths[top]==0
	// closes the interpolation itself and returns the scanner to string
	// mode instead of producing a RightBrace token.
	interpDepths []int
	// inString, when true, means the scanner is mid-string-literal (either
	// freshly after '"' or resuming just past a '}' that closed an
	// interpolation segment) rather than scanning ordinary tokens.
	inString bool
}

// New creates a Scanner over source.
func New(source string) *Scanner {
	return &Scanner{source: source, line: 1}
}

func (s *Scanner) atEnd() bool { return s.current >= len(s.source) }

func (s *Scanner) advance() byte {
	b := s.source[s.current]
	s.current++
	return b
}

func (s *Scanner) peek() byte {
	if s.atEnd() {
		return 0
	}
	return s.source[s.current]
}

func (s *Scanner) peekAt(off int) byte {
	if s.current+off >= len(s.source) {
		return 0
	}
	return s.source[s.current+off]
}

func (s *Scanner) match(want byte) bool {
	if s.atEnd() || s.source[s.current] != want {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) makeToken(k token.Kind) token.Token {
	return token.Token{Kind: k, Lexeme: s.source[s.start:s.current], Line: s.line}
}

func (s *Scanner) errorToken(msg string) token.Token {
	return token.Token{Kind: token.Error, Lexeme: msg, Line: s.line}
}

// Next scans and returns the next token. Once Eof has been returned, all
// further calls keep returning Eof.
func (s *Scanner) Next() token.Token {
	if s.inString {
		return s.scanStringBody()
	}
	s.skipWhitespaceAndComments()
	s.start = s.current

	if s.atEnd() {
		return s.makeToken(token.Eof)
	}

	c := s.advance()
	if isAlpha(c) {
		return s.identifier()
	}
	if isDigit(c) {
		return s.number()
	}

	switch c {
	case '(':
		return s.makeToken(token.LeftParen)
	case ')':
		return s.makeToken(token.RightParen)
	case '{':
		if n := len(s.interpDepths); n > 0 {
			s.interpDepths[n-1]++
		}
		return s.makeToken(token.LeftBrace)
	case '}':
		if n := len(s.interpDepths); n > 0 {
			if s.interpDepths[n-1] == 0 {
				s.interpDepths = s.interpDepths[:n-1]
				s.inString = true
				return s.Next()
			}
			s.interpDepths[n-1]--
		}
		return s.makeToken(token.RightBrace)
	case ',':
		return s.makeToken(token.Comma)
	case '.':
		return s.makeToken(token.Dot)
	case ';':
		return s.makeToken(token.Semicolon)
	case ':':
		return s.makeToken(token.Colon)
	case '%':
		return s.makeToken(token.Percent)
	case '$':
		return s.errorToken("unexpected '$' outside of a string.")
	case '"':
		s.inString = true
		return s.scanStringBody()
	case '!':
		if s.match('=') {
			return s.makeToken(token.BangEqual)
		}
		return s.makeToken(token.Bang)
	case '=':
		if s.match('=') {
			return s.makeToken(token.EqualEqual)
		}
		return s.makeToken(token.Equal)
	case '<':
		if s.match('=') {
			return s.makeToken(token.LessEqual)
		}
		return s.makeToken(token.Less)
	case '>':
		if s.match('=') {
			return s.makeToken(token.GreaterEqual)
		}
		return s.makeToken(token.Greater)
	case '+':
		if s.match('+') {
			return s.makeToken(token.PlusPlus)
		}
		if s.match('=') {
			return s.makeToken(token.PlusEqual)
		}
		return s.makeToken(token.Plus)
	case '-':
		if s.match('-') {
			return s.makeToken(token.MinusMinus)
		}
		if s.match('=') {
			return s.makeToken(token.MinusEqual)
		}
		return s.makeToken(token.Minus)
	case '*':
		if s.match('=') {
			return s.makeToken(token.StarEqual)
		}
		return s.makeToken(token.Star)
	case '/':
		if s.match('=') {
			return s.makeToken(token.SlashEqual)
		}
		return s.makeToken(token.Slash)
	}

	return s.errorToken("unexpected character.")
}

func (s *Scanner) skipWhitespaceAndComments() {
	for {
		switch s.peek() {
		case ' ', '\t', '\r':
			s.current++
		case '\n':
			s.line++
			s.current++
		case '/':
			if s.peekAt(1) == '/' {
				for s.peek() != '\n' && !s.atEnd() {
					s.current++
				}
			} else if s.peekAt(1) == '*' {
				s.current += 2
				for !s.atEnd() && !(s.peek() == '*' && s.peekAt(1) == '/') {
					if s.peek() == '\n' {
						s.line++
					}
					s.current++
				}
				if !s.atEnd() {
					s.current += 2 // consume "*/"
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	r := rune(c)
	return c == '_' || unicode.IsLetter(r) || (c >= utf8.RuneSelf)
}

func isAlnum(c byte) bool { return isAlpha(c) || isDigit(c) }

func (s *Scanner) identifier() token.Token {
	for isAlnum(s.peek()) {
		s.current++
	}
	text := s.source[s.start:s.current]
	if kind, ok := token.Keywords[text]; ok {
		return s.makeToken(kind)
	}
	return s.makeToken(token.Identifier)
}

func (s *Scanner) number() token.Token {
	for isDigit(s.peek()) {
		s.current++
	}
	if s.peek() == '.' && isDigit(s.peekAt(1)) {
		s.current++
		for isDigit(s.peek()) {
			s.current++
		}
	}
	return s.makeToken(token.Number)
}
