package scanner

import "github.com/kristofer/vex/pkg/token"

// scanStringBody scans the literal content of a string, starting right
// after an opening '"' or right after a '}' that just closed an
// interpolation segment (spec §4.1: "the matching '}' re-enters string
// mode"). It stops at the closing '"' (String), at "${" (Interpolation,
// pushing a new interpolation depth), or reports Error tokens for an
// unterminated literal or a stray '$' (spec §4.1).
func (s *Scanner) scanStringBody() token.Token {
	contentStart := s.current
	line := s.line
	for {
		if s.atEnd() || s.peek() == '\n' {
			s.inString = false
			return token.Token{Kind: token.Error, Lexeme: "unterminated string.", Line: line}
		}

		switch s.peek() {
		case '"':
			lit := s.source[contentStart:s.current]
			s.current++ // consume closing quote
			s.inString = false
			return token.Token{Kind: token.String, Lexeme: lit, Line: line}

		case '$':
			if s.peekAt(1) == '{' {
				lit := s.source[contentStart:s.current]
				s.current += 2 // consume "${"
				s.interpDepths = append(s.interpDepths, 0)
				s.inString = false
				return token.Token{Kind: token.Interpolation, Lexeme: lit, Line: line}
			}
			s.inString = false
			return token.Token{Kind: token.Error, Lexeme: "stray '$' in string.", Line: line}

		default:
			s.current++
		}
	}
}
