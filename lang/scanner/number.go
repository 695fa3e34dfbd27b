package scanner

import "github.com/duskvm/duskvm/lang/token"

// number scans a numeric literal: decimal, hex (0x), octal (0o), binary
// (0b), or a float with an optional fractional part and exponent (spec
// §4.1).
func (s *Scanner) number() (tok token.Token, lit string) {
	start := s.off
	tok = token.INT

	if s.cur == '0' {
		switch peek := s.peekBase(); peek {
		case 'x', 'X':
			s.advance()
			s.advance()
			s.digits(isHexDigit)
			return token.INT, string(s.src[start:s.off])
		case 'o', 'O':
			s.advance()
			s.advance()
			s.digits(isOctalDigit)
			return token.INT, string(s.src[start:s.off])
		case 'b', 'B':
			s.advance()
			s.advance()
			s.digits(isBinaryDigit)
			return token.INT, string(s.src[start:s.off])
		}
	}

	s.digits(isDigit)
	if s.cur == '.' {
		tok = token.FLOAT
		s.advance()
		s.digits(isDigit)
	}
	if s.cur == 'e' || s.cur == 'E' {
		tok = token.FLOAT
		s.advance()
		if s.cur == '+' || s.cur == '-' {
			s.advance()
		}
		s.digits(isDigit)
	}
	return tok, string(s.src[start:s.off])
}

func (s *Scanner) peekBase() byte {
	return s.peek() | 0x20 // lowercase
}

func (s *Scanner) digits(pred func(rune) bool) {
	for pred(s.cur) || s.cur == '_' {
		s.advance()
	}
}

func isHexDigit(r rune) bool {
	return isDigit(r) || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F')
}

func isOctalDigit(r rune) bool { return '0' <= r && r <= '7' }

func isBinaryDigit(r rune) bool { return r == '0' || r == '1' }
