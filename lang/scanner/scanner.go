// Some of the scanner package is adapted from the Go source code:
// https://cs.opensource.google/go/go/+/refs/tags/go1.22.1:src/go/scanner/scanner.go
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scanner tokenises source text for the parser/compiler to consume.
// It recognises identifiers, keywords, numeric and string literals,
// punctuation (including the multi-character operators of spec §4.1) and
// comments, and tracks line/column positions for error reporting.
package scanner

import (
	"bytes"
	"fmt"
	"go/scanner"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/duskvm/duskvm/lang/token"
)

type (
	// Error and ErrorList are reused from the standard library's go/scanner
	// package: they already provide exactly the (position, message) error
	// shape this scanner needs, with sorting and combined-Error() rendering.
	Error     = scanner.Error
	ErrorList = scanner.ErrorList
)

// PrintError is a utility function that prints a list of errors to w,
// one error per line, if the err parameter is an ErrorList.
var PrintError = scanner.PrintError

// Scanner tokenises a source file for the parser.
type Scanner struct {
	file *token.File
	src  []byte
	err  func(pos token.Position, msg string)

	sb          strings.Builder
	invalidByte byte
	cur         rune
	off         int
	roff        int

	atLineStart bool // true if no token has been scanned since the last newline (or start of file)

	// RegexAllowed is read by Scan to decide whether a leading '/' starts a
	// regular-expression literal or a division operator. The parser sets it
	// before each call to Scan based on the grammatical context (spec §4.1:
	// "regex literals -- disambiguated from division by the parser's
	// pending-context flag").
	RegexAllowed bool
}

var (
	bom      = [2]byte{0xFE, 0xFF}
	hashBang = [2]byte{'#', '!'}
)

// New returns a Scanner ready to tokenize src, whose contents must already
// back file (i.e. file.Size() == len(src)), reporting lexical errors
// through errHandler as they're found.
func New(file *token.File, src string, errHandler func(token.Position, string)) *Scanner {
	s := &Scanner{}
	s.Init(file, []byte(src), errHandler)
	return s
}

// Init initializes the scanner to tokenize a new file. It panics if the file
// size is not the same as the length of the src slice.
func (s *Scanner) Init(file *token.File, src []byte, errHandler func(token.Position, string)) {
	if file.Size() != len(src) {
		panic(fmt.Sprintf("file size (%d) does not match src len (%d)", file.Size(), len(src)))
	}

	s.file = file
	s.src = src
	s.err = errHandler

	s.sb.Reset()
	s.invalidByte = 0
	s.cur = ' '
	s.off = 0
	s.roff = 0
	s.atLineStart = true
	s.RegexAllowed = true

	if len(src) >= len(bom) && bytes.Equal(src[:len(bom)], bom[:]) {
		s.off += len(bom)
		s.roff += len(bom)
	}
	if len(src)-s.roff >= len(hashBang) && bytes.Equal(src[s.roff:s.roff+len(hashBang)], hashBang[:]) {
		for s.cur != '\n' && s.cur != -1 {
			s.advance()
		}
	}
	s.advance()
}

func (s *Scanner) peek() byte {
	if s.roff < len(s.src) {
		return s.src[s.roff]
	}
	return 0
}

func (s *Scanner) advance() {
	if s.roff >= len(s.src) {
		s.off = len(s.src)
		s.cur = -1
		return
	}

	s.off = s.roff
	s.invalidByte = 0
	r, w := rune(s.src[s.roff]), 1
	if r >= utf8.RuneSelf {
		r, w = utf8.DecodeRune(s.src[s.roff:])
		if r == utf8.RuneError && w == 1 {
			s.error(s.off, "illegal UTF-8 encoding")
			s.invalidByte = s.src[s.roff]
		}
	}
	s.roff += w
	s.cur = r
}

func (s *Scanner) error(off int, msg string) {
	if s.err != nil {
		s.err(s.file.Position(s.file.Pos(off)), msg)
	}
}

func (s *Scanner) errorf(off int, format string, args ...any) {
	s.error(off, fmt.Sprintf(format, args...))
}

func (s *Scanner) advanceIf(matches ...byte) bool {
	if bytes.ContainsRune(matches, s.cur) {
		s.advance()
		return true
	}
	return false
}

// isLineTerminator reports whether r is one of the source language's four
// recognised line terminators (spec §6.2): LF, CR, LS (U+2028), PS (U+2029).
// CRLF is handled by treating CR and LF as separate terminators, which still
// yields exactly one newline signal between tokens.
func isLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == ' ' || r == ' '
}

// Scan returns the next token in the source file, along with its decoded
// value. The NewlineBefore field of tokVal is set if a line terminator (or
// the start of file) was crossed since the previous token, for automatic
// semicolon insertion.
func (s *Scanner) Scan(tokVal *token.Value) (tok token.Token) {
	newline := s.skipWhitespace()

	pos := s.file.Pos(s.off)
	start := s.off

	switch cur := s.cur; {
	case isLetter(cur):
		lit := s.ident()
		tok = token.IDENT
		if len(lit) > 1 {
			tok = token.LookupKw(lit)
		}
		*tokVal = token.Value{Raw: lit, Pos: pos, NewlineBefore: newline}

	case isDecimal(cur) || (cur == '.' && isDecimal(rune(s.peek()))):
		var lit string
		tok, lit = s.number()
		*tokVal = token.Value{Raw: lit, Pos: pos, NewlineBefore: newline}
		if tok == token.INT {
			v, err := strconv.ParseInt(normalizeIntLit(lit), 0, 64)
			if err != nil {
				if f, ferr := strconv.ParseFloat(lit, 64); ferr == nil {
					tok = token.FLOAT
					tokVal.Float = f
				}
			} else {
				tokVal.Int = v
			}
		} else if tok == token.FLOAT {
			v, _ := strconv.ParseFloat(lit, 64)
			tokVal.Float = v
		}

	default:
		s.advance()
		switch cur {
		case '=':
			tok = token.EQ
			if s.advanceIf('=') {
				tok = token.EQEQ
				if s.advanceIf('=') {
					tok = token.EQEQEQ
				}
			} else if s.advanceIf('>') {
				tok = token.ARROW
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '!':
			tok = token.NOT
			if s.advanceIf('=') {
				tok = token.NEQ
				if s.advanceIf('=') {
					tok = token.NEQEQ
				}
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '"', '\'':
			tok = token.STRING
			lit, val := s.shortString(cur)
			*tokVal = token.Value{Raw: lit, Pos: pos, String: val, NewlineBefore: newline}

		case '`':
			tok = token.STRING
			lit, val := s.templateString()
			*tokVal = token.Value{Raw: lit, Pos: pos, String: val, NewlineBefore: newline}

		case '/':
			if s.advanceIf('/') {
				lit := s.lineComment()
				*tokVal = token.Value{Raw: lit, Pos: pos, NewlineBefore: newline}
				tok = commentToken
				break
			}
			if s.advanceIf('*') {
				lit := s.blockComment(start)
				tok = commentToken
				*tokVal = token.Value{Raw: lit, Pos: pos, NewlineBefore: newline}
				break
			}
			if s.RegexAllowed {
				tok = token.REGEXP
				lit, val := s.regexLiteral()
				*tokVal = token.Value{Raw: lit, Pos: pos, String: val, NewlineBefore: newline}
				break
			}
			tok = token.SLASH
			if s.advanceIf('=') {
				tok = token.SLASH_EQ
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '(', ')', ',', '{', '}', ']', ';', ':':
			tok = punctTokens[cur]
			*tokVal = token.Value{Raw: string(cur), Pos: pos, NewlineBefore: newline}

		case '[':
			tok = token.LBRACK
			*tokVal = token.Value{Raw: "[", Pos: pos, NewlineBefore: newline}

		case '~':
			tok = token.TILDE
			*tokVal = token.Value{Raw: "~", Pos: pos, NewlineBefore: newline}

		case '+':
			tok = token.PLUS
			if s.advanceIf('+') {
				tok = token.INC
			} else if s.advanceIf('=') {
				tok = token.PLUS_EQ
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '-':
			tok = token.MINUS
			if s.advanceIf('-') {
				tok = token.DEC
			} else if s.advanceIf('=') {
				tok = token.MINUS_EQ
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '*':
			tok = token.STAR
			if s.advanceIf('*') {
				tok = token.STARSTAR
			} else if s.advanceIf('=') {
				tok = token.STAR_EQ
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '%':
			tok = token.PERCENT
			if s.advanceIf('=') {
				tok = token.PERCENT_EQ
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '^':
			tok = token.CIRCUMFLEX
			if s.advanceIf('=') {
				tok = token.CIRCUMFLEX_EQ
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '&':
			tok = token.AMPERSAND
			if s.advanceIf('&') {
				tok = token.ANDAND
				if s.advanceIf('=') {
					tok = token.ANDAND_EQ
				}
			} else if s.advanceIf('=') {
				tok = token.AMP_EQ
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '|':
			tok = token.PIPE
			if s.advanceIf('|') {
				tok = token.OROR
				if s.advanceIf('=') {
					tok = token.OROR_EQ
				}
			} else if s.advanceIf('=') {
				tok = token.PIPE_EQ
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '<':
			tok = token.LT
			if s.advanceIf('<') {
				tok = token.LTLT
				if s.advanceIf('=') {
					tok = token.LTLT_EQ
				}
			} else if s.advanceIf('=') {
				tok = token.LE
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '>':
			tok = token.GT
			if s.advanceIf('>') {
				tok = token.GTGT
				if s.advanceIf('>') {
					tok = token.GTGTGT
				} else if s.advanceIf('=') {
					tok = token.GTGT_EQ
				}
			} else if s.advanceIf('=') {
				tok = token.GE
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '?':
			tok = token.QUESTION
			if s.advanceIf('?') {
				tok = token.QUESTIONQUESTION
				if s.advanceIf('=') {
					tok = token.QQ_EQ
				}
			} else if s.advanceIf('.') {
				tok = token.QUESTIONDOT
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case '.':
			tok = token.DOT
			if s.cur == '.' {
				s.advance()
				if s.advanceIf('.') {
					tok = token.DOTDOTDOT
				} else {
					s.error(start, "illegal punctuation '..'")
					tok = token.ILLEGAL
				}
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos, NewlineBefore: newline}

		case -1:
			tok = token.EOF
			*tokVal = token.Value{Raw: "", Pos: pos, NewlineBefore: newline}

		default:
			if cur == utf8.RuneError && s.invalidByte > 0 {
				cur = rune(s.invalidByte)
				s.invalidByte = 0
			}
			s.errorf(start, "illegal character %#U", cur)
			tok = token.ILLEGAL
			*tokVal = token.Value{Raw: string(cur), Pos: pos, NewlineBefore: newline}
		}
	}
	return tok
}

// commentToken is a private sentinel that Scan returns for both comment
// forms; ScanNonComment below filters it out.
const commentToken = token.Token(-1)

// ScanNonComment scans and discards comments, returning the next
// non-comment token. It also folds "newline before" flags across skipped
// comments so ASI still sees the correct signal.
func (s *Scanner) ScanNonComment(tokVal *token.Value) token.Token {
	var newline bool
	for {
		tok := s.Scan(tokVal)
		newline = newline || tokVal.NewlineBefore
		if tok != commentToken {
			tokVal.NewlineBefore = newline
			return tok
		}
	}
}

func (s *Scanner) ident() string {
	start := s.off
	for isLetter(s.cur) || isDigit(s.cur) {
		s.advance()
	}
	return string(s.src[start:s.off])
}

// skipWhitespace consumes whitespace and reports whether a line terminator
// was seen.
func (s *Scanner) skipWhitespace() bool {
	newline := s.atLineStart
	s.atLineStart = false
	for isWhitespace(s.cur) || isLineTerminator(s.cur) {
		if isLineTerminator(s.cur) {
			newline = true
		}
		s.advance()
	}
	return newline
}

var punctTokens = map[rune]token.Token{
	'(': token.LPAREN,
	')': token.RPAREN,
	',': token.COMMA,
	'{': token.LBRACE,
	'}': token.RBRACE,
	']': token.RBRACK,
	';': token.SEMI,
	':': token.COLON,
}

func isWhitespace(rn rune) bool { return rn == ' ' || rn == '\t' || rn == '\v' || rn == '\f' }

func isLetter(rn rune) bool {
	return 'a' <= rn && rn <= 'z' ||
		'A' <= rn && rn <= 'Z' ||
		rn == '_' || rn == '$' ||
		rn >= utf8.RuneSelf && unicode.IsLetter(rn)
}

func isDigit(rn rune) bool {
	return '0' <= rn && rn <= '9'
}

func isDecimal(rn rune) bool { return isDigit(rn) }

func normalizeIntLit(lit string) string {
	if len(lit) > 1 && lit[0] == '0' && (lit[1] == 'o' || lit[1] == 'O') {
		return "0o" + lit[2:]
	}
	return lit
}
