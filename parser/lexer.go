package parser

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/prologkit/warren/logic"
)

type tokenKind int

const (
	eofToken tokenKind = iota
	// Name of an atom or functor, either plain, symbolic, quoted or solo.
	nameToken
	varToken
	intToken
	floatToken
	// Double-quoted text, read as a list of chars.
	stringToken
	// Punctuation: ( ) [ ] { } , |
	punctToken
	// End of clause: a '.' followed by layout.
	endToken
)

func (k tokenKind) String() string {
	switch k {
	case eofToken:
		return "end of input"
	case nameToken:
		return "atom"
	case varToken:
		return "variable"
	case intToken, floatToken:
		return "number"
	case stringToken:
		return "string"
	case punctToken:
		return "punctuation"
	case endToken:
		return "end of clause"
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	text string
	ival int64
	fval float64
	// Whether the token is quoted, so that it is never an operator.
	quoted bool
	// Whether whitespace or comments precede the token.
	layout    bool
	line, col int
}

func (tok token) String() string {
	switch tok.kind {
	case eofToken, endToken:
		return tok.kind.String()
	case stringToken:
		return strconv.Quote(tok.text)
	}
	return fmt.Sprintf("%s %q", tok.kind, tok.text)
}

func (tok token) is(kind tokenKind, text string) bool {
	return tok.kind == kind && tok.text == text && !tok.quoted
}

// lexer splits a text into tokens.
type lexer struct {
	text string
	pos  int
	line int
	col  int
}

func newLexer(text string) *lexer {
	return &lexer{text: text, line: 1, col: 1}
}

// peek returns the rune at offset runes ahead, or -1 at end of input.
func (l *lexer) peek(offset int) rune {
	pos := l.pos
	for ; offset > 0 && pos < len(l.text); offset-- {
		_, size := utf8.DecodeRuneInString(l.text[pos:])
		pos += size
	}
	if pos >= len(l.text) {
		return -1
	}
	ch, _ := utf8.DecodeRuneInString(l.text[pos:])
	return ch
}

func (l *lexer) read() rune {
	if l.pos >= len(l.text) {
		return -1
	}
	ch, size := utf8.DecodeRuneInString(l.text[l.pos:])
	l.pos += size
	if ch == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return ch
}

func (l *lexer) errorf(line, col int, format string, args ...any) error {
	return &SyntaxError{Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

// skipLayout consumes whitespace and comments, and returns whether any was found.
func (l *lexer) skipLayout() (bool, error) {
	var found bool
	for {
		ch := l.peek(0)
		switch {
		case ch == -1:
			return found, nil
		case unicode.IsSpace(ch):
			l.read()
		case ch == '%':
			for ch != '\n' && ch != -1 {
				ch = l.read()
			}
		case ch == '/' && l.peek(1) == '*':
			line, col := l.line, l.col
			l.read()
			l.read()
			for !(l.peek(0) == '*' && l.peek(1) == '/') {
				if l.read() == -1 {
					return found, l.errorf(line, col, "unterminated block comment")
				}
			}
			l.read()
			l.read()
		default:
			return found, nil
		}
		found = true
	}
}

func (l *lexer) next() (token, error) {
	layout, err := l.skipLayout()
	if err != nil {
		return token{}, err
	}
	tok := token{layout: layout, line: l.line, col: l.col}
	ch := l.peek(0)
	switch {
	case ch == -1:
		tok.kind = eofToken
	case ch == '_' || unicode.IsUpper(ch):
		tok.kind = varToken
		tok.text = l.readIdent()
	case unicode.IsLetter(ch):
		tok.kind = nameToken
		tok.text = l.readIdent()
	case unicode.IsDigit(ch):
		return l.readNumber(tok)
	case ch == '\'':
		tok.kind = nameToken
		tok.quoted = true
		tok.text, err = l.readQuoted('\'')
	case ch == '"':
		tok.kind = stringToken
		tok.text, err = l.readQuoted('"')
	case strings.ContainsRune("()[]{},|", ch):
		tok.kind = punctToken
		tok.text = string(l.read())
	case ch == '!' || ch == ';':
		tok.kind = nameToken
		tok.text = string(l.read())
	case logic.IsSymbolChar(ch):
		tok.text = l.readSymbols()
		tok.kind = nameToken
		if tok.text == "." {
			if next := l.peek(0); next == -1 || next == '%' || unicode.IsSpace(next) {
				tok.kind = endToken
			}
		}
	default:
		return tok, l.errorf(tok.line, tok.col, "unexpected character %q", ch)
	}
	return tok, err
}

func (l *lexer) readIdent() string {
	start := l.pos
	for logic.IsIdent(l.peek(0)) {
		l.read()
	}
	return l.text[start:l.pos]
}

func (l *lexer) readSymbols() string {
	start := l.pos
	for logic.IsSymbolChar(l.peek(0)) {
		l.read()
	}
	return l.text[start:l.pos]
}

func (l *lexer) readDigits(isDigit func(rune) bool) string {
	start := l.pos
	for ch := l.peek(0); isDigit(ch) || ch == '_' && isDigit(l.peek(1)); ch = l.peek(0) {
		l.read()
	}
	return strings.ReplaceAll(l.text[start:l.pos], "_", "")
}

func isDecimal(ch rune) bool { return '0' <= ch && ch <= '9' }
func isHex(ch rune) bool {
	return isDecimal(ch) || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}
func isOctal(ch rune) bool  { return '0' <= ch && ch <= '7' }
func isBinary(ch rune) bool { return ch == '0' || ch == '1' }

func (l *lexer) readNumber(tok token) (token, error) {
	tok.kind = intToken
	if l.peek(0) == '0' {
		var base int
		var isDigit func(rune) bool
		switch l.peek(1) {
		case '\'':
			l.read()
			l.read()
			ch, err := l.readChar('\'')
			if err != nil {
				return tok, err
			}
			tok.ival = int64(ch)
			return tok, nil
		case 'x':
			base, isDigit = 16, isHex
		case 'o':
			base, isDigit = 8, isOctal
		case 'b':
			base, isDigit = 2, isBinary
		}
		if base != 0 && isDigit(l.peek(2)) {
			l.read()
			l.read()
			digits := l.readDigits(isDigit)
			i, err := strconv.ParseInt(digits, base, 64)
			if err != nil {
				return tok, l.errorf(tok.line, tok.col, "invalid integer %q: %v", digits, err)
			}
			tok.ival = i
			return tok, nil
		}
	}
	text := l.readDigits(isDecimal)
	if l.peek(0) == '.' && isDecimal(l.peek(1)) {
		tok.kind = floatToken
		l.read()
		text += "." + l.readDigits(isDecimal)
		if ch := l.peek(0); ch == 'e' || ch == 'E' {
			sign := l.peek(1)
			switch {
			case isDecimal(sign):
				l.read()
				text += "e" + l.readDigits(isDecimal)
			case (sign == '+' || sign == '-') && isDecimal(l.peek(2)):
				l.read()
				l.read()
				text += "e" + string(sign) + l.readDigits(isDecimal)
			}
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return tok, l.errorf(tok.line, tok.col, "invalid float %q: %v", text, err)
		}
		tok.fval = f
		return tok, nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return tok, l.errorf(tok.line, tok.col, "invalid integer %q: %v", text, err)
	}
	tok.ival = i
	return tok, nil
}

var escapes = map[rune]rune{
	'n':  '\n',
	't':  '\t',
	'r':  '\r',
	'v':  '\v',
	'f':  '\f',
	'b':  '\b',
	'a':  '\a',
	'0':  0,
	'e':  0x1b,
	's':  ' ',
	'\\': '\\',
	'\'': '\'',
	'"':  '"',
	'`':  '`',
}

// readChar reads a single, possibly escaped, char within a quoted text.
func (l *lexer) readChar(delim rune) (rune, error) {
	line, col := l.line, l.col
	ch := l.read()
	switch ch {
	case -1:
		return 0, l.errorf(line, col, "unexpected end of input in quoted text")
	case delim:
		// Doubled delimiter stands for itself.
		if l.peek(0) == delim {
			l.read()
			return delim, nil
		}
		return 0, l.errorf(line, col, "unexpected %q", ch)
	case '\\':
		esc := l.read()
		if r, ok := escapes[esc]; ok {
			return r, nil
		}
		if esc == 'x' {
			start := l.pos
			for isHex(l.peek(0)) {
				l.read()
			}
			code, err := strconv.ParseInt(l.text[start:l.pos], 16, 32)
			if err != nil || l.read() != '\\' {
				return 0, l.errorf(line, col, "invalid hex escape")
			}
			return rune(code), nil
		}
		return 0, l.errorf(line, col, "invalid escape sequence \\%c", esc)
	}
	return ch, nil
}

func (l *lexer) readQuoted(delim rune) (string, error) {
	line, col := l.line, l.col
	l.read()
	var b strings.Builder
	for {
		switch l.peek(0) {
		case -1:
			return "", l.errorf(line, col, "unterminated quoted text")
		case delim:
			if l.peek(1) != delim {
				l.read()
				return b.String(), nil
			}
		case '\\':
			// Line continuation.
			if l.peek(1) == '\n' {
				l.read()
				l.read()
				continue
			}
		}
		ch, err := l.readChar(delim)
		if err != nil {
			return "", err
		}
		b.WriteRune(ch)
	}
}
