package logic

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/prologkit/warren/runes"
)

const symbolChars = `+-*/\^<>=~:.?@#&$`

// IsSymbolChar returns whether ch may be part of a symbolic atom, like '=..'.
func IsSymbolChar(ch rune) bool {
	return strings.ContainsRune(symbolChars, ch)
}

// IsIdent returns whether ch may continue an identifier.
func IsIdent(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch) || unicode.IsDigit(ch)
}

func isIdents(text string) bool {
	for _, ch := range text {
		if !IsIdent(ch) {
			return false
		}
	}
	return true
}

func isVarFirst(ch rune) bool {
	return ch == '_' || unicode.IsUpper(ch)
}

// IsVar returns whether text is a valid variable name.
func IsVar(text string) bool {
	ch, ok := runes.First(text)
	if !ok || !isVarFirst(ch) {
		return false
	}
	return isIdents(text)
}

func isSymbols(text string) bool {
	for _, ch := range text {
		if !IsSymbolChar(ch) {
			return false
		}
	}
	return true
}

// IsQuotedAtom returns whether an atom with this name must be quoted to be
// read back.
func IsQuotedAtom(text string) bool {
	switch text {
	case "[]", "!", ";", "{}":
		return false
	case ",", "|", ".":
		return true
	}
	ch, ok := runes.First(text)
	if !ok {
		return true
	}
	if unicode.IsLower(ch) {
		return !isIdents(text)
	}
	// '/*' would start a comment.
	return !isSymbols(text) || strings.Contains(text, "/*")
}

var escapeChars = map[rune]string{
	'\n': `\n`,
	'\t': `\t`,
	'\v': `\v`,
	'\f': `\f`,
	'\r': `\r`,
	'\\': `\\`,
}

func quote(text string, delim rune) string {
	var b strings.Builder
	b.WriteRune(delim)
	for _, ch := range text {
		if exp, ok := escapeChars[ch]; ok {
			b.WriteString(exp)
		} else if ch == delim {
			b.WriteRune('\\')
			b.WriteRune(ch)
		} else {
			b.WriteRune(ch)
		}
	}
	b.WriteRune(delim)
	return b.String()
}

// FormatAtom returns the atom name quoted with single quotes if needed.
func FormatAtom(text string) string {
	if !IsQuotedAtom(text) {
		return text
	}
	return quote(text, '\'')
}

// FormatString returns a double-quoted representation of chars.
func FormatString(chars []rune) string {
	return quote(string(chars), '"')
}

// FormatFloat formats a float so that it is always read back as a float.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".nN") {
		return s
	}
	if i := strings.IndexByte(s, 'e'); i >= 0 {
		return s[:i] + ".0" + s[i:]
	}
	return s + ".0"
}

func singleRune(s string) (rune, bool) {
	if s == "" {
		return 0, false
	}
	return runes.Single(s)
}
