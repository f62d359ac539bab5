// Package parser reads terms and clauses in Edinburgh syntax.
//
// Terms are read with a hand-written lexer and an operator precedence parser
// over a fixed table of standard operators. Strings in double quotes are read
// as lists of single-char atoms.
package parser

import (
	"fmt"

	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/logic"
)

// SyntaxError is returned when the text can't be parsed. Lines and columns
// start at 1.
type SyntaxError struct {
	Line, Column int
	Msg          string
}

func (err *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d: %s", err.Line, err.Column, err.Msg)
}

type parser struct {
	lexer *lexer
	// Current token, and the one after it.
	tok, next token
}

func newParser(text string) (*parser, error) {
	p := &parser{lexer: newLexer(text)}
	var err error
	if p.tok, err = p.lexer.next(); err != nil {
		return nil, err
	}
	if p.next, err = p.lexer.next(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	p.tok = p.next
	if p.tok.kind == eofToken {
		return nil
	}
	var err error
	p.next, err = p.lexer.next()
	return err
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &SyntaxError{Line: tok.line, Column: tok.col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind, text string) error {
	if p.tok.kind != kind || p.tok.text != text {
		if kind == endToken {
			return p.errorf(p.tok, "expected end of clause, got %v", p.tok)
		}
		return p.errorf(p.tok, "expected %q, got %v", text, p.tok)
	}
	return p.advance()
}

// infix returns the infix operator at the current token, if any.
func (p *parser) infix() (string, operator, bool) {
	tok := p.tok
	switch {
	case tok.kind == punctToken && (tok.text == "," || tok.text == "|"):
	case tok.kind == nameToken && !tok.quoted:
	default:
		return "", operator{}, false
	}
	op, ok := infixOps[tok.text]
	if tok.text == "|" {
		// Bar is read as a disjunction.
		return ";", op, ok
	}
	return tok.text, op, ok
}

// startsTerm returns whether tok may be the first token of a term.
func startsTerm(tok token) bool {
	switch tok.kind {
	case eofToken, endToken:
		return false
	case punctToken:
		return tok.text == "(" || tok.text == "[" || tok.text == "{"
	case nameToken:
		if tok.quoted {
			return true
		}
		_, isInfix := infixOps[tok.text]
		_, isPrefix := prefixOps[tok.text]
		return !isInfix || isPrefix
	}
	return true
}

// parse reads a term with priority up to maxPriority.
func (p *parser) parse(maxPriority int) (logic.Term, error) {
	left, priority, err := p.primary(maxPriority)
	if err != nil {
		return nil, err
	}
	for {
		name, op, ok := p.infix()
		if !ok || op.priority > maxPriority {
			return left, nil
		}
		leftMax, rightMax := op.argMax()
		if priority > leftMax {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parse(rightMax)
		if err != nil {
			return nil, err
		}
		left = logic.NewComp(name, left, right)
		priority = op.priority
	}
}

// primary reads a term that is not an infix operation, returning its priority.
func (p *parser) primary(maxPriority int) (logic.Term, int, error) {
	tok := p.tok
	switch tok.kind {
	case intToken:
		return logic.Int{Value: tok.ival}, 0, p.advance()
	case floatToken:
		return logic.Float{Value: tok.fval}, 0, p.advance()
	case varToken:
		return logic.NewVar(tok.text), 0, p.advance()
	case stringToken:
		var chars []logic.Term
		for _, ch := range tok.text {
			chars = append(chars, logic.Atom{Name: string(ch)})
		}
		return logic.NewList(chars...), 0, p.advance()
	case punctToken:
		switch tok.text {
		case "(":
			if err := p.advance(); err != nil {
				return nil, 0, err
			}
			term, err := p.parse(1200)
			if err != nil {
				return nil, 0, err
			}
			return term, 0, p.expect(punctToken, ")")
		case "[":
			if p.next.is(punctToken, "]") {
				return p.name(logic.EmptyList.Name, maxPriority)
			}
			term, err := p.list()
			return term, 0, err
		case "{":
			if p.next.is(punctToken, "}") {
				return p.name("{}", maxPriority)
			}
			if err := p.advance(); err != nil {
				return nil, 0, err
			}
			term, err := p.parse(1200)
			if err != nil {
				return nil, 0, err
			}
			return logic.NewComp("{}", term), 0, p.expect(punctToken, "}")
		}
	case nameToken:
		return p.name(tok.text, maxPriority)
	}
	return nil, 0, p.errorf(tok, "unexpected %v", tok)
}

// name reads a term starting with an atom: a compound term in functional
// notation, a prefix operation, a negative number or the atom itself.
func (p *parser) name(name string, maxPriority int) (logic.Term, int, error) {
	tok := p.tok
	if name == "[]" || name == "{}" {
		// Skip the closing bracket.
		if err := p.advance(); err != nil {
			return nil, 0, err
		}
	}
	if err := p.advance(); err != nil {
		return nil, 0, err
	}
	if p.tok.is(punctToken, "(") && !p.tok.layout {
		args, err := p.args()
		if err != nil {
			return nil, 0, err
		}
		return logic.NewComp(name, args...), 0, nil
	}
	if tok.quoted {
		return logic.Atom{Name: name}, 0, nil
	}
	if name == "-" && !p.tok.layout {
		switch p.tok.kind {
		case intToken:
			value := -p.tok.ival
			return logic.Int{Value: value}, 0, p.advance()
		case floatToken:
			value := -p.tok.fval
			return logic.Float{Value: value}, 0, p.advance()
		}
	}
	op, ok := prefixOps[name]
	if !ok || !startsTerm(p.tok) {
		return logic.Atom{Name: name}, 0, nil
	}
	if op.priority > maxPriority {
		op.priority = 999
	}
	_, argMax := op.argMax()
	if op.typ == fx {
		argMax = op.priority - 1
	}
	arg, err := p.parse(argMax)
	if err != nil {
		return nil, 0, err
	}
	return logic.NewComp(name, arg), op.priority, nil
}

// args reads the arguments of a compound term, within parens.
func (p *parser) args() ([]logic.Term, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var args []logic.Term
	for !p.tok.is(punctToken, ")") {
		arg, err := p.parse(999)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.tok.is(punctToken, ",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	return args, p.expect(punctToken, ")")
}

// list reads a list within brackets, with an optional tail after '|'.
func (p *parser) list() (logic.Term, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}
	var terms []logic.Term
	tail := logic.Term(logic.EmptyList)
	for {
		term, err := p.parse(999)
		if err != nil {
			return nil, err
		}
		terms = append(terms, term)
		if p.tok.is(punctToken, "|") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if tail, err = p.parse(999); err != nil {
				return nil, err
			}
			break
		}
		if !p.tok.is(punctToken, ",") {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.is(punctToken, "]") {
			break
		}
	}
	if err := p.expect(punctToken, "]"); err != nil {
		return nil, err
	}
	return logic.NewIncompleteList(terms, tail), nil
}

// ---- API

// ParseTerm parses a single term, optionally terminated by '.'.
func ParseTerm(text string) (logic.Term, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	term, err := p.parse(1200)
	if err != nil {
		return nil, err
	}
	if p.tok.kind == endToken {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if p.tok.kind != eofToken {
		return nil, p.errorf(p.tok, "unexpected %v after term", p.tok)
	}
	return term, nil
}

// ParseTerms parses a sequence of terms, each one terminated by '.'.
func ParseTerms(text string) ([]logic.Term, error) {
	p, err := newParser(text)
	if err != nil {
		return nil, err
	}
	var terms []logic.Term
	for p.tok.kind != eofToken {
		term, err := p.parse(1200)
		if err != nil {
			return nil, err
		}
		if err := p.expect(endToken, "."); err != nil {
			return nil, err
		}
		terms = append(terms, term)
	}
	return terms, nil
}

// ParseClauses parses a sequence of facts and rules.
func ParseClauses(text string) ([]*logic.Clause, error) {
	terms, err := ParseTerms(text)
	if err != nil {
		return nil, err
	}
	clauses := make([]*logic.Clause, len(terms))
	for i, term := range terms {
		if clauses[i], err = ToClause(term); err != nil {
			return nil, err
		}
	}
	return clauses, nil
}

// ParseQuery parses a conjunction of goals, optionally terminated by '.'.
func ParseQuery(text string) ([]logic.Term, error) {
	term, err := ParseTerm(text)
	if err != nil {
		return nil, err
	}
	return logic.FlattenConj(term), nil
}

// ToClause converts a term read as 'Head :- Body', 'Head --> Body' or 'Head'
// into a clause.
func ToClause(term logic.Term) (*logic.Clause, error) {
	head, body := term, []logic.Term(nil)
	if c, ok := term.(*logic.Comp); ok && c.Functor == "-->" && len(c.Args) == 2 {
		return logic.ExpandDCG(c.Args[0], c.Args[1])
	}
	if c, ok := term.(*logic.Comp); ok && c.Functor == ":-" {
		switch len(c.Args) {
		case 1:
			return nil, errors.New("directive %v is not a clause", c.Args[0])
		case 2:
			head, body = c.Args[0], logic.FlattenConj(c.Args[1])
		}
	}
	switch head.(type) {
	case logic.Atom, *logic.Comp:
	default:
		return nil, errors.New("clause head %v is not callable", head)
	}
	return logic.NewClause(head, body...), nil
}
