// Package logic implements the source-level representation of logic programs.
//
// A logic term can fall in one of three categories:
//
// * atomic: a term that represents an immutable value, like atoms and numbers.
//
// * variable: a term that represents an unbound, yet-to-be-resolved term.
//
// * complex: a term that contains other terms, recursively.
//
// A logic program is composed of clauses of the form 'head :- term1, term2.', that
// must be read as "head holds if term1 and term2 holds". A clause with no terms in
// the body is called a fact.
//
// These terms are the interface between the parser, the compiler and the
// solutions reported by the machine. The machine itself works on heap cells.
package logic

import (
	"fmt"
	"strconv"
	"strings"
)

// ---- Basic types

// Term is a representation of a logic term.
type Term interface {
	fmt.Stringer
	vars(seen map[Var]struct{}, xs []Var) []Var
	hasVar() bool
}

// Atom is an atomic term representing a symbol.
type Atom struct {
	// Name is the identifier for an atom.
	Name string
}

// Int is an atomic term representing an integer.
type Int struct {
	// Value is the (immutable) value of an int.
	Value int64
}

// Float is an atomic term representing a floating point number.
type Float struct {
	Value float64
}

// Var is a variable term.
type Var struct {
	// Name is the identifier for a var.
	Name string
}

// Comp is a complex term, representing an immutable compound term.
type Comp struct {
	// Functor is the primary identifier of a comp.
	Functor string
	// Args is the list of terms within this term.
	Args    []Term
	hasVar_ bool
}

// List is a complex term, representing an ordered sequence of terms.
//
// It is a shorthand for nested '.'/2 comps ending in a tail.
type List struct {
	// Terms are the contents of a list.
	Terms []Term
	// Tail is the continuation of a list, which is usually another
	// list, the empty list, or an unbound var.
	Tail    Term
	hasVar_ bool
}

// Clause is the representation of a logic rule.
// Note that Clause is not a Term, so it can't be used within complex terms.
type Clause struct {
	// Head is the consequent of a clause. May be Atom or Comp.
	Head Term
	// Body is the antecedent of a clause. May be Atom, Var or Comp.
	Body    []Term
	hasVar_ bool
}

// ---- Public vars

var (
	// AnonymousVar represents a variable to be ignored.
	AnonymousVar = Var{"_"}
	// EmptyList is an atom representing an empty list.
	EmptyList = Atom{"[]"}
)

// ListFunctor is the functor of list cells.
const ListFunctor = "."

// ---- Vars

// NewVar creates a new var.
//
// It panics if the name doesn't start with an uppercase letter or an underscore.
func NewVar(name string) Var {
	if !IsVar(name) {
		panic(fmt.Sprintf("NewVar: invalid name: %q", name))
	}
	return Var{name}
}

// IsAnonymous returns whether x is the anonymous var '_'.
func (x Var) IsAnonymous() bool {
	return x.Name == "_"
}

// ---- Compound terms

// NewComp creates a compound term.
func NewComp(functor string, terms ...Term) *Comp {
	var hasVar bool
	for _, term := range terms {
		if term.hasVar() {
			hasVar = true
			break
		}
	}
	return &Comp{Functor: functor, Args: terms, hasVar_: hasVar}
}

// Indicator is a notation for a comp, usually shown as functor/arity, e.g., f/2.
type Indicator struct {
	// Name is the compound term's functor.
	Name string
	// Arity is the compound term's number of args.
	Arity int
}

func (i Indicator) String() string {
	return fmt.Sprintf("%s/%d", FormatAtom(i.Name), i.Arity)
}

// Indicator returns the functor's indicator.
func (c *Comp) Indicator() Indicator {
	return Indicator{c.Functor, len(c.Args)}
}

// ---- Lists

// NewList creates a List with the provided terms and EmptyList as tail.
func NewList(terms ...Term) Term {
	return NewIncompleteList(terms, EmptyList)
}

// NewIncompleteList creates a List with the provided terms and tail.
func NewIncompleteList(terms []Term, tail Term) Term {
	if len(terms) == 0 {
		return tail
	}
	if l, ok := tail.(*List); ok {
		tmp := make([]Term, len(terms)+len(l.Terms))
		copy(tmp, terms)
		copy(tmp[len(terms):], l.Terms)
		terms = tmp
		tail = l.Tail
	}
	var hasVar bool
	for _, term := range terms {
		if term.hasVar() {
			hasVar = true
			break
		}
	}
	if !hasVar {
		hasVar = tail.hasVar()
	}
	return &List{Terms: terms, Tail: tail, hasVar_: hasVar}
}

// Slice returns a new list starting from the n-th term, inclusive.
func (l *List) Slice(n int) Term {
	if n < 0 || n > len(l.Terms) {
		panic(fmt.Sprintf("(*List).Slice: invalid index %d", n))
	}
	if n == len(l.Terms) {
		return l.Tail
	}
	return NewIncompleteList(l.Terms[n:], l.Tail)
}

// Comp returns the list as a '.'/2 comp.
func (l *List) Comp() *Comp {
	return NewComp(ListFunctor, l.Terms[0], l.Slice(1))
}

func (l *List) asString() (string, bool) {
	if l.Tail != EmptyList {
		return "", false
	}
	chars := make([]rune, len(l.Terms))
	for i, term := range l.Terms {
		a, ok := term.(Atom)
		if !ok {
			return "", false
		}
		ch, ok := singleRune(a.Name)
		if !ok {
			return "", false
		}
		chars[i] = ch
	}
	return FormatString(chars), true
}

// ---- Clauses

// NewClause returns a clause with the provided head and terms as body.
func NewClause(head Term, body ...Term) *Clause {
	var hasVar bool
	for _, term := range body {
		if term.hasVar() {
			hasVar = true
			break
		}
	}
	if !hasVar {
		hasVar = head.hasVar()
	}
	return &Clause{Head: head, Body: body, hasVar_: hasVar}
}

// ClauseNormalizeError contains data about an invalid clause.
type ClauseNormalizeError struct {
	// "head" or "body"
	TermLocation string
	Clause       *Clause
	Term         Term
}

func (err *ClauseNormalizeError) Error() string {
	if err.TermLocation == "head" {
		return fmt.Sprintf("invalid head term for clause %v: %v (must be atom or comp)", err.Clause, err.Term)
	}
	return fmt.Sprintf("invalid body term for clause %v: %v (must be atom, var or comp)", err.Clause, err.Term)
}

// Normalize transforms the clause to contain only comp terms.
//
// Atoms in the clause's head and body are converted to functors with 0 arity.
// Variables in the clause's body are converted to a 'call(X)' functor.
// Conjunctions in the body are flattened.
func (c *Clause) Normalize() (*Clause, error) {
	var head Term
	switch h := c.Head.(type) {
	case Atom:
		head = NewComp(h.Name)
	case *Comp:
		head = h
	default:
		return nil, &ClauseNormalizeError{"head", c, c.Head}
	}
	var body []Term
	for _, term := range FlattenConj(c.Body...) {
		switch t := term.(type) {
		case Atom:
			body = append(body, NewComp(t.Name))
		case Var:
			body = append(body, NewComp("call", t))
		case *Comp:
			body = append(body, t)
		default:
			return nil, &ClauseNormalizeError{"body", c, term}
		}
	}
	return NewClause(head, body...), nil
}

// FlattenConj expands ','/2 comps into a sequence of goals.
func FlattenConj(goals ...Term) []Term {
	var flat []Term
	for _, goal := range goals {
		if c, ok := goal.(*Comp); ok && c.Functor == "," && len(c.Args) == 2 {
			flat = append(flat, FlattenConj(c.Args[0], c.Args[1])...)
			continue
		}
		flat = append(flat, goal)
	}
	return flat
}

// ---- vars()

// Vars returns a set with all term variables, in insertion order.
// The anonymous var is not included.
func Vars(term Term) []Var {
	if !term.hasVar() {
		return nil
	}
	seen := make(map[Var]struct{})
	return term.vars(seen, nil)
}

func (t Atom) vars(seen map[Var]struct{}, xs []Var) []Var  { return xs }
func (t Int) vars(seen map[Var]struct{}, xs []Var) []Var   { return xs }
func (t Float) vars(seen map[Var]struct{}, xs []Var) []Var { return xs }

func (t Var) vars(seen map[Var]struct{}, xs []Var) []Var {
	if t.IsAnonymous() {
		return xs
	}
	if _, ok := seen[t]; !ok {
		seen[t] = struct{}{}
		xs = append(xs, t)
	}
	return xs
}

func (t *Comp) vars(seen map[Var]struct{}, xs []Var) []Var {
	if !t.hasVar_ {
		return xs
	}
	for _, arg := range t.Args {
		xs = arg.vars(seen, xs)
	}
	return xs
}

func (t *List) vars(seen map[Var]struct{}, xs []Var) []Var {
	if !t.hasVar_ {
		return xs
	}
	for _, term := range t.Terms {
		xs = term.vars(seen, xs)
	}
	return t.Tail.vars(seen, xs)
}

// Vars returns a set with all variables, in insertion order.
func (c *Clause) Vars() []Var {
	if !c.hasVar_ {
		return nil
	}
	seen := make(map[Var]struct{})
	xs := c.Head.vars(seen, nil)
	for _, term := range c.Body {
		xs = term.vars(seen, xs)
	}
	return xs
}

// ---- hasVar()

func (t Atom) hasVar() bool  { return false }
func (t Int) hasVar() bool   { return false }
func (t Float) hasVar() bool { return false }
func (t Var) hasVar() bool   { return true }
func (t *Comp) hasVar() bool { return t.hasVar_ }
func (t *List) hasVar() bool { return t.hasVar_ }

// ---- Comparisons

// Standard order: Var < Number < Atom < Comp. Lists are '.'/2 comps.
func termOrder(t Term) int {
	switch t.(type) {
	case Var:
		return 1
	case Int, Float:
		return 2
	case Atom:
		return 3
	case *Comp, *List:
		return 4
	default:
		panic(fmt.Sprintf("logic.termOrder: unhandled type %T", t))
	}
}

type ordering int

const (
	less ordering = iota - 1
	equal
	more
)

func compareStrings(s1, s2 string) ordering {
	if s1 < s2 {
		return less
	}
	if s1 > s2 {
		return more
	}
	return equal
}

func compareInts(a, b int) ordering {
	if a < b {
		return less
	}
	if a > b {
		return more
	}
	return equal
}

// Numbers compare by value; on ties a float comes before an int.
func compareNumbers(t1, t2 Term) ordering {
	f1, isFloat1 := numberValue(t1)
	f2, isFloat2 := numberValue(t2)
	if i1, ok := t1.(Int); ok {
		if i2, ok := t2.(Int); ok {
			switch {
			case i1.Value < i2.Value:
				return less
			case i1.Value > i2.Value:
				return more
			}
			return equal
		}
	}
	switch {
	case f1 < f2:
		return less
	case f1 > f2:
		return more
	case isFloat1 && !isFloat2:
		return less
	case !isFloat1 && isFloat2:
		return more
	}
	return equal
}

func numberValue(t Term) (float64, bool) {
	switch n := t.(type) {
	case Int:
		return float64(n.Value), false
	case Float:
		return n.Value, true
	}
	panic(fmt.Sprintf("logic.numberValue: not a number %v", t))
}

func asComp(t Term) *Comp {
	if l, ok := t.(*List); ok {
		return l.Comp()
	}
	return t.(*Comp)
}

func compare(t1, t2 Term) ordering {
	o1, o2 := termOrder(t1), termOrder(t2)
	if o1 != o2 {
		return compareInts(o1, o2)
	}
	switch u := t1.(type) {
	case Var:
		return compareStrings(u.Name, t2.(Var).Name)
	case Int, Float:
		return compareNumbers(t1, t2)
	case Atom:
		return compareStrings(u.Name, t2.(Atom).Name)
	}
	c1, c2 := asComp(t1), asComp(t2)
	if o := compareInts(len(c1.Args), len(c2.Args)); o != equal {
		return o
	}
	if o := compareStrings(c1.Functor, c2.Functor); o != equal {
		return o
	}
	for i, arg := range c1.Args {
		if o := compare(arg, c2.Args[i]); o != equal {
			return o
		}
	}
	return equal
}

// Less returns the order between t1 and t2, following the standard order of terms.
//
// The order of terms is: Vars < Numbers < Atoms < Comps. Comps are first compared
// by arity, then by functor, then by args pairwise.
func Less(t1, t2 Term) bool {
	return compare(t1, t2) == less
}

// Eq returns whether t1 and t2 are identical terms.
//
// Note that this only takes into account the structure of terms, not whether
// any binding may make them identical.
func Eq(t1, t2 Term) bool {
	return compare(t1, t2) == equal
}

// ---- String()

func (t Atom) String() string {
	return FormatAtom(t.Name)
}

func (t Int) String() string {
	return strconv.FormatInt(t.Value, 10)
}

func (t Float) String() string {
	return FormatFloat(t.Value)
}

func (t Var) String() string {
	return t.Name
}

func (t *Comp) String() string {
	args := make([]string, len(t.Args))
	for i, arg := range t.Args {
		args[i] = arg.String()
	}
	return fmt.Sprintf("%s(%s)", FormatAtom(t.Functor), strings.Join(args, ", "))
}

func (t *List) String() string {
	if s, ok := t.asString(); ok {
		return s
	}
	terms := make([]string, len(t.Terms))
	for i, term := range t.Terms {
		terms[i] = term.String()
	}
	xs := strings.Join(terms, ", ")
	if t.Tail == EmptyList {
		return fmt.Sprintf("[%s]", xs)
	}
	return fmt.Sprintf("[%s|%v]", xs, t.Tail)
}

func (c *Clause) String() string {
	head := c.Head.String()
	if len(c.Body) == 0 {
		return head + "."
	}
	body := make([]string, len(c.Body))
	for i, comp := range c.Body {
		body[i] = comp.String()
	}
	return fmt.Sprintf("%s :-\n  %s.", head, strings.Join(body, ",\n  "))
}
