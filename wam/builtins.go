package wam

import (
	"fmt"
	"unicode/utf8"

	"github.com/prologkit/warren/intern"
	"github.com/prologkit/warren/logic"
	"github.com/prologkit/warren/runes"
)

// Builtin is a predicate implemented in Go.
//
// Call receives the dereferenced or raw arg cells, and reports whether the
// predicate holds. Bindings are made with m.Unify, and are undone on
// backtracking. A non-nil error is a fault that aborts the query.
type Builtin interface {
	Call(m *Machine, args []Cell) (bool, error)
}

// BuiltinFunc adapts a function to the Builtin interface.
type BuiltinFunc func(m *Machine, args []Cell) (bool, error)

// Call returns f(m, args).
func (f BuiltinFunc) Call(m *Machine, args []Cell) (bool, error) {
	return f(m, args)
}

type builtinEntry struct {
	name  string
	arity int
	impl  Builtin
}

var defaultBuiltins = []builtinEntry{
	// Unification
	{"=", 2, BuiltinFunc(unifyPred)},
	{"\\=", 2, BuiltinFunc(notUnifiable)},
	{"unify_with_occurs_check", 2, BuiltinFunc(unifyWithOccursCheck)},

	// Type checks
	{"var", 1, typeCheck(func(m *Machine, c Cell) bool { return c.Tag == RefTag })},
	{"nonvar", 1, typeCheck(func(m *Machine, c Cell) bool { return c.Tag != RefTag })},
	{"atom", 1, typeCheck(func(m *Machine, c Cell) bool { return c.Tag == AtomTag })},
	{"number", 1, typeCheck(func(m *Machine, c Cell) bool { return c.IsNumber() })},
	{"integer", 1, typeCheck(func(m *Machine, c Cell) bool { return c.Tag == IntTag })},
	{"float", 1, typeCheck(func(m *Machine, c Cell) bool { return c.Tag == FloatTag })},
	{"atomic", 1, typeCheck(func(m *Machine, c Cell) bool { return c.IsAtomic() })},
	{"compound", 1, typeCheck(func(m *Machine, c Cell) bool { return c.Tag == StructTag })},
	{"callable", 1, typeCheck(func(m *Machine, c Cell) bool { return c.Tag == AtomTag || c.Tag == StructTag })},
	{"is_list", 1, typeCheck(isList)},

	// Term comparison
	{"==", 2, comparison{equal, equal}},
	{"\\==", 2, comparison{less, more}},
	{"@<", 2, comparison{less, less}},
	{"@=<", 2, comparison{less, equal}},
	{"@>", 2, comparison{more, more}},
	{"@>=", 2, comparison{more, equal}},
	{"compare", 3, BuiltinFunc(compare3)},

	// Arithmetic
	{"is", 2, BuiltinFunc(is)},
	{"=:=", 2, arithComparison{"=:=", equal, equal}},
	{"=\\=", 2, arithComparison{"=\\=", less, more}},
	{"<", 2, arithComparison{"<", less, less}},
	{"=<", 2, arithComparison{"=<", less, equal}},
	{">", 2, arithComparison{">", more, more}},
	{">=", 2, arithComparison{">=", more, equal}},

	// Term construction
	{"functor", 3, BuiltinFunc(functor3)},
	{"arg", 3, BuiltinFunc(arg3)},
	{"=..", 2, BuiltinFunc(univ)},
	{"copy_term", 2, BuiltinFunc(copyTerm)},

	// Atoms
	{"atom_length", 2, BuiltinFunc(atomLength)},
	{"atom_codes", 2, BuiltinFunc(atomCodes)},
	{"char_code", 2, BuiltinFunc(charCode)},

	// Database
	{"assertz", 1, assertPred{"assertz/1", false}},
	{"assert", 1, assertPred{"assert/1", false}},
	{"asserta", 1, assertPred{"asserta/1", true}},

	// Control
	{"$get_level", 1, BuiltinFunc(getLevel)},
	{"$cut", 1, BuiltinFunc(cutToLevel)},

	// Output
	{"write", 1, BuiltinFunc(write)},
	{"nl", 0, BuiltinFunc(nl)},
}

// Maximum arity of structs built by functor/3.
const maxArity = 1 << 16

func instantiationError(pred string) error {
	return &BuiltinError{Kind: InstantiationError, Predicate: pred}
}

func (m *Machine) typeError(pred, expected string, culprit Cell) error {
	return &BuiltinError{Kind: TypeError, Predicate: pred, Expected: expected, Culprit: m.format(culprit)}
}

func (m *Machine) domainError(pred, expected string, culprit Cell) error {
	return &BuiltinError{Kind: DomainError, Predicate: pred, Expected: expected, Culprit: m.format(culprit)}
}

// ---- unification

func unifyPred(m *Machine, args []Cell) (bool, error) {
	return m.unify(args[0], args[1]), nil
}

// notUnifiable never leaves bindings behind.
func notUnifiable(m *Machine, args []Cell) (bool, error) {
	mark := m.TrailMark()
	ok := m.unify(args[0], args[1])
	m.undoTrail(mark)
	return !ok, nil
}

func unifyWithOccursCheck(m *Machine, args []Cell) (bool, error) {
	prev := m.OccursCheck
	m.OccursCheck = true
	defer func() { m.OccursCheck = prev }()
	return m.unify(args[0], args[1]), nil
}

// ---- control

// getLevel reads the cut barrier of the running clause.
func getLevel(m *Machine, args []Cell) (bool, error) {
	return m.unify(args[0], Int(int64(m.CutChoice))), nil
}

func cutToLevel(m *Machine, args []Cell) (bool, error) {
	level := m.deref(args[0])
	if level.Tag != IntTag {
		return false, m.typeError("$cut/1", "integer", level)
	}
	m.cutTo(int(level.Val))
	return true, nil
}

// ---- type checks

type typeCheck func(m *Machine, c Cell) bool

func (check typeCheck) Call(m *Machine, args []Cell) (bool, error) {
	return check(m, m.deref(args[0])), nil
}

func isList(m *Machine, c Cell) bool {
	_, tail, ok := m.listElems(c)
	return ok && tail.Tag == AtomTag && tail.FunctorID() == m.emptyList()
}

// ---- comparison

type comparison struct {
	accepts1, accepts2 ordering
}

func (pred comparison) Call(m *Machine, args []Cell) (bool, error) {
	o := m.compareCells(args[0], args[1])
	return o == pred.accepts1 || o == pred.accepts2, nil
}

func compare3(m *Machine, args []Cell) (bool, error) {
	order := m.deref(args[0])
	if order.Tag != RefTag {
		if order.Tag != AtomTag {
			return false, m.typeError("compare/3", "atom", order)
		}
		switch m.functor(order.FunctorID()).Name {
		case "<", "=", ">":
		default:
			return false, m.domainError("compare/3", "order", order)
		}
	}
	name := "="
	switch m.compareCells(args[1], args[2]) {
	case less:
		name = "<"
	case more:
		name = ">"
	}
	return m.unify(order, Atom(m.prog.Interner.Atom(name))), nil
}

// ---- arithmetic

func is(m *Machine, args []Cell) (bool, error) {
	x, err := m.Eval(args[1])
	if err != nil {
		return false, err
	}
	return m.unify(args[0], x), nil
}

type arithComparison struct {
	name               string
	accepts1, accepts2 ordering
}

func (pred arithComparison) Call(m *Machine, args []Cell) (bool, error) {
	ev := evaluator{m, pred.name + "/2"}
	x, err := ev.eval(args[0])
	if err != nil {
		return false, err
	}
	y, err := ev.eval(args[1])
	if err != nil {
		return false, err
	}
	o := compareArith(x, y)
	return o == pred.accepts1 || o == pred.accepts2, nil
}

// ---- lists

func (m *Machine) emptyList() intern.FunctorID {
	return m.prog.Interner.Atom("[]")
}

func (m *Machine) listFunctor() intern.FunctorID {
	return m.prog.Interner.Functor(logic.ListFunctor, 2)
}

// listElems returns the elements of a list and its dereferenced tail. It
// returns ok=false if the list is cyclic.
func (m *Machine) listElems(c Cell) (elems []Cell, tail Cell, ok bool) {
	dot := Functor(m.listFunctor(), 2)
	c = m.deref(c)
	for c.Tag == StructTag && m.Heap[c.Addr()] == dot {
		if len(elems) > len(m.Heap) {
			return nil, c, false
		}
		_, args := m.structArgs(c)
		elems = append(elems, args[0])
		c = m.deref(args[1])
	}
	return elems, c, true
}

// properList returns the elements of a list, or a fault if it's partial
// or not a list.
func (m *Machine) properList(pred string, c Cell) ([]Cell, error) {
	elems, tail, ok := m.listElems(c)
	if !ok {
		return nil, m.typeError(pred, "list", c)
	}
	switch {
	case tail.Tag == RefTag:
		return nil, instantiationError(pred)
	case tail.Tag != AtomTag || tail.FunctorID() != m.emptyList():
		return nil, m.typeError(pred, "list", c)
	}
	return elems, nil
}

// NewList builds a list on the heap.
func (m *Machine) NewList(elems ...Cell) Cell {
	list := Atom(m.emptyList())
	dot := m.listFunctor()
	for i := len(elems) - 1; i >= 0; i-- {
		list = m.NewStruct(dot, elems[i], list)
	}
	return list
}

// ---- term construction

func functor3(m *Machine, args []Cell) (bool, error) {
	const pred = "functor/3"
	t := m.deref(args[0])
	switch t.Tag {
	case StructTag:
		f := m.functor(m.Heap[t.Addr()].FunctorID())
		return m.unify(args[1], Atom(m.prog.Interner.Atom(f.Name))) &&
			m.unify(args[2], Int(int64(f.Arity))), nil
	case RefTag:
	default:
		return m.unify(args[1], t) && m.unify(args[2], Int(0)), nil
	}
	name, arity := m.deref(args[1]), m.deref(args[2])
	switch {
	case name.Tag == RefTag || arity.Tag == RefTag:
		return false, instantiationError(pred)
	case arity.Tag != IntTag:
		return false, m.typeError(pred, "integer", arity)
	case arity.Val < 0 || arity.Val > maxArity:
		return false, m.domainError(pred, "arity", arity)
	case name.Tag == StructTag:
		return false, m.typeError(pred, "atomic", name)
	case arity.Val == 0:
		return m.unify(t, name), nil
	case name.Tag != AtomTag:
		return false, m.typeError(pred, "atom", name)
	}
	n := int(arity.Val)
	id := m.prog.Interner.Functor(m.functor(name.FunctorID()).Name, n)
	addr := len(m.Heap)
	m.push(Functor(id, n))
	for i := 0; i < n; i++ {
		m.newVar()
	}
	return m.unify(t, Struct(addr)), nil
}

func arg3(m *Machine, args []Cell) (bool, error) {
	const pred = "arg/3"
	n, t := m.deref(args[0]), m.deref(args[1])
	switch {
	case n.Tag == RefTag || t.Tag == RefTag:
		return false, instantiationError(pred)
	case n.Tag != IntTag:
		return false, m.typeError(pred, "integer", n)
	case t.Tag != StructTag:
		return false, m.typeError(pred, "compound", t)
	}
	_, targs := m.structArgs(t)
	if n.Val < 1 || n.Val > int64(len(targs)) {
		return false, nil
	}
	return m.unify(args[2], targs[n.Val-1]), nil
}

// univ implements T =.. [Name|Args].
func univ(m *Machine, args []Cell) (bool, error) {
	const pred = "=../2"
	t := m.deref(args[0])
	switch t.Tag {
	case StructTag:
		f, targs := m.structArgs(t)
		elems := make([]Cell, 0, len(targs)+1)
		elems = append(elems, Atom(m.prog.Interner.Atom(m.functor(f.FunctorID()).Name)))
		elems = append(elems, targs...)
		return m.unify(args[1], m.NewList(elems...)), nil
	case RefTag:
	default:
		return m.unify(args[1], m.NewList(t)), nil
	}
	elems, err := m.properList(pred, args[1])
	if err != nil {
		return false, err
	}
	if len(elems) == 0 {
		return false, m.domainError(pred, "non_empty_list", m.deref(args[1]))
	}
	head := m.deref(elems[0])
	switch {
	case head.Tag == RefTag:
		return false, instantiationError(pred)
	case len(elems) == 1:
		if head.Tag == StructTag {
			return false, m.typeError(pred, "atomic", head)
		}
		return m.unify(t, head), nil
	case head.Tag != AtomTag:
		return false, m.typeError(pred, "atom", head)
	}
	id := m.prog.Interner.Functor(m.functor(head.FunctorID()).Name, len(elems)-1)
	return m.unify(t, m.NewStruct(id, elems[1:]...)), nil
}

func copyTerm(m *Machine, args []Cell) (bool, error) {
	copied := m.copyCell(args[0], make(map[int]Cell))
	return m.unify(args[1], copied), nil
}

// copyCell copies a term with fresh vars, keeping the sharing among them.
func (m *Machine) copyCell(c Cell, vars map[int]Cell) Cell {
	c = m.deref(c)
	switch c.Tag {
	case RefTag:
		if x, ok := vars[c.Addr()]; ok {
			return x
		}
		x := m.newVar()
		vars[c.Addr()] = x
		return x
	case StructTag:
		f, args := m.structArgs(c)
		copies := make([]Cell, len(args))
		for i, arg := range args {
			copies[i] = m.copyCell(arg, vars)
		}
		return m.NewStruct(f.FunctorID(), copies...)
	}
	return c
}

// ---- atoms

func (m *Machine) atomText(pred string, c Cell) (string, error) {
	c = m.deref(c)
	switch c.Tag {
	case RefTag:
		return "", instantiationError(pred)
	case AtomTag:
		return m.functor(c.FunctorID()).Name, nil
	case IntTag, FloatTag:
		return m.format(c), nil
	}
	return "", m.typeError(pred, "atom", c)
}

func atomLength(m *Machine, args []Cell) (bool, error) {
	const pred = "atom_length/2"
	text, err := m.atomText(pred, args[0])
	if err != nil {
		return false, err
	}
	n := m.deref(args[1])
	if n.Tag != RefTag && n.Tag != IntTag {
		return false, m.typeError(pred, "integer", n)
	}
	if n.Tag == IntTag && n.Val < 0 {
		return false, m.domainError(pred, "not_less_than_zero", n)
	}
	return m.unify(n, Int(int64(utf8.RuneCountInString(text)))), nil
}

func atomCodes(m *Machine, args []Cell) (bool, error) {
	const pred = "atom_codes/2"
	if a := m.deref(args[0]); a.Tag != RefTag {
		text, err := m.atomText(pred, a)
		if err != nil {
			return false, err
		}
		var codes []Cell
		for _, ch := range text {
			codes = append(codes, Int(int64(ch)))
		}
		return m.unify(args[1], m.NewList(codes...)), nil
	}
	elems, err := m.properList(pred, args[1])
	if err != nil {
		return false, err
	}
	chars := make([]rune, len(elems))
	for i, elem := range elems {
		code := m.deref(elem)
		switch {
		case code.Tag == RefTag:
			return false, instantiationError(pred)
		case code.Tag != IntTag:
			return false, m.typeError(pred, "integer", code)
		case code.Val < 0 || code.Val > utf8.MaxRune:
			return false, m.domainError(pred, "character_code", code)
		}
		chars[i] = rune(code.Val)
	}
	return m.unify(args[0], Atom(m.prog.Interner.Atom(string(chars)))), nil
}

func charCode(m *Machine, args []Cell) (bool, error) {
	const pred = "char_code/2"
	char, code := m.deref(args[0]), m.deref(args[1])
	switch char.Tag {
	case AtomTag:
		ch, ok := runes.Single(m.functor(char.FunctorID()).Name)
		if !ok {
			return false, m.typeError(pred, "character", char)
		}
		return m.unify(code, Int(int64(ch))), nil
	case RefTag:
	default:
		return false, m.typeError(pred, "character", char)
	}
	switch {
	case code.Tag == RefTag:
		return false, instantiationError(pred)
	case code.Tag != IntTag:
		return false, m.typeError(pred, "integer", code)
	case code.Val < 0 || code.Val > utf8.MaxRune:
		return false, m.domainError(pred, "character_code", code)
	}
	return m.unify(char, Atom(m.prog.Interner.Atom(string(rune(code.Val))))), nil
}

// ---- database

// assertPred adds a clause to the program. The running query keeps
// executing its image of the program, so it doesn't see the new clause.
type assertPred struct {
	name  string
	front bool
}

func (pred assertPred) Call(m *Machine, args []Cell) (bool, error) {
	c := m.deref(args[0])
	switch c.Tag {
	case RefTag:
		return false, instantiationError(pred.name)
	case AtomTag, StructTag:
	default:
		return false, m.typeError(pred.name, "callable", c)
	}
	term := m.Term(c)
	head, body := term, []logic.Term(nil)
	if comp, ok := term.(*logic.Comp); ok && comp.Functor == ":-" && len(comp.Args) == 2 {
		head, body = comp.Args[0], logic.FlattenConj(comp.Args[1])
	}
	switch head.(type) {
	case logic.Var:
		return false, instantiationError(pred.name)
	case logic.Atom, *logic.Comp:
	default:
		return false, m.typeError(pred.name, "callable", c)
	}
	for _, goal := range body {
		switch goal.(type) {
		case logic.Var, logic.Atom, *logic.Comp:
		default:
			return false, m.typeError(pred.name, "callable", c)
		}
	}
	if err := m.prog.assert(logic.NewClause(head, body...), pred.front); err != nil {
		return false, err
	}
	return true, nil
}

// ---- output

func write(m *Machine, args []Cell) (bool, error) {
	var text string
	switch t := m.Term(args[0]).(type) {
	case logic.Atom:
		text = t.Name
	default:
		text = t.String()
	}
	if _, err := fmt.Fprint(m.Out, text); err != nil {
		return false, err
	}
	return true, nil
}

func nl(m *Machine, args []Cell) (bool, error) {
	if _, err := fmt.Fprintln(m.Out); err != nil {
		return false, err
	}
	return true, nil
}
