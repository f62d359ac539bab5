package wam

import (
	"fmt"

	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/logic"
)

// ---- heap to logic terms

type namedVar struct {
	name string
	cell Cell
}

// decodeCtx converts heap terms into logic terms.
type decodeCtx struct {
	m *Machine
	// Structs being decoded, to cut cycles created without occurs check.
	parents map[int]struct{}
	seen    map[int]struct{}
	vars    []namedVar
}

func (m *Machine) newDecodeCtx() *decodeCtx {
	return &decodeCtx{
		m:       m,
		parents: make(map[int]struct{}),
		seen:    make(map[int]struct{}),
	}
}

// Term converts a heap cell into a logic term. Unbound vars are named after
// their heap address, e.g., _G12.
func (m *Machine) Term(c Cell) logic.Term {
	return m.newDecodeCtx().decode(c)
}

// toTermNamed converts c into a logic term, also returning its unbound
// vars in order of first occurrence.
func (m *Machine) toTermNamed(c Cell) (logic.Term, []namedVar) {
	ctx := m.newDecodeCtx()
	t := ctx.decode(c)
	return t, ctx.vars
}

func (m *Machine) format(c Cell) string {
	return m.Term(c).String()
}

func varName(addr int) string {
	return fmt.Sprintf("_G%d", addr)
}

func (ctx *decodeCtx) decode(c Cell) logic.Term {
	c = ctx.m.deref(c)
	switch c.Tag {
	case RefTag:
		addr := c.Addr()
		if _, ok := ctx.seen[addr]; !ok {
			ctx.seen[addr] = struct{}{}
			ctx.vars = append(ctx.vars, namedVar{varName(addr), c})
		}
		return logic.Var{Name: varName(addr)}
	case AtomTag:
		return logic.Atom{Name: ctx.m.functor(c.FunctorID()).Name}
	case IntTag:
		return logic.Int{Value: c.Val}
	case FloatTag:
		return logic.Float{Value: c.Float()}
	case StructTag:
		return ctx.decodeStruct(c)
	}
	panic(errors.New("wam.decode: unhandled cell %v", c))
}

func (ctx *decodeCtx) decodeStruct(c Cell) logic.Term {
	addr := c.Addr()
	if _, ok := ctx.parents[addr]; ok {
		return logic.Var{Name: fmt.Sprintf("_S%d", addr)}
	}
	ctx.parents[addr] = struct{}{}
	defer delete(ctx.parents, addr)
	f, args := ctx.m.structArgs(c)
	functor := ctx.m.functor(f.FunctorID())
	if functor.Name == logic.ListFunctor && functor.Arity == 2 {
		return ctx.decodeList(c)
	}
	terms := make([]logic.Term, len(args))
	for i, arg := range args {
		terms[i] = ctx.decode(arg)
	}
	return logic.NewComp(functor.Name, terms...)
}

// decodeList unrolls a chain of '.'/2 structs into a single list.
func (ctx *decodeCtx) decodeList(c Cell) logic.Term {
	var terms []logic.Term
	var visited []int
	defer func() {
		for _, addr := range visited {
			delete(ctx.parents, addr)
		}
	}()
	for {
		_, args := ctx.m.structArgs(c)
		terms = append(terms, ctx.decode(args[0]))
		tail := ctx.m.deref(args[1])
		if tail.Tag != StructTag || !ctx.isListCell(tail) {
			return logic.NewIncompleteList(terms, ctx.decode(tail))
		}
		if _, ok := ctx.parents[tail.Addr()]; ok {
			return logic.NewIncompleteList(terms, ctx.decode(tail))
		}
		ctx.parents[tail.Addr()] = struct{}{}
		visited = append(visited, tail.Addr())
		c = tail
	}
}

func (ctx *decodeCtx) isListCell(c Cell) bool {
	f := ctx.m.Heap[c.Addr()]
	return f.Arity == 2 && ctx.m.functor(f.FunctorID()).Name == logic.ListFunctor
}

// ---- logic terms to heap

// Build places a logic term on the heap. Vars are looked up in env by name,
// and new ones are added to it. Each anonymous var is distinct.
func (m *Machine) Build(t logic.Term, env map[logic.Var]Cell) Cell {
	switch t := t.(type) {
	case logic.Var:
		if t.IsAnonymous() {
			return m.newVar()
		}
		if c, ok := env[t]; ok {
			return c
		}
		c := m.newVar()
		env[t] = c
		return c
	case logic.Atom:
		return Atom(m.prog.Interner.Atom(t.Name))
	case logic.Int:
		return Int(t.Value)
	case logic.Float:
		return Float(t.Value)
	case *logic.Comp:
		args := make([]Cell, len(t.Args))
		for i, arg := range t.Args {
			args[i] = m.Build(arg, env)
		}
		return m.NewStruct(m.prog.Interner.Functor(t.Functor, len(t.Args)), args...)
	case *logic.List:
		return m.Build(t.Comp(), env)
	}
	panic(errors.New("wam.Build: unhandled type %T (%v)", t, t))
}
