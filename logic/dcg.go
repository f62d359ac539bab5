package logic

import (
	"fmt"

	"github.com/prologkit/warren/errors"
)

// ExpandDCG translates the grammar rule 'Head --> Body' into a regular clause.
//
// Nonterminals get two extra args, the list before and after they are parsed.
// Terminal lists unify with the input, '{}'/1 goals are called as-is, and
// control constructs (',', ';', '->', '\+', '!') keep their meaning.
// A var in the body is called with phrase/3.
//
//	greeting --> [hello], name.
//	greeting(_L0, _L2) :- _L0 = [hello|_L1], name(_L1, _L2).
func ExpandDCG(head, body Term) (*Clause, error) {
	tr := &dcgTranslator{used: make(map[string]struct{})}
	for _, x := range Vars(NewComp("-->", head, body)) {
		tr.used[x.Name] = struct{}{}
	}
	first := tr.fresh()
	goals, last, err := tr.seq(body, first)
	if err != nil {
		return nil, err
	}
	var h *Comp
	switch t := head.(type) {
	case Atom:
		h = NewComp(t.Name, first, last)
	case *Comp:
		if t.Functor == "," && len(t.Args) == 2 {
			return nil, errors.New("grammar rule %v: pushback is not supported", head)
		}
		h = dcgExtend(t, first, last)
	default:
		return nil, errors.New("grammar rule head %v is not callable", head)
	}
	return NewClause(h, goals...), nil
}

// f(a, X) => f(a, X, L0, L1)
func dcgExtend(c *Comp, s0, s Term) *Comp {
	args := make([]Term, len(c.Args), len(c.Args)+2)
	copy(args, c.Args)
	return NewComp(c.Functor, append(args, s0, s)...)
}

type dcgTranslator struct {
	used map[string]struct{}
	cnt  int
}

// fresh returns a var that is not present in the rule.
func (tr *dcgTranslator) fresh() Var {
	for {
		x := NewVar(fmt.Sprintf("_L%d", tr.cnt))
		tr.cnt++
		if _, ok := tr.used[x.Name]; !ok {
			return x
		}
	}
}

// seq translates a body starting at state s0, returning its goals and the
// final state.
func (tr *dcgTranslator) seq(term Term, s0 Var) ([]Term, Var, error) {
	switch t := term.(type) {
	case Var:
		s := tr.fresh()
		return []Term{NewComp("phrase", t, s0, s)}, s, nil
	case Atom:
		switch t.Name {
		case "!":
			return []Term{t}, s0, nil
		case EmptyList.Name:
			return nil, s0, nil
		}
		s := tr.fresh()
		return []Term{NewComp(t.Name, s0, s)}, s, nil
	case *List:
		if t.Tail != EmptyList {
			return nil, s0, errors.New("grammar rule: terminal list %v is not a proper list", t)
		}
		s := tr.fresh()
		return []Term{NewComp("=", s0, NewIncompleteList(t.Terms, s))}, s, nil
	case *Comp:
		return tr.seqComp(t, s0)
	}
	return nil, s0, errors.New("grammar rule: %v is not callable", term)
}

func (tr *dcgTranslator) seqComp(c *Comp, s0 Var) ([]Term, Var, error) {
	switch {
	case c.Functor == "," && len(c.Args) == 2:
		g1, mid, err := tr.seq(c.Args[0], s0)
		if err != nil {
			return nil, s0, err
		}
		g2, s, err := tr.seq(c.Args[1], mid)
		if err != nil {
			return nil, s0, err
		}
		return append(g1, g2...), s, nil
	case c.Functor == "{}" && len(c.Args) == 1:
		return FlattenConj(c.Args[0]), s0, nil
	case c.Functor == ";" && len(c.Args) == 2:
		s := tr.fresh()
		left, err := tr.branch(c.Args[0], s0, s)
		if err != nil {
			return nil, s0, err
		}
		right, err := tr.branch(c.Args[1], s0, s)
		if err != nil {
			return nil, s0, err
		}
		return []Term{NewComp(";", left, right)}, s, nil
	case c.Functor == "->" && len(c.Args) == 2:
		s := tr.fresh()
		goal, err := tr.branch(c, s0, s)
		if err != nil {
			return nil, s0, err
		}
		return []Term{goal}, s, nil
	case c.Functor == "\\+" && len(c.Args) == 1:
		goals, _, err := tr.seq(c.Args[0], s0)
		if err != nil {
			return nil, s0, err
		}
		return []Term{NewComp("\\+", conj(goals))}, s0, nil
	case c.Functor == ListFunctor && len(c.Args) == 2:
		// A list built from '.'/2 comps instead of list syntax.
		return tr.seq(NewIncompleteList([]Term{c.Args[0]}, c.Args[1]), s0)
	}
	s := tr.fresh()
	return []Term{dcgExtend(c, s0, s)}, s, nil
}

// branch translates a body that must end at state s.
func (tr *dcgTranslator) branch(term Term, s0, s Var) (Term, error) {
	if c, ok := term.(*Comp); ok && c.Functor == "->" && len(c.Args) == 2 {
		cond, mid, err := tr.seq(c.Args[0], s0)
		if err != nil {
			return nil, err
		}
		then, err := tr.branch(c.Args[1], mid, s)
		if err != nil {
			return nil, err
		}
		return NewComp("->", conj(cond), then), nil
	}
	goals, end, err := tr.seq(term, s0)
	if err != nil {
		return nil, err
	}
	return conj(append(goals, NewComp("=", end, s))), nil
}

// conj joins goals with ','/2.
func conj(goals []Term) Term {
	if len(goals) == 0 {
		return Atom{"true"}
	}
	term := goals[len(goals)-1]
	for i := len(goals) - 2; i >= 0; i-- {
		term = NewComp(",", goals[i], term)
	}
	return term
}
