package wam

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/prologkit/warren/dsl"
	"github.com/prologkit/warren/intern"
	"github.com/prologkit/warren/logic"
	"github.com/prologkit/warren/test_helpers"
)

var (
	int_  = dsl.Int
	ilist = dsl.IList
)

func TestCompile(t *testing.T) {
	p := NewProgram(intern.New())
	in := p.Interner
	f := func(name string, arity int) intern.FunctorID { return in.Functor(name, arity) }
	type (
		reg   = RegAddr
		stack = StackAddr
	)
	tests := []struct {
		clause *logic.Clause
		want   []Instruction
	}{
		{
			// eq(X, X).
			dsl.Clause(comp("eq", var_("X"), var_("X"))),
			[]Instruction{
				GetVariable{reg(2), 0},
				GetValue{reg(2), 1},
				Proceed{},
			},
		},
		{
			// nat(s(X)) :- nat(X).
			dsl.Clause(comp("nat", comp("s", var_("X"))),
				comp("nat", var_("X"))),
			[]Instruction{
				GetStruct{f("s", 1), 1, 0},
				UnifyVariable{reg(1)},
				PutValue{reg(1), 0},
				Execute{f("nat", 1)},
			},
		},
		{
			// f(X, Y) :- g(X, Z), h(Y, Z).
			dsl.Clause(comp("f", var_("X"), var_("Y")),
				comp("g", var_("X"), var_("Z")),
				comp("h", var_("Y"), var_("Z"))),
			[]Instruction{
				Allocate{2},
				GetVariable{reg(2), 0},
				GetVariable{stack(0), 1},
				PutValue{reg(2), 0},
				PutVariable{stack(1), 1},
				Call{f("g", 2)},
				PutValue{stack(0), 0},
				PutValue{stack(1), 1},
				Deallocate{},
				Execute{f("h", 2)},
			},
		},
		{
			// mul(0, _, 0).
			dsl.Clause(comp("mul", int_(0), var_("_"), int_(0))),
			[]Instruction{
				GetConstant{Int(0), 0},
				GetConstant{Int(0), 2},
				Proceed{},
			},
		},
		{
			// q(X) :- p(X), !.
			dsl.Clause(comp("q", var_("X")),
				comp("p", var_("X")),
				atom("!")),
			[]Instruction{
				Allocate{0},
				GetVariable{reg(1), 0},
				PutValue{reg(1), 0},
				Call{f("p", 1)},
				Cut{},
				Deallocate{},
				Proceed{},
			},
		},
		{
			// a :- !.
			dsl.Clause(atom("a"), atom("!")),
			[]Instruction{
				NeckCut{},
				Proceed{},
			},
		},
		{
			// pos(X) :- X > 0.
			dsl.Clause(comp("pos", var_("X")),
				comp(">", var_("X"), int_(0))),
			[]Instruction{
				GetVariable{reg(2), 0},
				PutValue{reg(2), 0},
				PutConstant{Int(0), 1},
				CallBuiltin{f(">", 2), 2},
				Proceed{},
			},
		},
		{
			// r :- t(f(A, g(A))).
			dsl.Clause(atom("r"),
				comp("t", comp("f", var_("A"), comp("g", var_("A"))))),
			[]Instruction{
				PutStruct{f("g", 1), 1, 2},
				UnifyVariable{reg(1)},
				PutStruct{f("f", 2), 2, 0},
				UnifyValue{reg(1)},
				UnifyValue{reg(2)},
				Execute{f("t", 1)},
			},
		},
		{
			// first([H|_], H).
			dsl.Clause(comp("first", ilist(var_("H"), var_("_")), var_("H"))),
			[]Instruction{
				GetStruct{f(".", 2), 2, 0},
				UnifyVariable{reg(2)},
				UnifyVoid{1},
				GetValue{reg(2), 1},
				Proceed{},
			},
		},
		{
			// p(X) :- call(X).
			dsl.Clause(comp("p", var_("X")),
				comp("call", var_("X"))),
			[]Instruction{
				GetVariable{reg(1), 0},
				PutValue{reg(1), 0},
				ExecuteMeta{1},
			},
		},
		{
			// never :- fail.
			dsl.Clause(atom("never"), atom("fail")),
			[]Instruction{
				Fail{},
				Proceed{},
			},
		},
	}
	for _, test := range tests {
		clause, err := test.clause.Normalize()
		require.NoError(t, err)
		got := p.compile(clause, permanentVars(clause), false)
		if diff := cmp.Diff(test.want, got.code); diff != "" {
			t.Errorf("%v: (-want, +got)\n%s", test.clause, diff)
		}
	}
}

func TestCompile_Query(t *testing.T) {
	p := NewProgram(intern.New())
	require.NoError(t, p.AddClauses(dsl.Clause(comp("p", var_("X"), atom("a")))))
	img := p.Snapshot()
	q, err := p.compileQuery(img, []logic.Term{
		comp("p", var_("X"), var_("Y")),
		comp("p", var_("Y"), var_("_")),
	})
	require.NoError(t, err)
	want := []Instruction{
		Allocate{2},
		PutVariable{StackAddr(0), 0},
		PutVariable{StackAddr(1), 1},
		Call{p.Interner.Functor("p", 2)},
		PutValue{StackAddr(1), 0},
		PutVariable{RegAddr(2), 1},
		Call{p.Interner.Functor("p", 2)},
		Halt{},
	}
	if diff := cmp.Diff(want, q.code); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
	var names []string
	for _, id := range q.vars {
		name, err := p.Interner.ResolveVar(id)
		require.NoError(t, err)
		names = append(names, name)
	}
	if diff := cmp.Diff([]string{"X", "Y"}, names); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
}

func TestFormatInstruction(t *testing.T) {
	in := intern.New()
	a, f := in.Atom("a"), in.Functor("f", 2)
	tests := []struct {
		instr Instruction
		want  string
	}{
		{GetConstant{Atom(a), 1}, "get_constant a, X1"},
		{PutConstant{Float(1), 0}, "put_constant 1.0, X0"},
		{GetStruct{f, 2, 0}, "get_struct f/2, X0"},
		{UnifyValue{StackAddr(3)}, "unify_value Y3"},
		{Call{f}, "call f/2"},
		{CallBuiltin{f, 2}, "builtin f/2"},
		{SwitchOnConstant{map[Cell]int{Int(2): 7, Atom(a): 5}, 0}, "switch_on_constant {2: 7, a: 5}, 0"},
		{SwitchOnTerm{1, 2, 3}, "switch_on_term 1, 2, 3"},
	}
	for _, test := range tests {
		if got := formatInstruction(in, test.instr); got != test.want {
			t.Errorf("formatInstruction(%#v) = %q, want %q", test.instr, got, test.want)
		}
	}
	if got, want := (GetStruct{f, 2, 0}).String(), "get_struct #"; got[:len(want)] != want {
		t.Errorf("String() without interner = %q, want prefix %q", got, want)
	}
}

func TestExpandCuts(t *testing.T) {
	tests := []struct {
		clause, want *logic.Clause
	}{
		{
			// p :- a, !.
			dsl.Clause(atom("p"), atom("a"), atom("!")),
			dsl.Clause(atom("p"), atom("a"), atom("!")),
		},
		{
			// p(X) :- (q(X), ! ; X = 0).
			dsl.Clause(comp("p", var_("X")),
				comp(";", comp(",", comp("q", var_("X")), atom("!")), comp("=", var_("X"), int_(0)))),
			dsl.Clause(comp("p", var_("X")),
				comp("$get_level", var_("$B")),
				comp(";", comp(",", comp("q", var_("X")), comp("$cut", var_("$B"))), comp("=", var_("X"), int_(0)))),
		},
		{
			// p :- (!, a -> b, ! ; \+ !, call(!)).
			dsl.Clause(atom("p"),
				comp(";",
					comp("->", comp(",", atom("!"), atom("a")), comp(",", atom("b"), atom("!"))),
					comp(",", comp("\\+", atom("!")), comp("call", atom("!"))))),
			dsl.Clause(atom("p"),
				comp("$get_level", var_("$B")),
				comp(";",
					comp("->", comp(",", atom("!"), atom("a")), comp(",", atom("b"), comp("$cut", var_("$B")))),
					comp(",", comp("\\+", atom("!")), comp("call", atom("!"))))),
		},
	}
	for _, test := range tests {
		got := expandCuts(test.clause)
		if diff := cmp.Diff(test.want, got, test_helpers.IgnoreUnexported); diff != "" {
			t.Errorf("%v: (-want, +got)\n%s", test.clause, diff)
		}
	}
}

// Meta-calls run without compiling code, so deterministic loops over them
// keep the code area fixed.
func TestCallMeta_EmitsNoCode(t *testing.T) {
	p := NewProgram(intern.New())
	require.NoError(t, p.AddClauses(
		// loop(0) :- !.
		// loop(N) :- call((true, _ = 1)), N1 is N-1, loop(N1).
		dsl.Clause(comp("loop", int_(0)), atom("!")),
		dsl.Clause(comp("loop", var_("N")),
			comp("call", comp(",", atom("true"), comp("=", var_("_"), int_(1)))),
			comp("is", var_("N1"), comp("-", var_("N"), int_(1))),
			comp("loop", var_("N1")))))
	goal := comp("loop", int_(2000))
	q, err := p.compileQuery(p.Snapshot(), []logic.Term{goal})
	require.NoError(t, err)
	m := NewMachine(p)
	_, err = m.RunQuery(goal)
	require.NoError(t, err)
	require.Len(t, m.query, len(q.code))
}
