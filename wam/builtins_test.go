package wam_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/prologkit/warren/dsl"
	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/logic"
	"github.com/prologkit/warren/test_helpers"
	"github.com/prologkit/warren/wam"
)

func TestBuiltins(t *testing.T) {
	yes := []string{""}
	tests := []struct {
		name  string
		goals []logic.Term
		want  []string
	}{
		// Unification
		{"unify", dsl.Terms(comp("=", var_("X"), comp("f", var_("Y"))), comp("=", var_("Y"), atom("a"))),
			[]string{"X = f(a), Y = a"}},
		{"not unifiable", dsl.Terms(comp("\\=", atom("a"), atom("b"))), yes},
		{"unifiable", dsl.Terms(comp("\\=", var_("X"), atom("a"))), nil},
		{"not unifiable keeps vars free", dsl.Terms(
			comp("\\+", comp("\\=", var_("X"), atom("a"))),
			comp("=", var_("X"), atom("b"))),
			[]string{"X = b"}},
		// Type checks
		{"var", dsl.Terms(comp("var", var_("X")), comp("=", var_("X"), int_(1))), []string{"X = 1"}},
		{"nonvar", dsl.Terms(comp("nonvar", var_("_"))), nil},
		{"atom", dsl.Terms(comp("atom", atom("foo"))), yes},
		{"atom of int", dsl.Terms(comp("atom", int_(1))), nil},
		{"number", dsl.Terms(comp("number", float_(1.5))), yes},
		{"integer of float", dsl.Terms(comp("integer", float_(1.0))), nil},
		{"float", dsl.Terms(comp("float", float_(1.0))), yes},
		{"atomic", dsl.Terms(comp("atomic", comp("f", atom("x")))), nil},
		{"compound", dsl.Terms(comp("compound", comp("f", atom("x")))), yes},
		{"callable", dsl.Terms(comp("callable", atom("foo"))), yes},
		{"partial list", dsl.Terms(comp("is_list", ilist(atom("a"), var_("_")))), nil},
		{"list", dsl.Terms(comp("is_list", list(atom("a"), atom("b")))), yes},
		{"empty list", dsl.Terms(comp("is_list", atom("[]"))), yes},
		// Term comparison
		{"number before atom", dsl.Terms(comp("@<", int_(1), atom("a"))), yes},
		{"var before number", dsl.Terms(comp("@<", var_("_"), int_(1))), yes},
		{"float before equal int", dsl.Terms(comp("@<", float_(1.0), int_(1))), yes},
		{"compare names", dsl.Terms(comp("@<", comp("f", atom("b")), comp("g", atom("a")))), yes},
		{"compare arity first", dsl.Terms(comp("@>", comp("f", atom("a"), atom("b")), comp("g", atom("a")))), yes},
		{"compare args", dsl.Terms(comp("@=<", comp("f", atom("a"), atom("b")), comp("f", atom("a"), atom("c")))), yes},
		{"identical", dsl.Terms(comp("==", comp("f", atom("a")), comp("f", atom("a")))), yes},
		{"distinct vars", dsl.Terms(comp("==", var_("X"), var_("Y"))), nil},
		{"not identical", dsl.Terms(comp("\\==", atom("a"), atom("b"))), yes},
		{"compare/3", dsl.Terms(comp("compare", var_("O"), int_(1), int_(2))), []string{"O = <"}},
		{"compare/3 equal", dsl.Terms(comp("compare", var_("O"), atom("a"), atom("a"))), []string{"O = ="}},
		// Arithmetic
		{"exact division", dsl.Terms(comp("is", var_("X"), comp("/", int_(6), int_(3)))), []string{"X = 2"}},
		{"inexact division", dsl.Terms(comp("is", var_("X"), comp("/", int_(7), int_(2)))), []string{"X = 3.5"}},
		{"int division", dsl.Terms(comp("is", var_("X"), comp("//", int_(7), int_(2)))), []string{"X = 3"}},
		{"mod", dsl.Terms(comp("is", var_("X"), comp("mod", int_(-7), int_(3)))), []string{"X = 2"}},
		{"rem", dsl.Terms(comp("is", var_("X"), comp("rem", int_(-7), int_(3)))), []string{"X = -1"}},
		{"power", dsl.Terms(comp("is", var_("X"), comp("**", int_(2), int_(10)))), []string{"X = 1024"}},
		{"power of odd exponent", dsl.Terms(comp("is", var_("X"), comp("^", int_(-3), int_(5)))), []string{"X = -243"}},
		{"power of one", dsl.Terms(comp("is", var_("X"), comp("**", int_(1), int_(4611686018427387904)))), []string{"X = 1"}},
		{"power of minus one", dsl.Terms(comp("is", var_("X"), comp("**", int_(-1), int_(4611686018427387905)))), []string{"X = -1"}},
		{"power of zero", dsl.Terms(comp("is", var_("X"), comp("**", int_(0), int_(0)))), []string{"X = 1"}},
		{"shift left", dsl.Terms(comp("is", var_("X"), comp("<<", int_(3), int_(4)))), []string{"X = 48"}},
		{"shift left negative", dsl.Terms(comp("is", var_("X"), comp("<<", int_(-1), int_(63)))), []string{"X = -9223372036854775808"}},
		{"shift right", dsl.Terms(comp("is", var_("X"), comp(">>", int_(-16), int_(2)))), []string{"X = -4"}},
		{"shift right past sign", dsl.Terms(comp("is", var_("X"), comp(">>", int_(-5), int_(100)))), []string{"X = -1"}},
		{"mixed max", dsl.Terms(comp("is", var_("X"), comp("max", int_(1), float_(2.0)))), []string{"X = 2.0"}},
		{"abs", dsl.Terms(comp("is", var_("X"), comp("abs", int_(-3)))), []string{"X = 3"}},
		{"truncate", dsl.Terms(comp("is", var_("X"), comp("truncate", float_(3.7)))), []string{"X = 3"}},
		{"sqrt", dsl.Terms(comp("is", var_("X"), comp("sqrt", int_(4)))), []string{"X = 2.0"}},
		{"nested", dsl.Terms(comp("is", var_("X"), comp("*", comp("-", int_(5), int_(2)), comp("+", int_(1), int_(1))))),
			[]string{"X = 6"}},
		{"is with bound lhs", dsl.Terms(comp("is", int_(4), comp("+", int_(2), int_(2)))), yes},
		{"arith equal", dsl.Terms(comp("=:=", int_(1), float_(1.0))), yes},
		{"arith not equal", dsl.Terms(comp("=\\=", int_(1), int_(2))), yes},
		{"greater", dsl.Terms(comp(">", int_(2), int_(3))), nil},
		{"less or equal", dsl.Terms(comp("=<", comp("+", int_(1), int_(1)), int_(2))), yes},
		// Term construction
		{"functor of struct", dsl.Terms(comp("functor", comp("foo", atom("a"), atom("b")), var_("N"), var_("A"))),
			[]string{"N = foo, A = 2"}},
		{"functor of atomic", dsl.Terms(comp("functor", int_(3), var_("N"), var_("A"))),
			[]string{"N = 3, A = 0"}},
		{"functor builds struct", dsl.Terms(
			comp("functor", var_("T"), atom("foo"), int_(2)),
			comp("=", var_("T"), comp("foo", atom("a"), atom("b")))),
			[]string{"T = foo(a, b)"}},
		{"arg", dsl.Terms(comp("arg", int_(2), comp("foo", atom("a"), atom("b")), var_("X"))), []string{"X = b"}},
		{"arg out of range", dsl.Terms(comp("arg", int_(3), comp("foo", atom("a"), atom("b")), var_("X"))), nil},
		{"univ decompose", dsl.Terms(comp("=..", comp("foo", atom("bar"), atom("baz")), var_("L"))),
			[]string{"L = [foo, bar, baz]"}},
		{"univ compose", dsl.Terms(comp("=..", var_("T"), list(atom("foo"), atom("bar")))),
			[]string{"T = foo(bar)"}},
		{"univ atomic", dsl.Terms(comp("=..", var_("T"), list(int_(7)))), []string{"T = 7"}},
		// Atoms
		{"atom_length", dsl.Terms(comp("atom_length", atom("hello"), var_("N"))), []string{"N = 5"}},
		{"atom_codes", dsl.Terms(comp("atom_codes", atom("ab"), var_("L"))), []string{"L = [97, 98]"}},
		{"atom_codes reverse", dsl.Terms(comp("atom_codes", var_("A"), list(int_(104), int_(105)))),
			[]string{"A = hi"}},
		{"char_code", dsl.Terms(comp("char_code", atom("a"), var_("C"))), []string{"C = 97"}},
		{"char_code reverse", dsl.Terms(comp("char_code", var_("C"), int_(98))), []string{"C = b"}},
		// Control
		{"true", dsl.Terms(atom("true")), yes},
		{"fail", dsl.Terms(atom("fail")), nil},
		{"disjunction", dsl.Terms(comp(";", comp("=", var_("X"), int_(1)), comp("=", var_("X"), int_(2)))),
			[]string{"X = 1", "X = 2"}},
		{"if-then-else", dsl.Terms(comp(";",
			comp("->", comp(">", int_(1), int_(2)), comp("=", var_("X"), atom("then"))),
			comp("=", var_("X"), atom("else")))),
			[]string{"X = else"}},
		{"if-then", dsl.Terms(comp("->", comp("=", var_("X"), int_(1)), comp("=", var_("Y"), int_(2)))),
			[]string{"X = 1, Y = 2"}},
		{"negation", dsl.Terms(comp("\\+", comp("=", atom("a"), atom("b")))), yes},
		{"call with extra args", dsl.Terms(comp("call", atom("="), var_("X"), int_(1))), []string{"X = 1"}},
		{"call conjunction", dsl.Terms(comp("call", comp(",", comp("=", var_("X"), int_(1)), comp("=", var_("Y"), int_(2))))),
			[]string{"X = 1, Y = 2"}},
		{"call control", dsl.Terms(comp("call", atom("!")), comp("call", atom("true"))), yes},
		{"call fail", dsl.Terms(comp("call", atom("fail"))), nil},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := newMachine(t)
			got, err := solve(t, m, test.goals...)
			require.NoError(t, err)
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Errorf("%v: (-want, +got)\n%s", test.goals, diff)
			}
		})
	}
}

func TestBuiltins_CutIsLocalToCall(t *testing.T) {
	m := newMachine(t, member...)
	got, err := solve(t, m, comp(";",
		comp("call", comp(",", comp("member", var_("X"), list(int_(1), int_(2), int_(3))), atom("!"))),
		comp("=", var_("X"), int_(4))))
	require.NoError(t, err)
	want := []string{"X = 1", "X = 4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
}

func TestBuiltins_CopyTerm(t *testing.T) {
	m := newMachine(t)
	sols, err := m.Query(context.Background(),
		comp("copy_term", comp("f", var_("X"), var_("Y"), var_("X")), comp("f", atom("a"), atom("b"), var_("Z"))))
	require.NoError(t, err)
	require.True(t, sols.Next())
	sol := sols.Solution().Map()
	if diff := cmp.Diff(logic.Term(atom("a")), sol["Z"]); diff != "" {
		t.Errorf("Z: (-want, +got)\n%s", diff)
	}
	for _, name := range []string{"X", "Y"} {
		if _, ok := sol[name].(logic.Var); !ok {
			t.Errorf("%s = %v, want it to stay free", name, sol[name])
		}
	}
}

func TestBuiltins_Assert(t *testing.T) {
	m := newMachine(t)
	_, err := solve(t, m,
		comp("assertz", comp("fact", int_(1))),
		comp("assertz", comp("fact", int_(2))),
		comp("asserta", comp("fact", int_(0))),
		comp("assertz", comp(":-", comp("double", var_("X"), var_("Y")), comp("is", var_("Y"), comp("*", var_("X"), int_(2))))))
	require.NoError(t, err)
	got, err := solve(t, m, comp("fact", var_("X")), comp("double", var_("X"), var_("Y")))
	require.NoError(t, err)
	want := []string{"X = 0, Y = 0", "X = 1, Y = 2", "X = 2, Y = 4"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
}

func TestBuiltins_LogicalUpdateView(t *testing.T) {
	m := newMachine(t, clause(comp("fact", int_(1))))
	got, err := solve(t, m,
		comp("fact", var_("X")),
		comp("is", var_("Y"), comp("+", var_("X"), int_(1))),
		comp("assertz", comp("fact", var_("Y"))))
	require.NoError(t, err)
	// The running query doesn't see the asserted clause.
	if diff := cmp.Diff([]string{"X = 1, Y = 2"}, got); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
	got, err = solve(t, m, comp("fact", var_("X")))
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"X = 1", "X = 2"}, got); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
}

func TestBuiltins_Declare(t *testing.T) {
	m := newMachine(t)
	require.NoError(t, m.Program().Declare("counter", 1))
	got, err := solve(t, m, comp("counter", var_("X")))
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestBuiltins_Write(t *testing.T) {
	m := newMachine(t)
	var buf bytes.Buffer
	m.Out = &buf
	_, err := solve(t, m,
		comp("write", atom("foo")),
		comp("write", atom(" ")),
		comp("write", comp("f", int_(1), atom("A b"), list(int_(2)))),
		atom("nl"))
	require.NoError(t, err)
	if diff := cmp.Diff("foo f(1, 'A b', [2])\n", buf.String()); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
}

func TestBuiltins_Register(t *testing.T) {
	p := newProgram(t)
	in := p.Interner
	err := p.Register("succ_or_zero", 2, wam.BuiltinFunc(func(m *wam.Machine, args []wam.Cell) (bool, error) {
		x := m.Deref(args[0])
		if x.Tag != wam.IntTag {
			return false, nil
		}
		return m.Unify(args[1], wam.Int(x.Val+1)), nil
	}))
	require.NoError(t, err)
	require.NoError(t, p.AddClauses(
		clause(comp("next", var_("X"), var_("Y")), comp("succ_or_zero", var_("X"), var_("Y")))))
	m := wam.NewMachine(p)
	got, err := solve(t, m, comp("next", int_(41), var_("Y")))
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"Y = 42"}, got); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
	_, ok := in.LookupFunctor("succ_or_zero", 2)
	require.True(t, ok)
}

func TestBuiltins_Terms(t *testing.T) {
	m := newMachine(t)
	sols, err := m.Query(context.Background(), comp("=..", var_("T"), list(atom("point"), int_(1), float_(2.5))))
	require.NoError(t, err)
	require.True(t, sols.Next())
	want := logic.Term(comp("point", int_(1), float_(2.5)))
	if diff := cmp.Diff(want, sols.Solution().Map()["T"], test_helpers.IgnoreUnexported); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
}

func TestBuiltins_Faults(t *testing.T) {
	tests := []struct {
		name     string
		goals    []logic.Term
		sentinel error
		kind     wam.ErrorKind
	}{
		{"unbound expression", dsl.Terms(comp("is", var_("X"), comp("+", var_("Y"), int_(1)))),
			wam.ErrArithmetic, wam.InstantiationError},
		{"not evaluable", dsl.Terms(comp("is", var_("X"), comp("+", atom("foo"), int_(1)))),
			wam.ErrArithmetic, wam.TypeError},
		{"zero divisor", dsl.Terms(comp("is", var_("X"), comp("/", int_(1), int_(0)))),
			wam.ErrArithmetic, wam.EvaluationError},
		{"int overflow", dsl.Terms(comp("is", var_("X"), comp("+", int_(9223372036854775807), int_(1)))),
			wam.ErrArithmetic, wam.EvaluationError},
		{"power overflow", dsl.Terms(comp("is", var_("X"), comp("**", int_(2), int_(64)))),
			wam.ErrArithmetic, wam.EvaluationError},
		{"huge power overflow", dsl.Terms(comp("is", var_("X"), comp("**", int_(2), int_(4611686018427387904)))),
			wam.ErrArithmetic, wam.EvaluationError},
		{"shift left past width", dsl.Terms(comp("is", var_("X"), comp("<<", int_(1), int_(64)))),
			wam.ErrArithmetic, wam.EvaluationError},
		{"shift left overflow", dsl.Terms(comp("is", var_("X"), comp("<<", int_(3), int_(62)))),
			wam.ErrArithmetic, wam.EvaluationError},
		{"negative shift", dsl.Terms(comp("is", var_("X"), comp(">>", int_(1), int_(-1)))),
			wam.ErrArithmetic, wam.EvaluationError},
		{"ints only", dsl.Terms(comp("is", var_("X"), comp("mod", float_(1.5), int_(1)))),
			wam.ErrArithmetic, wam.TypeError},
		{"unbound comparison", dsl.Terms(comp("<", var_("X"), int_(1))),
			wam.ErrArithmetic, wam.InstantiationError},
		{"call unbound", dsl.Terms(comp("call", var_("G"))),
			wam.ErrBuiltin, wam.InstantiationError},
		{"call number", dsl.Terms(comp("call", int_(1))),
			wam.ErrBuiltin, wam.TypeError},
		{"functor unbound", dsl.Terms(comp("functor", var_("T"), var_("N"), int_(2))),
			wam.ErrBuiltin, wam.InstantiationError},
		{"arg not integer", dsl.Terms(comp("arg", atom("a"), comp("f", atom("b")), var_("X"))),
			wam.ErrBuiltin, wam.TypeError},
		{"atom_length unbound", dsl.Terms(comp("atom_length", var_("A"), var_("N"))),
			wam.ErrBuiltin, wam.InstantiationError},
		{"atom_length negative", dsl.Terms(comp("atom_length", atom("abc"), int_(-1))),
			wam.ErrBuiltin, wam.DomainError},
		{"univ empty list", dsl.Terms(comp("=..", var_("T"), atom("[]"))),
			wam.ErrBuiltin, wam.DomainError},
		{"assert non-callable body", dsl.Terms(comp("assertz", comp(":-", atom("foo"), int_(1)))),
			wam.ErrBuiltin, wam.TypeError},
		{"assert builtin", dsl.Terms(comp("assertz", comp("atom", atom("x")))),
			wam.ErrBuiltin, wam.PermissionError},
		{"assert control", dsl.Terms(comp("asserta", comp(";", atom("a"), atom("b")))),
			wam.ErrBuiltin, wam.PermissionError},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := newMachine(t)
			got, err := solve(t, m, test.goals...)
			require.Empty(t, got)
			require.ErrorIs(t, err, test.sentinel)
			require.NotErrorIs(t, err, wam.ErrNoMoreSolutions)
			var kind wam.ErrorKind
			var arithErr *wam.ArithmeticError
			var builtinErr *wam.BuiltinError
			switch {
			case errors.As(err, &arithErr):
				kind = arithErr.Kind
			case errors.As(err, &builtinErr):
				kind = builtinErr.Kind
			default:
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			require.Equal(t, test.kind, kind, "%v", err)
			require.Equal(t, wam.Faulted, m.State)
		})
	}
}

func TestBuiltins_FaultMessages(t *testing.T) {
	tests := []struct {
		goal logic.Term
		want string
	}{
		{comp("is", var_("X"), comp("foo", int_(1))),
			"type error: expected evaluable, got foo/1 in is/2"},
		{comp("is", var_("X"), comp("/", int_(1), int_(0))),
			"evaluation error: zero_divisor in is/2"},
		{comp("call", var_("G")),
			"instantiation error in call/1"},
	}
	for _, test := range tests {
		m := newMachine(t)
		_, err := solve(t, m, test.goal)
		require.Error(t, err)
		if diff := cmp.Diff(test.want, err.Error()); diff != "" {
			t.Errorf("%v: (-want, +got)\n%s", test.goal, diff)
		}
	}
}
