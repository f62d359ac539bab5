package parser_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/prologkit/warren/dsl"
	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/logic"
	"github.com/prologkit/warren/parser"
	"github.com/prologkit/warren/test_helpers"
)

var (
	atom   = dsl.Atom
	int_   = dsl.Int
	float_ = dsl.Float
	var_   = dsl.Var
	comp   = dsl.Comp
	list   = dsl.List
	ilist  = dsl.IList
	clause = dsl.Clause
)

func TestParseTerm(t *testing.T) {
	tests := []struct {
		text string
		want logic.Term
	}{
		{`a`, atom("a")},
		{`  a`, atom("a")},
		{` a  `, atom("a")},
		{`a.`, atom("a")},
		{`word_123`, atom("word_123")},
		{`'word 123'`, atom("word 123")},
		{`'word\n123'`, atom("word\n123")},
		{`'word\'123'`, atom("word'123")},
		{`'it''s'`, atom("it's")},
		{`'\x41\'`, atom("A")},
		{`''`, atom("")},
		{`[]`, atom("[]")},
		{`'[]'`, atom("[]")},
		{`{}`, atom("{}")},
		{`!`, atom("!")},
		{`;`, atom(";")},
		{`=..`, atom("=..")},
		{`-`, atom("-")},
		{`123`, int_(123)},
		{`-123`, int_(-123)},
		{`1_000_000`, int_(1000000)},
		{`0x1F`, int_(31)},
		{`0o17`, int_(15)},
		{`0b101`, int_(5)},
		{`0'a`, int_(97)},
		{`0' `, int_(32)},
		{`0'\n`, int_(10)},
		{`1.5`, float_(1.5)},
		{`-0.25`, float_(-0.25)},
		{`1.0e10`, float_(1e10)},
		{`1.5E-3`, float_(1.5e-3)},
		{`X`, var_("X")},
		{`X_1`, var_("X_1")},
		{`_a_1__`, var_("_a_1__")},
		{`_`, var_("_")},
		{`f()`, comp("f")},
		{`f(1)`, comp("f", int_(1))},
		{`f( 1 , )`, comp("f", int_(1))},
		{`edge(1, 2)`, comp("edge", int_(1), int_(2))},
		{`f(g(X), [])`, comp("f", comp("g", var_("X")), atom("[]"))},
		{`'hello world'(X)`, comp("hello world", var_("X"))},
		{`[](a)`, comp("[]", atom("a"))},
		{`{a, b}`, comp("{}", comp(",", atom("a"), atom("b")))},
		{`[1]`, list(int_(1))},
		{`[1, 2,]`, list(int_(1), int_(2))},
		{`[1|X]`, ilist(int_(1), var_("X"))},
		{`[1, 2 | a]`, ilist(int_(1), int_(2), atom("a"))},
		{`[a|[b, c]]`, list(atom("a"), atom("b"), atom("c"))},
		{`""`, atom("[]")},
		{`"abc"`, list(atom("a"), atom("b"), atom("c"))},
		{`"ab\"cd"`, list(atom("a"), atom("b"), atom(`"`), atom("c"), atom("d"))},
		{`"a\
b"`, list(atom("a"), atom("b"))},
		// Comments
		{"a % comment", atom("a")},
		{"/* comment */ a", atom("a")},
		{"f(/* x */ 1)", comp("f", int_(1))},
		// Operators
		{`1 + 2`, comp("+", int_(1), int_(2))},
		{`1+2*3`, comp("+", int_(1), comp("*", int_(2), int_(3)))},
		{`(1+2)*3`, comp("*", comp("+", int_(1), int_(2)), int_(3))},
		{`1 - 2 - 3`, comp("-", comp("-", int_(1), int_(2)), int_(3))},
		{`2 ** 3`, comp("**", int_(2), int_(3))},
		{`2 ^ 3 ^ 4`, comp("^", int_(2), comp("^", int_(3), int_(4)))},
		{`X is Y mod 2`, comp("is", var_("X"), comp("mod", var_("Y"), int_(2)))},
		{`X = f(Y)`, comp("=", var_("X"), comp("f", var_("Y")))},
		{`X \= Y`, comp("\\=", var_("X"), var_("Y"))},
		{`X =.. L`, comp("=..", var_("X"), var_("L"))},
		{`X @=< Y`, comp("@=<", var_("X"), var_("Y"))},
		{`X =:= Y`, comp("=:=", var_("X"), var_("Y"))},
		{`a, b, c`, comp(",", atom("a"), comp(",", atom("b"), atom("c")))},
		{`a ; b -> c`, comp(";", atom("a"), comp("->", atom("b"), atom("c")))},
		{`(a -> b ; c)`, comp(";", comp("->", atom("a"), atom("b")), atom("c"))},
		{`a | b`, comp(";", atom("a"), atom("b"))},
		{`\+ a, b`, comp(",", comp("\\+", atom("a")), atom("b"))},
		{`\+ (a, b)`, comp("\\+", comp(",", atom("a"), atom("b")))},
		{`\+(a, b)`, comp("\\+", atom("a"), atom("b"))},
		{`- 1`, comp("-", int_(1))},
		{`-(1)`, comp("-", int_(1))},
		{`- X`, comp("-", var_("X"))},
		{`-(-(1))`, comp("-", comp("-", int_(1)))},
		{`1 - -1`, comp("-", int_(1), int_(-1))},
		{`a- 1`, comp("-", atom("a"), int_(1))},
		{`f(-, +)`, comp("f", atom("-"), atom("+"))},
		{`[-]`, list(atom("-"))},
		{`- = +`, comp("=", atom("-"), atom("+"))},
		{`'-'(1, 2)`, comp("-", int_(1), int_(2))},
		{`a '+' b`, nil},
		{`p :- q, r`, comp(":-", atom("p"), comp(",", atom("q"), atom("r")))},
		{`:- dynamic foo/1, bar/2`,
			comp(":-", comp("dynamic", comp(",",
				comp("/", atom("foo"), int_(1)),
				comp("/", atom("bar"), int_(2)))))},
		{`[a :- b]`, nil},
		{`f(a :- b)`, nil},
		{`f((a :- b))`, comp("f", comp(":-", atom("a"), atom("b")))},
	}
	for _, test := range tests {
		got, err := parser.ParseTerm(test.text)
		if test.want == nil {
			if err == nil {
				t.Errorf("%q: expected error, got %v", test.text, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: got err: %v", test.text, err)
			continue
		}
		if diff := cmp.Diff(test.want, got, test_helpers.IgnoreUnexported); diff != "" {
			t.Errorf("%q: (-want, +got)\n%s", test.text, diff)
		}
	}
}

func TestParseTerm_Errors(t *testing.T) {
	tests := []struct {
		text         string
		line, column int
	}{
		{`f(a`, 1, 4},
		{`f(a,, b)`, 1, 5},
		{`[1, 2`, 1, 6},
		{"a\n  b", 2, 3},
		{`'abc`, 1, 1},
		{`"abc`, 1, 1},
		{`/* abc`, 1, 1},
		{"f(X) `", 1, 6},
		{`a = b = c`, 1, 7},
		{`99999999999999999999`, 1, 1},
		{`1.0e999`, 1, 1},
		{`'\q'`, 1, 2},
		{"a.\nb", 2, 1},
	}
	for _, test := range tests {
		_, err := parser.ParseTerm(test.text)
		var syntaxErr *parser.SyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Errorf("%q: want *SyntaxError, got %v", test.text, err)
			continue
		}
		if syntaxErr.Line != test.line || syntaxErr.Column != test.column {
			t.Errorf("%q: got error at %d:%d, want %d:%d (%v)",
				test.text, syntaxErr.Line, syntaxErr.Column, test.line, test.column, err)
		}
	}
}

func TestParseClauses(t *testing.T) {
	text := test_helpers.Dedent(`
        % Natural numbers.
        nat(0).
        nat(s(X)) :- nat(X).

        /* Lists */
        member(X, [X|_]).
        member(X, [_|T]) :-
            member(X, T).

        abs(X, Y) :- ( X < 0 -> Y is -X ; Y = X ).
        greeting("hi").
        greeting --> [hello], name.
        offset(-5, [-1.5, 2,]).
    `)
	got, err := parser.ParseClauses(text)
	require.NoError(t, err)
	want := []*logic.Clause{
		clause(comp("nat", int_(0))),
		clause(comp("nat", comp("s", var_("X"))),
			comp("nat", var_("X"))),
		clause(comp("member", var_("X"), ilist(var_("X"), var_("_")))),
		clause(comp("member", var_("X"), ilist(var_("_"), var_("T"))),
			comp("member", var_("X"), var_("T"))),
		clause(comp("abs", var_("X"), var_("Y")),
			comp(";",
				comp("->",
					comp("<", var_("X"), int_(0)),
					comp("is", var_("Y"), comp("-", var_("X")))),
				comp("=", var_("Y"), var_("X")))),
		clause(comp("greeting", list(atom("h"), atom("i")))),
		clause(comp("greeting", var_("_L0"), var_("_L2")),
			comp("=", var_("_L0"), ilist(atom("hello"), var_("_L1"))),
			comp("name", var_("_L1"), var_("_L2"))),
		clause(comp("offset", int_(-5), list(float_(-1.5), int_(2)))),
	}
	if diff := cmp.Diff(want, got, test_helpers.IgnoreUnexported); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
}

func TestParseClauses_Errors(t *testing.T) {
	tests := []string{
		`a :- b`,
		`X :- a.`,
		`1.`,
		`:- dynamic foo/1.`,
		`a. b`,
	}
	for _, text := range tests {
		if _, err := parser.ParseClauses(text); err == nil {
			t.Errorf("%q: expected error", text)
		}
	}
}

func TestParseTerms(t *testing.T) {
	got, err := parser.ParseTerms(":- dynamic(counter/1).\ncounter(0).\n")
	require.NoError(t, err)
	want := []logic.Term{
		comp(":-", comp("dynamic", comp("/", atom("counter"), int_(1)))),
		comp("counter", int_(0)),
	}
	if diff := cmp.Diff(want, got, test_helpers.IgnoreUnexported); diff != "" {
		t.Errorf("(-want, +got)\n%s", diff)
	}
}

func TestParseQuery(t *testing.T) {
	tests := []struct {
		text string
		want []logic.Term
	}{
		{`true`, []logic.Term{atom("true")}},
		{`likes(mary, X).`, []logic.Term{comp("likes", atom("mary"), var_("X"))}},
		{`X = 1, (Y = 2 ; Y = 3), Z is X + Y.`, []logic.Term{
			comp("=", var_("X"), int_(1)),
			comp(";", comp("=", var_("Y"), int_(2)), comp("=", var_("Y"), int_(3))),
			comp("is", var_("Z"), comp("+", var_("X"), var_("Y"))),
		}},
	}
	for _, test := range tests {
		got, err := parser.ParseQuery(test.text)
		if err != nil {
			t.Errorf("%q: got err: %v", test.text, err)
			continue
		}
		if diff := cmp.Diff(test.want, got, test_helpers.IgnoreUnexported); diff != "" {
			t.Errorf("%q: (-want, +got)\n%s", test.text, diff)
		}
	}
}

// Printed terms are read back as the same term.
func TestParseTerm_ReadsBackString(t *testing.T) {
	terms := []logic.Term{
		atom("a"),
		atom("hello world"),
		atom("it's"),
		atom(""),
		atom("[]"),
		atom("/*"),
		atom("."),
		atom(","),
		atom("|"),
		int_(-5),
		float_(1e21),
		float_(-0.5),
		comp("-", int_(1)),
		comp("-", int_(-1)),
		comp(",", atom("a"), atom("b")),
		comp("=..", var_("X"), list(atom("f"), var_("Y"))),
		comp("f"),
		comp("[]", atom("a")),
		list(atom("a"), atom("\n"), atom(`"`)),
		ilist(int_(1), int_(2), var_("T")),
		comp("f", atom("-"), comp(":-", atom("a"))),
	}
	for _, term := range terms {
		text := term.String()
		got, err := parser.ParseTerm(text)
		if err != nil {
			t.Errorf("%v: got err: %v", text, err)
			continue
		}
		if diff := cmp.Diff(term, got, test_helpers.IgnoreUnexported); diff != "" {
			t.Errorf("%v: (-want, +got)\n%s", text, diff)
		}
	}
}
