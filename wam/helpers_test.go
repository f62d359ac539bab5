package wam_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/prologkit/warren/dsl"
	"github.com/prologkit/warren/intern"
	"github.com/prologkit/warren/logic"
	"github.com/prologkit/warren/wam"
)

var (
	atom   = dsl.Atom
	int_   = dsl.Int
	float_ = dsl.Float
	comp   = dsl.Comp
	var_   = dsl.Var
	list   = dsl.List
	ilist  = dsl.IList
	clause = dsl.Clause
)

func newProgram(t *testing.T, clauses ...*logic.Clause) *wam.Program {
	t.Helper()
	p := wam.NewProgram(intern.New())
	logger, _ := test.NewNullLogger()
	p.Logger = logger
	if err := p.AddClauses(clauses...); err != nil {
		t.Fatalf("AddClauses: %v", err)
	}
	return p
}

func newMachine(t *testing.T, clauses ...*logic.Clause) *wam.Machine {
	t.Helper()
	m := wam.NewMachine(newProgram(t, clauses...))
	m.IterLimit = 100000
	return m
}

// solve returns all solutions of a query formatted as strings, and the
// error that terminated them.
func solve(t *testing.T, m *wam.Machine, goals ...logic.Term) ([]string, error) {
	t.Helper()
	sols, err := m.Query(context.Background(), goals...)
	if err != nil {
		return nil, err
	}
	var got []string
	for sols.Next() {
		got = append(got, sols.Solution().String())
	}
	return got, sols.Err()
}
