package wam

import (
	"context"
	"iter"
	"strings"

	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/logic"
)

// Binding is the value of a query var in a solution.
type Binding struct {
	Name  string
	Value logic.Term
}

// Solution holds the bindings of the named vars of a query, in order of
// first occurrence.
type Solution []Binding

// Map returns the bindings keyed by var name.
func (s Solution) Map() map[string]logic.Term {
	m := make(map[string]logic.Term, len(s))
	for _, b := range s {
		m[b.Name] = b.Value
	}
	return m
}

func (s Solution) String() string {
	parts := make([]string, len(s))
	for i, b := range s {
		parts[i] = b.Name + " = " + b.Value.String()
	}
	return strings.Join(parts, ", ")
}

// Solutions is a lazy sequence of solutions to a query.
//
//	sols, err := m.Query(ctx, goals...)
//	if err != nil { ... }
//	for sols.Next() {
//	    fmt.Println(sols.Solution())
//	}
//	if err := sols.Err(); err != nil { ... }
//
// Each call to Next runs the machine until the next solution. The
// sequence may be abandoned at any point.
type Solutions struct {
	m    *Machine
	sol  Solution
	err  error
	done bool
}

// Query compiles goals against the latest image of the program and
// prepares the machine to run it. Calls to undefined procedures are
// reported here as a *LinkageError.
func (m *Machine) Query(ctx context.Context, goals ...logic.Term) (*Solutions, error) {
	if err := m.load(goals); err != nil {
		return nil, err
	}
	m.setContext(ctx)
	return &Solutions{m: m}, nil
}

// Next advances to the next solution, returning false when there are no
// more solutions or the query faulted. Check Err to tell them apart.
func (s *Solutions) Next() bool {
	if s.done {
		return false
	}
	if err := s.m.run(); err != nil {
		s.done = true
		s.sol = nil
		if !errors.Is(err, ErrNoMoreSolutions) {
			s.err = err
		}
		return false
	}
	s.sol = s.m.solution()
	return true
}

// Solution returns the current solution.
func (s *Solutions) Solution() Solution {
	return s.sol
}

// Err returns the fault that terminated the sequence, if any. It is nil
// if the solutions were exhausted normally.
func (s *Solutions) Err() error {
	return s.err
}

// All returns an iterator over the remaining solutions. A fault is yielded
// as the last element.
func (s *Solutions) All() iter.Seq2[Solution, error] {
	return func(yield func(Solution, error) bool) {
		for s.Next() {
			if !yield(s.Solution(), nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

// solution reads the bindings of query vars from the query environment.
func (m *Machine) solution() Solution {
	if m.queryEnv == nil {
		return Solution{}
	}
	ctx := m.newDecodeCtx()
	sol := make(Solution, 0, len(m.queryVars))
	for i, id := range m.queryVars {
		name, err := m.prog.Interner.ResolveVar(id)
		if err != nil {
			panic(err)
		}
		sol = append(sol, Binding{Name: name, Value: ctx.decode(m.queryEnv.Vars[i])})
	}
	return sol
}

// RunQuery loads goals and runs until the first solution. It returns
// ErrNoMoreSolutions if there is none.
func (m *Machine) RunQuery(goals ...logic.Term) (Solution, error) {
	if err := m.load(goals); err != nil {
		return nil, err
	}
	m.setContext(context.Background())
	return m.NextSolution()
}

// NextSolution backtracks into the latest query to find another solution.
func (m *Machine) NextSolution() (Solution, error) {
	if err := m.run(); err != nil {
		return nil, err
	}
	return m.solution(), nil
}
