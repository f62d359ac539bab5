// Package solver is a high-level interface to the machine, reading programs
// and queries from text.
package solver

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/facts"
	"github.com/prologkit/warren/intern"
	"github.com/prologkit/warren/logic"
	"github.com/prologkit/warren/parser"
	"github.com/prologkit/warren/wam"
)

// Solver holds a program, and runs queries against it on fresh machines.
//
// Consulting and querying may happen concurrently: each query sees the
// clauses present when it started.
type Solver struct {
	Program *wam.Program
	Logger  logrus.FieldLogger
	// Configure, if not nil, is called on every machine before it runs a query.
	Configure func(*wam.Machine)
}

// New returns a solver with an empty program.
func New() *Solver {
	p := wam.NewProgram(intern.New())
	return &Solver{Program: p, Logger: p.Logger}
}

// NewSolver returns a solver for a program text.
func NewSolver(text string) (*Solver, error) {
	s := New()
	if err := s.Consult(text); err != nil {
		return nil, err
	}
	return s, nil
}

// SetLogger sets the logger of the solver and of its program.
func (s *Solver) SetLogger(logger logrus.FieldLogger) {
	s.Logger = logger
	s.Program.Logger = logger
}

// ---- loading programs

// Consult adds the clauses of a program text.
//
// Clauses are added as a single batch, after processing directives. The
// directive ':- dynamic(Name/Arity)' declares a dynamic procedure, and any
// other directive is run as a goal once the clauses are added.
func (s *Solver) Consult(text string) error {
	terms, err := parser.ParseTerms(text)
	if err != nil {
		return err
	}
	var clauses []*logic.Clause
	var goals []logic.Term
	for _, term := range terms {
		if directive, ok := asDirective(term); ok {
			if decls, ok := dynamicDecls(directive); ok {
				if err := s.declare(decls); err != nil {
					return err
				}
				continue
			}
			goals = append(goals, directive)
			continue
		}
		clause, err := parser.ToClause(term)
		if err != nil {
			return err
		}
		clauses = append(clauses, clause)
	}
	if err := s.AddClauses(clauses...); err != nil {
		return err
	}
	for _, goal := range goals {
		if err := s.runDirective(goal); err != nil {
			return err
		}
	}
	return nil
}

// ConsultFile adds the clauses of a program file.
func (s *Solver) ConsultFile(path string) error {
	text, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := s.Consult(string(text)); err != nil {
		return errors.New("%s: %v", path, err)
	}
	return nil
}

// AddClauses adds a batch of clauses to the program.
func (s *Solver) AddClauses(clauses ...*logic.Clause) error {
	if len(clauses) == 0 {
		return nil
	}
	if err := s.Program.AddClauses(clauses...); err != nil {
		return err
	}
	s.Logger.WithField("clauses", len(clauses)).Debug("added clauses")
	return nil
}

// LoadFacts adds the facts of a YAML document.
func (s *Solver) LoadFacts(r io.Reader) error {
	clauses, err := facts.Load(r)
	if err != nil {
		return err
	}
	return s.AddClauses(clauses...)
}

// LoadFactsFile adds the facts of a YAML file.
func (s *Solver) LoadFactsFile(path string) error {
	clauses, err := facts.LoadFile(path)
	if err != nil {
		return err
	}
	return s.AddClauses(clauses...)
}

func asDirective(term logic.Term) (logic.Term, bool) {
	c, ok := term.(*logic.Comp)
	if !ok || c.Functor != ":-" || len(c.Args) != 1 {
		return nil, false
	}
	return c.Args[0], true
}

// dynamicDecls returns the indicators of a dynamic directive, that may be
// a single indicator, a conjunction or a list.
func dynamicDecls(directive logic.Term) ([]logic.Term, bool) {
	c, ok := directive.(*logic.Comp)
	if !ok || c.Functor != "dynamic" || len(c.Args) != 1 {
		return nil, false
	}
	arg := c.Args[0]
	if l, ok := arg.(*logic.List); ok && l.Tail == logic.EmptyList {
		return l.Terms, true
	}
	return logic.FlattenConj(arg), true
}

func (s *Solver) declare(decls []logic.Term) error {
	for _, decl := range decls {
		name, arity, ok := indicator(decl)
		if !ok {
			return errors.New("dynamic: invalid predicate indicator %v", decl)
		}
		if err := s.Program.Declare(name, arity); err != nil {
			return err
		}
	}
	return nil
}

func indicator(term logic.Term) (string, int, bool) {
	c, ok := term.(*logic.Comp)
	if !ok || c.Functor != "/" || len(c.Args) != 2 {
		return "", 0, false
	}
	name, ok1 := c.Args[0].(logic.Atom)
	arity, ok2 := c.Args[1].(logic.Int)
	if !ok1 || !ok2 || arity.Value < 0 {
		return "", 0, false
	}
	return name.Name, int(arity.Value), true
}

func (s *Solver) runDirective(goal logic.Term) error {
	sols, err := s.query(context.Background(), goal)
	if err != nil {
		return errors.New("directive %v: %v", goal, err)
	}
	if sols.Next() {
		return nil
	}
	if err := sols.Err(); err != nil {
		return errors.New("directive %v: %v", goal, err)
	}
	s.Logger.WithField("directive", goal.String()).Warn("directive failed")
	return nil
}

// ---- running queries

func (s *Solver) newMachine(id string) *wam.Machine {
	m := wam.NewMachine(s.Program)
	m.Logger = s.Logger.WithField("query", id)
	if s.Configure != nil {
		s.Configure(m)
	}
	return m
}

// Query parses a query and returns its lazy sequence of solutions.
func (s *Solver) Query(ctx context.Context, text string) (*wam.Solutions, error) {
	goals, err := parser.ParseQuery(text)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, goals...)
}

func (s *Solver) query(ctx context.Context, goals ...logic.Term) (*wam.Solutions, error) {
	id := uuid.NewString()
	m := s.newMachine(id)
	sols, err := m.Query(ctx, goals...)
	if err != nil {
		return nil, err
	}
	m.Logger.WithField("goals", len(goals)).Debug("query started")
	return sols, nil
}

// Solve returns up to limit solutions of a query. A non-positive limit
// returns all of them.
func (s *Solver) Solve(ctx context.Context, text string, limit int) ([]wam.Solution, error) {
	sols, err := s.Query(ctx, text)
	if err != nil {
		return nil, err
	}
	var solutions []wam.Solution
	for sols.Next() {
		solutions = append(solutions, sols.Solution())
		if limit > 0 && len(solutions) >= limit {
			break
		}
	}
	if err := sols.Err(); err != nil {
		return solutions, err
	}
	s.Logger.WithFields(logrus.Fields{
		"query":     text,
		"solutions": len(solutions),
	}).Debug("query solved")
	return solutions, nil
}

// SolveAll solves independent queries concurrently, each on its own machine.
// The solutions of queries[i] are in the i-th position of the result. The
// first error cancels the remaining queries.
func (s *Solver) SolveAll(ctx context.Context, queries []string, limit int) ([][]wam.Solution, error) {
	results := make([][]wam.Solution, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	for i, text := range queries {
		g.Go(func() error {
			solutions, err := s.Solve(ctx, text, limit)
			if err != nil {
				return errors.New("query #%d: %v", i+1, err)
			}
			results[i] = solutions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ---- streaming

// Result is an element of a solution stream. The last result of a faulted
// query carries its error.
type Result struct {
	Solution wam.Solution
	Err      error
}

// Stream runs a query in a goroutine, sending solutions as they are found.
// The channel is closed when solutions are exhausted. The returned function
// interrupts the query and releases the goroutine.
func (s *Solver) Stream(ctx context.Context, text string) (<-chan Result, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stream := make(chan Result, 1)
	go func() {
		defer close(stream)
		send := func(r Result) bool {
			select {
			case stream <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}
		sols, err := s.Query(ctx, text)
		if err != nil {
			send(Result{Err: err})
			return
		}
		for sols.Next() {
			if !send(Result{Solution: sols.Solution()}) {
				return
			}
		}
		err = sols.Err()
		if err == nil {
			return
		}
		if ctx.Err() == nil {
			send(Result{Err: err})
			return
		}
		// Interrupted: report it if there's room, without blocking.
		select {
		case stream <- Result{Err: err}:
		default:
		}
	}()
	return stream, cancel
}
