package wam

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/prologkit/warren/dsl"
	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/intern"
	"github.com/prologkit/warren/logic"
)

// failAddr is the code offset of the fail instruction every program starts with.
// Switch tables and dynamic procedures without clauses jump there.
const failAddr = 0

// ---- index keys

type keyKind int

const (
	noKey keyKind = iota
	varKey
	constKey
	structKey
)

// indexKey is the shape of a clause's first arg, used by switch instructions.
type indexKey struct {
	kind keyKind
	cell Cell
}

func (ctx *compileCtx) indexKey(term logic.Term) indexKey {
	switch t := term.(type) {
	case logic.Var:
		return indexKey{kind: varKey}
	case logic.Atom, logic.Int, logic.Float:
		return indexKey{constKey, ctx.constant(t)}
	case *logic.Comp:
		if len(t.Args) == 0 {
			return indexKey{constKey, Atom(ctx.p.Interner.Atom(t.Functor))}
		}
		return indexKey{structKey, Functor(ctx.functor(t), len(t.Args))}
	case *logic.List:
		return indexKey{structKey, Functor(ctx.p.Interner.Functor(logic.ListFunctor, 2), 2)}
	}
	return indexKey{}
}

// ---- procedures

type clauseRef struct {
	offset int
	key    indexKey
}

// procedure is the set of clauses with the same functor, in assertion order.
type procedure struct {
	functor intern.FunctorID
	arity   int
	clauses []clauseRef
	// Dynamic procedures may have no clauses; calling them fails.
	dynamic bool
	// System procedures belong to the preamble and can't be extended.
	system bool
}

// Program is the code area shared by machines.
//
// Code is append-only: adding clauses to a procedure appends their code and
// marks the procedure as dirty, and the next Link appends a new dispatch
// block for it. Machines execute immutable Images of a program, so a
// program may grow while queries are running.
type Program struct {
	Interner *intern.Interner
	Logger   logrus.FieldLogger

	mu       sync.Mutex
	code     []Instruction
	procs    map[intern.FunctorID]*procedure
	order    []intern.FunctorID
	entries  map[intern.FunctorID]int
	dirty    map[intern.FunctorID]struct{}
	builtins map[intern.FunctorID]Builtin
	numRegs  int
	image    *Image
	labels   map[int]string
}

// Image is an immutable view of a linked program.
type Image struct {
	Interner *intern.Interner
	code     []Instruction
	entries  map[intern.FunctorID]int
	builtins map[intern.FunctorID]Builtin
	numRegs  int
}

// Len returns the size of the image's code area.
func (img *Image) Len() int {
	return len(img.code)
}

// Entry returns the code offset where a procedure starts.
func (img *Image) Entry(id intern.FunctorID) (int, bool) {
	addr, ok := img.entries[id]
	return addr, ok
}

// NewProgram returns a program with the builtins and control predicates
// already defined.
func NewProgram(in *intern.Interner) *Program {
	p := &Program{
		Interner: in,
		Logger:   logrus.StandardLogger(),
		code:     []Instruction{Fail{}},
		procs:    make(map[intern.FunctorID]*procedure),
		entries:  make(map[intern.FunctorID]int),
		dirty:    make(map[intern.FunctorID]struct{}),
		builtins: make(map[intern.FunctorID]Builtin),
		labels:   map[int]string{failAddr: "$fail"},
	}
	for _, b := range defaultBuiltins {
		p.builtins[in.Functor(b.name, b.arity)] = b.impl
	}
	if err := p.addClauses(preamble, true, true); err != nil {
		panic(fmt.Sprintf("wam.NewProgram: invalid preamble: %v", err))
	}
	for id := range p.procs {
		p.procs[id].system = true
	}
	return p
}

// ---- preamble

var (
	comp = dsl.Comp
	var_ = dsl.Var
	atom = dsl.Atom
)

var preamble = []*logic.Clause{
	// ';'('->'(Cond, Then), _) :- call(Cond), !, call(Then).
	// ';'('->'(_, _), Else) :- !, call(Else).
	// ';'(A, _) :- call(A).
	// ';'(_, B) :- call(B).
	dsl.Clause(comp(";", comp("->", var_("Cond"), var_("Then")), var_("_")),
		comp("call", var_("Cond")), atom("!"), comp("call", var_("Then"))),
	dsl.Clause(comp(";", comp("->", var_("_"), var_("_")), var_("Else")),
		atom("!"), comp("call", var_("Else"))),
	dsl.Clause(comp(";", var_("A"), var_("_")),
		comp("call", var_("A"))),
	dsl.Clause(comp(";", var_("_"), var_("B")),
		comp("call", var_("B"))),

	// '->'(Cond, Then) :- call(Cond), !, call(Then).
	dsl.Clause(comp("->", var_("Cond"), var_("Then")),
		comp("call", var_("Cond")), atom("!"), comp("call", var_("Then"))),

	// \+(Goal) :- call(Goal), !, fail.
	// \+(_).
	dsl.Clause(comp("\\+", var_("Goal")),
		comp("call", var_("Goal")), atom("!"), atom("fail")),
	dsl.Clause(comp("\\+", var_("_"))),

	// ','(A, B) :- call(A), call(B).
	dsl.Clause(comp(",", var_("A"), var_("B")),
		comp("call", var_("A")), comp("call", var_("B"))),

	// phrase(Body, List) :- phrase(Body, List, []).
	// phrase(Body, List, Rest) :- call(Body, List, Rest).
	dsl.Clause(comp("phrase", var_("Body"), var_("List")),
		comp("phrase", var_("Body"), var_("List"), atom("[]"))),
	dsl.Clause(comp("phrase", var_("Body"), var_("List"), var_("Rest")),
		comp("call", var_("Body"), var_("List"), var_("Rest"))),

	// Compiled calls to call/N are turned into call_meta. These clauses are
	// used when call/N is itself meta-called, e.g., call(call, G).
	makeCall(1),
	makeCall(2),
	makeCall(3),
	makeCall(4),
	makeCall(5),
	makeCall(6),
	makeCall(7),
	makeCall(8),
}

// call(Goal, A1, ..., An) :- call(Goal, A1, ..., An).
func makeCall(arity int) *logic.Clause {
	args := make([]logic.Term, arity)
	args[0] = var_("Goal")
	for i := 1; i < arity; i++ {
		args[i] = var_(fmt.Sprintf("A%d", i))
	}
	return dsl.Clause(comp("call", args...), comp("call", args...))
}

// ---- builtins

func (p *Program) builtin(name string, arity int) (intern.FunctorID, bool) {
	id, ok := p.Interner.LookupFunctor(name, arity)
	if !ok {
		return 0, false
	}
	_, ok = p.builtins[id]
	return id, ok
}

// Register adds a predicate implemented in Go. Clauses compiled afterwards
// call it inline.
func (p *Program) Register(name string, arity int, b Builtin) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.Interner.Functor(name, arity)
	if _, ok := p.procs[id]; ok {
		return errors.New("register %s/%d: procedure already has clauses", name, arity)
	}
	// Images share the builtins table, so it is copied on write.
	builtins := make(map[intern.FunctorID]Builtin, len(p.builtins)+1)
	for k, v := range p.builtins {
		builtins[k] = v
	}
	builtins[id] = b
	p.builtins = builtins
	p.image = nil
	return nil
}

// ---- adding clauses

// AddClauses compiles and appends clauses to the end of their procedures.
//
// The batch is rejected as a whole if a clause is invalid, or if any clause
// calls a procedure that is not defined by the program, the batch itself,
// or a builtin. In the latter case the error is a *LinkageError.
func (p *Program) AddClauses(clauses ...*logic.Clause) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addClauses(clauses, true, false)
}

// Declare creates a dynamic procedure, that can be called before any clause
// is asserted for it.
func (p *Program) Declare(name string, arity int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.Interner.Functor(name, arity)
	if _, ok := p.builtins[id]; ok {
		return errors.New("declare %s/%d: is a builtin", name, arity)
	}
	proc := p.procedure(id, arity)
	if proc.system {
		return errors.New("declare %s/%d: is a control predicate", name, arity)
	}
	proc.dynamic = true
	p.dirty[id] = struct{}{}
	p.image = nil
	return nil
}

// assert adds a single clause at runtime, without checking its calls.
// Calls to undefined procedures are reported when executed.
func (p *Program) assert(clause *logic.Clause, front bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !front {
		return p.addClauses([]*logic.Clause{clause}, false, false)
	}
	clause, err := clause.Normalize()
	if err != nil {
		return err
	}
	c, err := p.compileClause(clause)
	if err != nil {
		return err
	}
	proc := p.procedure(c.functor, len(clause.Head.(*logic.Comp).Args))
	if proc.system {
		return staticProcedureError(clause)
	}
	proc.dynamic = true
	ref := p.emit(c)
	proc.clauses = append([]clauseRef{ref}, proc.clauses...)
	p.dirty[c.functor] = struct{}{}
	p.image = nil
	return nil
}

func (p *Program) addClauses(clauses []*logic.Clause, checkLinks, system bool) error {
	compiled := make([]*compiledClause, len(clauses))
	arities := make(map[intern.FunctorID]int)
	for i, clause := range clauses {
		clause, err := clause.Normalize()
		if err != nil {
			return err
		}
		c, err := p.compileClause(clause)
		if err != nil {
			return err
		}
		if proc, ok := p.procs[c.functor]; ok && proc.system && !system {
			return staticProcedureError(clause)
		}
		compiled[i] = c
		arities[c.functor] = len(clause.Head.(*logic.Comp).Args)
	}
	if checkLinks {
		undefined := make(map[string]struct{})
		for _, c := range compiled {
			for _, id := range calledProcedures(c.code) {
				if _, ok := arities[id]; ok {
					continue
				}
				if p.isDefined(id) {
					continue
				}
				undefined[p.Interner.MustFunctor(id).String()] = struct{}{}
			}
		}
		if len(undefined) > 0 {
			return newLinkageError(undefined)
		}
	}
	for _, c := range compiled {
		proc := p.procedure(c.functor, arities[c.functor])
		if !checkLinks {
			proc.dynamic = true
		}
		proc.clauses = append(proc.clauses, p.emit(c))
		p.dirty[c.functor] = struct{}{}
	}
	p.image = nil
	return nil
}

func (p *Program) compileClause(clause *logic.Clause) (*compiledClause, error) {
	if _, ok := p.builtin(clause.Head.(*logic.Comp).Functor, len(clause.Head.(*logic.Comp).Args)); ok {
		return nil, staticProcedureError(clause)
	}
	clause = expandCuts(clause)
	return p.compile(clause, permanentVars(clause), false), nil
}

func staticProcedureError(clause *logic.Clause) error {
	return &BuiltinError{
		Kind:     PermissionError,
		Expected: "modify",
		Culprit:  fmt.Sprintf("static procedure %v", clause.Head.(*logic.Comp).Indicator()),
	}
}

func (p *Program) procedure(id intern.FunctorID, arity int) *procedure {
	proc, ok := p.procs[id]
	if !ok {
		proc = &procedure{functor: id, arity: arity}
		p.procs[id] = proc
		p.order = append(p.order, id)
	}
	return proc
}

// Procedures returns the user-defined procedures, in order of definition.
func (p *Program) Procedures() []intern.Functor {
	p.mu.Lock()
	defer p.mu.Unlock()
	var fs []intern.Functor
	for _, id := range p.order {
		if p.procs[id].system {
			continue
		}
		fs = append(fs, p.Interner.MustFunctor(id))
	}
	return fs
}

func (p *Program) isDefined(id intern.FunctorID) bool {
	proc, ok := p.procs[id]
	return ok && (len(proc.clauses) > 0 || proc.dynamic)
}

// emit appends the clause code to the code area, returning its location.
func (p *Program) emit(c *compiledClause) clauseRef {
	offset := len(p.code)
	p.code = append(p.code, c.code...)
	if c.numRegs > p.numRegs {
		p.numRegs = c.numRegs
	}
	p.labels[offset] = fmt.Sprintf("%v", c.source.Head.(*logic.Comp).Indicator())
	return clauseRef{offset: offset, key: c.key}
}

// calledProcedures returns the procedures called by code, in order.
func calledProcedures(code []Instruction) []intern.FunctorID {
	var ids []intern.FunctorID
	for _, instr := range code {
		switch instr := instr.(type) {
		case Call:
			ids = append(ids, instr.Functor)
		case Execute:
			ids = append(ids, instr.Functor)
		}
	}
	return ids
}

// ---- linking

// Link appends dispatch blocks for procedures changed since the last link.
func (p *Program) Link() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.link()
}

func (p *Program) link() {
	if len(p.dirty) == 0 && p.image != nil {
		return
	}
	entries := make(map[intern.FunctorID]int, len(p.entries)+len(p.dirty))
	for id, addr := range p.entries {
		entries[id] = addr
	}
	ids := make([]intern.FunctorID, 0, len(p.dirty))
	for id := range p.dirty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		proc := p.procs[id]
		entry := p.dispatch(proc)
		if _, ok := p.labels[entry]; !ok {
			p.labels[entry] = p.Interner.MustFunctor(id).String()
		}
		entries[id] = entry
		p.Logger.WithFields(logrus.Fields{
			"procedure": p.Interner.MustFunctor(id),
			"clauses":   len(proc.clauses),
			"entry":     entries[id],
		}).Debug("linked procedure")
	}
	p.entries = entries
	p.dirty = make(map[intern.FunctorID]struct{})
	p.image = &Image{
		Interner: p.Interner,
		code:     p.code[:len(p.code):len(p.code)],
		entries:  p.entries,
		builtins: p.builtins,
		numRegs:  p.numRegs,
	}
}

// Snapshot links the program and returns an immutable view of it, safe to
// be read concurrently with further changes to the program.
func (p *Program) Snapshot() *Image {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.link()
	return p.image
}

// dispatch emits the code that selects the clauses of proc, and returns
// its entry address.
//
// If the first arg of every clause is a var, clauses are tried in order
// with a try/retry/trust chain. Otherwise, switch_on_term selects the
// clauses that may match the first arg, keeping those with a var first arg
// in their relative order.
func (p *Program) dispatch(proc *procedure) int {
	clauses := proc.clauses
	if len(clauses) == 0 {
		return failAddr
	}
	if proc.arity == 0 || !hasIndexKeys(clauses) {
		return p.chain(proc.arity, clauses)
	}
	var vars []clauseRef
	consts := make(map[Cell][]clauseRef)
	structs := make(map[Cell][]clauseRef)
	var constKeys, structKeys []Cell
	for _, c := range clauses {
		switch c.key.kind {
		case varKey:
			vars = append(vars, c)
			for _, k := range constKeys {
				consts[k] = append(consts[k], c)
			}
			for _, k := range structKeys {
				structs[k] = append(structs[k], c)
			}
		case constKey:
			if _, ok := consts[c.key.cell]; !ok {
				constKeys = append(constKeys, c.key.cell)
				consts[c.key.cell] = append([]clauseRef(nil), vars...)
			}
			consts[c.key.cell] = append(consts[c.key.cell], c)
		case structKey:
			if _, ok := structs[c.key.cell]; !ok {
				structKeys = append(structKeys, c.key.cell)
				structs[c.key.cell] = append([]clauseRef(nil), vars...)
			}
			structs[c.key.cell] = append(structs[c.key.cell], c)
		}
	}
	ifVar := p.chain(proc.arity, clauses)
	ifVarOnly := p.chain(proc.arity, vars)
	ifConst := ifVarOnly
	if len(constKeys) > 0 {
		table := make(map[Cell]int, len(constKeys))
		for _, k := range constKeys {
			table[k] = p.chain(proc.arity, consts[k])
		}
		ifConst = len(p.code)
		p.code = append(p.code, SwitchOnConstant{Continuation: table, Default: ifVarOnly})
	}
	ifStruct := ifVarOnly
	if len(structKeys) > 0 {
		table := make(map[Cell]int, len(structKeys))
		for _, k := range structKeys {
			table[k] = p.chain(proc.arity, structs[k])
		}
		ifStruct = len(p.code)
		p.code = append(p.code, SwitchOnStruct{Continuation: table, Default: ifVarOnly})
	}
	entry := len(p.code)
	p.code = append(p.code, SwitchOnTerm{IfVar: ifVar, IfConstant: ifConst, IfStruct: ifStruct})
	return entry
}

func hasIndexKeys(clauses []clauseRef) bool {
	for _, c := range clauses {
		if c.key.kind == constKey || c.key.kind == structKey {
			return true
		}
	}
	return false
}

// chain emits a try/retry/trust block over clauses, returning its address.
// A single clause needs no choice point, and is returned as is.
func (p *Program) chain(arity int, clauses []clauseRef) int {
	switch len(clauses) {
	case 0:
		return failAddr
	case 1:
		return clauses[0].offset
	}
	addr := len(p.code)
	p.code = append(p.code, Try{Arity: arity, Continuation: clauses[0].offset})
	for _, c := range clauses[1 : len(clauses)-1] {
		p.code = append(p.code, Retry{Continuation: c.offset})
	}
	p.code = append(p.code, Trust{Continuation: clauses[len(clauses)-1].offset})
	return addr
}

// ---- queries

// compiledQuery is a query lowered into code placed after an image.
type compiledQuery struct {
	code    []Instruction
	numRegs int
	vars    []intern.VarID
}

// compileQuery lowers goals into a clause that keeps all named vars in its
// environment, and ends in halt. Calls are resolved against img.
func (p *Program) compileQuery(img *Image, goals []logic.Term) (*compiledQuery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	clause, err := logic.NewClause(atom("$query"), goals...).Normalize()
	if err != nil {
		return nil, err
	}
	clause = expandQueryCuts(clause)
	xs := clause.Vars()
	perm := make(map[logic.Var]struct{}, len(xs))
	for _, x := range xs {
		perm[x] = struct{}{}
	}
	c := p.compile(clause, perm, true)
	undefined := make(map[string]struct{})
	for _, id := range calledProcedures(c.code) {
		if _, ok := img.entries[id]; !ok {
			undefined[img.Interner.MustFunctor(id).String()] = struct{}{}
		}
	}
	if len(undefined) > 0 {
		return nil, newLinkageError(undefined)
	}
	q := &compiledQuery{code: c.code, numRegs: c.numRegs}
	for _, x := range xs {
		q.vars = append(q.vars, img.Interner.Var(x.Name))
	}
	return q, nil
}

// ---- disassembly

// Disassemble writes the linked code area, one instruction per line, with
// procedure labels.
func (p *Program) Disassemble(w io.Writer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.link()
	for i, instr := range p.code {
		if label, ok := p.labels[i]; ok {
			if _, err := fmt.Fprintf(w, "%s:\n", label); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "  %4d  %s\n", i, formatInstruction(p.Interner, instr)); err != nil {
			return err
		}
	}
	return nil
}
