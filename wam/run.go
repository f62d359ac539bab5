package wam

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/intern"
)

// Number of steps between checks of context cancellation.
const ctxCheckInterval = 1024

var errNoQuery = errors.New("no query loaded")

// Step executes the instruction at CodePtr.
//
// A Failed outcome leaves the machine Backtracking, and the next step first
// resumes the latest choice point. After a Complete outcome, the next step
// fails to look for another solution. Errors are faults that abort the
// query, and ErrNoMoreSolutions once choice points are exhausted.
func (m *Machine) Step() (StepOutcome, error) {
	switch m.State {
	case Exhausted:
		return Failed, ErrNoMoreSolutions
	case Faulted:
		return Failed, m.err
	case Succeeded:
		m.State = Backtracking
		return Failed, nil
	case Backtracking:
		if !m.Backtrack() {
			return Failed, ErrNoMoreSolutions
		}
	}
	if m.image == nil {
		return Failed, errNoQuery
	}
	m.State = Running
	instr := m.fetch(m.CodePtr)
	m.CodePtr++
	m.Clock++
	outcome, err := m.execute(instr)
	if err == nil {
		err = m.checkLimits()
	}
	switch {
	case err != nil:
		m.fault(err)
	case outcome == Failed:
		m.State = Backtracking
	case outcome == Complete:
		m.State = Succeeded
	}
	if m.Observer != nil {
		m.Observer.Observe(m.snapshot(instr, outcome))
	}
	return outcome, err
}

func (m *Machine) fault(err error) {
	m.State = Faulted
	m.err = err
	m.Logger.WithFields(logrus.Fields{
		"clock":    m.Clock,
		"code_ptr": m.CodePtr - 1,
	}).WithError(err).Debug("machine fault")
}

func (m *Machine) checkLimits() error {
	if m.IterLimit > 0 && m.Clock > m.IterLimit {
		return &ResourceError{"iterations", m.IterLimit}
	}
	if m.HeapLimit > 0 && len(m.Heap) > m.HeapLimit {
		return &ResourceError{"heap", m.HeapLimit}
	}
	if m.ChoiceLimit > 0 && len(m.Choices) > m.ChoiceLimit {
		return &ResourceError{"choice points", m.ChoiceLimit}
	}
	if m.Clock%ctxCheckInterval == 0 {
		return m.ctx.Err()
	}
	return nil
}

// Backtrack resumes the latest choice point. It returns false, leaving the
// machine Exhausted, if there are none.
func (m *Machine) Backtrack() bool {
	m.State = Backtracking
	n := len(m.Choices)
	if n == 0 {
		m.State = Exhausted
		return false
	}
	cp := &m.Choices[n-1]
	m.undoTrail(cp.TrailSize)
	m.Heap = m.Heap[:cp.HeapSize]
	copy(m.Reg, cp.Args)
	m.Env = cp.Env
	m.Continuation = cp.Continuation
	m.CutChoice = cp.CutChoice
	m.CodePtr = cp.Alternative
	m.State = Running
	return true
}

// run steps until reaching a solution, exhausting the choice points, or
// a fault. If the machine is at a solution, it looks for the next one.
func (m *Machine) run() error {
	for {
		outcome, err := m.Step()
		if err != nil {
			return err
		}
		if outcome == Complete {
			return nil
		}
	}
}

func (m *Machine) pushChoice(arity int) {
	cp := ChoicePoint{
		Alternative:  m.CodePtr,
		Args:         make([]Cell, arity),
		TrailSize:    len(m.Trail),
		HeapSize:     len(m.Heap),
		Env:          m.Env,
		Continuation: m.Continuation,
		CutChoice:    m.CutChoice,
	}
	copy(cp.Args, m.Reg)
	m.Choices = append(m.Choices, cp)
}

func (m *Machine) cutTo(height int) {
	if len(m.Choices) > height {
		m.Choices = m.Choices[:height]
	}
}

func (m *Machine) entry(id intern.FunctorID) (int, error) {
	addr, ok := m.image.entries[id]
	if !ok {
		return 0, &LinkageError{Undefined: []string{m.functor(id).String()}}
	}
	return addr, nil
}

func (m *Machine) execute(instr Instruction) (StepOutcome, error) {
	switch instr := instr.(type) {
	case PutStruct:
		// Start building a struct on top of the heap, and place it in register.
		addr := len(m.Heap)
		m.push(Functor(instr.Functor, instr.Arity))
		m.Reg[instr.ArgAddr] = Struct(addr)
		m.Mode = Write
	case PutVariable:
		// Place newly-seen query argument as an unbound ref.
		x := m.newVar()
		m.Reg[instr.ArgAddr] = x
		m.set(instr.Addr, x)
	case PutValue:
		// Move already-seen query argument to arg register.
		m.Reg[instr.ArgAddr] = m.get(instr.Addr)
	case PutConstant:
		// Put constant as argument in register.
		m.Reg[instr.ArgAddr] = instr.Constant
	case GetStruct:
		// Get struct from register.
		// If already a struct, will read its args during unification.
		// If a ref, will build the struct on the heap and bind the ref to it.
		c := m.deref(m.Reg[instr.ArgAddr])
		switch c.Tag {
		case StructTag:
			if m.Heap[c.Addr()] != Functor(instr.Functor, instr.Arity) {
				return Failed, nil
			}
			m.S = c.Addr() + 1
			m.Mode = Read
		case RefTag:
			addr := len(m.Heap)
			m.push(Functor(instr.Functor, instr.Arity))
			m.bindRef(c.Addr(), Struct(addr))
			m.Mode = Write
		default:
			return Failed, nil
		}
	case GetVariable:
		// Move newly-seen clause param from arg register to its address.
		m.set(instr.Addr, m.Reg[instr.ArgAddr])
	case GetValue:
		// Unify already-seen clause param with register value.
		if !m.unify(m.get(instr.Addr), m.Reg[instr.ArgAddr]) {
			return Failed, nil
		}
	case GetConstant:
		// Expect a constant from register.
		if !m.unifyConstant(m.Reg[instr.ArgAddr], instr.Constant) {
			return Failed, nil
		}
	case UnifyVariable:
		// Unify newly-seen struct arg.
		// In read mode, place the current arg into the address.
		// In write mode, push an unbound ref as arg.
		switch m.Mode {
		case Read:
			m.set(instr.Addr, m.Heap[m.S])
			m.S++
		case Write:
			m.set(instr.Addr, m.newVar())
		}
	case UnifyValue:
		// Unify already-seen struct arg.
		// In read mode, unify the address with the current arg.
		// In write mode, push the address value as arg.
		switch m.Mode {
		case Read:
			if !m.unify(m.get(instr.Addr), m.Heap[m.S]) {
				return Failed, nil
			}
			m.S++
		case Write:
			m.push(m.get(instr.Addr))
		}
	case UnifyConstant:
		switch m.Mode {
		case Read:
			if !m.unifyConstant(m.Heap[m.S], instr.Constant) {
				return Failed, nil
			}
			m.S++
		case Write:
			m.push(instr.Constant)
		}
	case UnifyVoid:
		// Skip args that are never referenced.
		switch m.Mode {
		case Read:
			m.S += instr.NumVars
		case Write:
			for i := 0; i < instr.NumVars; i++ {
				m.newVar()
			}
		}
	case Allocate:
		// Push a new environment frame.
		m.Env = &Env{
			Prev:         m.Env,
			Continuation: m.Continuation,
			Vars:         make([]Cell, instr.NumVars),
			CutChoice:    m.CutChoice,
		}
		if m.queryEnv == nil {
			m.queryEnv = m.Env
		}
	case Deallocate:
		// Pop the current environment. It may still be referenced by a choice point.
		m.Continuation = m.Env.Continuation
		m.Env = m.Env.Prev
	case Call:
		// Save the return address, and jump to the procedure entry.
		addr, err := m.entry(instr.Functor)
		if err != nil {
			return Failed, err
		}
		m.Continuation = m.CodePtr
		m.CutChoice = len(m.Choices)
		m.CodePtr = addr
	case Execute:
		// Trampoline into the procedure, keeping the continuation.
		addr, err := m.entry(instr.Functor)
		if err != nil {
			return Failed, err
		}
		m.CutChoice = len(m.Choices)
		m.CodePtr = addr
	case CallMeta:
		// Call the goal in A0, with extra args from A1...
		m.Continuation = m.CodePtr
		return m.callMeta(instr.NumArgs)
	case ExecuteMeta:
		return m.callMeta(instr.NumArgs)
	case CallBuiltin:
		// Run a Go predicate over the arg registers.
		b, ok := m.image.builtins[instr.Functor]
		if !ok {
			return Failed, &LinkageError{Undefined: []string{m.functor(instr.Functor).String()}}
		}
		ok, err := b.Call(m, m.Reg[:instr.Arity])
		if err != nil {
			return Failed, err
		}
		if !ok {
			return Failed, nil
		}
	case Proceed:
		// Jump to the continuation.
		m.CodePtr = m.Continuation
	case Try:
		// Push a choice point resuming at the next instruction, and jump to the clause.
		m.pushChoice(instr.Arity)
		m.CodePtr = instr.Continuation
	case Retry:
		// Point the restored choice point to the next instruction, and jump to the clause.
		m.Choices[len(m.Choices)-1].Alternative = m.CodePtr
		m.CodePtr = instr.Continuation
	case Trust:
		// Pop the restored choice point, and jump to the last clause.
		m.Choices = m.Choices[:len(m.Choices)-1]
		m.CodePtr = instr.Continuation
	case SwitchOnTerm:
		c := m.deref(m.Reg[0])
		switch c.Tag {
		case RefTag:
			m.CodePtr = instr.IfVar
		case StructTag:
			m.CodePtr = instr.IfStruct
		default:
			m.CodePtr = instr.IfConstant
		}
	case SwitchOnConstant:
		addr, ok := instr.Continuation[m.deref(m.Reg[0])]
		if !ok {
			addr = instr.Default
		}
		m.CodePtr = addr
	case SwitchOnStruct:
		c := m.deref(m.Reg[0])
		addr, ok := instr.Continuation[m.Heap[c.Addr()]]
		if !ok {
			addr = instr.Default
		}
		m.CodePtr = addr
	case NeckCut:
		// Remove choice points created since the clause was called.
		m.cutTo(m.CutChoice)
	case Cut:
		m.cutTo(m.Env.CutChoice)
	case Fail:
		return Failed, nil
	case Halt:
		return Complete, nil
	default:
		panic(errors.New("wam.Machine.execute: unhandled instruction %T (%v)", instr, instr))
	}
	return Continue, nil
}

// unifyConstant unifies a cell with a constant, binding it if it's a ref.
func (m *Machine) unifyConstant(c, constant Cell) bool {
	c = m.deref(c)
	if c.Tag == RefTag {
		m.bindRef(c.Addr(), constant)
		return true
	}
	return c == constant
}

// ---- meta-calls

var controlAtoms = map[string]struct{}{"!": {}, "true": {}, "fail": {}, "false": {}}

// callMeta calls the goal in A0 with numArgs-1 extra args in A1...
//
// Control constructs are run by their system procedures, after their cuts
// are bound to the height of the choice stack at the call, so that a cut
// within call/1 is local to it. Continuation must already be set.
func (m *Machine) callMeta(numArgs int) (StepOutcome, error) {
	pred := fmt.Sprintf("call/%d", numArgs)
	goal := m.deref(m.Reg[0])
	extra := make([]Cell, numArgs-1)
	copy(extra, m.Reg[1:numArgs])
	var id intern.FunctorID
	var args []Cell
	switch goal.Tag {
	case RefTag:
		return Failed, &BuiltinError{Kind: InstantiationError, Predicate: pred}
	case AtomTag:
		id = goal.FunctorID()
	case StructTag:
		var f Cell
		f, args = m.structArgs(goal)
		id = f.FunctorID()
	default:
		return Failed, &BuiltinError{Kind: TypeError, Predicate: pred, Expected: "callable", Culprit: m.format(goal)}
	}
	f := m.functor(id)
	name, arity := f.Name, f.Arity+len(extra)
	if len(extra) > 0 {
		id = m.prog.Interner.Functor(name, arity)
	}
	allArgs := make([]Cell, 0, arity)
	allArgs = append(allArgs, args...)
	allArgs = append(allArgs, extra...)
	cutChoice := len(m.Choices)
	if _, ok := controlAtoms[name]; ok && arity == 0 {
		if name == "fail" || name == "false" {
			return Failed, nil
		}
		// A cut within call/1 is local to it, so it removes no choice points.
		m.CodePtr = m.Continuation
		return Continue, nil
	}
	if isControl(name, arity) {
		if len(extra) > 0 {
			goal = m.NewStruct(id, allArgs...)
		}
		if bound, ok := m.bindCuts(goal, Int(int64(cutChoice)), nil); ok {
			_, allArgs = m.structArgs(bound)
		}
	}
	if b, ok := m.image.builtins[id]; ok {
		ok, err := b.Call(m, allArgs)
		if err != nil {
			return Failed, err
		}
		if !ok {
			return Failed, nil
		}
		m.CodePtr = m.Continuation
		return Continue, nil
	}
	addr, err := m.entry(id)
	if err != nil {
		return Failed, err
	}
	m.ensureRegs(arity)
	copy(m.Reg, allArgs)
	m.CutChoice = cutChoice
	m.CodePtr = addr
	return Continue, nil
}

func isControl(name string, arity int) bool {
	return arity == 2 && (name == "," || name == ";" || name == "->")
}

// bindCuts copies the control constructs of goal, replacing the cuts within
// them with '$cut'(level). The condition of '->'/2 is opaque to cut, as is any
// other goal. It returns false if goal has no such cut.
func (m *Machine) bindCuts(goal, level Cell, path map[int]struct{}) (Cell, bool) {
	goal = m.deref(goal)
	switch goal.Tag {
	case AtomTag:
		if m.functor(goal.FunctorID()).Name == "!" {
			return m.NewStruct(m.prog.Interner.Functor("$cut", 1), level), true
		}
	case StructTag:
		f, args := m.structArgs(goal)
		functor := m.functor(f.FunctorID())
		if !isControl(functor.Name, functor.Arity) {
			break
		}
		// Cyclic goals are left as is.
		if _, ok := path[goal.Addr()]; ok {
			break
		}
		if path == nil {
			path = make(map[int]struct{})
		}
		path[goal.Addr()] = struct{}{}
		defer delete(path, goal.Addr())
		a, b := args[0], args[1]
		okA := false
		if functor.Name != "->" {
			a, okA = m.bindCuts(a, level, path)
		}
		b, okB := m.bindCuts(b, level, path)
		if okA || okB {
			return m.NewStruct(f.FunctorID(), a, b), true
		}
	}
	return goal, false
}

func (m *Machine) setContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	m.ctx = ctx
}
