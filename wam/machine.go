package wam

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/prologkit/warren/intern"
	"github.com/prologkit/warren/logic"
)

// Machine executes queries against an image of a program.
//
// A machine is not safe for concurrent use, but many machines may run
// queries against the same program concurrently.
type Machine struct {
	// Limits for a single query. Zero means unlimited.
	IterLimit   int
	HeapLimit   int
	ChoiceLimit int
	// OccursCheck makes unification fail when binding a var to a term
	// that contains it.
	OccursCheck bool
	// Out receives the output of write/1 and nl/0.
	Out io.Writer
	// Observer, if not nil, receives a snapshot after each step.
	Observer Observer
	Logger   logrus.FieldLogger

	prog  *Program
	image *Image
	// Code of the current query, addressed right after the image code.
	query []Instruction

	Heap         []Cell
	Reg          []Cell
	Trail        []int
	Env          *Env
	Choices      []ChoicePoint
	CodePtr      int
	Continuation int
	// Height of the choice stack at the latest call, restored by neck_cut.
	CutChoice int
	Mode      UnificationMode
	// Next struct arg to be read in read mode.
	S     int
	State State
	Clock int

	ctx       context.Context
	queryEnv  *Env
	queryVars []intern.VarID
	err       error
}

// NewMachine returns a machine that runs queries against p.
func NewMachine(p *Program) *Machine {
	return &Machine{
		Out:    os.Stdout,
		Logger: p.Logger,
		prog:   p,
		ctx:    context.Background(),
	}
}

// Program returns the program the machine runs against.
func (m *Machine) Program() *Program {
	return m.prog
}

// Interner returns the interner of the machine's program.
func (m *Machine) Interner() *intern.Interner {
	return m.prog.Interner
}

// load resets the machine state and places the query code after the latest
// image of the program.
func (m *Machine) load(goals []logic.Term) error {
	img := m.prog.Snapshot()
	q, err := m.prog.compileQuery(img, goals)
	if err != nil {
		return err
	}
	m.image = img
	m.query = q.code
	m.queryVars = q.vars
	m.Heap = m.Heap[:0]
	m.Trail = m.Trail[:0]
	m.Choices = m.Choices[:0]
	m.Env = nil
	m.queryEnv = nil
	m.ensureRegs(max(img.numRegs, q.numRegs))
	m.CodePtr = len(img.code)
	m.Continuation = failAddr
	m.CutChoice = 0
	m.Mode = Read
	m.S = 0
	m.State = Ready
	m.Clock = 0
	m.err = nil
	return nil
}

func (m *Machine) ensureRegs(n int) {
	if len(m.Reg) < n {
		m.Reg = append(m.Reg, make([]Cell, n-len(m.Reg))...)
	}
}

// fetch returns the instruction at addr.
func (m *Machine) fetch(addr int) Instruction {
	if addr < len(m.image.code) {
		return m.image.code[addr]
	}
	return m.query[addr-len(m.image.code)]
}

func (m *Machine) set(addr Addr, c Cell) {
	switch a := addr.(type) {
	case RegAddr:
		m.Reg[a] = c
	case StackAddr:
		m.Env.Vars[a] = c
	default:
		panic("wam.Machine.set: unhandled address type")
	}
}

func (m *Machine) get(addr Addr) Cell {
	switch a := addr.(type) {
	case RegAddr:
		return m.Reg[a]
	case StackAddr:
		return m.Env.Vars[a]
	default:
		panic("wam.Machine.get: unhandled address type")
	}
}

// functor resolves a functor id from compiled code or the heap.
func (m *Machine) functor(id intern.FunctorID) intern.Functor {
	return m.prog.Interner.MustFunctor(id)
}
