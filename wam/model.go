// Package wam implements an interpreter for a Warren Abstract Machine.
//
// The WAM is a specification to implement a register-based Prolog machine,
// that enjoys good performance and ease of translation to machine code.
//
// Terms live in a heap of tagged cells, addressed by integers. A variable is
// a ref cell; an unbound variable points to itself. Bindings are recorded in
// a trail, so that backtracking can reset them, and the heap is truncated to
// the mark saved in the choice point being resumed.
//
// The machine is composed of a list of registers and two stacks: the
// environment (or AND-)stack, that stores local variables of function calls,
// and the choicepoint (or OR-)stack, that stores the sequence of possible
// alternate steps to take on failure. Environments are regular Go values
// linked to their parent, leaving their reclamation to the garbage collector.
//
// Learn more in "Warren’s Abstract Machine: A tutorial reconstruction", Hassan Aït-Kaci
package wam

import (
	"fmt"

	"github.com/prologkit/warren/intern"
)

// ---- Address types

// Addr represents an address within the machine's memory.
type Addr interface {
	fmt.Stringer
	isAddr()
}

// RegAddr is the index of a machine register.
type RegAddr int

// StackAddr is the index of a local variable in the current environment.
type StackAddr int

func (a RegAddr) isAddr()   {}
func (a StackAddr) isAddr() {}

func (a RegAddr) String() string   { return fmt.Sprintf("X%d", a) }
func (a StackAddr) String() string { return fmt.Sprintf("Y%d", a) }

// ---- Instructions

// Instruction represents an instruction of the abstract machine.
//
// The set of instructions is closed: only types in this package implement it,
// and the machine handles each one of them in a single type switch.
type Instruction interface {
	fmt.Stringer
	isInstruction()
}

// GetVariable instruction: get_variable <addr>, <reg A>
type GetVariable struct {
	Addr    Addr
	ArgAddr RegAddr
}

// GetValue instruction: get_value <addr>, <reg A>
type GetValue struct {
	Addr    Addr
	ArgAddr RegAddr
}

// GetConstant instruction: get_constant <const>, <reg A>
type GetConstant struct {
	Constant Cell
	ArgAddr  RegAddr
}

// GetStruct instruction: get_struct <f/n>, <reg A>
type GetStruct struct {
	Functor intern.FunctorID
	Arity   int
	ArgAddr RegAddr
}

// PutVariable instruction: put_variable <addr>, <reg A>
type PutVariable struct {
	Addr    Addr
	ArgAddr RegAddr
}

// PutValue instruction: put_value <addr>, <reg A>
type PutValue struct {
	Addr    Addr
	ArgAddr RegAddr
}

// PutConstant instruction: put_constant <const>, <reg A>
type PutConstant struct {
	Constant Cell
	ArgAddr  RegAddr
}

// PutStruct instruction: put_struct <f/n>, <reg A>
type PutStruct struct {
	Functor intern.FunctorID
	Arity   int
	ArgAddr RegAddr
}

// UnifyVariable instruction: unify_variable <addr>
type UnifyVariable struct {
	Addr Addr
}

// UnifyValue instruction: unify_value <addr>
type UnifyValue struct {
	Addr Addr
}

// UnifyConstant instruction: unify_constant <const>
type UnifyConstant struct {
	Constant Cell
}

// UnifyVoid instruction: unify_void <n>
type UnifyVoid struct {
	NumVars int
}

// Allocate instruction: allocate <n>
type Allocate struct {
	NumVars int
}

// Deallocate instruction: deallocate
type Deallocate struct{}

// Call instruction: call <f/n>
type Call struct {
	Functor intern.FunctorID
}

// Execute instruction: execute <f/n>
type Execute struct {
	Functor intern.FunctorID
}

// CallMeta instruction: call_meta <n>
//
// The goal is in A0, and n-1 extra args follow in A1...
type CallMeta struct {
	NumArgs int
}

// ExecuteMeta instruction: execute_meta <n>
type ExecuteMeta struct {
	NumArgs int
}

// CallBuiltin instruction: builtin <f/n>
//
// Runs a predicate implemented in Go over args A0...An-1.
type CallBuiltin struct {
	Functor intern.FunctorID
	Arity   int
}

// Proceed instruction: proceed
type Proceed struct{}

// Try instruction: try <addr>
//
// Pushes a choice point resuming at the next instruction, and jumps to addr.
type Try struct {
	Arity        int
	Continuation int
}

// Retry instruction: retry <addr>
type Retry struct {
	Continuation int
}

// Trust instruction: trust <addr>
type Trust struct {
	Continuation int
}

// SwitchOnTerm instruction: switch_on_term <var>, <const>, <struct>
type SwitchOnTerm struct {
	IfVar      int
	IfConstant int
	IfStruct   int
}

// SwitchOnConstant instruction: switch_on_constant <table>, <default>
type SwitchOnConstant struct {
	Continuation map[Cell]int
	Default      int
}

// SwitchOnStruct instruction: switch_on_struct <table>, <default>
//
// Keys are functor header cells.
type SwitchOnStruct struct {
	Continuation map[Cell]int
	Default      int
}

// NeckCut instruction: neck_cut
type NeckCut struct{}

// Cut instruction: cut
type Cut struct{}

// Fail instruction: fail
type Fail struct{}

// Halt instruction: halt
type Halt struct{}

func (GetVariable) isInstruction()      {}
func (GetValue) isInstruction()         {}
func (GetConstant) isInstruction()      {}
func (GetStruct) isInstruction()        {}
func (PutVariable) isInstruction()      {}
func (PutValue) isInstruction()         {}
func (PutConstant) isInstruction()      {}
func (PutStruct) isInstruction()        {}
func (UnifyVariable) isInstruction()    {}
func (UnifyValue) isInstruction()       {}
func (UnifyConstant) isInstruction()    {}
func (UnifyVoid) isInstruction()        {}
func (Allocate) isInstruction()         {}
func (Deallocate) isInstruction()       {}
func (Call) isInstruction()             {}
func (Execute) isInstruction()          {}
func (CallMeta) isInstruction()         {}
func (ExecuteMeta) isInstruction()      {}
func (CallBuiltin) isInstruction()      {}
func (Proceed) isInstruction()          {}
func (Try) isInstruction()              {}
func (Retry) isInstruction()            {}
func (Trust) isInstruction()            {}
func (SwitchOnTerm) isInstruction()     {}
func (SwitchOnConstant) isInstruction() {}
func (SwitchOnStruct) isInstruction()   {}
func (NeckCut) isInstruction()          {}
func (Cut) isInstruction()              {}
func (Fail) isInstruction()             {}
func (Halt) isInstruction()             {}

func (i GetVariable) String() string      { return formatInstruction(nil, i) }
func (i GetValue) String() string         { return formatInstruction(nil, i) }
func (i GetConstant) String() string      { return formatInstruction(nil, i) }
func (i GetStruct) String() string        { return formatInstruction(nil, i) }
func (i PutVariable) String() string      { return formatInstruction(nil, i) }
func (i PutValue) String() string         { return formatInstruction(nil, i) }
func (i PutConstant) String() string      { return formatInstruction(nil, i) }
func (i PutStruct) String() string        { return formatInstruction(nil, i) }
func (i UnifyVariable) String() string    { return formatInstruction(nil, i) }
func (i UnifyValue) String() string       { return formatInstruction(nil, i) }
func (i UnifyConstant) String() string    { return formatInstruction(nil, i) }
func (i UnifyVoid) String() string        { return formatInstruction(nil, i) }
func (i Allocate) String() string         { return formatInstruction(nil, i) }
func (i Deallocate) String() string       { return formatInstruction(nil, i) }
func (i Call) String() string             { return formatInstruction(nil, i) }
func (i Execute) String() string          { return formatInstruction(nil, i) }
func (i CallMeta) String() string         { return formatInstruction(nil, i) }
func (i ExecuteMeta) String() string      { return formatInstruction(nil, i) }
func (i CallBuiltin) String() string      { return formatInstruction(nil, i) }
func (i Proceed) String() string          { return formatInstruction(nil, i) }
func (i Try) String() string              { return formatInstruction(nil, i) }
func (i Retry) String() string            { return formatInstruction(nil, i) }
func (i Trust) String() string            { return formatInstruction(nil, i) }
func (i SwitchOnTerm) String() string     { return formatInstruction(nil, i) }
func (i SwitchOnConstant) String() string { return formatInstruction(nil, i) }
func (i SwitchOnStruct) String() string   { return formatInstruction(nil, i) }
func (i NeckCut) String() string          { return formatInstruction(nil, i) }
func (i Cut) String() string              { return formatInstruction(nil, i) }
func (i Fail) String() string             { return formatInstruction(nil, i) }
func (i Halt) String() string             { return formatInstruction(nil, i) }

// ---- Machine state

// Env is an environment frame, holding the permanent vars of a clause.
type Env struct {
	Prev         *Env
	Continuation int
	Vars         []Cell
	// Height of the choice point stack when the clause was called.
	CutChoice int
}

// ChoicePoint saves the machine state to resume an alternative on failure.
type ChoicePoint struct {
	Alternative  int
	Args         []Cell
	TrailSize    int
	HeapSize     int
	Env          *Env
	Continuation int
	CutChoice    int
}

// UnificationMode is the mode of unify_* instructions.
type UnificationMode int

// Unification modes.
const (
	// Read mode unifies with the args of an existing struct.
	Read UnificationMode = iota
	// Write mode builds a new struct on the heap.
	Write
)

func (mode UnificationMode) String() string {
	if mode == Write {
		return "write"
	}
	return "read"
}

// State is the control state of a machine.
type State int

// Machine states.
const (
	// Ready machines have a query loaded but not started.
	Ready State = iota
	// Running machines are executing instructions forward.
	Running
	// Backtracking machines are restoring the latest choice point.
	Backtracking
	// Succeeded machines reached the end of the query with a solution.
	Succeeded
	// Exhausted machines have no choice points left.
	Exhausted
	// Faulted machines stopped on an error.
	Faulted
)

var stateNames = [...]string{"ready", "running", "backtracking", "succeeded", "exhausted", "faulted"}

func (s State) String() string {
	return stateNames[s]
}

// StepOutcome is the result of executing a single instruction.
type StepOutcome int

// Step outcomes.
const (
	// Continue means the instruction succeeded and the machine may step again.
	Continue StepOutcome = iota
	// Failed means the instruction failed, and the machine must backtrack.
	Failed
	// Complete means the query reached halt with a solution.
	Complete
)

func (o StepOutcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Failed:
		return "failed"
	}
	return "complete"
}
