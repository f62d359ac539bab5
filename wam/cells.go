package wam

import (
	"fmt"
	"math"

	"github.com/prologkit/warren/intern"
)

// Tag identifies the kind of term stored in a Cell.
type Tag uint8

// Cell tags.
const (
	// RefTag is a variable. A ref pointing to itself is unbound.
	RefTag Tag = iota
	// AtomTag holds a 0-arity FunctorID.
	AtomTag
	// IntTag holds an int64.
	IntTag
	// FloatTag holds the bits of a float64.
	FloatTag
	// StructTag points to the heap address of a FunctorTag cell.
	StructTag
	// FunctorTag heads a struct on the heap, followed by Arity arg cells.
	FunctorTag
)

var tagNames = [...]string{"ref", "atom", "int", "float", "struct", "functor"}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", t)
}

// Cell is a tagged word. Heap, registers and environments are made of cells.
//
// Cells are comparable values: two atomic cells are equal iff they represent
// the same constant.
type Cell struct {
	Tag   Tag
	Arity uint32
	Val   int64
}

// Ref returns a reference to a heap address.
func Ref(addr int) Cell { return Cell{Tag: RefTag, Val: int64(addr)} }

// Atom returns an atom cell.
func Atom(id intern.FunctorID) Cell { return Cell{Tag: AtomTag, Val: int64(id)} }

// Int returns an integer cell.
func Int(i int64) Cell { return Cell{Tag: IntTag, Val: i} }

// Float returns a float cell.
func Float(f float64) Cell { return Cell{Tag: FloatTag, Val: int64(math.Float64bits(f))} }

// Struct returns a pointer to a functor cell at addr.
func Struct(addr int) Cell { return Cell{Tag: StructTag, Val: int64(addr)} }

// Functor returns a struct header for id with the given arity.
func Functor(id intern.FunctorID, arity int) Cell {
	return Cell{Tag: FunctorTag, Arity: uint32(arity), Val: int64(id)}
}

// Addr returns the heap address of refs and structs.
func (c Cell) Addr() int { return int(c.Val) }

// FunctorID returns the id of atoms and functor headers.
func (c Cell) FunctorID() intern.FunctorID { return intern.FunctorID(c.Val) }

// Float returns the value of a float cell.
func (c Cell) Float() float64 { return math.Float64frombits(uint64(c.Val)) }

// IsAtomic returns whether c is an atom or a number.
func (c Cell) IsAtomic() bool {
	return c.Tag == AtomTag || c.Tag == IntTag || c.Tag == FloatTag
}

// IsNumber returns whether c is an int or a float.
func (c Cell) IsNumber() bool {
	return c.Tag == IntTag || c.Tag == FloatTag
}

// String formats a cell without resolving names or following pointers.
func (c Cell) String() string {
	switch c.Tag {
	case RefTag:
		return fmt.Sprintf("_G%d", c.Val)
	case AtomTag:
		return fmt.Sprintf("atom#%d", c.Val)
	case IntTag:
		return fmt.Sprintf("%d", c.Val)
	case FloatTag:
		return fmt.Sprintf("%g", c.Float())
	case StructTag:
		return fmt.Sprintf("STR@%d", c.Val)
	case FunctorTag:
		return fmt.Sprintf("functor#%d/%d", c.Val, c.Arity)
	}
	return fmt.Sprintf("%v(%d)", c.Tag, c.Val)
}

// ---- heap

// newVar pushes an unbound variable on the heap.
func (m *Machine) newVar() Cell {
	addr := len(m.Heap)
	c := Ref(addr)
	m.Heap = append(m.Heap, c)
	return c
}

// push appends a cell on the heap.
func (m *Machine) push(c Cell) {
	m.Heap = append(m.Heap, c)
}

// deref follows bound refs until reaching a value or an unbound ref.
func (m *Machine) deref(c Cell) Cell {
	for c.Tag == RefTag {
		next := m.Heap[c.Val]
		if next == c {
			return c
		}
		c = next
	}
	return c
}

// isUnbound reports whether c is a ref to itself.
func (m *Machine) isUnbound(c Cell) bool {
	return c.Tag == RefTag && m.Heap[c.Val] == c
}

// structArgs returns the functor header and arg cells of a struct.
func (m *Machine) structArgs(c Cell) (Cell, []Cell) {
	f := m.Heap[c.Val]
	start := int(c.Val) + 1
	return f, m.Heap[start : start+int(f.Arity)]
}

// NewVar returns a fresh unbound variable.
func (m *Machine) NewVar() Cell {
	return m.newVar()
}

// NewStruct builds a struct on the heap with the given args.
func (m *Machine) NewStruct(id intern.FunctorID, args ...Cell) Cell {
	if len(args) == 0 {
		return Atom(id)
	}
	addr := len(m.Heap)
	m.push(Functor(id, len(args)))
	for _, arg := range args {
		m.push(arg)
	}
	return Struct(addr)
}

// Deref returns the value of c after following all bindings.
func (m *Machine) Deref(c Cell) Cell {
	return m.deref(c)
}
