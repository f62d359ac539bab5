package wam

import (
	"fmt"
	"strings"
)

type ordering int

const (
	equal ordering = iota
	less
	more
)

func compareInts(i1, i2 int64) ordering {
	if i1 < i2 {
		return less
	}
	if i1 > i2 {
		return more
	}
	return equal
}

func compareFloats(f1, f2 float64) ordering {
	if f1 < f2 {
		return less
	}
	if f1 > f2 {
		return more
	}
	return equal
}

// Standard order of terms: Var < Number < Atom < Compound.
func cellOrder(c Cell) int {
	switch c.Tag {
	case RefTag:
		return 1
	case IntTag, FloatTag:
		return 2
	case AtomTag:
		return 3
	case StructTag:
		return 4
	}
	panic(fmt.Sprintf("cellOrder: unhandled cell %v", c))
}

func numberValue(c Cell) float64 {
	if c.Tag == FloatTag {
		return c.Float()
	}
	return float64(c.Val)
}

// compareNumbers compares by value. If equal, floats come before ints.
func compareNumbers(c1, c2 Cell) ordering {
	if c1.Tag == IntTag && c2.Tag == IntTag {
		return compareInts(c1.Val, c2.Val)
	}
	if o := compareFloats(numberValue(c1), numberValue(c2)); o != equal {
		return o
	}
	switch {
	case c1.Tag == c2.Tag:
		return equal
	case c1.Tag == FloatTag:
		return less
	}
	return more
}

// compareCells compares terms in standard order. Vars are ordered by age,
// and compound terms by arity, name and then args from left to right.
func (m *Machine) compareCells(c1, c2 Cell) ordering {
	stack := []Cell{c1, c2}
	for len(stack) > 0 {
		n := len(stack)
		c1, c2 := m.deref(stack[n-2]), m.deref(stack[n-1])
		stack = stack[:n-2]
		if c1 == c2 {
			continue
		}
		if o := compareInts(int64(cellOrder(c1)), int64(cellOrder(c2))); o != equal {
			return o
		}
		switch c1.Tag {
		case RefTag:
			return compareInts(c1.Val, c2.Val)
		case IntTag, FloatTag:
			if o := compareNumbers(c1, c2); o != equal {
				return o
			}
		case AtomTag:
			name1, name2 := m.functor(c1.FunctorID()).Name, m.functor(c2.FunctorID()).Name
			if o := normalize(strings.Compare(name1, name2)); o != equal {
				return o
			}
		case StructTag:
			f1, args1 := m.structArgs(c1)
			f2, args2 := m.structArgs(c2)
			if o := compareInts(int64(f1.Arity), int64(f2.Arity)); o != equal {
				return o
			}
			name1, name2 := m.functor(f1.FunctorID()).Name, m.functor(f2.FunctorID()).Name
			if o := normalize(strings.Compare(name1, name2)); o != equal {
				return o
			}
			// Push pairs in reverse, so that the first arg is compared first.
			for i := len(args1) - 1; i >= 0; i-- {
				stack = append(stack, args1[i], args2[i])
			}
		}
	}
	return equal
}

func normalize(cmp int) ordering {
	switch {
	case cmp < 0:
		return less
	case cmp > 0:
		return more
	}
	return equal
}
