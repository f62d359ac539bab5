package wam

// ---- trail

// TrailMark returns the current trail size, to be restored with UndoTrail.
func (m *Machine) TrailMark() int {
	return len(m.Trail)
}

// UndoTrail resets every binding recorded after mark, newest first.
func (m *Machine) UndoTrail(mark int) {
	m.undoTrail(mark)
}

func (m *Machine) undoTrail(mark int) {
	for i := len(m.Trail) - 1; i >= mark; i-- {
		addr := m.Trail[i]
		m.Heap[addr] = Ref(addr)
	}
	m.Trail = m.Trail[:mark]
}

// bindRef sets the unbound var at addr to c, and records it in the trail.
func (m *Machine) bindRef(addr int, c Cell) {
	m.Heap[addr] = c
	m.Trail = append(m.Trail, addr)
}

// bind binds two dereferenced cells, where at least one is an unbound ref.
//
// When both are refs, the newest one (with the higher address) is bound to
// the oldest. Older vars outlive newer ones on backtracking, so a binding
// never points to a heap cell that may be discarded before it.
func (m *Machine) bind(c1, c2 Cell) {
	r1, r2 := c1.Tag == RefTag, c2.Tag == RefTag
	if r1 && (!r2 || c1.Val > c2.Val) {
		m.bindRef(c1.Addr(), c2)
	} else {
		m.bindRef(c2.Addr(), c1)
	}
}

// ---- unification

// Unify unifies two cells, binding free vars and recording them in the trail.
//
// A false result leaves the bindings made before the mismatch in place;
// callers must save a trail mark beforehand to undo them.
func (m *Machine) Unify(a, b Cell) bool {
	return m.unify(a, b)
}

// Pairs of structs already unified are tracked once a unification visits more
// than this many of them, so that cyclic terms made without occurs check
// unify in finite time.
const cycleCheckThreshold = 64

type structPair struct{ a1, a2 int }

func (m *Machine) unify(a, b Cell) bool {
	stack := []Cell{a, b}
	var visits int
	var visited map[structPair]struct{}
	for len(stack) > 0 {
		n := len(stack)
		c1, c2 := m.deref(stack[n-2]), m.deref(stack[n-1])
		stack = stack[:n-2]
		if c1 == c2 {
			continue
		}
		if c1.Tag == RefTag || c2.Tag == RefTag {
			if m.OccursCheck && m.occurs(c1, c2) {
				return false
			}
			m.bind(c1, c2)
			continue
		}
		if c1.Tag != StructTag || c2.Tag != StructTag {
			// Distinct atomic cells, or atomic and struct.
			return false
		}
		f1, args1 := m.structArgs(c1)
		f2, args2 := m.structArgs(c2)
		if f1 != f2 {
			return false
		}
		if visits++; visits > cycleCheckThreshold {
			if visited == nil {
				visited = make(map[structPair]struct{})
			}
			pair := structPair{c1.Addr(), c2.Addr()}
			if pair.a1 > pair.a2 {
				pair.a1, pair.a2 = pair.a2, pair.a1
			}
			if _, ok := visited[pair]; ok {
				continue
			}
			visited[pair] = struct{}{}
		}
		// Push pairs in reverse, so that the first arg is unified first.
		for i := len(args1) - 1; i >= 0; i-- {
			stack = append(stack, args1[i], args2[i])
		}
	}
	return true
}

// occurs reports whether binding the ref in (c1, c2) to the other cell would
// create a cyclic term.
func (m *Machine) occurs(c1, c2 Cell) bool {
	x, t := c1, c2
	if x.Tag != RefTag {
		x, t = c2, c1
	}
	if t.Tag != StructTag {
		return false
	}
	stack := []Cell{t}
	for len(stack) > 0 {
		c := m.deref(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		switch c.Tag {
		case RefTag:
			if c == x {
				return true
			}
		case StructTag:
			_, args := m.structArgs(c)
			stack = append(stack, args...)
		}
	}
	return false
}
