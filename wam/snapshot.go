package wam

// Snapshot is the state of a machine after a step, as seen by an Observer.
type Snapshot struct {
	Clock       int      `json:"clock" cbor:"clock"`
	CodePtr     int      `json:"code_ptr" cbor:"code_ptr"`
	Instruction string   `json:"instr" cbor:"instr"`
	Outcome     string   `json:"outcome" cbor:"outcome"`
	State       string   `json:"state" cbor:"state"`
	Mode        string   `json:"mode" cbor:"mode"`
	Registers   []string `json:"regs,omitempty" cbor:"regs,omitempty"`
	HeapSize    int      `json:"heap" cbor:"heap"`
	TrailSize   int      `json:"trail" cbor:"trail"`
	Choices     int      `json:"choices" cbor:"choices"`
	EnvDepth    int      `json:"env_depth" cbor:"env_depth"`
}

// Observer receives machine snapshots. Observe is called synchronously
// within Step, so slow observers should buffer or drop snapshots.
type Observer interface {
	Observe(Snapshot)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Snapshot)

// Observe calls f(s).
func (f ObserverFunc) Observe(s Snapshot) {
	f(s)
}

func (m *Machine) snapshot(instr Instruction, outcome StepOutcome) Snapshot {
	in := m.prog.Interner
	regs := make([]string, 0, len(m.Reg))
	for _, c := range m.Reg {
		regs = append(regs, formatCell(in, c))
	}
	depth := 0
	for env := m.Env; env != nil; env = env.Prev {
		depth++
	}
	return Snapshot{
		Clock:       m.Clock,
		CodePtr:     m.CodePtr,
		Instruction: formatInstruction(in, instr),
		Outcome:     outcome.String(),
		State:       m.State.String(),
		Mode:        m.Mode.String(),
		Registers:   regs,
		HeapSize:    len(m.Heap),
		TrailSize:   len(m.Trail),
		Choices:     len(m.Choices),
		EnvDepth:    depth,
	}
}
