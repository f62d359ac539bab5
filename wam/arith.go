package wam

import (
	"math"

	"github.com/prologkit/warren/logic"
)

// Operations on ints return ok=false on overflow.
type (
	intOp   func(a, b int64) (int64, bool)
	floatOp func(a, b float64) float64
)

// binaryOp is an evaluable functor of arity 2.
//
// If both args are ints and the op has an intOp, the result is an int.
// Otherwise args are promoted to floats.
type binaryOp struct {
	ints     intOp
	floats   floatOp
	intsOnly bool
}

type unaryOp struct {
	ints   func(a int64) (int64, bool)
	floats func(a float64) float64
	// toInt ops always return ints, e.g., truncate.
	toInt func(a float64) float64
}

var binaryOps = map[string]binaryOp{
	"+":     {ints: addInts, floats: func(a, b float64) float64 { return a + b }},
	"-":     {ints: subInts, floats: func(a, b float64) float64 { return a - b }},
	"*":     {ints: mulInts, floats: func(a, b float64) float64 { return a * b }},
	"/":     {floats: func(a, b float64) float64 { return a / b }},
	"//":    {ints: quoInts, intsOnly: true},
	"mod":   {ints: modInts, intsOnly: true},
	"rem":   {ints: remInts, intsOnly: true},
	"min":   {ints: func(a, b int64) (int64, bool) { return min(a, b), true }, floats: math.Min},
	"max":   {ints: func(a, b int64) (int64, bool) { return max(a, b), true }, floats: math.Max},
	"**":    {ints: powInts, floats: math.Pow},
	"^":     {ints: powInts, floats: math.Pow},
	">>":    {ints: shiftRight, intsOnly: true},
	"<<":    {ints: shiftLeft, intsOnly: true},
	"/\\":   {ints: func(a, b int64) (int64, bool) { return a & b, true }, intsOnly: true},
	"\\/":   {ints: func(a, b int64) (int64, bool) { return a | b, true }, intsOnly: true},
	"xor":   {ints: func(a, b int64) (int64, bool) { return a ^ b, true }, intsOnly: true},
	"atan2": {floats: math.Atan2},
}

var unaryOps = map[string]unaryOp{
	"-":                     {ints: negInt, floats: func(a float64) float64 { return -a }},
	"+":                     {ints: func(a int64) (int64, bool) { return a, true }, floats: func(a float64) float64 { return a }},
	"abs":                   {ints: absInt, floats: math.Abs},
	"sign":                  {ints: signInt, floats: signFloat},
	"\\":                    {ints: func(a int64) (int64, bool) { return ^a, true }},
	"sqrt":                  {floats: math.Sqrt},
	"sin":                   {floats: math.Sin},
	"cos":                   {floats: math.Cos},
	"tan":                   {floats: math.Tan},
	"atan":                  {floats: math.Atan},
	"exp":                   {floats: math.Exp},
	"log":                   {floats: math.Log},
	"float":                 {floats: func(a float64) float64 { return a }},
	"float_integer_part":    {floats: math.Trunc},
	"float_fractional_part": {floats: func(a float64) float64 { return a - math.Trunc(a) }},
	"integer":               {ints: func(a int64) (int64, bool) { return a, true }, toInt: math.Round},
	"truncate":              {ints: func(a int64) (int64, bool) { return a, true }, toInt: math.Trunc},
	"round":                 {ints: func(a int64) (int64, bool) { return a, true }, toInt: math.Round},
	"ceiling":               {ints: func(a int64) (int64, bool) { return a, true }, toInt: math.Ceil},
	"floor":                 {ints: func(a int64) (int64, bool) { return a, true }, toInt: math.Floor},
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// ---- integer ops

func addInts(a, b int64) (int64, bool) {
	r := a + b
	return r, (a >= 0) != (b >= 0) || (r >= 0) == (a >= 0)
}

func subInts(a, b int64) (int64, bool) {
	r := a - b
	return r, (a >= 0) == (b >= 0) || (r >= 0) == (a >= 0)
}

func mulInts(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return r, r/b == a
}

func quoInts(a, b int64) (int64, bool) {
	if a == math.MinInt64 && b == -1 {
		return 0, false
	}
	return a / b, true
}

// mod takes the sign of the divisor, while rem takes the sign of the dividend.
func modInts(a, b int64) (int64, bool) {
	m := a % b
	if m != 0 && (m < 0) != (b < 0) {
		m += b
	}
	return m, true
}

func remInts(a, b int64) (int64, bool) {
	if b == -1 {
		return 0, true
	}
	return a % b, true
}

// powInts computes a**b for b >= 0 by repeated squaring.
func powInts(a, b int64) (int64, bool) {
	switch a {
	case 0:
		if b == 0 {
			return 1, true
		}
		return 0, true
	case 1:
		return 1, true
	case -1:
		if b%2 == 0 {
			return 1, true
		}
		return -1, true
	}
	r := int64(1)
	for ok := true; b > 0; b >>= 1 {
		if b&1 == 1 {
			if r, ok = mulInts(r, a); !ok {
				return 0, false
			}
		}
		if b > 1 {
			if a, ok = mulInts(a, a); !ok {
				return 0, false
			}
		}
	}
	return r, true
}

// Shifting an int past 64 bits overflows on the left, and on the right leaves
// only the sign.
func shiftLeft(a, b int64) (int64, bool) {
	if b < 0 || b >= 64 {
		return 0, a == 0 && b >= 0
	}
	r := a << uint64(b)
	return r, r>>uint64(b) == a
}

func shiftRight(a, b int64) (int64, bool) {
	if b < 0 {
		return 0, false
	}
	if b >= 64 {
		b = 63
	}
	return a >> uint64(b), true
}

func negInt(a int64) (int64, bool) {
	return -a, a != math.MinInt64
}

func absInt(a int64) (int64, bool) {
	if a < 0 {
		return negInt(a)
	}
	return a, true
}

func signInt(a int64) (int64, bool) {
	switch {
	case a > 0:
		return 1, true
	case a < 0:
		return -1, true
	}
	return 0, true
}

func signFloat(a float64) float64 {
	switch {
	case a > 0:
		return 1
	case a < 0:
		return -1
	}
	return 0
}

// ---- evaluation

type evaluator struct {
	m    *Machine
	pred string
}

func (ev evaluator) fault(kind ErrorKind, expected string, culprit Cell) error {
	return &ArithmeticError{Kind: kind, Predicate: ev.pred, Expected: expected, Culprit: ev.m.format(culprit)}
}

func (ev evaluator) evalError(name string) error {
	return &ArithmeticError{Kind: EvaluationError, Predicate: ev.pred, Expected: name}
}

func (ev evaluator) notEvaluable(name string, arity int) error {
	return &ArithmeticError{
		Kind:      TypeError,
		Predicate: ev.pred,
		Expected:  "evaluable",
		Culprit:   logic.Indicator{Name: name, Arity: arity}.String(),
	}
}

// checkFloat rejects results that are not finite numbers.
func (ev evaluator) checkFloat(f float64) (Cell, error) {
	if math.IsNaN(f) {
		return Cell{}, ev.evalError("undefined")
	}
	if math.IsInf(f, 0) {
		return Cell{}, ev.evalError("float_overflow")
	}
	return Float(f), nil
}

// Eval evaluates an arithmetic expression into an int or float cell.
func (m *Machine) Eval(c Cell) (Cell, error) {
	return evaluator{m, "is/2"}.eval(c)
}

func (ev evaluator) eval(c Cell) (Cell, error) {
	m := ev.m
	c = m.deref(c)
	switch c.Tag {
	case IntTag, FloatTag:
		return c, nil
	case RefTag:
		return Cell{}, &ArithmeticError{Kind: InstantiationError, Predicate: ev.pred}
	case AtomTag:
		name := m.functor(c.FunctorID()).Name
		if f, ok := constants[name]; ok {
			return Float(f), nil
		}
		return Cell{}, ev.notEvaluable(name, 0)
	}
	f, args := m.structArgs(c)
	name := m.functor(f.FunctorID()).Name
	switch len(args) {
	case 1:
		op, ok := unaryOps[name]
		if !ok {
			return Cell{}, ev.notEvaluable(name, 1)
		}
		x, err := ev.eval(args[0])
		if err != nil {
			return Cell{}, err
		}
		return ev.applyUnary(op, x)
	case 2:
		op, ok := binaryOps[name]
		if !ok {
			return Cell{}, ev.notEvaluable(name, 2)
		}
		x, err := ev.eval(args[0])
		if err != nil {
			return Cell{}, err
		}
		y, err := ev.eval(args[1])
		if err != nil {
			return Cell{}, err
		}
		return ev.applyBinary(name, op, x, y)
	}
	return Cell{}, ev.notEvaluable(name, len(args))
}

func (ev evaluator) applyUnary(op unaryOp, x Cell) (Cell, error) {
	if x.Tag == IntTag {
		if op.ints != nil {
			r, ok := op.ints(x.Val)
			if !ok {
				return Cell{}, ev.evalError("int_overflow")
			}
			return Int(r), nil
		}
		if op.floats == nil {
			return Cell{}, ev.fault(TypeError, "float", x)
		}
		return ev.checkFloat(op.floats(float64(x.Val)))
	}
	f := x.Float()
	switch {
	case op.toInt != nil:
		r := op.toInt(f)
		if math.IsNaN(r) || r < math.MinInt64 || r >= math.MaxInt64 {
			return Cell{}, ev.evalError("int_overflow")
		}
		return Int(int64(r)), nil
	case op.floats != nil:
		return ev.checkFloat(op.floats(f))
	}
	return Cell{}, ev.fault(TypeError, "integer", x)
}

func (ev evaluator) applyBinary(name string, op binaryOp, x, y Cell) (Cell, error) {
	if x.Tag == IntTag && y.Tag == IntTag {
		a, b := x.Val, y.Val
		switch name {
		case "/":
			if b == 0 {
				return Cell{}, ev.evalError("zero_divisor")
			}
			// Exact int division stays int.
			if a%b == 0 && !(a == math.MinInt64 && b == -1) {
				return Int(a / b), nil
			}
			return ev.checkFloat(float64(a) / float64(b))
		case "//", "mod", "rem":
			if b == 0 {
				return Cell{}, ev.evalError("zero_divisor")
			}
		case "**", "^":
			if b < 0 {
				switch {
				case a == 1:
					return Int(1), nil
				case a == -1 && b%2 == 0:
					return Int(1), nil
				case a == -1:
					return Int(-1), nil
				case name == "^":
					return Cell{}, ev.fault(TypeError, "float", x)
				}
				return ev.checkFloat(math.Pow(float64(a), float64(b)))
			}
		}
		if op.ints != nil {
			r, ok := op.ints(a, b)
			if !ok {
				return Cell{}, ev.evalError("int_overflow")
			}
			return Int(r), nil
		}
	}
	if op.intsOnly {
		if x.Tag != IntTag {
			return Cell{}, ev.fault(TypeError, "integer", x)
		}
		return Cell{}, ev.fault(TypeError, "integer", y)
	}
	a, b := numberValue(x), numberValue(y)
	if name == "/" && b == 0 {
		return Cell{}, ev.evalError("zero_divisor")
	}
	return ev.checkFloat(op.floats(a, b))
}

// compareArith compares two evaluated numbers. Ints are compared exactly,
// and mixed args are promoted to floats.
func compareArith(x, y Cell) ordering {
	if x.Tag == IntTag && y.Tag == IntTag {
		return compareInts(x.Val, y.Val)
	}
	return compareFloats(numberValue(x), numberValue(y))
}
