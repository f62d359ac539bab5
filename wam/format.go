package wam

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prologkit/warren/intern"
	"github.com/prologkit/warren/logic"
)

// formatCell formats a cell without following pointers. Names are resolved
// with in, if not nil.
func formatCell(in *intern.Interner, c Cell) string {
	if in == nil {
		return c.String()
	}
	switch c.Tag {
	case AtomTag:
		if f, err := in.ResolveFunctor(c.FunctorID()); err == nil {
			return logic.FormatAtom(f.Name)
		}
	case FloatTag:
		return logic.FormatFloat(c.Float())
	case FunctorTag:
		if f, err := in.ResolveFunctor(c.FunctorID()); err == nil {
			return logic.Indicator{Name: f.Name, Arity: f.Arity}.String()
		}
	}
	return c.String()
}

func formatFunctor(in *intern.Interner, id intern.FunctorID, arity int) string {
	if in != nil {
		if f, err := in.ResolveFunctor(id); err == nil {
			return logic.Indicator{Name: f.Name, Arity: f.Arity}.String()
		}
	}
	if arity < 0 {
		return fmt.Sprintf("#%d", id)
	}
	return fmt.Sprintf("#%d/%d", id, arity)
}

func formatTable(in *intern.Interner, table map[Cell]int) string {
	entries := make([]string, 0, len(table))
	for c, addr := range table {
		entries = append(entries, fmt.Sprintf("%s: %d", formatCell(in, c), addr))
	}
	sort.Strings(entries)
	return "{" + strings.Join(entries, ", ") + "}"
}

// formatInstruction formats an instruction in WAM notation.
func formatInstruction(in *intern.Interner, instr Instruction) string {
	switch i := instr.(type) {
	case GetVariable:
		return fmt.Sprintf("get_variable %v, %v", i.Addr, i.ArgAddr)
	case GetValue:
		return fmt.Sprintf("get_value %v, %v", i.Addr, i.ArgAddr)
	case GetConstant:
		return fmt.Sprintf("get_constant %s, %v", formatCell(in, i.Constant), i.ArgAddr)
	case GetStruct:
		return fmt.Sprintf("get_struct %s, %v", formatFunctor(in, i.Functor, i.Arity), i.ArgAddr)
	case PutVariable:
		return fmt.Sprintf("put_variable %v, %v", i.Addr, i.ArgAddr)
	case PutValue:
		return fmt.Sprintf("put_value %v, %v", i.Addr, i.ArgAddr)
	case PutConstant:
		return fmt.Sprintf("put_constant %s, %v", formatCell(in, i.Constant), i.ArgAddr)
	case PutStruct:
		return fmt.Sprintf("put_struct %s, %v", formatFunctor(in, i.Functor, i.Arity), i.ArgAddr)
	case UnifyVariable:
		return fmt.Sprintf("unify_variable %v", i.Addr)
	case UnifyValue:
		return fmt.Sprintf("unify_value %v", i.Addr)
	case UnifyConstant:
		return fmt.Sprintf("unify_constant %s", formatCell(in, i.Constant))
	case UnifyVoid:
		return fmt.Sprintf("unify_void %d", i.NumVars)
	case Allocate:
		return fmt.Sprintf("allocate %d", i.NumVars)
	case Deallocate:
		return "deallocate"
	case Call:
		return fmt.Sprintf("call %s", formatFunctor(in, i.Functor, -1))
	case Execute:
		return fmt.Sprintf("execute %s", formatFunctor(in, i.Functor, -1))
	case CallMeta:
		return fmt.Sprintf("call_meta %d", i.NumArgs)
	case ExecuteMeta:
		return fmt.Sprintf("execute_meta %d", i.NumArgs)
	case CallBuiltin:
		return fmt.Sprintf("builtin %s", formatFunctor(in, i.Functor, i.Arity))
	case Proceed:
		return "proceed"
	case Try:
		return fmt.Sprintf("try %d", i.Continuation)
	case Retry:
		return fmt.Sprintf("retry %d", i.Continuation)
	case Trust:
		return fmt.Sprintf("trust %d", i.Continuation)
	case SwitchOnTerm:
		return fmt.Sprintf("switch_on_term %d, %d, %d", i.IfVar, i.IfConstant, i.IfStruct)
	case SwitchOnConstant:
		return fmt.Sprintf("switch_on_constant %s, %d", formatTable(in, i.Continuation), i.Default)
	case SwitchOnStruct:
		return fmt.Sprintf("switch_on_struct %s, %d", formatTable(in, i.Continuation), i.Default)
	case NeckCut:
		return "neck_cut"
	case Cut:
		return "cut"
	case Fail:
		return "fail"
	case Halt:
		return "halt"
	}
	return fmt.Sprintf("%T", instr)
}
