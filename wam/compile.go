package wam

import (
	"fmt"

	"github.com/prologkit/warren/intern"
	"github.com/prologkit/warren/logic"
)

// Compute the permanent vars of a logic clause.
//
// A permanent var is a local var in a call that is referenced in more
// than one body term. They must be stored in the environment stack, or
// otherwise they may be overwritten if stored in a register, since a
// body term may use them in any ways.
func permanentVars(clause *logic.Clause) map[logic.Var]struct{} {
	perm := make(map[logic.Var]struct{})
	if len(clause.Body) < 2 {
		return perm
	}
	seen := make(map[logic.Var]struct{})
	// Vars in head are considered to be part of the first body term.
	for _, x := range logic.Vars(clause.Head) {
		seen[x] = struct{}{}
	}
	for _, x := range logic.Vars(clause.Body[0]) {
		seen[x] = struct{}{}
	}
	// Walk through other clause terms; vars that appear in more than
	// one term are permanent.
	for _, c := range clause.Body[1:] {
		for _, x := range logic.Vars(c) {
			if _, ok := seen[x]; ok {
				perm[x] = struct{}{}
			} else {
				seen[x] = struct{}{}
			}
		}
	}
	return perm
}

func numArgs(clause *logic.Clause) int {
	max := len(clause.Head.(*logic.Comp).Args)
	for _, term := range clause.Body {
		n := len(term.(*logic.Comp).Args)
		if n > max {
			max = n
		}
	}
	return max
}

func hasDeepcut(clause *logic.Clause) bool {
	for i, term := range clause.Body {
		if term.(*logic.Comp).Functor == "!" && i > 0 {
			return true
		}
	}
	return false
}

// ---- cuts within control constructs

// cutBarrier is the var that holds the choice stack height at clause entry,
// when a cut appears within a disjunction or if-then-else.
var cutBarrier = logic.Var{Name: "$B"}

// expandCuts rewrites cuts in the branches of ';'/2 and '->'/2 body goals into
// '$cut'(Barrier), so that they remove the choice points of the whole clause
// and not only those of the control construct. Barrier is read with
// '$get_level'/1 as the first body goal.
//
// Conditions of '->'/2, \+/1 and call/N are opaque to cut.
func expandCuts(clause *logic.Clause) *logic.Clause {
	body, ok := expandBodyCuts(clause.Body, cutBarrier)
	if !ok {
		return clause
	}
	getLevel := logic.NewComp("$get_level", cutBarrier)
	return logic.NewClause(clause.Head, append([]logic.Term{getLevel}, body...)...)
}

// expandQueryCuts rewrites cuts within control constructs of a query, whose
// barrier is the bottom of the choice stack.
func expandQueryCuts(clause *logic.Clause) *logic.Clause {
	body, ok := expandBodyCuts(clause.Body, logic.Int{Value: 0})
	if !ok {
		return clause
	}
	return logic.NewClause(clause.Head, body...)
}

func expandBodyCuts(goals []logic.Term, barrier logic.Term) ([]logic.Term, bool) {
	var changed bool
	body := make([]logic.Term, len(goals))
	for i, goal := range goals {
		body[i] = goal
		c, ok := goal.(*logic.Comp)
		if !ok || len(c.Args) != 2 || (c.Functor != ";" && c.Functor != "->") {
			continue
		}
		if t, ok := transparentCut(c, barrier); ok {
			body[i] = t
			changed = true
		}
	}
	return body, changed
}

func transparentCut(term logic.Term, barrier logic.Term) (logic.Term, bool) {
	switch t := term.(type) {
	case logic.Atom:
		if t.Name == "!" {
			return logic.NewComp("$cut", barrier), true
		}
	case *logic.Comp:
		if len(t.Args) == 0 && t.Functor == "!" {
			return logic.NewComp("$cut", barrier), true
		}
		if len(t.Args) != 2 {
			break
		}
		switch t.Functor {
		case ",", ";":
			a, ok1 := transparentCut(t.Args[0], barrier)
			b, ok2 := transparentCut(t.Args[1], barrier)
			if ok1 || ok2 {
				return logic.NewComp(t.Functor, a, b), true
			}
		case "->":
			if then, ok := transparentCut(t.Args[1], barrier); ok {
				return logic.NewComp("->", t.Args[0], then), true
			}
		}
	}
	return term, false
}

type compound struct {
	t    logic.Term
	addr RegAddr
}

// compileCtx wraps all the state necessary to compile a single clause.
type compileCtx struct {
	p       *Program
	topReg  RegAddr
	seen    map[logic.Var]struct{}
	varAddr map[logic.Var]Addr
	delayed []compound
	instrs  []Instruction
}

func (p *Program) newCompileCtx(numArgs int) *compileCtx {
	return &compileCtx{
		p:       p,
		topReg:  RegAddr(numArgs),
		seen:    make(map[logic.Var]struct{}),
		varAddr: make(map[logic.Var]Addr),
	}
}

func (ctx *compileCtx) constant(term logic.Term) Cell {
	switch t := term.(type) {
	case logic.Atom:
		return Atom(ctx.p.Interner.Atom(t.Name))
	case logic.Int:
		return Int(t.Value)
	case logic.Float:
		return Float(t.Value)
	}
	panic(fmt.Sprintf("wam.constant: unhandled type %T (%v)", term, term))
}

func (ctx *compileCtx) functor(c *logic.Comp) intern.FunctorID {
	return ctx.p.Interner.Functor(c.Functor, len(c.Args))
}

// ---- get/unify/put variables

func (ctx *compileCtx) getVar(x logic.Var, regAddr RegAddr) Instruction {
	if x.IsAnonymous() {
		return nil
	}
	if _, ok := ctx.seen[x]; ok {
		return GetValue{ctx.varAddr[x], regAddr}
	}
	ctx.seen[x] = struct{}{}
	return GetVariable{ctx.varAddr[x], regAddr}
}

func (ctx *compileCtx) unifyVar(x logic.Var) Instruction {
	if x.IsAnonymous() {
		return UnifyVoid{1}
	}
	if _, ok := ctx.seen[x]; ok {
		return UnifyValue{ctx.varAddr[x]}
	}
	ctx.seen[x] = struct{}{}
	return UnifyVariable{ctx.varAddr[x]}
}

func (ctx *compileCtx) putVar(x logic.Var, regAddr RegAddr) Instruction {
	if x.IsAnonymous() {
		addr := ctx.topReg
		ctx.topReg++
		return PutVariable{addr, regAddr}
	}
	if _, ok := ctx.seen[x]; ok {
		return PutValue{ctx.varAddr[x], regAddr}
	}
	ctx.seen[x] = struct{}{}
	return PutVariable{ctx.varAddr[x], regAddr}
}

// ---- get terms

func (ctx *compileCtx) getTerm(term logic.Term, addr RegAddr) []Instruction {
	switch t := term.(type) {
	case logic.Atom, logic.Int, logic.Float:
		return []Instruction{GetConstant{ctx.constant(t), addr}}
	case logic.Var:
		return []Instruction{ctx.getVar(t, addr)}
	case *logic.Comp:
		if len(t.Args) == 0 {
			return []Instruction{GetConstant{Atom(ctx.p.Interner.Atom(t.Functor)), addr}}
		}
		instrs := make([]Instruction, len(t.Args)+1)
		instrs[0] = GetStruct{ctx.functor(t), len(t.Args), addr}
		for i, arg := range t.Args {
			instrs[i+1] = ctx.unifyArg(arg)
		}
		return instrs
	case *logic.List:
		return ctx.getTerm(t.Comp(), addr)
	default:
		panic(fmt.Sprintf("wam.getTerm: unhandled type %T (%v)", term, term))
	}
}

// ---- unify terms

func (ctx *compileCtx) delayComplexArg(arg logic.Term) Instruction {
	addr := ctx.topReg
	ctx.topReg++
	ctx.delayed = append(ctx.delayed, compound{t: arg, addr: addr})
	return UnifyVariable{addr}
}

func (ctx *compileCtx) unifyArg(arg logic.Term) Instruction {
	switch a := arg.(type) {
	case logic.Atom, logic.Int, logic.Float:
		return UnifyConstant{ctx.constant(a)}
	case logic.Var:
		return ctx.unifyVar(a)
	case *logic.Comp:
		if len(a.Args) == 0 {
			return UnifyConstant{Atom(ctx.p.Interner.Atom(a.Functor))}
		}
		return ctx.delayComplexArg(a)
	case *logic.List:
		return ctx.delayComplexArg(a)
	default:
		panic(fmt.Sprintf("wam.unifyArg: unhandled type %T (%v)", arg, arg))
	}
}

// ---- put terms

func (ctx *compileCtx) putTerm(term logic.Term, addr RegAddr) []Instruction {
	switch t := term.(type) {
	case logic.Atom, logic.Int, logic.Float:
		return []Instruction{PutConstant{ctx.constant(t), addr}}
	case logic.Var:
		return []Instruction{ctx.putVar(t, addr)}
	case *logic.Comp:
		if len(t.Args) == 0 {
			return []Instruction{PutConstant{Atom(ctx.p.Interner.Atom(t.Functor)), addr}}
		}
		instrs := make([]Instruction, len(t.Args)+1)
		instrs[0] = PutStruct{ctx.functor(t), len(t.Args), addr}
		ctx.setArgs(t.Args, instrs)
		return instrs
	case *logic.List:
		return ctx.putTerm(t.Comp(), addr)
	default:
		panic(fmt.Sprintf("wam.putTerm: unhandled type %T (%v)", term, term))
	}
}

// Set arguments by first handling complex terms (comp, list) and later
// vars. This is necessary because complex terms may have vars within them, and
// these must be set first (e.g. with unify_variable) before the top-level reference.
//
// Example
//
//	f(A, g(A))
//	--> put_struct g/1, X3
//	    unify_variable X2     % A's reference within g/1 comes first
//	    put_struct f/2, X0
//	    unify_value X2        % A's reference within f/2 comes later
//	    unify_value X3
func (ctx *compileCtx) setArgs(args []logic.Term, instrs []Instruction) {
	var varIdxs []int
	for i, arg := range args {
		if _, ok := arg.(logic.Var); ok {
			varIdxs = append(varIdxs, i)
		} else {
			instrs[i+1] = ctx.setArg(arg)
		}
	}
	for _, idx := range varIdxs {
		instrs[idx+1] = ctx.setArg(args[idx])
	}
}

func (ctx *compileCtx) setArg(arg logic.Term) Instruction {
	switch a := arg.(type) {
	case logic.Atom, logic.Int, logic.Float:
		return UnifyConstant{ctx.constant(a)}
	case logic.Var:
		return ctx.unifyVar(a)
	case *logic.Comp:
		if len(a.Args) == 0 {
			return UnifyConstant{Atom(ctx.p.Interner.Atom(a.Functor))}
		}
		return ctx.setComplexArg(arg)
	case *logic.List:
		return ctx.setComplexArg(arg)
	default:
		panic(fmt.Sprintf("wam.setArg: unhandled type %T (%v)", arg, arg))
	}
}

func (ctx *compileCtx) setComplexArg(arg logic.Term) Instruction {
	addr := ctx.topReg
	ctx.topReg++
	instrs := ctx.putTerm(arg, addr)
	ctx.instrs = append(ctx.instrs, instrs...)
	return UnifyValue{addr}
}

// ---- compiling terms

// isInline returns whether a body term runs without a call, preserving the
// continuation register.
func (p *Program) isInline(term *logic.Comp) bool {
	switch term.Indicator() {
	case logic.Indicator{Name: "!", Arity: 0},
		logic.Indicator{Name: "true", Arity: 0},
		logic.Indicator{Name: "fail", Arity: 0},
		logic.Indicator{Name: "false", Arity: 0}:
		return true
	}
	if term.Functor == "call" && len(term.Args) > 0 {
		return false
	}
	_, ok := p.builtin(term.Functor, len(term.Args))
	return ok
}

func (ctx *compileCtx) compileBodyTerm(pos int, term *logic.Comp) []Instruction {
	ctx.instrs = nil
	switch term.Indicator() {
	case logic.Indicator{Name: "!", Arity: 0}:
		if pos == 0 {
			return []Instruction{NeckCut{}}
		}
		return []Instruction{Cut{}}
	case logic.Indicator{Name: "fail", Arity: 0}, logic.Indicator{Name: "false", Arity: 0}:
		return []Instruction{Fail{}}
	case logic.Indicator{Name: "true", Arity: 0}:
		return nil
	}
	// Put term args into registers X0-Xn, and then issue the call.
	for i, arg := range term.Args {
		instrs := ctx.putTerm(arg, RegAddr(i))
		ctx.instrs = append(ctx.instrs, instrs...)
	}
	if term.Functor == "call" && len(term.Args) > 0 {
		return append(ctx.instrs, CallMeta{len(term.Args)})
	}
	if id, ok := ctx.p.builtin(term.Functor, len(term.Args)); ok {
		return append(ctx.instrs, CallBuiltin{id, len(term.Args)})
	}
	return append(ctx.instrs, Call{ctx.functor(term)})
}

// compiledClause is the code for a single clause, before being placed in
// the program's code area.
type compiledClause struct {
	functor intern.FunctorID
	code    []Instruction
	numRegs int
	key     indexKey
	source  *logic.Clause
}

// compile lowers a normalized clause. Vars in permVars are stored in the
// environment; if isQuery, the clause ends in halt and keeps its environment.
func (p *Program) compile(clause *logic.Clause, permVars map[logic.Var]struct{}, isQuery bool) *compiledClause {
	head := clause.Head.(*logic.Comp)
	c := &compiledClause{functor: p.Interner.Functor(head.Functor, len(head.Args)), source: clause}
	ctx := p.newCompileCtx(numArgs(clause))
	// Designate address for each var (either in a register or on the stack)
	currStack := 0
	for _, x := range clause.Vars() {
		if _, ok := permVars[x]; ok {
			ctx.varAddr[x] = StackAddr(currStack)
			currStack++
		} else {
			ctx.varAddr[x] = ctx.topReg
			ctx.topReg++
		}
	}
	// Compile clause head
	var code []Instruction
	for i, term := range head.Args {
		code = append(code, ctx.getTerm(term, RegAddr(i))...)
	}
	for len(ctx.delayed) > 0 {
		buf := ctx.delayed
		ctx.delayed = nil
		for _, compound := range buf {
			code = append(code, ctx.getTerm(compound.t, compound.addr)...)
		}
	}
	// Compile clause body
	for i, term := range clause.Body {
		code = append(code, ctx.compileBodyTerm(i, term.(*logic.Comp))...)
	}
	code = removeNils(code)
	// A clause requires an environment to hold permanent vars, the cut
	// barrier for deep cuts, or the continuation if it calls other
	// procedures before its last goal.
	needsEnv := isQuery || currStack > 0 || hasDeepcut(clause)
	for i, term := range clause.Body {
		if i < len(clause.Body)-1 && !p.isInline(term.(*logic.Comp)) {
			needsEnv = true
		}
	}
	if isQuery {
		code = append(code, Halt{})
	} else {
		code = optimizeLastCall(code, needsEnv)
	}
	if needsEnv {
		code = append([]Instruction{Allocate{currStack}}, code...)
	}
	c.code = code
	c.numRegs = int(ctx.topReg)
	if len(head.Args) > 0 {
		c.key = ctx.indexKey(head.Args[0])
	}
	return c
}

func removeNils(code []Instruction) []Instruction {
	buf := code[:0]
	for _, instr := range code {
		if instr != nil {
			buf = append(buf, instr)
		}
	}
	return buf
}

// optimizeLastCall turns a final call into execute, after the environment
// is deallocated, if any. Other clauses end in proceed.
func optimizeLastCall(code []Instruction, hasEnv bool) []Instruction {
	var dealloc []Instruction
	if hasEnv {
		dealloc = []Instruction{Deallocate{}}
	}
	if n := len(code); n > 0 {
		switch instr := code[n-1].(type) {
		case Call:
			code = append(code[:n-1], dealloc...)
			return append(code, Execute{instr.Functor})
		case CallMeta:
			code = append(code[:n-1], dealloc...)
			return append(code, ExecuteMeta{instr.NumArgs})
		}
	}
	code = append(code, dealloc...)
	return append(code, Proceed{})
}
