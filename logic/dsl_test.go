package logic_test

import (
	"github.com/prologkit/warren/dsl"
)

var (
	atom   = dsl.Atom
	clause = dsl.Clause
	comp   = dsl.Comp
	float  = dsl.Float
	ilist  = dsl.IList
	int_   = dsl.Int
	list   = dsl.List
	var_   = dsl.Var
)
