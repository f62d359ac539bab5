package test_helpers

import (
	"github.com/prologkit/warren/logic"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var (
	// IgnoreUnexported skips cached fields of logic terms.
	IgnoreUnexported = cmp.Options{
		cmpopts.IgnoreUnexported(logic.Comp{}),
		cmpopts.IgnoreUnexported(logic.List{}),
		cmpopts.IgnoreUnexported(logic.Clause{}),
	}
)
