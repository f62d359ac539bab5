package wam

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prologkit/warren/errors"
)

var (
	// ErrNoMoreSolutions is returned when the choice point stack is empty.
	// It is not a fault: it is the normal end of a solution sequence.
	ErrNoMoreSolutions = errors.New("no more solutions")
	// ErrResourceExhausted is matched by ResourceError.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrLinkage is matched by LinkageError.
	ErrLinkage = errors.New("linkage error")
	// ErrArithmetic is matched by ArithmeticError.
	ErrArithmetic = errors.New("arithmetic fault")
	// ErrBuiltin is matched by BuiltinError.
	ErrBuiltin = errors.New("builtin fault")
)

// ErrorKind classifies faults raised by builtins.
type ErrorKind int

// Error kinds.
const (
	// InstantiationError is raised when an argument is unbound but must not be.
	InstantiationError ErrorKind = iota
	// TypeError is raised when an argument has an unexpected type.
	TypeError
	// EvaluationError is raised when an arithmetic function is undefined for its args.
	EvaluationError
	// DomainError is raised when an argument has the right type but a bad value.
	DomainError
	// PermissionError is raised when modifying a builtin or control predicate.
	PermissionError
)

func (k ErrorKind) String() string {
	switch k {
	case InstantiationError:
		return "instantiation error"
	case TypeError:
		return "type error"
	case EvaluationError:
		return "evaluation error"
	case DomainError:
		return "domain error"
	case PermissionError:
		return "permission error"
	}
	return fmt.Sprintf("error kind %d", int(k))
}

func formatFault(kind ErrorKind, predicate, expected, culprit string) string {
	var b strings.Builder
	b.WriteString(kind.String())
	switch kind {
	case TypeError, DomainError:
		fmt.Fprintf(&b, ": expected %s, got %s", expected, culprit)
	case EvaluationError:
		fmt.Fprintf(&b, ": %s", expected)
	case PermissionError:
		fmt.Fprintf(&b, ": cannot %s %s", expected, culprit)
	}
	if predicate != "" {
		fmt.Fprintf(&b, " in %s", predicate)
	}
	return b.String()
}

// ArithmeticError is a fault raised while evaluating an arithmetic expression.
//
// It is never converted into a failure: it aborts the query.
type ArithmeticError struct {
	Kind      ErrorKind
	Predicate string
	// Expected is the expected type or domain, or the evaluation error name.
	Expected string
	Culprit  string
}

func (err *ArithmeticError) Error() string {
	return formatFault(err.Kind, err.Predicate, err.Expected, err.Culprit)
}

// Is makes errors.Is(err, ErrArithmetic) hold.
func (err *ArithmeticError) Is(target error) bool {
	return target == ErrArithmetic
}

// BuiltinError is a fault raised by a non-arithmetic builtin, e.g., calling
// an unbound goal.
type BuiltinError struct {
	Kind      ErrorKind
	Predicate string
	Expected  string
	Culprit   string
}

func (err *BuiltinError) Error() string {
	return formatFault(err.Kind, err.Predicate, err.Expected, err.Culprit)
}

// Is makes errors.Is(err, ErrBuiltin) hold.
func (err *BuiltinError) Is(target error) bool {
	return target == ErrBuiltin
}

// LinkageError is returned when code calls procedures that have no clauses.
type LinkageError struct {
	// Undefined predicate indicators, sorted.
	Undefined []string
}

func newLinkageError(undefined map[string]struct{}) *LinkageError {
	names := make([]string, 0, len(undefined))
	for name := range undefined {
		names = append(names, name)
	}
	sort.Strings(names)
	return &LinkageError{Undefined: names}
}

func (err *LinkageError) Error() string {
	return fmt.Sprintf("undefined procedures: %s", strings.Join(err.Undefined, ", "))
}

// Is makes errors.Is(err, ErrLinkage) hold.
func (err *LinkageError) Is(target error) bool {
	return target == ErrLinkage
}

// ResourceError is returned when a query exceeds one of the machine limits.
type ResourceError struct {
	// Resource is one of "iterations", "heap" or "choice points".
	Resource string
	Limit    int
}

func (err *ResourceError) Error() string {
	return fmt.Sprintf("resource exhausted: %s limit of %d reached", err.Resource, err.Limit)
}

// Is makes errors.Is(err, ErrResourceExhausted) hold.
func (err *ResourceError) Is(target error) bool {
	return target == ErrResourceExhausted
}
