// Package errors builds formatted errors that keep the first error argument
// as their cause.
package errors

import (
	stderrors "errors"
	"fmt"
)

type err struct {
	msg  string
	args []any
}

func (err *err) Error() string {
	return fmt.Sprintf(err.msg, err.args...)
}

func (err *err) Unwrap() error {
	for _, arg := range err.args {
		if wrapped, ok := arg.(error); ok {
			return wrapped
		}
	}
	return nil
}

// New returns an error formatted like fmt.Sprintf(msg, args...). The first
// error within args is returned by Unwrap.
func New(msg string, args ...any) error {
	return &err{msg, args}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
