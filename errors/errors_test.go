package errors_test

import (
	"io"
	"testing"

	"github.com/prologkit/warren/errors"
)

func TestNew(t *testing.T) {
	err := errors.New("reading %q: %v", "file.pl", io.EOF)
	if got, want := err.Error(), `reading "file.pl": EOF`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, io.EOF) {
		t.Errorf("errors.Is(%v, io.EOF) = false, want true", err)
	}
}

func TestUnwrapFirstError(t *testing.T) {
	err := errors.New("%v then %v", io.ErrUnexpectedEOF, io.EOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("want first error as cause")
	}
	if errors.Is(err, io.EOF) {
		t.Errorf("want only first error as cause")
	}
}
