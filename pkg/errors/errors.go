package errors

import (
	goerrors "errors"
	"fmt"
)

// ContextError annotates an underlying error with a short description of the
// operation that failed. Chains of ContextErrors read outermost-first, so a
// typical message looks like "parse state record: open /x: no such file".
type ContextError struct {
	Context string
	Err     error
}

func (err ContextError) Error() string {
	return fmt.Sprintf("%s: %s", err.Context, err.Err)
}

// New returns an error with the given message.
func New(msg string) error {
	return goerrors.New(msg)
}

// WithContext wraps err with a short description of the operation that
// failed.
func WithContext(err error, context string) error {
	return ContextError{Context: context, Err: err}
}

// RootCause returns the innermost error in a chain of ContextErrors. Callers
// use it to inspect the original failure, e.g. to check whether it was a
// FileNotFound.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(ContextError)
		if !ok {
			return err
		}
		err = ctxErr.Err
	}
}
