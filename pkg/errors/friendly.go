package errors

import "fmt"

// friendlyError is implemented by errors that carry a message meant to be
// shown to the user as-is, rather than as part of a context chain.
type friendlyError interface {
	FriendlyMessage() string
}

// FriendlyError is the basic friendly error: a bare message for the user.
type FriendlyError struct {
	Message string
}

func (err FriendlyError) Error() string {
	return err.Message
}

// FriendlyMessage implements the friendly error interface.
func (err FriendlyError) FriendlyMessage() string {
	return err.Message
}

// NewFriendlyError creates a FriendlyError according to the given format.
func NewFriendlyError(f string, args ...interface{}) error {
	return FriendlyError{Message: fmt.Sprintf(f, args...)}
}

// GetPrintableMessage returns the message that should be shown to the user
// for the given error. Friendly messages are printed as-is, and anything else
// falls back to the standard error string.
func GetPrintableMessage(err error) string {
	if friendly, ok := err.(friendlyError); ok {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}
