package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContext(t *testing.T) {
	t.Parallel()

	base := New("boom")
	wrapped := WithContext(base, "read state")
	assert.Equal(t, "read state: boom", wrapped.Error())

	twice := WithContext(wrapped, "run pass")
	assert.Equal(t, "run pass: read state: boom", twice.Error())
}

func TestRootCause(t *testing.T) {
	t.Parallel()

	base := FileNotFound{Path: "/tmp/missing"}
	wrapped := WithContext(WithContext(base, "parse"), "load")
	assert.Equal(t, base, RootCause(wrapped))

	// Errors without context are their own root cause.
	plain := New("plain")
	assert.Equal(t, plain, RootCause(plain))
}

func TestGetPrintableMessage(t *testing.T) {
	t.Parallel()

	friendly := NewFriendlyError("Mirror %q does not exist.", "/mirror")
	assert.Equal(t, `Mirror "/mirror" does not exist.`, GetPrintableMessage(friendly))

	plain := WithContext(New("boom"), "sweep")
	assert.Equal(t, "sweep: boom", GetPrintableMessage(plain))
}
