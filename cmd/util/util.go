package util

import (
	"fmt"
	"os"
	"runtime/debug"

	log "github.com/sirupsen/logrus"

	"github.com/mirrormk/mirrormk/pkg/errors"
)

// HandleFatalError prints the friendliest available form of err and exits
// with a non-zero status.
func HandleFatalError(err error) {
	log.WithError(err).Debug("Fatal error")
	fmt.Fprintln(os.Stderr, errors.GetPrintableMessage(err))
	os.Exit(1)
}

// HandlePanic recovers panics from the current goroutine and prints a short
// note instead of a bare stack trace. It should be deferred at the top of
// main, and at the top of any long-lived goroutine.
func HandlePanic() {
	r := recover()
	if r == nil {
		return
	}

	log.WithField("stack", string(debug.Stack())).Errorf("panicked: %v", r)
	fmt.Fprintln(os.Stderr, "mirrormk hit an unexpected error and had to exit. "+
		"Re-run with MIRRORMK_LOG_VERBOSE=true for more details.")
	os.Exit(1)
}
