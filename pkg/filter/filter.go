// Package filter shells out to user-supplied filter programs that transform
// files on their way into the mirror.
package filter

import (
	"os"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/mirrormk/mirrormk/pkg/errors"
)

// Variables mocked for unit testing.
var (
	fs            = afero.NewOsFs()
	outputCommand = (*exec.Cmd).Output
	runCommand    = (*exec.Cmd).Run
)

// Filter identifies a filter program. It's invoked as `<filter> ext <ext>` to
// ask whether it claims files with the given extension, and as
// `<filter> run <src> <dst>` to transform a claimed file. The program is
// resolved through the usual PATH rules.
type Filter string

// Match queries the given filters, in order, for one that claims the
// extension (given without its leading dot). The first filter to claim it
// wins, and its stdout, trimmed of surrounding whitespace, is the extension
// the mirrored file should use. An empty result means the mirrored file gets
// no extension at all.
func Match(filters []Filter, ext string) (Filter, string, bool) {
	for _, f := range filters {
		cmd := exec.Command(string(f), "ext", ext)
		out, err := outputCommand(cmd)
		if err != nil {
			if _, exited := err.(*exec.ExitError); exited {
				// A non-zero exit just means this filter doesn't claim the
				// extension.
				continue
			}

			log.WithError(err).WithField("filter", string(f)).Warn(
				"Failed to invoke filter, skipping it")
			continue
		}

		return f, strings.TrimSpace(string(out)), true
	}
	return "", "", false
}

// Run invokes the filter to transform src into dst. Any file already at dst
// is removed first so the filter never sees stale output. The filter's
// diagnostics go to our own stdout and stderr.
func (f Filter) Run(src, dst string) error {
	if exists, err := afero.Exists(fs, dst); err == nil && exists {
		log.WithField("path", dst).Debug("Removing stale mirror file before filtering")
		if err := fs.Remove(dst); err != nil {
			log.WithError(err).WithField("path", dst).Error(
				"Failed to remove stale mirror file")
		}
	}

	cmd := exec.Command(string(f), "run", src, dst)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := runCommand(cmd); err != nil {
		return errors.WithContext(err, "run filter")
	}
	return nil
}
