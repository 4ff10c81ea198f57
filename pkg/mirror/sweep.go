package mirror

import (
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// sweep removes every entry under the mirror root that the pass didn't
// produce. Orphaned directories are removed whole, without descending into
// them. The sweep is best-effort: a failed removal is logged and counted,
// and the walk continues over the remaining entries.
func (e *Engine) sweep(mirrored map[string]struct{}) (removed, failed int) {
	err := afero.Walk(fs, e.state.MirrorRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				// Nothing to sweep, e.g. a dry run before the mirror exists.
				return nil
			}
			log.WithError(err).WithField("path", path).Error("Failed to examine mirror entry")
			failed++
			return nil
		}

		if _, ok := mirrored[path]; ok {
			return nil
		}

		if e.dryRun {
			log.WithField("path", path).Info("Would remove orphan")
			removed++
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		log.WithField("path", path).Info("Removing orphan")
		if err := fs.RemoveAll(path); err != nil {
			log.WithError(err).WithField("path", path).Error("Failed to remove orphan")
			failed++
			return nil
		}

		removed++
		if info.IsDir() {
			// Don't descend into a tree that was just removed.
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		log.WithError(err).WithField("path", e.state.MirrorRoot).Error("Failed to sweep mirror")
		failed++
	}
	return removed, failed
}
