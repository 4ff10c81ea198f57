package mirror

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/mirrormk/mirrormk/pkg/digest"
	"github.com/mirrormk/mirrormk/pkg/errors"
	"github.com/mirrormk/mirrormk/pkg/filter"
)

// Variables mocked for unit testing.
var (
	fs        = afero.NewOsFs()
	copyFile  = copyFileImpl
	runFilter = filter.Filter.Run
)

// Engine runs sync passes for a single mirror pair.
type Engine struct {
	state   *State
	mapper  *PathMapper
	workers int
	dryRun  bool
}

// Report summarizes one pass.
type Report struct {
	New       int
	Changed   int
	Unchanged int
	Failed    int
	Removed   int

	// SweepFailed counts orphans that couldn't be removed from the mirror.
	SweepFailed int

	// Degraded reports that a worker died mid-pass, so the persisted digests
	// may be missing entries. Re-running the pass repairs them.
	Degraded bool
}

type entryStatus int

const (
	statusNone entryStatus = iota // directories don't show up in the report
	statusNew
	statusChanged
	statusUnchanged
)

// reportBuilder tallies per-entry outcomes as the workers finish them.
type reportBuilder struct {
	report Report
	lock   sync.Mutex
}

func (builder *reportBuilder) count(status entryStatus) {
	builder.lock.Lock()
	defer builder.lock.Unlock()

	switch status {
	case statusNew:
		builder.report.New++
	case statusChanged:
		builder.report.Changed++
	case statusUnchanged:
		builder.report.Unchanged++
	}
}

func (builder *reportBuilder) countFailed() {
	builder.lock.Lock()
	defer builder.lock.Unlock()
	builder.report.Failed++
}

func (builder *reportBuilder) snapshot() Report {
	builder.lock.Lock()
	defer builder.lock.Unlock()
	return builder.report
}

// NewEngine creates an engine for the given mirror pair. Zero workers means
// one worker per CPU. With dryRun set, the engine reports what a pass would
// do without touching the mirror or the state record.
func NewEngine(state *State, workers int, dryRun bool) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{
		state:   state,
		mapper:  NewPathMapper(state.SourceRoot, state.MirrorRoot, state.Filters),
		workers: workers,
		dryRun:  dryRun,
	}
}

// Run executes one pass: enumerate the source tree, mirror every entry,
// persist the fresh digests, and sweep orphans out of the mirror. Per-entry
// failures don't abort the pass; the failed entries are reported, left out
// of the persisted digests, and picked up again on the next pass.
func (e *Engine) Run() (Report, error) {
	log.WithFields(log.Fields{
		"source": e.state.SourceRoot,
		"mirror": e.state.MirrorRoot,
	}).Info("Starting sync pass")

	entries, err := enumerate(e.state.SourceRoot)
	if err != nil {
		return Report{}, errors.WithContext(err, "enumerate source")
	}

	acc := newAccumulator()
	builder := &reportBuilder{}

	jobs := make(chan walkEntry)
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				e.mirrorEntry(entry, acc, builder)
			}
		}()
	}

	for _, entry := range entries {
		jobs <- entry
	}
	close(jobs)
	wg.Wait()

	digests, mirrored, degraded := acc.extract()
	report := builder.snapshot()
	report.Degraded = degraded
	if degraded {
		log.Warn("A worker died mid-pass, so this pass may have produced partial " +
			"results. Re-run sync to verify the mirror.")
	}

	if e.dryRun {
		report.Removed, report.SweepFailed = e.sweep(mirrored)
		return report, nil
	}

	// The fresh digests replace the old map wholesale: files that vanished
	// from the source no longer have an entry. Persisting must happen before
	// the sweep so that a failed sweep can't lose track of what was mirrored.
	e.state.Digests = digests
	if err := e.state.Save(); err != nil {
		return report, errors.WithContext(err, "save state record")
	}

	report.Removed, report.SweepFailed = e.sweep(mirrored)
	return report, nil
}

// mirrorEntry processes one entry and tallies the outcome. It also contains
// the pass's last-resort recovery: a panicking worker marks the accumulator
// degraded rather than killing the whole process.
func (e *Engine) mirrorEntry(entry walkEntry, acc *accumulator, builder *reportBuilder) {
	defer func() {
		if r := recover(); r != nil {
			acc.markDegraded()
			log.WithField("path", entry.path).Errorf("Worker died mirroring entry: %v", r)
			builder.countFailed()
		}
	}()

	status, err := e.syncEntry(entry, acc)
	if err != nil {
		log.WithError(err).WithField("path", entry.path).Error("Failed to mirror entry")
		builder.countFailed()
		return
	}
	builder.count(status)
}

func (e *Engine) syncEntry(entry walkEntry, acc *accumulator) (entryStatus, error) {
	mapping, err := e.mapper.Map(entry.path, entry.isDir)
	if err != nil {
		return statusNone, errors.WithContext(err, "map mirror path")
	}
	acc.recordMirrored(mapping.Dest)

	if entry.isDir {
		if e.dryRun {
			return statusNone, nil
		}
		if err := fs.MkdirAll(mapping.Dest, 0755); err != nil {
			return statusNone, errors.WithContext(err, "create mirror directory")
		}
		return statusNone, nil
	}

	if !e.dryRun {
		if err := fs.MkdirAll(filepath.Dir(mapping.Dest), 0755); err != nil {
			return statusNone, errors.WithContext(err, "create mirror parent")
		}
	}

	dig, err := digest.File(fs, entry.path)
	if err != nil {
		return statusNone, errors.WithContext(err, "digest source file")
	}

	destExists, err := afero.Exists(fs, mapping.Dest)
	if err != nil {
		return statusNone, errors.WithContext(err, "stat mirror file")
	}

	prev, seen := e.state.Digests[entry.path]
	if seen && digest.Equal(prev, dig) && destExists {
		log.WithField("path", entry.path).Debug("Unchanged, skipping")
		acc.recordDigest(entry.path, dig)
		return statusUnchanged, nil
	}

	status := statusNew
	if seen && destExists {
		status = statusChanged
	}

	if e.dryRun {
		log.WithFields(log.Fields{
			"path":   entry.path,
			"mirror": mapping.Dest,
		}).Info("Would mirror")
		acc.recordDigest(entry.path, dig)
		return status, nil
	}

	if mapping.Filtered {
		if err := runFilter(mapping.Filter, entry.path, mapping.Dest); err != nil {
			return status, errors.WithContext(err, fmt.Sprintf("filter %q", mapping.Filter))
		}
	} else {
		if err := copyFile(entry.path, mapping.Dest); err != nil {
			return status, errors.WithContext(err, "copy")
		}
	}

	// The digest is only recorded once the mirror entry is actually in
	// place. Failed entries stay out of the map, so the next pass retries
	// them.
	acc.recordDigest(entry.path, dig)
	log.WithFields(log.Fields{
		"path":   entry.path,
		"mirror": mapping.Dest,
	}).Debug("Mirrored")
	return status, nil
}

func copyFileImpl(src, dst string) error {
	srcFile, err := fs.Open(src)
	if err != nil {
		return errors.WithContext(err, "open source")
	}
	defer srcFile.Close()

	fileInfo, err := srcFile.Stat()
	if err != nil {
		return errors.WithContext(err, "stat")
	}

	dstFile, err := fs.Create(dst)
	if err != nil {
		return errors.WithContext(err, "open destination")
	}
	defer dstFile.Close()

	if err := fs.Chmod(dst, fileInfo.Mode()); err != nil {
		return errors.WithContext(err, "set mode")
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return errors.WithContext(err, "copy contents")
	}
	return nil
}
