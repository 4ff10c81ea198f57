package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mirrormk/mirrormk/cmd/util"
	"github.com/mirrormk/mirrormk/pkg/config"
	"github.com/mirrormk/mirrormk/pkg/errors"
	"github.com/mirrormk/mirrormk/pkg/fswatch"
	"github.com/mirrormk/mirrormk/pkg/mirror"
)

// The interval to poll the source tree for changes in watch mode. The file
// watcher doesn't cover directories created after the watch started, so the
// poll picks up anything it misses.
const pollSeconds = 15

// Mocked for unit testing.
var (
	fs              = afero.NewOsFs()
	clock           = clockwork.NewRealClock()
	parseUserConfig = config.ParseUser
	loadState       = mirror.LoadState
	runPass         = runPassImpl
	watchSource     = fswatch.Watch
)

type syncFlags struct {
	recursive bool
	workers   int
	dryRun    bool
	watch     bool
}

// New creates a new `sync` command.
func New() *cobra.Command {
	var flags syncFlags
	cmd := &cobra.Command{
		Use:   "sync [records...]",
		Short: "Run a sync pass for each mirror pair",
		Long: `Run one sync pass per state record: mirror new and changed source files,
and remove mirror entries whose sources are gone. With no arguments, every
state record in the current directory is synced.`,
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args, flags); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&flags.recursive, "recursive", false,
		"Also look for state records in subdirectories.")
	cmd.Flags().IntVar(&flags.workers, "workers", 0,
		"Number of concurrent workers per pass. Zero means one per CPU.")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false,
		"Report what a pass would do without changing anything.")
	cmd.Flags().BoolVar(&flags.watch, "watch", false,
		"Keep running, re-syncing whenever a source tree changes.")
	return cmd
}

func run(records []string, flags syncFlags) error {
	userConfig, err := parseUserConfig()
	if err != nil {
		return errors.WithContext(err, "parse user config")
	}

	workers := flags.workers
	if workers == 0 {
		workers = userConfig.Workers
	}

	if len(records) == 0 {
		records, err = discoverRecords(".", flags.recursive)
		if err != nil {
			return errors.WithContext(err, "discover state records")
		}
		if len(records) == 0 {
			return errors.NewFriendlyError("No state records (*%s) found in the "+
				"current directory.\n"+
				"Run `mirrormk init` to set up a mirror pair, or name the records "+
				"to sync explicitly.", mirror.StateExt)
		}
	} else {
		for _, record := range records {
			if filepath.Ext(record) != mirror.StateExt {
				return errors.NewFriendlyError("%q is not a state record. "+
					"Records carry the %s extension.", record, mirror.StateExt)
			}
		}
	}

	if flags.watch {
		return watch(records, workers, flags.dryRun)
	}

	var failedPasses int
	for _, record := range records {
		report, err := syncRecord(record, workers, flags.dryRun)
		if err != nil {
			log.WithError(err).WithField("record", record).Error("Sync pass failed")
			failedPasses++
			continue
		}
		if report.Failed > 0 || report.SweepFailed > 0 {
			failedPasses++
		}
	}

	if failedPasses > 0 {
		return errors.NewFriendlyError("%d of %d sync passes had failures. "+
			"See the log above for details.", failedPasses, len(records))
	}
	return nil
}

// discoverRecords returns the state records in the given directory, and in
// its subdirectories when recursive is set.
func discoverRecords(dir string, recursive bool) ([]string, error) {
	var records []string
	err := afero.Walk(fs, dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == mirror.StateExt {
			records = append(records, path)
		}
		return nil
	})
	return records, err
}

func syncRecord(record string, workers int, dryRun bool) (mirror.Report, error) {
	state, err := loadState(record)
	if err != nil {
		return mirror.Report{}, errors.WithContext(err, "load state record")
	}

	report, err := runPass(state, workers, dryRun)
	if err != nil {
		return report, err
	}

	logReport(record, report, dryRun)
	return report, nil
}

func runPassImpl(state *mirror.State, workers int, dryRun bool) (mirror.Report, error) {
	return mirror.NewEngine(state, workers, dryRun).Run()
}

func logReport(record string, report mirror.Report, dryRun bool) {
	entry := log.WithField("record", filepath.Base(record))
	if dryRun {
		entry.Infof("Would mirror %d new and %d changed files, and remove %d orphans.",
			report.New, report.Changed, report.Removed)
		return
	}

	entry.Infof("Mirrored %d new, %d changed (%d unchanged). Removed %d orphans.",
		report.New, report.Changed, report.Unchanged, report.Removed)
	if report.Failed > 0 || report.SweepFailed > 0 {
		entry.Warnf("%d entries failed to mirror and %d orphans couldn't be removed. "+
			"The next pass will retry them.", report.Failed, report.SweepFailed)
	}
}

// watch syncs every record once, then keeps re-syncing whenever a source tree
// changes. It runs until the process is killed.
func watch(records []string, workers int, dryRun bool) error {
	for _, record := range records {
		state, err := loadState(record)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("load state record %q", record))
		}

		fileWatcher, err := watchSource(state.SourceRoot)
		if err != nil {
			log.WithError(err).WithField("source", state.SourceRoot).Warn(
				"Failed to watch the source tree for changes. " +
					"Falling back to polling only.")

			// Disable the file watcher channel. Receiving from a nil channel
			// blocks forever, so the loop below will run on the poll alone.
			fileWatcher = nil
		}

		record := record
		go func() {
			defer util.HandlePanic()
			watchLoop(record, fileWatcher, workers, dryRun)
		}()
	}

	select {}
}

func watchLoop(record string, fileWatcher chan struct{}, workers int, dryRun bool) {
	for {
		if _, err := syncRecord(record, workers, dryRun); err != nil {
			log.WithError(err).WithField("record", record).Error("Sync pass failed")
		}

		select {
		case <-fileWatcher:
		case <-clock.After(pollSeconds * time.Second):
		}
	}
}
