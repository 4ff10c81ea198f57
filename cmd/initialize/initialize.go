package initialize

import (
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mirrormk/mirrormk/cmd/util"
	"github.com/mirrormk/mirrormk/pkg/config"
	"github.com/mirrormk/mirrormk/pkg/errors"
	"github.com/mirrormk/mirrormk/pkg/filter"
	"github.com/mirrormk/mirrormk/pkg/mirror"
)

// Mocked for unit testing.
var (
	fs              = afero.NewOsFs()
	homedirExpand   = homedir.Expand
	parseUserConfig = config.ParseUser
	firstPass       = firstPassImpl
)

// New creates a new `init` command.
func New() *cobra.Command {
	return &cobra.Command{
		Use:   "init <source> <mirror> [filters...]",
		Short: "Set up a new mirror pair and run its first sync pass",
		Long: `Create a state record for mirroring <source> into <mirror>, then run the
first sync pass. The record is written to the current directory under a name
derived from the mirror path, and later passes are run with ` + "`mirrormk sync`" + `.

Filters are programs that transform files on their way into the mirror. They
are tried in the order given; see the docs for the filter protocol.`,
		Args: cobra.MinimumNArgs(2),
		Run: func(_ *cobra.Command, args []string) {
			workingDir, err := os.Getwd()
			if err != nil {
				util.HandleFatalError(errors.WithContext(err, "get working directory"))
			}

			if err := run(args[0], args[1], args[2:], workingDir); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
}

func run(source, mirrorRoot string, filterArgs []string, workingDir string) error {
	var filters []filter.Filter
	for _, arg := range filterArgs {
		expanded, err := homedirExpand(arg)
		if err != nil {
			return errors.WithContext(err, fmt.Sprintf("expand filter path %q", arg))
		}
		filters = append(filters, filter.Filter(expanded))
	}

	srcInfo, err := fs.Stat(resolve(workingDir, source))
	if os.IsNotExist(err) {
		return errors.NewFriendlyError("Source directory %q does not exist.", source)
	} else if err != nil {
		return errors.WithContext(err, "stat source")
	}
	if !srcInfo.IsDir() {
		return errors.NewFriendlyError("Source path %q is not a directory.", source)
	}

	// The record name is derived from the mirror path as given so that pairs
	// initialized from the same directory get predictable, distinct records.
	recordName, err := mirror.StateFileName(mirrorRoot)
	if err != nil {
		return err
	}

	recordPath := filepath.Join(workingDir, recordName)
	if exists, err := afero.Exists(fs, recordPath); err != nil {
		return errors.WithContext(err, "check for existing state record")
	} else if exists {
		return errors.NewFriendlyError("A state record already exists at %q.\n"+
			"This mirror pair is already initialized. Run `mirrormk sync` to sync "+
			"it, or remove the record to start over.", recordPath)
	}

	if err := ensureMirrorRoot(resolve(workingDir, mirrorRoot)); err != nil {
		return err
	}

	state := mirror.NewState(resolve(workingDir, source),
		resolve(workingDir, mirrorRoot), filters, recordPath)

	userConfig, err := parseUserConfig()
	if err != nil {
		return errors.WithContext(err, "parse user config")
	}

	log.WithFields(log.Fields{
		"source": state.SourceRoot,
		"mirror": state.MirrorRoot,
		"record": recordPath,
	}).Info("Initialized mirror pair")
	return firstPass(state, userConfig.Workers)
}

// ensureMirrorRoot creates the mirror directory if it doesn't exist yet. An
// existing directory must be empty: syncing would remove anything in it that
// the source tree doesn't account for.
func ensureMirrorRoot(mirrorRoot string) error {
	fi, err := fs.Stat(mirrorRoot)
	if os.IsNotExist(err) {
		if err := fs.MkdirAll(mirrorRoot, 0755); err != nil {
			return errors.WithContext(err, "create mirror directory")
		}
		return nil
	} else if err != nil {
		return errors.WithContext(err, "stat mirror directory")
	}

	if !fi.IsDir() {
		return errors.NewFriendlyError("Mirror path %q is not a directory.", mirrorRoot)
	}

	contents, err := afero.ReadDir(fs, mirrorRoot)
	if err != nil {
		return errors.WithContext(err, "read mirror directory")
	}
	if len(contents) != 0 {
		return errors.NewFriendlyError("Mirror directory %q is not empty.\n"+
			"Refusing to sync into it since unrelated contents would be removed. "+
			"Pick an empty or new directory.", mirrorRoot)
	}
	return nil
}

func firstPassImpl(state *mirror.State, workers int) error {
	// Persist the empty record before the pass so that the pair stays
	// initialized even if the pass fails partway.
	if err := state.Save(); err != nil {
		return errors.WithContext(err, "write state record")
	}

	report, err := mirror.NewEngine(state, workers, false).Run()
	if err != nil {
		return err
	}

	log.Infof("Mirrored %d files into %s.", report.New, state.MirrorRoot)
	if report.Failed > 0 {
		return errors.NewFriendlyError("%d entries failed to mirror. "+
			"Run `mirrormk sync` to retry them.", report.Failed)
	}
	return nil
}

func resolve(workingDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workingDir, path)
}
