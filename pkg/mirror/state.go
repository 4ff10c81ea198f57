package mirror

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	goversion "github.com/hashicorp/go-version"
	"github.com/spf13/afero"

	"github.com/mirrormk/mirrormk/pkg/errors"
	"github.com/mirrormk/mirrormk/pkg/filter"
)

const (
	// StateExt is the extension of mirror state records.
	StateExt = ".mmdb"

	// InitialFormatVersion is the first version of the state record format.
	// Records that don't specify a version default to it.
	InitialFormatVersion = "1.0"

	// SupportedFormatVersion is the newest record format this binary writes.
	// Records with a newer major version are rejected on load.
	SupportedFormatVersion = "1.0"
)

// State is the persisted record of one mirror pair: where it syncs from and
// to, which filters apply, and the digest of every source file as of the last
// completed pass.
type State struct {
	Version    string            `json:"version"`
	SourceRoot string            `json:"sourceRoot"`
	MirrorRoot string            `json:"mirrorRoot"`
	Filters    []filter.Filter   `json:"filters,omitempty"`
	Digests    map[string]string `json:"digests,omitempty"`

	// path is where the record lives on disk. It's set when the record is
	// created or loaded rather than serialized, so that records keep working
	// when they're moved.
	path string
}

// NewState creates the in-memory record for a fresh mirror pair. Nothing is
// written to disk until Save is called.
func NewState(sourceRoot, mirrorRoot string, filters []filter.Filter, path string) *State {
	return &State{
		Version:    SupportedFormatVersion,
		SourceRoot: sourceRoot,
		MirrorRoot: mirrorRoot,
		Filters:    filters,
		Digests:    map[string]string{},
		path:       path,
	}
}

// LoadState reads the state record at the given path. Relative roots are
// resolved against the record's own directory, so a record can be addressed
// from anywhere without changing the process's working directory.
func LoadState(path string) (*State, error) {
	contents, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: path}
		}
		return nil, errors.WithContext(err, "read state record")
	}

	state := &State{Version: InitialFormatVersion}
	if err := yaml.Unmarshal(contents, state); err != nil {
		return nil, errors.WithContext(err, "parse state record")
	}

	if err := checkFormatVersion(path, state.Version); err != nil {
		return nil, err
	}

	if state.SourceRoot == "" {
		return nil, errors.WithContext(
			errors.MissingFieldError{Field: "sourceRoot"}, "validate state record")
	}
	if state.MirrorRoot == "" {
		return nil, errors.WithContext(
			errors.MissingFieldError{Field: "mirrorRoot"}, "validate state record")
	}

	state.path, err = filepath.Abs(path)
	if err != nil {
		return nil, errors.WithContext(err, "resolve state record path")
	}

	base := filepath.Dir(state.path)
	if !filepath.IsAbs(state.SourceRoot) {
		state.SourceRoot = filepath.Join(base, state.SourceRoot)
	}
	if !filepath.IsAbs(state.MirrorRoot) {
		state.MirrorRoot = filepath.Join(base, state.MirrorRoot)
	}

	if state.Digests == nil {
		state.Digests = map[string]string{}
	}
	return state, nil
}

// Save writes the record to the path it was created at or loaded from.
func (s *State) Save() error {
	yamlBytes, err := yaml.Marshal(s)
	if err != nil {
		return errors.WithContext(err, "marshal")
	}

	if err := afero.WriteFile(fs, s.path, yamlBytes, 0644); err != nil {
		return errors.WithContext(err, "write")
	}
	return nil
}

// GetPath returns where the record lives on disk.
func (s *State) GetPath() string {
	return s.path
}

func checkFormatVersion(path, actual string) error {
	actualVersion, err := goversion.NewVersion(actual)
	if err != nil {
		return errors.WithContext(err, "parse state record version")
	}

	supported := goversion.Must(goversion.NewVersion(SupportedFormatVersion))
	if actualVersion.Segments()[0] > supported.Segments()[0] {
		return errors.NewFriendlyError("The state record %q uses format %s, but this "+
			"version of mirrormk only understands format %s.\n"+
			"Upgrade mirrormk to sync this mirror pair.",
			path, actual, SupportedFormatVersion)
	}
	return nil
}

// StateFileName derives the record file name for a mirror rooted at the
// given path: components are lowercased, separators and periods become word
// breaks, and the words are joined with underscores. `/srv/Public/html.v2`
// becomes "srv_public_html_v2.mmdb". The derivation is deterministic so that
// several mirror pairs can keep their records in one directory without
// colliding.
func StateFileName(mirrorRoot string) (string, error) {
	lowered := strings.ToLower(mirrorRoot)
	normalized := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '.' {
			return ' '
		}
		return r
	}, lowered)

	words := strings.Fields(normalized)
	if len(words) == 0 {
		return "", errors.NewFriendlyError(
			"Cannot derive a state record name from mirror path %q.", mirrorRoot)
	}
	return strings.Join(words, "_") + StateExt, nil
}
