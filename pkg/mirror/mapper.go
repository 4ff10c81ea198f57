package mirror

import (
	"path/filepath"
	"strings"

	"github.com/mirrormk/mirrormk/pkg/errors"
	"github.com/mirrormk/mirrormk/pkg/filter"
)

// Mocked out for unit testing.
var matchFilter = filter.Match

// Mapping is where a source entry lands in the mirror, along with the filter
// that will produce it, if one claimed it.
type Mapping struct {
	Dest     string
	Filter   filter.Filter
	Filtered bool
}

// PathMapper translates source paths into mirror paths. Every entry keeps
// its relative path under the mirror root; files claimed by a filter also
// have their extension rewritten to whatever the filter reported.
type PathMapper struct {
	sourceRoot string
	mirrorRoot string
	filters    []filter.Filter
}

// NewPathMapper creates a mapper between the given roots.
func NewPathMapper(sourceRoot, mirrorRoot string, filters []filter.Filter) *PathMapper {
	return &PathMapper{sourceRoot, mirrorRoot, filters}
}

// Map returns the mirror location of the given source path. Files with an
// extension are offered to the filters, which spawns one subprocess per
// filter until one claims it.
func (m *PathMapper) Map(path string, isDir bool) (Mapping, error) {
	rel, err := filepath.Rel(m.sourceRoot, path)
	if err != nil {
		return Mapping{}, errors.WithContext(err, "relativize")
	}

	dest := filepath.Join(m.mirrorRoot, rel)
	if isDir {
		return Mapping{Dest: dest}, nil
	}

	ext := fileExt(path)
	if ext == "" {
		return Mapping{Dest: dest}, nil
	}

	f, newExt, claimed := matchFilter(m.filters, ext)
	if !claimed {
		return Mapping{Dest: dest}, nil
	}

	return Mapping{Dest: replaceExt(dest, newExt), Filter: f, Filtered: true}, nil
}

// fileExt returns the path's extension without the leading dot. Dotfiles
// like ".gitignore" have no extension.
func fileExt(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if ext == base {
		return ""
	}
	return strings.TrimPrefix(ext, ".")
}

// replaceExt swaps the path's extension for newExt. An empty newExt removes
// the extension entirely.
func replaceExt(path, newExt string) string {
	trimmed := strings.TrimSuffix(path, filepath.Ext(path))
	if newExt == "" {
		return trimmed
	}
	return trimmed + "." + newExt
}
