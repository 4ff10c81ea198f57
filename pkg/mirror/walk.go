package mirror

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// walkEntry is one filesystem object discovered while enumerating the source
// tree.
type walkEntry struct {
	path  string
	isDir bool
}

// traversalError aborts the pass: mirroring a partial listing would sweep
// away mirror files whose sources still exist.
type traversalError struct {
	path  string
	depth int
	err   error
}

func (err traversalError) Error() string {
	return fmt.Sprintf("traversal aborted at %q (depth %d): %s",
		err.path, err.depth, err.err)
}

// enumerate lists every file and directory under root, root itself included.
// The listing is produced sequentially, before any mirroring starts, so a
// pass always works from a stable snapshot of the tree's shape.
func enumerate(root string) ([]walkEntry, error) {
	var entries []walkEntry
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return traversalError{path: path, depth: depthOf(root, path), err: err}
		}
		entries = append(entries, walkEntry{path: path, isDir: info.IsDir()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// depthOf returns how many levels below root the path is. The root itself is
// at depth 0.
func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}
