package filter

import (
	"os"
	"os/exec"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	"github.com/mirrormk/mirrormk/pkg/errors"
)

type queryResult struct {
	out string
	err error
}

func TestMatch(t *testing.T) {
	// A filter that exits non-zero doesn't claim the extension.
	declined := &exec.ExitError{ProcessState: &os.ProcessState{}}

	tests := []struct {
		name       string
		filters    []Filter
		results    map[string]queryResult
		expFilter  Filter
		expExt     string
		expOK      bool
		expQueried []string
	}{
		{
			name:    "FirstClaimWins",
			filters: []Filter{"md2html", "txt2html"},
			results: map[string]queryResult{
				"md2html":  {out: "html\n"},
				"txt2html": {out: "html\n"},
			},
			expFilter:  "md2html",
			expExt:     "html",
			expOK:      true,
			expQueried: []string{"md2html"},
		},
		{
			name:    "LaterFilterClaims",
			filters: []Filter{"md2html", "gz"},
			results: map[string]queryResult{
				"md2html": {err: declined},
				"gz":      {out: "  tar.gz  "},
			},
			expFilter:  "gz",
			expExt:     "tar.gz",
			expOK:      true,
			expQueried: []string{"md2html", "gz"},
		},
		{
			name:    "SpawnFailureSkipsFilter",
			filters: []Filter{"missing", "md2html"},
			results: map[string]queryResult{
				"missing": {err: errors.New("no such file or directory")},
				"md2html": {out: "html"},
			},
			expFilter:  "md2html",
			expExt:     "html",
			expOK:      true,
			expQueried: []string{"missing", "md2html"},
		},
		{
			name:    "NobodyClaims",
			filters: []Filter{"md2html", "gz"},
			results: map[string]queryResult{
				"md2html": {err: declined},
				"gz":      {err: declined},
			},
			expQueried: []string{"md2html", "gz"},
		},
		{
			name:    "EmptyOutputStripsExtension",
			filters: []Filter{"flatten"},
			results: map[string]queryResult{
				"flatten": {out: "\n"},
			},
			expFilter:  "flatten",
			expExt:     "",
			expOK:      true,
			expQueried: []string{"flatten"},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			var queried []string
			outputCommand = func(cmd *exec.Cmd) ([]byte, error) {
				assert.Len(t, cmd.Args, 3)
				assert.Equal(t, []string{"ext", "md"}, cmd.Args[1:])
				queried = append(queried, cmd.Args[0])
				res := test.results[cmd.Args[0]]
				return []byte(res.out), res.err
			}

			f, ext, ok := Match(test.filters, "md")
			assert.Equal(t, test.expOK, ok)
			assert.Equal(t, test.expFilter, f)
			assert.Equal(t, test.expExt, ext)
			assert.Equal(t, test.expQueried, queried)
		})
	}
}

func TestRun(t *testing.T) {
	fs = afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "/mirror/doc.html", []byte("stale"), 0644))

	var gotArgs []string
	runCommand = func(cmd *exec.Cmd) error {
		gotArgs = cmd.Args

		// The stale destination must be gone before the filter runs.
		exists, err := afero.Exists(fs, "/mirror/doc.html")
		assert.NoError(t, err)
		assert.False(t, exists)
		return nil
	}

	err := Filter("md2html").Run("/src/doc.md", "/mirror/doc.html")
	assert.NoError(t, err)
	assert.Equal(t, []string{"md2html", "run", "/src/doc.md", "/mirror/doc.html"}, gotArgs)
}

func TestRunFails(t *testing.T) {
	fs = afero.NewMemMapFs()
	runCommand = func(cmd *exec.Cmd) error {
		return &exec.ExitError{ProcessState: &os.ProcessState{}}
	}

	err := Filter("md2html").Run("/src/doc.md", "/mirror/doc.html")
	assert.Error(t, err)
}
