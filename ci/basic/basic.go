package basic

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrormk/mirrormk/ci/util"
)

// Test covers the lifecycle of a mirror pair without filters: init,
// incremental sync, deletion propagation, and idempotent re-runs.
func Test(t *testing.T, helper *util.TestHelper) {
	ctx := context.Background()

	source := filepath.Join(helper.WorkDir, "src")
	mirror := filepath.Join(helper.WorkDir, "mirror")
	require.NoError(t, helper.WriteTree(source, map[string]string{
		"a.txt":     "hi",
		"sub/b.txt": "yo",
	}))

	out, err := helper.Run(ctx, "init", source, mirror)
	require.NoError(t, err, string(out))

	tree, err := helper.ReadTree(mirror)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a.txt":     "hi",
		"sub/b.txt": "yo",
	}, tree)

	// The state record lands in the working directory under a name derived
	// from the mirror path.
	records, err := helper.StateRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Init must refuse to set up the same pair twice.
	_, err = helper.Run(ctx, "init", source, mirror)
	assert.Error(t, err)

	// Edit a file, add a file, and remove a subtree, then sync.
	require.NoError(t, helper.WriteTree(source, map[string]string{
		"a.txt": "bye",
		"c.txt": "new",
	}))
	require.NoError(t, os.RemoveAll(filepath.Join(source, "sub")))

	out, err = helper.Run(ctx, "sync")
	require.NoError(t, err, string(out))

	tree, err = helper.ReadTree(mirror)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a.txt": "bye",
		"c.txt": "new",
	}, tree)

	// A dry run reports the work but doesn't touch the mirror.
	require.NoError(t, helper.WriteTree(source, map[string]string{"d.txt": "dry"}))
	out, err = helper.Run(ctx, "sync", "--dry-run")
	require.NoError(t, err, string(out))

	tree, err = helper.ReadTree(mirror)
	require.NoError(t, err)
	assert.NotContains(t, tree, "d.txt")

	// Syncing an unchanged tree converges to the same mirror.
	out, err = helper.Run(ctx, "sync")
	require.NoError(t, err, string(out))
	out, err = helper.Run(ctx, "sync")
	require.NoError(t, err, string(out))

	tree, err = helper.ReadTree(mirror)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"a.txt": "bye",
		"c.txt": "new",
		"d.txt": "dry",
	}, tree)
}
