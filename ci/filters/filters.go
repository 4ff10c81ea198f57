package filters

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrormk/mirrormk/ci/util"
)

// upperScript claims `md` files, renames them to `html`, and upper-cases
// their contents on the way into the mirror.
const upperScript = `#!/bin/sh
case "$1" in
ext)
	if [ "$2" = "md" ]; then
		echo html
		exit 0
	fi
	exit 1
	;;
run)
	tr '[:lower:]' '[:upper:]' < "$2" > "$3"
	;;
esac
`

// declineScript never claims anything.
const declineScript = `#!/bin/sh
exit 1
`

// brokenScript claims `bad` files but always fails to transform them.
const brokenScript = `#!/bin/sh
case "$1" in
ext)
	if [ "$2" = "bad" ]; then
		echo bad
		exit 0
	fi
	exit 1
	;;
run)
	exit 3
	;;
esac
`

// Test covers filter programs end to end: extension rewriting, precedence
// over declining filters, and failed transforms leaving no mirror entry.
func Test(t *testing.T, helper *util.TestHelper) {
	ctx := context.Background()

	upper := filepath.Join(helper.WorkDir, "bin", "upper-md")
	decline := filepath.Join(helper.WorkDir, "bin", "decline-all")
	broken := filepath.Join(helper.WorkDir, "bin", "broken")
	require.NoError(t, helper.WriteFilter(upper, upperScript))
	require.NoError(t, helper.WriteFilter(decline, declineScript))
	require.NoError(t, helper.WriteFilter(broken, brokenScript))

	source := filepath.Join(helper.WorkDir, "src")
	mirror := filepath.Join(helper.WorkDir, "mirror")
	require.NoError(t, helper.WriteTree(source, map[string]string{
		"post.md":   "# title\n",
		"plain.txt": "text",
	}))

	// The declining filter is queried first but never claims, so the upper
	// filter transforms md files. Unclaimed files are plain copies.
	out, err := helper.Run(ctx, "init", source, mirror, decline, upper)
	require.NoError(t, err, string(out))

	tree, err := helper.ReadTree(mirror)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"post.html": "# TITLE\n",
		"plain.txt": "text",
	}, tree)

	// A changed source runs the filter again. Sync the record by name to
	// exercise the explicit-argument path.
	records, err := helper.StateRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)

	require.NoError(t, helper.WriteTree(source, map[string]string{
		"post.md": "# changed\n",
	}))
	out, err = helper.Run(ctx, "sync", records[0])
	require.NoError(t, err, string(out))

	tree, err = helper.ReadTree(mirror)
	require.NoError(t, err)
	assert.Equal(t, "# CHANGED\n", tree["post.html"])

	// A filter that claims a file but fails to transform it leaves no mirror
	// entry behind, and the pass exits non-zero.
	badSource := filepath.Join(helper.WorkDir, "badsrc")
	badMirror := filepath.Join(helper.WorkDir, "badmirror")
	require.NoError(t, helper.WriteTree(badSource, map[string]string{
		"file.bad": "contents",
	}))

	_, err = helper.Run(ctx, "init", badSource, badMirror, broken)
	assert.Error(t, err)

	tree, err = helper.ReadTree(badMirror)
	require.NoError(t, err)
	assert.Empty(t, tree)
}
