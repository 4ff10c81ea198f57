package watch

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrormk/mirrormk/ci/util"
)

// Test covers watch mode: a running `sync --watch` picks up source edits and
// deletions without being invoked again.
func Test(t *testing.T, helper *util.TestHelper) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	source := filepath.Join(helper.WorkDir, "src")
	mirror := filepath.Join(helper.WorkDir, "mirror")
	require.NoError(t, helper.WriteTree(source, map[string]string{"a.txt": "v1"}))

	out, err := helper.Run(ctx, "init", source, mirror)
	require.NoError(t, err, string(out))

	stop, err := helper.Start("sync", "--watch")
	require.NoError(t, err)
	defer stop()

	require.NoError(t, helper.WriteTree(source, map[string]string{"a.txt": "v2"}))
	assert.NoError(t, waitForContents(ctx, filepath.Join(mirror, "a.txt"), "v2"))

	require.NoError(t, os.Remove(filepath.Join(source, "a.txt")))
	assert.NoError(t, waitForRemoval(ctx, filepath.Join(mirror, "a.txt")))
}

func waitForContents(ctx context.Context, path, exp string) error {
	return poll(ctx, fmt.Sprintf("%q to contain %q", path, exp), func() bool {
		contents, err := ioutil.ReadFile(path)
		return err == nil && string(contents) == exp
	})
}

func waitForRemoval(ctx context.Context, path string) error {
	return poll(ctx, fmt.Sprintf("%q to be removed", path), func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	})
}

func poll(ctx context.Context, desc string, done func() bool) error {
	for {
		if done() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for %s", desc)
		case <-time.After(500 * time.Millisecond):
		}
	}
}
