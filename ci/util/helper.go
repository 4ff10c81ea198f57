package util

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// TestHelper runs the mirrormk binary against scratch directories on the real
// filesystem. The binary under test is expected to be on PATH.
type TestHelper struct {
	// WorkDir is the working directory for mirrormk invocations. State
	// records end up here.
	WorkDir string
}

// NewTestHelper creates a fresh scratch directory for one test scenario.
func NewTestHelper() (*TestHelper, error) {
	workDir, err := ioutil.TempDir("", "mirrormk-ci")
	if err != nil {
		return nil, err
	}
	return &TestHelper{WorkDir: workDir}, nil
}

// Cleanup removes the scratch directory.
func (helper *TestHelper) Cleanup() {
	os.RemoveAll(helper.WorkDir)
}

// Run runs the given mirrormk command from the helper's working directory and
// returns its combined output. A non-zero exit is returned as an error that
// includes the output.
func (helper *TestHelper) Run(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "mirrormk", args...)
	cmd.Dir = helper.WorkDir

	out := bytes.NewBuffer(nil)
	cmd.Stdout = out
	cmd.Stderr = out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s: %s", err, out.String())
	}
	return out.Bytes(), nil
}

// Start launches a long-running mirrormk command, such as `sync --watch`. The
// returned stop function terminates the process and waits for it to exit.
func (helper *TestHelper) Start(args ...string) (func(), error) {
	cmd := exec.Command("mirrormk", args...)
	cmd.Dir = helper.WorkDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	stop := func() {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}
	return stop, nil
}

// WriteTree creates the given files under root, making parent directories as
// needed. Keys are slash-separated paths relative to root.
func (helper *TestHelper) WriteTree(root string, files map[string]string) error {
	for rel, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := ioutil.WriteFile(path, []byte(contents), 0644); err != nil {
			return err
		}
	}
	return nil
}

// ReadTree returns the contents of every file under root, keyed by
// slash-separated path relative to root.
func (helper *TestHelper) ReadTree(root string) (map[string]string, error) {
	files := map[string]string{}
	err := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}

		contents, err := ioutil.ReadFile(path)
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(contents)
		return nil
	})
	return files, err
}

// WriteFilter writes an executable filter program with the given script body.
func (helper *TestHelper) WriteFilter(path, script string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, []byte(script), 0755)
}

// StateRecords returns the state records in the helper's working directory.
func (helper *TestHelper) StateRecords() ([]string, error) {
	return filepath.Glob(filepath.Join(helper.WorkDir, "*.mmdb"))
}
