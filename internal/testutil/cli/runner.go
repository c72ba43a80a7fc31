package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// Result captures the output and error of one command execution.
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// Run executes a cobra command with the given arguments and captures its
// output. Process-level stdout and stderr are redirected for the duration of
// the call, because table output and error printing go straight to the
// process streams rather than through cobra's writers.
//
// Example:
//
//	result := cli.Run(t, rootCmd, "check", "app/allow", "-o", "json")
//	result.AssertSuccess(t)
//	result.AssertContains(t, `"allowed"`)
func Run(t *testing.T, cmd *cobra.Command, args ...string) *Result {
	t.Helper()

	stdout, restoreOut := redirect(t, &os.Stdout)
	stderr, restoreErr := redirect(t, &os.Stderr)

	var cmdOut, cmdErr bytes.Buffer
	cmd.SetOut(&cmdOut)
	cmd.SetErr(&cmdErr)
	cmd.SetArgs(args)

	err := cmd.Execute()

	restoreOut()
	restoreErr()

	return &Result{
		Stdout: stdout() + cmdOut.String(),
		Stderr: stderr() + cmdErr.String(),
		Err:    err,
	}
}

// redirect swaps the given process stream for a pipe. The first returned
// function yields everything written; the second restores the stream.
func redirect(t *testing.T, stream **os.File) (func() string, func()) {
	t.Helper()
	orig := *stream
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("creating capture pipe: %v", err)
	}
	*stream = w

	done := make(chan string, 1)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()

	var captured string
	read := func() string { return captured }
	restore := func() {
		w.Close()
		captured = <-done
		r.Close()
		*stream = orig
	}
	return read, restore
}

// AssertSuccess fails the test if the command returned an error.
func (r *Result) AssertSuccess(t *testing.T) {
	t.Helper()
	if r.Err != nil {
		t.Fatalf("command failed: %v\nstdout: %s\nstderr: %s", r.Err, r.Stdout, r.Stderr)
	}
}

// AssertError fails the test if the command succeeded.
func (r *Result) AssertError(t *testing.T) {
	t.Helper()
	if r.Err == nil {
		t.Fatalf("command unexpectedly succeeded\nstdout: %s", r.Stdout)
	}
}

// AssertContains fails the test if stdout does not contain want.
func (r *Result) AssertContains(t *testing.T, want string) {
	t.Helper()
	if !strings.Contains(r.Stdout, want) {
		t.Errorf("stdout missing %q, got:\n%s", want, r.Stdout)
	}
}

// AssertNotContains fails the test if stdout contains unwanted.
func (r *Result) AssertNotContains(t *testing.T, unwanted string) {
	t.Helper()
	if strings.Contains(r.Stdout, unwanted) {
		t.Errorf("stdout should not contain %q, got:\n%s", unwanted, r.Stdout)
	}
}

// WriteConfig writes a styrarun config file into a fresh temp directory and
// returns its path, for use with the --config flag.
//
// Example:
//
//	path := cli.WriteConfig(t, "url: "+server.URL()+"\ntoken: secret\n")
//	cli.Run(t, rootCmd, "gateways", "--config", path)
func WriteConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}
