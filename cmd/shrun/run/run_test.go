// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/matt-FFFFFF/shrun/internal/config"
	"github.com/matt-FFFFFF/shrun/internal/shellrunner"
	"github.com/prashantv/gostub"
	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

// runCLI runs `shrun run` with args and returns stdout and the exit code.
func runCLI(t *testing.T, args ...string) (string, int) {
	t.Helper()

	exitCode := 0
	stubs := gostub.Stub(&cli.OsExiter, func(code int) { exitCode = code })
	defer stubs.Reset()

	var stdout, stderr bytes.Buffer

	root := &cli.Command{
		Name:      "shrun",
		Commands:  []*cli.Command{NewCmd()},
		Writer:    &stdout,
		ErrWriter: &stderr,
	}

	err := root.Run(context.Background(), append([]string{"shrun", "run"}, args...))
	if err != nil && exitCode == 0 {
		exitCode = -1
	}

	return stdout.String(), exitCode
}

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("skipping POSIX shell test on windows")
	}
}

func TestRun_Success(t *testing.T) {
	skipOnWindows(t)

	out, code := runCLI(t, "-f", "testdata/invocations.yaml", "--stdout")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "greet: ok (exit code 0)")
	assert.Contains(t, out, "    hello world")
	assert.Contains(t, out, "quiet: ok (exit code 0)")
}

func TestRun_StdoutHiddenByDefault(t *testing.T) {
	skipOnWindows(t)

	out, code := runCLI(t, "-f", "testdata/invocations.yaml")
	assert.Equal(t, 0, code)
	assert.NotContains(t, out, "hello world")
}

func TestRun_FailureExitsOne(t *testing.T) {
	skipOnWindows(t)

	out, code := runCLI(t, "-f", "testdata/failing.yaml", "-p", "1")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "ok: ok (exit code 0)")
	assert.Contains(t, out, "broken: failed (exit code 3)")
	assert.Contains(t, out, "    broken")
}

func TestRun_HideStderr(t *testing.T) {
	skipOnWindows(t)

	out, code := runCLI(t, "-f", "testdata/failing.yaml", "--no-stderr")
	assert.Equal(t, 1, code)
	assert.NotContains(t, out, "stderr:")
}

func TestRun_NoFile(t *testing.T) {
	_, code := runCLI(t)
	assert.Equal(t, 1, code)
}

func TestRun_MissingFile(t *testing.T) {
	_, code := runCLI(t, "-f", "testdata/does-not-exist.yaml")
	assert.Equal(t, 1, code)
}

func Test_writeOutcome(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		outcome *config.Outcome
		want    string
	}{
		{
			name:    "error without result",
			outcome: &config.Outcome{Label: "a", Err: errors.New("boom")},
			want:    "a: failed: boom\n",
		},
		{
			name: "stdout and stderr are indented",
			outcome: &config.Outcome{
				Label:  "b",
				Result: &shellrunner.Result{Stdout: "one\ntwo\n", Stderr: "warn"},
			},
			want: "b: failed (exit code -1)\n  stdout:\n    one\n    two\n  stderr:\n    warn\n",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			writeOutcome(&buf, tc.outcome, true, true)
			assert.Equal(t, tc.want, buf.String())
		})
	}
}
