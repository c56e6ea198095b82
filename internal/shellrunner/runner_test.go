// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellrunner

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/matt-FFFFFF/shrun/internal/ctxlog"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRemoveFailed = errors.New("remove failed")

// failingRemoveFs is the OS filesystem, except that RemoveAll always fails.
type failingRemoveFs struct {
	afero.Fs
}

func (failingRemoveFs) RemoveAll(string) error {
	return errRemoveFailed
}

func skipOnWindows(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("skipping POSIX shell test on windows")
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctxlog.LevelVar.Set(slog.LevelDebug)
	t.Cleanup(func() { ctxlog.LevelVar.Set(slog.LevelWarn) })

	return ctxlog.New(context.Background(), ctxlog.DefaultLogger)
}

func realPath(t *testing.T, p string) string {
	t.Helper()

	resolved, err := filepath.EvalSymlinks(p)
	require.NoError(t, err)

	return resolved
}

// stubTempDirPath points the ephemeral directories at a fresh parent directory and
// returns it.
func stubTempDirPath(t *testing.T) string {
	t.Helper()

	parent := t.TempDir()
	stubs := gostub.Stub(&TempDirPath, func() string { return parent })
	t.Cleanup(stubs.Reset)

	return parent
}

func TestNew_CopiesArgs(t *testing.T) {
	args := []string{"echo", "a"}
	r := New(args, "")
	args[1] = "changed"

	assert.Equal(t, []string{"echo", "a"}, r.Args)
}

func TestRunner_RunInDir(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()

	res, err := New([]string{"pwd", "-P"}, dir).Run(testContext(t))
	require.NoError(t, err)

	assert.Equal(t, 0, res.ExitCode())
	assert.Equal(t, realPath(t, dir), strings.TrimSpace(res.Stdout))
	assert.Equal(t, dir, res.Dir)
	assert.DirExists(t, dir, "a caller supplied directory must never be removed")
}

func TestRunner_RunInTemporaryFolder(t *testing.T) {
	skipOnWindows(t)

	parent := stubTempDirPath(t)

	res, err := New([]string{"pwd", "-P"}, "").Run(testContext(t))
	require.NoError(t, err)

	cwd := strings.TrimSpace(res.Stdout)
	assert.Equal(t, realPath(t, parent), filepath.Dir(cwd))
	assert.True(t, strings.HasPrefix(filepath.Base(cwd), tempDirPrefix), "unexpected dir %q", cwd)
	assert.NoDirExists(t, cwd)
	assert.NoDirExists(t, res.Dir)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunner_TemporaryFolderRemovedOnLaunchFailure(t *testing.T) {
	skipOnWindows(t)

	parent := stubTempDirPath(t)

	res, err := New([]string{"true"}, "").Run(testContext(t), WithShell("/not/a/real/shell"))
	require.ErrorIs(t, err, ErrLaunch)
	assert.Nil(t, res)

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunner_TemporaryFolderRemovedOnNonZeroExit(t *testing.T) {
	skipOnWindows(t)

	parent := stubTempDirPath(t)

	res, err := New([]string{"sh", "-c", "touch leftover; exit 3"}, "").Run(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode())

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunner_NonZeroExitIsNotAnError(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{name: "true", args: []string{"true"}, want: 0},
		{name: "false", args: []string{"false"}, want: 1},
		{name: "explicit code", args: []string{"sh", "-c", "exit 42"}, want: 42},
		{name: "command not found", args: []string{"shrun-no-such-command"}, want: 127},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(tt.args, t.TempDir()).Run(testContext(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.ExitCode())
			assert.True(t, res.Process.Exited())
			assert.NotNil(t, res.Process.State())
		})
	}
}

func TestRunner_Capture(t *testing.T) {
	skipOnWindows(t)

	args := []string{"sh", "-c", "printf out; printf err >&2"}

	res, err := New(args, t.TempDir()).Run(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "out", res.Stdout)
	assert.Equal(t, "err", res.Stderr)
}

func TestRunner_WithoutCapture(t *testing.T) {
	skipOnWindows(t)

	args := []string{"sh", "-c", "printf out; printf err >&2; exit 2"}

	res, err := New(args, t.TempDir()).Run(testContext(t), WithoutCapture())
	require.NoError(t, err)
	assert.Empty(t, res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.True(t, res.Process.Exited(), "the sync runner always waits")
	assert.Equal(t, 2, res.ExitCode())
}

func TestRunner_DefaultEnvIsMinimal(t *testing.T) {
	skipOnWindows(t)

	t.Setenv("SHRUN_TEST_SECRET", "leaked")

	args := []string{"sh", "-c", `printf %s "${SHRUN_TEST_SECRET-unset}"`}

	res, err := New(args, t.TempDir()).Run(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "unset", res.Stdout)
}

func TestRunner_WithEnv(t *testing.T) {
	skipOnWindows(t)

	env := map[string]string{"FOO": "bar baz"}
	args := []string{"sh", "-c", `printf %s "$FOO"`}

	res, err := New(args, t.TempDir()).Run(testContext(t), WithEnv(env))
	require.NoError(t, err)
	assert.Equal(t, "bar baz", res.Stdout)
}

func TestRunner_WithExtraEnv(t *testing.T) {
	skipOnWindows(t)

	args := []string{"sh", "-c", `printf %s "$EXTRA"`}

	res, err := New(args, t.TempDir()).Run(testContext(t),
		WithSpawnOptions(WithExtraEnv(map[string]string{"EXTRA": "yes"})))
	require.NoError(t, err)
	assert.Equal(t, "yes", res.Stdout)
}

func TestRunner_Charset(t *testing.T) {
	skipOnWindows(t)

	args := []string{"printf", `caf\351`}

	res, err := New(args, t.TempDir()).Run(testContext(t), WithCharset("ISO-8859-1"))
	require.NoError(t, err)
	assert.Equal(t, "café", res.Stdout)

	res, err = New(args, t.TempDir()).Run(testContext(t))
	require.ErrorIs(t, err, ErrDecoding)
	require.NotNil(t, res, "the result is returned alongside a decoding failure")
	assert.Equal(t, 0, res.ExitCode())
}

func TestRunner_SpawnOptions(t *testing.T) {
	skipOnWindows(t)

	t.Run("stdin", func(t *testing.T) {
		res, err := New([]string{"cat"}, t.TempDir()).Run(testContext(t),
			WithSpawnOptions(WithStdin(strings.NewReader("from stdin"))))
		require.NoError(t, err)
		assert.Equal(t, "from stdin", res.Stdout)
	})

	t.Run("stdout override takes precedence over capture", func(t *testing.T) {
		var buf bytes.Buffer

		res, err := New([]string{"printf", "redirected"}, t.TempDir()).Run(testContext(t),
			WithSpawnOptions(WithStdout(&buf)))
		require.NoError(t, err)
		assert.Empty(t, res.Stdout)
		assert.Equal(t, "redirected", buf.String())
	})

	t.Run("stderr override", func(t *testing.T) {
		var buf bytes.Buffer

		res, err := New([]string{"sh", "-c", "printf oops >&2"}, t.TempDir()).Run(testContext(t),
			WithSpawnOptions(WithStderr(&buf)))
		require.NoError(t, err)
		assert.Empty(t, res.Stderr)
		assert.Equal(t, "oops", buf.String())
	})
}

func TestRunner_LaunchFailures(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name    string
		runner  *Runner
		opts    []Option
		wantErr []error
	}{
		{
			name:    "missing directory",
			runner:  New([]string{"true"}, "/not/a/real/dir"),
			wantErr: []error{ErrLaunch},
		},
		{
			name:    "missing shell",
			runner:  New([]string{"true"}, os.TempDir()),
			opts:    []Option{WithShell("/not/a/real/shell")},
			wantErr: []error{ErrLaunch},
		},
		{
			name:    "no args",
			runner:  New(nil, os.TempDir()),
			wantErr: []error{ErrLaunch, ErrNoArgs},
		},
		{
			name:    "nul in argument",
			runner:  New([]string{"echo", "a\x00b"}, os.TempDir()),
			wantErr: []error{ErrLaunch, ErrUnquotable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.runner.Run(testContext(t), tt.opts...)
			assert.Nil(t, res)

			for _, want := range tt.wantErr {
				require.ErrorIs(t, err, want)
			}
		})
	}
}

func TestRunner_CancelledContextDoesNotSpawn(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	cancel()

	res, err := New([]string{"true"}, t.TempDir()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
}

func TestRunner_TempDirCreationFailure(t *testing.T) {
	stubs := gostub.Stub(&FS, afero.NewReadOnlyFs(afero.NewOsFs()))
	defer stubs.Reset()

	res, err := New([]string{"true"}, "").Run(testContext(t))
	require.ErrorIs(t, err, ErrTempDir)
	assert.Nil(t, res)
}

func TestRunner_CleanupFailureIsReported(t *testing.T) {
	skipOnWindows(t)

	parent := stubTempDirPath(t)

	stubs := gostub.Stub(&FS, failingRemoveFs{Fs: afero.NewOsFs()})
	defer stubs.Reset()

	res, err := New([]string{"false"}, "").Run(testContext(t))
	require.ErrorIs(t, err, ErrCleanup)
	require.ErrorIs(t, err, errRemoveFailed)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.ExitCode())

	entries, readErr := os.ReadDir(parent)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1, "the directory is left behind when removal fails")
}

func TestResult_ExitCodeNil(t *testing.T) {
	var r *Result
	assert.Equal(t, -1, r.ExitCode())
	assert.Equal(t, -1, (&Result{}).ExitCode())
}
