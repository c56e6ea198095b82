// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellrunner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/shrun/internal/ctxlog"
	"github.com/spf13/afero"
)

const (
	// tempDirPrefix is the name prefix of the ephemeral working directories.
	tempDirPrefix = "shrun-"
)

var (
	// ErrLaunch is returned when the shell could not be spawned, e.g. because the working
	// directory does not exist or the interpreter is missing.
	ErrLaunch = errors.New("could not launch process")
	// ErrNoArgs is returned when there is no command to run.
	ErrNoArgs = errors.New("no command arguments")
	// ErrTempDir is returned when a temporary directory could not be created.
	ErrTempDir = errors.New("could not create temporary directory")
	// ErrCleanup is returned when a directory created for the invocation could not be removed.
	ErrCleanup = errors.New("could not remove temporary directory")
)

// FS is the filesystem used to create and remove temporary directories.
// Default is the OS filesystem, but it can be replaced in tests.
var FS afero.Fs = afero.NewOsFs()

// TempDirPath returns the parent of the ephemeral working directories.
var TempDirPath = os.TempDir

// Result is the outcome of an invocation.
type Result struct {
	Process *Process // Handle of the child, carries the exit code.
	Stdout  string   // Decoded standard output, empty when capture is off.
	Stderr  string   // Decoded standard error, empty when capture is off.
	Dir     string   // Directory the command ran in.
}

// ExitCode is shorthand for r.Process.ExitCode().
func (r *Result) ExitCode() int {
	if r == nil || r.Process == nil {
		return -1
	}

	return r.Process.ExitCode()
}

// Runner runs a command and blocks until it has finished.
type Runner struct {
	Args []string // Command tokens, each one passed to the shell as a single word.
	Dir  string   // Working directory, a temporary directory is used when empty.
}

// New creates a Runner. args is copied. No validation is done here: an empty argument
// list or a missing directory surface as ErrLaunch when the command is run.
func New(args []string, dir string) *Runner {
	return &Runner{
		Args: slices.Clone(args),
		Dir:  dir,
	}
}

// Run executes the command in r.Dir, or in a temporary directory if r.Dir is empty.
// A non-zero exit code is not an error. When err is non-nil the Result is still
// returned if the child was spawned, so that the exit code can be inspected.
func (r *Runner) Run(ctx context.Context, opts ...Option) (*Result, error) {
	if r.Dir != "" {
		return r.RunIn(ctx, r.Dir, opts...)
	}

	return r.RunInTemporaryFolder(ctx, opts...)
}

// RunInTemporaryFolder executes the command in a new temporary directory.
// The directory is removed before RunInTemporaryFolder returns, whatever the outcome of
// the command, and a failure to remove it is reported as ErrCleanup.
func (r *Runner) RunInTemporaryFolder(ctx context.Context, opts ...Option) (res *Result, err error) {
	dir, cleanup, err := makeTempDir(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		err = appendErr(err, cleanup())
	}()

	return r.RunIn(ctx, dir, opts...)
}

// RunIn executes the command in folder. The sync runner always waits for the child to
// exit, so the exit code on the returned Process is final.
func (r *Runner) RunIn(ctx context.Context, folder string, opts ...Option) (*Result, error) {
	inv, err := spawn(ctx, r.Args, folder, newOptions(opts...))
	if err != nil {
		return nil, err
	}

	return inv.finish(ctx, true)
}

// invocation is a spawned child plus everything needed to complete it.
type invocation struct {
	proc       *Process
	dir        string
	opts       *options
	stdout     bytes.Buffer
	stderr     bytes.Buffer
	cleanupTmp func() error
}

// spawn builds the shell command line and starts the child in folder.
func spawn(ctx context.Context, args []string, folder string, o *options) (*invocation, error) {
	logger := ctxlog.Logger(ctx).With("runnableType", "ShellRunner")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(args) == 0 {
		return nil, errors.Join(ErrLaunch, ErrNoArgs)
	}

	line, err := QuoteCommandLine(args)
	if err != nil {
		return nil, errors.Join(ErrLaunch, err)
	}

	env := resolveEnv(o.env)

	cleanupTmp, err := ensureTmpDir(ctx, env)
	if err != nil {
		return nil, err
	}

	inv := &invocation{
		dir:        folder,
		opts:       o,
		cleanupTmp: cleanupTmp,
	}

	cmd := exec.Command(o.shell, shellCommandSwitch, line) //nolint:gosec
	cmd.Dir = folder
	cmd.Env = environToList(env)

	if o.capture {
		cmd.Stdout = &inv.stdout
		cmd.Stderr = &inv.stderr
	}

	for _, so := range o.spawn {
		so(cmd)
	}

	logger.Debug("starting process", "shell", o.shell, "line", line, "cwd", folder, "capture", o.capture)

	if err := cmd.Start(); err != nil {
		return nil, appendErr(errors.Join(ErrLaunch, err), cleanupTmp())
	}

	inv.proc = newProcess(cmd)

	logger.Debug("process started", "pid", cmd.Process.Pid)

	return inv, nil
}

// finish optionally waits for the child, decodes captured output and removes any
// TMPDIR created for the invocation.
func (inv *invocation) finish(ctx context.Context, wait bool) (*Result, error) {
	logger := ctxlog.Logger(ctx).With("runnableType", "ShellRunner")

	res := &Result{
		Process: inv.proc,
		Dir:     inv.dir,
	}

	var err error

	if wait {
		logger.Debug("waiting for process to finish", "pid", inv.proc.Pid())

		err = appendErr(err, inv.proc.Wait())

		logger.Debug("process finished", "pid", inv.proc.Pid(), "exitCode", inv.proc.ExitCode())
	}

	if wait && inv.opts.capture {
		logger.Debug("decoding output", "charset", inv.opts.charset,
			"stdoutBytes", inv.stdout.Len(), "stderrBytes", inv.stderr.Len())

		stdout, decErr := Decode(inv.stdout.Bytes(), inv.opts.charset)
		err = appendErr(err, decErr)
		res.Stdout = stdout

		stderr, decErr := Decode(inv.stderr.Bytes(), inv.opts.charset)
		err = appendErr(err, decErr)
		res.Stderr = stderr
	}

	err = appendErr(err, inv.cleanupTmp())

	return res, err
}

// makeTempDir creates a uniquely named directory under TempDirPath and returns a
// function that removes it. A missing TempDirPath is created first and released after
// the directory is removed.
func makeTempDir(ctx context.Context) (string, func() error, error) {
	base := TempDirPath()

	releaseBase, err := acquireDir(ctx, base)
	if err != nil {
		return "", nil, err
	}

	dir, err := afero.TempDir(FS, base, tempDirPrefix)
	if err != nil {
		return "", nil, appendErr(errors.Join(ErrTempDir, err), releaseBase())
	}

	ctxlog.Debug(ctx, "created temporary directory", "dir", dir)

	return dir, func() error {
		ctxlog.Debug(ctx, "removing temporary directory", "dir", dir)

		var err error
		if rmErr := FS.RemoveAll(dir); rmErr != nil {
			err = errors.Join(ErrCleanup, rmErr)
		}

		return appendErr(err, releaseBase())
	}, nil
}

// appendErr accumulates errors, returning nil when there are none.
func appendErr(err error, errs ...error) error {
	return multierror.Append(err, errs...).ErrorOrNil()
}
