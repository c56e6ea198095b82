// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellrunner

import (
	"io"
	"maps"
	"os/exec"
	"time"
)

const (
	// DefaultCharset is used to decode captured output when no charset is given.
	DefaultCharset = "utf-8"
	// DefaultShell is the interpreter that receives the quoted command line.
	DefaultShell = "/bin/sh"
	// shellCommandSwitch makes the shell read the command from its next argument.
	shellCommandSwitch = "-c"
)

// Option configures a single invocation.
type Option func(o *options)

// SpawnOption adjusts the command after the runner has applied its defaults.
// Spawn options are applied in order, so they take precedence over the defaults and
// over earlier spawn options.
type SpawnOption func(cmd *exec.Cmd)

type options struct {
	capture bool
	env     map[string]string
	charset string
	shell   string
	spawn   []SpawnOption
}

func newOptions(opts ...Option) *options {
	o := &options{
		capture: true,
		charset: DefaultCharset,
		shell:   DefaultShell,
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.charset == "" {
		o.charset = DefaultCharset
	}

	if o.shell == "" {
		o.shell = DefaultShell
	}

	return o
}

// WithCapture sets whether standard output and standard error are collected and decoded.
// Capture is on by default.
func WithCapture(capture bool) Option {
	return func(o *options) {
		o.capture = capture
	}
}

// WithoutCapture disables output capture.
func WithoutCapture() Option {
	return WithCapture(false)
}

// WithEnv sets the complete environment of the child process.
// Without it the child receives only PATH and TMPDIR from the calling process.
// A non-nil empty map gives the child an empty environment.
func WithEnv(env map[string]string) Option {
	return func(o *options) {
		if env == nil {
			o.env = nil
			return
		}

		o.env = maps.Clone(env)
	}
}

// WithCharset sets the character set used to decode captured output.
func WithCharset(charset string) Option {
	return func(o *options) {
		o.charset = charset
	}
}

// WithShell overrides the interpreter used to run the command line.
// The interpreter must accept `-c <command line>`.
func WithShell(shell string) Option {
	return func(o *options) {
		o.shell = shell
	}
}

// WithSpawnOptions appends spawn options for the invocation.
func WithSpawnOptions(spawn ...SpawnOption) Option {
	return func(o *options) {
		o.spawn = append(o.spawn, spawn...)
	}
}

// WithStdin connects r to the standard input of the child.
func WithStdin(r io.Reader) SpawnOption {
	return func(cmd *exec.Cmd) {
		cmd.Stdin = r
	}
}

// WithStdout redirects the standard output of the child to w.
// When capture is on, the captured standard output will be empty.
func WithStdout(w io.Writer) SpawnOption {
	return func(cmd *exec.Cmd) {
		cmd.Stdout = w
	}
}

// WithStderr redirects the standard error of the child to w.
// When capture is on, the captured standard error will be empty.
func WithStderr(w io.Writer) SpawnOption {
	return func(cmd *exec.Cmd) {
		cmd.Stderr = w
	}
}

// WithExtraEnv adds variables on top of the resolved environment.
func WithExtraEnv(env map[string]string) SpawnOption {
	return func(cmd *exec.Cmd) {
		cmd.Env = append(cmd.Env, environToList(env)...)
	}
}

// WithWaitDelay bounds how long Wait blocks on the I/O pipes after the child exits.
func WithWaitDelay(d time.Duration) SpawnOption {
	return func(cmd *exec.Cmd) {
		cmd.WaitDelay = d
	}
}
