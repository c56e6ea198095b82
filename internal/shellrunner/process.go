// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellrunner

import (
	"errors"
	"os"
	"os/exec"
	"sync"
)

// ErrWait is returned when waiting on a started child fails for a reason other than
// the child exiting with a non-zero code.
var ErrWait = errors.New("failed waiting for process")

// Process is the handle of a spawned child.
type Process struct {
	cmd     *exec.Cmd
	once    sync.Once
	done    chan struct{}
	waitErr error
}

func newProcess(cmd *exec.Cmd) *Process {
	return &Process{
		cmd:  cmd,
		done: make(chan struct{}),
	}
}

// Pid returns the operating system process id, or -1 if the child was never started.
func (p *Process) Pid() int {
	if p == nil || p.cmd == nil || p.cmd.Process == nil {
		return -1
	}

	return p.cmd.Process.Pid
}

// Wait blocks until the child exits and its I/O has been copied.
// It is safe to call Wait more than once and from several goroutines.
// A non-zero exit code does not produce an error.
func (p *Process) Wait() error {
	p.once.Do(func() {
		defer close(p.done)

		err := p.cmd.Wait()

		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			p.waitErr = errors.Join(ErrWait, err)
		}
	})

	<-p.done

	return p.waitErr
}

// Done is closed once Wait has returned.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the exit status is final.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code of the child.
// It returns -1 while the child is still running or if it was terminated by a signal.
func (p *Process) ExitCode() int {
	if !p.Exited() || p.cmd.ProcessState == nil {
		return -1
	}

	return p.cmd.ProcessState.ExitCode()
}

// State returns the final process state, or nil while the child is still running.
func (p *Process) State() *os.ProcessState {
	if !p.Exited() {
		return nil
	}

	return p.cmd.ProcessState
}

// Args returns the argument vector the child was spawned with, interpreter included.
func (p *Process) Args() []string {
	return p.cmd.Args
}
