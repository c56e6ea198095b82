// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellrunner

import (
	"context"
	"slices"
)

// AsyncRunner runs a command on its own goroutine and hands back a Future.
//
// With capture on, the Future resolves once the child has exited and its output has been
// decoded. With capture off, the Future resolves as soon as the child has been spawned;
// the exit code is then not final until Process.Wait is called.
//
// Cancelling the context given to Future.Await stops the wait but does not kill the child.
type AsyncRunner struct {
	Args []string // Command tokens, each one passed to the shell as a single word.
	Dir  string   // Working directory, a temporary directory is used when empty.
}

// NewAsync creates an AsyncRunner. args is copied.
func NewAsync(args []string, dir string) *AsyncRunner {
	return &AsyncRunner{
		Args: slices.Clone(args),
		Dir:  dir,
	}
}

// Run starts the command in r.Dir, or in a temporary directory if r.Dir is empty.
func (r *AsyncRunner) Run(ctx context.Context, opts ...Option) *Future {
	if r.Dir != "" {
		return r.RunIn(ctx, r.Dir, opts...)
	}

	return r.RunInTemporaryFolder(ctx, opts...)
}

// RunInTemporaryFolder starts the command in a new temporary directory, which is removed
// before the Future resolves.
func (r *AsyncRunner) RunInTemporaryFolder(ctx context.Context, opts ...Option) *Future {
	return goFuture(func() (res *Result, err error) {
		dir, cleanup, err := makeTempDir(ctx)
		if err != nil {
			return nil, err
		}

		defer func() {
			err = appendErr(err, cleanup())
		}()

		return r.runIn(ctx, dir, opts...)
	})
}

// RunIn starts the command in folder.
func (r *AsyncRunner) RunIn(ctx context.Context, folder string, opts ...Option) *Future {
	return goFuture(func() (*Result, error) {
		return r.runIn(ctx, folder, opts...)
	})
}

func (r *AsyncRunner) runIn(ctx context.Context, folder string, opts ...Option) (*Result, error) {
	o := newOptions(opts...)

	inv, err := spawn(ctx, r.Args, folder, o)
	if err != nil {
		return nil, err
	}

	return inv.finish(ctx, o.capture)
}

// Future is the pending outcome of an AsyncRunner invocation.
type Future struct {
	done chan struct{}
	res  *Result
	err  error
}

func goFuture(fn func() (*Result, error)) *Future {
	f := &Future{
		done: make(chan struct{}),
	}

	go func() {
		defer close(f.done)

		f.res, f.err = fn()
	}()

	return f
}

// Done is closed when the Future has resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the Future resolves or ctx is done, whichever comes first.
// If ctx is done first, ctx.Err() is returned and the invocation carries on in the
// background; awaiting again later returns its outcome.
func (f *Future) Await(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks until the Future resolves.
func (f *Future) Wait() (*Result, error) {
	<-f.done

	return f.res, f.err
}
