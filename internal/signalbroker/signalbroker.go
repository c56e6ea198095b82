// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker turns termination signals into context cancellation for the CLI.
//
// A terminal delivers SIGINT to the whole foreground process group, so a child started
// by the shell runner sees the first Ctrl-C itself. The broker only logs that first
// signal. A second signal of the same type cancels the root context.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-FFFFFF/shrun/internal/ctxlog"
)

var termSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// New creates a channel that receives the given signals, or the termination signals if
// none are given.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "signalbroker", "detail", "creating signal broker", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}

// Watch reads sigCh until the second signal of a given type arrives, at which point it
// stops signal delivery to sigCh and calls cancel. It also returns when ctx is done or
// sigCh is closed.
func Watch(ctx context.Context, sigCh chan os.Signal, cancel context.CancelFunc) {
	seen := make(map[os.Signal]struct{})

	for {
		select {
		case <-ctx.Done():
			signal.Stop(sigCh)
			return

		case sig, ok := <-sigCh:
			if !ok {
				return
			}

			if _, dup := seen[sig]; dup {
				ctxlog.Logger(ctx).Warn("watchdog",
					"detail", "received second signal of type, cancelling", "signal", sig.String())
				signal.Stop(sigCh)
				cancel()

				return
			}

			ctxlog.Logger(ctx).Info("watchdog",
				"detail", "received signal, send again to cancel", "signal", sig.String())

			seen[sig] = struct{}{}
		}
	}
}
