// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the shrun command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/shrun"
	"github.com/matt-FFFFFF/shrun/cmd/shrun/exec"
	"github.com/matt-FFFFFF/shrun/cmd/shrun/run"
	"github.com/matt-FFFFFF/shrun/internal/ctxlog"
	"github.com/matt-FFFFFF/shrun/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

const jsonLogsFlag = "json-logs"

func newRootCmd() *cli.Command {
	return &cli.Command{
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  jsonLogsFlag,
				Usage: "Write log records as JSON instead of the pretty console format",
				Value: false,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if cmd.Bool(jsonLogsFlag) {
				return ctxlog.New(ctx, ctxlog.JSONLogger), nil
			}

			return ctx, nil
		},
		Commands: []*cli.Command{
			exec.NewCmd(),
			run.NewCmd(),
		},
		Writer:    os.Stdout,
		ErrWriter: os.Stderr,
		Name:      "shrun",
		Description: `shrun runs commands through /bin/sh, either in a directory you choose or in a
temporary directory that is removed when the command finishes. Every argument is quoted
before it reaches the shell, so it is passed to the command exactly as given.`,
		Usage:     "shrun exec -- ls -la",
		Version:   fmt.Sprintf("%s (commit: %s)", shrun.Version, shrun.Commit),
		Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
		Authors: []any{
			"Matt White (matt-FFFFFF)",
		},
		EnableShellCompletion: true,
	}
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel)

	err := newRootCmd().Run(ctx, os.Args) // Err is handled by cli framework

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}

	ctxlog.Logger(ctx).Info("command completed successfully")
}
