// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package exec contains the `shrun exec` command, which runs a single command line.
package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/matt-FFFFFF/shrun/internal/ctxlog"
	"github.com/matt-FFFFFF/shrun/internal/shellrunner"
	"github.com/urfave/cli/v3"
)

const (
	dirFlag       = "dir"
	noCaptureFlag = "no-capture"
	charsetFlag   = "charset"
	envFlag       = "env"
	asyncFlag     = "async"
	shellFlag     = "shell"
	cliExitStr    = ""
	envSeparator  = "="
)

// ErrInvalidEnv is returned when an --env value is not of the form KEY=VALUE.
var ErrInvalidEnv = errors.New("environment variable must be KEY=VALUE")

// NewCmd returns the command that runs the arguments after `--` as a single shell
// command line. A fresh command is built on every call because urfave/cli keeps the
// parsed flag state on the command.
func NewCmd() *cli.Command {
	return &cli.Command{
		Name:  "exec",
		Usage: "shrun exec [flags] -- COMMAND [ARGS...]",
		Description: `Run a command through /bin/sh, quoting every argument so that the child
receives it unchanged.

Without --dir the command runs in a new temporary directory that is removed afterwards.
The child sees only PATH and TMPDIR from this environment, plus any --env values.
shrun exits with the exit code of the child.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      dirFlag,
				Aliases:   []string{"d"},
				Usage:     "Working directory. A temporary directory is used if omitted",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.BoolFlag{
				Name:     noCaptureFlag,
				Usage:    "Stream output straight to the terminal instead of capturing and decoding it",
				Value:    false,
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     charsetFlag,
				Usage:    "Character set used to decode captured output",
				Value:    shellrunner.DefaultCharset,
				OnlyOnce: true,
			},
			&cli.StringSliceFlag{
				Name:    envFlag,
				Aliases: []string{"e"},
				Usage:   "Add KEY=VALUE to the environment of the child. Specify multiple times for more",
			},
			&cli.BoolFlag{
				Name:     asyncFlag,
				Usage:    "Use the asynchronous runner",
				Value:    false,
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     shellFlag,
				Usage:    "Interpreter used to run the command line",
				Value:    shellrunner.DefaultShell,
				OnlyOnce: true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	args := cmd.Args().Slice()
	if len(args) == 0 {
		logger.Error("Please specify the command to run after --")
		return cli.Exit(cliExitStr, 1)
	}

	extraEnv, err := parseEnv(cmd.StringSlice(envFlag))
	if err != nil {
		logger.Error(err.Error())
		return cli.Exit(cliExitStr, 1)
	}

	capture := !cmd.Bool(noCaptureFlag)

	opts := []shellrunner.Option{
		shellrunner.WithCapture(capture),
		shellrunner.WithCharset(cmd.String(charsetFlag)),
		shellrunner.WithShell(cmd.String(shellFlag)),
		shellrunner.WithSpawnOptions(shellrunner.WithExtraEnv(extraEnv)),
	}

	if !capture {
		opts = append(opts, shellrunner.WithSpawnOptions(
			shellrunner.WithStdin(os.Stdin),
			shellrunner.WithStdout(cmd.Root().Writer),
			shellrunner.WithStderr(cmd.Root().ErrWriter),
		))
	}

	dir := cmd.String(dirFlag)
	logger.Debug("running", "args", args, "dir", dir, "async", cmd.Bool(asyncFlag))

	var res *shellrunner.Result

	if cmd.Bool(asyncFlag) {
		res, err = shellrunner.NewAsync(args, dir).Run(ctx, opts...).Await(ctx)
		if res != nil && !res.Process.Exited() {
			err = errors.Join(err, res.Process.Wait())
		}
	} else {
		res, err = shellrunner.New(args, dir).Run(ctx, opts...)
	}

	if res != nil {
		writeOutput(cmd.Root().Writer, res.Stdout)
		writeOutput(cmd.Root().ErrWriter, res.Stderr)
	}

	if err != nil {
		logger.Error(fmt.Sprintf("Failed to run %s: %s", strings.Join(args, " "), err.Error()))
		return cli.Exit(cliExitStr, 1)
	}

	if code := res.ExitCode(); code != 0 {
		logger.Info("command exited non-zero", "exitCode", code)
		return cli.Exit(cliExitStr, code)
	}

	return nil
}

// parseEnv converts KEY=VALUE pairs to a map.
func parseEnv(pairs []string) (map[string]string, error) {
	env := make(map[string]string, len(pairs))

	for _, p := range pairs {
		k, v, ok := strings.Cut(p, envSeparator)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEnv, p)
		}

		env[k] = v
	}

	return env, nil
}

func writeOutput(w io.Writer, s string) {
	if w == nil || s == "" {
		return
	}

	_, _ = io.WriteString(w, s)
}
