// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run contains the `shrun run` command, which runs the invocations listed in
// one or more YAML files.
package run

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/matt-FFFFFF/shrun/internal/config"
	"github.com/matt-FFFFFF/shrun/internal/ctxlog"
	"github.com/urfave/cli/v3"
)

const (
	fileFlag         = "file"
	parallelismFlag  = "parallelism"
	outputStdOutFlag = "output-stdout"
	noStdErrFlag     = "no-output-stderr"
	cliExitStr       = ""
	outputIndent     = "    "
)

// NewCmd returns the command that runs invocation files.
func NewCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "shrun run -f invocations.yaml",
		Description: `Run the invocations defined in a YAML file.

Every invocation in a file runs concurrently. Files given with several -f flags run one
after the other. File URLs use Hashicorp's go-getter syntax, see
https://github.com/hashicorp/go-getter.

shrun exits with 1 if any invocation could not be run or exited non-zero.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    fileFlag,
				Aliases: []string{"f"},
				Usage: "URL of an invocation file. Supports go-getter syntax. " +
					"Specify multiple times to run multiple files.",
			},
			&cli.IntFlag{
				Name:    parallelismFlag,
				Aliases: []string{"p"},
				Usage:   "Maximum number of invocations running at once. 0 means no limit.",
				Value:   0,
			},
			&cli.BoolFlag{
				Name:     outputStdOutFlag,
				Aliases:  []string{"stdout"},
				Usage:    "Include stdout in the results",
				Value:    false,
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     noStdErrFlag,
				Aliases:  []string{"no-stderr"},
				Usage:    "Exclude stderr from the results",
				Value:    false,
				OnlyOnce: true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)

	srcs := cmd.StringSlice(fileFlag)
	if len(srcs) == 0 {
		logger.Error("Please specify at least one invocation file using the --file or -f flag.")
		return cli.Exit(cliExitStr, 1)
	}

	failed := false

	for _, src := range srcs {
		b, err := fetchFile(ctx, src)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to get %s: %s", src, err.Error()))
			return cli.Exit(cliExitStr, 1)
		}

		plan, err := config.BuildFromYAML(ctx, b)
		if err != nil {
			logger.Error(fmt.Sprintf("Failed to build invocations from %s: %s", src, err.Error()))
			return cli.Exit(cliExitStr, 1)
		}

		outcomes := plan.Run(ctx, int(cmd.Int(parallelismFlag)))

		for _, o := range outcomes {
			failed = failed || o.Failed()
			writeOutcome(cmd.Root().Writer, o, cmd.Bool(outputStdOutFlag), !cmd.Bool(noStdErrFlag))
		}
	}

	if failed {
		logger.Error("Some invocations failed. See above for details.")
		return cli.Exit(cliExitStr, 1)
	}

	return nil
}

// writeOutcome prints one summary line per invocation, followed by its output if asked.
func writeOutcome(w io.Writer, o *config.Outcome, stdout, stderr bool) {
	status := "ok"
	if o.Failed() {
		status = "failed"
	}

	switch {
	case o.Err != nil:
		fmt.Fprintf(w, "%s: %s: %s\n", o.Label, status, o.Err) //nolint:errcheck
	default:
		fmt.Fprintf(w, "%s: %s (exit code %d)\n", o.Label, status, o.Result.ExitCode()) //nolint:errcheck
	}

	if o.Result == nil {
		return
	}

	if stdout && o.Result.Stdout != "" {
		fmt.Fprintf(w, "  stdout:\n%s\n", indent(o.Result.Stdout)) //nolint:errcheck
	}

	if stderr && o.Result.Stderr != "" {
		fmt.Fprintf(w, "  stderr:\n%s\n", indent(o.Result.Stderr)) //nolint:errcheck
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = outputIndent + l
	}

	return strings.Join(lines, "\n")
}
