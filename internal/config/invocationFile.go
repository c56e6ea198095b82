// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/matt-FFFFFF/shrun/internal/ctxlog"
	"github.com/matt-FFFFFF/shrun/internal/shellrunner"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInvalidYaml is returned when the file cannot be parsed.
	ErrInvalidYaml = errors.New("invalid YAML")
	// ErrNoInvocations is returned when the file lists no invocations.
	ErrNoInvocations = errors.New("no invocations specified")
	// ErrNoArgs is returned when an invocation has no command arguments.
	ErrNoArgs = errors.New("invocation has no args")
)

// Definition is the root of an invocation file.
type Definition struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	Invocations []InvocationDefinition `yaml:"invocations"`
}

// InvocationDefinition describes one command to run.
type InvocationDefinition struct {
	Label   string            `yaml:"label"`
	Args    []string          `yaml:"args"`
	Dir     string            `yaml:"dir"`               // Empty means a temporary directory.
	Capture *bool             `yaml:"capture,omitempty"` // Defaults to true.
	Charset string            `yaml:"charset"`
	Env     map[string]string `yaml:"env,omitempty"` // Absent means PATH and TMPDIR only.
}

// Plan is a parsed invocation file, ready to run.
type Plan struct {
	Name        string
	Invocations []*Invocation
}

// Invocation pairs a runner with the options it is run with.
type Invocation struct {
	Label   string
	Runner  *shellrunner.AsyncRunner
	Options []shellrunner.Option
}

// Outcome is the result of one invocation of a plan.
type Outcome struct {
	Label  string
	Result *shellrunner.Result
	Err    error
}

// Failed reports whether the invocation could not be completed or exited non-zero.
func (o *Outcome) Failed() bool {
	return o.Err != nil || o.Result == nil || o.Result.ExitCode() != 0
}

// BuildFromYAML parses an invocation file into a Plan.
func BuildFromYAML(ctx context.Context, yamlData []byte) (*Plan, error) {
	var def Definition
	if err := yaml.Unmarshal(yamlData, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYaml, err)
	}

	return Build(ctx, &def)
}

// Build turns a Definition into a Plan.
func Build(ctx context.Context, def *Definition) (*Plan, error) {
	if len(def.Invocations) == 0 {
		return nil, ErrNoInvocations
	}

	plan := &Plan{
		Name:        def.Name,
		Invocations: make([]*Invocation, 0, len(def.Invocations)),
	}

	for i, d := range def.Invocations {
		if len(d.Args) == 0 {
			return nil, fmt.Errorf("%w: invocation %d (%s)", ErrNoArgs, i, d.Label)
		}

		label := d.Label
		if label == "" {
			label = fmt.Sprintf("invocation %d", i)
		}

		opts := []shellrunner.Option{
			shellrunner.WithCharset(d.Charset),
		}

		if d.Capture != nil {
			opts = append(opts, shellrunner.WithCapture(*d.Capture))
		}

		if d.Env != nil {
			opts = append(opts, shellrunner.WithEnv(d.Env))
		}

		ctxlog.Debug(ctx, "built invocation", "label", label, "args", d.Args, "dir", d.Dir)

		plan.Invocations = append(plan.Invocations, &Invocation{
			Label:   label,
			Runner:  shellrunner.NewAsync(d.Args, d.Dir),
			Options: opts,
		})
	}

	return plan, nil
}

// Run starts every invocation and waits for all of them. At most parallelism
// invocations run at once; zero or less means no limit. Outcomes are returned in file
// order. A failing invocation does not stop the others.
func (p *Plan) Run(ctx context.Context, parallelism int) []*Outcome {
	outcomes := make([]*Outcome, len(p.Invocations))

	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	for i, inv := range p.Invocations {
		g.Go(func() error {
			res, err := inv.Runner.Run(ctx, inv.Options...).Await(ctx)

			// Uncaptured invocations resolve on spawn; reap them so the exit code is final.
			if res != nil && res.Process != nil && !res.Process.Exited() {
				if waitErr := res.Process.Wait(); waitErr != nil {
					err = errors.Join(err, waitErr)
				}
			}

			outcomes[i] = &Outcome{
				Label:  inv.Label,
				Result: res,
				Err:    err,
			}

			return nil
		})
	}

	_ = g.Wait()

	return outcomes
}
