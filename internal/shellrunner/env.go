// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellrunner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/matt-FFFFFF/shrun/internal/ctxlog"
	"github.com/spf13/afero"
)

const (
	// EnvPath is the search path inherited by the default environment.
	EnvPath = "PATH"
	// EnvTmpDir is the temporary directory inherited by the default environment.
	EnvTmpDir = "TMPDIR"
	// tmpDirMode is the mode used when creating a missing TMPDIR.
	tmpDirMode = 0o755
)

// inheritedEnv lists the variables copied from the calling process when the caller does
// not supply an environment.
var inheritedEnv = []string{EnvPath, EnvTmpDir}

// LookupEnv reads the environment of the calling process.
// It can be replaced in tests.
var LookupEnv = os.LookupEnv

// DefaultEnv returns the minimal environment handed to a child when the caller does not
// supply one. Variables that are not set in the calling process are left out.
func DefaultEnv() map[string]string {
	env := make(map[string]string, len(inheritedEnv))

	for _, k := range inheritedEnv {
		if v, ok := LookupEnv(k); ok {
			env[k] = v
		}
	}

	return env
}

func resolveEnv(env map[string]string) map[string]string {
	if env == nil {
		return DefaultEnv()
	}

	return env
}

// environToList converts env to KEY=VALUE pairs, sorted by key.
// The result is never nil, so an empty map produces an empty environment.
func environToList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, fmt.Sprintf("%s=%s", k, env[k]))
	}

	return list
}

// createdDirs counts the invocations using each directory this package created.
var createdDirs = struct {
	sync.Mutex
	refs map[string]int
}{refs: make(map[string]int)}

// ensureTmpDir creates the directory named by TMPDIR in env when it does not exist yet.
// The returned function releases it; the last invocation to release a directory that
// this package created removes it.
func ensureTmpDir(ctx context.Context, env map[string]string) (func() error, error) {
	return acquireDir(ctx, env[EnvTmpDir])
}

// acquireDir makes sure dir exists. Directories that already existed are never removed.
// Removal only succeeds on an empty directory, anything left behind is ErrCleanup.
func acquireDir(ctx context.Context, dir string) (func() error, error) {
	noop := func() error { return nil }

	if dir == "" {
		return noop, nil
	}

	createdDirs.Lock()
	defer createdDirs.Unlock()

	if createdDirs.refs[dir] == 0 {
		exists, err := afero.DirExists(FS, dir)
		if err != nil {
			return noop, errors.Join(ErrTempDir, err)
		}

		if exists {
			return noop, nil
		}

		ctxlog.Debug(ctx, "creating missing directory", "dir", dir)

		if err := FS.Mkdir(dir, tmpDirMode); err != nil {
			return noop, errors.Join(ErrTempDir, err)
		}
	}

	createdDirs.refs[dir]++

	var once sync.Once

	return func() (err error) {
		once.Do(func() {
			err = releaseDir(ctx, dir)
		})

		return err
	}, nil
}

func releaseDir(ctx context.Context, dir string) error {
	createdDirs.Lock()
	defer createdDirs.Unlock()

	createdDirs.refs[dir]--
	if createdDirs.refs[dir] > 0 {
		return nil
	}

	delete(createdDirs.refs, dir)

	ctxlog.Debug(ctx, "removing directory created for the invocation", "dir", dir)

	if err := FS.Remove(dir); err != nil {
		return errors.Join(ErrCleanup, err)
	}

	return nil
}
