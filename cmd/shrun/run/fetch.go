// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-getter/v2"
	"github.com/matt-FFFFFF/shrun/internal/ctxlog"
)

const (
	getterSubdirSeparator = "//"
	getterQuerySeparator  = "?"
	getterMinimumParts    = 3 // scheme, host and path
	getterTempPattern     = "shrun-getter-*"
	getterDstName         = "g"
)

// ErrGetInvocationFile is returned when an invocation file cannot be fetched.
var ErrGetInvocationFile = errors.New("failed to get invocation file")

// fetchFile downloads the file at src, which may use any go-getter source syntax, and
// returns its content. The download directory is removed before returning.
func fetchFile(ctx context.Context, src string) ([]byte, error) {
	if src == "" {
		return nil, ErrGetInvocationFile
	}

	tmpDir, err := os.MkdirTemp("", getterTempPattern)
	if err != nil {
		return nil, errors.Join(ErrGetInvocationFile, err)
	}

	defer os.RemoveAll(tmpDir) //nolint:errcheck

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Join(ErrGetInvocationFile, err)
	}

	client := getter.Client{
		DisableSymlinks: true,
	}

	req := &getter.Request{
		Src:     src,
		Dst:     filepath.Join(tmpDir, getterDstName),
		Pwd:     wd,
		GetMode: getter.ModeDir,
	}

	// go-getter fetches directories, so remote sources are split into the directory to
	// fetch and the file to read from it.
	var fileName string

	isLocal, err := getter.Detect(req, &getter.FileGetter{})
	if err != nil {
		return nil, errors.Join(ErrGetInvocationFile, err)
	}

	if isLocal {
		req.Src = filepath.Dir(src)
		fileName = filepath.Base(src)
	} else {
		var dirSrc string

		dirSrc, fileName = splitGetterSource(src)
		if dirSrc == "" || fileName == "" {
			return nil, fmt.Errorf("%w: invalid source %s", ErrGetInvocationFile, src)
		}

		req.Src = dirSrc
	}

	ctxlog.Debug(ctx, "fetching invocation file", "src", req.Src, "file", fileName)

	res, err := client.Get(ctx, req)
	if err != nil {
		return nil, errors.Join(ErrGetInvocationFile, err)
	}

	b, err := os.ReadFile(filepath.Join(res.Dst, fileName))
	if err != nil {
		return nil, errors.Join(ErrGetInvocationFile, err)
	}

	return b, nil
}

// splitGetterSource splits a remote go-getter source such as
// `git::https://host/repo//dir/file.yaml?ref=v1` into the directory source
// `git::https://host/repo//dir?ref=v1` and the file name `file.yaml`.
func splitGetterSource(src string) (string, string) {
	parts := strings.Split(src, getterSubdirSeparator)
	if len(parts) < getterMinimumParts {
		return "", ""
	}

	last := parts[len(parts)-1]

	var query string
	if before, after, ok := strings.Cut(last, getterQuerySeparator); ok {
		last = before
		query = after
	}

	if filepath.Clean(last) == filepath.Dir(last) {
		return "", ""
	}

	fileName := filepath.Base(last)

	dir := filepath.Dir(last)
	if dir == "." {
		parts = parts[:len(parts)-1]
	} else {
		parts[len(parts)-1] = dir
	}

	dirSrc := strings.Join(parts, getterSubdirSeparator)
	if query != "" {
		dirSrc += getterQuerySeparator + query
	}

	return dirSrc, fileName
}
