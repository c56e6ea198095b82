// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellrunner

import (
	"errors"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

const (
	// emptyToken is the quoted form of an empty argument.
	emptyToken = "''"
	// commandLineSeparator joins the quoted tokens.
	commandLineSeparator = " "
	// singleQuote delimits a literal word.
	singleQuote = "'"
	// escapedSingleQuote closes the literal, adds an escaped quote and reopens it.
	escapedSingleQuote = `'\''`
)

// ErrUnquotable is returned when a token cannot be represented in a POSIX shell word,
// which is the case when it contains a NUL byte.
var ErrUnquotable = errors.New("argument cannot be quoted for the shell")

// Quote returns arg quoted so that a POSIX shell reads it back as exactly one word,
// with no expansion of any kind.
func Quote(arg string) (string, error) {
	if arg == "" {
		return emptyToken, nil
	}

	if strings.IndexByte(arg, 0) >= 0 {
		return "", ErrUnquotable
	}

	quoted, err := syntax.Quote(arg, syntax.LangPOSIX)
	if err == nil {
		return quoted, nil
	}

	// POSIX has no escape sequences for non-printable characters, but a single-quoted
	// word keeps every byte other than NUL as is.
	var qErr *syntax.QuoteError
	if !errors.As(err, &qErr) {
		return "", errors.Join(ErrUnquotable, err)
	}

	return singleQuote + strings.ReplaceAll(arg, singleQuote, escapedSingleQuote) + singleQuote, nil
}

// QuoteCommandLine quotes every token and joins them with single spaces.
func QuoteCommandLine(args []string) (string, error) {
	quoted := make([]string, 0, len(args))

	for _, arg := range args {
		q, err := Quote(arg)
		if err != nil {
			return "", err
		}

		quoted = append(quoted, q)
	}

	return strings.Join(quoted, commandLineSeparator), nil
}
