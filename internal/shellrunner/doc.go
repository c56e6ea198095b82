// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package shellrunner runs a list of command-line tokens through a POSIX shell.
//
// Each token is quoted individually and the quoted tokens are joined into a single
// command line, which is executed with `/bin/sh -c`. A command runs either in the
// directory supplied at construction, or in a freshly created temporary directory
// that is removed before the result is returned.
//
// Two runners are provided. Runner blocks the calling goroutine until the command
// finishes. AsyncRunner returns a Future straight away and performs the spawn and the
// output collection on its own goroutine.
//
// A non-zero exit code is not an error: it is reported on the Process handle of the
// Result and the caller decides what it means.
package shellrunner
