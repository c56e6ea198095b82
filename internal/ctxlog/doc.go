// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a slog logger on a context.Context.
//
// The default logger writes to stderr through PrettyHandler, a console handler that
// prints the timestamp, level and message on one line followed by the attributes as
// indented JSON. The level is read from the SHRUN_LOG_LEVEL environment variable.
package ctxlog
