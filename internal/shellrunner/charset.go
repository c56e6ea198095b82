// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellrunner

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrDecoding is returned when captured output is not valid in the requested charset.
	ErrDecoding = errors.New("could not decode output")
	// ErrUnknownCharset is returned when the charset name is not recognised.
	ErrUnknownCharset = errors.New("unknown charset")
)

// lookupEncoding resolves an IANA or WHATWG charset name.
func lookupEncoding(charset string) (encoding.Encoding, error) {
	name := strings.TrimSpace(charset)
	if name == "" {
		name = DefaultCharset
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err == nil && enc != nil {
		return enc, nil
	}

	enc, err = htmlindex.Get(name)
	if err == nil && enc != nil {
		return enc, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownCharset, charset)
}

// Decode converts b from charset to a Go string.
// It fails with ErrDecoding when b contains bytes that are not valid in charset,
// rather than substituting replacement characters.
func Decode(b []byte, charset string) (string, error) {
	enc, err := lookupEncoding(charset)
	if err != nil {
		return "", errors.Join(ErrDecoding, err)
	}

	if len(b) == 0 {
		return "", nil
	}

	if enc == unicode.UTF8 || enc == encoding.Nop {
		if !utf8.Valid(b) {
			return "", fmt.Errorf("%w: invalid %s byte sequence", ErrDecoding, charset)
		}

		return string(b), nil
	}

	decoded, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", errors.Join(ErrDecoding, err)
	}

	// Decoders substitute U+FFFD for invalid input. Output without it is valid as is;
	// otherwise the input must re-encode to itself, which holds when it encoded U+FFFD.
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		reencoded, err := enc.NewEncoder().Bytes(decoded)
		if err != nil || !bytes.Equal(reencoded, b) {
			return "", fmt.Errorf("%w: invalid %s byte sequence", ErrDecoding, charset)
		}
	}

	return string(decoded), nil
}
