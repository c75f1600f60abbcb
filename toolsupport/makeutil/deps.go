// Copyright 2023 The Chromium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package makeutil provides utilities for make style dependency rules.
package makeutil

import (
	"bytes"
	"io"
	"strings"
)

// ParseDeps parses the first rule of a deps file and returns its inputs.
func ParseDeps(b []byte) []string {
	// deps contents
	// <output>: <input> ...
	// <input> is space separated
	// '\'+newline is space
	// '\'+space is escaped space (not separator)
	// unescaped newline terminates the rule.
	i := bytes.IndexByte(b, ':')
	if i < 0 {
		return nil
	}
	var inputs []string
	var token string
	var eol bool
	for s := b[i+1:]; len(s) > 0 && !eol; {
		token, s, eol = nextToken(s)
		if token != "" {
			inputs = append(inputs, token)
		}
	}
	return inputs
}

func nextToken(s []byte) (string, []byte, bool) {
	var sb strings.Builder
skipSpaces:
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && s[i+1] == '\n' {
			i++
			continue
		}
		if s[i] == '\\' && i+2 < len(s) && s[i+1] == '\r' && s[i+2] == '\n' {
			i += 2
			continue
		}
		switch s[i] {
		case ' ', '\t', '\r':
			continue
		case '\n':
			return "", nil, true
		default:
			s = s[i:]
			break skipSpaces
		}
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case ' ':
				sb.WriteByte(s[i])
			case '#':
				sb.WriteByte(s[i])
			case '\r', '\n':
				// '\'+newline is space
				rest := s[i+1:]
				if s[i] == '\r' && len(rest) > 0 && rest[0] == '\n' {
					rest = rest[1:]
				}
				return sb.String(), rest, false
			default:
				sb.WriteByte('\\')
				sb.WriteByte(s[i])
			}
			continue
		}
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '$' {
			i++
			sb.WriteByte('$')
			continue
		}
		switch s[i] {
		case ' ', '\t', '\r':
			return sb.String(), s[i+1:], false
		case '\n':
			return sb.String(), nil, true
		}
		sb.WriteByte(s[i])
	}
	return sb.String(), nil, true
}

// QuoteTarget quotes target for use as a make rule target.
// Backslashes preceding a space or tab are doubled, spaces and tabs are
// escaped, '$' becomes "$$" and '#' is escaped.
func QuoteTarget(target string) string {
	var sb strings.Builder
	sb.Grow(len(target))
	for i := 0; i < len(target); i++ {
		switch target[i] {
		case ' ', '\t':
			for j := i - 1; j >= 0 && target[j] == '\\'; j-- {
				sb.WriteByte('\\')
			}
			sb.WriteByte('\\')
		case '$':
			sb.WriteByte('$')
		case '#':
			sb.WriteByte('\\')
		}
		sb.WriteByte(target[i])
	}
	return sb.String()
}

// WriteRule writes a make rule of targets depending on inputs.
// Targets are expected to be quoted already; inputs are quoted here.
// Long rules are wrapped with '\'+newline.
func WriteRule(w io.Writer, targets, inputs []string) error {
	const columns = 75
	var sb strings.Builder
	n := 0
	for i, t := range targets {
		if i > 0 {
			sb.WriteByte(' ')
			n++
		}
		sb.WriteString(t)
		n += len(t)
	}
	sb.WriteByte(':')
	n++
	for _, in := range inputs {
		q := QuoteTarget(in)
		if n+1+len(q) > columns {
			sb.WriteString(" \\\n ")
			n = 1
		}
		sb.WriteByte(' ')
		sb.WriteString(q)
		n += 1 + len(q)
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}
