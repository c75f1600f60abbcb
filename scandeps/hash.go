// Copyright 2023 The Chromium Authors
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package scandeps

import (
	"encoding/binary"
	"math/big"
	"slices"
	"strings"

	"github.com/zeebo/blake3"

	"go.chromium.org/infra/build/modscan/toolsupport/clangutil"
)

// ToolVersion is the version of the scanner. It is part of context hash.
const ToolVersion = "modscan 1.0.0"

// hashBuilder feeds typed values to a BLAKE3 hasher.
// Strings are prefixed by their length, so concatenation of adjacent
// strings can't collide.
type hashBuilder struct {
	h   *blake3.Hasher
	buf [8]byte
}

func newHashBuilder() *hashBuilder {
	return &hashBuilder{h: blake3.New()}
}

func (b *hashBuilder) addUint64(v uint64) {
	binary.LittleEndian.PutUint64(b.buf[:], v)
	b.h.Write(b.buf[:])
}

func (b *hashBuilder) addString(s string) {
	b.addUint64(uint64(len(s)))
	b.h.Write([]byte(s))
}

func (b *hashBuilder) addBool(v bool) {
	if v {
		b.h.Write([]byte{1})
		return
	}
	b.h.Write([]byte{0})
}

// sum returns the first 128 bits of the hash as an upper case base 36
// number.
func (b *hashBuilder) sum() string {
	digest := b.h.Sum(nil)[:16]
	// digest is a little endian 128 bit integer.
	be := slices.Clone(digest)
	slices.Reverse(be)
	return strings.ToUpper(new(big.Int).SetBytes(be).Text(36))
}

// ContextHash computes the context hash of md built with inv.
// cwd is not hashed if ignoreCWD is true, or cwd is empty.
// md.ClangModuleDeps must have their context hashes already.
func ContextHash(md *ModuleDeps, inv *clangutil.Invocation, eagerLoad, ignoreCWD bool, cwd string) string {
	b := newHashBuilder()

	// the module must be readable by the compiler.
	b.addString(ToolVersion)
	b.addUint64(ModuleFormatVersionMajor)
	b.addUint64(ModuleFormatVersionMinor)
	if cwd != "" && !ignoreCWD {
		b.addString(cwd)
	}

	var args strings.Builder
	inv.GenerateArgs(func(arg string) {
		args.WriteString(arg)
		args.WriteByte(0)
	})
	b.addString(args.String())

	// paths of dependencies may differ even if the command line is
	// the same, e.g. case insensitive module map paths.
	for _, id := range md.ClangModuleDeps {
		b.addString(id.ModuleName)
		b.addString(id.ContextHash)
	}
	b.addBool(eagerLoad)
	return b.sum()
}

// InvocationHash computes a hash of inv, including its inputs.
// It is used as the context hash of a translation unit.
func InvocationHash(inv *clangutil.Invocation) string {
	b := newHashBuilder()
	b.addString(ToolVersion)
	for _, arg := range inv.CommandLine() {
		b.addString(arg)
	}
	return b.sum()
}
