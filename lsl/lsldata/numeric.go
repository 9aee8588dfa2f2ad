// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

// AppendUint appends the minimal little-endian byte run of v to dst and
// returns the extended slice. Leading zero bytes are stripped, so zero
// appends nothing at all; the byte count must be recorded separately
// (see UintByteCount).
func AppendUint(dst []byte, v uint64) []byte {
	for ; v != 0; v >>= 8 {
		dst = append(dst, byte(v))
	}
	return dst
}

// UintByteCount returns the number of bytes AppendUint would append
// for v. It is always in [0, 8].
func UintByteCount(v uint64) int {
	n := 0
	for ; v != 0; v >>= 8 {
		n++
	}
	return n
}

// DecodeUint decodes a byte run produced by AppendUint. The length of
// b is authoritative; absent high bytes are zero.
func DecodeUint(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// HasFlag reports whether flag's bits are set in b.
func HasFlag(b, flag byte) bool {
	return b&flag != 0
}
