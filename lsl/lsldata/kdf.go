// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"crypto/rand"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the wire size of the per-archive key derivation salt.
const SaltLen = 32

const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
)

// DeriveKey derives the archive key from a password and salt with
// Argon2id.
func DeriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, KeyLen)
}

// NewSalt returns SaltLen fresh random bytes.
func NewSalt() []byte {
	return randBytes(SaltLen)
}

// NewNonce returns NonceLen fresh random bytes. A new nonce is drawn
// for every entry; nonces must never repeat under the same key.
func NewNonce() []byte {
	return randBytes(NonceLen)
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return b
}
