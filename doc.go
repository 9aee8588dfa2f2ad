// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package lusl implements a streaming directory archiver. It walks
// a directory tree, serializes every regular file's metadata and contents
// into a single archive file, and restores the original tree byte-for-byte.
// Archives may optionally be compressed per-file and/or encrypted with an
// authenticated stream cipher, and always carry a per-file MD5 content
// checksum which is verified on restore.
//
// Unlike ZIP or XAR, a LUSL archive has no central directory and supports
// no random access: every entry is framed inline and the whole archive is
// produced and consumed as a single forward pass. This makes the format
// trivially streamable but means extraction is all-or-nothing.
//
// It has a fairly basic format:
//   - file label ("LUSL Serialized File")
//   - version marker byte ('v') + 3 version bytes (major, minor, patch)
//   - flags byte (bit7 = encrypted, bit6 = compressed)
//   - file count (byte count N, then N little-endian bytes)
//   - 32-byte key derivation salt (only if encrypted)
//   - file_count entries, each:
//     entry metadata (path, type, size, checksum),
//     19-byte nonce (only if encrypted),
//     8-byte little-endian compressed length (only if compressed),
//     payload bytes.
//
// Integer fields (size, file count) use a minimal little-endian byte run:
// an explicit byte count followed by only the significant bytes.
//
// Encrypted payloads are XChaCha20-Poly1305 STREAM ciphertext: the
// plaintext is cut into 1024-byte chunks, each sealed with a 16-byte tag
// under a per-chunk nonce built from the entry nonce, a 32-bit big-endian
// chunk counter, and a last-chunk flag byte. Compression composes before
// encryption on write, and decryption before decompression on read.
//
// The checksum is stored as 16 raw MD5 bytes; an all-zero checksum means
// "not computed". A checksum mismatch during restore aborts the whole
// operation and leaves the partially restored tree in place.
package lusl
