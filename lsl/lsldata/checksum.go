// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"go.chromium.org/luci/common/errors"
)

// ChecksumLen is the wire size of an entry checksum.
const ChecksumLen = md5.Size

// Checksum is the MD5 digest of a file's contents. The zero value is
// the wire sentinel for "not computed".
type Checksum [ChecksumLen]byte

// ChecksumOf computes the digest of everything readable from r.
func ChecksumOf(r io.Reader) (Checksum, error) {
	var c Checksum
	h := md5.New()
	if _, err := io.Copy(h, r); err != nil {
		return c, errors.Annotate(err, "computing checksum").Err()
	}
	h.Sum(c[:0])
	return c, nil
}

// ChecksumOfFile computes the digest of the file at path.
func ChecksumOfFile(path string) (Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Checksum{}, errors.Annotate(err, "opening %q for checksum", path).Err()
	}
	defer f.Close()
	c, err := ChecksumOf(f)
	if err != nil {
		return c, errors.Annotate(err, "reading %q", path).Err()
	}
	return c, nil
}

// ChecksumFromBytes copies a decoded 16-byte wire checksum.
func ChecksumFromBytes(b []byte) (Checksum, error) {
	var c Checksum
	if len(b) != ChecksumLen {
		return c, errors.Reason("checksum is %d bytes, want %d", len(b), ChecksumLen).Err()
	}
	copy(c[:], b)
	return c, nil
}

// String renders the digest as 32 lowercase hex characters.
func (c Checksum) String() string {
	return hex.EncodeToString(c[:])
}

// IsZero reports whether c is the "not computed" sentinel.
func (c Checksum) IsZero() bool {
	return c == Checksum{}
}

// Equal reports whether two digests match.
func (c Checksum) Equal(other Checksum) bool {
	return c == other
}
