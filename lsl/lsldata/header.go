// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"io"

	"go.chromium.org/luci/common/errors"
)

// Label is the fixed ASCII marker at byte 0 of every archive.
const Label = "LUSL Serialized File"

// Flag bits of the header flags byte. The remaining bits are reserved
// and ignored on read.
const (
	FlagEncrypted  byte = 0x80
	FlagCompressed byte = 0x40
)

// Header is the decoded archive header.
type Header struct {
	Version    Version
	Encrypted  bool
	Compressed bool
	FileCount  uint64
}

// NewHeader builds a header at the current format version.
func NewHeader(encrypted, compressed bool, fileCount uint64) Header {
	return Header{
		Version:    CurrentVersion(),
		Encrypted:  encrypted,
		Compressed: compressed,
		FileCount:  fileCount,
	}
}

// Encode writes the complete header: label, version, flags and
// file count.
func (h Header) Encode(w io.Writer) error {
	buf := make([]byte, 0, len(Label)+VersionEncodedLen+2+UintByteCount(h.FileCount))
	buf = append(buf, Label...)
	buf = append(buf, h.Version.Encode()...)
	var flags byte
	if h.Encrypted {
		flags |= FlagEncrypted
	}
	if h.Compressed {
		flags |= FlagCompressed
	}
	buf = append(buf, flags)
	buf = append(buf, byte(UintByteCount(h.FileCount)))
	buf = AppendUint(buf, h.FileCount)
	if _, err := w.Write(buf); err != nil {
		return errors.Annotate(err, "writing header").Err()
	}
	return nil
}

// DecodeLabel consumes exactly len(Label) bytes.
func (h *Header) DecodeLabel(b []byte) error {
	if string(b) != Label {
		return errors.Reason("bad archive label %q, want %q", string(b), Label).Err()
	}
	return nil
}

// DecodeVersion consumes exactly VersionEncodedLen bytes and applies
// the compatibility gate against the current version.
func (h *Header) DecodeVersion(b []byte) error {
	v, err := DecodeVersion(b)
	if err != nil {
		return err
	}
	if err := v.CompatibleWith(CurrentVersion()); err != nil {
		return err
	}
	h.Version = v
	return nil
}

// DecodeFlags consumes exactly one byte. Unknown bits are ignored so
// that older readers tolerate flag additions.
func (h *Header) DecodeFlags(b []byte) error {
	if len(b) != 1 {
		return errors.Reason("flags field is %d bytes, want 1", len(b)).Err()
	}
	h.Encrypted = HasFlag(b[0], FlagEncrypted)
	h.Compressed = HasFlag(b[0], FlagCompressed)
	return nil
}

// DecodeFileCount consumes the little-endian byte run whose length the
// caller already read from the count-prefix byte.
func (h *Header) DecodeFileCount(b []byte) {
	h.FileCount = DecodeUint(b)
}

// MatchOptions returns nil iff the header's known flags agree with the
// options the caller asked for. A compressed archive read without
// compression enabled (or the reverse, and symmetrically for
// encryption) is a configuration error, not something to paper over.
func (h Header) MatchOptions(encrypted, compressed bool) error {
	if h.Encrypted != encrypted {
		return errors.Reason("option mismatch: archive encrypted=%t, caller requested encrypted=%t",
			h.Encrypted, encrypted).Err()
	}
	if h.Compressed != compressed {
		return errors.Reason("option mismatch: archive compressed=%t, caller requested compressed=%t",
			h.Compressed, compressed).Err()
	}
	return nil
}
