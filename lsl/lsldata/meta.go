// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.chromium.org/luci/common/errors"
)

// Wire bits of the entry type byte. The low nibble of the same byte
// carries the size byte count.
const (
	typeRegularBit  byte = 0x80
	typeDirBit      byte = 0x40
	typeSymlinkBit  byte = 0x20
	sizeCountNibble byte = 0x0F
)

// MaxPathLen is the longest encoded entry path, in bytes.
const MaxPathLen = math.MaxUint16

// EntryType is the kind of filesystem object an entry describes.
// Exactly one of the three wire type bits maps to each value, so an
// entry can never be e.g. both a file and a directory in memory.
type EntryType byte

// The entry types known to the format.
const (
	TypeRegular EntryType = iota + 1
	TypeDirectory
	TypeSymlink
)

// Valid returns nil iff the EntryType is one of the known values.
func (t EntryType) Valid() error {
	switch t {
	case TypeRegular, TypeDirectory, TypeSymlink:
		return nil
	}
	return errors.Reason("unknown entry type %d", byte(t)).Err()
}

func (t EntryType) String() string {
	switch t {
	case TypeRegular:
		return "regular file"
	case TypeDirectory:
		return "directory"
	case TypeSymlink:
		return "symlink"
	}
	return "invalid"
}

func (t EntryType) wireBit() byte {
	switch t {
	case TypeRegular:
		return typeRegularBit
	case TypeDirectory:
		return typeDirBit
	case TypeSymlink:
		return typeSymlinkBit
	}
	return 0
}

func entryTypeFromWire(bits byte) (EntryType, error) {
	switch bits &^ sizeCountNibble {
	case typeRegularBit:
		return TypeRegular, nil
	case typeDirBit:
		return TypeDirectory, nil
	case typeSymlinkBit:
		return TypeSymlink, nil
	}
	return 0, errors.Reason("invalid entry type bits 0x%02x", bits&^sizeCountNibble).Err()
}

// Meta is one entry's metadata record: the file's archive-relative
// path, its type, its content length and its content checksum.
type Meta struct {
	// Path is the '/'-separated path relative to the archive root.
	Path     string
	Type     EntryType
	Size     uint64
	Checksum Checksum
}

// MetaFromFile builds a Meta from the filesystem object at path,
// streaming the file to compute its checksum. The path is stored
// verbatim; call StripPrefix before encoding.
func MetaFromFile(path string) (*Meta, error) {
	st, err := os.Lstat(path)
	if err != nil {
		return nil, errors.Annotate(err, "statting %q", path).Err()
	}
	m := &Meta{Path: path}
	switch {
	case st.Mode()&os.ModeSymlink != 0:
		m.Type = TypeSymlink
	case st.IsDir():
		m.Type = TypeDirectory
	default:
		m.Type = TypeRegular
		m.Size = uint64(st.Size())
		if m.Checksum, err = ChecksumOfFile(path); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// StripPrefix rebases Path relative to root and normalizes it to '/'
// separators for the wire.
func (m *Meta) StripPrefix(root string) error {
	rel, err := filepath.Rel(root, m.Path)
	if err != nil {
		return errors.Annotate(err, "rebasing %q onto %q", m.Path, root).Err()
	}
	m.Path = filepath.ToSlash(rel)
	return nil
}

// RestorePath validates the entry path and returns it in native
// filesystem form. Absolute paths and paths that escape the restore
// root are rejected.
func (m *Meta) RestorePath() (string, error) {
	if m.Path == "" {
		return "", errors.New("empty entry path")
	}
	if strings.HasPrefix(m.Path, "/") {
		return "", errors.Reason("absolute entry path %q", m.Path).Err()
	}
	for _, piece := range strings.Split(m.Path, "/") {
		switch piece {
		case "":
			return "", errors.Reason("empty path component in %q", m.Path).Err()
		case ".", "..":
			return "", errors.Reason("relative path component %q in %q", piece, m.Path).Err()
		}
	}
	return filepath.FromSlash(m.Path), nil
}

// Encode lays the record out as: 2-byte big-endian path length, path
// bytes, one byte combining the type bit and the size byte count, the
// minimal little-endian size run, and the 16 checksum bytes.
func (m *Meta) Encode() ([]byte, error) {
	if err := m.Type.Valid(); err != nil {
		return nil, err
	}
	p := []byte(m.Path)
	if len(p) > MaxPathLen {
		return nil, errors.Reason("entry path is %d bytes; the format limit is %d", len(p), MaxPathLen).Err()
	}
	sizeCount := UintByteCount(m.Size)

	buf := make([]byte, 0, 2+len(p)+1+sizeCount+ChecksumLen)
	buf = append(buf, byte(len(p)>>8), byte(len(p)))
	buf = append(buf, p...)
	buf = append(buf, m.Type.wireBit()|byte(sizeCount))
	buf = AppendUint(buf, m.Size)
	buf = append(buf, m.Checksum[:]...)
	return buf, nil
}

// DecodePathLen consumes exactly 2 bytes.
func DecodePathLen(b []byte) (int, error) {
	if len(b) != 2 {
		return 0, errors.Reason("path length field is %d bytes, want 2", len(b)).Err()
	}
	return int(b[0])<<8 | int(b[1]), nil
}

// DecodePath consumes exactly the path-length bytes the caller pulled.
func (m *Meta) DecodePath(b []byte) error {
	if !utf8.Valid(b) {
		return errors.New("entry path is not valid UTF-8")
	}
	m.Path = string(b)
	return nil
}

// DecodeTypeAndSizeCount consumes the combined type byte and returns
// the number of size bytes that follow it on the wire.
func (m *Meta) DecodeTypeAndSizeCount(b byte) (sizeCount int, err error) {
	t, err := entryTypeFromWire(b)
	if err != nil {
		return 0, err
	}
	m.Type = t
	sizeCount = int(b & sizeCountNibble)
	if sizeCount > 8 {
		return 0, errors.Reason("size byte count %d exceeds 8", sizeCount).Err()
	}
	return sizeCount, nil
}

// DecodeSize consumes exactly the size-count bytes the caller pulled.
func (m *Meta) DecodeSize(b []byte) {
	m.Size = DecodeUint(b)
}

// DecodeChecksum consumes exactly ChecksumLen bytes.
func (m *Meta) DecodeChecksum(b []byte) error {
	c, err := ChecksumFromBytes(b)
	if err != nil {
		return err
	}
	m.Checksum = c
	return nil
}
