// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	. "go.chromium.org/luci/common/testing/assertions"
)

// decodeWholeMeta drives the field-granular decoders over an encoded
// record, the way the deserializer does.
func decodeWholeMeta(raw []byte) (*Meta, error) {
	m := &Meta{}
	pathLen, err := DecodePathLen(raw[:2])
	if err != nil {
		return nil, err
	}
	raw = raw[2:]
	if err := m.DecodePath(raw[:pathLen]); err != nil {
		return nil, err
	}
	raw = raw[pathLen:]
	sizeCount, err := m.DecodeTypeAndSizeCount(raw[0])
	if err != nil {
		return nil, err
	}
	raw = raw[1:]
	m.DecodeSize(raw[:sizeCount])
	raw = raw[sizeCount:]
	if err := m.DecodeChecksum(raw[:ChecksumLen]); err != nil {
		return nil, err
	}
	return m, nil
}

func TestMeta(t *testing.T) {
	t.Parallel()

	Convey("Meta", t, func() {
		Convey("encode layout", func() {
			m := &Meta{Path: "dir1/board.jpg", Type: TypeRegular, Size: 914433}
			raw, err := m.Encode()
			So(err, ShouldBeNil)

			So(raw[0], ShouldEqual, byte(0))
			So(raw[1], ShouldEqual, byte(len("dir1/board.jpg")))
			So(string(raw[2:2+len(m.Path)]), ShouldEqual, "dir1/board.jpg")

			typeSize := raw[2+len(m.Path)]
			So(typeSize&0x80, ShouldEqual, 0x80) // regular file
			So(typeSize&0x40, ShouldEqual, 0)
			So(typeSize&0x20, ShouldEqual, 0)
			So(typeSize&0x0F, ShouldEqual, 3) // size takes 3 bytes

			// Size bytes are little endian with leading zeros stripped.
			sizeStart := 2 + len(m.Path) + 1
			So(raw[sizeStart:sizeStart+3], ShouldResemble, []byte{1, 244, 13})

			// Absent checksum is the all-zero sentinel.
			So(raw[sizeStart+3:], ShouldResemble, make([]byte, ChecksumLen))
			So(raw, ShouldHaveLength, 2+len(m.Path)+1+3+ChecksumLen)
		})

		Convey("round trip", func() {
			c, err := ChecksumFromBytes([]byte("0123456789abcdef"))
			So(err, ShouldBeNil)
			m := &Meta{Path: "dir2/notes.txt", Type: TypeRegular, Size: 42, Checksum: c}
			raw, err := m.Encode()
			So(err, ShouldBeNil)

			decoded, err := decodeWholeMeta(raw)
			So(err, ShouldBeNil)
			So(decoded, ShouldResemble, m)
		})

		Convey("zero size round trip", func() {
			m := &Meta{Path: "empty.bin", Type: TypeRegular}
			raw, err := m.Encode()
			So(err, ShouldBeNil)
			So(raw[2+len(m.Path)]&0x0F, ShouldEqual, 0)

			decoded, err := decodeWholeMeta(raw)
			So(err, ShouldBeNil)
			So(decoded.Size, ShouldEqual, 0)
		})

		Convey("directory and symlink bits", func() {
			for typ, bit := range map[EntryType]byte{
				TypeDirectory: 0x40,
				TypeSymlink:   0x20,
			} {
				m := &Meta{Path: "x", Type: typ}
				raw, err := m.Encode()
				So(err, ShouldBeNil)
				So(raw[2+1], ShouldEqual, bit)

				decoded, err := decodeWholeMeta(raw)
				So(err, ShouldBeNil)
				So(decoded.Type, ShouldEqual, typ)
			}
		})

		Convey("invalid type bits", func() {
			m := &Meta{}
			_, err := m.DecodeTypeAndSizeCount(0x03) // no type bit at all
			So(err, ShouldErrLike, "invalid entry type bits")

			_, err = m.DecodeTypeAndSizeCount(0xC0) // file and dir at once
			So(err, ShouldErrLike, "invalid entry type bits")
		})

		Convey("path length field must be 2 bytes", func() {
			_, err := DecodePathLen([]byte{1})
			So(err, ShouldErrLike, "path length field is 1 bytes, want 2")

			n, err := DecodePathLen([]byte{0x01, 0x02})
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0x0102)
		})

		Convey("invalid path bytes", func() {
			m := &Meta{}
			So(m.DecodePath([]byte{0xFF, 0xFE}), ShouldErrLike, "not valid UTF-8")
		})

		Convey("path length limit", func() {
			m := &Meta{Path: string(make([]byte, MaxPathLen+1)), Type: TypeRegular}
			_, err := m.Encode()
			So(err, ShouldErrLike, "the format limit is 65535")
		})

		Convey("unknown entry type refuses to encode", func() {
			m := &Meta{Path: "x", Type: EntryType(9)}
			_, err := m.Encode()
			So(err, ShouldErrLike, "unknown entry type")
		})

		Convey("restore path safety", func() {
			ok := &Meta{Path: "a/b/c.txt"}
			p, err := ok.RestorePath()
			So(err, ShouldBeNil)
			So(p, ShouldEqual, filepath.Join("a", "b", "c.txt"))

			for path, msg := range map[string]string{
				"":          "empty entry path",
				"/etc/sh":   "absolute entry path",
				"a//b":      "empty path component",
				"a/../b":    `relative path component ".."`,
				"./a":       `relative path component "."`,
				"a/b/../..": "relative path component",
			} {
				m := &Meta{Path: path}
				_, err := m.RestorePath()
				So(err, ShouldErrLike, msg)
			}
		})

		Convey("from a real file", func() {
			dir := t.TempDir()
			path := filepath.Join(dir, "data.txt")
			So(os.WriteFile(path, []byte("hello world!"), 0644), ShouldBeNil)

			m, err := MetaFromFile(path)
			So(err, ShouldBeNil)
			So(m.Type, ShouldEqual, TypeRegular)
			So(m.Size, ShouldEqual, len("hello world!"))
			So(m.Checksum.String(), ShouldEqual, "fc3ff98e8c6a0d3087d515c0473f8677")

			So(m.StripPrefix(dir), ShouldBeNil)
			So(m.Path, ShouldEqual, "data.txt")
		})

		Convey("from a directory", func() {
			m, err := MetaFromFile(t.TempDir())
			So(err, ShouldBeNil)
			So(m.Type, ShouldEqual, TypeDirectory)
			So(m.Size, ShouldEqual, 0)
			So(m.Checksum.IsZero(), ShouldBeTrue)
		})
	})
}
