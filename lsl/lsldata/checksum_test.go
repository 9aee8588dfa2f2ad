// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	. "go.chromium.org/luci/common/testing/assertions"
)

func TestChecksum(t *testing.T) {
	t.Parallel()

	Convey("Checksum", t, func() {
		Convey("known digest", func() {
			c, err := ChecksumOf(strings.NewReader("hello world!"))
			So(err, ShouldBeNil)
			So(c.String(), ShouldEqual, "fc3ff98e8c6a0d3087d515c0473f8677")
			So(c.IsZero(), ShouldBeFalse)
		})

		Convey("content addressed", func() {
			a, err := ChecksumOf(strings.NewReader("hello world!"))
			So(err, ShouldBeNil)
			b, err := ChecksumOf(strings.NewReader("hello world!"))
			So(err, ShouldBeNil)
			So(a.Equal(b), ShouldBeTrue)

			mutated, err := ChecksumOf(strings.NewReader("hello world?"))
			So(err, ShouldBeNil)
			So(a.Equal(mutated), ShouldBeFalse)
		})

		Convey("zero sentinel", func() {
			So(Checksum{}.IsZero(), ShouldBeTrue)
			So(Checksum{}.String(), ShouldEqual, "00000000000000000000000000000000")
		})

		Convey("of a file", func() {
			path := filepath.Join(t.TempDir(), "data.txt")
			So(os.WriteFile(path, []byte("hello world!"), 0644), ShouldBeNil)

			c, err := ChecksumOfFile(path)
			So(err, ShouldBeNil)
			So(c.String(), ShouldEqual, "fc3ff98e8c6a0d3087d515c0473f8677")

			_, err = ChecksumOfFile(filepath.Join(t.TempDir(), "missing"))
			So(err, ShouldNotBeNil)
		})

		Convey("from wire bytes", func() {
			c, err := ChecksumFromBytes(make([]byte, ChecksumLen))
			So(err, ShouldBeNil)
			So(c.IsZero(), ShouldBeTrue)

			_, err = ChecksumFromBytes([]byte{1, 2, 3})
			So(err, ShouldErrLike, "checksum is 3 bytes, want 16")
		})
	})
}
