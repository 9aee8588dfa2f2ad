// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"bytes"
	"io"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	. "go.chromium.org/luci/common/testing/assertions"
)

// dribbleReader yields at most n bytes per Read, so the buffer sees
// arbitrary chunk boundaries.
type dribbleReader struct {
	r io.Reader
	n int
}

func (d *dribbleReader) Read(p []byte) (int, error) {
	if len(p) > d.n {
		p = p[:d.n]
	}
	return d.r.Read(p)
}

// zeroThenEOFReader returns (0, nil) once before hitting EOF, the way
// a poorly behaved source might.
type zeroThenEOFReader struct {
	fired bool
}

func (z *zeroThenEOFReader) Read(p []byte) (int, error) {
	if !z.fired {
		z.fired = true
		return 0, nil
	}
	return 0, io.EOF
}

func TestPullBuffer(t *testing.T) {
	t.Parallel()

	Convey("PullBuffer", t, func() {
		Convey("pulls exact counts across read boundaries", func() {
			pb := NewPullBuffer(&dribbleReader{strings.NewReader("hello world"), 3})

			b, err := pb.Pull(5)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "hello")

			b, err = pb.Pull(6)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, " world")

			drained, err := pb.Drained()
			So(err, ShouldBeNil)
			So(drained, ShouldBeTrue)
		})

		Convey("short source is an unexpected EOF", func() {
			pb := NewPullBuffer(strings.NewReader("abc"))
			_, err := pb.Pull(10)
			So(err, ShouldErrLike, io.ErrUnexpectedEOF)
			So(err, ShouldErrLike, "need 7 more bytes")
		})

		Convey("pushback goes to the front, in order", func() {
			pb := NewPullBuffer(strings.NewReader("defgh"))
			pb.PushBack([]byte("abc"))
			So(pb.Buffered(), ShouldEqual, 3)

			b, err := pb.Pull(5)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "abcde")

			b, err = pb.Pull(3)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "fgh")
		})

		Convey("pushback of pulled excess", func() {
			pb := NewPullBuffer(&dribbleReader{strings.NewReader("0123456789"), 4})

			b, err := pb.PullUpTo(100)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "0123")

			// Keep two bytes, return the rest.
			pb.PushBack(append([]byte(nil), b[2:]...))
			b, err = pb.Pull(8)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "23456789")
		})

		Convey("PullUpTo reports EOF on an exhausted source", func() {
			pb := NewPullBuffer(strings.NewReader("xy"))
			b, err := pb.PullUpTo(10)
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, "xy")

			_, err = pb.PullUpTo(10)
			So(err, ShouldEqual, io.EOF)
		})

		Convey("a zero-byte read means end of stream", func() {
			pb := NewPullBuffer(&zeroThenEOFReader{})
			drained, err := pb.Drained()
			So(err, ShouldBeNil)
			So(drained, ShouldBeTrue)

			// And the source is never touched again.
			_, err = pb.Pull(1)
			So(err, ShouldErrLike, io.ErrUnexpectedEOF)
		})

		Convey("drained is false while bytes remain", func() {
			pb := NewPullBuffer(bytes.NewReader([]byte{1}))
			drained, err := pb.Drained()
			So(err, ShouldBeNil)
			So(drained, ShouldBeFalse)

			b, err := pb.Pull(1)
			So(err, ShouldBeNil)
			So(b, ShouldResemble, []byte{1})

			drained, err = pb.Drained()
			So(err, ShouldBeNil)
			So(drained, ShouldBeTrue)
		})
	})
}
