// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsl

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func writeTestFile(path string, content []byte) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		panic(err)
	}
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	Convey("ListFiles", t, func() {
		root := t.TempDir()
		writeTestFile(filepath.Join(root, "a.txt"), []byte("a"))
		writeTestFile(filepath.Join(root, "sub", "b.txt"), []byte("b"))
		writeTestFile(filepath.Join(root, "sub", "deeper", "c.txt"), []byte("c"))
		writeTestFile(filepath.Join(root, ".hidden"), []byte("x"))
		writeTestFile(filepath.Join(root, ".hiddendir", "d.txt"), []byte("x"))
		writeTestFile(filepath.Join(root, "sub", ".e"), []byte("x"))

		files, err := ListFiles(root)
		So(err, ShouldBeNil)
		So(files, ShouldResemble, []string{
			filepath.Join(root, "a.txt"),
			filepath.Join(root, "sub", "b.txt"),
			filepath.Join(root, "sub", "deeper", "c.txt"),
		})

		Convey("missing root", func() {
			_, err := ListFiles(filepath.Join(root, "nope"))
			So(err, ShouldNotBeNil)
		})
	})
}
