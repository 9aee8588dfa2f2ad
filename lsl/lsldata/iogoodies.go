// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import "io"

type writeCloseHook struct {
	io.Writer

	clsFn func() error
}

func (c writeCloseHook) Close() error {
	if c.clsFn != nil {
		return c.clsFn()
	}
	return nil
}

// NopWriteCloser adds a no-op Close to w, so plaintext and encrypted
// payload sinks share the WriteCloser shape.
func NopWriteCloser(w io.Writer) io.WriteCloser {
	return writeCloseHook{w, nil}
}
