// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"io"

	"go.chromium.org/luci/common/errors"
)

const fillSize = 4096

// PullBuffer is the FIFO byte window between an archive's underlying
// byte source and the entry parser. The parser never assumes more
// bytes are available than have actually been read; a fill attempt
// that yields zero new bytes is the only end-of-stream signal.
//
// Pull hands out exact byte counts, PullUpTo hands out whatever is
// convenient, and PushBack returns over-read bytes to the front of the
// window so the bytes belonging to the next entry are never lost.
type PullBuffer struct {
	src io.Reader
	buf []byte

	eof bool
}

// NewPullBuffer wraps src in an empty pull buffer.
func NewPullBuffer(src io.Reader) *PullBuffer {
	return &PullBuffer{src: src}
}

// Pull returns the next n bytes, filling from the source as needed.
// If the source drains first, the error wraps io.ErrUnexpectedEOF.
// The returned slice is only valid until the next Pull or PullUpTo.
func (p *PullBuffer) Pull(n int) ([]byte, error) {
	for len(p.buf) < n {
		switch err := p.fill(); {
		case err == io.EOF:
			return nil, errors.Annotate(io.ErrUnexpectedEOF,
				"need %d more bytes, archive ended", n-len(p.buf)).Err()
		case err != nil:
			return nil, err
		}
	}
	out := p.buf[:n]
	p.buf = p.buf[n:]
	return out, nil
}

// PullUpTo returns between 1 and n buffered bytes, filling only when
// the window is empty. It returns io.EOF when the source is exhausted
// and the window is empty.
func (p *PullBuffer) PullUpTo(n int) ([]byte, error) {
	if len(p.buf) == 0 {
		if err := p.fill(); err != nil {
			return nil, err
		}
	}
	if n > len(p.buf) {
		n = len(p.buf)
	}
	out := p.buf[:n]
	p.buf = p.buf[n:]
	return out, nil
}

// PushBack returns bytes to the front of the window, preserving order:
// the first byte of b is the next byte Pull will yield.
func (p *PullBuffer) PushBack(b []byte) {
	if len(b) == 0 {
		return
	}
	merged := make([]byte, 0, len(b)+len(p.buf))
	merged = append(merged, b...)
	p.buf = append(merged, p.buf...)
}

// Buffered returns the number of bytes currently in the window.
func (p *PullBuffer) Buffered() int {
	return len(p.buf)
}

// Drained reports whether the window is empty and the source is
// exhausted.
func (p *PullBuffer) Drained() (bool, error) {
	if len(p.buf) > 0 {
		return false, nil
	}
	switch err := p.fill(); {
	case err == io.EOF:
		return true, nil
	case err != nil:
		return false, err
	}
	return false, nil
}

// fill reads one chunk from the source and appends it to the window.
// A read yielding zero bytes, whatever its error value, means the
// source is exhausted.
func (p *PullBuffer) fill() error {
	if p.eof {
		return io.EOF
	}
	chunk := make([]byte, fillSize)
	n, err := p.src.Read(chunk)
	if n > 0 {
		p.buf = append(p.buf, chunk[:n]...)
		return nil
	}
	if err == nil || err == io.EOF {
		p.eof = true
		return io.EOF
	}
	return errors.Annotate(err, "reading archive").Err()
}
