// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsl

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"go.chromium.org/luci/common/errors"
)

type optionData struct {
	encrypt  bool
	password string

	compress bool

	progress chan<- string

	scratchDir string
}

// Option functions can be supplied to NewSerializer and
// NewDeserializer.
type Option func(*optionData)

// WithEncryption enables payload encryption with a key derived from
// password. On deserialization the password must match the one the
// archive was written with.
func WithEncryption(password string) Option {
	return func(o *optionData) {
		o.encrypt = true
		o.password = password
	}
}

// WithCompression enables per-file payload compression. The caller's
// choice must agree with the archive's header flag when reading.
func WithCompression(enabled bool) Option {
	return func(o *optionData) {
		o.compress = enabled
	}
}

// WithProgress supplies a channel to receive human-readable per-file
// progress messages. Sends are non-blocking: a slow or absent consumer
// drops messages but never alters archiver behavior.
func WithProgress(ch chan<- string) Option {
	return func(o *optionData) {
		o.progress = ch
	}
}

// WithScratchDir sets the directory under which compression scratch
// files are created. Defaults to os.TempDir(). Each run works in its
// own uniquely-named subdirectory, removed on every exit path, so
// concurrent archiver instances never collide.
func WithScratchDir(dir string) Option {
	return func(o *optionData) {
		o.scratchDir = dir
	}
}

func makeOptions(options []Option) optionData {
	var o optionData
	for _, opt := range options {
		opt(&o)
	}
	return o
}

func (o *optionData) notify(format string, args ...any) {
	if o.progress == nil {
		return
	}
	select {
	case o.progress <- fmt.Sprintf(format, args...):
	default:
	}
}

// newScratch creates this run's private scratch subdirectory and
// returns it with its cleanup function.
func (o *optionData) newScratch() (string, func(), error) {
	base := o.scratchDir
	if base == "" {
		base = os.TempDir()
	}
	dir := filepath.Join(base, "lusl-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", nil, errors.Annotate(err, "creating scratch dir %q", dir).Err()
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}
