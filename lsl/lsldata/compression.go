// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"go.chromium.org/luci/common/errors"
)

// CompressedExt is the filename suffix of compressed scratch files.
const CompressedExt = ".zst"

// Compress writes a zstd-compressed copy of the file at path into
// destDir and returns the compressed file's path. The archive stores
// only the compressed byte length and the opaque compressed bytes, so
// the codec behind this function is not part of the wire format.
func Compress(path, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return "", errors.Annotate(err, "creating %q", destDir).Err()
	}
	src, err := os.Open(path)
	if err != nil {
		return "", errors.Annotate(err, "opening %q", path).Err()
	}
	defer src.Close()

	out := filepath.Join(destDir, filepath.Base(path)+CompressedExt)
	dst, err := os.Create(out)
	if err != nil {
		return "", errors.Annotate(err, "creating %q", out).Err()
	}

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		dst.Close()
		return "", errors.Annotate(err, "constructing compressor").Err()
	}
	if _, err := io.Copy(enc, src); err != nil {
		enc.Close()
		dst.Close()
		return "", errors.Annotate(err, "compressing %q", path).Err()
	}
	if err := enc.Close(); err != nil {
		dst.Close()
		return "", errors.Annotate(err, "flushing compressor").Err()
	}
	if err := dst.Close(); err != nil {
		return "", errors.Annotate(err, "closing %q", out).Err()
	}
	return out, nil
}

// Decompress reverses Compress: it writes the decompressed contents of
// the file at path into destDir and returns the result's path.
func Decompress(path, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0700); err != nil {
		return "", errors.Annotate(err, "creating %q", destDir).Err()
	}
	src, err := os.Open(path)
	if err != nil {
		return "", errors.Annotate(err, "opening %q", path).Err()
	}
	defer src.Close()

	dec, err := zstd.NewReader(src)
	if err != nil {
		return "", errors.Annotate(err, "constructing decompressor").Err()
	}
	defer dec.Close()

	out := filepath.Join(destDir, strings.TrimSuffix(filepath.Base(path), CompressedExt))
	dst, err := os.Create(out)
	if err != nil {
		return "", errors.Annotate(err, "creating %q", out).Err()
	}
	if _, err := io.Copy(dst, dec); err != nil {
		dst.Close()
		return "", errors.Annotate(err, "decompressing %q", path).Err()
	}
	if err := dst.Close(); err != nil {
		return "", errors.Annotate(err, "closing %q", out).Err()
	}
	return out, nil
}
