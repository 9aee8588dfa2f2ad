// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsl

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/iotools"
	"go.chromium.org/luci/common/logging"

	"github.com/altair823/LUSL/lsl/lsldata"
)

// Serializer writes one directory tree into one archive file in
// a single forward pass.
type Serializer struct {
	root   string
	parent string
	dest   string
	files  []string
	opts   optionData
}

// NewSerializer enumerates the regular files under root and prepares
// a Serializer that will write them to the archive at dest. Entry
// paths in the archive are relative to root's parent directory, so
// the restored tree is rooted at a directory named like root.
func NewSerializer(root, dest string, options ...Option) (*Serializer, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Annotate(err, "resolving %q", root).Err()
	}
	files, err := ListFiles(root)
	if err != nil {
		return nil, err
	}
	return &Serializer{
		root:   root,
		parent: filepath.Dir(root),
		dest:   dest,
		files:  files,
		opts:   makeOptions(options),
	}, nil
}

// FileCount returns the number of entries the archive will contain.
func (s *Serializer) FileCount() int {
	return len(s.files)
}

// Serialize writes the archive: header, salt when encrypting, then one
// metadata record and payload per file. Compression composes before
// encryption. Any error aborts immediately; a partially written
// archive is left at dest.
func (s *Serializer) Serialize(ctx context.Context) (err error) {
	out, err := os.Create(s.dest)
	if err != nil {
		return errors.Annotate(err, "creating archive %q", s.dest).Err()
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = errors.Annotate(cerr, "closing archive").Err()
		}
	}()

	bw := bufio.NewWriter(out)
	cw := &iotools.CountingWriter{Writer: bw}

	h := lsldata.NewHeader(s.opts.encrypt, s.opts.compress, uint64(len(s.files)))
	if err := h.Encode(cw); err != nil {
		return err
	}

	var key []byte
	if s.opts.encrypt {
		salt := lsldata.NewSalt()
		key = lsldata.DeriveKey(s.opts.password, salt)
		if _, err := cw.Write(salt); err != nil {
			return errors.Annotate(err, "writing salt").Err()
		}
	}

	var scratch string
	if s.opts.compress {
		dir, cleanup, err := s.opts.newScratch()
		if err != nil {
			return err
		}
		defer cleanup()
		scratch = dir
	}

	for _, file := range s.files {
		if err := s.writeEntry(ctx, cw, file, key, scratch); err != nil {
			return errors.Annotate(err, "serializing %q", file).Err()
		}
	}

	if err := bw.Flush(); err != nil {
		return errors.Annotate(err, "flushing archive").Err()
	}
	logging.Infof(ctx, "serialized %d files (%d bytes) to %q", len(s.files), cw.Count, s.dest)
	return nil
}

func (s *Serializer) writeEntry(ctx context.Context, w io.Writer, file string, key []byte, scratch string) error {
	m, err := lsldata.MetaFromFile(file)
	if err != nil {
		return err
	}
	if err := m.StripPrefix(s.parent); err != nil {
		return err
	}

	record, err := m.Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(record); err != nil {
		return errors.Annotate(err, "writing metadata").Err()
	}

	payload := file
	if s.opts.compress {
		compressed, err := lsldata.Compress(file, scratch)
		if err != nil {
			return err
		}
		defer os.Remove(compressed)
		payload = compressed
	}

	sink := lsldata.NopWriteCloser(w)
	if s.opts.encrypt {
		nonce := lsldata.NewNonce()
		if _, err := w.Write(nonce); err != nil {
			return errors.Annotate(err, "writing nonce").Err()
		}
		enc, err := lsldata.NewStreamEncryptor(key, nonce)
		if err != nil {
			return err
		}
		sink = lsldata.NewEncryptWriter(w, enc)
	}

	src, err := os.Open(payload)
	if err != nil {
		return errors.Annotate(err, "opening payload").Err()
	}
	defer src.Close()

	if s.opts.compress {
		st, err := src.Stat()
		if err != nil {
			return errors.Annotate(err, "statting payload").Err()
		}
		var prefix [8]byte
		binary.LittleEndian.PutUint64(prefix[:], uint64(st.Size()))
		if _, err := w.Write(prefix[:]); err != nil {
			return errors.Annotate(err, "writing compressed length").Err()
		}
	}

	if _, err := io.Copy(sink, src); err != nil {
		return errors.Annotate(err, "writing payload").Err()
	}
	if err := sink.Close(); err != nil {
		return errors.Annotate(err, "finishing payload").Err()
	}

	logging.Debugf(ctx, "serialized %q (%d bytes)", m.Path, m.Size)
	s.opts.notify("serialized %s", m.Path)
	return nil
}
