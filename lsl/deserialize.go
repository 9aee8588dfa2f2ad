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

	"github.com/google/uuid"

	"go.chromium.org/luci/common/data/stringset"
	"go.chromium.org/luci/common/errors"
	"go.chromium.org/luci/common/logging"

	"github.com/altair823/LUSL/lsl/lsldata"
)

const copyChunk = 32 * 1024

// Deserializer restores one archive into a directory tree in a single
// forward pass, verifying every entry's checksum along the way.
type Deserializer struct {
	archive string
	dest    string
	opts    optionData
}

// NewDeserializer prepares a Deserializer that restores the archive at
// archivePath under destRoot. The caller's encryption and compression
// options must agree with the archive header's flags.
func NewDeserializer(archivePath, destRoot string, options ...Option) *Deserializer {
	return &Deserializer{
		archive: archivePath,
		dest:    destRoot,
		opts:    makeOptions(options),
	}
}

// Deserialize restores the archive. The first failure aborts the whole
// restore and leaves any previously restored files in place; the
// stream position is undefined after an error and there is no resume.
func (d *Deserializer) Deserialize(ctx context.Context) error {
	f, err := os.Open(d.archive)
	if err != nil {
		return errors.Annotate(err, "opening archive %q", d.archive).Err()
	}
	defer f.Close()

	pb := lsldata.NewPullBuffer(bufio.NewReader(f))

	h, err := d.readHeader(pb)
	if err != nil {
		return err
	}

	var key []byte
	if h.Encrypted {
		if d.opts.password == "" {
			return errors.New("archive is encrypted but no password was supplied")
		}
		salt, err := pb.Pull(lsldata.SaltLen)
		if err != nil {
			return errors.Annotate(err, "reading salt").Err()
		}
		key = lsldata.DeriveKey(d.opts.password, salt)
	}

	var scratch string
	if h.Compressed {
		dir, cleanup, err := d.opts.newScratch()
		if err != nil {
			return err
		}
		defer cleanup()
		scratch = dir
	}

	seen := stringset.New(int(h.FileCount))
	for i := uint64(0); i < h.FileCount; i++ {
		if err := d.readEntry(ctx, pb, key, scratch, seen); err != nil {
			return errors.Annotate(err, "restoring entry %d of %d", i+1, h.FileCount).Err()
		}
	}

	drained, err := pb.Drained()
	if err != nil {
		return err
	}
	if !drained {
		return errors.Reason("archive continues past its declared %d entries", h.FileCount).Err()
	}
	logging.Infof(ctx, "restored %d files from %q to %q", h.FileCount, d.archive, d.dest)
	return nil
}

// readHeader validates the label, version gate and option flags before
// any entry is touched.
func (d *Deserializer) readHeader(pb *lsldata.PullBuffer) (lsldata.Header, error) {
	var h lsldata.Header

	b, err := pb.Pull(len(lsldata.Label))
	if err != nil {
		return h, errors.Annotate(err, "reading label").Err()
	}
	if err := h.DecodeLabel(b); err != nil {
		return h, err
	}

	if b, err = pb.Pull(lsldata.VersionEncodedLen); err != nil {
		return h, errors.Annotate(err, "reading version").Err()
	}
	if err := h.DecodeVersion(b); err != nil {
		return h, err
	}

	if b, err = pb.Pull(1); err != nil {
		return h, errors.Annotate(err, "reading flags").Err()
	}
	if err := h.DecodeFlags(b); err != nil {
		return h, err
	}

	if b, err = pb.Pull(1); err != nil {
		return h, errors.Annotate(err, "reading file count").Err()
	}
	countLen := int(b[0])
	if countLen > 8 {
		return h, errors.Reason("file count byte count %d exceeds 8", countLen).Err()
	}
	if b, err = pb.Pull(countLen); err != nil {
		return h, errors.Annotate(err, "reading file count").Err()
	}
	h.DecodeFileCount(b)

	if err := h.MatchOptions(d.opts.encrypt, d.opts.compress); err != nil {
		return h, err
	}
	return h, nil
}

func (d *Deserializer) readEntry(ctx context.Context, pb *lsldata.PullBuffer, key []byte, scratch string, seen stringset.Set) error {
	m := &lsldata.Meta{}

	b, err := pb.Pull(2)
	if err != nil {
		return errors.Annotate(err, "reading path length").Err()
	}
	pathLen, err := lsldata.DecodePathLen(b)
	if err != nil {
		return err
	}

	if b, err = pb.Pull(pathLen); err != nil {
		return errors.Annotate(err, "reading path").Err()
	}
	if err := m.DecodePath(b); err != nil {
		return err
	}

	if b, err = pb.Pull(1); err != nil {
		return errors.Annotate(err, "reading entry type").Err()
	}
	sizeCount, err := m.DecodeTypeAndSizeCount(b[0])
	if err != nil {
		return err
	}

	if b, err = pb.Pull(sizeCount); err != nil {
		return errors.Annotate(err, "reading size").Err()
	}
	m.DecodeSize(b)

	if b, err = pb.Pull(lsldata.ChecksumLen); err != nil {
		return errors.Annotate(err, "reading checksum").Err()
	}
	if err := m.DecodeChecksum(b); err != nil {
		return err
	}

	rel, err := m.RestorePath()
	if err != nil {
		return err
	}
	if !seen.Add(m.Path) {
		return errors.Reason("duplicate entry path %q", m.Path).Err()
	}
	abs := filepath.Join(d.dest, rel)

	switch m.Type {
	case lsldata.TypeDirectory:
		if m.Size != 0 {
			return errors.Reason("directory entry %q declares a %d-byte payload", m.Path, m.Size).Err()
		}
		if err := os.MkdirAll(abs, 0755); err != nil {
			return errors.Annotate(err, "making dir %q", rel).Err()
		}
		d.opts.notify("restored %s", m.Path)
		return nil
	case lsldata.TypeSymlink:
		return errors.Reason("symlink entry %q is not supported", m.Path).Err()
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return errors.Annotate(err, "making parent dirs for %q", rel).Err()
	}

	var dec *lsldata.StreamDecryptor
	if key != nil {
		nonce, err := pb.Pull(lsldata.NonceLen)
		if err != nil {
			return errors.Annotate(err, "reading nonce").Err()
		}
		if dec, err = lsldata.NewStreamDecryptor(key, nonce); err != nil {
			return err
		}
	}

	payloadLen := m.Size
	if scratch != "" {
		if b, err = pb.Pull(8); err != nil {
			return errors.Annotate(err, "reading compressed length").Err()
		}
		payloadLen = binary.LittleEndian.Uint64(b)
	}

	if scratch == "" {
		if err := copyPayload(pb, dec, payloadLen, abs); err != nil {
			return errors.Annotate(err, "restoring %q", rel).Err()
		}
	} else {
		// Decrypt/copy into a scratch file, decompress it, then move the
		// result into place. Scratch names are unique per entry since
		// distinct entries may share a base name.
		compressed := filepath.Join(scratch, uuid.NewString()+lsldata.CompressedExt)
		if err := copyPayload(pb, dec, payloadLen, compressed); err != nil {
			return errors.Annotate(err, "restoring %q", rel).Err()
		}
		plain, err := lsldata.Decompress(compressed, scratch)
		if err != nil {
			return err
		}
		os.Remove(compressed)
		if err := moveFile(plain, abs); err != nil {
			return errors.Annotate(err, "moving %q into place", rel).Err()
		}
	}

	restored, err := lsldata.ChecksumOfFile(abs)
	if err != nil {
		return err
	}
	if !m.Checksum.IsZero() && !restored.Equal(m.Checksum) {
		return errors.Reason("checksum mismatch for %q: archive says %s, restored file is %s",
			m.Path, m.Checksum, restored).Err()
	}

	logging.Debugf(ctx, "restored %q (%d bytes)", m.Path, m.Size)
	d.opts.notify("restored %s", m.Path)
	return nil
}

// copyPayload streams exactly one entry's payload out of the pull
// buffer into the file at target. plainLen is the payload's plaintext
// length; when dec is non-nil the corresponding ciphertext chunks are
// pulled and decrypted, including the final (possibly empty) chunk
// that carries the closing authentication tag.
func copyPayload(pb *lsldata.PullBuffer, dec *lsldata.StreamDecryptor, plainLen uint64, target string) (err error) {
	f, err := os.Create(target)
	if err != nil {
		return errors.Annotate(err, "creating %q", target).Err()
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Annotate(cerr, "closing %q", target).Err()
		}
	}()
	w := bufio.NewWriter(f)

	if dec != nil {
		for full := plainLen / lsldata.ChunkSize; full > 0; full-- {
			ct, err := pb.Pull(lsldata.ChunkSize + lsldata.TagOverhead)
			if err != nil {
				return err
			}
			plain, err := dec.DecryptNext(ct)
			if err != nil {
				return err
			}
			if _, err := w.Write(plain); err != nil {
				return err
			}
		}
		ct, err := pb.Pull(int(plainLen%lsldata.ChunkSize) + lsldata.TagOverhead)
		if err != nil {
			return err
		}
		plain, err := dec.DecryptLast(ct)
		if err != nil {
			return err
		}
		if _, err := w.Write(plain); err != nil {
			return err
		}
	} else {
		remaining := plainLen
		for remaining > 0 {
			b, err := pb.PullUpTo(copyChunk)
			if err == io.EOF {
				return errors.Annotate(io.ErrUnexpectedEOF, "payload ended %d bytes early", remaining).Err()
			}
			if err != nil {
				return err
			}
			// A fill may bring in bytes belonging to the next entry; they
			// go back to the front of the buffer, never to this file.
			if uint64(len(b)) > remaining {
				pb.PushBack(b[remaining:])
				b = b[:remaining]
			}
			if _, err := w.Write(b); err != nil {
				return err
			}
			remaining -= uint64(len(b))
		}
	}
	return w.Flush()
}

// moveFile renames src over dst, falling back to copy+remove when they
// sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
