// Copyright 2023 The LUSL Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package lsldata

import (
	"crypto/cipher"
	"encoding/binary"
	"io"
	"math"

	"golang.org/x/crypto/chacha20poly1305"

	"go.chromium.org/luci/common/errors"
)

// Payload encryption parameters. Each plaintext chunk of ChunkSize
// bytes becomes ChunkSize+TagOverhead ciphertext bytes on the wire;
// the final chunk of an entry may be shorter, down to a bare tag.
const (
	// ChunkSize is the plaintext chunk length.
	ChunkSize = 1024

	// TagOverhead is the per-chunk authentication tag length.
	TagOverhead = chacha20poly1305.Overhead

	// NonceLen is the per-entry stream nonce length. The remaining
	// 5 bytes of the XChaCha20 nonce hold the chunk counter and the
	// last-chunk flag.
	NonceLen = chacha20poly1305.NonceSizeX - 5

	// KeyLen is the symmetric key length.
	KeyLen = chacha20poly1305.KeySize
)

// EncryptedLen returns the on-wire length of an encrypted payload of
// plainLen plaintext bytes: every full chunk plus one final chunk,
// which is present (as a bare tag) even when plainLen is an exact
// multiple of ChunkSize.
func EncryptedLen(plainLen uint64) uint64 {
	return plainLen + (plainLen/ChunkSize+1)*TagOverhead
}

// streamState is the nonce and counter plumbing shared by the
// encryptor and decryptor. The per-chunk AEAD nonce is the 19-byte
// entry nonce followed by a 32-bit big-endian chunk counter and one
// final byte that is 1 only for the last chunk, so a ciphertext chunk
// authenticates its position and whether it terminates the stream.
type streamState struct {
	aead     cipher.AEAD
	nonce    [NonceLen]byte
	counter  uint32
	finished bool
}

func newStreamState(key, nonce []byte) (*streamState, error) {
	if len(key) != KeyLen {
		return nil, errors.Reason("key is %d bytes, want %d", len(key), KeyLen).Err()
	}
	if len(nonce) != NonceLen {
		return nil, errors.Reason("nonce is %d bytes, want %d", len(nonce), NonceLen).Err()
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Annotate(err, "constructing cipher").Err()
	}
	s := &streamState{aead: aead}
	copy(s.nonce[:], nonce)
	return s, nil
}

func (s *streamState) chunkNonce(last bool) ([]byte, error) {
	if s.finished {
		return nil, errors.New("cipher stream is already finished")
	}
	n := make([]byte, chacha20poly1305.NonceSizeX)
	copy(n, s.nonce[:])
	binary.BigEndian.PutUint32(n[NonceLen:], s.counter)
	if last {
		n[NonceLen+4] = 1
		s.finished = true
		return n, nil
	}
	if s.counter == math.MaxUint32 {
		return nil, errors.New("cipher stream chunk counter overflow")
	}
	s.counter++
	return n, nil
}

// StreamEncryptor encrypts one entry's payload chunk by chunk.
// EncryptNext consumes full chunks; EncryptLast terminates the stream
// and must be called exactly once, even for empty payloads.
type StreamEncryptor struct {
	s *streamState
}

// NewStreamEncryptor builds an encryptor for one entry. The nonce must
// never repeat under the same key.
func NewStreamEncryptor(key, nonce []byte) (*StreamEncryptor, error) {
	s, err := newStreamState(key, nonce)
	if err != nil {
		return nil, err
	}
	return &StreamEncryptor{s: s}, nil
}

// EncryptNext seals one full plaintext chunk. plain must be exactly
// ChunkSize bytes.
func (e *StreamEncryptor) EncryptNext(plain []byte) ([]byte, error) {
	if len(plain) != ChunkSize {
		return nil, errors.Reason("chunk is %d bytes, want %d", len(plain), ChunkSize).Err()
	}
	n, err := e.s.chunkNonce(false)
	if err != nil {
		return nil, err
	}
	return e.s.aead.Seal(nil, n, plain, nil), nil
}

// EncryptLast seals the final, possibly empty, chunk and closes the
// stream.
func (e *StreamEncryptor) EncryptLast(plain []byte) ([]byte, error) {
	if len(plain) > ChunkSize {
		return nil, errors.Reason("last chunk is %d bytes, limit %d", len(plain), ChunkSize).Err()
	}
	n, err := e.s.chunkNonce(true)
	if err != nil {
		return nil, err
	}
	return e.s.aead.Seal(nil, n, plain, nil), nil
}

// StreamDecryptor mirrors StreamEncryptor. Calling DecryptNext on the
// chunk that was sealed with EncryptLast (or vice versa) fails
// authentication, because the last-chunk flag is part of the nonce.
type StreamDecryptor struct {
	s *streamState
}

// NewStreamDecryptor builds a decryptor for one entry.
func NewStreamDecryptor(key, nonce []byte) (*StreamDecryptor, error) {
	s, err := newStreamState(key, nonce)
	if err != nil {
		return nil, err
	}
	return &StreamDecryptor{s: s}, nil
}

// DecryptNext opens one full ciphertext chunk of exactly
// ChunkSize+TagOverhead bytes.
func (d *StreamDecryptor) DecryptNext(ct []byte) ([]byte, error) {
	if len(ct) != ChunkSize+TagOverhead {
		return nil, errors.Reason("ciphertext chunk is %d bytes, want %d", len(ct), ChunkSize+TagOverhead).Err()
	}
	return d.open(ct, false)
}

// DecryptLast opens the final ciphertext chunk and closes the stream.
func (d *StreamDecryptor) DecryptLast(ct []byte) ([]byte, error) {
	if len(ct) < TagOverhead || len(ct) > ChunkSize+TagOverhead {
		return nil, errors.Reason("last ciphertext chunk is %d bytes, want %d..%d",
			len(ct), TagOverhead, ChunkSize+TagOverhead).Err()
	}
	return d.open(ct, true)
}

func (d *StreamDecryptor) open(ct []byte, last bool) ([]byte, error) {
	n, err := d.s.chunkNonce(last)
	if err != nil {
		return nil, err
	}
	plain, err := d.s.aead.Open(nil, n, ct, nil)
	if err != nil {
		return nil, errors.Annotate(err, "decrypting chunk").Err()
	}
	return plain, nil
}

// NewEncryptWriter returns a WriteCloser that cuts the written
// plaintext into chunks through enc and writes the ciphertext chunks
// to w. Close seals the final chunk and must be called even for empty
// payloads so the trailing tag reaches the wire. A payload that is an
// exact multiple of ChunkSize is followed by an empty last chunk.
func NewEncryptWriter(w io.Writer, enc *StreamEncryptor) io.WriteCloser {
	return &encryptWriter{w: w, enc: enc, buf: make([]byte, 0, ChunkSize)}
}

type encryptWriter struct {
	w   io.Writer
	enc *StreamEncryptor
	buf []byte
}

func (e *encryptWriter) Write(p []byte) (int, error) {
	total := len(p)
	for len(e.buf)+len(p) >= ChunkSize {
		need := ChunkSize - len(e.buf)
		e.buf = append(e.buf, p[:need]...)
		p = p[need:]
		ct, err := e.enc.EncryptNext(e.buf)
		if err != nil {
			return total - len(p), err
		}
		if _, err := e.w.Write(ct); err != nil {
			return total - len(p), err
		}
		e.buf = e.buf[:0]
	}
	e.buf = append(e.buf, p...)
	return total, nil
}

func (e *encryptWriter) Close() error {
	ct, err := e.enc.EncryptLast(e.buf)
	if err != nil {
		return err
	}
	e.buf = e.buf[:0]
	_, err = e.w.Write(ct)
	return err
}
