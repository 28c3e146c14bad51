// aead.go - Dual-keyed ChaCha20-Poly1305 frame cipher.
// Copyright (C) 2026  The bitcoin-go authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package aead implements the dual-keyed ChaCha20-Poly1305 construct used
// to protect wire frames.  A 64 byte keypack holds two independent ChaCha20
// keys: the first masks the 3 byte length header, the second keys the
// payload stream and the one-time Poly1305 key.  The nonce for both streams
// is the per-direction 64 bit frame sequence number.
package aead

import (
	"crypto/subtle"
	"encoding/binary"
	"errors"

	"github.com/katzenpost/chacha20"
	"github.com/katzenpost/hpqc/util"
	"golang.org/x/crypto/poly1305"
)

const (
	// KeySize is the length of one of the two subkeys in bytes.
	KeySize = chacha20.KeySize

	// KeypackSize is the length of a full keypack in bytes.
	KeypackSize = 2 * KeySize

	// NonceSize is the length of the sequence number nonce in bytes.
	NonceSize = chacha20.NonceSize

	// TagSize is the length of the authentication tag in bytes.
	TagSize = poly1305.TagSize

	// LengthSize is the length of the encrypted length header in bytes.
	LengthSize = 3
)

var (
	// ErrOpen is the error returned when frame authentication fails.
	ErrOpen = errors.New("aead: message authentication failed")

	// ErrKeypackSize is the error returned when a keypack is not
	// KeypackSize bytes.
	ErrKeypackSize = errors.New("aead: invalid keypack length")

	// ErrTruncated is the error returned when the input is too short to
	// contain a full header or tag.
	ErrTruncated = errors.New("aead: truncated input")
)

// Cipher is a frame cipher instance keyed from a keypack.  It is stateless
// across frames, the caller owns the sequence number.
type Cipher struct {
	lengthKey  [KeySize]byte
	payloadKey [KeySize]byte
}

// New creates a Cipher keyed with the provided 64 byte keypack.
func New(keypack []byte) (*Cipher, error) {
	c := new(Cipher)
	if err := c.ReKey(keypack); err != nil {
		return nil, err
	}
	return c, nil
}

// ReKey replaces the Cipher's key material in place with a new keypack.
func (c *Cipher) ReKey(keypack []byte) error {
	if len(keypack) != KeypackSize {
		return ErrKeypackSize
	}
	copy(c.lengthKey[:], keypack[:KeySize])
	copy(c.payloadKey[:], keypack[KeySize:])
	return nil
}

// Reset clears all key material from the Cipher.
func (c *Cipher) Reset() {
	util.ExplicitBzero(c.lengthKey[:])
	util.ExplicitBzero(c.payloadKey[:])
}

func seqNonce(seqNr uint64) []byte {
	var nonce [NonceSize]byte
	binary.LittleEndian.PutUint64(nonce[:], seqNr)
	return nonce[:]
}

func (c *Cipher) initPayload(seqNr uint64) (*chacha20.Cipher, *poly1305.MAC) {
	s, err := chacha20.New(c.payloadKey[:], seqNonce(seqNr))
	if err != nil {
		panic("aead: failed to initialize chacha20: " + err.Error())
	}

	// The Poly1305 one-time key is the first 32 bytes of keystream block 0,
	// the payload is encrypted starting at block 1.
	var polyKey [32]byte
	defer util.ExplicitBzero(polyKey[:])
	s.KeyStream(polyKey[:])
	s.Seek(1)

	return s, poly1305.New(&polyKey)
}

// DecryptLength recovers the 24 bit length field from a masked length
// header without advancing any state.
func (c *Cipher) DecryptLength(seqNr uint64, hdr []byte) (uint32, error) {
	if len(hdr) < LengthSize {
		return 0, ErrTruncated
	}

	s, err := chacha20.New(c.lengthKey[:], seqNonce(seqNr))
	if err != nil {
		panic("aead: failed to initialize chacha20: " + err.Error())
	}
	defer s.Reset()

	var mask [LengthSize]byte
	s.KeyStream(mask[:])

	return uint32(hdr[0]^mask[0]) |
		uint32(hdr[1]^mask[1])<<8 |
		uint32(hdr[2]^mask[2])<<16, nil
}

// SealFrame encrypts the length header and plaintext, authenticates both,
// and appends maskedHeader | ciphertext | tag to dst, returning the updated
// slice.  hdr must be exactly LengthSize bytes.
func (c *Cipher) SealFrame(dst []byte, seqNr uint64, hdr, plaintext []byte) ([]byte, error) {
	if len(hdr) != LengthSize {
		return nil, ErrTruncated
	}

	s, m := c.initPayload(seqNr)
	defer s.Reset()

	ret := make([]byte, LengthSize+len(plaintext), LengthSize+len(plaintext)+TagSize)

	// Mask the length header with the length key stream.
	ls, err := chacha20.New(c.lengthKey[:], seqNonce(seqNr))
	if err != nil {
		panic("aead: failed to initialize chacha20: " + err.Error())
	}
	ls.XORKeyStream(ret[:LengthSize], hdr)
	ls.Reset()

	// Encrypt the payload and authenticate header plus ciphertext.
	s.XORKeyStream(ret[LengthSize:], plaintext)
	m.Write(ret)
	ret = m.Sum(ret)

	return append(dst, ret...), nil
}

// OpenFrame authenticates maskedHeader | ciphertext | tag and, on success,
// appends the decrypted payload to dst, returning the updated slice.  The
// frame is not modified; callers are responsible for cleansing it when
// authentication fails.
func (c *Cipher) OpenFrame(dst []byte, seqNr uint64, frame []byte) ([]byte, error) {
	if len(frame) < LengthSize+TagSize {
		return nil, ErrTruncated
	}
	ctLen := len(frame) - LengthSize - TagSize

	s, m := c.initPayload(seqNr)
	defer s.Reset()

	m.Write(frame[:LengthSize+ctLen])
	derivedTag := m.Sum(nil)
	if subtle.ConstantTimeCompare(frame[LengthSize+ctLen:], derivedTag) != 1 {
		return nil, ErrOpen
	}

	ret := make([]byte, ctLen)
	s.XORKeyStream(ret, frame[LengthSize:LengthSize+ctLen])
	return append(dst, ret...), nil
}
