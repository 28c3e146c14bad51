// keysched.go - Symmetric key derivation for the encrypted channel.
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

package wire

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/k1827889/bitcoin/crypto/aead"
)

// The extract salt and expand labels are wire format constants; both sides
// must derive identical key material from the same shared secret.
const (
	kdfSalt = "BitcoinSharedSecret"

	kdfLabelK1A       = "BitcoinK1A"
	kdfLabelK1B       = "BitcoinK1B"
	kdfLabelK2A       = "BitcoinK2A"
	kdfLabelK2B       = "BitcoinK2B"
	kdfLabelSessionID = "BitcoinSessionID"
)

// deriveInitialKeys expands the raw ECDH secret into the two directional
// keypacks and the session identifier.
func deriveInitialKeys(secret []byte) (k1, k2 [aead.KeypackSize]byte, sessionID [SessionIDLen]byte, err error) {
	if len(secret) != ecdhSecretLen {
		err = ErrInvalidSecret
		return
	}

	prk := hkdf.Extract(sha256.New, secret, []byte(kdfSalt))

	for _, out := range []struct {
		label string
		dst   []byte
	}{
		{kdfLabelK1A, k1[:aead.KeySize]},
		{kdfLabelK1B, k1[aead.KeySize:]},
		{kdfLabelK2A, k2[:aead.KeySize]},
		{kdfLabelK2B, k2[aead.KeySize:]},
		{kdfLabelSessionID, sessionID[:]},
	} {
		r := hkdf.Expand(sha256.New, prk, []byte(out.label))
		if _, err = io.ReadFull(r, out.dst); err != nil {
			return
		}
	}
	return
}

// nextKeypack derives the replacement keypack for a rekey:
// SHA256d(sessionID | half) over each 32 byte half of the old keypack.  It
// is a pure function of the session identifier and the prior key, keeping
// both peers in sync without exchanging new key material.
func nextKeypack(sessionID *[SessionIDLen]byte, keypack *[aead.KeypackSize]byte) [aead.KeypackSize]byte {
	var next [aead.KeypackSize]byte

	newA := hash256(sessionID[:], keypack[:aead.KeySize])
	newB := hash256(sessionID[:], keypack[aead.KeySize:])
	copy(next[:aead.KeySize], newA[:])
	copy(next[aead.KeySize:], newB[:])

	return next
}

// hash256 is the double SHA256 over the concatenation of a and b.
func hash256(a, b []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write(a)
	h.Write(b)
	return sha256.Sum256(h.Sum(nil))
}

const ecdhSecretLen = 32
