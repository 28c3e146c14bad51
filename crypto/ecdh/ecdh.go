// ecdh.go - Ephemeral secp256k1 key agreement.
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

// Package ecdh provides the ephemeral secp256k1 key agreement used by the
// encrypted transport handshake.  Only the 32 byte x coordinate of a public
// point is ever sent on the wire; all points are normalized to the even-Y
// representation so the coordinate alone identifies the point.
package ecdh

import (
	"encoding/hex"
	"errors"
	"io"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/katzenpost/hpqc/util"
)

const (
	// GroupElementLength is the length of a serialized group element in
	// bytes (the x-only public coordinate and the shared secret).
	GroupElementLength = 32

	// PublicKeySize is the size of a serialized PublicKey in bytes.
	PublicKeySize = GroupElementLength

	// SharedSecretSize is the size of a raw shared secret in bytes.
	SharedSecretSize = GroupElementLength

	evenYPrefix = 0x02
	oddYPrefix  = 0x03
)

var (
	errInvalidKey  = errors.New("ecdh: invalid key")
	errKeyConsumed = errors.New("ecdh: private key already consumed")
)

// PublicKey is an x-only secp256k1 public key under the canonical even-Y
// parity.
type PublicKey struct {
	pubBytes  [PublicKeySize]byte
	hexString string
}

// Bytes returns the raw x-only public coordinate.
func (k *PublicKey) Bytes() []byte {
	return k.pubBytes[:]
}

// FromBytes deserializes the byte slice b into the PublicKey, verifying
// that the even-Y point it names lies on the curve.
func (k *PublicKey) FromBytes(b []byte) error {
	if len(b) != PublicKeySize {
		return errInvalidKey
	}
	if _, err := pointFromCoordinate(b); err != nil {
		return err
	}

	copy(k.pubBytes[:], b)
	k.rebuildHexString()

	return nil
}

// Reset clears the PublicKey structure such that no sensitive data is left
// in memory.
func (k *PublicKey) Reset() {
	util.ExplicitBzero(k.pubBytes[:])
	k.hexString = "[scrubbed]"
}

// String returns the public key as a hexadecimal encoded string.
func (k *PublicKey) String() string {
	return k.hexString
}

func (k *PublicKey) rebuildHexString() {
	k.hexString = strings.ToUpper(hex.EncodeToString(k.pubBytes[:]))
}

// PrivateKey is an ephemeral secp256k1 private key.  It is single use: the
// scalar is destroyed as soon as a shared secret has been computed.
type PrivateKey struct {
	privKey *secp256k1.PrivateKey
	pubKey  PublicKey
}

// PublicKey returns the PublicKey corresponding to the PrivateKey.
func (k *PrivateKey) PublicKey() *PublicKey {
	return &k.pubKey
}

// SharedSecret validates the peer's x-only public coordinate, computes the
// ECDH product and returns the raw 32 byte x coordinate of the result.  The
// private scalar is destroyed before returning, success or not, so a
// PrivateKey can derive exactly one secret.
func (k *PrivateKey) SharedSecret(peerPublicX []byte) ([]byte, error) {
	if k.privKey == nil {
		return nil, errKeyConsumed
	}
	defer k.Reset()

	if len(peerPublicX) != PublicKeySize {
		return nil, errInvalidKey
	}
	peerPoint, err := pointFromCoordinate(peerPublicX)
	if err != nil {
		return nil, err
	}

	secret := secp256k1.GenerateSharedSecret(k.privKey, peerPoint)
	if len(secret) != SharedSecretSize {
		return nil, errInvalidKey
	}
	return secret, nil
}

// Reset clears the PrivateKey structure such that no sensitive data is left
// in memory.
func (k *PrivateKey) Reset() {
	if k.privKey != nil {
		k.privKey.Zero()
		k.privKey = nil
	}
	k.pubKey.Reset()
}

// NewKeypair generates a new PrivateKey sampled from the provided entropy
// source.  The keypair is normalized to the even-Y representation by
// negating the scalar when the raw public point would serialize with odd
// parity.
func NewKeypair(r io.Reader) (*PrivateKey, error) {
	privKey, err := secp256k1.GeneratePrivateKeyFromRand(r)
	if err != nil {
		return nil, err
	}

	if privKey.PubKey().SerializeCompressed()[0] == oddYPrefix {
		privKey.Key.Negate()
	}

	k := &PrivateKey{privKey: privKey}
	copy(k.pubKey.pubBytes[:], privKey.PubKey().SerializeCompressed()[1:])
	k.pubKey.rebuildHexString()

	return k, nil
}

// pointFromCoordinate reconstructs the full curve point named by an x-only
// coordinate under the canonical even-Y parity.
func pointFromCoordinate(x []byte) (*secp256k1.PublicKey, error) {
	compressed := make([]byte, 0, PublicKeySize+1)
	compressed = append(compressed, evenYPrefix)
	compressed = append(compressed, x...)

	point, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return nil, errInvalidKey
	}
	return point, nil
}
