// handshake.go - Handshake public key accumulation and legacy detection.
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
	"bytes"

	"github.com/k1827889/bitcoin/wire/commands"
)

// legacyMagicLen is the length of the network magic prefixing a legacy
// plaintext message header.
const legacyMagicLen = 4

// HandshakeFramer accumulates the fixed size handshake message, an x-only
// public coordinate, out of arbitrary sized stream chunks.
type HandshakeFramer struct {
	buf     [HandshakeLen]byte
	dataPos int
}

// Feed consumes up to the remaining handshake bytes from p and returns how
// many were consumed.
func (f *HandshakeFramer) Feed(p []byte) int {
	copied := copy(f.buf[f.dataPos:], p)
	f.dataPos += copied
	return copied
}

// Complete returns true once all HandshakeLen bytes have arrived.
func (f *HandshakeFramer) Complete() bool {
	return f.dataPos == HandshakeLen
}

// PublicKeyBytes returns the accumulated public coordinate.  Valid only
// while Complete() is true.
func (f *HandshakeFramer) PublicKeyBytes() []byte {
	return f.buf[:]
}

// Reset discards any accumulated bytes.
func (f *HandshakeFramer) Reset() {
	f.dataPos = 0
}

// MatchesLegacyHeader reports whether the buffered handshake blob, if
// reinterpreted as a plaintext protocol header, collides with a legitimate
// unencrypted header for the given network magic or is a version
// negotiation message.  Such a peer is not attempting the encrypted
// handshake and must be handled per the fallback policy.
func (f *HandshakeFramer) MatchesLegacyHeader(netMagic []byte) bool {
	if len(netMagic) != legacyMagicLen {
		return false
	}
	if bytes.Equal(f.buf[:legacyMagicLen], netMagic) {
		return true
	}

	command, _, err := commands.Decode(f.buf[legacyMagicLen : legacyMagicLen+commands.CommandSize])
	if err != nil {
		return false
	}
	return command == commands.Version
}
