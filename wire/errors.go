// errors.go - Wire protocol error values.
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

import "errors"

// All of these are fatal: the driver owning the connection must tear it
// down, no protocol error at this layer is recoverable.
var (
	// ErrInvalidState is returned when an operation is attempted in a
	// state that does not permit it.
	ErrInvalidState = errors.New("wire: invalid state")

	// ErrInvalidSecret is returned when the handshake secret is not
	// exactly 32 bytes.
	ErrInvalidSecret = errors.New("wire: invalid shared secret")

	// ErrHeaderDecode is returned when the encrypted length header cannot
	// be decoded, either truncated or produced under the wrong key.
	ErrHeaderDecode = errors.New("wire: length header decode failed")

	// ErrMsgSize is returned when a decoded payload length exceeds
	// MaxMsgLen.
	ErrMsgSize = errors.New("wire: invalid message size")

	// ErrAuthenticationFailed is returned when a frame's authentication
	// tag does not verify.
	ErrAuthenticationFailed = errors.New("wire: authentication failed")

	// ErrAbortLimit is returned when the hard byte or time ceiling has
	// been exceeded because the peer never honored rekey limits.
	ErrAbortLimit = errors.New("wire: rekey abort limit exceeded")

	// ErrRekeyBitSet is returned by the encrypt path when the caller
	// pre-set the reserved rekey announcement bit in the length header.
	ErrRekeyBitSet = errors.New("wire: length header rekey bit set by caller")

	// ErrLegacyPeer is returned when the bytes received during the
	// handshake look like a legacy plaintext protocol header instead of a
	// handshake public key.
	ErrLegacyPeer = errors.New("wire: peer speaks the legacy unencrypted protocol")
)
