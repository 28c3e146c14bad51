// constants.go - Wire protocol constants.
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
	"time"

	"github.com/k1827889/bitcoin/crypto/aead"
)

const (
	// LengthHeaderLen is the length of a frame's associated data header in
	// bytes: the encrypted 24 bit little endian payload length.
	LengthHeaderLen = aead.LengthSize

	// TagLen is the length of a frame's authentication tag in bytes.
	TagLen = aead.TagSize

	// MaxMsgLen is the maximum payload length carried in a single frame.
	// It must be representable in the 23 bit length field.
	MaxMsgLen = 2 * 1024 * 1024

	// HandshakeLen is the length of the handshake message: an x-only
	// public coordinate.
	HandshakeLen = 32

	// SessionIDLen is the length of the session identifier in bytes.
	SessionIDLen = 32

	// rekeyFlagBit is the most significant bit of the 24 bit length field,
	// set by a sender to announce that the next frame in that direction
	// uses the next key with a reset sequence number.
	rekeyFlagBit = uint32(1) << 23

	// rekeyFlagByteMask is rekeyFlagBit as seen in the third (most
	// significant) byte of the little endian length header.
	rekeyFlagByteMask = byte(1) << 7

	// growthLookahead bounds how far the frame reassembly buffer grows
	// beyond the bytes in hand.
	growthLookahead = 256 * 1024

	// RekeyLimitBytes is the encrypted byte count that triggers a
	// voluntary send-side rekey.
	RekeyLimitBytes = uint64(1) << 30

	// RekeyLimitTime is the interval after which a voluntary send-side
	// rekey is triggered regardless of traffic.
	RekeyLimitTime = time.Hour

	// MinRekeyTime is the minimum accepted interval between recv-side
	// rekeys; requests arriving faster than this are dropped.
	MinRekeyTime = 10 * time.Second

	// AbortLimitBytes is the decrypted byte ceiling past which the channel
	// refuses to operate when the peer never honors rekey limits.
	AbortLimitBytes = uint64(4) << 30

	// AbortLimitTime is the wall clock ceiling past which the channel
	// refuses to operate without a send-side rekey.
	AbortLimitTime = 2 * time.Hour

	// Accelerated-rekey thresholds, for exercising the rekey machinery
	// without production-scale traffic.
	acceleratedRekeyBytes = uint64(12 * 1024)
	acceleratedRekeyTime  = 10 * time.Second
	acceleratedAbortBytes = uint64(32 * 1024)
	acceleratedAbortTime  = time.Minute
)
