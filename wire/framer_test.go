// framer_test.go - Frame reassembly tests.
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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k1827889/bitcoin/wire/commands"
)

// encryptCommand builds and encrypts a full message frame on c.
func encryptCommand(t *testing.T, c *Channel, command string, payload []byte) []byte {
	plaintext, err := commands.Encode(command, payload)
	require.NoError(t, err)
	return encryptMsg(t, c, plaintext)
}

// feedAll drives the framer with the entire input, re-feeding unconsumed
// bytes, and returns any leftover.
func feedAll(t *testing.T, f *MessageFramer, b []byte) []byte {
	for len(b) > 0 && !f.Complete() {
		n, err := f.Feed(b)
		require.NoError(t, err)
		require.NotZero(t, n, "framer must make progress")
		b = b[n:]
	}
	return b
}

func TestFramerReassembly(t *testing.T) {
	require := require.New(t)
	a, b := newChannelPair(t, false)
	f := NewMessageFramer(b, testLogBackend(t))

	payload := []byte("frame payload bytes")
	frame := encryptCommand(t, a, "tx", payload)

	// One byte at a time.
	for i := 0; i < len(frame); i++ {
		require.False(f.Complete())
		n, err := f.Feed(frame[i : i+1])
		require.NoError(err)
		require.Equal(1, n)
	}
	require.True(f.Complete())

	command, got := f.Message()
	require.Equal("tx", command)
	require.Equal(payload, got)
}

func TestFramerChunkBoundaries(t *testing.T) {
	require := require.New(t)
	a, b := newChannelPair(t, false)
	f := NewMessageFramer(b, testLogBackend(t))

	frameOne := encryptCommand(t, a, "ping", []byte{0x01})
	frameTwo := encryptCommand(t, a, "pong", []byte{0x02})

	// A chunk spanning the end of frame one and the start of frame two
	// must only be consumed up to the frame boundary.
	stream := append(append([]byte{}, frameOne...), frameTwo...)
	leftover := feedAll(t, f, stream)
	require.True(f.Complete())
	command, _ := f.Message()
	require.Equal("ping", command)
	require.Equal(frameTwo, leftover)

	// Feeding a completed framer is an error until Reset.
	_, err := f.Feed(leftover)
	require.Equal(ErrInvalidState, err)

	f.Reset()
	leftover = feedAll(t, f, leftover)
	require.True(f.Complete())
	require.Empty(leftover)
	command, _ = f.Message()
	require.Equal("pong", command)
}

func TestFramerLargeFrameGrowth(t *testing.T) {
	require := require.New(t)
	a, b := newChannelPair(t, false)
	f := NewMessageFramer(b, testLogBackend(t))

	// Larger than the growth lookahead, delivered in small chunks, so the
	// buffer is grown geometrically but clamped to the frame size.
	payload := make([]byte, growthLookahead+growthLookahead/2)
	for i := range payload {
		payload[i] = byte(i)
	}
	frame := encryptCommand(t, a, "block", payload)

	const chunkSize = 8192
	for off := 0; off < len(frame); {
		end := off + chunkSize
		if end > len(frame) {
			end = len(frame)
		}
		rest := feedAll(t, f, frame[off:end])
		require.Empty(rest)
		off = end
	}
	require.True(f.Complete())

	_, got := f.Message()
	require.Equal(payload, got)
}

func TestFramerOversizedLength(t *testing.T) {
	require := require.New(t)
	a, b := newChannelPair(t, false)
	f := NewMessageFramer(b, testLogBackend(t))

	// A header declaring MaxMsgLen+1 (rekey bit clear) must be rejected
	// before any payload is accepted.
	length := uint32(MaxMsgLen + 1)
	buf := []byte{byte(length), byte(length >> 8), byte(length >> 16), 0xde, 0xad}
	frame, err := a.EncryptFrame(buf)
	require.NoError(err)

	_, err = f.Feed(frame[:LengthHeaderLen])
	require.Equal(ErrMsgSize, err)
}

func TestFramerTamperedFrame(t *testing.T) {
	require := require.New(t)
	a, b := newChannelPair(t, false)
	f := NewMessageFramer(b, testLogBackend(t))

	frame := encryptCommand(t, a, "addr", []byte("secret addresses"))
	frame[len(frame)-1] ^= 0x01

	rest := frame
	var feedErr error
	for len(rest) > 0 {
		var n int
		n, feedErr = f.Feed(rest)
		if feedErr != nil {
			break
		}
		rest = rest[n:]
	}
	require.Equal(ErrAuthenticationFailed, feedErr)
	require.False(f.Complete())
}

func TestFramerMalformedCommand(t *testing.T) {
	require := require.New(t)
	a, b := newChannelPair(t, false)
	f := NewMessageFramer(b, testLogBackend(t))

	// A syntactically valid frame whose plaintext does not begin with a
	// well formed command identifier is fatal.
	frame := encryptMsg(t, a, make([]byte, commands.CommandSize))

	rest := frame
	var feedErr error
	for len(rest) > 0 {
		var n int
		n, feedErr = f.Feed(rest)
		if feedErr != nil {
			break
		}
		rest = rest[n:]
	}
	require.Equal(commands.ErrMalformedCommand, feedErr)
}

func TestFramerRekeyFlagHonored(t *testing.T) {
	require := require.New(t)
	a, b := newChannelPair(t, false)
	f := NewMessageFramer(b, testLogBackend(t))

	// Let the responder accept the recv rekey when the flag arrives.
	base := time.Now()
	b.Lock()
	b.nowFn = func() time.Time { return base.Add(MinRekeyTime + time.Second) }
	b.Unlock()

	a.Lock()
	a.send.bytes = a.rekeyBytes
	a.Unlock()

	flagged := encryptCommand(t, a, "inv", []byte("rekey announcement"))
	leftover := feedAll(t, f, flagged)
	require.Empty(leftover)
	require.True(f.Complete())
	command, _ := f.Message()
	require.Equal("inv", command)
	require.Zero(b.DeferredRekeys(), "rekey must have been accepted")

	// Traffic continues under the rotated keys.
	f.Reset()
	leftover = feedAll(t, f, encryptCommand(t, a, "getdata", nil))
	require.Empty(leftover)
	require.True(f.Complete())
}

func TestFramerRekeyFlagThrottled(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	a, b := newChannelPair(t, false)
	f := NewMessageFramer(b, testLogBackend(t))

	a.Lock()
	a.send.bytes = a.rekeyBytes
	a.Unlock()

	// The recv rekey is throttled, but the message that carried the flag
	// is still delivered.
	flagged := encryptCommand(t, a, "inv", []byte("rekey announcement"))
	leftover := feedAll(t, f, flagged)
	require.Empty(leftover)
	require.True(f.Complete())
	command, _ := f.Message()
	assert.Equal("inv", command)
	assert.Equal(uint64(1), b.DeferredRekeys())
}
