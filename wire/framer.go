// framer.go - Incremental encrypted frame reassembly.
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
	"gopkg.in/op/go-logging.v1"

	"github.com/k1827889/bitcoin/log"
	"github.com/k1827889/bitcoin/wire/commands"
)

// MessageFramer reassembles one encrypted frame at a time out of arbitrary
// sized chunks of a byte stream.  It accumulates the encrypted length
// header, decodes it through the channel, then accumulates ciphertext plus
// tag and has the channel authenticate and decrypt once the frame is
// complete.  Any error it returns poisons the connection; the byte stream
// driver must tear it down, there is no framing resynchronization.
type MessageFramer struct {
	channel *Channel
	log     *logging.Logger

	buf     []byte
	hdrPos  int
	dataPos int
	inData  bool

	msgSize   uint32
	rekeyFlag bool

	complete bool
	command  string
	payload  []byte
}

// NewMessageFramer creates a MessageFramer feeding decrypt operations into
// channel.
func NewMessageFramer(channel *Channel, logBackend *log.Backend) *MessageFramer {
	return &MessageFramer{
		channel: channel,
		log:     logBackend.GetLogger("wire/framer"),
		buf:     make([]byte, LengthHeaderLen),
	}
}

// Feed consumes bytes from p and returns how many were consumed.  Fewer
// than len(p) bytes are consumed when the current frame needs less; the
// caller re-feeds the remainder (it belongs to the completed frame's
// successor).  A non-nil error is fatal to the connection.
func (f *MessageFramer) Feed(p []byte) (int, error) {
	if f.complete {
		return 0, ErrInvalidState
	}
	if !f.inData {
		return f.feedHeader(p)
	}
	return f.feedPayload(p)
}

func (f *MessageFramer) feedHeader(p []byte) (int, error) {
	copied := copy(f.buf[f.hdrPos:LengthHeaderLen], p)
	f.hdrPos += copied

	// Keep accumulating until the full header is in hand.
	if f.hdrPos < LengthHeaderLen {
		return copied, nil
	}

	msgSize, err := f.channel.DecodeLength(f.buf[:LengthHeaderLen])
	if err != nil {
		return copied, err
	}

	// The counterparty signals a post-frame rekey via the most significant
	// bit of the length field.
	if msgSize&rekeyFlagBit != 0 {
		f.log.Debugf("Rekey flag detected %d", msgSize)
		f.rekeyFlag = true
		msgSize &^= rekeyFlagBit
	}

	if msgSize > MaxMsgLen {
		f.log.Warningf("Max message size exceeded %d", msgSize)
		return copied, ErrMsgSize
	}

	f.msgSize = msgSize
	f.inData = true
	return copied, nil
}

func (f *MessageFramer) feedPayload(p []byte) (int, error) {
	remaining := int(f.msgSize) + TagLen - f.dataPos
	copyBytes := len(p)
	if copyBytes > remaining {
		copyBytes = remaining
	}

	// Grow the reassembly buffer up to growthLookahead ahead of the bytes
	// in hand, but never beyond the frame's total size.  This amortizes
	// reallocation for large frames without over-allocating for small
	// ones, and bounds memory against a declared-length-then-trickle peer.
	if need := LengthHeaderLen + f.dataPos + copyBytes; len(f.buf) < need {
		total := LengthHeaderLen + int(f.msgSize) + TagLen
		grown := need + growthLookahead + TagLen
		if grown > total {
			grown = total
		}
		buf := make([]byte, grown)
		copy(buf, f.buf[:LengthHeaderLen+f.dataPos])
		f.buf = buf
	}

	copy(f.buf[LengthHeaderLen+f.dataPos:], p[:copyBytes])
	f.dataPos += copyBytes

	if f.dataPos < int(f.msgSize)+TagLen {
		return copyBytes, nil
	}

	// Frame complete: authenticate, decrypt and parse the command.
	frame := f.buf[:LengthHeaderLen+int(f.msgSize)+TagLen]
	plaintext, err := f.channel.DecryptFrame(frame)
	if err != nil {
		f.log.Warningf("Authentication or decryption failed: %v", err)
		return copyBytes, err
	}

	command, payload, err := commands.Decode(plaintext)
	if err != nil {
		return copyBytes, err
	}

	if f.rekeyFlag {
		// The rekey outcome is advisory: a throttled rotation is dropped
		// (and counted by the channel) but the decrypted message is still
		// delivered.
		f.channel.Rekey(false)
	}

	f.command = command
	f.payload = payload
	f.complete = true
	return copyBytes, nil
}

// Complete returns true once a full frame has been decrypted and parsed.
func (f *MessageFramer) Complete() bool {
	return f.complete
}

// Message returns the command identifier and payload of the completed
// frame.  Valid only while Complete() is true.
func (f *MessageFramer) Message() (string, []byte) {
	return f.command, f.payload
}

// Reset prepares the framer for the next frame.
func (f *MessageFramer) Reset() {
	f.buf = make([]byte, LengthHeaderLen)
	f.hdrPos = 0
	f.dataPos = 0
	f.inData = false
	f.msgSize = 0
	f.rekeyFlag = false
	f.complete = false
	f.command = ""
	f.payload = nil
}
