// channel.go - Encrypted channel cipher state and rekey policy.
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
	"sync"
	"time"

	"github.com/katzenpost/hpqc/util"
	"gopkg.in/op/go-logging.v1"

	"github.com/k1827889/bitcoin/crypto/aead"
	"github.com/k1827889/bitcoin/log"
)

// cipherState is the mutable per-direction state: the active keypack, the
// frame cipher keyed from it, and the sequence/byte/time counters that the
// rekey policy operates on.  A sequence number is never reused under the
// same key; rekeyLocked replaces the key and resets the counter together.
type cipherState struct {
	cipher    *aead.Cipher
	keypack   *[aead.KeypackSize]byte
	seqNr     uint64
	bytes     uint64
	lastRekey time.Time
}

// Channel owns the symmetric cipher state of one encrypted connection: one
// send and one recv direction, the session identifier anchoring the rekey
// hash chain, and the byte/time accounting that drives voluntary rekeys and
// the denial of service abort ceilings.
//
// The send path and the recv path may be driven from different goroutines;
// every state mutating call serializes on the channel mutex for its full
// duration so a rekey decision and the eventual key swap cannot interleave.
type Channel struct {
	sync.Mutex

	log *logging.Logger

	sessionID [SessionIDLen]byte
	k1        [aead.KeypackSize]byte
	k2        [aead.KeypackSize]byte

	send cipherState
	recv cipherState

	handshakeDone bool
	inbound       bool

	rekeyBytes uint64
	rekeyTime  time.Duration
	abortBytes uint64
	abortTime  time.Duration

	deferredRekeys uint64

	// nowFn exists so the time based policy paths are testable.
	nowFn func() time.Time
}

// NewChannel creates a Channel in the pre-handshake state.  With
// acceleratedRekey set the rekey trigger and abort thresholds are lowered
// drastically; this exists to exercise the rekey machinery in conformance
// tests and must not be used for production traffic.
func NewChannel(logBackend *log.Backend, acceleratedRekey bool) *Channel {
	c := &Channel{
		log:        logBackend.GetLogger("wire/channel"),
		rekeyBytes: RekeyLimitBytes,
		rekeyTime:  RekeyLimitTime,
		abortBytes: AbortLimitBytes,
		abortTime:  AbortLimitTime,
		nowFn:      time.Now,
	}
	if acceleratedRekey {
		c.rekeyBytes = acceleratedRekeyBytes
		c.rekeyTime = acceleratedRekeyTime
		c.abortBytes = acceleratedAbortBytes
		c.abortTime = acceleratedAbortTime
	}
	return c
}

// EnableEncryption consumes the raw handshake secret, derives the session
// key material and arms both directions.  The connection initiating side
// (inbound false) sends under K1 and receives under K2, the responding side
// the reverse; the assignment is fixed for the life of the channel, only
// the keypack contents rotate on rekey.  It must be called exactly once.
func (c *Channel) EnableEncryption(secret []byte, inbound bool) error {
	c.Lock()
	defer c.Unlock()

	if c.handshakeDone {
		return ErrInvalidState
	}
	if len(secret) != ecdhSecretLen {
		return ErrInvalidSecret
	}

	k1, k2, sessionID, err := deriveInitialKeys(secret)
	if err != nil {
		return err
	}
	c.k1, c.k2, c.sessionID = k1, k2, sessionID
	util.ExplicitBzero(k1[:])
	util.ExplicitBzero(k2[:])

	c.inbound = inbound
	if inbound {
		c.send.keypack, c.recv.keypack = &c.k2, &c.k1
	} else {
		c.send.keypack, c.recv.keypack = &c.k1, &c.k2
	}

	if c.send.cipher, err = aead.New(c.send.keypack[:]); err != nil {
		return err
	}
	if c.recv.cipher, err = aead.New(c.recv.keypack[:]); err != nil {
		return err
	}

	now := c.nowFn()
	c.send.seqNr, c.send.bytes, c.send.lastRekey = 0, 0, now
	c.recv.seqNr, c.recv.bytes, c.recv.lastRekey = 0, 0, now

	c.handshakeDone = true
	c.log.Debugf("Encryption enabled, inbound=%v", inbound)
	return nil
}

// ShouldCryptMsg returns true once the handshake has completed and traffic
// in both directions is encrypted.
func (c *Channel) ShouldCryptMsg() bool {
	c.Lock()
	defer c.Unlock()
	return c.handshakeDone
}

// SessionID returns a copy of the session identifier.
func (c *Channel) SessionID() []byte {
	c.Lock()
	defer c.Unlock()
	b := make([]byte, SessionIDLen)
	copy(b, c.sessionID[:])
	return b
}

// DeferredRekeys returns the number of recv-side rekey requests dropped by
// the minimum interval throttle, for anomaly detection by the caller.
func (c *Channel) DeferredRekeys() uint64 {
	c.Lock()
	defer c.Unlock()
	return c.deferredRekeys
}

// DecodeLength decodes the encrypted 24 bit length field out of a frame
// header under the current recv key and sequence number.  The returned
// value still carries the rekey announcement bit; the framing layer masks
// it.  Failure is fatal to the connection.
func (c *Channel) DecodeLength(hdr []byte) (uint32, error) {
	c.Lock()
	defer c.Unlock()

	if !c.handshakeDone {
		return 0, ErrInvalidState
	}
	length, err := c.recv.cipher.DecryptLength(c.recv.seqNr, hdr)
	if err != nil {
		return 0, ErrHeaderDecode
	}
	return length, nil
}

// DecryptFrame authenticates and decrypts a complete frame
// (header | ciphertext | tag) under the current recv key, returning the
// plaintext payload.  The frame buffer is cleansed when authentication
// fails so partially decrypted bytes can never leak through reused memory.
//
// Before touching the frame the abort ceilings are enforced: a peer that
// keeps sending without ever honoring rekey limits gets the connection torn
// down rather than unbounded traffic under one key.
func (c *Channel) DecryptFrame(frame []byte) ([]byte, error) {
	c.Lock()
	defer c.Unlock()

	if !c.handshakeDone {
		return nil, ErrInvalidState
	}

	if c.recv.bytes+uint64(len(frame)) > c.abortBytes ||
		c.nowFn().Sub(c.send.lastRekey) > c.abortTime {
		c.log.Warning("Abort limit exceeded, refusing to decrypt")
		return nil, ErrAbortLimit
	}

	plaintext, err := c.recv.cipher.OpenFrame(nil, c.recv.seqNr, frame)
	if err != nil {
		util.ExplicitBzero(frame)
		return nil, ErrAuthenticationFailed
	}
	c.recv.seqNr++
	c.recv.bytes += uint64(len(plaintext))

	return plaintext, nil
}

// EncryptFrame encrypts buf (header | plaintext) under the current send key
// and returns the full frame (masked header | ciphertext | tag).  The
// caller must leave the rekey announcement bit clear; when the send-side
// rekey thresholds have been reached the bit is set here and the local
// rekey is performed after encryption, so the announcing frame itself still
// travels under the old key.
func (c *Channel) EncryptFrame(buf []byte) ([]byte, error) {
	c.Lock()
	defer c.Unlock()

	if !c.handshakeDone {
		return nil, ErrInvalidState
	}
	if len(buf) < LengthHeaderLen {
		return nil, ErrMsgSize
	}
	if buf[LengthHeaderLen-1]&rekeyFlagByteMask != 0 {
		// The length field is restricted to 23 bits.
		return nil, ErrRekeyBitSet
	}

	shouldRekey := c.shouldRekeySendLocked()
	if shouldRekey {
		buf[LengthHeaderLen-1] |= rekeyFlagByteMask
		c.log.Debug("Announcing send-side rekey")
	}

	frame, err := c.send.cipher.SealFrame(nil, c.send.seqNr, buf[:LengthHeaderLen], buf[LengthHeaderLen:])
	if err != nil {
		return nil, err
	}
	c.send.seqNr++
	c.send.bytes += uint64(len(buf) - LengthHeaderLen)

	if shouldRekey {
		c.rekeyLocked(&c.send)
	}
	return frame, nil
}

// ShouldRekeySend returns true once the handshake is complete and the send
// direction has hit either the byte or the time rekey threshold.
func (c *Channel) ShouldRekeySend() bool {
	c.Lock()
	defer c.Unlock()
	return c.shouldRekeySendLocked()
}

func (c *Channel) shouldRekeySendLocked() bool {
	if !c.handshakeDone {
		return false
	}
	return c.send.bytes >= c.rekeyBytes ||
		c.nowFn().Sub(c.send.lastRekey) >= c.rekeyTime
}

// Rekey rotates the key material of one direction.  Recv-side rekeys are
// peer-requested and therefore throttled: a request arriving within
// MinRekeyTime of the previous recv rekey is dropped without altering any
// state, which bounds how often a malicious peer can force key derivation.
// Send-side rekeys are self-initiated and never throttled.  It returns
// true iff the rotation was performed.
func (c *Channel) Rekey(sendChannel bool) bool {
	c.Lock()
	defer c.Unlock()

	if !c.handshakeDone {
		return false
	}
	if !sendChannel && c.nowFn().Sub(c.recv.lastRekey) < MinRekeyTime {
		c.deferredRekeys++
		c.log.Warningf("Rejecting recv rekey under DoS limits (%d deferred)", c.deferredRekeys)
		return false
	}

	if sendChannel {
		c.rekeyLocked(&c.send)
	} else {
		c.rekeyLocked(&c.recv)
	}
	return true
}

// rekeyLocked advances one direction's keypack along the hash chain and
// atomically resets that direction's sequence number and byte/time
// counters.
func (c *Channel) rekeyLocked(st *cipherState) {
	next := nextKeypack(&c.sessionID, st.keypack)
	copy(st.keypack[:], next[:])
	util.ExplicitBzero(next[:])

	if err := st.cipher.ReKey(st.keypack[:]); err != nil {
		// Unreachable, the keypack length is fixed.
		panic("wire: rekey cipher re-init: " + err.Error())
	}
	st.seqNr = 0
	st.bytes = 0
	st.lastRekey = c.nowFn()

	dir := "recv"
	if st == &c.send {
		dir = "send"
	}
	c.log.Debugf("Rekeyed %s channel", dir)
}

// Close cleanses all key material from the channel.  The channel is
// unusable afterwards.
func (c *Channel) Close() {
	c.Lock()
	defer c.Unlock()

	if c.send.cipher != nil {
		c.send.cipher.Reset()
	}
	if c.recv.cipher != nil {
		c.recv.cipher.Reset()
	}
	util.ExplicitBzero(c.k1[:])
	util.ExplicitBzero(c.k2[:])
	util.ExplicitBzero(c.sessionID[:])
	c.handshakeDone = false
}
