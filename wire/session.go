// session.go - Encrypted wire protocol session.
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

// Package wire implements the encrypted, authenticated transport layer of
// the peer to peer protocol: the x-only ECDH handshake, the per-direction
// key schedule, AEAD frame encryption with incremental stream parsing, and
// the byte/time bounded rekey scheme with its denial of service
// safeguards.
package wire

import (
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/katzenpost/hpqc/rand"
	"github.com/katzenpost/hpqc/util"
	"gopkg.in/op/go-logging.v1"

	"github.com/k1827889/bitcoin/crypto/ecdh"
	"github.com/k1827889/bitcoin/log"
	"github.com/k1827889/bitcoin/wire/commands"
)

const (
	stateInit        uint32 = 0
	stateEstablished uint32 = 1
	stateInvalid     uint32 = 2

	rxChunkSize = 4096
)

// SessionConfig is the configuration used to create new Sessions.
type SessionConfig struct {
	// LogBackend is the logging backend sub-loggers are created from.
	LogBackend *log.Backend

	// NetMagic is the network's legacy message start sequence, used to
	// detect a peer that is speaking the unencrypted protocol.
	NetMagic [legacyMagicLen]byte

	// RandomReader is a cryptographic entropy source for the ephemeral
	// handshake key.  Defaults to rand.Reader.
	RandomReader io.Reader

	// AcceleratedRekey selects the drastically lowered rekey thresholds
	// used to exercise the rekey path in conformance tests.
	AcceleratedRekey bool
}

// Session binds the encrypted channel to a net.Conn: it runs the public
// key exchange, enables the channel and drives the framer for inbound
// traffic.  One Session owns exactly one Channel and one MessageFramer and
// serves exactly one connection.
type Session struct {
	conn       net.Conn
	log        *logging.Logger
	logBackend *log.Backend

	keypair *ecdh.PrivateKey
	channel *Channel
	framer  *MessageFramer

	netMagic [legacyMagicLen]byte
	rxBuf    []byte

	state       uint32
	isInitiator bool
}

// NewSession creates a new Session with a freshly generated ephemeral
// handshake keypair.
func NewSession(cfg *SessionConfig, isInitiator bool) (*Session, error) {
	if cfg.LogBackend == nil {
		return nil, errors.New("wire: missing LogBackend")
	}
	r := cfg.RandomReader
	if r == nil {
		r = rand.Reader
	}

	keypair, err := ecdh.NewKeypair(r)
	if err != nil {
		return nil, err
	}

	return &Session{
		log:         cfg.LogBackend.GetLogger("wire/session"),
		logBackend:  cfg.LogBackend,
		keypair:     keypair,
		channel:     NewChannel(cfg.LogBackend, cfg.AcceleratedRekey),
		framer:      nil,
		netMagic:    cfg.NetMagic,
		state:       stateInit,
		isInitiator: isInitiator,
	}, nil
}

// Channel returns the session's encrypted channel.
func (s *Session) Channel() *Channel {
	return s.channel
}

// Initialize takes an established net.Conn, binds it to the Session and
// conducts the handshake: both sides transmit their 32 byte public
// coordinate, the shared secret is computed and the channel enabled.  The
// initiating side sends under K1, the responding side under K2.
func (s *Session) Initialize(conn net.Conn) error {
	if atomic.LoadUint32(&s.state) != stateInit {
		return ErrInvalidState
	}
	s.conn = conn
	if err := s.handshake(); err != nil {
		atomic.StoreUint32(&s.state, stateInvalid)
		return err
	}
	atomic.StoreUint32(&s.state, stateEstablished)
	return nil
}

func (s *Session) handshake() error {
	// Our ephemeral public coordinate, then theirs.  The ordering does not
	// matter, both writes can cross on the wire.
	if _, err := s.conn.Write(s.keypair.PublicKey().Bytes()); err != nil {
		return err
	}

	hs := new(HandshakeFramer)
	var chunk [HandshakeLen]byte
	for !hs.Complete() {
		n, err := s.conn.Read(chunk[:])
		if err != nil {
			return err
		}
		consumed := hs.Feed(chunk[:n])
		if consumed < n {
			// Bytes beyond the handshake belong to the first frame.
			s.rxBuf = append(s.rxBuf, chunk[consumed:n]...)
		}
	}

	if hs.MatchesLegacyHeader(s.netMagic[:]) {
		s.log.Warning("Peer sent a legacy plaintext header instead of a handshake")
		return ErrLegacyPeer
	}

	secret, err := s.keypair.SharedSecret(hs.PublicKeyBytes())
	if err != nil {
		return err
	}
	defer util.ExplicitBzero(secret)

	// The initiator of the connection is the outbound side.
	if err := s.channel.EnableEncryption(secret, !s.isInitiator); err != nil {
		return err
	}
	s.framer = NewMessageFramer(s.channel, s.logBackend)
	return nil
}

// SendMessage encrypts and transmits one message: the command identifier
// and payload wrapped in a single frame.
func (s *Session) SendMessage(command string, payload []byte) error {
	if atomic.LoadUint32(&s.state) != stateEstablished {
		return ErrInvalidState
	}

	plaintext, err := commands.Encode(command, payload)
	if err != nil {
		return err
	}
	if len(plaintext) > MaxMsgLen {
		return ErrMsgSize
	}

	buf := make([]byte, LengthHeaderLen, LengthHeaderLen+len(plaintext))
	buf[0] = byte(len(plaintext))
	buf[1] = byte(len(plaintext) >> 8)
	buf[2] = byte(len(plaintext) >> 16)
	buf = append(buf, plaintext...)

	frame, err := s.channel.EncryptFrame(buf)
	if err != nil {
		atomic.StoreUint32(&s.state, stateInvalid)
		return err
	}
	if _, err := s.conn.Write(frame); err != nil {
		// All write errors are fatal.
		atomic.StoreUint32(&s.state, stateInvalid)
		return err
	}
	return nil
}

// RecvMessage receives one message off the connection, blocking until a
// full frame has arrived and been decrypted.
func (s *Session) RecvMessage() (string, []byte, error) {
	command, payload, err := s.recvMessageImpl()
	if err != nil {
		// All receive errors are fatal.
		atomic.StoreUint32(&s.state, stateInvalid)
	}
	return command, payload, err
}

func (s *Session) recvMessageImpl() (string, []byte, error) {
	if atomic.LoadUint32(&s.state) != stateEstablished {
		return "", nil, ErrInvalidState
	}

	s.framer.Reset()
	var chunk [rxChunkSize]byte
	for {
		for len(s.rxBuf) > 0 && !s.framer.Complete() {
			n, err := s.framer.Feed(s.rxBuf)
			if err != nil {
				return "", nil, err
			}
			s.rxBuf = s.rxBuf[n:]
		}
		if s.framer.Complete() {
			command, payload := s.framer.Message()
			return command, payload, nil
		}

		n, err := s.conn.Read(chunk[:])
		if err != nil {
			return "", nil, err
		}
		s.rxBuf = append(s.rxBuf, chunk[:n]...)
	}
}

// Close terminates the session, cleansing all key material.
func (s *Session) Close() {
	s.keypair.Reset()
	s.channel.Close()
	if s.conn != nil {
		s.conn.Close()
	}
	atomic.StoreUint32(&s.state, stateInvalid)
}
