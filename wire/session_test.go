// session_test.go - Session tests.
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
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNetMagic = [legacyMagicLen]byte{0xf9, 0xbe, 0xb4, 0xd9}

func newSessionPair(t *testing.T) (*Session, *Session) {
	cfg := &SessionConfig{
		LogBackend: testLogBackend(t),
		NetMagic:   testNetMagic,
	}

	initiator, err := NewSession(cfg, true)
	require.NoError(t, err, "NewSession(initiator)")
	responder, err := NewSession(cfg, false)
	require.NoError(t, err, "NewSession(responder)")

	initConn, respConn := net.Pipe()
	errCh := make(chan error)
	go func() {
		errCh <- responder.Initialize(respConn)
	}()
	require.NoError(t, initiator.Initialize(initConn), "initiator Initialize()")
	require.NoError(t, <-errCh, "responder Initialize()")

	return initiator, responder
}

func TestSessionHandshakeAndTraffic(t *testing.T) {
	require := require.New(t)

	initiator, responder := newSessionPair(t)
	defer initiator.Close()
	defer responder.Close()

	// Both sides converge on the same session ID.
	require.Equal(initiator.Channel().SessionID(), responder.Channel().SessionID())
	require.True(initiator.Channel().ShouldCryptMsg())

	// Initiator to responder.
	payload := []byte("block announcement payload")
	go func() {
		_ = initiator.SendMessage("inv", payload)
	}()
	command, got, err := responder.RecvMessage()
	require.NoError(err, "responder RecvMessage()")
	require.Equal("inv", command)
	require.Equal(payload, got)

	// And back the other way, several in a row.
	go func() {
		for i := 0; i < 3; i++ {
			_ = responder.SendMessage("ping", []byte{byte(i)})
		}
	}()
	for i := 0; i < 3; i++ {
		command, got, err = initiator.RecvMessage()
		require.NoError(err, "initiator RecvMessage() %d", i)
		require.Equal("ping", command)
		require.Equal([]byte{byte(i)}, got)
	}
}

func TestSessionRejectsLegacyPeer(t *testing.T) {
	require := require.New(t)

	cfg := &SessionConfig{
		LogBackend: testLogBackend(t),
		NetMagic:   testNetMagic,
	}
	s, err := NewSession(cfg, false)
	require.NoError(err)
	defer s.Close()

	conn, peerConn := net.Pipe()
	go func() {
		defer peerConn.Close()
		// A legacy peer starts with a plaintext version header.  It also
		// drains our handshake bytes, which it will misparse on its end.
		var discard [HandshakeLen]byte
		hdr := make([]byte, HandshakeLen)
		copy(hdr, testNetMagic[:])
		copy(hdr[legacyMagicLen:], "version")
		_, _ = peerConn.Write(hdr)
		_, _ = io.ReadFull(peerConn, discard[:])
	}()

	require.Equal(ErrLegacyPeer, s.Initialize(conn))

	// The session is unusable afterwards.
	require.Equal(ErrInvalidState, s.SendMessage("ping", nil))
}

func TestSessionOperationsBeforeHandshake(t *testing.T) {
	assert := assert.New(t)

	cfg := &SessionConfig{
		LogBackend: testLogBackend(t),
		NetMagic:   testNetMagic,
	}
	s, err := NewSession(cfg, true)
	assert.NoError(err)
	defer s.Close()

	assert.Equal(ErrInvalidState, s.SendMessage("ping", nil))
	_, _, err = s.RecvMessage()
	assert.Equal(ErrInvalidState, err)
}

func TestSessionTamperIsFatal(t *testing.T) {
	require := require.New(t)

	initiator, responder := newSessionPair(t)
	defer responder.Close()

	// Bypass the initiator's session and push a corrupted frame directly.
	ch := initiator.Channel()
	plaintext := append([]byte{0x0c, 0x00, 0x00}, []byte("ping")...)
	plaintext = append(plaintext, make([]byte, 8)...) // command padding
	frame, err := ch.EncryptFrame(plaintext)
	require.NoError(err)
	frame[LengthHeaderLen] ^= 0x01

	go func() {
		_, _ = initiator.conn.Write(frame)
	}()
	_, _, err = responder.RecvMessage()
	require.Equal(ErrAuthenticationFailed, err)

	// Fatal: the responder refuses further use.
	_, _, err = responder.RecvMessage()
	require.Equal(ErrInvalidState, err)
	initiator.Close()
}
