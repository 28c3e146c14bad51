// commands.go - Wire protocol message commands.
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

// Package commands implements the plaintext message envelope carried inside
// encrypted frames: a fixed size null padded command identifier followed by
// the command payload.
package commands

import (
	"errors"
)

const (
	// CommandSize is the length of the command identifier in bytes.
	CommandSize = 12

	// Version is the legacy version negotiation command.
	Version = "version"
)

var (
	// ErrTruncated is the error returned when a message is too short to
	// contain a command identifier.
	ErrTruncated = errors.New("commands: truncated message")

	// ErrMalformedCommand is the error returned when the command
	// identifier is not well formed.
	ErrMalformedCommand = errors.New("commands: malformed command identifier")
)

// Encode serializes the command identifier and payload into a message
// suitable for encryption.
func Encode(command string, payload []byte) ([]byte, error) {
	if !isValidCommand(command) {
		return nil, ErrMalformedCommand
	}

	b := make([]byte, CommandSize, CommandSize+len(payload))
	copy(b, command)
	return append(b, payload...), nil
}

// Decode parses the command identifier out of a decrypted message and
// returns it along with the remaining payload.  The payload aliases b.
func Decode(b []byte) (string, []byte, error) {
	if len(b) < CommandSize {
		return "", nil, ErrTruncated
	}

	command := unpadCommand(b[:CommandSize])
	if command == "" || !isValidCommand(command) {
		return "", nil, ErrMalformedCommand
	}
	return command, b[CommandSize:], nil
}

// unpadCommand strips the null padding, rejecting embedded null bytes by
// returning an empty string.
func unpadCommand(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0x00 {
		n--
	}
	for _, c := range b[:n] {
		if c == 0x00 {
			return ""
		}
	}
	return string(b[:n])
}

// isValidCommand enforces the legacy header rules: 1 to CommandSize
// printable ASCII characters, no spaces.
func isValidCommand(command string) bool {
	if len(command) == 0 || len(command) > CommandSize {
		return false
	}
	for _, c := range []byte(command) {
		if c <= 0x20 || c >= 0x7f {
			return false
		}
	}
	return true
}
