// keysched_test.go - Key schedule tests.
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
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveInitialKeys(t *testing.T) {
	require := require.New(t)

	secret := make([]byte, ecdhSecretLen)
	_, err := rand.Read(secret)
	require.NoError(err)

	k1, k2, sessionID, err := deriveInitialKeys(secret)
	require.NoError(err)

	// Deterministic given the same secret.
	k1b, k2b, sessionIDb, err := deriveInitialKeys(secret)
	require.NoError(err)
	require.Equal(k1, k1b)
	require.Equal(k2, k2b)
	require.Equal(sessionID, sessionIDb)

	// All five outputs are independent.
	require.NotEqual(k1, k2)
	require.NotEqual(k1[:32], k1[32:])
	require.NotEqual(k2[:32], k2[32:])
	require.NotEqual(sessionID[:], k1[:32])

	// A different secret yields different material.
	secret[0] ^= 0x01
	k1c, _, sessionIDc, err := deriveInitialKeys(secret)
	require.NoError(err)
	require.NotEqual(k1, k1c)
	require.NotEqual(sessionID, sessionIDc)
}

func TestDeriveInitialKeysRejectsBadSecret(t *testing.T) {
	require := require.New(t)

	for _, n := range []int{0, 16, 31, 33, 64} {
		_, _, _, err := deriveInitialKeys(make([]byte, n))
		require.Equal(ErrInvalidSecret, err, "length %d", n)
	}
}

func TestNextKeypack(t *testing.T) {
	require := require.New(t)

	var sessionID [SessionIDLen]byte
	var keypack [64]byte
	_, err := rand.Read(sessionID[:])
	require.NoError(err)
	_, err = rand.Read(keypack[:])
	require.NoError(err)

	next := nextKeypack(&sessionID, &keypack)
	require.NotEqual(keypack, next, "rekey must produce a different keypack")

	// Pure function of session ID and prior key.
	require.Equal(next, nextKeypack(&sessionID, &keypack))

	// The chain advances.
	require.NotEqual(next, nextKeypack(&sessionID, &next))

	// A different anchor diverges.
	sessionID[0] ^= 0x01
	require.NotEqual(next, nextKeypack(&sessionID, &keypack))
}
