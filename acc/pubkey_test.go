// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package acc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePubkey(t *testing.T) {
	k := NewRandPubkey()

	parsed, err := ParsePubkey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	parsed, err = ParsePubkey(k.String()[2:])
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = ParsePubkey("0x1234")
	assert.EqualError(t, err, "invalid length")

	_, err = ParsePubkey("1x" + k.String()[2:])
	assert.EqualError(t, err, "invalid prefix")

	assert.Panics(t, func() { MustParsePubkey("zz") })
}

func TestPubkeyJSON(t *testing.T) {
	k := NewRandPubkey()
	data, err := json.Marshal(&k)
	require.NoError(t, err)

	var decoded Pubkey
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, k, decoded)
}

func TestBytesToPubkey(t *testing.T) {
	k := BytesToPubkey([]byte{1, 2})
	assert.Equal(t, byte(1), k[30])
	assert.Equal(t, byte(2), k[31])
	assert.False(t, k.IsZero())
	assert.True(t, Pubkey{}.IsZero())

	long := make([]byte, 40)
	long[39] = 9
	assert.Equal(t, byte(9), BytesToPubkey(long)[31])
}

func TestAccountCopyEqual(t *testing.T) {
	a := New(10, 4, NewRandPubkey())
	b := a.Copy()
	assert.True(t, a.Equal(b))

	b.Data[0] = 1
	assert.False(t, a.Equal(b))
	assert.Equal(t, byte(0), a.Data[0])

	assert.True(t, (&Account{}).Equal(&Account{Data: []byte{}}))
	assert.False(t, a.Equal(nil))
}

func TestAncestors(t *testing.T) {
	a := NewAncestors([2]uint64{1, 1}, [2]uint64{0, 0})
	assert.True(t, a.Contains(0))
	assert.True(t, a.Contains(1))
	assert.False(t, a.Contains(2))
}
