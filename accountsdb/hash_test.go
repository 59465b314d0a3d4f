// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/appendvec"
)

func TestHashFork(t *testing.T) {
	_, ok, err := newTestDB(t, 0).HashFork(0)
	require.NoError(t, err)
	assert.False(t, ok)

	keys := []acc.Pubkey{acc.NewRandPubkey(), acc.NewRandPubkey(), acc.NewRandPubkey()}

	// same final content reached by different write histories
	a := newTestDB(t, appendvec.RecordSize(0)*2)
	for i, key := range keys {
		store(t, a, 0, key, acc.New(uint64(i), 0, acc.Pubkey{}))
	}
	for i, key := range keys {
		store(t, a, 0, key, acc.New(uint64(i+10), 0, acc.Pubkey{}))
	}

	b := newTestDB(t, 0)
	batch := make(map[acc.Pubkey]*acc.Account)
	for i, key := range keys {
		batch[key] = acc.New(uint64(i+10), 0, acc.Pubkey{})
	}
	require.NoError(t, b.Store(0, batch))

	ha, ok, err := a.HashFork(0)
	require.NoError(t, err)
	require.True(t, ok)
	hb, ok, err := b.HashFork(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha.String(), 66)

	store(t, b, 0, keys[0], acc.New(99, 0, acc.Pubkey{}))
	hc, _, err := b.HashFork(0)
	require.NoError(t, err)
	assert.NotEqual(t, hb, hc)
}

func TestScanAccountStorage(t *testing.T) {
	db := newTestDB(t, appendvec.RecordSize(0)*3)
	createAccounts(t, db, 0, 10, 0)

	counts, err := ScanAccountStorage(db, 0, func(_ *appendvec.StoredAccount, _ uint64, n *int) {
		*n++
	})
	require.NoError(t, err)
	require.Len(t, counts, 4)

	var total int
	for i, s := range db.SegmentStats(0) {
		assert.Equal(t, s.Count, counts[i])
		total += counts[i]
	}
	assert.Equal(t, 10, total)

	none, err := ScanAccountStorage(db, 1, func(_ *appendvec.StoredAccount, _ uint64, n *int) {})
	require.NoError(t, err)
	assert.Empty(t, none)
}
