// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/appendvec"
)

func newTestDB(t *testing.T, segmentSize uint64, paths ...string) *AccountsDB {
	if len(paths) == 0 {
		paths = []string{t.TempDir()}
	}
	db, err := New(&Options{Paths: paths, SegmentSize: segmentSize})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func store(t *testing.T, db *AccountsDB, fork acc.Fork, key acc.Pubkey, account *acc.Account) {
	require.NoError(t, db.Store(fork, map[acc.Pubkey]*acc.Account{key: account}))
}

func load(t *testing.T, db *AccountsDB, ancestors acc.Ancestors, key acc.Pubkey) (*acc.Account, acc.Fork) {
	account, fork, err := db.Load(ancestors, key)
	require.NoError(t, err)
	return account, fork
}

func createAccounts(t *testing.T, db *AccountsDB, fork acc.Fork, num int, space int) []acc.Pubkey {
	keys := make([]acc.Pubkey, 0, num)
	for i := range num {
		key := acc.NewRandPubkey()
		account := acc.New(uint64(i+1), space, acc.Pubkey{})

		got, _ := load(t, db, acc.NewAncestors([2]uint64{fork, 0}), key)
		require.Nil(t, got)

		store(t, db, fork, key, account)
		keys = append(keys, key)
	}
	return keys
}

func modifyAccounts(t *testing.T, db *AccountsDB, keys []acc.Pubkey, fork acc.Fork, count int) {
	for i, key := range keys {
		store(t, db, fork, key, acc.New(uint64(i+count), 0, acc.Pubkey{}))
	}
}

func checkAccounts(t *testing.T, db *AccountsDB, keys []acc.Pubkey, fork acc.Fork, count int) {
	for i, key := range keys {
		account, f := load(t, db, acc.NewAncestors([2]uint64{fork, 0}), key)
		assert.Equal(t, acc.New(uint64(i+count), 0, acc.Pubkey{}), account)
		assert.Equal(t, fork, f)
	}
}

func checkStorage(t *testing.T, db *AccountsDB, fork acc.Fork, count int) {
	stats := db.SegmentStats(fork)
	require.Len(t, stats, 1)
	var total int
	for _, s := range stats {
		assert.Equal(t, StatusAvailable, s.Status)
		total += s.Count
	}
	assert.Equal(t, count, total)
}

func TestNewNoPaths(t *testing.T) {
	_, err := New(&Options{})
	assert.ErrorIs(t, err, ErrNoPaths)
}

func TestAddRoot(t *testing.T) {
	db := newTestDB(t, 0)
	key := acc.Pubkey{}
	account0 := acc.New(1, 0, key)

	store(t, db, 0, key, account0)
	db.AddRoot(0)

	account, fork := load(t, db, acc.NewAncestors([2]uint64{1, 1}), key)
	assert.Equal(t, account0, account)
	assert.Equal(t, acc.Fork(0), fork)
}

func TestLatestAncestor(t *testing.T) {
	db := newTestDB(t, 0)
	key := acc.Pubkey{}
	account0 := acc.New(1, 0, key)
	store(t, db, 0, key, account0)

	account1 := acc.New(0, 0, key)
	store(t, db, 1, key, account1)

	account, _ := load(t, db, acc.NewAncestors([2]uint64{1, 1}), key)
	assert.Equal(t, account1, account)

	account, _ = load(t, db, acc.NewAncestors([2]uint64{1, 1}, [2]uint64{0, 0}), key)
	assert.Equal(t, account1, account)
}

func TestLatestAncestorWithRoot(t *testing.T) {
	db := newTestDB(t, 0)
	key := acc.Pubkey{}
	account0 := acc.New(1, 0, key)
	store(t, db, 0, key, account0)

	account1 := acc.New(0, 0, key)
	store(t, db, 1, key, account1)
	db.AddRoot(0)

	account, fork := load(t, db, acc.NewAncestors([2]uint64{1, 1}), key)
	assert.Equal(t, account1, account)
	assert.Equal(t, acc.Fork(1), fork)

	account, fork = load(t, db, acc.NewAncestors([2]uint64{1, 1}, [2]uint64{0, 0}), key)
	assert.Equal(t, account1, account)
	assert.Equal(t, acc.Fork(1), fork)
}

func TestRootOneFork(t *testing.T) {
	db := newTestDB(t, 0)
	key := acc.Pubkey{}
	account0 := acc.New(1, 0, key)

	// root0 holds 1 lamport, fork1 overrides it with 0, fork2 inherits root0
	store(t, db, 0, key, account0)
	account1 := acc.New(0, 0, key)
	store(t, db, 1, key, account1)

	account, _ := load(t, db, acc.NewAncestors([2]uint64{0, 0}, [2]uint64{1, 1}), key)
	assert.Equal(t, account1, account)

	account, _ = load(t, db, acc.NewAncestors([2]uint64{0, 0}, [2]uint64{2, 2}), key)
	assert.Equal(t, account0, account)

	db.AddRoot(0)

	account, fork := load(t, db, acc.NewAncestors([2]uint64{1, 1}), key)
	assert.Equal(t, account1, account)
	assert.Equal(t, acc.Fork(1), fork)

	account, fork = load(t, db, acc.NewAncestors([2]uint64{2, 2}), key)
	assert.Equal(t, account0, account)
	assert.Equal(t, acc.Fork(0), fork)
}

func TestSiblingForksIsolated(t *testing.T) {
	db := newTestDB(t, 0)
	key := acc.NewRandPubkey()

	store(t, db, 1, key, acc.New(10, 0, acc.Pubkey{}))
	store(t, db, 2, key, acc.New(20, 0, acc.Pubkey{}))

	account, fork := load(t, db, acc.NewAncestors([2]uint64{1, 0}), key)
	assert.Equal(t, uint64(10), account.Lamports)
	assert.Equal(t, acc.Fork(1), fork)

	account, fork = load(t, db, acc.NewAncestors([2]uint64{2, 0}), key)
	assert.Equal(t, uint64(20), account.Lamports)
	assert.Equal(t, acc.Fork(2), fork)

	account, _ = load(t, db, acc.NewAncestors([2]uint64{3, 0}), key)
	assert.Nil(t, account)
}

func TestAddRootMany(t *testing.T) {
	db := newTestDB(t, 0)
	keys := createAccounts(t, db, 0, 100, 0)

	for range 100 {
		idx := rand.IntN(len(keys))
		account, fork := load(t, db, acc.NewAncestors([2]uint64{0, 0}), keys[idx])
		assert.Equal(t, acc.New(uint64(idx+1), 0, acc.Pubkey{}), account)
		assert.Equal(t, acc.Fork(0), fork)
	}

	db.AddRoot(0)

	for range 100 {
		idx := rand.IntN(len(keys))
		expected := acc.New(uint64(idx+1), 0, acc.Pubkey{})
		account0, _ := load(t, db, acc.NewAncestors([2]uint64{0, 0}), keys[idx])
		account1, _ := load(t, db, acc.NewAncestors([2]uint64{1, 1}), keys[idx])
		assert.Equal(t, expected, account0)
		assert.Equal(t, expected, account1)
	}
}

func TestCountStores(t *testing.T) {
	const size = 4096
	db := newTestDB(t, size)

	keys := createAccounts(t, db, 0, 2, size/3)
	checkStorage(t, db, 0, 2)

	key := acc.NewRandPubkey()
	account := acc.New(1, size/3, key)
	store(t, db, 1, key, account)
	store(t, db, 1, keys[0], account)

	check := func() {
		stats0 := db.SegmentStats(0)
		stats1 := db.SegmentStats(1)
		require.Len(t, stats0, 1)
		require.Len(t, stats1, 1)
		assert.Equal(t, uint64(0), stats0[0].ID)
		assert.Equal(t, 2, stats0[0].Count)
		assert.Equal(t, uint64(1), stats1[0].ID)
		assert.Equal(t, 2, stats1[0].Count)
	}
	check()

	// rooting alone does not reclaim anything
	db.AddRoot(1)
	check()
}

func TestAccountsUnsquashed(t *testing.T) {
	db := newTestDB(t, 0)
	key := acc.Pubkey{}

	account0 := acc.New(1, 0, key)
	store(t, db, 0, key, account0)

	account1 := acc.New(0, 0, key)
	store(t, db, 1, key, account1)

	account, fork := load(t, db, acc.NewAncestors([2]uint64{0, 0}, [2]uint64{1, 1}), key)
	assert.Equal(t, account1, account)
	assert.Equal(t, acc.Fork(1), fork)

	account, fork = load(t, db, acc.NewAncestors([2]uint64{0, 0}), key)
	assert.Equal(t, account0, account)
	assert.Equal(t, acc.Fork(0), fork)
}

func TestAccountOne(t *testing.T) {
	db := newTestDB(t, 0)
	keys := createAccounts(t, db, 0, 1, 0)

	account, fork := load(t, db, acc.NewAncestors([2]uint64{0, 0}), keys[0])
	assert.Equal(t, acc.New(1, 0, acc.Pubkey{}), account)
	assert.Equal(t, acc.Fork(0), fork)
}

func TestAccountMany(t *testing.T) {
	db := newTestDB(t, 0, t.TempDir(), t.TempDir())
	keys := createAccounts(t, db, 0, 100, 0)
	checkAccounts(t, db, keys, 0, 1)
}

func TestAccountUpdate(t *testing.T) {
	db := newTestDB(t, 0)
	keys := createAccounts(t, db, 0, 100, 0)

	ancestors := acc.NewAncestors([2]uint64{0, 0})
	for range 1000 {
		key := keys[rand.IntN(len(keys))]
		account, _ := load(t, db, ancestors, key)
		require.NotNil(t, account)

		account.Lamports++
		store(t, db, 0, key, account)

		got, _ := load(t, db, ancestors, key)
		assert.Equal(t, account, got)
	}
	checkStorage(t, db, 0, 100)
}

func TestAccountGrowMany(t *testing.T) {
	const size = 4096
	db := newTestDB(t, size, t.TempDir(), t.TempDir())

	var keys []acc.Pubkey
	for i := range 9 {
		key := acc.NewRandPubkey()
		store(t, db, 0, key, acc.New(uint64(i+1), size/4, key))
		keys = append(keys, key)
	}
	for i, key := range keys {
		account, _ := load(t, db, acc.NewAncestors([2]uint64{0, 0}), key)
		assert.Equal(t, uint64(i+1), account.Lamports)
	}
	assert.GreaterOrEqual(t, len(db.SegmentStats(0)), 2)
}

func TestAccountGrow(t *testing.T) {
	const size = 4096
	db := newTestDB(t, size)
	ancestors := acc.NewAncestors([2]uint64{0, 0})

	key1 := acc.NewRandPubkey()
	account1 := acc.New(1, size/2, key1)
	store(t, db, 0, key1, account1)

	stats := db.SegmentStats(0)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, StatusAvailable, stats[0].Status)

	key2 := acc.NewRandPubkey()
	account2 := acc.New(1, size/2, key2)
	store(t, db, 0, key2, account2)

	stats = db.SegmentStats(0)
	require.Len(t, stats, 2)
	assert.Equal(t, 1, stats[0].Count)
	assert.Equal(t, StatusFull, stats[0].Status)
	assert.Equal(t, 1, stats[1].Count)
	assert.Equal(t, StatusAvailable, stats[1].Status)

	account, _ := load(t, db, ancestors, key1)
	assert.Equal(t, account1, account)
	account, _ = load(t, db, ancestors, key2)
	assert.Equal(t, account2, account)

	// three segments are enough for any number of rewrites
	counts := [2]int{0, 1}
	for i := range 25 {
		index := i % 2
		store(t, db, 0, key1, account1)

		stats = db.SegmentStats(0)
		require.Len(t, stats, 3)
		assert.Equal(t, counts[index], stats[0].Count)
		assert.Equal(t, StatusAvailable, stats[0].Status)
		assert.Equal(t, 1, stats[1].Count)
		assert.Equal(t, StatusFull, stats[1].Status)
		assert.Equal(t, counts[index^1], stats[2].Count)
		assert.Equal(t, StatusAvailable, stats[2].Status)

		account, _ = load(t, db, ancestors, key1)
		assert.Equal(t, account1, account)
		account, _ = load(t, db, ancestors, key2)
		assert.Equal(t, account2, account)
	}
}

func TestStoreRecordTooLarge(t *testing.T) {
	const size = 4096
	db := newTestDB(t, size)
	key := acc.NewRandPubkey()

	err := db.Store(0, map[acc.Pubkey]*acc.Account{key: acc.New(1, size, key)})
	assert.ErrorIs(t, err, ErrRecordTooLarge)
	assert.Empty(t, db.Forks())
	assert.Equal(t, uint64(0), db.WriteVersion())

	// zero lamports drop the data, so the record fits
	require.NoError(t, db.Store(0, map[acc.Pubkey]*acc.Account{key: acc.New(0, size, key)}))
	account, _ := load(t, db, acc.NewAncestors([2]uint64{0, 0}), key)
	assert.Equal(t, acc.New(0, 0, key), account)
}

func TestStoreBatchSpillsOverSegments(t *testing.T) {
	size := appendvec.RecordSize(0) * 4
	db := newTestDB(t, size)

	batch := make(map[acc.Pubkey]*acc.Account)
	for i := range 10 {
		batch[acc.NewRandPubkey()] = acc.New(uint64(i+1), 0, acc.Pubkey{})
	}
	require.NoError(t, db.Store(0, batch))

	stats := db.SegmentStats(0)
	require.Len(t, stats, 3)
	var total int
	for _, s := range stats {
		total += s.Count
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, uint64(10), db.WriteVersion())

	for key, expected := range batch {
		account, fork := load(t, db, acc.NewAncestors([2]uint64{0, 0}), key)
		assert.Equal(t, expected, account)
		assert.Equal(t, acc.Fork(0), fork)
	}
}

func TestPurgeForkNotRoot(t *testing.T) {
	db := newTestDB(t, 0)
	keys := createAccounts(t, db, 0, 1, 0)
	ancestors := acc.NewAncestors([2]uint64{0, 0})

	account, _ := load(t, db, ancestors, keys[0])
	assert.NotNil(t, account)
	assert.True(t, db.HasAccounts(0))

	segDir := filepath.Join(db.paths[0], "0.0")
	require.DirExists(t, segDir)
	db.PurgeFork(0)

	account, _ = load(t, db, ancestors, keys[0])
	assert.Nil(t, account)
	assert.False(t, db.HasAccounts(0))
	assert.NoDirExists(t, segDir)
}

func TestPurgeForkAfterRoot(t *testing.T) {
	db := newTestDB(t, 0)
	keys := createAccounts(t, db, 0, 1, 0)
	ancestors := acc.NewAncestors([2]uint64{0, 0})

	db.AddRoot(0)
	db.PurgeFork(0)

	account, _ := load(t, db, ancestors, keys[0])
	assert.NotNil(t, account)
}

func TestLazyGCFork(t *testing.T) {
	db := newTestDB(t, 0)
	key := acc.NewRandPubkey()
	account := acc.New(1, 0, acc.Pubkey{})

	store(t, db, 0, key, account)

	// fork 0 is behind the root without being one
	db.AddRoot(1)
	assert.True(t, db.index.IsPurged(0))

	// collection is lazy
	assert.Len(t, db.SegmentStats(0), 1)

	// the next store collects it
	store(t, db, 1, key, account)
	assert.Empty(t, db.SegmentStats(0))
	assert.Equal(t, []acc.Fork{1}, db.Forks())

	got, fork := load(t, db, acc.NewAncestors([2]uint64{1, 1}), key)
	assert.Equal(t, account, got)
	assert.Equal(t, acc.Fork(1), fork)
}

func TestSiblingOvertakenByRoot(t *testing.T) {
	db := newTestDB(t, 0)
	key := acc.NewRandPubkey()

	store(t, db, 0, key, acc.New(1, 0, acc.Pubkey{}))
	db.AddRoot(0)

	// fork 1 and 2 are siblings, fork 2 gets rooted
	store(t, db, 1, key, acc.New(2, 0, acc.Pubkey{}))
	store(t, db, 2, key, acc.New(3, 0, acc.Pubkey{}))
	db.AddRoot(2)

	store(t, db, 3, key, acc.New(4, 0, acc.Pubkey{}))
	assert.Equal(t, []acc.Fork{0, 2, 3}, db.Forks())

	account, fork := load(t, db, acc.NewAncestors([2]uint64{1, 1}), key)
	assert.Equal(t, uint64(3), account.Lamports)
	assert.Equal(t, acc.Fork(2), fork)
}

func TestStoreConcurrent(t *testing.T) {
	const fork = 42
	db := newTestDB(t, appendvec.RecordSize(0))
	db.AddRoot(fork)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := acc.NewRandPubkey()
			account := acc.New(1, 0, key)
			for range 200 {
				account.Lamports = rand.Uint64N(98) + 1
				if !assert.NoError(t, db.Store(fork, map[acc.Pubkey]*acc.Account{key: account})) {
					return
				}
				got, f, err := db.Load(acc.NewAncestors(), key)
				if !assert.NoError(t, err) || !assert.NotNil(t, got) {
					return
				}
				assert.Equal(t, acc.Fork(fork), f)
				assert.Equal(t, account.Lamports, got.Lamports)
			}
		}()
	}
	wg.Wait()

	var total int
	for _, s := range db.SegmentStats(fork) {
		total += s.Count
	}
	assert.Equal(t, 4, total)
}

func TestRecordCache(t *testing.T) {
	db, err := New(&Options{Paths: []string{t.TempDir()}, RecordCacheSizeMB: 1})
	require.NoError(t, err)
	defer db.Close()

	key := acc.NewRandPubkey()
	account := &acc.Account{Lamports: 5, Owner: key, Executable: true, Data: []byte("hello")}
	store(t, db, 0, key, account)

	ancestors := acc.NewAncestors([2]uint64{0, 0})
	for range 3 {
		got, _ := load(t, db, ancestors, key)
		assert.Equal(t, account, got)
	}
	_, hit, miss := db.cache.stats.Stats()
	assert.Equal(t, int64(2), hit)
	assert.Equal(t, int64(1), miss)
}

func TestStoreNilAccount(t *testing.T) {
	db := newTestDB(t, 0)
	version := db.WriteVersion()

	key := acc.NewRandPubkey()
	err := db.Store(0, map[acc.Pubkey]*acc.Account{
		acc.NewRandPubkey(): acc.New(1, 0, acc.Pubkey{}),
		key:                 nil,
	})
	assert.ErrorIs(t, err, ErrNilAccount)
	assert.Equal(t, version, db.WriteVersion())
	assert.Empty(t, db.Forks())
}

func TestStoreFailureKeepsCounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts")
	db := newTestDB(t, 1024, path)

	key := acc.NewRandPubkey()
	store(t, db, 0, key, acc.New(1, 100, acc.Pubkey{}))

	// no further segment directory can be created
	require.NoError(t, os.RemoveAll(path))
	require.NoError(t, os.WriteFile(path, nil, 0600))

	batch := make(map[acc.Pubkey]*acc.Account)
	for range 8 {
		batch[acc.NewRandPubkey()] = acc.New(2, 100, acc.Pubkey{})
	}
	require.Error(t, db.Store(0, batch))

	stats := db.SegmentStats(0)
	require.Len(t, stats, 1)
	assert.Equal(t, 1, stats[0].Count)

	ancestors := acc.NewAncestors([2]uint64{0, 0})
	got, _ := load(t, db, ancestors, key)
	require.NotNil(t, got)
	assert.Equal(t, uint64(1), got.Lamports)
	for k := range batch {
		got, _ := load(t, db, ancestors, k)
		assert.Nil(t, got)
	}
}

func TestParsePaths(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParsePaths("a, b,"))
	assert.Nil(t, ParsePaths(""))
}
