// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package accountsdb is a fork aware, multi-version account store.
//
// Account records are appended to fixed capacity segments owned by a single
// fork. An in-memory index resolves, for a given ancestry, which fork's
// version of an account is visible. Storage of forks that fall behind the
// last root is reclaimed lazily by subsequent stores.
//
// The index and the segment map are guarded by two independent locks, both
// held only briefly. Appends run outside of them, serialized per segment by
// the segment status.
package accountsdb

import (
	"maps"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/accountsindex"
	"github.com/vechain/accountsdb/appendvec"
)

var logger = log.New("pkg", "accountsdb")

var (
	// ErrNoPaths is returned when no storage path is configured.
	ErrNoPaths = errors.New("no storage path")
	// ErrRecordTooLarge is returned when a single record exceeds the segment capacity.
	ErrRecordTooLarge = errors.New("record exceeds segment capacity")
	// ErrNilAccount is returned when a batch maps a key to a nil account.
	ErrNilAccount = errors.New("nil account")
)

// AccountInfo points to one stored copy of an account.
type AccountInfo struct {
	ID       uint64 // segment id
	Offset   uint64
	Lamports uint64
}

type reclaim = accountsindex.Entry[AccountInfo]

// AccountsDB stores accounts per fork.
type AccountsDB struct {
	indexLock sync.RWMutex
	index     *accountsindex.AccountsIndex[AccountInfo]

	storageLock sync.RWMutex
	storage     *storage

	nextID       atomic.Uint64
	writeVersion atomic.Uint64

	paths       []string
	segmentSize uint64
	scanWorkers int
	cache       *recordCache
}

// New creates an empty accounts db over the given options.
func New(options *Options) (*AccountsDB, error) {
	opts := options.withDefaults()
	if len(opts.Paths) == 0 {
		return nil, ErrNoPaths
	}
	for _, p := range opts.Paths {
		if err := os.MkdirAll(p, 0700); err != nil {
			return nil, errors.Wrapf(err, "create storage path %v", p)
		}
	}

	return &AccountsDB{
		index:       accountsindex.New[AccountInfo](),
		storage:     newStorage(),
		paths:       slices.Clone(opts.Paths),
		segmentSize: opts.SegmentSize,
		scanWorkers: opts.ScanWorkers,
		cache:       newRecordCache(opts.RecordCacheSizeMB),
	}, nil
}

// Store writes accounts under fork. Versions superseded by the write are
// reclaimed, and forks left empty behind the last root are purged.
//
// Nothing is indexed when Store fails. Records appended before an I/O
// failure stay in their segments as garbage but are not counted as live.
func (db *AccountsDB) Store(fork acc.Fork, accounts map[acc.Pubkey]*acc.Account) error {
	startTime := time.Now()

	keys := slices.SortedFunc(maps.Keys(accounts), acc.Pubkey.Compare)

	records := make([]appendvec.Record, len(keys))
	for i, key := range keys {
		account := accounts[key]
		if account == nil {
			return errors.Wrapf(ErrNilAccount, "account %v", key)
		}
		var dataLen uint64
		if account.Lamports != 0 {
			dataLen = uint64(len(account.Data))
		}
		if size := appendvec.RecordSize(dataLen); size > db.segmentSize {
			return errors.Wrapf(ErrRecordTooLarge, "account %v: %d > %d", key, size, db.segmentSize)
		}
		records[i] = appendvec.Record{
			Meta:    appendvec.StoredMeta{Pubkey: key, DataLen: dataLen},
			Account: account,
		}
	}
	for i := range records {
		records[i].Meta.WriteVersion = db.writeVersion.Add(1) - 1
	}

	infos, err := db.storeAccounts(fork, records)
	if err != nil {
		return err
	}

	reclaims, lastRoot := db.updateIndex(fork, keys, infos)
	logger.Trace("reclaim", "fork", fork, "n", len(reclaims))

	deadForks := db.removeDeadAccounts(reclaims)
	logger.Trace("dead forks", "fork", fork, "n", len(deadForks))

	purge := db.cleanupDeadForks(deadForks, lastRoot)
	logger.Trace("purge forks", "fork", fork, "n", len(purge))

	for _, dead := range purge {
		db.PurgeFork(dead)
	}

	metricStoredAccounts().Add(int64(len(records)))
	metricReclaims().Add(int64(len(reclaims)))
	metricStoreDuration().Observe(time.Since(startTime).Milliseconds())
	return nil
}

// storeAccounts appends records to the fork's segments, spilling over as
// many segments as needed.
func (db *AccountsDB) storeAccounts(fork acc.Fork, records []appendvec.Record) ([]AccountInfo, error) {
	var (
		infos = make([]AccountInfo, 0, len(records))
		owner = make([]*StorageEntry, 0, len(records))
	)
	// unindexed records must not keep their segments alive
	rollback := func() {
		for _, entry := range owner {
			entry.removeAccount()
		}
	}
	for len(infos) < len(records) {
		entry, err := db.findStorageCandidate(fork)
		if err != nil {
			rollback()
			return nil, err
		}
		offsets, err := entry.vec.Append(records[len(infos):])
		if err != nil {
			entry.SetStatus(StatusAvailable)
			rollback()
			return nil, errors.Wrapf(err, "append to segment %d", entry.id)
		}
		if len(offsets) == 0 {
			entry.SetStatus(StatusFull)
			continue
		}
		for _, offset := range offsets {
			entry.addAccount()
			owner = append(owner, entry)
			infos = append(infos, AccountInfo{
				ID:       entry.id,
				Offset:   offset,
				Lamports: records[len(infos)].Account.Lamports,
			})
		}
		entry.SetStatus(StatusAvailable)
	}
	return infos, nil
}

// findStorageCandidate claims an available segment of fork, creating one if
// every existing segment is busy or full.
func (db *AccountsDB) findStorageCandidate(fork acc.Fork) (*StorageEntry, error) {
	db.storageLock.RLock()
	if fs := db.storage.get(fork); fs != nil && len(fs.entries) > 0 {
		entries := make([]*StorageEntry, 0, len(fs.entries))
		for _, e := range fs.entries {
			entries = append(entries, e)
		}
		// start at a random segment to spread concurrent writers
		start := rand.IntN(len(entries))
		for i := range entries {
			if e := entries[(start+i)%len(entries)]; e.tryAvailable() {
				db.storageLock.RUnlock()
				return e, nil
			}
		}
	}
	db.storageLock.RUnlock()

	path := db.paths[rand.IntN(len(db.paths))]
	id := db.nextID.Add(1) - 1
	entry, err := newStorageEntry(path, fork, id, db.segmentSize)
	if err != nil {
		return nil, errors.Wrapf(err, "create segment %d.%d", fork, id)
	}
	entry.tryAvailable()

	db.storageLock.Lock()
	db.storage.getOrCreate(fork).entries[id] = entry
	db.storageLock.Unlock()

	metricSegmentsCreated().Add(1)
	logger.Debug("segment created", "fork", fork, "segment", id, "path", path)
	return entry, nil
}

func (db *AccountsDB) updateIndex(fork acc.Fork, keys []acc.Pubkey, infos []AccountInfo) ([]reclaim, acc.Fork) {
	reclaims := make([]reclaim, 0, len(infos)*2)

	db.indexLock.Lock()
	defer db.indexLock.Unlock()

	for i, key := range keys {
		reclaims = db.index.Insert(fork, key, infos[i], reclaims)
	}
	return reclaims, db.index.LastRoot()
}

// removeDeadAccounts releases reclaimed records and returns the forks whose
// segments all dropped to zero live records.
func (db *AccountsDB) removeDeadAccounts(reclaims []reclaim) map[acc.Fork]struct{} {
	db.storageLock.RLock()
	defer db.storageLock.RUnlock()

	deadForks := make(map[acc.Fork]struct{})
	for _, r := range reclaims {
		fs := db.storage.get(r.Fork)
		if fs == nil {
			continue
		}
		entry, ok := fs.entries[r.Info.ID]
		if !ok {
			continue
		}
		if entry.fork != r.Fork {
			panic("accounts index corrupted: segment belongs to another fork")
		}
		if entry.removeAccount() == 0 {
			deadForks[r.Fork] = struct{}{}
		}
	}

	for fork := range deadForks {
		if fs := db.storage.get(fork); fs != nil {
			for _, entry := range fs.entries {
				if entry.Count() != 0 {
					delete(deadForks, fork)
					break
				}
			}
		}
	}
	return deadForks
}

// cleanupDeadForks keeps the dead forks behind the last root and drops them
// from the root set.
func (db *AccountsDB) cleanupDeadForks(deadForks map[acc.Fork]struct{}, lastRoot acc.Fork) []acc.Fork {
	var forks []acc.Fork
	for fork := range deadForks {
		if fork < lastRoot {
			forks = append(forks, fork)
		}
	}
	if len(forks) == 0 {
		return nil
	}
	slices.Sort(forks)

	db.indexLock.Lock()
	defer db.indexLock.Unlock()
	for _, fork := range forks {
		db.index.CleanupDeadFork(fork)
	}
	return forks
}

// Load returns the version of key visible from ancestors and the fork it
// was stored in. A nil account means key is not visible.
func (db *AccountsDB) Load(ancestors acc.Ancestors, key acc.Pubkey) (*acc.Account, acc.Fork, error) {
	db.indexLock.RLock()
	defer db.indexLock.RUnlock()

	info, fork, ok := db.index.Get(key, ancestors)
	if !ok {
		return nil, 0, nil
	}

	db.storageLock.RLock()
	defer db.storageLock.RUnlock()

	fs := db.storage.get(fork)
	if fs == nil {
		return nil, 0, nil
	}
	entry, ok := fs.entries[info.ID]
	if !ok {
		return nil, 0, nil
	}

	generation := entry.vec.Generation()
	if account := db.cache.get(fork, info.ID, generation, info.Offset); account != nil {
		return account, fork, nil
	}
	sa, _, err := entry.vec.Get(info.Offset)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "read record %d:%d", info.ID, info.Offset)
	}
	account := sa.CloneAccount()
	db.cache.add(fork, info.ID, generation, info.Offset, account)
	return account, fork, nil
}

// AddRoot marks fork as permanently retained. Roots must increase.
func (db *AccountsDB) AddRoot(fork acc.Fork) {
	db.indexLock.Lock()
	defer db.indexLock.Unlock()
	db.index.AddRoot(fork)
}

// PurgeFork removes every segment of fork unless it is a root.
func (db *AccountsDB) PurgeFork(fork acc.Fork) {
	db.indexLock.RLock()
	isRoot := db.index.IsRoot(fork)
	db.indexLock.RUnlock()
	if isRoot {
		return
	}

	db.storageLock.Lock()
	fs := db.storage.remove(fork)
	db.storageLock.Unlock()
	if fs == nil {
		return
	}

	for _, entry := range fs.entries {
		if err := entry.vec.Remove(); err != nil {
			logger.Warn("failed to remove segment", "fork", fork, "segment", entry.id, "err", err)
		}
	}
	metricPurgedForks().Add(1)
	logger.Debug("fork purged", "fork", fork, "segments", len(fs.entries))
}

// HasAccounts returns whether fork holds any live record.
func (db *AccountsDB) HasAccounts(fork acc.Fork) bool {
	db.storageLock.RLock()
	defer db.storageLock.RUnlock()

	if fs := db.storage.get(fork); fs != nil {
		for _, entry := range fs.entries {
			if entry.Count() > 0 {
				return true
			}
		}
	}
	return false
}

// WriteVersion returns the next write version to be stamped.
func (db *AccountsDB) WriteVersion() uint64 {
	return db.writeVersion.Load()
}

// LastRoot returns the most recent root.
func (db *AccountsDB) LastRoot() acc.Fork {
	db.indexLock.RLock()
	defer db.indexLock.RUnlock()
	return db.index.LastRoot()
}

// IsRoot returns whether fork is a root.
func (db *AccountsDB) IsRoot(fork acc.Fork) bool {
	db.indexLock.RLock()
	defer db.indexLock.RUnlock()
	return db.index.IsRoot(fork)
}

// Forks returns the forks holding storage, ascending.
func (db *AccountsDB) Forks() []acc.Fork {
	db.storageLock.RLock()
	defer db.storageLock.RUnlock()
	return db.storage.forks()
}

// SegmentStat describes one segment.
type SegmentStat struct {
	ID       uint64
	Fork     acc.Fork
	Count    int
	Status   Status
	Len      uint64
	Capacity uint64
}

// SegmentStats returns the segments of fork ordered by id.
func (db *AccountsDB) SegmentStats(fork acc.Fork) []SegmentStat {
	db.storageLock.RLock()
	defer db.storageLock.RUnlock()

	fs := db.storage.get(fork)
	if fs == nil {
		return nil
	}
	var stats []SegmentStat
	for _, entry := range fs.sorted() {
		count, status := entry.countAndStatus()
		stats = append(stats, SegmentStat{
			ID:       entry.id,
			Fork:     entry.fork,
			Count:    count,
			Status:   status,
			Len:      entry.vec.Len(),
			Capacity: entry.vec.Capacity(),
		})
	}
	return stats
}

// Close releases every segment file. The db must not be used afterwards.
func (db *AccountsDB) Close() error {
	db.storageLock.Lock()
	defer db.storageLock.Unlock()

	var firstErr error
	db.storage.each(func(fs *forkStorage) bool {
		for _, entry := range fs.entries {
			if err := entry.vec.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return true
	})
	db.cache.log(true)
	return firstErr
}
