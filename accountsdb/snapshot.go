// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/appendvec"
)

// maxSnapshotLen bounds the length prefix of a snapshot blob.
const maxSnapshotLen = 1 << 40

// segmentSnapshot is the serialized form of a segment.
type segmentSnapshot struct {
	ID       uint64
	Fork     uint64
	Count    uint64
	Status   uint64
	FileSize uint64
	Data     []byte
}

// Serialize encodes every segment and the write version into a blob:
// an 8 byte little endian length, the rlp encoded segments, then the 8 byte
// write version. The length counts everything after itself.
func (db *AccountsDB) Serialize() ([]byte, error) {
	db.storageLock.RLock()
	defer db.storageLock.RUnlock()

	var (
		segs []*segmentSnapshot
		err  error
	)
	db.storage.each(func(fs *forkStorage) bool {
		for _, entry := range fs.sorted() {
			count, status := entry.countAndStatus()
			var data []byte
			if data, err = entry.vec.Bytes(); err != nil {
				err = errors.Wrapf(err, "read segment %d.%d", entry.fork, entry.id)
				return false
			}
			segs = append(segs, &segmentSnapshot{
				ID:       entry.id,
				Fork:     entry.fork,
				Count:    uint64(count),
				Status:   uint64(status),
				FileSize: entry.vec.Capacity(),
				Data:     data,
			})
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	enc, err := rlp.EncodeToBytes(segs)
	if err != nil {
		return nil, errors.Wrap(err, "encode storage map")
	}

	blob := make([]byte, 0, 8+len(enc)+8)
	blob = binary.LittleEndian.AppendUint64(blob, uint64(len(enc)+8))
	blob = append(blob, enc...)
	blob = binary.LittleEndian.AppendUint64(blob, db.writeVersion.Load())
	return blob, nil
}

// UpdateFromStream merges a serialized blob into the db and rebuilds the
// index from storage. Segments of fork 0 are merged one by one, any other
// fork replaces the existing storage of that fork.
//
// It is meant to run before any store traffic.
func (db *AccountsDB) UpdateFromStream(r io.Reader) error {
	startTime := time.Now()

	var lenBuf [8]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return ioError(err, "read snapshot length")
	}
	n := binary.LittleEndian.Uint64(lenBuf[:])
	if n < 8 || n > maxSnapshotLen {
		return ioError(errors.Errorf("invalid length %d", n), "read snapshot length")
	}
	// the buffer grows with what the stream actually holds
	body, err := io.ReadAll(io.LimitReader(r, int64(n)))
	if err != nil {
		return ioError(err, "read snapshot body")
	}
	if uint64(len(body)) != n {
		return ioError(io.ErrUnexpectedEOF, "read snapshot body")
	}

	var segs []*segmentSnapshot
	if err := rlp.DecodeBytes(body[:n-8], &segs); err != nil {
		return ioError(err, "decode storage map")
	}
	version := binary.LittleEndian.Uint64(body[n-8:])

	entries, err := db.restoreEntries(segs)
	if err != nil {
		return ioError(err, "restore segments")
	}

	loaded := make(map[acc.Fork]*forkStorage)
	var maxID uint64
	for _, entry := range entries {
		fs := loaded[entry.fork]
		if fs == nil {
			fs = &forkStorage{fork: entry.fork, entries: make(map[uint64]*StorageEntry)}
			loaded[entry.fork] = fs
		}
		fs.entries[entry.id] = entry
		maxID = max(maxID, entry.id)
	}

	db.storageLock.Lock()
	var displaced []*StorageEntry
	for fork, fs := range loaded {
		if fork == 0 {
			target := db.storage.getOrCreate(0)
			for id, entry := range fs.entries {
				if old, ok := target.entries[id]; ok {
					displaced = append(displaced, old)
				}
				target.entries[id] = entry
			}
			continue
		}
		if old := db.storage.replace(fs); old != nil {
			for _, entry := range old.entries {
				displaced = append(displaced, entry)
			}
		}
	}
	db.storageLock.Unlock()
	db.cache.invalidate()
	closeDisplaced(displaced, entries)

	if len(entries) > 0 {
		// never hand out an id in use
		for next := db.nextID.Load(); next <= maxID; next = db.nextID.Load() {
			if db.nextID.CompareAndSwap(next, maxID+1) {
				break
			}
		}
	}
	db.writeVersion.Add(version)

	if err := db.GenerateIndex(); err != nil {
		return ioError(err, "generate index")
	}
	logger.Info("restored from snapshot",
		"segments", len(entries),
		"forks", len(loaded),
		"writeVersion", db.writeVersion.Load(),
		"elapsed", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// restoreEntries materializes the segment files in parallel.
func (db *AccountsDB) restoreEntries(segs []*segmentSnapshot) ([]*StorageEntry, error) {
	entries := make([]*StorageEntry, len(segs))

	var g errgroup.Group
	g.SetLimit(db.scanWorkers)
	for i, seg := range segs {
		g.Go(func() error {
			size := max(seg.FileSize, uint64(len(seg.Data)))
			path := segmentPath(db.paths[i%len(db.paths)], seg.Fork, seg.ID)
			vec, err := appendvec.Restore(path, size, seg.Data)
			if err != nil {
				return errors.Wrapf(err, "segment %d.%d", seg.Fork, seg.ID)
			}
			status := Status(seg.Status)
			if status != StatusFull {
				status = StatusAvailable
			}
			entries[i] = &StorageEntry{
				id:     seg.ID,
				fork:   seg.Fork,
				vec:    vec,
				count:  int(seg.Count),
				status: status,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, entry := range entries {
			if entry != nil {
				entry.vec.Remove()
			}
		}
		return nil, err
	}
	return entries, nil
}

// closeDisplaced releases segments replaced by a restore. Their files are
// removed unless a restored segment reuses the same file.
func closeDisplaced(displaced, restored []*StorageEntry) {
	inUse := make(map[string]struct{}, len(restored))
	for _, entry := range restored {
		inUse[entry.vec.Path()] = struct{}{}
	}
	for _, entry := range displaced {
		if _, ok := inUse[entry.vec.Path()]; ok {
			entry.vec.Close()
		} else {
			entry.vec.Remove()
		}
	}
}

func ioError(err error, step string) error {
	logger.Warn("restore failed", "step", step, "err", err)
	return errors.Wrap(err, step)
}

type versionedInfo struct {
	writeVersion uint64
	info         AccountInfo
}

// GenerateIndex rebuilds the index by scanning the storage of every fork in
// ascending order. When a key has several copies within a fork the highest
// write version wins. Every fork holding records becomes a root.
//
// It must not run concurrently with stores.
func (db *AccountsDB) GenerateIndex() error {
	startTime := time.Now()
	forks := db.Forks()

	db.indexLock.Lock()
	defer db.indexLock.Unlock()

	db.index.RestoreRoot(0)
	var total int
	for _, fork := range forks {
		accums, err := ScanAccountStorage(db, fork, func(sa *appendvec.StoredAccount, id uint64, accum *map[acc.Pubkey]versionedInfo) {
			if *accum == nil {
				*accum = make(map[acc.Pubkey]versionedInfo)
			}
			insertNewer(*accum, sa.Meta.Pubkey, versionedInfo{
				writeVersion: sa.Meta.WriteVersion,
				info: AccountInfo{
					ID:       id,
					Offset:   sa.Offset,
					Lamports: sa.Lamports,
				},
			})
		})
		if err != nil {
			return err
		}

		merged := make(map[acc.Pubkey]versionedInfo)
		for _, accum := range accums {
			for key, vi := range accum {
				insertNewer(merged, key, vi)
			}
		}
		if len(merged) == 0 {
			continue
		}
		db.index.RestoreRoot(fork)
		for key, vi := range merged {
			db.index.Insert(fork, key, vi.info, nil)
		}
		total += len(merged)
	}
	logger.Info("index generated", "forks", len(forks), "keys", total, "elapsed", time.Since(startTime).Round(time.Millisecond))
	return nil
}

// insertNewer keeps the entry with the higher write version.
func insertNewer(m map[acc.Pubkey]versionedInfo, key acc.Pubkey, vi versionedInfo) {
	if cur, ok := m[key]; ok && cur.writeVersion > vi.writeVersion {
		return
	}
	m[key] = vi
}
