// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package snapdb archives serialized accounts snapshots keyed by root fork.
package snapdb

import (
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/cache"
	"github.com/vechain/accountsdb/kv"
	"github.com/vechain/accountsdb/lvldb"
)

const (
	// number of decompressed blobs kept in memory
	blobCacheSize = 2

	snapshotBucket = kv.Bucket("s")
	configBucket   = kv.Bucket("c")
)

var (
	logger    = log.New("pkg", "snapdb")
	latestKey = []byte("latest")

	// ErrNotFound is returned when no snapshot is archived for the requested root.
	ErrNotFound = errors.New("snapshot not found")
)

// SnapDB stores snappy compressed snapshot blobs.
type SnapDB struct {
	db        *lvldb.LevelDB
	snapshots kv.Store
	config    kv.Store
	blobs     *cache.LRU[acc.Fork, []byte]
	lock      sync.Mutex
}

// Open opens or creates a persistent archive at path.
func Open(path string, opts lvldb.Options) (*SnapDB, error) {
	db, err := lvldb.New(path, opts)
	if err != nil {
		return nil, err
	}
	return newSnapDB(db), nil
}

// NewMem creates an in-memory archive.
func NewMem() (*SnapDB, error) {
	db, err := lvldb.NewMem()
	if err != nil {
		return nil, err
	}
	return newSnapDB(db), nil
}

func newSnapDB(db *lvldb.LevelDB) *SnapDB {
	blobs, _ := cache.NewLRU[acc.Fork, []byte](blobCacheSize)
	return &SnapDB{
		db:        db,
		snapshots: snapshotBucket.NewStore(db),
		config:    configBucket.NewStore(db),
		blobs:     blobs,
	}
}

func rootKey(root acc.Fork) []byte {
	return binary.BigEndian.AppendUint64(nil, root)
}

// Put archives the blob under root. The latest pointer advances when root is
// newer than the current latest.
func (s *SnapDB) Put(root acc.Fork, blob []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	latest, ok, err := s.latest()
	if err != nil {
		return err
	}

	bulk := s.db.Bulk()
	if err := bulk.Put(snapshotBucket.Key(rootKey(root)), snappy.Encode(nil, blob)); err != nil {
		return err
	}
	if !ok || root > latest {
		if err := bulk.Put(configBucket.Key(latestKey), rootKey(root)); err != nil {
			return err
		}
	}
	if err := bulk.Write(); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	s.blobs.Remove(root)
	logger.Debug("snapshot archived", "root", root, "size", len(blob))
	return nil
}

// Get returns the decompressed blob archived under root.
// The returned slice is shared and must not be modified.
func (s *SnapDB) Get(root acc.Fork) ([]byte, error) {
	return s.blobs.GetOrLoad(root, s.load)
}

func (s *SnapDB) load(root acc.Fork) ([]byte, error) {
	data, err := s.snapshots.Get(rootKey(root))
	if err != nil {
		if s.snapshots.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get snapshot")
	}
	blob, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, "decompress snapshot")
	}
	return blob, nil
}

// Latest returns the newest archived root.
func (s *SnapDB) Latest() (acc.Fork, bool, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.latest()
}

func (s *SnapDB) latest() (acc.Fork, bool, error) {
	data, err := s.config.Get(latestKey)
	if err != nil {
		if s.config.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, "get latest root")
	}
	if len(data) != 8 {
		return 0, false, errors.Errorf("invalid latest root length %d", len(data))
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// Info describes an archived snapshot.
type Info struct {
	Root acc.Fork
	Size int // compressed size
}

// Roots returns the archived snapshots in ascending root order.
func (s *SnapDB) Roots() ([]Info, error) {
	it := s.snapshots.Iterate(kv.Range{})
	defer it.Release()

	var infos []Info
	for it.Next() {
		if len(it.Key()) != 8 {
			continue
		}
		infos = append(infos, Info{
			Root: binary.BigEndian.Uint64(it.Key()),
			Size: len(it.Value()),
		})
	}
	if err := it.Error(); err != nil {
		return nil, errors.Wrap(err, "iterate snapshots")
	}
	return infos, nil
}

// Prune drops all but the newest keep snapshots and returns how many were removed.
func (s *SnapDB) Prune(keep int) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	infos, err := s.Roots()
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}

	stale := infos[:len(infos)-max(keep, 0)]
	bulk := s.db.Bulk()
	for _, info := range stale {
		if err := bulk.Delete(snapshotBucket.Key(rootKey(info.Root))); err != nil {
			return 0, err
		}
	}
	if keep <= 0 {
		if err := bulk.Delete(configBucket.Key(latestKey)); err != nil {
			return 0, err
		}
	}
	if err := bulk.Write(); err != nil {
		return 0, errors.Wrap(err, "prune snapshots")
	}
	for _, info := range stale {
		s.blobs.Remove(info.Root)
	}
	logger.Debug("snapshots pruned", "count", len(stale), "kept", keep)
	return len(stale), nil
}

// Close closes the underlying db.
func (s *SnapDB) Close() error {
	return s.db.Close()
}
