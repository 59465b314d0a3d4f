// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/appendvec"
)

// Status is the allocation state of a storage segment.
type Status uint8

const (
	// StatusAvailable segments may be claimed by a writer.
	StatusAvailable Status = iota
	// StatusFull segments refused an append and wait to be emptied.
	StatusFull
	// StatusCandidate segments are claimed by exactly one in-flight append.
	StatusCandidate
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusFull:
		return "full"
	case StatusCandidate:
		return "candidate"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// StorageEntry is one segment of a fork together with its live record count.
type StorageEntry struct {
	id   uint64
	fork acc.Fork
	vec  *appendvec.AppendVec

	lock   sync.RWMutex
	count  int
	status Status
}

func segmentPath(path string, fork acc.Fork, id uint64) string {
	return filepath.Join(path, fmt.Sprintf("%d.%d", fork, id), appendvec.DataFile)
}

func newStorageEntry(path string, fork acc.Fork, id uint64, size uint64) (*StorageEntry, error) {
	vec, err := appendvec.New(segmentPath(path, fork, id), size)
	if err != nil {
		return nil, err
	}
	return &StorageEntry{
		id:   id,
		fork: fork,
		vec:  vec,
	}, nil
}

// ID returns the segment id.
func (e *StorageEntry) ID() uint64 { return e.id }

// Fork returns the fork owning the segment.
func (e *StorageEntry) Fork() acc.Fork { return e.fork }

// Status returns the allocation status.
func (e *StorageEntry) Status() Status {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.status
}

// Count returns the number of live records.
func (e *StorageEntry) Count() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.count
}

func (e *StorageEntry) countAndStatus() (int, Status) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.count, e.status
}

// SetStatus updates the status. A segment marked full while holding no
// live record is reset and made available again.
func (e *StorageEntry) SetStatus(status Status) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if status == StatusFull && e.count == 0 {
		e.reset()
		status = StatusAvailable
	}
	e.status = status
}

func (e *StorageEntry) addAccount() {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.count++
}

// tryAvailable claims the segment for an append.
func (e *StorageEntry) tryAvailable() bool {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.status == StatusAvailable {
		e.status = StatusCandidate
		return true
	}
	return false
}

// removeAccount drops one live record and returns the remaining count.
// Removing the last record of a full segment resets it.
func (e *StorageEntry) removeAccount() int {
	e.lock.Lock()
	defer e.lock.Unlock()

	if e.count == 1 && e.status == StatusFull {
		// only a full segment is reset, an available one may be in use by a writer
		e.reset()
		e.status = StatusAvailable
	}

	if e.count > 0 {
		e.count--
	} else {
		logger.Warn("live count already zero", "fork", e.fork, "segment", e.id)
	}
	return e.count
}

// reset must be called with the lock held.
func (e *StorageEntry) reset() {
	e.vec.Reset()
	metricSegmentResets().Add(1)
	logger.Debug("segment reset", "fork", e.fork, "segment", e.id, "generation", e.vec.Generation())
}
