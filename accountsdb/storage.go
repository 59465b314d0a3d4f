// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"cmp"
	"maps"
	"slices"

	"github.com/google/btree"

	"github.com/vechain/accountsdb/acc"
)

// forkStorage holds the segments of one fork keyed by segment id.
type forkStorage struct {
	fork    acc.Fork
	entries map[uint64]*StorageEntry
}

// sorted returns the segments ordered by id.
func (fs *forkStorage) sorted() []*StorageEntry {
	return slices.SortedFunc(maps.Values(fs.entries), func(a, b *StorageEntry) int {
		return cmp.Compare(a.id, b.id)
	})
}

// storage is the fork ordered map of segments. Callers hold the db storage lock.
type storage struct {
	tree *btree.BTreeG[*forkStorage]
}

func newStorage() *storage {
	return &storage{
		tree: btree.NewG(16, func(a, b *forkStorage) bool { return a.fork < b.fork }),
	}
}

func (s *storage) get(fork acc.Fork) *forkStorage {
	fs, _ := s.tree.Get(&forkStorage{fork: fork})
	return fs
}

func (s *storage) getOrCreate(fork acc.Fork) *forkStorage {
	if fs := s.get(fork); fs != nil {
		return fs
	}
	fs := &forkStorage{
		fork:    fork,
		entries: make(map[uint64]*StorageEntry),
	}
	s.tree.ReplaceOrInsert(fs)
	return fs
}

// replace installs fs, returning the fork storage it displaced.
func (s *storage) replace(fs *forkStorage) *forkStorage {
	old, _ := s.tree.ReplaceOrInsert(fs)
	return old
}

func (s *storage) remove(fork acc.Fork) *forkStorage {
	fs, _ := s.tree.Delete(&forkStorage{fork: fork})
	return fs
}

func (s *storage) forks() []acc.Fork {
	forks := make([]acc.Fork, 0, s.tree.Len())
	s.tree.Ascend(func(fs *forkStorage) bool {
		forks = append(forks, fs.fork)
		return true
	})
	return forks
}

// each visits every fork in ascending order until fn returns false.
func (s *storage) each(fn func(fs *forkStorage) bool) {
	s.tree.Ascend(fn)
}
