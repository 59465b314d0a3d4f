// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package accountsindex tracks, per account key, which forks hold a version of
// the account and where it lives, together with the set of rooted forks.
//
// The index is not safe for concurrent use; the owner guards it with a lock.
package accountsindex

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/vechain/accountsdb/acc"
)

// Entry is one version of a key, the info is the caller's pointer type.
type Entry[T any] struct {
	Fork acc.Fork
	Info T
}

// AccountsIndex maps account keys to their per-fork versions.
type AccountsIndex[T any] struct {
	accounts map[acc.Pubkey][]Entry[T]
	roots    *roaring64.Bitmap
	lastRoot acc.Fork
}

// New creates an empty index.
func New[T any]() *AccountsIndex[T] {
	return &AccountsIndex[T]{
		accounts: make(map[acc.Pubkey][]Entry[T]),
		roots:    roaring64.New(),
	}
}

// Get returns the version of key visible from ancestors.
// A version is visible if its fork is an ancestor or a root; the most recent
// visible fork wins.
func (idx *AccountsIndex[T]) Get(key acc.Pubkey, ancestors acc.Ancestors) (info T, fork acc.Fork, ok bool) {
	for _, e := range idx.accounts[key] {
		if ok && e.Fork < fork {
			continue
		}
		if ancestors.Contains(e.Fork) || idx.IsRoot(e.Fork) {
			info, fork, ok = e.Info, e.Fork, true
		}
	}
	return
}

// Insert records info as the version of key in fork. Previous versions made
// obsolete by the insert are appended to reclaims, which is returned.
// That covers the previous version in the same fork and every version in a
// purged fork.
func (idx *AccountsIndex[T]) Insert(fork acc.Fork, key acc.Pubkey, info T, reclaims []Entry[T]) []Entry[T] {
	entries := idx.accounts[key]

	kept := entries[:0]
	for _, e := range entries {
		if e.Fork == fork {
			reclaims = append(reclaims, e)
		} else {
			kept = append(kept, e)
		}
	}
	kept = append(kept, Entry[T]{Fork: fork, Info: info})

	live := kept[:0]
	for _, e := range kept {
		if idx.IsPurged(e.Fork) {
			reclaims = append(reclaims, e)
		} else {
			live = append(live, e)
		}
	}
	idx.accounts[key] = live
	return reclaims
}

// IsPurged returns whether fork fell behind the last root without being rooted.
func (idx *AccountsIndex[T]) IsPurged(fork acc.Fork) bool {
	return !idx.IsRoot(fork) && fork < idx.lastRoot
}

// IsRoot returns whether fork is in the root set.
func (idx *AccountsIndex[T]) IsRoot(fork acc.Fork) bool {
	return idx.roots.Contains(fork)
}

// AddRoot adds fork to the root set and makes it the last root.
// Roots must be added in increasing order, fork 0 may only be the first root.
func (idx *AccountsIndex[T]) AddRoot(fork acc.Fork) {
	if !(idx.lastRoot == 0 && fork == 0) && fork <= idx.lastRoot {
		panic(fmt.Sprintf("new roots must be increasing: last root %d, got %d", idx.lastRoot, fork))
	}
	idx.lastRoot = fork
	idx.roots.Add(fork)
}

// RestoreRoot adds fork to the root set leaving the last root untouched.
// It is used when rebuilding the index from storage.
func (idx *AccountsIndex[T]) RestoreRoot(fork acc.Fork) {
	idx.roots.Add(fork)
}

// CleanupDeadFork drops a purged fork from the root set.
func (idx *AccountsIndex[T]) CleanupDeadFork(fork acc.Fork) {
	idx.roots.Remove(fork)
}

// LastRoot returns the most recently added root.
func (idx *AccountsIndex[T]) LastRoot() acc.Fork {
	return idx.lastRoot
}

// Roots returns the root set in ascending order.
func (idx *AccountsIndex[T]) Roots() []acc.Fork {
	return idx.roots.ToArray()
}

// Entries returns a copy of the versions held for key.
func (idx *AccountsIndex[T]) Entries(key acc.Pubkey) []Entry[T] {
	return append([]Entry[T](nil), idx.accounts[key]...)
}

// Len returns the number of indexed keys.
func (idx *AccountsIndex[T]) Len() int {
	return len(idx.accounts)
}
