// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package acc defines the account record and the fork identifiers shared by
// the index and the storage engine.
package acc

import (
	"bytes"
	"slices"
)

// Fork identifies one branch of world state. Forks are assigned monotonically,
// so a descendant always has a larger id than its ancestors.
type Fork = uint64

// Ancestors maps every fork of the caller's current chain to its generation.
type Ancestors map[Fork]uint64

// NewAncestors builds ancestors from (fork, generation) pairs.
func NewAncestors(pairs ...[2]uint64) Ancestors {
	a := make(Ancestors, len(pairs))
	for _, p := range pairs {
		a[p[0]] = p[1]
	}
	return a
}

// Contains returns whether fork is part of the ancestry.
func (a Ancestors) Contains(fork Fork) bool {
	_, ok := a[fork]
	return ok
}

// Account is an immutable account record.
// A new value is always a new record, never an in-place edit.
type Account struct {
	Lamports   uint64
	Owner      Pubkey
	Executable bool
	Data       []byte
}

// New creates an account holding lamports and space bytes of zeroed data.
func New(lamports uint64, space int, owner Pubkey) *Account {
	return &Account{
		Lamports: lamports,
		Owner:    owner,
		Data:     make([]byte, space),
	}
}

// Copy returns a deep copy.
func (a *Account) Copy() *Account {
	cpy := *a
	cpy.Data = slices.Clone(a.Data)
	return &cpy
}

// Equal reports whether two accounts hold the same content.
// Nil and empty data are considered equal.
func (a *Account) Equal(b *Account) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}
