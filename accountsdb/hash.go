// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"encoding/binary"
	"encoding/hex"
	"maps"
	"slices"

	"golang.org/x/crypto/blake2b"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/appendvec"
)

// Hash is a 32 byte digest.
type Hash [32]byte

// String implements fmt.Stringer.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// HashFork digests the latest version of every account stored in fork, in
// key order. It reports false if the fork has no storage.
func (db *AccountsDB) HashFork(fork acc.Fork) (Hash, bool, error) {
	accums, err := ScanAccountStorage(db, fork, func(sa *appendvec.StoredAccount, _ uint64, accum *map[acc.Pubkey]*appendvec.StoredAccount) {
		if *accum == nil {
			*accum = make(map[acc.Pubkey]*appendvec.StoredAccount)
		}
		keepNewer(*accum, sa)
	})
	if err != nil {
		return Hash{}, false, err
	}
	if len(accums) == 0 {
		return Hash{}, false, nil
	}

	latest := make(map[acc.Pubkey]*appendvec.StoredAccount)
	for _, accum := range accums {
		for _, sa := range accum {
			keepNewer(latest, sa)
		}
	}

	hasher, _ := blake2b.New256(nil)
	var buf []byte
	for _, key := range slices.SortedFunc(maps.Keys(latest), acc.Pubkey.Compare) {
		sa := latest[key]
		buf = append(buf[:0], key[:]...)
		buf = binary.BigEndian.AppendUint64(buf, sa.Lamports)
		buf = append(buf, sa.Owner[:]...)
		if sa.Executable {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		buf = binary.BigEndian.AppendUint64(buf, uint64(len(sa.Data)))
		buf = append(buf, sa.Data...)
		hasher.Write(buf)
	}

	var h Hash
	hasher.Sum(h[:0])
	return h, true, nil
}

func keepNewer(m map[acc.Pubkey]*appendvec.StoredAccount, sa *appendvec.StoredAccount) {
	if cur, ok := m[sa.Meta.Pubkey]; ok && cur.Meta.WriteVersion > sa.Meta.WriteVersion {
		return
	}
	m[sa.Meta.Pubkey] = sa
}
