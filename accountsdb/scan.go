// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"github.com/pkg/errors"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/appendvec"
	"github.com/vechain/accountsdb/co"
)

// ScanFunc is called for every record of a segment with the segment id and
// the accumulator of that segment.
type ScanFunc[B any] func(sa *appendvec.StoredAccount, id uint64, accum *B)

// ScanAccountStorage scans every segment of fork in parallel, each segment
// read sequentially into its own accumulator. Accumulators are returned in
// segment id order.
func ScanAccountStorage[B any](db *AccountsDB, fork acc.Fork, fn ScanFunc[B]) ([]B, error) {
	db.storageLock.RLock()
	var entries []*StorageEntry
	if fs := db.storage.get(fork); fs != nil {
		entries = fs.sorted()
	}
	db.storageLock.RUnlock()

	var (
		results = make([]B, len(entries))
		errs    = make([]error, len(entries))
	)
	<-co.ParallelN(db.scanWorkers, func(queue chan<- func()) {
		for i, entry := range entries {
			queue <- func() {
				accounts, err := entry.vec.Accounts(0)
				if err != nil {
					errs[i] = errors.Wrapf(err, "scan segment %d.%d", entry.fork, entry.id)
					return
				}
				for _, sa := range accounts {
					fn(sa, entry.id, &results[i])
				}
			}
		}
	})

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
