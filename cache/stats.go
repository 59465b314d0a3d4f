// Copyright (c) 2024 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package cache holds helpers shared by the caches of the store.
package cache

import (
	"fmt"
	"sync/atomic"
)

// Stats counts cache hits and misses.
type Stats struct {
	hit, miss atomic.Int64
	flag      atomic.Int32 // hit rate in permille at the last Stats call
}

// Hit records a hit and returns the number of hits.
func (cs *Stats) Hit() int64 { return cs.hit.Add(1) }

// Miss records a miss and returns the number of misses.
func (cs *Stats) Miss() int64 { return cs.miss.Add(1) }

// Stats returns the number of hits and misses, and whether the hit rate
// moved since the last call.
func (cs *Stats) Stats() (changed bool, hit, miss int64) {
	hit = cs.hit.Load()
	miss = cs.miss.Load()

	var permille int32
	if lookups := hit + miss; lookups > 0 {
		permille = int32(hit * 1000 / lookups)
	}
	return cs.flag.Swap(permille) != permille, hit, miss
}

// HitRate formats the ratio of hits over lookups.
func HitRate(hit, miss int64) string {
	lookups := hit + miss
	if lookups == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.3f", float64(hit)/float64(lookups))
}
