// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"github.com/vechain/accountsdb/metrics"
)

var (
	metricStoredAccounts  = metrics.LazyLoadCounter("stored_accounts_count")
	metricReclaims        = metrics.LazyLoadCounter("reclaimed_records_count")
	metricSegmentsCreated = metrics.LazyLoadCounter("segments_created_count")
	metricSegmentResets   = metrics.LazyLoadCounter("segment_resets_count")
	metricPurgedForks     = metrics.LazyLoadCounter("purged_forks_count")
	metricCacheHitMiss    = metrics.LazyLoadGaugeVec("record_cache_hit_miss_count", []string{"event"})
	metricStoreDuration   = metrics.LazyLoadHistogram("store_duration_ms", metrics.Bucket10s)
)
