// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"runtime"
	"strings"
)

// DefaultSegmentSize is the capacity of a storage segment when none is configured.
const DefaultSegmentSize = 16 * 1024 * 1024

// Options optional parameters for opening an accounts db.
type Options struct {
	// Paths are the directories segments are spread over.
	Paths []string
	// SegmentSize is the capacity in bytes of every new segment.
	SegmentSize uint64
	// ScanWorkers bounds the parallelism of storage scans.
	ScanWorkers int
	// RecordCacheSizeMB is the size of the loaded record cache, 0 disables it.
	RecordCacheSizeMB int
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.SegmentSize == 0 {
		opts.SegmentSize = DefaultSegmentSize
	}
	if opts.ScanWorkers <= 0 {
		opts.ScanWorkers = runtime.NumCPU()
	}
	return opts
}

// ParsePaths splits a comma separated path list, dropping empty items.
func ParsePaths(s string) []string {
	var paths []string
	for p := range strings.SplitSeq(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
