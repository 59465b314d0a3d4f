// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package metric formats storage quantities for humans.
package metric

import (
	"fmt"
	"io"
)

// StorageSize describes storage size in bytes.
type StorageSize int64

func (ss StorageSize) String() string {
	switch {
	case ss >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(ss)/(1<<30))
	case ss >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(ss)/(1<<20))
	case ss >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(ss)/(1<<10))
	}
	return fmt.Sprintf("%d B", ss)
}

// Write implements io.Writer, so it can count the bytes an encoder produces.
func (ss *StorageSize) Write(b []byte) (int, error) {
	n := len(b)
	*ss += StorageSize(n)
	return n, nil
}

var _ io.Writer = (*StorageSize)(nil)
