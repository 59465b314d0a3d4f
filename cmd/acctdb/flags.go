// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/accountsdb/accountsdb"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for the snapshot archive and default segment paths",
	}
	pathsFlag = cli.StringFlag{
		Name:  "paths",
		Usage: "comma separated list of directories for segment files",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML config file, explicitly set flags take precedence",
	}
	segmentSizeFlag = cli.Uint64Flag{
		Name:  "segment-size",
		Value: accountsdb.DefaultSegmentSize,
		Usage: "capacity of a storage segment in bytes",
	}
	cacheFlag = cli.IntFlag{
		Name:  "cache",
		Value: 256,
		Usage: "record cache size (MB), 0 disables it",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "serve prometheus metrics at this address when set",
	}
	threadsFlag = cli.IntFlag{
		Name:  "threads",
		Value: 4,
		Usage: "number of concurrent writers",
	}
	forksFlag = cli.Uint64Flag{
		Name:  "forks",
		Value: 200,
		Usage: "number of chain heights to write, each with a main and a sibling fork",
	}
	accountsFlag = cli.IntFlag{
		Name:  "accounts",
		Value: 2000,
		Usage: "number of distinct accounts, each written once per main fork",
	}
	spaceFlag = cli.IntFlag{
		Name:  "space",
		Value: 64,
		Usage: "data length of every written account",
	}
	depthFlag = cli.Uint64Flag{
		Name:  "depth",
		Value: 32,
		Usage: "main forks are rooted once this many newer heights exist",
	}
	archiveFlag = cli.BoolFlag{
		Name:  "archive",
		Usage: "archive the final snapshot",
	}
	keepFlag = cli.IntFlag{
		Name:  "keep",
		Usage: "prune the archive to the newest N snapshots, 0 keeps all",
	}
	rootFlag = cli.Uint64Flag{
		Name:  "root",
		Usage: "root fork of the snapshot to restore, latest if unset",
	}
)
