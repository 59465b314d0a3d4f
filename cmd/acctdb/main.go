// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// acctdb benchmarks, archives and restores accounts storage.
package main

import (
	"fmt"
	"os"

	cli "gopkg.in/urfave/cli.v1"
)

var (
	version   string
	gitCommit string
	gitTag    string
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	storeFlags := []cli.Flag{
		dataDirFlag,
		pathsFlag,
		configFlag,
		segmentSizeFlag,
		cacheFlag,
		verbosityFlag,
		metricsAddrFlag,
	}

	app := cli.App{
		Version:   fullVersion(),
		Name:      "acctdb",
		Usage:     "Fork aware accounts storage maintenance tool",
		Copyright: "2025 VeChain Foundation <https://vechain.org/>",
		Commands: []cli.Command{
			{
				Name:  "bench",
				Usage: "write random accounts over an advancing chain of forks",
				Flags: append(storeFlags,
					threadsFlag,
					forksFlag,
					accountsFlag,
					spaceFlag,
					depthFlag,
					archiveFlag,
					keepFlag,
				),
				Action: benchAction,
			},
			{
				Name:   "restore",
				Usage:  "restore an archived snapshot and print per fork statistics",
				Flags:  append(storeFlags, rootFlag),
				Action: restoreAction,
			},
			{
				Name:   "inspect",
				Usage:  "list archived snapshots",
				Flags:  []cli.Flag{dataDirFlag, verbosityFlag, keepFlag},
				Action: inspectAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
