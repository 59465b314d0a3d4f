// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/accountsdb/accountsdb"
	"github.com/vechain/accountsdb/metric"
)

func restoreAction(ctx *cli.Context) error {
	initLogger(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}

	stopMetrics, err := maybeStartMetrics(ctx)
	if err != nil {
		return err
	}
	defer stopMetrics()

	sdb, err := openSnapDB(dataDir)
	if err != nil {
		return err
	}
	defer sdb.Close()

	root := ctx.Uint64(rootFlag.Name)
	if !ctx.IsSet(rootFlag.Name) {
		latest, ok, err := sdb.Latest()
		if err != nil {
			return err
		}
		if !ok {
			return errors.New("snapshot archive is empty")
		}
		root = latest
	}
	blob, err := sdb.Get(root)
	if err != nil {
		return errors.Wrapf(err, "snapshot of root %d", root)
	}

	paths, cleanup, err := makeSegmentDirs(cfg, dataDir, "restore-")
	if err != nil {
		return err
	}
	defer cleanup()

	db, err := openAccountsDB(cfg, paths)
	if err != nil {
		return err
	}
	defer db.Close()

	start := mclock.Now()
	if err := db.UpdateFromStream(bytes.NewReader(blob)); err != nil {
		return err
	}
	log.Info("snapshot restored", "root", root, "size", metric.StorageSize(len(blob)), "elapsed", time.Duration(mclock.Now()-start).Round(time.Millisecond))

	printSegmentStats(db)
	return printForkHashes(db)
}

func printForkHashes(db *accountsdb.AccountsDB) error {
	forks := db.Forks()

	fmt.Println(">> Hashing forks <<")
	bar := pb.New(len(forks)).SetMaxWidth(90).Start()
	defer func() { bar.NotPrint = true }()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"fork", "root", "hash"})
	for _, fork := range forks {
		hash, ok, err := db.HashFork(fork)
		if err != nil {
			return err
		}
		bar.Increment()
		if !ok {
			continue
		}
		table.Append([]string{strconv.FormatUint(fork, 10), strconv.FormatBool(db.IsRoot(fork)), hash.String()})
	}
	bar.Finish()
	table.Render()
	return nil
}

func printSegmentStats(db *accountsdb.AccountsDB) {
	var (
		segments, accounts int
		used, capacity     uint64
		byStatus           = make(map[accountsdb.Status]int)
	)
	forks := db.Forks()
	for _, fork := range forks {
		for _, stat := range db.SegmentStats(fork) {
			segments++
			accounts += stat.Count
			used += stat.Len
			capacity += stat.Capacity
			byStatus[stat.Status]++
		}
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"forks", "segments", "live accounts", "used bytes", "capacity", "available", "full", "candidate"})
	table.Append([]string{
		strconv.Itoa(len(forks)),
		strconv.Itoa(segments),
		strconv.Itoa(accounts),
		metric.StorageSize(used).String(),
		metric.StorageSize(capacity).String(),
		strconv.Itoa(byStatus[accountsdb.StatusAvailable]),
		strconv.Itoa(byStatus[accountsdb.StatusFull]),
		strconv.Itoa(byStatus[accountsdb.StatusCandidate]),
	})
	table.Render()
}

func inspectAction(ctx *cli.Context) error {
	initLogger(ctx)

	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	sdb, err := openSnapDB(dataDir)
	if err != nil {
		return err
	}
	defer sdb.Close()

	if keep := ctx.Int(keepFlag.Name); keep > 0 {
		n, err := sdb.Prune(keep)
		if err != nil {
			return err
		}
		log.Info("archive pruned", "removed", n)
	}

	infos, err := sdb.Roots()
	if err != nil {
		return err
	}
	latest, _, err := sdb.Latest()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"root", "compressed size", "latest"})
	for _, info := range infos {
		table.Append([]string{
			strconv.FormatUint(info.Root, 10),
			metric.StorageSize(info.Size).String(),
			strconv.FormatBool(info.Root == latest),
		})
	}
	table.Render()
	return nil
}
