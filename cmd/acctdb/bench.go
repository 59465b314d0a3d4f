// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/accountsdb"
	"github.com/vechain/accountsdb/co"
	"github.com/vechain/accountsdb/metric"
)

func benchAction(ctx *cli.Context) error {
	initLogger(ctx)

	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Threads <= 0 || cfg.Accounts <= 0 || cfg.Forks == 0 {
		return errors.New("threads, accounts and forks must be positive")
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

	paths, cleanup, err := makeSegmentDirs(cfg, dataDir, "bench-")
	if err != nil {
		return err
	}
	defer cleanup()

	db, err := openAccountsDB(cfg, paths)
	if err != nil {
		return err
	}
	defer db.Close()

	keys := make([]acc.Pubkey, cfg.Accounts)
	for i := range keys {
		keys[i] = acc.NewRandPubkey()
	}

	fmt.Println(">> Writing accounts <<")
	bar := pb.New64(int64(cfg.Forks)).SetMaxWidth(90).Start()
	defer func() { bar.NotPrint = true }()

	var (
		head   atomic.Uint64
		signal co.Signal
		rooter = co.NewChoes()
		start  = mclock.Now()
	)
	rooter.Go(func(stop <-chan struct{}) {
		rootBehind(db, &head, cfg.Depth, &signal, stop)
	})

	for height := range cfg.Forks {
		if err := writeHeight(db, height, keys, cfg); err != nil {
			rooter.Stop()
			rooter.Wait()
			return err
		}
		head.Store(height)
		signal.Signal()
		bar.Increment()
	}
	rooter.Stop()
	rooter.Wait()
	bar.Finish()

	elapsed := time.Duration(mclock.Now() - start)
	writes := cfg.Forks * uint64(len(keys)+len(siblingKeys(keys)))
	log.Info("bench done",
		"heights", cfg.Forks,
		"writes", writes,
		"elapsed", elapsed.Round(time.Millisecond),
		"writes/s", uint64(float64(writes)/elapsed.Seconds()),
		"lastRoot", db.LastRoot(),
	)

	printSegmentStats(db)

	if hash, ok, err := db.HashFork(db.LastRoot()); err != nil {
		return err
	} else if ok {
		fmt.Printf("root %d hash %v\n", db.LastRoot(), hash)
	}

	if ctx.Bool(archiveFlag.Name) {
		return archive(ctx, db, dataDir)
	}
	return nil
}

// Every height has a main fork, which is eventually rooted, and a sibling
// fork which is abandoned once the root passes it.
func mainFork(height uint64) acc.Fork    { return height * 2 }
func siblingFork(height uint64) acc.Fork { return height*2 + 1 }

func siblingKeys(keys []acc.Pubkey) []acc.Pubkey { return keys[:len(keys)/4] }

// writeHeight writes every key to the main fork of height, and a quarter of
// them to its sibling.
func writeHeight(db *accountsdb.AccountsDB, height uint64, keys []acc.Pubkey, cfg config) error {
	if err := writeFork(db, mainFork(height), keys, cfg); err != nil {
		return err
	}
	return writeFork(db, siblingFork(height), siblingKeys(keys), cfg)
}

// writeFork stores one version of every key in fork, split over the writers,
// and reads every batch back.
func writeFork(db *accountsdb.AccountsDB, fork acc.Fork, keys []acc.Pubkey, cfg config) error {
	var (
		goes   co.Goes
		failed atomic.Pointer[error]
	)
	for t := range cfg.Threads {
		goes.Go(func() {
			batch := make(map[acc.Pubkey]*acc.Account)
			for i := t; i < len(keys); i += cfg.Threads {
				batch[keys[i]] = acc.New(rand.Uint64N(1_000_000)+1, cfg.Space, keys[i])
			}
			if len(batch) == 0 {
				return
			}
			if err := db.Store(fork, batch); err != nil {
				failed.CompareAndSwap(nil, &err)
				return
			}

			ancestors := acc.NewAncestors([2]uint64{fork, 0})
			for key, expected := range batch {
				got, _, err := db.Load(ancestors, key)
				if err == nil && !expected.Equal(got) {
					err = errors.Errorf("fork %d key %v: stored account not visible", fork, key.AbbrevString())
				}
				if err != nil {
					failed.CompareAndSwap(nil, &err)
					return
				}
			}
		})
	}
	goes.Wait()

	if err := failed.Load(); err != nil {
		return *err
	}
	return nil
}

// rootBehind roots the main fork of every height that has at least depth
// newer heights, each time the writers signal progress.
func rootBehind(db *accountsdb.AccountsDB, head *atomic.Uint64, depth uint64, signal *co.Signal, stop <-chan struct{}) {
	var next uint64
	for {
		select {
		case <-stop:
			return
		case <-signal.C():
		}

		h := head.Load()
		for h >= depth && next <= h-depth {
			db.AddRoot(mainFork(next))
			next++
		}
	}
}

func archive(ctx *cli.Context, db *accountsdb.AccountsDB, dataDir string) error {
	sdb, err := openSnapDB(dataDir)
	if err != nil {
		return err
	}
	defer sdb.Close()

	blob, err := db.Serialize()
	if err != nil {
		return err
	}
	if err := sdb.Put(db.LastRoot(), blob); err != nil {
		return err
	}
	log.Info("snapshot archived", "root", db.LastRoot(), "size", metric.StorageSize(len(blob)))

	if keep := ctx.Int(keepFlag.Name); keep > 0 {
		n, err := sdb.Prune(keep)
		if err != nil {
			return err
		}
		log.Info("archive pruned", "removed", n)
	}
	return nil
}
