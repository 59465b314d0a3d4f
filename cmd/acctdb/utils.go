// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"io"
	"os"
	"os/user"
	"path/filepath"
	"runtime"

	"github.com/elastic/gosigar"
	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/vechain/accountsdb/accountsdb"
	"github.com/vechain/accountsdb/lvldb"
	"github.com/vechain/accountsdb/snapdb"
)

func initLogger(ctx *cli.Context) {
	lvl := log.FromLegacyLevel(ctx.Int(verbosityFlag.Name))
	useColor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, useColor)))
}

// copy from go-ethereum
func defaultDataDir() string {
	// Try to place the data folder in the user's home dir
	if home := homeDir(); home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "org.vechain.acctdb")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "org.vechain.acctdb")
		} else {
			return filepath.Join(home, ".org.vechain.acctdb")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

func makeDataDir(ctx *cli.Context) (string, error) {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return "", errors.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", errors.Wrapf(err, "create data dir [%v]", dataDir)
	}
	return dataDir, nil
}

// config holds the settings that can come from either flags or a YAML file.
type config struct {
	Paths       []string `yaml:"paths"`
	SegmentSize uint64   `yaml:"segment-size"`
	Cache       int      `yaml:"cache"`
	Threads     int      `yaml:"threads"`
	Forks       uint64   `yaml:"forks"`
	Accounts    int      `yaml:"accounts"`
	Space       int      `yaml:"space"`
	Depth       uint64   `yaml:"depth"`
}

func configFromFlags(ctx *cli.Context) config {
	return config{
		Paths:       accountsdb.ParsePaths(ctx.String(pathsFlag.Name)),
		SegmentSize: ctx.Uint64(segmentSizeFlag.Name),
		Cache:       ctx.Int(cacheFlag.Name),
		Threads:     ctx.Int(threadsFlag.Name),
		Forks:       ctx.Uint64(forksFlag.Name),
		Accounts:    ctx.Int(accountsFlag.Name),
		Space:       ctx.Int(spaceFlag.Name),
		Depth:       ctx.Uint64(depthFlag.Name),
	}
}

// parseConfig overlays the YAML document on the flag values, then restores
// every flag the user set explicitly.
func parseConfig(data []byte, flags config, isSet func(name string) bool) (config, error) {
	cfg := flags

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return config{}, errors.Wrap(err, "decode config")
	}

	if isSet(pathsFlag.Name) {
		cfg.Paths = flags.Paths
	}
	if isSet(segmentSizeFlag.Name) {
		cfg.SegmentSize = flags.SegmentSize
	}
	if isSet(cacheFlag.Name) {
		cfg.Cache = flags.Cache
	}
	if isSet(threadsFlag.Name) {
		cfg.Threads = flags.Threads
	}
	if isSet(forksFlag.Name) {
		cfg.Forks = flags.Forks
	}
	if isSet(accountsFlag.Name) {
		cfg.Accounts = flags.Accounts
	}
	if isSet(spaceFlag.Name) {
		cfg.Space = flags.Space
	}
	if isSet(depthFlag.Name) {
		cfg.Depth = flags.Depth
	}
	return cfg, nil
}

func loadConfig(ctx *cli.Context) (config, error) {
	cfg := configFromFlags(ctx)

	file := ctx.String(configFlag.Name)
	if file == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return config{}, errors.Wrapf(err, "read config file [%v]", file)
	}
	cfg, err = parseConfig(data, cfg, ctx.IsSet)
	if err != nil {
		return config{}, err
	}
	log.Debug("config loaded", "file", file)
	return cfg, nil
}

// normalizeCacheSize limits the record cache to half of the physical memory.
func normalizeCacheSize(sizeMB int) int {
	if sizeMB <= 0 {
		return 0
	}

	var mem gosigar.Mem
	if err := mem.Get(); err != nil {
		log.Warn("failed to get total mem:", "err", err)
	} else {
		// limit to 1/2 os physical ram
		limitMB := int(mem.Total / 1024 / 1024 / 2)
		if sizeMB > limitMB {
			sizeMB = limitMB
			log.Warn("cache size(MB) limited", "limit", limitMB)
		}
	}
	return sizeMB
}

// makeSegmentDirs creates a fresh directory named after prefix under every
// configured path, or under the data dir when no path is configured.
func makeSegmentDirs(cfg config, dataDir, prefix string) ([]string, func(), error) {
	paths := cfg.Paths
	if len(paths) == 0 {
		paths = []string{filepath.Join(dataDir, "accounts")}
	}

	var dirs []string
	cleanup := func() {
		for _, dir := range dirs {
			if err := os.RemoveAll(dir); err != nil {
				log.Warn("failed to remove segment dir", "dir", dir, "err", err)
			}
		}
	}
	for _, path := range paths {
		if err := os.MkdirAll(path, 0o700); err != nil {
			cleanup()
			return nil, nil, errors.Wrapf(err, "create segment path [%v]", path)
		}
		dir, err := os.MkdirTemp(path, prefix)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrapf(err, "create segment dir under [%v]", path)
		}
		dirs = append(dirs, dir)
	}
	return dirs, cleanup, nil
}

func openAccountsDB(cfg config, paths []string) (*accountsdb.AccountsDB, error) {
	cacheMB := normalizeCacheSize(cfg.Cache)
	log.Debug("record cache size(MB)", "size", cacheMB)

	return accountsdb.New(&accountsdb.Options{
		Paths:             paths,
		SegmentSize:       cfg.SegmentSize,
		RecordCacheSizeMB: cacheMB,
	})
}

func openSnapDB(dataDir string) (*snapdb.SnapDB, error) {
	dir := filepath.Join(dataDir, "snapshots.db")
	db, err := snapdb.Open(dir, lvldb.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open snapshot archive [%v]", dir)
	}
	return db, nil
}
