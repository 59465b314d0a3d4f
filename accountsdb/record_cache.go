// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package accountsdb

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/qianbin/directcache"

	"github.com/vechain/accountsdb/acc"
	"github.com/vechain/accountsdb/cache"
)

// recordCache caches decoded records by location. Segment ids are only
// unique within a fork once restores merge storage, so the fork is part of
// the key. The segment generation is part of the key too, so records of a
// reset segment are never served. The epoch is bumped when restored segments
// may reuse ids.
// A nil cache is a no-op.
type recordCache struct {
	records     *directcache.Cache
	epoch       atomic.Uint64
	stats       cache.Stats
	lastLogTime atomic.Int64
}

func newRecordCache(sizeMB int) *recordCache {
	if sizeMB <= 0 {
		return nil
	}
	c := &recordCache{
		records: directcache.New(sizeMB * 1024 * 1024),
	}
	c.lastLogTime.Store(time.Now().UnixNano())
	return c
}

func (c *recordCache) key(fork acc.Fork, id, generation, offset uint64) []byte {
	var k [40]byte
	binary.BigEndian.PutUint64(k[:], c.epoch.Load())
	binary.BigEndian.PutUint64(k[8:], fork)
	binary.BigEndian.PutUint64(k[16:], id)
	binary.BigEndian.PutUint64(k[24:], generation)
	binary.BigEndian.PutUint64(k[32:], offset)
	return k[:]
}

func (c *recordCache) invalidate() {
	if c != nil {
		c.epoch.Add(1)
	}
}

func (c *recordCache) get(fork acc.Fork, id, generation, offset uint64) *acc.Account {
	if c == nil {
		return nil
	}
	var account *acc.Account
	if c.records.AdvGet(c.key(fork, id, generation, offset), func(val []byte) {
		var a acc.Account
		if err := rlp.DecodeBytes(val, &a); err == nil {
			account = &a
		}
	}, false) && account != nil {
		if c.stats.Hit()%2000 == 0 {
			c.log(false)
		}
		return account
	}
	c.stats.Miss()
	return nil
}

func (c *recordCache) add(fork acc.Fork, id, generation, offset uint64, account *acc.Account) {
	if c == nil {
		return
	}
	val, err := rlp.EncodeToBytes(account)
	if err != nil {
		return
	}
	_ = c.records.Set(c.key(fork, id, generation, offset), val)
}

func (c *recordCache) log(force bool) {
	if c == nil {
		return
	}
	now := time.Now().UnixNano()
	last := c.lastLogTime.Swap(now)

	if force || now-last > int64(time.Second*20) {
		changed, hit, miss := c.stats.Stats()
		if changed || force {
			logger.Info("record cache stats", "lookups", hit+miss, "hitrate", cache.HitRate(hit, miss))
		}
		metricCacheHitMiss().SetWithLabel(hit, map[string]string{"event": "hit"})
		metricCacheHitMiss().SetWithLabel(miss, map[string]string{"event": "miss"})
	} else {
		c.lastLogTime.CompareAndSwap(now, last)
	}
}
