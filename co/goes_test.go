// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vechain/accountsdb/co"
)

func TestGoes(t *testing.T) {
	var (
		goes co.Goes
		n    atomic.Int32
	)
	for range 10 {
		goes.Go(func() { n.Add(1) })
	}
	goes.Wait()
	assert.Equal(t, int32(10), n.Load())
}

func TestChoesStop(t *testing.T) {
	var (
		c       = co.NewChoes()
		stopped atomic.Int32
	)
	for range 3 {
		c.Go(func(stop <-chan struct{}) {
			<-stop
			stopped.Add(1)
		})
	}

	c.Stop()
	c.Stop()
	c.Wait()
	assert.Equal(t, int32(3), stopped.Load())
}

func TestSignal(t *testing.T) {
	var sig co.Signal

	sig.Signal()
	sig.Signal()
	<-sig.C()

	select {
	case <-sig.C():
		t.Fatal("signals should coalesce")
	default:
	}

	done := make(chan struct{})
	go func() {
		<-sig.C()
		close(done)
	}()
	sig.Signal()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not woken")
	}
}
