// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import (
	"sync"
)

// Goes tracks a group of go routines.
type Goes struct {
	wg sync.WaitGroup
}

// Go runs f in a new go routine.
func (g *Goes) Go(f func()) {
	g.wg.Go(f)
}

// Wait blocks until every routine started by Go returns.
func (g *Goes) Wait() {
	g.wg.Wait()
}

// Choes is Goes with a shared stop channel.
type Choes struct {
	goes Goes
	stop chan struct{}
	once sync.Once
}

func NewChoes() *Choes {
	return &Choes{stop: make(chan struct{})}
}

// Go runs f in a new go routine. The channel passed to f is closed by Stop.
func (c *Choes) Go(f func(stop <-chan struct{})) {
	c.goes.Go(func() { f(c.stop) })
}

// Stop closes the stop channel. It is safe to call more than once.
func (c *Choes) Stop() {
	c.once.Do(func() { close(c.stop) })
}

// Wait blocks until every routine returns.
func (c *Choes) Wait() {
	c.goes.Wait()
}
