// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package co

import (
	"sync"
)

// Signal is a coalescing wake-up. Signals sent while nobody waits collapse
// into one pending wake-up.
type Signal struct {
	once sync.Once
	ch   chan struct{}
}

func (s *Signal) init() {
	s.once.Do(func() { s.ch = make(chan struct{}, 1) })
}

// Signal wakes one waiter, or leaves a wake-up pending.
func (s *Signal) Signal() {
	s.init()
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C returns the channel to wait on.
func (s *Signal) C() <-chan struct{} {
	s.init()
	return s.ch
}
