// Copyright (c) 2018 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package co provides go routine helpers.
package co

import (
	"runtime"
)

// Parallel to run a batch of work using as many CPU as it can.
func Parallel(cb func(queue chan<- func())) <-chan struct{} {
	return ParallelN(runtime.NumCPU(), cb)
}

// ParallelN runs the works queued by cb on n workers.
// The returned channel is closed once every work is done.
func ParallelN(n int, cb func(queue chan<- func())) <-chan struct{} {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	queue := make(chan func(), n*2)
	done := make(chan struct{})

	var goes Goes
	for range n {
		goes.Go(func() {
			for work := range queue {
				work()
			}
		})
	}

	go func() {
		defer close(done)
		cb(queue)
		close(queue)
		goes.Wait()
	}()
	return done
}
