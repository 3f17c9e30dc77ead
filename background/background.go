// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package background - run a fixed set of long lived goroutines
//
// every process receives the same argument value and a shutdown
// channel; a process must return promptly after the channel closes
package background

// Process - one long running background job
type Process func(args interface{}, shutdown <-chan struct{})

// Processes - the jobs to start together
type Processes []Process

// T - handle to a running set
type T struct {
	shutdown chan struct{}
	finished []chan struct{}
}

// Start - run every process in its own goroutine
func Start(processes Processes, args interface{}) *T {

	register := &T{
		shutdown: make(chan struct{}),
		finished: make([]chan struct{}, len(processes)),
	}

	for i, p := range processes {
		finished := make(chan struct{})
		register.finished[i] = finished
		go func(p Process, finished chan struct{}) {
			defer close(finished)
			p(args, register.shutdown)
		}(p, finished)
	}
	return register
}

// Stop - signal shutdown and wait for every process to return
func (t *T) Stop() {
	if nil == t {
		return
	}
	close(t.shutdown)
	for _, finished := range t.finished {
		<-finished
	}
}
