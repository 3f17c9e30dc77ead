// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package background_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nextworks-it/pkgmarketd/background"
)

// all processes must start, see the shared argument and stop on demand
func TestStartStop(t *testing.T) {

	var started int32
	var stopped int32

	proc := func(args interface{}, shutdown <-chan struct{}) {
		n, ok := args.(int)
		if !ok {
			t.Errorf("argument: %v is not an int", args)
			return
		}
		if 42 != n {
			t.Errorf("argument: actual: %d  expected: 42", n)
		}
		atomic.AddInt32(&started, 1)
		<-shutdown
		atomic.AddInt32(&stopped, 1)
	}

	processes := background.Processes{proc, proc, proc}

	register := background.Start(processes, 42)

	// allow the goroutines to run
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&started) != 3 {
		if time.Now().After(deadline) {
			t.Fatalf("started: actual: %d  expected: 3", atomic.LoadInt32(&started))
		}
		time.Sleep(time.Millisecond)
	}

	register.Stop()

	if s := atomic.LoadInt32(&stopped); 3 != s {
		t.Errorf("stopped: actual: %d  expected: 3", s)
	}
}

// Stop must block until a slow process has returned
func TestStopWaits(t *testing.T) {

	finished := int32(0)

	slow := func(args interface{}, shutdown <-chan struct{}) {
		<-shutdown
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
	}

	register := background.Start(background.Processes{slow}, nil)
	register.Stop()

	if 1 != atomic.LoadInt32(&finished) {
		t.Error("Stop returned before the process finished")
	}
}

// a nil handle is ignored
func TestStopNil(t *testing.T) {
	var register *background.T
	register.Stop()
}
