// Copyright (c) 2024 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
// Package lifecycle advances components such as the heartbeat and the
// daemon's HTTP server through start and stop at most once.
package lifecycle

import (
	"sync"

	"go.uber.org/atomic"
)

// State is a step of a component's lifecycle.
type State int32

// The states of a lifecycle, in the only order they are entered.
const (
	Idle State = iota
	Starting
	Running
	Stopping
	Stopped
	// Errored is final: starting or stopping failed.
	Errored
)

var _stateNames = [...]string{
	Idle:     "idle",
	Starting: "starting",
	Running:  "running",
	Stopping: "stopping",
	Stopped:  "stopped",
	Errored:  "errored",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(_stateNames) {
		return "unknown"
	}
	return _stateNames[s]
}

// Once runs the start and stop functions of a component at most once each.
//
// Start and Stop serialize with each other: a Stop racing a Start waits for
// it to finish. Stopping an idle component skips both functions. Once a
// function failed, every later call returns its error.
type Once struct {
	mu    sync.Mutex
	err   error
	state atomic.Int32
}

// NewOnce returns a lifecycle in the Idle state.
func NewOnce() *Once {
	return &Once{}
}

// Start runs start if the lifecycle is idle and moves it to Running, or to
// Errored if start fails.
func (o *Once) Start(start func() error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.State() != Idle {
		return o.err
	}
	o.state.Store(int32(Starting))
	return o.finish(start, Running)
}

// Stop runs stop if the lifecycle is running and moves it to Stopped, or to
// Errored if stop fails. An idle lifecycle moves straight to Stopped.
func (o *Once) Stop(stop func() error) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch o.State() {
	case Idle:
		o.state.Store(int32(Stopped))
		return nil
	case Running:
		o.state.Store(int32(Stopping))
		return o.finish(stop, Stopped)
	default:
		return o.err
	}
}

func (o *Once) finish(f func() error, next State) error {
	if f != nil {
		o.err = f()
	}
	if o.err != nil {
		next = Errored
	}
	o.state.Store(int32(next))
	return o.err
}

// State returns the current state without waiting for a transition.
func (o *Once) State() State {
	return State(o.state.Load())
}

// IsRunning reports whether Start completed and Stop was not called yet.
func (o *Once) IsRunning() bool {
	return o.State() == Running
}
