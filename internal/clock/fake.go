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

package clock

import (
	"container/heap"
	"runtime"
	"sync"
	"time"
)

// FakeClock only moves forward when told to. Timers scheduled on it fire
// synchronously from Add and Set.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers timers
}

var _ Clock = (*FakeClock)(nil)

// NewFake returns a fake clock set to the Unix epoch.
func NewFake() *FakeClock {
	return &FakeClock{now: time.Unix(0, 0)}
}

// Add moves the current time of the fake clock forward by the duration,
// firing every timer that falls due on the way.
func (fc *FakeClock) Add(d time.Duration) {
	fc.mu.Lock()
	fc.advance(fc.now.Add(d))
	fc.mu.Unlock()
	runtime.Gosched()
}

// Set advances the current time of the fake clock to the given absolute time.
// Moving backwards is a no-op.
func (fc *FakeClock) Set(end time.Time) {
	fc.mu.Lock()
	fc.advance(end)
	fc.mu.Unlock()
	runtime.Gosched()
}

func (fc *FakeClock) advance(end time.Time) {
	fc.flush(end)
	if fc.now.Before(end) {
		fc.now = end
	}
}

// flush fires all timers due at or before end, in order.
func (fc *FakeClock) flush(end time.Time) {
	for len(fc.timers) > 0 && !fc.timers[0].when.After(end) {
		t := heap.Pop(&fc.timers).(*FakeTimer)
		if fc.now.Before(t.when) {
			fc.now = t.when
		}
		select {
		case t.c <- t.when:
		default:
		}
	}
}

// Now returns the current time on the fake clock.
func (fc *FakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

// Timer produces a timer that will emit a time some duration after now.
func (fc *FakeClock) Timer(d time.Duration) Timer {
	return fc.FakeTimer(d)
}

// FakeTimer is Timer exposing the concrete type.
func (fc *FakeClock) FakeTimer(d time.Duration) *FakeTimer {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	t := &FakeTimer{
		c:     make(chan time.Time, 1),
		when:  fc.now.Add(d),
		clock: fc,
		index: -1,
	}
	heap.Push(&fc.timers, t)
	fc.flush(fc.now)
	return t
}

// After produces a channel that will emit the time after a duration passes.
func (fc *FakeClock) After(d time.Duration) <-chan time.Time {
	return fc.Timer(d).C()
}

// Pending returns the number of timers that have not fired yet.
func (fc *FakeClock) Pending() int {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return len(fc.timers)
}

// BlockUntil waits until at least n timers are pending. It lets a test wait
// for a goroutine to schedule its next wake-up before advancing the clock.
func (fc *FakeClock) BlockUntil(n int) {
	for fc.Pending() < n {
		runtime.Gosched()
	}
}

// FakeTimer is a timer scheduled on a FakeClock.
type FakeTimer struct {
	c     chan time.Time
	when  time.Time
	clock *FakeClock
	index int
}

// C returns a channel that will send the time when it fires.
func (t *FakeTimer) C() <-chan time.Time {
	return t.c
}

// Reset reschedules the timer d after the current fake time. It returns true
// if the timer had not fired yet.
func (t *FakeTimer) Reset(d time.Duration) bool {
	fc := t.clock
	fc.mu.Lock()
	defer fc.mu.Unlock()

	t.when = fc.now.Add(d)
	select {
	case <-t.c:
	default:
	}

	if t.index >= 0 {
		heap.Fix(&fc.timers, t.index)
		return true
	}
	heap.Push(&fc.timers, t)
	return false
}

// Stop removes the timer from the scheduled timers. It returns false if the
// timer already fired or was stopped.
func (t *FakeTimer) Stop() bool {
	fc := t.clock
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if t.index < 0 {
		return false
	}
	select {
	case <-t.c:
	default:
	}
	heap.Remove(&fc.timers, t.index)
	return true
}

// timers is a min-heap of timers ordered by due time.
type timers []*FakeTimer

func (ts timers) Len() int { return len(ts) }

func (ts timers) Swap(i, j int) {
	ts[i], ts[j] = ts[j], ts[i]
	ts[i].index, ts[j].index = i, j
}

func (ts timers) Less(i, j int) bool {
	return ts[i].when.Before(ts[j].when)
}

func (ts *timers) Push(t interface{}) {
	mt := t.(*FakeTimer)
	mt.index = len(*ts)
	*ts = append(*ts, mt)
}

func (ts *timers) Pop() interface{} {
	old := *ts
	t := old[len(old)-1]
	old[len(old)-1] = nil
	*ts = old[:len(old)-1]
	t.index = -1
	return t
}
