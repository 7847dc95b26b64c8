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

package heartbeat

import (
	"context"
	"sync"
	"time"

	"go.uber.org/cmdrouter/internal/backoff"
	"go.uber.org/cmdrouter/internal/clock"
	"go.uber.org/cmdrouter/pkg/lifecycle"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is the time between two successful refreshes.
	DefaultInterval = 30 * time.Second

	// DefaultTimeout bounds a single refresh.
	DefaultTimeout = 10 * time.Second
)

// Refresher rebuilds the ring. *router.Router satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
	ResetLocalMembership(ctx context.Context) error
}

// Heartbeat refreshes the ring periodically, backing off after failures.
//
// The first refresh happens as soon as the heartbeat starts. After a failed
// refresh the next attempt waits for the retry backoff rather than the full
// interval.
type Heartbeat struct {
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	backoff   backoff.Backoff
	clock     clock.Clock
	logger    *zap.Logger

	once           *lifecycle.Once
	stop           chan struct{}
	stopped        chan struct{}
	registered     chan struct{}
	registeredOnce sync.Once
}

// New builds a heartbeat driving the given refresher.
func New(refresher Refresher, opts ...Option) (*Heartbeat, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	b := options.backoff
	if b == nil {
		exp, err := backoff.NewExponential(
			backoff.BaseJump(options.backoffBase),
			backoff.MaxBackoff(options.backoffMax),
		)
		if err != nil {
			return nil, err
		}
		b = exp
	}

	return &Heartbeat{
		refresher:  refresher,
		interval:   options.interval,
		timeout:    options.timeout,
		backoff:    b,
		clock:      options.clock,
		logger:     options.logger,
		once:       lifecycle.NewOnce(),
		stop:       make(chan struct{}),
		stopped:    make(chan struct{}),
		registered: make(chan struct{}, 1),
	}, nil
}

// Start starts refreshing in the background.
func (h *Heartbeat) Start() error {
	return h.once.Start(func() error {
		go h.run()
		return nil
	})
}

// Stop stops refreshing and waits for an ongoing refresh to finish.
func (h *Heartbeat) Stop() error {
	return h.once.Stop(func() error {
		close(h.stop)
		<-h.stopped
		return nil
	})
}

// IsRunning returns whether the heartbeat is refreshing.
func (h *Heartbeat) IsRunning() bool {
	return h.once.IsRunning()
}

// Registered tells the heartbeat that the registration of the local process
// completed. The next beat resets the local membership instead of merely
// refreshing. Only the first call has an effect.
func (h *Heartbeat) Registered() {
	h.registeredOnce.Do(func() {
		h.registered <- struct{}{}
	})
}

func (h *Heartbeat) run() {
	defer close(h.stopped)

	var (
		failures uint
		delay    time.Duration
	)
	for {
		timer := h.clock.Timer(delay)

		var err error
		select {
		case <-h.stop:
			timer.Stop()
			return
		case <-h.registered:
			timer.Stop()
			err = h.beat(h.refresher.ResetLocalMembership)
		case <-timer.C():
			err = h.beat(h.refresher.Refresh)
		}

		if err == nil {
			failures = 0
			delay = h.interval
			continue
		}
		failures++
		delay = h.backoff.Duration(failures)
		if delay > h.interval {
			delay = h.interval
		}
		h.logger.Warn("refresh failed, retrying",
			zap.Uint("failures", failures),
			zap.Duration("retryIn", delay),
			zap.Error(err))
	}
}

func (h *Heartbeat) beat(f func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return f(ctx)
}
