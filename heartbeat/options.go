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
	"time"

	"go.uber.org/cmdrouter/internal/backoff"
	"go.uber.org/cmdrouter/internal/clock"
	"go.uber.org/zap"
)

// Option customizes a Heartbeat.
type Option func(*options)

type options struct {
	interval    time.Duration
	timeout     time.Duration
	backoffBase time.Duration
	backoffMax  time.Duration
	backoff     backoff.Backoff
	clock       clock.Clock
	logger      *zap.Logger
}

func defaultOptions() options {
	return options{
		interval:    DefaultInterval,
		timeout:     DefaultTimeout,
		backoffBase: 100 * time.Millisecond,
		backoffMax:  DefaultInterval,
		clock:       clock.NewReal(),
		logger:      zap.NewNop(),
	}
}

// Interval sets the time between two successful refreshes.
func Interval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// Timeout bounds a single refresh.
func Timeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// RetryBackoff configures the exponential backoff between failed refreshes.
// Retries never wait longer than the interval.
func RetryBackoff(base, max time.Duration) Option {
	return func(o *options) {
		o.backoffBase = base
		o.backoffMax = max
	}
}

// Logger sets the logger of the heartbeat.
func Logger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func withBackoff(b backoff.Backoff) Option {
	return func(o *options) {
		o.backoff = b
	}
}

func withClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}
