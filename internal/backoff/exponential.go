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

// Package backoff computes how long to wait between failed attempts to reach
// the discovery substrate.
package backoff

import (
	"errors"
	"math/rand"
	"time"

	"go.uber.org/multierr"
)

// Backoff determines how long to wait after a number of consecutive failed
// attempts.
type Backoff interface {
	Duration(attempts uint) time.Duration
}

// ExponentialOption configures an exponential backoff.
type ExponentialOption func(*exponentialOptions)

type exponentialOptions struct {
	base, min, max time.Duration
	rand           *rand.Rand
	minMaxDiff     int64
}

func (e exponentialOptions) validate() (err error) {
	if e.base <= 0 {
		err = multierr.Append(err, errors.New("invalid base for exponential backoff, need greater than zero"))
	}
	if e.min < 0 {
		err = multierr.Append(err, errors.New("invalid min for exponential backoff, need greater than or equal to zero"))
	}
	if e.max < 0 {
		err = multierr.Append(err, errors.New("invalid max for exponential backoff, need greater than or equal to zero"))
	}
	if e.max < e.min {
		err = multierr.Append(err, errors.New("exponential max value must be greater than min value"))
	}
	return err
}

func defaultExponentialOptions() exponentialOptions {
	return exponentialOptions{
		base: 100 * time.Millisecond,
		max:  time.Minute,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// BaseJump sets the duration the backoff doubles from.
func BaseJump(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.base = t
	}
}

// MaxBackoff sets absolute max time that will ever be returned for a backoff.
func MaxBackoff(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.max = t
	}
}

// MinBackoff sets absolute min time that will ever be returned for a backoff.
func MinBackoff(t time.Duration) ExponentialOption {
	return func(options *exponentialOptions) {
		options.min = t
	}
}

func randGenerator(rand *rand.Rand) ExponentialOption {
	return func(options *exponentialOptions) {
		options.rand = rand
	}
}

// Exponential is a "full jitter" exponential backoff bounded to the closed
// interval [Min, Max].
//
// Exponential is not safe for concurrent use; every retry loop should own its
// instance.
type Exponential struct {
	opts exponentialOptions
}

var _ Backoff = (*Exponential)(nil)

// NewExponential returns a new exponential backoff.
func NewExponential(opts ...ExponentialOption) (*Exponential, error) {
	options := defaultExponentialOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if err := options.validate(); err != nil {
		return nil, err
	}
	options.minMaxDiff = options.max.Nanoseconds() - options.min.Nanoseconds()

	return &Exponential{opts: options}, nil
}

// Duration takes an attempt number and returns the duration the caller should
// wait.
func (e *Exponential) Duration(attempts uint) time.Duration {
	minlessBackoff := (1 << attempts) * e.opts.base.Nanoseconds()

	// the shift overflowed or passed the max; both saturate at max
	if minlessBackoff > e.opts.minMaxDiff || minlessBackoff <= 0 {
		minlessBackoff = e.opts.minMaxDiff
	}

	return e.opts.min + time.Duration(e.opts.rand.Int63n(minlessBackoff+1))
}
