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

package backoff

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponential(t *testing.T) {
	type backoffAttempt struct {
		msg            string
		giveAttempt    uint
		giveRandResult int64
		wantBackoff    time.Duration
	}
	tests := []struct {
		msg string

		giveBase time.Duration
		giveMin  time.Duration
		giveMax  time.Duration

		attempts []backoffAttempt

		wantErrors []string
	}{
		{
			msg:      "invalid base",
			giveBase: 0,
			wantErrors: []string{
				"invalid base for exponential backoff, need greater than zero",
			},
		},
		{
			msg:      "invalid max & min",
			giveBase: time.Second,
			giveMax:  -1,
			giveMin:  -100,
			wantErrors: []string{
				"invalid min for exponential backoff, need greater than or equal to zero",
				"invalid max for exponential backoff, need greater than or equal to zero",
			},
		},
		{
			msg:      "max less than min",
			giveBase: time.Second,
			giveMax:  time.Millisecond,
			giveMin:  time.Second,
			wantErrors: []string{
				"exponential max value must be greater than min value",
			},
		},
		{
			msg:      "heartbeat retries",
			giveBase: time.Second,
			giveMax:  10 * time.Second,
			giveMin:  500 * time.Millisecond,
			attempts: []backoffAttempt{
				{
					msg:            "first failure, full jitter",
					giveAttempt:    0,
					giveRandResult: int64(time.Second),
					wantBackoff:    1500 * time.Millisecond,
				},
				{
					msg:            "first failure, no jitter",
					giveAttempt:    0,
					giveRandResult: 0,
					wantBackoff:    500 * time.Millisecond,
				},
				{
					msg:            "third failure",
					giveAttempt:    2,
					giveRandResult: int64(4 * time.Second),
					wantBackoff:    4500 * time.Millisecond,
				},
				{
					msg:            "saturates at max",
					giveAttempt:    10,
					giveRandResult: int64(9500 * time.Millisecond),
					wantBackoff:    10 * time.Second,
				},
				{
					msg:            "overflowing attempts saturate at max",
					giveAttempt:    64,
					giveRandResult: int64(9500 * time.Millisecond),
					wantBackoff:    10 * time.Second,
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			randSrc := &mutableRandSrc{}
			exp, err := NewExponential(
				BaseJump(tt.giveBase),
				MinBackoff(tt.giveMin),
				MaxBackoff(tt.giveMax),
				randGenerator(rand.New(randSrc)),
			)
			if len(tt.wantErrors) > 0 {
				require.Error(t, err)
				for _, wantErr := range tt.wantErrors {
					assert.Contains(t, err.Error(), wantErr)
				}
				return
			}
			require.NoError(t, err)
			for _, attempt := range tt.attempts {
				randSrc.val = attempt.giveRandResult
				assert.Equal(t, attempt.wantBackoff, exp.Duration(attempt.giveAttempt), "backoff for %q did not match", attempt.msg)
			}
		})
	}
}

func TestExponentialDefaults(t *testing.T) {
	exp, err := NewExponential()
	require.NoError(t, err)
	for attempt := uint(0); attempt < 20; attempt++ {
		d := exp.Duration(attempt)
		assert.True(t, d >= 0 && d <= time.Minute, "attempt %d backed off %v", attempt, d)
	}
}

// mutableRandSrc returns whatever the test asks for.
type mutableRandSrc struct {
	val int64
}

func (r *mutableRandSrc) Int63() int64 {
	return r.val
}

func (*mutableRandSrc) Seed(int64) {}
