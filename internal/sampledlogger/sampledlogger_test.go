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

package sampledlogger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/cmdrouter/internal/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSampledLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := clock.NewFake()
	sl := newSampledLogger(time.Minute, zap.New(core), c)

	sl.Warn("a", "first")
	sl.Warn("a", "dropped")
	sl.Info("b", "other key")
	assert.Equal(t, 2, logs.Len())

	c.Add(30 * time.Second)
	sl.Error("a", "still dropped")
	assert.Equal(t, 2, logs.Len())

	c.Add(31 * time.Second)
	sl.Debug("a", "after interval", zap.Int("n", 1))
	assert.Equal(t, 3, logs.Len())

	entries := logs.AllUntimed()
	assert.Equal(t, "first", entries[0].Message)
	assert.Equal(t, "other key", entries[1].Message)
	assert.Equal(t, "after interval", entries[2].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[2].Level)
}

func TestSampledLoggerDisabledLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sl := newSampledLogger(time.Minute, zap.New(core), clock.NewFake())

	sl.Debug("a", "filtered by level")
	sl.Warn("a", "not suppressed by the filtered entry")
	assert.Equal(t, 1, logs.Len())
}

func TestSampledLoggerForgetsOldKeys(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	c := clock.NewFake()
	sl := newSampledLogger(time.Minute, zap.New(core), c)
	sl.Warn("a", "x")
	sl.Warn("b", "x")
	c.Add(2 * time.Minute)
	sl.Warn("c", "x")
	assert.Equal(t, 3, logs.Len())

	sl.mu.Lock()
	defer sl.mu.Unlock()
	assert.Len(t, sl.lastLogs, 1, "keys older than the interval are forgotten")
	assert.Contains(t, sl.lastLogs, "c")
}

func TestNewSampledLoggerNilLogger(t *testing.T) {
	sl := NewSampledLogger(time.Minute, nil)
	assert.NotPanics(t, func() { sl.Warn("a", "goes nowhere") })
}
