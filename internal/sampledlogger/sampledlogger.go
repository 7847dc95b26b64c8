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

// Package sampledlogger provides a logger that writes at most one entry per
// key in every interval.
package sampledlogger

import (
	"sync"
	"time"

	"go.uber.org/cmdrouter/internal/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SampledLogger drops entries whose key was logged less than an interval
// ago. Entries with distinct keys never suppress each other.
type SampledLogger struct {
	logger      *zap.Logger
	clock       clock.Clock
	logInterval time.Duration

	mu       sync.Mutex
	lastLogs map[string]time.Time
}

// NewSampledLogger creates a SampledLogger writing to logger.
func NewSampledLogger(interval time.Duration, logger *zap.Logger) *SampledLogger {
	return newSampledLogger(interval, logger, clock.NewReal())
}

func newSampledLogger(interval time.Duration, logger *zap.Logger, c clock.Clock) *SampledLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SampledLogger{
		logger:      logger,
		clock:       c,
		logInterval: interval,
		lastLogs:    make(map[string]time.Time),
	}
}

func (sl *SampledLogger) sample(key string) bool {
	now := sl.clock.Now()

	sl.mu.Lock()
	defer sl.mu.Unlock()

	last, ok := sl.lastLogs[key]
	if ok && now.Sub(last) <= sl.logInterval {
		return false
	}
	sl.lastLogs[key] = now

	// Forget keys that could not suppress anything anymore.
	for k, t := range sl.lastLogs {
		if now.Sub(t) > sl.logInterval {
			delete(sl.lastLogs, k)
		}
	}
	return true
}

// log performs rate-limited logging for the given level and message.
func (sl *SampledLogger) log(level zapcore.Level, key, msg string, fields ...zap.Field) {
	if ce := sl.logger.Check(level, msg); ce != nil && sl.sample(key) {
		ce.Write(fields...)
	}
}

// Debug logs a debug-level message with rate limiting.
func (sl *SampledLogger) Debug(key, msg string, fields ...zap.Field) {
	sl.log(zapcore.DebugLevel, key, msg, fields...)
}

// Info logs an info-level message with rate limiting.
func (sl *SampledLogger) Info(key, msg string, fields ...zap.Field) {
	sl.log(zapcore.InfoLevel, key, msg, fields...)
}

// Warn logs a warn-level message with rate limiting.
func (sl *SampledLogger) Warn(key, msg string, fields ...zap.Field) {
	sl.log(zapcore.WarnLevel, key, msg, fields...)
}

// Error logs an error-level message with rate limiting.
func (sl *SampledLogger) Error(key, msg string, fields ...zap.Field) {
	sl.log(zapcore.ErrorLevel, key, msg, fields...)
}
