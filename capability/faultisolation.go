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

package capability

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/api/member"
	"go.uber.org/cmdrouter/internal/clock"
	"go.uber.org/zap"
)

const (
	_defaultIgnoreExpiry = time.Minute
	_defaultMaxIgnored   = 1024
)

type faultIsolation struct {
	delegate Mode
	expiry   time.Duration
	bound    int
	clock    clock.Clock
	logger   *zap.Logger

	mu sync.Mutex
	// ignored maps candidates to the time their query last failed.
	ignored map[string]time.Time
}

// WithFaultIsolation decorates a mode so that a candidate whose query fails
// with a *ClientError is ignored for a while: its capabilities are reported
// unknown without querying it again until the entry expires.
//
// Failures are logged and swallowed, so the decorated mode never returns an
// error for them.
func WithFaultIsolation(delegate Mode, opts ...FaultIsolationOption) Mode {
	m := &faultIsolation{
		delegate: delegate,
		expiry:   _defaultIgnoreExpiry,
		bound:    _defaultMaxIgnored,
		clock:    clock.NewReal(),
		logger:   zap.NewNop(),
		ignored:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt.applyFaultIsolation(m)
	}
	return m
}

// withClock swaps the clock measuring expiry.
func withClock(c clock.Clock) FaultIsolationOption {
	return faultIsolationOptionFunc(func(m *faultIsolation) {
		m.clock = c
	})
}

func (m *faultIsolation) UpdateLocalCapabilities(local discovery.ServiceInstance, loadFactor int, filter command.Filter) {
	m.delegate.UpdateLocalCapabilities(local, loadFactor, filter)
}

func (m *faultIsolation) LocalCapabilities() (member.Capabilities, bool) {
	return m.delegate.LocalCapabilities()
}

func (m *faultIsolation) Capabilities(ctx context.Context, candidate discovery.ServiceInstance) (member.Capabilities, bool, error) {
	key := instanceKey(candidate)
	if m.isIgnored(key) {
		return member.Capabilities{}, false, nil
	}

	caps, ok, err := m.delegate.Capabilities(ctx, candidate)
	if err == nil {
		return caps, ok, nil
	}

	var ce *ClientError
	if !errors.As(err, &ce) {
		return member.Capabilities{}, false, err
	}
	m.ignore(key)
	m.logger.Warn("ignoring member after failed capabilities query",
		zap.String("candidate", key),
		zap.Duration("expiry", m.expiry),
		zap.Error(err))
	return member.Capabilities{}, false, nil
}

func (m *faultIsolation) isIgnored(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	failedAt, ok := m.ignored[key]
	if !ok {
		return false
	}
	if m.clock.Now().Sub(failedAt) < m.expiry {
		return true
	}
	delete(m.ignored, key)
	return false
}

func (m *faultIsolation) ignore(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ignored[key]; !ok && m.bound > 0 && len(m.ignored) >= m.bound {
		m.evictOldest()
	}
	m.ignored[key] = m.clock.Now()
}

// evictOldest must be called with mu held.
func (m *faultIsolation) evictOldest() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for k, t := range m.ignored {
		if !found || t.Before(oldest) {
			oldestKey, oldest, found = k, t, true
		}
	}
	if found {
		delete(m.ignored, oldestKey)
	}
}

// ignoredCount returns the number of candidates currently ignored, expired
// entries included.
func (m *faultIsolation) ignoredCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ignored)
}
