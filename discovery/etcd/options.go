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

package etcd

import (
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTTL is the time to live of the registration lease.
	DefaultTTL = 10 * time.Second

	// DefaultTimeout bounds a single request to etcd.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxRetryTime bounds the time spent retrying a registration.
	DefaultMaxRetryTime = time.Minute
)

// ClientOption customizes a Client.
type ClientOption interface {
	applyClient(*Client)
}

// RegistrationOption customizes a Registration.
type RegistrationOption interface {
	applyRegistration(*Registration)
}

type registrationOptionFunc func(*Registration)

func (f registrationOptionFunc) applyRegistration(r *Registration) { f(r) }

// PrefixOption is both a ClientOption and a RegistrationOption.
type PrefixOption struct{ prefix string }

// Prefix sets the key prefix instances live under. Defaults to
// DefaultPrefix.
func Prefix(prefix string) PrefixOption {
	return PrefixOption{prefix: prefix}
}

func (o PrefixOption) applyClient(c *Client) {
	if o.prefix != "" {
		c.prefix = o.prefix
	}
}

func (o PrefixOption) applyRegistration(r *Registration) {
	if o.prefix != "" {
		r.prefix = o.prefix
	}
}

// LoggerOption is both a ClientOption and a RegistrationOption.
type LoggerOption struct{ logger *zap.Logger }

// Logger sets the logger.
func Logger(logger *zap.Logger) LoggerOption {
	return LoggerOption{logger: logger}
}

func (o LoggerOption) applyClient(c *Client)             { c.logger = o.logger }
func (o LoggerOption) applyRegistration(r *Registration) { r.logger = o.logger }

// TTL sets the time to live of the registration lease. etcd rounds it down
// to whole seconds.
func TTL(d time.Duration) RegistrationOption {
	return registrationOptionFunc(func(r *Registration) {
		if d >= time.Second {
			r.ttl = d
		}
	})
}

// Timeout bounds a single request to etcd.
func Timeout(d time.Duration) RegistrationOption {
	return registrationOptionFunc(func(r *Registration) {
		if d > 0 {
			r.timeout = d
		}
	})
}

// MaxRetryTime bounds the time spent retrying a registration. Zero retries
// until stopped.
func MaxRetryTime(d time.Duration) RegistrationOption {
	return registrationOptionFunc(func(r *Registration) {
		r.maxRetry = d
	})
}
