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
	"net/http"
	"time"

	"go.uber.org/cmdrouter/serialize"
	"go.uber.org/zap"
)

const (
	// DefaultPath is the path of the capabilities endpoint, relative to the
	// context root of a member.
	DefaultPath = "/member-capabilities"

	// DefaultTimeout bounds a single remote capabilities query.
	DefaultTimeout = 5 * time.Second
)

// HTTPOption customizes the behavior of the HTTP mode.
type HTTPOption interface {
	applyHTTP(*httpMode)
}

// HandlerOption customizes the capabilities endpoint.
type HandlerOption interface {
	applyHandler(*handler)
}

// FaultIsolationOption customizes fault isolation.
type FaultIsolationOption interface {
	applyFaultIsolation(*faultIsolation)
}

type httpOptionFunc func(*httpMode)

func (f httpOptionFunc) applyHTTP(m *httpMode) { f(m) }

type faultIsolationOptionFunc func(*faultIsolation)

func (f faultIsolationOptionFunc) applyFaultIsolation(m *faultIsolation) { f(m) }

// LoggerOption is an option that applies to every component of this package.
type LoggerOption struct{ logger *zap.Logger }

// Logger sets the logger. Defaults to a no-op logger.
func Logger(logger *zap.Logger) LoggerOption {
	return LoggerOption{logger: logger}
}

func (o LoggerOption) applyHTTP(m *httpMode)                 { m.logger = o.logger }
func (o LoggerOption) applyHandler(h *handler)               { h.logger = o.logger }
func (o LoggerOption) applyFaultIsolation(m *faultIsolation) { m.logger = o.logger }

// SerializerOption applies to both sides of the capabilities exchange.
type SerializerOption struct{ serializer serialize.Serializer }

// FilterSerializer sets the serializer used for command filters on the wire.
// Defaults to serialize.JSON.
func FilterSerializer(s serialize.Serializer) SerializerOption {
	return SerializerOption{serializer: s}
}

func (o SerializerOption) applyHTTP(m *httpMode)   { m.serializer = o.serializer }
func (o SerializerOption) applyHandler(h *handler) { h.serializer = o.serializer }

// HTTPClient sets the client used for capabilities queries.
func HTTPClient(client *http.Client) HTTPOption {
	return httpOptionFunc(func(m *httpMode) {
		m.client = client
	})
}

// Path sets the path of the remote capabilities endpoint. Defaults to
// DefaultPath.
func Path(path string) HTTPOption {
	return httpOptionFunc(func(m *httpMode) {
		m.path = path
	})
}

// Timeout bounds every remote query. Defaults to DefaultTimeout.
func Timeout(d time.Duration) HTTPOption {
	return httpOptionFunc(func(m *httpMode) {
		m.timeout = d
	})
}

// ContextRootMetadata sets the instance metadata key holding the path prefix
// of remote members. Defaults to discovery.DefaultContextRootMetadata.
func ContextRootMetadata(key string) HTTPOption {
	return httpOptionFunc(func(m *httpMode) {
		m.contextRootKey = key
	})
}

// IgnoreExpiry sets how long a failed candidate is ignored. Defaults to one
// minute.
func IgnoreExpiry(d time.Duration) FaultIsolationOption {
	return faultIsolationOptionFunc(func(m *faultIsolation) {
		m.expiry = d
	})
}

// MaxIgnored bounds the number of candidates ignored at once. When the bound
// is reached the oldest entry is forgotten. Defaults to 1024.
func MaxIgnored(n int) FaultIsolationOption {
	return faultIsolationOptionFunc(func(m *faultIsolation) {
		m.bound = n
	})
}
