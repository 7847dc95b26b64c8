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
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/api/member"
	"go.uber.org/cmdrouter/internal/sampledlogger"
	"go.uber.org/cmdrouter/routingerrors"
	"go.uber.org/cmdrouter/serialize"
	"go.uber.org/zap"
)

const (
	// _maxResponseBytes bounds the size of a capabilities response.
	_maxResponseBytes = 1 << 20

	// _logInterval is the minimum time between two entries about the same
	// candidate.
	_logInterval = time.Minute
)

// wireCapabilities is the body served by the capabilities endpoint.
type wireCapabilities struct {
	LoadFactor                  int    `json:"loadFactor"`
	SerializedCommandFilter     string `json:"serializedCommandFilter"`
	SerializedCommandFilterType string `json:"serializedCommandFilterType"`
}

type httpMode struct {
	local localRecord

	client         *http.Client
	path           string
	timeout        time.Duration
	contextRootKey string
	serializer     serialize.Serializer
	logger         *zap.Logger
	sampled        *sampledlogger.SampledLogger
}

// NewHTTP returns a mode querying the capabilities endpoint of every remote
// candidate over HTTP.
//
// Candidates that cannot be reached, or that do not serve the endpoint, fail
// with a *ClientError. Candidates that answer too slowly, fail on their side,
// or advertise a filter that cannot be decoded are assumed Incapable.
func NewHTTP(opts ...HTTPOption) Mode {
	m := &httpMode{
		client:         &http.Client{},
		path:           DefaultPath,
		timeout:        DefaultTimeout,
		contextRootKey: discovery.DefaultContextRootMetadata,
		serializer:     serialize.JSON(),
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt.applyHTTP(m)
	}
	m.sampled = sampledlogger.NewSampledLogger(_logInterval, m.logger)
	return m
}

func (m *httpMode) UpdateLocalCapabilities(local discovery.ServiceInstance, loadFactor int, filter command.Filter) {
	m.local.update(local, loadFactor, filter)
}

func (m *httpMode) LocalCapabilities() (member.Capabilities, bool) {
	return m.local.get()
}

func (m *httpMode) Capabilities(ctx context.Context, candidate discovery.ServiceInstance) (member.Capabilities, bool, error) {
	if caps, ok := m.local.lookup(candidate); ok {
		return caps, true, nil
	}

	uri := candidate.URI()
	if uri == "" {
		// not reachable yet
		return member.Capabilities{}, false, nil
	}
	target := uri + candidate.ContextRoot(m.contextRootKey) + m.path
	key := instanceKey(candidate)
	fields := []zap.Field{zap.String("candidate", key), zap.String("url", target)}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return member.Capabilities{}, false, newClientError(candidate, routingerrors.CodeInvalidArgument, "invalid capabilities url %q: %v", target, err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			m.sampled.Info(key, "capabilities query timed out, assuming incapable", append(fields, zap.Error(err))...)
			return member.Incapable, true, nil
		}
		if isUnreachable(err) {
			return member.Capabilities{}, false, newClientError(candidate, routingerrors.CodeUnavailable, "%v", err)
		}
		m.sampled.Warn(key, "capabilities query failed, assuming incapable", append(fields, zap.Error(err))...)
		return member.Incapable, true, nil
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusMethodNotAllowed, http.StatusNotImplemented:
		return member.Capabilities{}, false, newClientError(candidate, routingerrors.CodeUnimplemented, "capabilities endpoint answered %v", res.Status)
	default:
		m.sampled.Warn(key, "capabilities endpoint failed, assuming incapable", append(fields, zap.Int("status", res.StatusCode))...)
		return member.Incapable, true, nil
	}

	var body wireCapabilities
	if err := json.NewDecoder(io.LimitReader(res.Body, _maxResponseBytes)).Decode(&body); err != nil {
		return member.Capabilities{}, false, newClientError(candidate, routingerrors.CodeInvalidArgument, "malformed capabilities response: %v", err)
	}
	if body.SerializedCommandFilterType == "" {
		return member.Capabilities{}, false, newClientError(candidate, routingerrors.CodeInvalidArgument, "malformed capabilities response: missing filter type")
	}

	filter, err := m.serializer.Deserialize(body.SerializedCommandFilter, body.SerializedCommandFilterType)
	if err != nil {
		m.sampled.Warn(key, "cannot decode advertised command filter, assuming incapable",
			append(fields, zap.String("filterType", body.SerializedCommandFilterType), zap.Error(err))...)
		return member.Incapable, true, nil
	}
	return member.NewCapabilities(body.LoadFactor, filter), true, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isUnreachable reports whether no connection could be established at all,
// or the connection was closed or reset before any response.
func isUnreachable(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
