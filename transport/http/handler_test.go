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

package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/routingerrors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestHandler(h command.HandlerFunc, tracer opentracing.Tracer) handler {
	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}
	return handler{handler: h, tracer: tracer, logger: zap.NewNop()}
}

func commandRequest(headers map[string]string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/commands", bytes.NewBufferString(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestHandlerSuccess(t *testing.T) {
	var got command.Command
	var deadline time.Time
	h := newTestHandler(func(ctx context.Context, cmd command.Command) ([]byte, error) {
		got = cmd
		deadline, _ = ctx.Deadline()
		return []byte("accepted"), nil
	}, nil)

	rw := httptest.NewRecorder()
	start := time.Now()
	h.ServeHTTP(rw, commandRequest(map[string]string{
		CommandIDHeader:        "cmd-1",
		CommandNameHeader:      "OrderCommand",
		TTLMSHeader:            "1000",
		"Cmd-Meta-Routing-Key": "order-42",
	}, "payload"))

	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Equal(t, "accepted", rw.Body.String())
	assert.Equal(t, command.Command{
		ID:       "cmd-1",
		Name:     "OrderCommand",
		Metadata: map[string]string{"routing-key": "order-42"},
		Payload:  []byte("payload"),
	}, got)
	assert.WithinDuration(t, start.Add(time.Second), deadline, 500*time.Millisecond)
}

func TestHandlerFailures(t *testing.T) {
	tests := []struct {
		msg        string
		headers    map[string]string
		err        error
		wantStatus int
		wantCode   string
		wantBody   string
	}{
		{
			msg:        "missing name",
			headers:    map[string]string{CommandIDHeader: "cmd-1"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid-argument",
			wantBody:   "invalid command: missing command name",
		},
		{
			msg:        "missing id and name",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid-argument",
			wantBody:   "invalid command: missing command name, command id",
		},
		{
			msg: "invalid ttl",
			headers: map[string]string{
				CommandIDHeader:   "cmd-1",
				CommandNameHeader: "OrderCommand",
				TTLMSHeader:       "soon",
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid-argument",
			wantBody:   `invalid TTL "soon" for header "Context-TTL-MS": must be a non-negative integer`,
		},
		{
			msg:        "status error",
			headers:    map[string]string{CommandIDHeader: "cmd-1", CommandNameHeader: "OrderCommand"},
			err:        routingerrors.NotFoundErrorf("no handler registered for %q", "OrderCommand"),
			wantStatus: http.StatusNotFound,
			wantCode:   "not-found",
			wantBody:   `no handler registered for "OrderCommand"`,
		},
		{
			msg:        "plain error",
			headers:    map[string]string{CommandIDHeader: "cmd-1", CommandNameHeader: "OrderCommand"},
			err:        errors.New("great sadness"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "unknown",
			wantBody:   "great sadness",
		},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			h := newTestHandler(func(context.Context, command.Command) ([]byte, error) {
				return nil, tt.err
			}, nil)

			rw := httptest.NewRecorder()
			h.ServeHTTP(rw, commandRequest(tt.headers, ""))

			assert.Equal(t, tt.wantStatus, rw.Code)
			assert.Equal(t, tt.wantCode, rw.Header().Get(ErrorCodeHeader))
			assert.Equal(t, tt.wantBody+"\n", rw.Body.String())
		})
	}
}

func TestHandlerSpan(t *testing.T) {
	tracer := mocktracer.New()
	h := newTestHandler(func(ctx context.Context, cmd command.Command) ([]byte, error) {
		assert.NotNil(t, opentracing.SpanFromContext(ctx), "handlers see the server span")
		return nil, errors.New("failed")
	}, tracer)

	parent := tracer.StartSpan("dispatch")
	req := commandRequest(map[string]string{
		CommandIDHeader:   "cmd-1",
		CommandNameHeader: "OrderCommand",
		CallerHeader:      "billing",
	}, "")
	require.NoError(t, tracer.Inject(parent.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(req.Header)))

	h.ServeHTTP(httptest.NewRecorder(), req)

	spans := tracer.FinishedSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "OrderCommand", span.OperationName)
	assert.Equal(t, parent.Context().(mocktracer.MockSpanContext).SpanID, span.ParentID)
	assert.Equal(t, "billing", span.Tag("peer.service"))
	assert.Equal(t, true, span.Tag("error"))
}

func TestHandlerPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	h := newTestHandler(func(context.Context, command.Command) ([]byte, error) {
		panic("great sadness")
	}, nil)
	h.logger = zap.New(core)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, commandRequest(map[string]string{
		CommandIDHeader:   "cmd-1",
		CommandNameHeader: "OrderCommand",
	}, "payload"))

	assert.Equal(t, http.StatusInternalServerError, rw.Code)
	assert.Equal(t, "unknown", rw.Header().Get(ErrorCodeHeader))
	assert.Contains(t, rw.Body.String(), `command handler for "OrderCommand" panicked: great sadness`)
	require.Equal(t, 1, logs.FilterMessage("command handler panicked").Len())
}
