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
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/routingerrors"
	"go.uber.org/zap"
)

func popHeader(h http.Header, n string) string {
	v := h.Get(n)
	h.Del(n)
	return v
}

// handler adapts a command.Handler into a handler for net/http.
type handler struct {
	handler command.Handler
	tracer  opentracing.Tracer
	logger  *zap.Logger
}

func (h handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	defer req.Body.Close()

	res, err := h.callHandler(req, start)
	if err != nil {
		st := routingerrors.FromError(err)
		status, ok := codeToHTTPStatusCode(st.Code())
		if !ok {
			status = http.StatusInternalServerError
		}
		w.Header().Set(ErrorCodeHeader, st.Code().String())
		http.Error(w, st.Message(), status)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(res); err != nil {
		h.logger.Warn("failed to write command result", zap.Error(err))
	}
}

func (h handler) callHandler(req *http.Request, start time.Time) ([]byte, error) {
	payload, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, routingerrors.InvalidArgumentErrorf("cannot read command payload: %v", err)
	}

	cmd := command.Command{
		ID:   popHeader(req.Header, CommandIDHeader),
		Name: popHeader(req.Header, CommandNameHeader),
		Metadata: metadataHeaders.FromHTTPHeaders(req.Header, nil),
	}
	// empty payloads arrive as nil
	if len(payload) > 0 {
		cmd.Payload = payload
	}
	if err := command.Validate(cmd); err != nil {
		return nil, routingerrors.InvalidArgumentErrorf("invalid command: %v", err)
	}

	ctx, cancel, err := parseTTL(req.Context(), popHeader(req.Header, TTLMSHeader))
	if err != nil {
		return nil, err
	}
	defer cancel()

	ctx, span := h.createSpan(ctx, req, cmd, start)
	defer span.Finish()

	res, err := h.invoke(ctx, cmd)
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
		h.logger.Debug("command handler failed",
			zap.String("command", cmd.Name),
			zap.String("commandID", cmd.ID),
			zap.String("caller", req.Header.Get(CallerHeader)),
			zap.Error(err))
	}
	return res, err
}

// parseTTL bounds the context by the TTL of the command, if any.
func parseTTL(ctx context.Context, ttl string) (context.Context, context.CancelFunc, error) {
	if ttl == "" {
		return ctx, func() {}, nil
	}
	ttlms, err := strconv.Atoi(ttl)
	if err != nil || ttlms < 0 {
		return ctx, func() {}, routingerrors.InvalidArgumentErrorf(
			"invalid TTL %q for header %q: must be a non-negative integer", ttl, TTLMSHeader)
	}
	ctx, cancel := context.WithTimeout(ctx, time.Duration(ttlms)*time.Millisecond)
	return ctx, cancel, nil
}

func (h handler) createSpan(ctx context.Context, req *http.Request, cmd command.Command, start time.Time) (context.Context, opentracing.Span) {
	// Extract opentracing etc baggage from headers
	// Annotate the inbound context with a trace span
	tracer := h.tracer
	carrier := opentracing.HTTPHeadersCarrier(req.Header)
	parentSpanCtx, _ := tracer.Extract(opentracing.HTTPHeaders, carrier)
	// parentSpanCtx may be nil, ext.RPCServerOption handles a nil parent
	// gracefully.
	tags := opentracing.Tags{
		"cmdrouter.command_id": cmd.ID,
		"cmdrouter.transport":  transportName,
	}
	span := tracer.StartSpan(
		cmd.Name,
		opentracing.StartTime(start),
		ext.RPCServerOption(parentSpanCtx),
		tags,
	)
	ext.PeerService.Set(span, req.Header.Get(CallerHeader))
	ctx = opentracing.ContextWithSpan(ctx, span)
	return ctx, span
}

// invoke calls the command handler, recovering from panics as errors.
func (h handler) invoke(ctx context.Context, cmd command.Command) (res []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("command handler panicked",
				zap.String("command", cmd.Name),
				zap.String("commandID", cmd.ID),
				zap.Any("panic", r),
				zap.Stack("stack"))
			res, err = nil, routingerrors.UnknownErrorf("command handler for %q panicked: %v", cmd.Name, r)
		}
	}()
	return h.handler.Handle(ctx, cmd)
}
