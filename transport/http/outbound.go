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
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/member"
	"go.uber.org/cmdrouter/routingerrors"
	"go.uber.org/zap"
)

// Outbound delivers commands to members.
//
// Commands for the local member are handed to the local handler directly.
// Commands for remote members are POSTed to the commands path of their
// endpoint.
type Outbound struct {
	client      *http.Client
	local       command.Handler
	caller      string
	path        string
	timeout     time.Duration
	unreachable func(member.Member)
	tracer      opentracing.Tracer
	logger      *zap.Logger
}

// NewOutbound builds a new HTTP outbound.
func NewOutbound(opts ...OutboundOption) *Outbound {
	o := &Outbound{
		client:  &http.Client{Transport: newTransport()},
		path:    DefaultCommandsPath,
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt.applyOutbound(o)
	}
	if o.tracer == nil {
		o.tracer = opentracing.GlobalTracer()
	}
	return o
}

// Call delivers the command to the destination and returns the result the
// destination's handler produced.
func (o *Outbound) Call(ctx context.Context, dest member.Member, cmd command.Command) ([]byte, error) {
	if err := command.Validate(cmd); err != nil {
		return nil, routingerrors.InvalidArgumentErrorf("invalid command: %v", err)
	}
	if dest.Local {
		return o.callLocal(ctx, cmd)
	}
	return o.callRemote(ctx, dest, cmd)
}

// CallAsync delivers the command in the background and reports the outcome
// to the callback, which may be nil.
func (o *Outbound) CallAsync(ctx context.Context, dest member.Member, cmd command.Command, callback func([]byte, error)) {
	go func() {
		res, err := o.Call(ctx, dest, cmd)
		if callback != nil {
			callback(res, err)
		}
	}()
}

func (o *Outbound) callLocal(ctx context.Context, cmd command.Command) ([]byte, error) {
	if o.local == nil {
		return nil, routingerrors.UnimplementedErrorf("no local handler for command %q", cmd.Name)
	}
	return o.local.Handle(ctx, cmd)
}

func (o *Outbound) callRemote(ctx context.Context, dest member.Member, cmd command.Command) ([]byte, error) {
	endpoint, ok := dest.ConnectionEndpoint()
	if !ok {
		return nil, routingerrors.InvalidArgumentErrorf("member %v has no usable endpoint", dest)
	}

	start := time.Now()
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	deadline, _ := ctx.Deadline()

	url := strings.TrimSuffix(endpoint.String(), "/") + o.path
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(cmd.Payload))
	if err != nil {
		return nil, routingerrors.InternalErrorf("cannot build request to %v: %v", dest, err)
	}
	req.Header = metadataHeaders.ToHTTPHeaders(cmd.Metadata, nil)
	req.Header.Set(CommandIDHeader, cmd.ID)
	req.Header.Set(CommandNameHeader, cmd.Name)
	req.Header.Set(TTLMSHeader, strconv.FormatInt(int64(deadline.Sub(start)/time.Millisecond), 10))
	if o.caller != "" {
		req.Header.Set(CallerHeader, o.caller)
	}

	ctx, req, span := o.withOpentracingSpan(ctx, req, dest, cmd, start)
	defer span.Finish()

	response, err := o.client.Do(req.WithContext(ctx))
	if err != nil {
		// Workaround borrowed from ctxhttp until
		// https://github.com/golang/go/issues/17711 is resolved.
		select {
		case <-ctx.Done():
			err = ctx.Err()
		default:
		}

		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
		return nil, o.callError(dest, cmd, err, time.Since(start))
	}
	defer response.Body.Close()

	span.SetTag("http.status_code", response.StatusCode)
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, routingerrors.UnavailableErrorf("cannot read response of %v: %v", dest, err)
	}
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return body, nil
	}
	ext.Error.Set(span, true)
	return nil, getErrFromResponse(response, body)
}

func (o *Outbound) callError(dest member.Member, cmd command.Command, err error, elapsed time.Duration) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return routingerrors.DeadlineExceededErrorf(
			"command %q to %v timed out after %v", cmd.Name, dest, elapsed)
	case errors.Is(err, context.Canceled):
		return routingerrors.CancelledErrorf("command %q to %v was cancelled", cmd.Name, dest)
	case isUnreachable(err):
		o.logger.Warn("member unreachable", zap.Stringer("member", dest), zap.Error(err))
		if o.unreachable != nil {
			o.unreachable(dest)
		}
		return routingerrors.UnavailableErrorf("member %v unreachable: %v", dest, err)
	default:
		return routingerrors.UnavailableErrorf("command %q to %v failed: %v", cmd.Name, dest, err)
	}
}

func (o *Outbound) withOpentracingSpan(ctx context.Context, req *http.Request, dest member.Member, cmd command.Command, start time.Time) (context.Context, *http.Request, opentracing.Span) {
	var parent opentracing.SpanContext // ok to be nil
	if parentSpan := opentracing.SpanFromContext(ctx); parentSpan != nil {
		parent = parentSpan.Context()
	}

	span := o.tracer.StartSpan(
		cmd.Name,
		opentracing.StartTime(start),
		opentracing.ChildOf(parent),
		opentracing.Tags{
			"cmdrouter.command_id": cmd.ID,
			"cmdrouter.member":     dest.Name,
			"cmdrouter.transport":  transportName,
		},
	)
	ext.SpanKindRPCClient.Set(span)
	ext.HTTPUrl.Set(span, req.URL.String())
	ctx = opentracing.ContextWithSpan(ctx, span)

	if err := o.tracer.Inject(
		span.Context(),
		opentracing.HTTPHeaders,
		opentracing.HTTPHeadersCarrier(req.Header),
	); err != nil {
		o.logger.Debug("failed to inject span context", zap.Error(err))
	}
	return ctx, req, span
}

// getErrFromResponse reconstructs the status error reported by a remote
// member.
func getErrFromResponse(response *http.Response, body []byte) error {
	code := statusCodeToBestCode(response.StatusCode)
	if header := response.Header.Get(ErrorCodeHeader); header != "" {
		var c routingerrors.Code
		if err := c.UnmarshalText([]byte(header)); err == nil {
			code = c
		}
	}
	message := strings.TrimSuffix(string(body), "\n")
	if message == "" {
		message = http.StatusText(response.StatusCode)
	}
	return routingerrors.Newf(code, "%s", message)
}

// isUnreachable reports whether a request that got no response failed
// because the member is gone: no connection could be established, or the
// connection was closed or reset under the request.
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

// newTransport returns a connection pool owned by a single outbound.
func newTransport() http.RoundTripper {
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		return t.Clone()
	}
	return http.DefaultTransport
}
