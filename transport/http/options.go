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
	"net/http"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/member"
	"go.uber.org/zap"
)

// OutboundOption customizes the behavior of an HTTP outbound.
type OutboundOption interface {
	applyOutbound(*Outbound)
}

// InboundOption customizes the behavior of an HTTP inbound.
type InboundOption interface {
	applyInbound(*Inbound)
}

type outboundOptionFunc func(*Outbound)

func (f outboundOptionFunc) applyOutbound(o *Outbound) { f(o) }

type inboundOptionFunc func(*Inbound)

func (f inboundOptionFunc) applyInbound(i *Inbound) { f(i) }

// CommandsPathOption is both an OutboundOption and an InboundOption.
type CommandsPathOption struct{ path string }

// CommandsPath is the path at which members accept commands, relative to
// their endpoint. Defaults to DefaultCommandsPath. Inbounds and outbounds of
// a cluster must agree on it.
func CommandsPath(path string) CommandsPathOption {
	return CommandsPathOption{path: normalizePath(path)}
}

func (o CommandsPathOption) applyOutbound(out *Outbound) {
	if o.path != "" {
		out.path = o.path
	}
}

func (o CommandsPathOption) applyInbound(i *Inbound) {
	if o.path != "" {
		i.path = o.path
	}
}

// TracerOption is both an OutboundOption and an InboundOption.
type TracerOption struct{ tracer opentracing.Tracer }

// Tracer configures a tracer. Defaults to the global tracer.
func Tracer(tracer opentracing.Tracer) TracerOption {
	return TracerOption{tracer: tracer}
}

func (o TracerOption) applyOutbound(out *Outbound) { out.tracer = o.tracer }
func (o TracerOption) applyInbound(i *Inbound)     { i.tracer = o.tracer }

// LoggerOption is both an OutboundOption and an InboundOption.
type LoggerOption struct{ logger *zap.Logger }

// Logger configures a logger.
func Logger(logger *zap.Logger) LoggerOption {
	return LoggerOption{logger: logger}
}

func (o LoggerOption) applyOutbound(out *Outbound) { out.logger = o.logger }
func (o LoggerOption) applyInbound(i *Inbound)     { i.logger = o.logger }

// LocalHandler handles commands whose destination is the local member
// without going through the network.
func LocalHandler(h command.Handler) OutboundOption {
	return outboundOptionFunc(func(o *Outbound) {
		o.local = h
	})
}

// Client specifies the HTTP client used for remote calls.
func Client(client *http.Client) OutboundOption {
	return outboundOptionFunc(func(o *Outbound) {
		if client != nil {
			o.client = client
		}
	})
}

// Caller is the name of the calling service, sent with every command.
func Caller(name string) OutboundOption {
	return outboundOptionFunc(func(o *Outbound) {
		o.caller = name
	})
}

// Timeout bounds calls whose context carries no deadline. Defaults to
// DefaultTimeout.
func Timeout(d time.Duration) OutboundOption {
	return outboundOptionFunc(func(o *Outbound) {
		if d > 0 {
			o.timeout = d
		}
	})
}

// OnUnreachable is called with every remote member the outbound fails to
// connect to.
func OnUnreachable(f func(member.Member)) OutboundOption {
	return outboundOptionFunc(func(o *Outbound) {
		o.unreachable = f
	})
}

// CapabilitiesHandler mounts the given handler, usually built with
// capability.Handler, at the given path.
func CapabilitiesHandler(path string, h http.Handler) InboundOption {
	return inboundOptionFunc(func(i *Inbound) {
		i.capabilitiesPath = normalizePath(path)
		i.capabilities = h
	})
}

// ContextRoot mounts every route of the inbound under the given path prefix.
func ContextRoot(root string) InboundOption {
	return inboundOptionFunc(func(i *Inbound) {
		i.contextRoot = normalizePath(root)
	})
}

func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

// Mount serves an additional handler at the given path. Mounted paths are
// not placed under the context root.
func Mount(path string, h http.Handler) InboundOption {
	return inboundOptionFunc(func(i *Inbound) {
		i.mounts = append(i.mounts, mount{path: normalizePath(path), handler: h})
	})
}
