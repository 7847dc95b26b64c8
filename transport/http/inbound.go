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
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/pkg/lifecycle"
	"go.uber.org/zap"
)

// Inbound serves the endpoints a member exposes to the rest of the cluster:
// the commands endpoint and, optionally, the capabilities endpoint.
type Inbound struct {
	addr             string
	handler          command.Handler
	path             string
	contextRoot      string
	capabilitiesPath string
	capabilities     http.Handler
	mounts           []mount
	tracer           opentracing.Tracer
	logger           *zap.Logger

	once     *lifecycle.Once
	router   *mux.Router
	server   *http.Server
	listener net.Listener
}

type mount struct {
	path    string
	handler http.Handler
}

// NewInbound builds a new HTTP inbound that listens on the given address and
// hands received commands to h.
func NewInbound(addr string, h command.Handler, opts ...InboundOption) *Inbound {
	i := &Inbound{
		addr:    addr,
		handler: h,
		path:    DefaultCommandsPath,
		logger:  zap.NewNop(),
		once:    lifecycle.NewOnce(),
	}
	for _, opt := range opts {
		opt.applyInbound(i)
	}
	if i.tracer == nil {
		i.tracer = opentracing.GlobalTracer()
	}
	i.router = i.routes()
	return i
}

func (i *Inbound) routes() *mux.Router {
	router := mux.NewRouter()
	routes := router
	if i.contextRoot != "" {
		routes = router.PathPrefix(i.contextRoot).Subrouter()
	}

	routes.Handle(i.path, handler{
		handler: i.handler,
		tracer:  i.tracer,
		logger:  i.logger,
	}).Methods(http.MethodPost)
	if i.capabilities != nil {
		routes.Handle(i.capabilitiesPath, i.capabilities)
	}
	for _, m := range i.mounts {
		router.Handle(m.path, m.handler)
	}
	return router
}

// Handler returns the routes of the inbound, for mounting in another
// server.
func (i *Inbound) Handler() http.Handler {
	return i.router
}

// Start starts serving on the address of the inbound.
func (i *Inbound) Start() error {
	return i.once.Start(i.start)
}

func (i *Inbound) start() error {
	listener, err := net.Listen("tcp", i.addr)
	if err != nil {
		return err
	}
	i.listener = listener
	i.server = &http.Server{Handler: i.router}

	go func() {
		if err := i.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			i.logger.Error("inbound stopped serving", zap.Error(err))
		}
	}()
	i.logger.Info("inbound started", zap.Stringer("addr", listener.Addr()))
	return nil
}

// Stop stops serving, waiting for in-flight commands to complete.
func (i *Inbound) Stop() error {
	return i.once.Stop(i.stop)
}

func (i *Inbound) stop() error {
	if i.server == nil {
		return nil
	}
	return i.server.Shutdown(context.Background())
}

// IsRunning returns whether the inbound is serving.
func (i *Inbound) IsRunning() bool {
	return i.once.IsRunning()
}

// Addr is the address on which the server is listening. Returns nil if Start
// has not been called yet.
func (i *Inbound) Addr() net.Addr {
	if i.listener == nil {
		return nil
	}
	return i.listener.Addr()
}
