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

// Package cmdrouterfx provides a command router process as an fx module.
//
//	fx.New(
//		fx.Supply(cfg),
//		fx.Supply(logger),
//		cmdrouterfx.Module,
//		fx.Invoke(func(bus *dispatch.Bus) { ... }),
//	).Run()
package cmdrouterfx

import (
	"context"

	opentracing "github.com/opentracing/opentracing-go"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/capability"
	"go.uber.org/cmdrouter/config"
	"go.uber.org/cmdrouter/dispatch"
	"go.uber.org/cmdrouter/heartbeat"
	"go.uber.org/cmdrouter/router"
	transporthttp "go.uber.org/cmdrouter/transport/http"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/net/metrics"
	"go.uber.org/zap"
)

// Module produces a command bus backed by a consistent hash ring of the
// members of a cluster, and serves the local member's endpoints.
var Module = fx.Options(
	fx.Provide(NewMetrics),
	fx.Provide(ProvideSubstrate),
	fx.Provide(NewRouter),
	fx.Provide(NewBus),
	fx.Provide(NewHeartbeat),
	fx.Invoke(StartInbound),
)

// MetricsResult defines the values produced by NewMetrics.
type MetricsResult struct {
	fx.Out

	Root  *metrics.Root
	Scope *metrics.Scope
}

// NewMetrics produces the metrics registry of the process.
func NewMetrics() MetricsResult {
	root := metrics.New()
	return MetricsResult{Root: root, Scope: root.Scope()}
}

// SubstrateParams defines the dependencies of ProvideSubstrate.
type SubstrateParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Logger    *zap.Logger `optional:"true"`
}

// SubstrateResult defines the values produced by ProvideSubstrate.
type SubstrateResult struct {
	fx.Out

	Substrate Substrate
}

// ProvideSubstrate produces the discovery substrate and withdraws the local
// instance from it on stop.
func ProvideSubstrate(p SubstrateParams) (SubstrateResult, error) {
	s, err := NewSubstrate(p.Config, loggerOrNop(p.Logger))
	if err != nil {
		return SubstrateResult{}, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return SubstrateResult{Substrate: s}, nil
}

// RouterParams defines the dependencies of NewRouter.
type RouterParams struct {
	fx.In

	Config          config.Config
	Substrate       Substrate
	Scope           *metrics.Scope
	RoutingStrategy command.RoutingStrategy `optional:"true"`
	Logger          *zap.Logger             `optional:"true"`
}

// RouterResult defines the values produced by NewRouter.
type RouterResult struct {
	fx.Out

	Router *router.Router
	Mode   capability.Mode
}

// NewRouter produces the command router and the capability mode it
// discovers its peers with.
func NewRouter(p RouterParams) (RouterResult, error) {
	logger := loggerOrNop(p.Logger)
	mode, err := p.Config.Mode(nil, logger)
	if err != nil {
		return RouterResult{}, err
	}
	ringOpts, err := p.Config.Ring.Options()
	if err != nil {
		return RouterResult{}, err
	}

	strategy := p.RoutingStrategy
	if strategy == nil {
		strategy = command.MetadataRoutingStrategy{}
	}

	r, err := router.New(router.Params{
		Discovery:               p.Substrate.Client(),
		Registration:            p.Substrate,
		RoutingStrategy:         strategy,
		Mode:                    mode,
		InstanceFilter:          p.Config.Instances.Filter(),
		RingOptions:             ringOpts,
		ContextRootMetadata:     p.Config.ContextRootMetadata,
		PreRegistrationEndpoint: p.Config.PreRegistrationEndpoint,
		MaxConcurrentQueries:    p.Config.MaxConcurrentQueries,
		Logger:                  logger,
		Meter:                   p.Scope,
	})
	if err != nil {
		return RouterResult{}, err
	}
	return RouterResult{Router: r, Mode: mode}, nil
}

// BusParams defines the dependencies of NewBus.
type BusParams struct {
	fx.In

	Config config.Config
	Router *router.Router
	Logger *zap.Logger        `optional:"true"`
	Tracer opentracing.Tracer `optional:"true"`
}

// BusResult defines the values produced by NewBus.
type BusResult struct {
	fx.Out

	Bus      *dispatch.Bus
	Outbound *transporthttp.Outbound
}

// NewBus produces the command bus and the outbound it delivers remote
// commands with. Members the outbound cannot reach are evicted from the
// ring.
func NewBus(p BusParams) (BusResult, error) {
	logger := loggerOrNop(p.Logger)
	opts := []transporthttp.OutboundOption{
		transporthttp.Caller(p.Config.Service),
		transporthttp.OnUnreachable(p.Router.Suspect),
		transporthttp.Logger(logger),
	}
	if p.Tracer != nil {
		opts = append(opts, transporthttp.Tracer(p.Tracer))
	}
	outbound := transporthttp.NewOutbound(opts...)

	bus, err := dispatch.New(dispatch.Params{
		Router:     p.Router,
		Transport:  outbound,
		LoadFactor: p.Config.LoadFactor,
		Logger:     logger,
	})
	if err != nil {
		return BusResult{}, err
	}
	return BusResult{Bus: bus, Outbound: outbound}, nil
}

// HeartbeatParams defines the dependencies of NewHeartbeat.
type HeartbeatParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Router    *router.Router
	Logger    *zap.Logger `optional:"true"`
}

// NewHeartbeat produces the heartbeat that keeps the ring of the router
// current, running for the lifetime of the application.
func NewHeartbeat(p HeartbeatParams) (*heartbeat.Heartbeat, error) {
	hb, err := heartbeat.New(p.Router, p.Config.HeartbeatOptions(loggerOrNop(p.Logger))...)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return hb.Start()
		},
		OnStop: func(context.Context) error {
			return hb.Stop()
		},
	})
	return hb, nil
}

// StartInboundParams defines the dependencies of StartInbound.
type StartInboundParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Substrate Substrate
	Mode      capability.Mode
	Bus       *dispatch.Bus
	Heartbeat *heartbeat.Heartbeat
	Metrics   *metrics.Root
	Logger    *zap.Logger        `optional:"true"`
	Tracer    opentracing.Tracer `optional:"true"`
}

// StartInbound serves the commands and capabilities endpoints of the local
// member, then publishes it at the address it bound.
func StartInbound(p StartInboundParams) error {
	logger := loggerOrNop(p.Logger)

	serializer, err := p.Config.Capabilities.FilterSerializer()
	if err != nil {
		return err
	}
	capabilities := capability.Handler(p.Mode,
		capability.FilterSerializer(serializer),
		capability.Logger(logger),
	)

	opts := []transporthttp.InboundOption{
		transporthttp.CapabilitiesHandler(p.Config.Capabilities.Path, capabilities),
		transporthttp.ContextRoot(p.Config.ContextRoot),
		transporthttp.Logger(logger),
	}
	if p.Tracer != nil {
		opts = append(opts, transporthttp.Tracer(p.Tracer))
	}
	if p.Config.MetricsPath != "" {
		opts = append(opts, transporthttp.Mount(p.Config.MetricsPath, p.Metrics))
	}
	inbound := transporthttp.NewInbound(p.Config.Listen, p.Bus, opts...)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if err := inbound.Start(); err != nil {
				return err
			}
			host, port, err := p.Config.AdvertisedAddress(inbound.Addr())
			if err == nil {
				err = p.Substrate.Publish(host, port, p.Heartbeat.Registered)
			}
			if err != nil {
				return multierr.Append(err, inbound.Stop())
			}
			logger.Info("Serving commands",
				zap.String("service", p.Config.Service),
				zap.String("host", host),
				zap.Int("port", port))
			return nil
		},
		OnStop: func(context.Context) error {
			return inbound.Stop()
		},
	})
	return nil
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
