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

package router

import (
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/capability"
	"go.uber.org/cmdrouter/hashring"
	"go.uber.org/cmdrouter/routingerrors"
	"go.uber.org/multierr"
	"go.uber.org/net/metrics"
	"go.uber.org/zap"
)

// DefaultMaxConcurrentQueries bounds the capability queries a refresh issues
// at once.
const DefaultMaxConcurrentQueries = 16

// Listener is notified with every new ring that differs from the one it
// replaces.
type Listener func(*hashring.Ring)

// Params configures a Router.
type Params struct {
	// Discovery lists the candidate members. Required.
	Discovery discovery.Client

	// Registration is the instance this process registered as. Required.
	Registration discovery.Registration

	// RoutingStrategy derives routing keys from commands. Required.
	RoutingStrategy command.RoutingStrategy

	// Mode discovers the capabilities of candidates. Required.
	Mode capability.Mode

	// InstanceFilter excludes instances that never handle commands.
	// Defaults to accepting every instance.
	InstanceFilter discovery.InstanceFilter

	// RingOptions configure every ring the router builds.
	RingOptions []hashring.Option

	// ContextRootMetadata is the instance metadata key holding the path
	// prefix appended to member endpoints. Defaults to
	// discovery.DefaultContextRootMetadata.
	ContextRootMetadata string

	// PreRegistrationEndpoint is the endpoint of the local member while its
	// own address is unknown. It must differ from any real endpoint.
	PreRegistrationEndpoint string

	// MaxConcurrentQueries bounds the capability queries issued at once by a
	// refresh. Defaults to DefaultMaxConcurrentQueries.
	MaxConcurrentQueries int

	// Listeners are notified when the ring changes.
	Listeners []Listener

	Logger *zap.Logger
	Meter  *metrics.Scope
}

func (p Params) validate() (err error) {
	if p.Discovery == nil {
		err = multierr.Append(err, routingerrors.InvalidArgumentErrorf("must provide a `Discovery` client for the router"))
	}
	if p.Registration == nil {
		err = multierr.Append(err, routingerrors.InvalidArgumentErrorf("must provide a `Registration` for the router"))
	}
	if p.RoutingStrategy == nil {
		err = multierr.Append(err, routingerrors.InvalidArgumentErrorf("must provide a `RoutingStrategy` for the router"))
	}
	if p.Mode == nil {
		err = multierr.Append(err, routingerrors.InvalidArgumentErrorf("must provide a capability `Mode` for the router"))
	}
	if p.MaxConcurrentQueries < 0 {
		err = multierr.Append(err, routingerrors.InvalidArgumentErrorf("`MaxConcurrentQueries` must not be negative, got %d", p.MaxConcurrentQueries))
	}
	return err
}
