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

package dispatch

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/capability"
	"go.uber.org/cmdrouter/discovery/static"
	"go.uber.org/cmdrouter/router"
	"go.uber.org/cmdrouter/routingerrors"
	transporthttp "go.uber.org/cmdrouter/transport/http"
)

type node struct {
	registration *static.Registration
	router       *router.Router
	bus          *Bus
	inbound      *transporthttp.Inbound
}

// newNode starts a member serving commands and capabilities over HTTP and
// lists it in the given discovery client.
func newNode(t *testing.T, disc *static.Client, instanceID string) *node {
	reg := static.NewRegistration("orders", static.InstanceID(instanceID))
	mode := capability.WithFaultIsolation(capability.NewHTTP())

	r, err := router.New(router.Params{
		Discovery:       disc,
		Registration:    reg,
		RoutingStrategy: command.MetadataRoutingStrategy{},
		Mode:            mode,
	})
	require.NoError(t, err)

	outbound := transporthttp.NewOutbound(transporthttp.OnUnreachable(r.Suspect))
	bus, err := New(Params{Router: r, Transport: outbound})
	require.NoError(t, err)

	inbound := transporthttp.NewInbound("127.0.0.1:0", bus,
		transporthttp.CapabilitiesHandler(capability.DefaultPath, capability.Handler(mode)))
	require.NoError(t, inbound.Start())
	t.Cleanup(func() { assert.NoError(t, inbound.Stop()) })

	addr := inbound.Addr().(*net.TCPAddr)
	reg.Complete(addr.IP.String(), addr.Port)
	disc.Register(reg.Instance())

	return &node{registration: reg, router: r, bus: bus, inbound: inbound}
}

func TestCluster(t *testing.T) {
	ctx := context.Background()
	disc := static.NewClient()
	a := newNode(t, disc, "a")
	b := newNode(t, disc, "b")

	a.bus.Subscribe("OrderCommand", echo("a:"))
	b.bus.Subscribe("BillingCommand", echo("b:"))
	require.NoError(t, a.router.ResetLocalMembership(ctx))
	require.NoError(t, b.router.ResetLocalMembership(ctx))
	assert.Equal(t, 2, a.router.Ring().Len())
	assert.Equal(t, 2, b.router.Ring().Len())

	res, err := a.bus.Dispatch(ctx, command.Command{Name: "BillingCommand", Payload: []byte("1")})
	require.NoError(t, err)
	assert.Equal(t, "b:1", string(res), "commands only b accepts travel to b")

	res, err = b.bus.Dispatch(ctx, command.Command{Name: "OrderCommand", Payload: []byte("2")})
	require.NoError(t, err)
	assert.Equal(t, "a:2", string(res))

	res, err = a.bus.Dispatch(ctx, command.Command{Name: "OrderCommand", Payload: []byte("3")})
	require.NoError(t, err)
	assert.Equal(t, "a:3", string(res))

	_, err = a.bus.Dispatch(ctx, command.Command{Name: "ShippingCommand"})
	assert.True(t, routingerrors.IsNotFound(err), "got %v", err)
}

func TestClusterEvictsUnreachableMembers(t *testing.T) {
	ctx := context.Background()
	disc := static.NewClient()
	a := newNode(t, disc, "a")
	b := newNode(t, disc, "b")

	b.bus.Subscribe("BillingCommand", echo("b:"))
	a.bus.Subscribe("OrderCommand", echo("a:"))
	require.NoError(t, a.router.ResetLocalMembership(ctx))
	require.Equal(t, 2, a.router.Ring().Len())

	require.NoError(t, b.inbound.Stop())

	_, err := a.bus.Dispatch(ctx, command.Command{Name: "BillingCommand"})
	assert.True(t, routingerrors.IsUnavailable(err), "got %v", err)
	assert.Equal(t, 1, a.router.Ring().Len(), "the unreachable member is evicted")

	_, err = a.bus.Dispatch(ctx, command.Command{Name: "BillingCommand"})
	assert.True(t, routingerrors.IsNotFound(err), "got %v", err)

	require.NoError(t, a.router.Refresh(ctx))
	assert.Equal(t, 1, a.router.Ring().Len(), "refreshes leave out members whose capabilities are unreachable")
}
