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
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/api/member"
	"go.uber.org/cmdrouter/capability/capabilitytest"
	"go.uber.org/cmdrouter/internal/clock"
	"go.uber.org/cmdrouter/routingerrors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var (
	_remote = discovery.ServiceInstance{ServiceID: "orders", InstanceID: "remote", Host: "10.0.0.2", Port: 8080}
	_other  = discovery.ServiceInstance{ServiceID: "orders", InstanceID: "other", Host: "10.0.0.3", Port: 8080}
)

func TestFaultIsolationExpiry(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	delegate := capabilitytest.NewMockMode(mockCtrl)
	fakeClock := clock.NewFake()
	core, logs := observer.New(zap.InfoLevel)
	mode := WithFaultIsolation(delegate,
		IgnoreExpiry(5000*time.Millisecond),
		withClock(fakeClock),
		Logger(zap.New(core)),
	)
	ctx := context.Background()

	clientErr := newClientError(_remote, routingerrors.CodeUnavailable, "connection refused")
	delegate.EXPECT().Capabilities(gomock.Any(), _remote).Return(member.Capabilities{}, false, clientErr)

	caps, ok, err := mode.Capabilities(ctx, _remote)
	require.NoError(t, err, "client errors are swallowed")
	assert.False(t, ok)
	assert.Equal(t, member.Capabilities{}, caps)
	assert.Equal(t, 1, logs.FilterMessage("ignoring member after failed capabilities query").Len())

	// still ignored, the delegate is not called again
	fakeClock.Add(2500 * time.Millisecond)
	_, ok, err = mode.Capabilities(ctx, _remote)
	require.NoError(t, err)
	assert.False(t, ok)

	// expired, queried again
	fakeClock.Add(2501 * time.Millisecond)
	want := member.NewCapabilities(10, command.AcceptAll)
	delegate.EXPECT().Capabilities(gomock.Any(), _remote).Return(want, true, nil)
	caps, ok, err = mode.Capabilities(ctx, _remote)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, caps)
	assert.Equal(t, 0, mode.(*faultIsolation).ignoredCount(), "expired entries are evicted")
}

func TestFaultIsolationOnlyIgnoresFailedCandidate(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	delegate := capabilitytest.NewMockMode(mockCtrl)
	mode := WithFaultIsolation(delegate, withClock(clock.NewFake()))
	ctx := context.Background()

	delegate.EXPECT().Capabilities(gomock.Any(), _remote).
		Return(member.Capabilities{}, false, newClientError(_remote, routingerrors.CodeUnimplemented, "404"))
	delegate.EXPECT().Capabilities(gomock.Any(), _other).
		Return(member.Incapable, true, nil).Times(2)

	_, ok, err := mode.Capabilities(ctx, _remote)
	require.NoError(t, err)
	assert.False(t, ok)

	for i := 0; i < 2; i++ {
		caps, ok, err := mode.Capabilities(ctx, _other)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, member.Incapable, caps, "incapable answers are not failures")
	}
}

func TestFaultIsolationScopedByService(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	delegate := capabilitytest.NewMockMode(mockCtrl)
	mode := WithFaultIsolation(delegate, withClock(clock.NewFake()))
	ctx := context.Background()

	failing := discovery.ServiceInstance{ServiceID: "orders", InstanceID: "1", Host: "10.0.0.8", Port: 80}
	healthy := discovery.ServiceInstance{ServiceID: "billing", InstanceID: "1", Host: "10.0.0.9", Port: 80}
	want := member.NewCapabilities(4, command.AcceptAll)

	delegate.EXPECT().Capabilities(gomock.Any(), failing).
		Return(member.Capabilities{}, false, newClientError(failing, routingerrors.CodeUnavailable, "down"))
	delegate.EXPECT().Capabilities(gomock.Any(), healthy).Return(want, true, nil)

	_, ok, err := mode.Capabilities(ctx, failing)
	require.NoError(t, err)
	assert.False(t, ok)

	caps, ok, err := mode.Capabilities(ctx, healthy)
	require.NoError(t, err)
	assert.True(t, ok, "an instance id shared across services is not ignored")
	assert.Equal(t, want, caps)
}

func TestFaultIsolationOtherErrors(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	delegate := capabilitytest.NewMockMode(mockCtrl)
	mode := WithFaultIsolation(delegate, withClock(clock.NewFake()))

	delegate.EXPECT().Capabilities(gomock.Any(), _remote).
		Return(member.Capabilities{}, false, errors.New("great sadness")).Times(2)

	for i := 0; i < 2; i++ {
		_, _, err := mode.Capabilities(context.Background(), _remote)
		assert.EqualError(t, err, "great sadness", "other errors are not isolated")
	}
}

func TestFaultIsolationBound(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	delegate := capabilitytest.NewMockMode(mockCtrl)
	fakeClock := clock.NewFake()
	mode := WithFaultIsolation(delegate, MaxIgnored(2), withClock(fakeClock))
	fi := mode.(*faultIsolation)

	delegate.EXPECT().Capabilities(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c discovery.ServiceInstance) (member.Capabilities, bool, error) {
			return member.Capabilities{}, false, newClientError(c, routingerrors.CodeUnavailable, "down")
		}).AnyTimes()

	for _, id := range []string{"a", "b", "c"} {
		_, _, err := mode.Capabilities(context.Background(), discovery.ServiceInstance{ServiceID: "orders", InstanceID: id})
		require.NoError(t, err)
		fakeClock.Add(time.Millisecond)
	}

	assert.Equal(t, 2, fi.ignoredCount())
	assert.False(t, fi.isIgnored("orders/a"), "oldest entry was forgotten")
	assert.True(t, fi.isIgnored("orders/b"))
	assert.True(t, fi.isIgnored("orders/c"))
}

func TestFaultIsolationUpdatesDelegate(t *testing.T) {
	mockCtrl := gomock.NewController(t)
	defer mockCtrl.Finish()

	delegate := capabilitytest.NewMockMode(mockCtrl)
	local := discovery.ServiceInstance{ServiceID: "orders", InstanceID: "me"}
	filter := command.NewNameFilter("OrderCommand")
	delegate.EXPECT().UpdateLocalCapabilities(local, 5, filter)

	WithFaultIsolation(delegate).UpdateLocalCapabilities(local, 5, filter)

	delegate.EXPECT().LocalCapabilities().Return(member.NewCapabilities(5, filter), true)
	caps, ok := WithFaultIsolation(delegate).LocalCapabilities()
	assert.True(t, ok)
	assert.Equal(t, member.NewCapabilities(5, filter), caps)
}
