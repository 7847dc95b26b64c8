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

package static

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/cmdrouter/api/discovery"
)

func TestClient(t *testing.T) {
	ctx := context.Background()
	a := discovery.ServiceInstance{ServiceID: "orders", InstanceID: "a", Host: "10.0.0.1", Port: 80}
	b := discovery.ServiceInstance{ServiceID: "orders", InstanceID: "b", Host: "10.0.0.2", Port: 80}
	c := discovery.ServiceInstance{ServiceID: "billing", InstanceID: "c", Host: "10.0.0.3", Port: 80}

	client := NewClient(a, b, c)
	ids, err := client.ServiceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "orders"}, ids)

	instances, err := client.Instances(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []discovery.ServiceInstance{a, b}, instances)

	moved := a
	moved.Host = "10.0.0.9"
	client.Register(moved)
	instances, _ = client.Instances(ctx, "orders")
	assert.Equal(t, []discovery.ServiceInstance{moved, b}, instances, "re-registering replaces the instance")

	assert.True(t, client.Deregister("orders", "a"))
	assert.False(t, client.Deregister("orders", "a"))
	assert.True(t, client.Deregister("billing", "c"))

	ids, _ = client.ServiceIDs(ctx)
	assert.Equal(t, []string{"orders"}, ids, "services without instances disappear")

	instances, _ = client.Instances(ctx, "unknown")
	assert.Empty(t, instances)
}

func TestClientInstancesAreCopies(t *testing.T) {
	client := NewClient(discovery.ServiceInstance{ServiceID: "orders", InstanceID: "a"})
	instances, _ := client.Instances(context.Background(), "orders")
	instances[0].InstanceID = "mutated"

	instances, _ = client.Instances(context.Background(), "orders")
	assert.Equal(t, "a", instances[0].InstanceID)
}

func TestRegistration(t *testing.T) {
	r := NewRegistration("orders", InstanceID("local"), Metadata("contextPath", "/orders"))
	assert.False(t, r.Completed())
	assert.Equal(t, discovery.ServiceInstance{
		ServiceID:  "orders",
		InstanceID: "local",
		Metadata:   map[string]string{"contextPath": "/orders"},
	}, r.Instance())

	var early []discovery.ServiceInstance
	r.OnComplete(func(i discovery.ServiceInstance) { early = append(early, i) })

	r.Complete("10.0.0.1", 8080)
	r.Complete("10.0.0.2", 9090)
	assert.True(t, r.Completed())
	require.Len(t, early, 1, "listeners fire once")
	assert.Equal(t, "http://10.0.0.1:8080", early[0].URI())

	var late []discovery.ServiceInstance
	r.OnComplete(func(i discovery.ServiceInstance) { late = append(late, i) })
	require.Len(t, late, 1, "late listeners fire immediately")
	assert.Equal(t, r.Instance(), late[0])
}

func TestRegistrationDefaults(t *testing.T) {
	r := NewRegistration("orders", Secure())
	i := r.Instance()
	assert.NotEmpty(t, i.InstanceID, "instance ids default to random ids")
	assert.NotEqual(t, i.InstanceID, NewRegistration("orders").Instance().InstanceID)

	r.Complete("example.com", 443)
	assert.Equal(t, "https://example.com:443", r.Instance().URI())

	i.Metadata = map[string]string{"x": "y"}
	assert.Nil(t, r.Instance().Metadata, "instances are copies")
}
