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

package etcd

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/routingerrors"
)

// fakeEtcd implements the parts of clientv3.KV and clientv3.Lease used
// here. Keys ending with a slash are read as prefixes. A Put is attached to
// the most recently granted lease.
type fakeEtcd struct {
	clientv3.KV
	clientv3.Lease

	mu        sync.Mutex
	data      map[string]string
	keyLease  map[string]clientv3.LeaseID
	nextLease clientv3.LeaseID
	keepAlive map[clientv3.LeaseID]chan *clientv3.LeaseKeepAliveResponse
	failPuts  int
	getErr    error
	revoked   []clientv3.LeaseID
}

func newFakeEtcd() *fakeEtcd {
	return &fakeEtcd{
		data:      make(map[string]string),
		keyLease:  make(map[string]clientv3.LeaseID),
		keepAlive: make(map[clientv3.LeaseID]chan *clientv3.LeaseKeepAliveResponse),
	}
}

func (f *fakeEtcd) Get(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}

	var keys []string
	for k := range f.data {
		if k == key || (strings.HasSuffix(key, "/") && strings.HasPrefix(k, key)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	res := &clientv3.GetResponse{}
	for _, k := range keys {
		res.Kvs = append(res.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(f.data[k])})
	}
	return res, nil
}

func (f *fakeEtcd) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPuts > 0 {
		f.failPuts--
		return nil, errors.New("etcdserver: request timed out")
	}
	f.data[key] = val
	f.keyLease[key] = f.nextLease
	return &clientv3.PutResponse{}, nil
}

func (f *fakeEtcd) Grant(_ context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextLease++
	return &clientv3.LeaseGrantResponse{ID: f.nextLease, TTL: ttl}, nil
}

func (f *fakeEtcd) KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan *clientv3.LeaseKeepAliveResponse)
	f.keepAlive[id] = ch
	go func() {
		<-ctx.Done()
		f.expire(id)
	}()
	return ch, nil
}

func (f *fakeEtcd) Revoke(_ context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error) {
	f.mu.Lock()
	f.revoked = append(f.revoked, id)
	f.mu.Unlock()
	f.expire(id)
	return &clientv3.LeaseRevokeResponse{}, nil
}

// expire drops the lease and every key attached to it.
func (f *fakeEtcd) expire(id clientv3.LeaseID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, l := range f.keyLease {
		if l == id {
			delete(f.data, k)
			delete(f.keyLease, k)
		}
	}
	if ch, ok := f.keepAlive[id]; ok {
		close(ch)
		delete(f.keepAlive, id)
	}
}

func (f *fakeEtcd) put(key, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key          string
		wantService  string
		wantInstance string
		wantOK       bool
	}{
		{key: "/p/orders/a", wantService: "orders", wantInstance: "a", wantOK: true},
		{key: "/p/orders/a/b", wantService: "orders", wantInstance: "a/b", wantOK: true},
		{key: "/p/orders/", wantOK: false},
		{key: "/p/orders", wantOK: false},
		{key: "/other/orders/a", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			service, instance, ok := splitKey("/p", tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantService, service)
			assert.Equal(t, tt.wantInstance, instance)
		})
	}
}

func TestCodec(t *testing.T) {
	instance := discovery.ServiceInstance{
		ServiceID:  "orders",
		InstanceID: "a",
		Host:       "10.0.0.1",
		Port:       8080,
		Metadata:   map[string]string{"contextPath": "/orders"},
	}
	value, err := encodeInstance(instance)
	require.NoError(t, err)
	assert.JSONEq(t, `{"serviceId":"orders","instanceId":"a","host":"10.0.0.1","port":8080,"metadata":{"contextPath":"/orders"}}`, value)

	got, err := decodeInstance(DefaultPrefix, []byte(instanceKey(DefaultPrefix, instance)), []byte(value))
	require.NoError(t, err)
	assert.Equal(t, instance, got)

	got, err = decodeInstance(DefaultPrefix, []byte(DefaultPrefix+"/billing/b"), []byte(value))
	require.NoError(t, err)
	assert.Equal(t, "billing", got.ServiceID, "the key wins over the value")
	assert.Equal(t, "b", got.InstanceID)

	_, err = decodeInstance(DefaultPrefix, []byte(DefaultPrefix+"/orders/a"), []byte("{"))
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	ctx := context.Background()
	etcd := newFakeEtcd()
	etcd.put("/p/orders/a", `{"host":"10.0.0.1","port":80}`)
	etcd.put("/p/orders/b", `{"host":"10.0.0.2","port":80}`)
	etcd.put("/p/orders/broken", `not json`)
	etcd.put("/p/billing/c", `{"host":"10.0.0.3","port":80,"secure":true}`)
	etcd.put("/elsewhere/shipping/d", `{}`)

	client := NewClient(etcd, Prefix("/p"))
	ids, err := client.ServiceIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing", "orders"}, ids)

	instances, err := client.Instances(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []discovery.ServiceInstance{
		{ServiceID: "orders", InstanceID: "a", Host: "10.0.0.1", Port: 80},
		{ServiceID: "orders", InstanceID: "b", Host: "10.0.0.2", Port: 80},
	}, instances, "malformed entries are left out")

	instances, err = client.Instances(ctx, "billing")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "https://10.0.0.3:80", instances[0].URI())
}

func TestClientErrors(t *testing.T) {
	etcd := newFakeEtcd()
	etcd.getErr = errors.New("etcdserver: no leader")
	client := NewClient(etcd)

	_, err := client.ServiceIDs(context.Background())
	assert.True(t, routingerrors.IsUnavailable(err))
	_, err = client.Instances(context.Background(), "orders")
	assert.True(t, routingerrors.IsUnavailable(err))
}

func TestRegistration(t *testing.T) {
	etcd := newFakeEtcd()
	etcd.failPuts = 1
	instance := discovery.ServiceInstance{ServiceID: "orders", InstanceID: "a", Host: "10.0.0.1", Port: 8080}
	r := NewRegistration(etcd, etcd, instance, Prefix("/p"), MaxRetryTime(5*time.Second))

	assert.Empty(t, r.Instance().URI(), "the address is hidden until registered")

	var notified []discovery.ServiceInstance
	r.OnRegistered(func(i discovery.ServiceInstance) { notified = append(notified, i) })

	require.NoError(t, r.Start(), "registration retries failed puts")
	assert.Equal(t, instance, r.Instance())
	assert.Equal(t, []discovery.ServiceInstance{instance}, notified)

	client := NewClient(etcd, Prefix("/p"))
	instances, err := client.Instances(context.Background(), "orders")
	require.NoError(t, err)
	assert.Equal(t, []discovery.ServiceInstance{instance}, instances)

	require.NoError(t, r.Stop())
	instances, err = client.Instances(context.Background(), "orders")
	require.NoError(t, err)
	assert.Empty(t, instances, "stopping revokes the lease")
	assert.Len(t, etcd.revoked, 1)
}

func TestRegistrationRecoversLostLease(t *testing.T) {
	etcd := newFakeEtcd()
	instance := discovery.ServiceInstance{ServiceID: "orders", InstanceID: "a", Host: "10.0.0.1", Port: 8080}
	r := NewRegistration(etcd, etcd, instance, Prefix("/p"))
	require.NoError(t, r.Start())
	defer r.Stop()

	// the keep-alive may not have started yet
	require.Eventually(t, func() bool {
		etcd.mu.Lock()
		defer etcd.mu.Unlock()
		_, ok := etcd.keepAlive[1]
		return ok
	}, time.Second, time.Millisecond)
	etcd.expire(1)

	client := NewClient(etcd, Prefix("/p"))
	require.Eventually(t, func() bool {
		instances, err := client.Instances(context.Background(), "orders")
		return err == nil && len(instances) == 1
	}, 5*time.Second, 10*time.Millisecond, "the instance registers again under a new lease")
}

func TestRegistrationGivesUp(t *testing.T) {
	etcd := newFakeEtcd()
	etcd.failPuts = 1000
	r := NewRegistration(etcd, etcd, discovery.ServiceInstance{ServiceID: "orders", InstanceID: "a"},
		MaxRetryTime(100*time.Millisecond))

	assert.Error(t, r.Start())
	assert.Error(t, r.Stop(), "stopping reports the start failure")
}
