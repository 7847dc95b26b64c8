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
	"sort"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/routingerrors"
	"go.uber.org/zap"
)

var _ discovery.Client = (*Client)(nil)

// Client lists the instances registered in etcd.
type Client struct {
	kv     clientv3.KV
	prefix string
	logger *zap.Logger
}

// NewClient builds a discovery client reading from the given etcd KV,
// usually the KV of an *clientv3.Client.
func NewClient(kv clientv3.KV, opts ...ClientOption) *Client {
	c := &Client{kv: kv, prefix: DefaultPrefix, logger: zap.NewNop()}
	for _, opt := range opts {
		opt.applyClient(c)
	}
	return c
}

// ServiceIDs returns the ids of the services with at least one registered
// instance, sorted.
func (c *Client) ServiceIDs(ctx context.Context) ([]string, error) {
	res, err := c.kv.Get(ctx, c.prefix+"/", clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, routingerrors.UnavailableErrorf("cannot list services under %q: %v", c.prefix, err)
	}

	seen := make(map[string]struct{})
	var ids []string
	for _, kv := range res.Kvs {
		serviceID, _, ok := splitKey(c.prefix, string(kv.Key))
		if !ok {
			continue
		}
		if _, dup := seen[serviceID]; !dup {
			seen[serviceID] = struct{}{}
			ids = append(ids, serviceID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Instances returns the registered instances of the service. Malformed
// entries are logged and left out.
func (c *Client) Instances(ctx context.Context, serviceID string) ([]discovery.ServiceInstance, error) {
	res, err := c.kv.Get(ctx, serviceKey(c.prefix, serviceID), clientv3.WithPrefix())
	if err != nil {
		return nil, routingerrors.UnavailableErrorf("cannot list instances of %q: %v", serviceID, err)
	}

	instances := make([]discovery.ServiceInstance, 0, len(res.Kvs))
	for _, kv := range res.Kvs {
		instance, err := decodeInstance(c.prefix, kv.Key, kv.Value)
		if err != nil {
			c.logger.Warn("skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}
