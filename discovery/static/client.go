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
	"sort"
	"sync"

	"go.uber.org/cmdrouter/api/discovery"
)

var _ discovery.Client = (*Client)(nil)

// Client is a discovery client over a fixed, or manually maintained, list of
// instances.
type Client struct {
	mu        sync.RWMutex
	instances map[string][]discovery.ServiceInstance
}

// NewClient builds a client listing the given instances.
func NewClient(instances ...discovery.ServiceInstance) *Client {
	c := &Client{instances: make(map[string][]discovery.ServiceInstance)}
	for _, i := range instances {
		c.add(i)
	}
	return c
}

// ServiceIDs returns the ids of the services with at least one instance,
// sorted.
func (c *Client) ServiceIDs(context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.instances))
	for id := range c.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Instances returns the instances of the given service in the order they
// were registered.
func (c *Client) Instances(_ context.Context, serviceID string) ([]discovery.ServiceInstance, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]discovery.ServiceInstance(nil), c.instances[serviceID]...), nil
}

// Register adds an instance, replacing any instance of the same service
// with the same instance id.
func (c *Client) Register(instance discovery.ServiceInstance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.add(instance)
}

// Deregister removes an instance. It returns false if the instance was not
// registered.
func (c *Client) Deregister(serviceID, instanceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	instances := c.instances[serviceID]
	for ix, i := range instances {
		if i.InstanceID != instanceID {
			continue
		}
		instances = append(instances[:ix:ix], instances[ix+1:]...)
		if len(instances) == 0 {
			delete(c.instances, serviceID)
		} else {
			c.instances[serviceID] = instances
		}
		return true
	}
	return false
}

func (c *Client) add(instance discovery.ServiceInstance) {
	instances := c.instances[instance.ServiceID]
	for ix, i := range instances {
		if instance.InstanceID != "" && i.InstanceID == instance.InstanceID {
			instances[ix] = instance
			return
		}
	}
	c.instances[instance.ServiceID] = append(instances, instance)
}
