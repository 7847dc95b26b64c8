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
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/pkg/lifecycle"
	"go.uber.org/zap"
)

var _ discovery.Registration = (*Registration)(nil)

// Registration keeps the local instance registered in etcd under a lease,
// registering again whenever the lease is lost.
//
// Until the first registration succeeds, Instance reports the instance
// without its address, so that the router treats the local member as not
// yet registered.
type Registration struct {
	kv       clientv3.KV
	lease    clientv3.Lease
	prefix   string
	ttl      time.Duration
	timeout  time.Duration
	maxRetry time.Duration
	logger   *zap.Logger

	once   *lifecycle.Once
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	instance   discovery.ServiceInstance
	registered bool
	leaseID    clientv3.LeaseID
	listeners  []func(discovery.ServiceInstance)
}

// NewRegistration builds a registration of the given instance. It registers
// nothing until started.
func NewRegistration(kv clientv3.KV, lease clientv3.Lease, instance discovery.ServiceInstance, opts ...RegistrationOption) *Registration {
	r := &Registration{
		kv:       kv,
		lease:    lease,
		prefix:   DefaultPrefix,
		ttl:      DefaultTTL,
		timeout:  DefaultTimeout,
		maxRetry: DefaultMaxRetryTime,
		logger:   zap.NewNop(),
		once:     lifecycle.NewOnce(),
		done:     make(chan struct{}),
		instance: instance,
	}
	for _, opt := range opts {
		opt.applyRegistration(r)
	}
	return r
}

// Instance returns the registered instance. Its host and port are empty
// until the first registration succeeds.
func (r *Registration) Instance() discovery.ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance := r.instance
	if !r.registered {
		instance.Host = ""
		instance.Port = 0
	}
	return instance
}

// OnRegistered registers a function called with the instance after the
// first successful registration. It is called immediately if that already
// happened.
func (r *Registration) OnRegistered(f func(discovery.ServiceInstance)) {
	r.mu.Lock()
	if !r.registered {
		r.listeners = append(r.listeners, f)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	f(r.Instance())
}

// Start registers the instance, retrying until the retry time runs out,
// then keeps the lease alive in the background.
func (r *Registration) Start() error {
	return r.once.Start(func() error {
		ctx, cancel := context.WithCancel(context.Background())
		if err := r.register(ctx); err != nil {
			cancel()
			return err
		}
		r.cancel = cancel
		go r.keepAlive(ctx)
		return nil
	})
}

// Stop stops keeping the lease alive and revokes it, removing the instance
// from etcd.
func (r *Registration) Stop() error {
	return r.once.Stop(func() error {
		r.cancel()
		<-r.done

		r.mu.RLock()
		leaseID := r.leaseID
		r.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		_, err := r.lease.Revoke(ctx, leaseID)
		return err
	})
}

func (r *Registration) register(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = r.maxRetry

	r.mu.RLock()
	instance := r.instance
	r.mu.RUnlock()

	key := instanceKey(r.prefix, instance)
	value, err := encodeInstance(instance)
	if err != nil {
		return err
	}

	var leaseID clientv3.LeaseID
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		grant, err := r.lease.Grant(attemptCtx, int64(r.ttl/time.Second))
		if err != nil {
			r.logger.Warn("cannot grant lease, retrying", zap.Error(err))
			return err
		}
		if _, err := r.kv.Put(attemptCtx, key, value, clientv3.WithLease(grant.ID)); err != nil {
			r.logger.Warn("cannot register instance, retrying", zap.String("key", key), zap.Error(err))
			return err
		}
		leaseID = grant.ID
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return err
	}

	r.mu.Lock()
	r.leaseID = leaseID
	first := !r.registered
	r.registered = true
	listeners := r.listeners
	r.listeners = nil
	r.mu.Unlock()

	r.logger.Info("registered instance", zap.String("key", key), zap.Int64("lease", int64(leaseID)))
	if first {
		registered := r.Instance()
		for _, f := range listeners {
			f(registered)
		}
	}
	return nil
}

// keepAlive keeps the current lease alive and registers again whenever it
// is lost, until ctx is done.
func (r *Registration) keepAlive(ctx context.Context) {
	defer close(r.done)

	for {
		r.mu.RLock()
		leaseID := r.leaseID
		r.mu.RUnlock()

		responses, err := r.lease.KeepAlive(ctx, leaseID)
		if err == nil {
			for range responses {
			}
		}
		if ctx.Err() != nil {
			return
		}

		r.logger.Warn("lease lost, registering again", zap.Int64("lease", int64(leaseID)), zap.Error(err))
		if err := r.register(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("cannot register instance again", zap.Error(err))
		}
	}
}
