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

package cmdrouterfx

import (
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/config"
	"go.uber.org/cmdrouter/discovery/etcd"
	"go.uber.org/cmdrouter/discovery/static"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Substrate is the discovery substrate the process registers with and
// discovers its peers through.
type Substrate interface {
	discovery.Registration

	// Client lists the instances of every service.
	Client() discovery.Client

	// Publish makes the local instance visible to peers at the given
	// address. registered is called once it is.
	Publish(host string, port int, registered func()) error

	// Close withdraws the local instance.
	Close() error
}

type staticSubstrate struct {
	client       *static.Client
	registration *static.Registration
}

func newStaticSubstrate(cfg config.Config, instanceID string) *staticSubstrate {
	instances := make([]discovery.ServiceInstance, 0, len(cfg.Discovery.Static))
	for _, s := range cfg.Discovery.Static {
		instances = append(instances, s.Instance())
	}

	opts := []static.RegistrationOption{static.InstanceID(instanceID)}
	if cfg.ContextRoot != "" {
		opts = append(opts, static.Metadata(cfg.ContextRootMetadata, cfg.ContextRoot))
	}
	return &staticSubstrate{
		client:       static.NewClient(instances...),
		registration: static.NewRegistration(cfg.Service, opts...),
	}
}

func (s *staticSubstrate) Instance() discovery.ServiceInstance { return s.registration.Instance() }
func (s *staticSubstrate) Client() discovery.Client            { return s.client }

func (s *staticSubstrate) Publish(host string, port int, registered func()) error {
	s.registration.OnComplete(func(instance discovery.ServiceInstance) {
		s.client.Register(instance)
		registered()
	})
	s.registration.Complete(host, port)
	return nil
}

func (s *staticSubstrate) Close() error {
	instance := s.registration.Instance()
	s.client.Deregister(instance.ServiceID, instance.InstanceID)
	return nil
}

type etcdSubstrate struct {
	etcd     *clientv3.Client
	client   *etcd.Client
	opts     []etcd.RegistrationOption
	instance discovery.ServiceInstance

	// registration is set once the instance is published.
	registration *atomic.Pointer[etcd.Registration]
}

func newEtcdSubstrate(cfg config.Config, instanceID string, logger *zap.Logger) (*etcdSubstrate, error) {
	ec := cfg.Discovery.Etcd
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   ec.Endpoints,
		DialTimeout: ec.DialTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, err
	}

	var (
		clientOpts       []etcd.ClientOption
		registrationOpts []etcd.RegistrationOption
	)
	if ec.Prefix != "" {
		clientOpts = append(clientOpts, etcd.Prefix(ec.Prefix))
		registrationOpts = append(registrationOpts, etcd.Prefix(ec.Prefix))
	}
	clientOpts = append(clientOpts, etcd.Logger(logger))
	registrationOpts = append(registrationOpts, etcd.Logger(logger), etcd.TTL(ec.TTL))
	if ec.MaxRetryTime > 0 {
		registrationOpts = append(registrationOpts, etcd.MaxRetryTime(ec.MaxRetryTime))
	}

	instance := discovery.ServiceInstance{ServiceID: cfg.Service, InstanceID: instanceID}
	if cfg.ContextRoot != "" {
		instance.Metadata = map[string]string{cfg.ContextRootMetadata: cfg.ContextRoot}
	}
	return &etcdSubstrate{
		etcd:         cli,
		client:       etcd.NewClient(cli, clientOpts...),
		opts:         registrationOpts,
		instance:     instance,
		registration: atomic.NewPointer[etcd.Registration](nil),
	}, nil
}

func (s *etcdSubstrate) Instance() discovery.ServiceInstance {
	if r := s.registration.Load(); r != nil {
		return r.Instance()
	}
	return s.instance
}

func (s *etcdSubstrate) Client() discovery.Client { return s.client }

func (s *etcdSubstrate) Publish(host string, port int, registered func()) error {
	instance := s.instance
	instance.Host = host
	instance.Port = port

	r := etcd.NewRegistration(s.etcd, s.etcd, instance, s.opts...)
	r.OnRegistered(func(discovery.ServiceInstance) { registered() })
	s.registration.Store(r)
	return r.Start()
}

func (s *etcdSubstrate) Close() error {
	var err error
	if r := s.registration.Load(); r != nil {
		err = r.Stop()
	}
	if cerr := s.etcd.Close(); err == nil {
		err = cerr
	}
	return err
}

// NewSubstrate builds the substrate the configuration selects. Etcd is
// used when configured, static discovery otherwise.
func NewSubstrate(cfg config.Config, logger *zap.Logger) (Substrate, error) {
	instanceID := uuid.New().String()
	if cfg.Discovery.Etcd != nil {
		return newEtcdSubstrate(cfg, instanceID, logger)
	}
	return newStaticSubstrate(cfg, instanceID), nil
}
