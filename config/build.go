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

package config

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/capability"
	"go.uber.org/cmdrouter/hashring"
	"go.uber.org/cmdrouter/heartbeat"
	"go.uber.org/cmdrouter/serialize"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Ring hash functions.
const (
	HashFarm   = "farm"
	HashXXHash = "xxhash"
)

// Ring configures the hash rings the router builds.
type Ring struct {
	// Hash is either "farm" or "xxhash".
	Hash string `config:"hash"`

	// ReplicaDelimiter separates member names from replica numbers when
	// placing virtual nodes. Empty keeps the default format.
	ReplicaDelimiter string `config:"replicaDelimiter"`
}

// Options returns the ring options matching the configuration.
func (r Ring) Options() ([]hashring.Option, error) {
	var opts []hashring.Option
	switch r.Hash {
	case "", HashFarm:
		opts = append(opts, hashring.Hash(hashring.Fingerprint32))
	case HashXXHash:
		opts = append(opts, hashring.Hash(hashring.XXHash32))
	default:
		return nil, fmt.Errorf("unknown ring hash %q, expected %q or %q", r.Hash, HashFarm, HashXXHash)
	}
	if r.ReplicaDelimiter != "" {
		opts = append(opts, hashring.ReplicaFormatter(hashring.DelimitedReplicaFormatter(r.ReplicaDelimiter)))
	}
	return opts, nil
}

// InstanceFilter excludes instances from command routing.
type InstanceFilter struct {
	// ExcludeServices never take part in routing.
	ExcludeServices []string `config:"excludeServices"`

	// RequireMetadata lists metadata entries an instance must carry. An
	// empty value only requires the key.
	RequireMetadata map[string]string `config:"requireMetadata"`
}

// Filter returns the instance filter for the router.
func (f InstanceFilter) Filter() discovery.InstanceFilter {
	if len(f.ExcludeServices) == 0 && len(f.RequireMetadata) == 0 {
		return discovery.AcceptAllInstances
	}
	excluded := make(map[string]struct{}, len(f.ExcludeServices))
	for _, s := range f.ExcludeServices {
		excluded[s] = struct{}{}
	}
	required := make(map[string]string, len(f.RequireMetadata))
	for k, v := range f.RequireMetadata {
		required[k] = v
	}
	return func(instance discovery.ServiceInstance) bool {
		if _, ok := excluded[instance.ServiceID]; ok {
			return false
		}
		for k, want := range required {
			got, ok := instance.MetadataValue(k)
			if !ok || (want != "" && got != want) {
				return false
			}
		}
		return true
	}
}

// FilterSerializer returns the serializer of command filters.
func (c Capabilities) FilterSerializer() (serialize.Serializer, error) {
	return serialize.ByName(c.Serializer)
}

// Mode builds the capability mode. The client is used for remote queries
// and may be nil.
func (c Config) Mode(client *http.Client, logger *zap.Logger) (capability.Mode, error) {
	var mode capability.Mode
	switch c.Capabilities.Mode {
	case ModeSimple:
		mode = capability.NewSimple()
	case ModeHTTP:
		serializer, err := c.Capabilities.FilterSerializer()
		if err != nil {
			return nil, err
		}
		opts := []capability.HTTPOption{
			capability.Logger(logger),
			capability.FilterSerializer(serializer),
			capability.Path(c.Capabilities.Path),
			capability.Timeout(c.Capabilities.Timeout),
			capability.ContextRootMetadata(c.ContextRootMetadata),
		}
		if client != nil {
			opts = append(opts, capability.HTTPClient(client))
		}
		mode = capability.NewHTTP(opts...)
	default:
		return nil, fmt.Errorf("unknown capabilities mode %q", c.Capabilities.Mode)
	}

	if fi := c.Capabilities.FaultIsolation; !fi.Disabled {
		mode = capability.WithFaultIsolation(mode,
			capability.Logger(logger),
			capability.IgnoreExpiry(fi.Expiry),
			capability.MaxIgnored(fi.MaxIgnored),
		)
	}
	if c.Capabilities.AcceptAll {
		mode = capability.WithAcceptAll(mode)
	}
	return mode, nil
}

// HeartbeatOptions returns the options of the periodic refresh.
func (c Config) HeartbeatOptions(logger *zap.Logger) []heartbeat.Option {
	return []heartbeat.Option{
		heartbeat.Interval(c.Heartbeat.Interval),
		heartbeat.Timeout(c.Heartbeat.Timeout),
		heartbeat.RetryBackoff(c.Heartbeat.Backoff.First, c.Heartbeat.Backoff.Max),
		heartbeat.Logger(logger),
	}
}

// AdvertisedAddress returns the host and port other members reach this
// process at, given the address the inbound actually bound.
func (c Config) AdvertisedAddress(bound net.Addr) (string, int, error) {
	host, port, err := net.SplitHostPort(bound.String())
	if err != nil {
		return "", 0, err
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %v", port, err)
	}
	if c.Advertise != "" {
		host = c.Advertise
	} else if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	return host, p, nil
}

// Discovery selects the discovery substrate. Exactly one of Static and Etcd
// must be set.
type Discovery struct {
	Static []StaticInstance `config:"static"`
	Etcd   *Etcd            `config:"etcd"`
}

// StaticInstance is a fixed peer.
type StaticInstance struct {
	Service  string            `config:"service"`
	ID       string            `config:"id"`
	Host     string            `config:"host"`
	Port     int               `config:"port"`
	Secure   bool              `config:"secure"`
	Metadata map[string]string `config:"metadata"`
}

// Instance returns the service instance described.
func (s StaticInstance) Instance() discovery.ServiceInstance {
	id := s.ID
	if id == "" {
		id = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	}
	return discovery.ServiceInstance{
		ServiceID:  s.Service,
		InstanceID: id,
		Host:       s.Host,
		Port:       s.Port,
		Secure:     s.Secure,
		Metadata:   s.Metadata,
	}
}

// Etcd configures discovery through etcd.
type Etcd struct {
	Endpoints    []string      `config:"endpoints"`
	Prefix       string        `config:"prefix"`
	DialTimeout  time.Duration `config:"dialTimeout"`
	TTL          time.Duration `config:"ttl"`
	MaxRetryTime time.Duration `config:"maxRetryTime"`
}

func (d Discovery) validate() (err error) {
	if d.Etcd != nil {
		if len(d.Static) > 0 {
			err = multierr.Append(err, fmt.Errorf("discovery must be either static or etcd, not both"))
		}
		if len(d.Etcd.Endpoints) == 0 {
			err = multierr.Append(err, fmt.Errorf("etcd discovery requires at least one endpoint"))
		}
		return err
	}
	for i, s := range d.Static {
		if s.Service == "" || s.Host == "" || s.Port <= 0 {
			err = multierr.Append(err, fmt.Errorf("static instance %d needs a service, host and port", i))
		}
	}
	return err
}
