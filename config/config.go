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
	"time"

	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/capability"
	"go.uber.org/cmdrouter/dispatch"
	"go.uber.org/cmdrouter/heartbeat"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
)

// Capability modes.
const (
	ModeHTTP   = "http"
	ModeSimple = "simple"
)

// Config is the configuration of a command router process.
//
//	service: orders
//	listen: ":8080"
//	loadFactor: 100
//	capabilities:
//	  mode: http
//	  faultIsolation:
//	    expiry: 1m
//	discovery:
//	  etcd:
//	    endpoints: [127.0.0.1:2379]
type Config struct {
	// Service is the service id the process registers as.
	Service string `config:"service"`

	// Listen is the address the commands and capabilities endpoints are
	// served on.
	Listen string `config:"listen"`

	// Advertise is the host other members reach this process at. Defaults
	// to the host of the listen address.
	Advertise string `config:"advertise"`

	// LoadFactor advertised for the local member.
	LoadFactor int `config:"loadFactor"`

	// ContextRoot is the path prefix the endpoints are served under.
	ContextRoot string `config:"contextRoot"`

	// ContextRootMetadata is the instance metadata key carrying the context
	// root of every instance.
	ContextRootMetadata string `config:"contextRootMetadata"`

	// PreRegistrationEndpoint names the local member until its address is
	// known.
	PreRegistrationEndpoint string `config:"preRegistrationEndpoint"`

	// MaxConcurrentQueries bounds the capability queries of a refresh.
	MaxConcurrentQueries int `config:"maxConcurrentQueries"`

	// MetricsPath is the path metrics are served on. Empty disables it.
	MetricsPath string `config:"metricsPath"`

	Logging      Logging        `config:"logging"`
	Capabilities Capabilities   `config:"capabilities"`
	Ring         Ring           `config:"ring"`
	Instances    InstanceFilter `config:"instances"`
	Heartbeat    Heartbeat      `config:"heartbeat"`
	Discovery    Discovery      `config:"discovery"`
}

// Logging configures the process logger.
type Logging struct {
	Level       zapLevel `config:"level"`
	Development bool     `config:"development"`
}

// ZapLevel returns the configured log level.
func (l Logging) ZapLevel() zapcore.Level {
	return zapcore.Level(l.Level)
}

// Capabilities configures how members learn each other's capabilities.
type Capabilities struct {
	// Mode is either "http" or "simple".
	Mode string `config:"mode"`

	// AcceptAll makes the local member advertise that it accepts every
	// command.
	AcceptAll bool `config:"acceptAll"`

	// Path of the capabilities endpoint.
	Path string `config:"path"`

	// Timeout of a single capabilities query.
	Timeout time.Duration `config:"timeout"`

	// Serializer of command filters, "json" or "cbor".
	Serializer string `config:"serializer"`

	FaultIsolation FaultIsolation `config:"faultIsolation"`
}

// FaultIsolation configures how long members whose capabilities could not be
// queried are ignored.
type FaultIsolation struct {
	Disabled   bool          `config:"disabled"`
	Expiry     time.Duration `config:"expiry"`
	MaxIgnored int           `config:"maxIgnored"`
}

// Heartbeat configures the periodic refresh.
type Heartbeat struct {
	Interval time.Duration `config:"interval"`
	Timeout  time.Duration `config:"timeout"`
	Backoff  Backoff       `config:"backoff"`
}

// Backoff specifies the exponential backoff between failed refreshes.
//
//	first: 100ms
//	max: 30s
type Backoff struct {
	First time.Duration `config:"first"`
	Max   time.Duration `config:"max"`
}

// Default returns the configuration used for every omitted setting.
func Default() Config {
	return Config{
		Listen:                  ":8080",
		LoadFactor:              dispatch.DefaultLoadFactor,
		ContextRootMetadata:     discovery.DefaultContextRootMetadata,
		PreRegistrationEndpoint: "unregistered",
		MetricsPath:             "/metrics",
		Logging:                 Logging{Level: zapLevel(zapcore.InfoLevel)},
		Capabilities: Capabilities{
			Mode:       ModeHTTP,
			Path:       capability.DefaultPath,
			Timeout:    capability.DefaultTimeout,
			Serializer: "json",
			FaultIsolation: FaultIsolation{
				Expiry:     time.Minute,
				MaxIgnored: 1024,
			},
		},
		Ring: Ring{Hash: HashFarm},
		Heartbeat: Heartbeat{
			Interval: heartbeat.DefaultInterval,
			Timeout:  heartbeat.DefaultTimeout,
			Backoff:  Backoff{First: 100 * time.Millisecond, Max: heartbeat.DefaultInterval},
		},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() (err error) {
	if c.Service == "" {
		err = multierr.Append(err, fmt.Errorf("service is required"))
	}
	if c.Listen == "" {
		err = multierr.Append(err, fmt.Errorf("listen address is required"))
	}
	if c.LoadFactor < 0 {
		err = multierr.Append(err, fmt.Errorf("loadFactor must not be negative, got %d", c.LoadFactor))
	}
	if c.MaxConcurrentQueries < 0 {
		err = multierr.Append(err, fmt.Errorf("maxConcurrentQueries must not be negative, got %d", c.MaxConcurrentQueries))
	}
	if c.PreRegistrationEndpoint == "" {
		err = multierr.Append(err, fmt.Errorf("preRegistrationEndpoint must not be empty"))
	}

	switch c.Capabilities.Mode {
	case ModeHTTP, ModeSimple:
	default:
		err = multierr.Append(err, fmt.Errorf("unknown capabilities mode %q, expected %q or %q", c.Capabilities.Mode, ModeHTTP, ModeSimple))
	}
	if _, serr := c.Capabilities.FilterSerializer(); serr != nil {
		err = multierr.Append(err, serr)
	}
	if c.Capabilities.Timeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("capabilities timeout must be positive, got %v", c.Capabilities.Timeout))
	}
	if fi := c.Capabilities.FaultIsolation; !fi.Disabled && (fi.Expiry <= 0 || fi.MaxIgnored < 0) {
		err = multierr.Append(err, fmt.Errorf("fault isolation needs a positive expiry and a non-negative bound, got %v and %d", fi.Expiry, fi.MaxIgnored))
	}

	if _, rerr := c.Ring.Options(); rerr != nil {
		err = multierr.Append(err, rerr)
	}

	if c.Heartbeat.Interval <= 0 {
		err = multierr.Append(err, fmt.Errorf("heartbeat interval must be positive, got %v", c.Heartbeat.Interval))
	}
	if b := c.Heartbeat.Backoff; b.First <= 0 || b.Max < b.First {
		err = multierr.Append(err, fmt.Errorf("heartbeat backoff needs 0 < first <= max, got %v and %v", b.First, b.Max))
	}

	return multierr.Append(err, c.Discovery.validate())
}

// WithLevel returns a copy of the logging configuration at the given level.
func (l Logging) WithLevel(lvl zapcore.Level) Logging {
	l.Level = zapLevel(lvl)
	return l
}
