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

package discovery

import (
	"context"
	"net"
	"strconv"
	"strings"
)

// ServiceInstance is a single process listed by a discovery substrate.
type ServiceInstance struct {
	// ServiceID is the logical service the instance belongs to.
	ServiceID string

	// InstanceID uniquely identifies the instance within its service, when
	// the substrate provides one.
	InstanceID string

	Host   string
	Port   int
	Secure bool

	// Metadata published alongside the instance.
	Metadata map[string]string
}

// URI returns the base URI of the instance, or the empty string if the
// instance has no known host yet.
func (s ServiceInstance) URI() string {
	if s.Host == "" {
		return ""
	}
	scheme := "http"
	if s.Secure {
		scheme = "https"
	}
	host := s.Host
	if s.Port > 0 {
		host = net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
	}
	return scheme + "://" + host
}

// MetadataValue returns the metadata entry for the given key, if any.
func (s ServiceInstance) MetadataValue(key string) (string, bool) {
	if s.Metadata == nil {
		return "", false
	}
	v, ok := s.Metadata[key]
	return v, ok
}

// DefaultContextRootMetadata is the metadata entry holding the path prefix
// an instance serves its endpoints under.
const DefaultContextRootMetadata = "contextPath"

// ContextRoot returns the path prefix published under the given metadata key,
// normalized to start with a slash and end without one. It returns the empty
// string if the instance publishes no prefix.
func (s ServiceInstance) ContextRoot(key string) string {
	root, _ := s.MetadataValue(key)
	root = strings.Trim(root, "/")
	if root == "" {
		return ""
	}
	return "/" + root
}

// Client lists the service instances known to a discovery substrate.
type Client interface {
	// ServiceIDs returns the ids of every known service.
	ServiceIDs(ctx context.Context) ([]string, error)

	// Instances returns the instances of the given service.
	Instances(ctx context.Context, serviceID string) ([]ServiceInstance, error)
}

// Registration exposes the instance the local process registered as.
//
// The instance may lack a host and port until registration with the
// substrate completes.
type Registration interface {
	Instance() ServiceInstance
}

// InstanceFilter reports whether an instance may take part in command
// routing.
type InstanceFilter func(ServiceInstance) bool

// AcceptAllInstances is the default instance filter.
func AcceptAllInstances(ServiceInstance) bool { return true }

// SameInstance reports whether a and b describe the same process: either
// both belong to the same service and carry the same non-empty instance id,
// or both have the same non-empty URI.
func SameInstance(a, b ServiceInstance) bool {
	if a.InstanceID != "" && a.InstanceID == b.InstanceID && a.ServiceID == b.ServiceID {
		return true
	}
	uri := a.URI()
	return uri != "" && uri == b.URI()
}
