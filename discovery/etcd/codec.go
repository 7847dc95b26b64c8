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
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/cmdrouter/api/discovery"
)

// DefaultPrefix is the key prefix instances are registered under.
const DefaultPrefix = "/cmdrouter/services"

// record is the value stored for an instance.
type record struct {
	ServiceID  string            `json:"serviceId"`
	InstanceID string            `json:"instanceId"`
	Host       string            `json:"host"`
	Port       int               `json:"port"`
	Secure     bool              `json:"secure,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func instanceKey(prefix string, instance discovery.ServiceInstance) string {
	return serviceKey(prefix, instance.ServiceID) + instance.InstanceID
}

func serviceKey(prefix, serviceID string) string {
	return prefix + "/" + serviceID + "/"
}

func encodeInstance(instance discovery.ServiceInstance) (string, error) {
	b, err := json.Marshal(record{
		ServiceID:  instance.ServiceID,
		InstanceID: instance.InstanceID,
		Host:       instance.Host,
		Port:       instance.Port,
		Secure:     instance.Secure,
		Metadata:   instance.Metadata,
	})
	return string(b), err
}

// decodeInstance decodes the value stored at key. The service and instance
// ids in the key win over those in the value.
func decodeInstance(prefix string, key, value []byte) (discovery.ServiceInstance, error) {
	serviceID, instanceID, ok := splitKey(prefix, string(key))
	if !ok {
		return discovery.ServiceInstance{}, fmt.Errorf("key %q is not an instance key under %q", key, prefix)
	}

	var r record
	if err := json.Unmarshal(value, &r); err != nil {
		return discovery.ServiceInstance{}, fmt.Errorf("malformed instance at %q: %w", key, err)
	}
	return discovery.ServiceInstance{
		ServiceID:  serviceID,
		InstanceID: instanceID,
		Host:       r.Host,
		Port:       r.Port,
		Secure:     r.Secure,
		Metadata:   r.Metadata,
	}, nil
}

// splitKey splits "<prefix>/<service>/<instance>" into its service and
// instance ids.
func splitKey(prefix, key string) (serviceID, instanceID string, ok bool) {
	rest := strings.TrimPrefix(key, prefix+"/")
	if rest == key {
		return "", "", false
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
