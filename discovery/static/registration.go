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
	"sync"

	"github.com/google/uuid"
	"go.uber.org/cmdrouter/api/discovery"
)

var _ discovery.Registration = (*Registration)(nil)

// Registration is the registration of the local process, completed manually
// once the process knows the address it serves on.
type Registration struct {
	mu        sync.RWMutex
	instance  discovery.ServiceInstance
	completed bool
	listeners []func(discovery.ServiceInstance)
}

// RegistrationOption customizes a Registration.
type RegistrationOption func(*discovery.ServiceInstance)

// InstanceID sets the instance id of the registration. Defaults to a random
// UUID.
func InstanceID(id string) RegistrationOption {
	return func(i *discovery.ServiceInstance) {
		i.InstanceID = id
	}
}

// Metadata sets a metadata entry of the registration.
func Metadata(key, value string) RegistrationOption {
	return func(i *discovery.ServiceInstance) {
		if i.Metadata == nil {
			i.Metadata = make(map[string]string)
		}
		i.Metadata[key] = value
	}
}

// Secure marks the registration as served over https.
func Secure() RegistrationOption {
	return func(i *discovery.ServiceInstance) {
		i.Secure = true
	}
}

// NewRegistration builds an incomplete registration for the given service.
// Its instance has no host or port until Complete is called.
func NewRegistration(serviceID string, opts ...RegistrationOption) *Registration {
	instance := discovery.ServiceInstance{
		ServiceID:  serviceID,
		InstanceID: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(&instance)
	}
	return &Registration{instance: instance}
}

// Instance returns a copy of the registered instance.
func (r *Registration) Instance() discovery.ServiceInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance := r.instance
	if r.instance.Metadata != nil {
		instance.Metadata = make(map[string]string, len(r.instance.Metadata))
		for k, v := range r.instance.Metadata {
			instance.Metadata[k] = v
		}
	}
	return instance
}

// Completed returns whether the address of the registration is known.
func (r *Registration) Completed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.completed
}

// OnComplete registers a function called with the instance once the
// registration completes. It is called immediately if the registration is
// already complete.
func (r *Registration) OnComplete(f func(discovery.ServiceInstance)) {
	r.mu.Lock()
	if !r.completed {
		r.listeners = append(r.listeners, f)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	f(r.Instance())
}

// Complete records the address the process serves on and notifies the
// OnComplete listeners. Only the first call has an effect.
func (r *Registration) Complete(host string, port int) {
	r.mu.Lock()
	if r.completed {
		r.mu.Unlock()
		return
	}
	r.instance.Host = host
	r.instance.Port = port
	r.completed = true
	listeners := r.listeners
	r.listeners = nil
	r.mu.Unlock()

	instance := r.Instance()
	for _, f := range listeners {
		f(instance)
	}
}
