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

package capability

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/api/member"
	"go.uber.org/cmdrouter/routingerrors"
)

// Mode discovers the capabilities of candidate members.
type Mode interface {
	// UpdateLocalCapabilities replaces the capabilities advertised by the
	// local member.
	UpdateLocalCapabilities(local discovery.ServiceInstance, loadFactor int, filter command.Filter)

	// Capabilities returns the capabilities of the candidate.
	//
	// It returns false if the capabilities are unknown and the candidate
	// should be left out of the ring. The only error returned is a
	// *ClientError, reporting a failure specific to the candidate.
	Capabilities(ctx context.Context, candidate discovery.ServiceInstance) (member.Capabilities, bool, error)

	// LocalCapabilities returns the capabilities the local member advertises,
	// as recorded by the last UpdateLocalCapabilities after any decoration.
	// It returns false if they were never set.
	LocalCapabilities() (member.Capabilities, bool)
}

// ClientError reports that the capabilities of a specific candidate could
// not be queried, for example because it is unreachable or does not expose
// its capabilities at all.
type ClientError struct {
	Instance discovery.ServiceInstance
	Status   *routingerrors.Status
}

func newClientError(instance discovery.ServiceInstance, code routingerrors.Code, format string, args ...interface{}) *ClientError {
	return &ClientError{Instance: instance, Status: routingerrors.Newf(code, format, args...)}
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("capabilities of %v unavailable: %v", instanceKey(e.Instance), e.Status)
}

// Unwrap returns the status of the error.
func (e *ClientError) Unwrap() error {
	return e.Status
}

// IsClientError reports whether err is or wraps a *ClientError.
func IsClientError(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// instanceKey identifies a candidate by service and instance id, falling
// back to its URI. Instance ids are only unique within a service.
func instanceKey(instance discovery.ServiceInstance) string {
	if instance.InstanceID != "" {
		return instance.ServiceID + "/" + instance.InstanceID
	}
	if uri := instance.URI(); uri != "" {
		return uri
	}
	return instance.ServiceID
}

type localCapabilities struct {
	instance discovery.ServiceInstance
	caps     member.Capabilities
}

// localRecord holds the capabilities of the local member. Readers never
// block writers.
type localRecord struct {
	v atomic.Pointer[localCapabilities]
}

func (l *localRecord) update(instance discovery.ServiceInstance, loadFactor int, filter command.Filter) {
	l.v.Store(&localCapabilities{
		instance: instance,
		caps:     member.NewCapabilities(loadFactor, filter),
	})
}

// get returns the local capabilities, if known.
func (l *localRecord) get() (member.Capabilities, bool) {
	lc := l.v.Load()
	if lc == nil {
		return member.Capabilities{}, false
	}
	return lc.caps, true
}

// lookup answers for the candidate if it is the local member. The second
// result is false if the candidate is someone else.
func (l *localRecord) lookup(candidate discovery.ServiceInstance) (member.Capabilities, bool) {
	lc := l.v.Load()
	if lc == nil || !discovery.SameInstance(lc.instance, candidate) {
		return member.Capabilities{}, false
	}
	return lc.caps, true
}
