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

package router

import (
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/api/member"
)

// isLocal reports whether a candidate listed by discovery is this process.
//
// Some substrates list the local process as an instance distinct from the one
// it registered with, so candidates are matched on instance id or address.
func isLocal(local, candidate discovery.ServiceInstance) bool {
	return discovery.SameInstance(local, candidate)
}

// endpoint is the base URI other members reach the instance at, or the empty
// string if its address is unknown.
func (r *Router) endpoint(instance discovery.ServiceInstance) string {
	uri := instance.URI()
	if uri == "" {
		return ""
	}
	return uri + instance.ContextRoot(r.contextRootKey)
}

func (r *Router) localMember(local discovery.ServiceInstance) member.Member {
	endpoint := r.endpoint(local)
	if endpoint == "" {
		endpoint = r.preRegistrationEndpoint
	}
	return member.NewLocal(local.ServiceID, endpoint)
}

func (r *Router) remoteMember(candidate discovery.ServiceInstance) (member.Member, bool) {
	endpoint := r.endpoint(candidate)
	if endpoint == "" {
		return member.Member{}, false
	}
	return member.New(candidate.ServiceID, endpoint), true
}
