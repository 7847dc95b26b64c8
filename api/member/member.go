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

package member

import (
	"fmt"
	"net/url"

	"go.uber.org/cmdrouter/api/command"
)

// Member is a process that can receive commands.
//
// Members are comparable values. Two members with the same Name are the same
// logical member.
type Member struct {
	// Name is the stable identity of the member, derived from its service id
	// and endpoint.
	Name string

	// Local is true for the member representing this process. Commands routed
	// to the local member bypass the transport.
	Local bool

	// Endpoint is the base URI other members use to reach this member. It
	// may be empty for a local member that has not finished registering.
	Endpoint string
}

// Name derives the stable name of a member from its service id and endpoint.
func Name(serviceID, endpoint string) string {
	return serviceID + "[" + endpoint + "]"
}

// New returns a remote member.
func New(serviceID, endpoint string) Member {
	return Member{Name: Name(serviceID, endpoint), Endpoint: endpoint}
}

// NewLocal returns the member representing this process.
func NewLocal(serviceID, endpoint string) Member {
	return Member{Name: Name(serviceID, endpoint), Local: true, Endpoint: endpoint}
}

// ConnectionEndpoint parses the endpoint of the member. It returns false if
// the member has no usable endpoint.
func (m Member) ConnectionEndpoint() (*url.URL, bool) {
	if m.Endpoint == "" {
		return nil, false
	}
	u, err := url.Parse(m.Endpoint)
	if err != nil || u.Host == "" {
		return nil, false
	}
	return u, true
}

func (m Member) String() string {
	if m.Local {
		return m.Name + "(local)"
	}
	return m.Name
}

// Capabilities describes what a member can do: its relative capacity and the
// commands it accepts.
type Capabilities struct {
	// LoadFactor is the relative capacity of the member. A member with twice
	// the load factor of another receives roughly twice the commands.
	LoadFactor int

	// Filter accepts the commands the member can handle.
	Filter command.Filter
}

// Incapable describes a member that accepts nothing. It is used when the
// capabilities of a member cannot be determined.
var Incapable = Capabilities{LoadFactor: 0, Filter: command.DenyAll}

// NewCapabilities returns capabilities with the given load factor and
// filter. Negative load factors are clamped to zero and a nil filter denies
// everything.
func NewCapabilities(loadFactor int, filter command.Filter) Capabilities {
	if loadFactor < 0 {
		loadFactor = 0
	}
	if filter == nil {
		filter = command.DenyAll
	}
	return Capabilities{LoadFactor: loadFactor, Filter: filter}
}

func (c Capabilities) String() string {
	return fmt.Sprintf("loadFactor=%d filter=%v", c.LoadFactor, c.Filter)
}
