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

// Package cmdrouter routes commands between the members of a cluster.
//
// Every member advertises the commands it accepts and a load factor. Members
// discover each other through a discovery substrate, learn each other's
// capabilities and place themselves on a consistent hash ring. A command is
// delivered to the member that owns the ring segment its routing key hashes
// into, among the members that accept it.
//
// The packages are layered as follows:
//
//	hashring     immutable consistent hash rings
//	capability   how members learn each other's capabilities
//	router       keeps the ring in sync with the discovered members
//	dispatch     a command bus on top of the router
//	transport    delivers commands to remote members
//	heartbeat    refreshes the router periodically
//	cmdrouterfx  wires everything together with fx
package cmdrouter
