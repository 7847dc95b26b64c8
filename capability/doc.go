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

// Package capability discovers what other members can do.
//
// A Mode answers, for any candidate instance, with the load factor and the
// command filter the candidate advertises. The local member is always
// answered from the record kept by UpdateLocalCapabilities, without any
// remote call.
//
// NewHTTP queries the capabilities endpoint of remote members, served by
// Handler. NewSimple assumes every member is like the local one. Modes can be
// decorated: WithFaultIsolation stops querying candidates that recently
// failed, and WithAcceptAll makes the local member accept every command.
//
//	mode := capability.WithFaultIsolation(
//		capability.WithAcceptAll(capability.NewHTTP()),
//	)
package capability
