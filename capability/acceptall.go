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

	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/api/member"
)

type acceptAllMode struct {
	delegate Mode
}

// WithAcceptAll decorates a mode so that the local member always advertises
// that it accepts every command, whatever filter it is updated with. The load
// factor is kept.
//
// This suits members that route commands to a handler able to deal with any
// of them.
func WithAcceptAll(delegate Mode) Mode {
	return &acceptAllMode{delegate: delegate}
}

func (m *acceptAllMode) UpdateLocalCapabilities(local discovery.ServiceInstance, loadFactor int, _ command.Filter) {
	m.delegate.UpdateLocalCapabilities(local, loadFactor, command.AcceptAll)
}

func (m *acceptAllMode) LocalCapabilities() (member.Capabilities, bool) {
	return m.delegate.LocalCapabilities()
}

func (m *acceptAllMode) Capabilities(ctx context.Context, candidate discovery.ServiceInstance) (member.Capabilities, bool, error) {
	return m.delegate.Capabilities(ctx, candidate)
}
