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

package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataHeaders(t *testing.T) {
	tests := []struct {
		msg          string
		metadata     map[string]string
		wantHTTP     http.Header
		httpHeaders  http.Header
		wantMetadata map[string]string
	}{
		{
			msg:          "empty",
			metadata:     nil,
			wantHTTP:     http.Header{},
			httpHeaders:  http.Header{"Content-Type": {"text/plain"}},
			wantMetadata: nil,
		},
		{
			msg: "metadata",
			metadata: map[string]string{
				"routing-key": "order-42",
				"tenant":      "acme",
			},
			wantHTTP: http.Header{
				"Cmd-Meta-Routing-Key": {"order-42"},
				"Cmd-Meta-Tenant":      {"acme"},
			},
			httpHeaders: http.Header{
				"Cmd-Meta-Routing-Key": {"order-42"},
				"Cmd-Meta-Tenant":      {"acme"},
				"Cmd-Name":             {"OrderCommand"},
			},
			wantMetadata: map[string]string{
				"routing-key": "order-42",
				"tenant":      "acme",
			},
		},
		{
			msg:          "case insensitive prefix",
			httpHeaders:  http.Header{"cmd-meta-foo": {"bar", "baz"}},
			wantHTTP:     http.Header{},
			wantMetadata: map[string]string{"foo": "bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.wantHTTP, metadataHeaders.ToHTTPHeaders(tt.metadata, nil))
			assert.Equal(t, tt.wantMetadata, metadataHeaders.FromHTTPHeaders(tt.httpHeaders, nil))
		})
	}
}

func TestHasPrefixFold(t *testing.T) {
	assert.True(t, hasPrefixFold("Cmd-Meta-Foo", "cmd-meta-"))
	assert.False(t, hasPrefixFold("Cmd", "cmd-meta-"))
	assert.False(t, hasPrefixFold("Rpc-Header-Foo", "cmd-meta-"))
}
