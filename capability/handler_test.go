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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/api/member"
)

type staticRegistration discovery.ServiceInstance

func (r staticRegistration) Instance() discovery.ServiceInstance { return discovery.ServiceInstance(r) }

func TestHandler(t *testing.T) {
	registration := staticRegistration{ServiceID: "orders", InstanceID: "me"}
	mode := NewHTTP()
	h := Handler(mode)

	t.Run("not ready", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPath, nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	mode.UpdateLocalCapabilities(registration.Instance(), 50, command.NewNameFilter("OrderCommand"))

	t.Run("advertises local capabilities", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPath, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, float64(50), body["loadFactor"])
		assert.Equal(t, "CommandNames", body["serializedCommandFilterType"])
		assert.JSONEq(t, `{"kind":"CommandNames","names":["OrderCommand"]}`, body["serializedCommandFilter"].(string))
	})

	t.Run("rejects other methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, DefaultPath, strings.NewReader("{}")))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		assert.Equal(t, http.MethodGet, rec.Header().Get("Allow"))
	})
}

func TestHandlerAcceptAllRoundTrip(t *testing.T) {
	registration := staticRegistration{ServiceID: "orders", InstanceID: "remote"}
	remote := WithAcceptAll(NewHTTP())
	remote.UpdateLocalCapabilities(registration.Instance(), 300, command.NewNameFilter("OrderCommand"))

	server := httptest.NewServer(Handler(remote))
	defer server.Close()

	caps, ok, err := NewHTTP().Capabilities(context.Background(), instanceFor(t, server.URL, "remote"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, member.NewCapabilities(300, command.AcceptAll), caps, "accept-all overrides the advertised filter")
}
