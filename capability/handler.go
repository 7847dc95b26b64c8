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
	"encoding/json"
	"net/http"

	"go.uber.org/cmdrouter/internal/sampledlogger"
	"go.uber.org/cmdrouter/serialize"
	"go.uber.org/zap"
)

type handler struct {
	mode       Mode
	serializer serialize.Serializer
	logger     *zap.Logger
	sampled    *sampledlogger.SampledLogger
}

// Handler returns the HTTP endpoint advertising the capabilities of the local
// member, as recorded by the mode, to the HTTP mode of other members.
//
// It answers 503 until the local capabilities are known.
func Handler(mode Mode, opts ...HandlerOption) http.Handler {
	h := &handler{
		mode:       mode,
		serializer: serialize.JSON(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt.applyHandler(h)
	}
	h.sampled = sampledlogger.NewSampledLogger(_logInterval, h.logger)
	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	caps, ok := h.mode.LocalCapabilities()
	if !ok {
		http.Error(w, "local capabilities not known yet", http.StatusServiceUnavailable)
		return
	}

	data, typ, err := h.serializer.Serialize(caps.Filter)
	if err != nil {
		h.sampled.Error("serialize", "cannot serialize local command filter", zap.Stringer("filter", caps), zap.Error(err))
		http.Error(w, "cannot serialize command filter", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(wireCapabilities{
		LoadFactor:                  caps.LoadFactor,
		SerializedCommandFilter:     data,
		SerializedCommandFilterType: typ,
	}); err != nil {
		h.logger.Warn("failed to write capabilities response", zap.Error(err))
	}
}
