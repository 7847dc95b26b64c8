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
	"go.uber.org/net/metrics"
	"go.uber.org/zap"
)

type observer struct {
	refreshes          *metrics.Counter
	refreshFailures    *metrics.Counter
	capabilityFailures *metrics.Counter
	evictions          *metrics.Counter
	ringMembers        *metrics.Gauge
}

func newObserver(meter *metrics.Scope, logger *zap.Logger, serviceID string) *observer {
	tags := metrics.Tags{"service": serviceID}
	counter := func(name, help string) *metrics.Counter {
		c, err := meter.Counter(metrics.Spec{Name: name, Help: help, ConstTags: tags})
		if err != nil {
			logger.Error("Failed to create counter", zap.String("name", name), zap.Error(err))
		}
		return c
	}

	ringMembers, err := meter.Gauge(metrics.Spec{
		Name:      "ring_members",
		Help:      "Number of members in the published hash ring.",
		ConstTags: tags,
	})
	if err != nil {
		logger.Error("Failed to create ring members gauge", zap.Error(err))
	}

	return &observer{
		refreshes:          counter("refreshes", "Total number of completed membership refreshes."),
		refreshFailures:    counter("refresh_failures", "Total number of refreshes that could not list services."),
		capabilityFailures: counter("capability_failures", "Total number of failed capability queries."),
		evictions:          counter("evictions", "Total number of suspect members evicted from the ring."),
		ringMembers:        ringMembers,
	}
}

func (o *observer) refreshed()        { o.refreshes.Inc() }
func (o *observer) refreshFailed()    { o.refreshFailures.Inc() }
func (o *observer) capabilityFailed() { o.capabilityFailures.Inc() }
func (o *observer) evicted()          { o.evictions.Inc() }
func (o *observer) ringSize(n int)    { o.ringMembers.Store(int64(n)) }
