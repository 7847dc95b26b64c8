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
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/discovery"
	"go.uber.org/cmdrouter/api/member"
	"go.uber.org/cmdrouter/capability"
	"go.uber.org/cmdrouter/hashring"
	"go.uber.org/cmdrouter/internal/sampledlogger"
	"go.uber.org/cmdrouter/routingerrors"
	"go.uber.org/net/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// _failureLogInterval is the minimum time between two warnings about the
// same failing service or member.
const _failureLogInterval = time.Minute

// Router decides which member receives a command.
//
// The router publishes immutable hash rings. Lookups read the latest ring
// without locking while refreshes build the next one off to the side.
type Router struct {
	discovery    discovery.Client
	registration discovery.Registration
	strategy     command.RoutingStrategy
	mode         capability.Mode
	filter       discovery.InstanceFilter

	contextRootKey          string
	preRegistrationEndpoint string
	maxConcurrentQueries    int

	logger   *zap.Logger
	sampled  *sampledlogger.SampledLogger
	observer *observer

	ring  atomic.Pointer[hashring.Ring]
	state atomic.Int32
	// requested holds the local capabilities last passed to UpdateMembership,
	// before any decoration by the mode.
	requested atomic.Pointer[member.Capabilities]

	listenersMu sync.RWMutex
	listeners   []Listener
}

// New builds a router with an empty ring. It fails if a required parameter
// is missing.
func New(p Params) (*Router, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := p.Meter
	if meter == nil {
		meter = metrics.New().Scope()
	}
	filter := p.InstanceFilter
	if filter == nil {
		filter = discovery.AcceptAllInstances
	}
	contextRootKey := p.ContextRootMetadata
	if contextRootKey == "" {
		contextRootKey = discovery.DefaultContextRootMetadata
	}
	maxConcurrentQueries := p.MaxConcurrentQueries
	if maxConcurrentQueries == 0 {
		maxConcurrentQueries = DefaultMaxConcurrentQueries
	}

	serviceID := p.Registration.Instance().ServiceID
	logger = logger.With(zap.String("service", serviceID))

	r := &Router{
		discovery:               p.Discovery,
		registration:            p.Registration,
		strategy:                p.RoutingStrategy,
		mode:                    p.Mode,
		filter:                  filter,
		contextRootKey:          contextRootKey,
		preRegistrationEndpoint: p.PreRegistrationEndpoint,
		maxConcurrentQueries:    maxConcurrentQueries,
		logger:                  logger,
		sampled:                 sampledlogger.NewSampledLogger(_failureLogInterval, logger),
		observer:                newObserver(meter, logger, serviceID),
		listeners:               append([]Listener(nil), p.Listeners...),
	}
	r.ring.Store(hashring.New(p.RingOptions...))
	r.observer.ringSize(0)
	return r, nil
}

// FindDestination returns the member that should handle the command. It
// returns false if no known member accepts the command.
func (r *Router) FindDestination(cmd command.Command) (member.Member, bool) {
	return r.ring.Load().Member(r.strategy.RoutingKey(cmd), cmd)
}

// Ring returns the current ring.
func (r *Router) Ring() *hashring.Ring {
	return r.ring.Load()
}

// Local returns the local member as it appears in the current ring.
func (r *Router) Local() (member.Member, bool) {
	return r.ring.Load().Local()
}

// State returns the state of the router.
func (r *Router) State() State {
	return State(r.state.Load())
}

// OnChange registers a listener notified with every ring that differs from
// the one it replaces.
func (r *Router) OnChange(l Listener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, l)
}

// UpdateMembership changes the capabilities of the local member and folds
// the local member into the current ring.
func (r *Router) UpdateMembership(loadFactor int, filter command.Filter) {
	caps := member.NewCapabilities(loadFactor, filter)
	r.requested.Store(&caps)

	local := r.registration.Instance()
	r.mode.UpdateLocalCapabilities(local, caps.LoadFactor, caps.Filter)
	r.state.CompareAndSwap(int32(Uninitialized), int32(Active))

	effective, _ := r.localCapabilities()
	localMember := r.localMember(local)
	r.logger.Info("updating local membership",
		zap.Stringer("member", localMember),
		zap.Stringer("capabilities", effective))

	r.update(func(ring *hashring.Ring) *hashring.Ring {
		if prior, ok := ring.Local(); ok && prior.Name != localMember.Name {
			ring = ring.Without(prior)
		}
		return ring.With(localMember, effective.LoadFactor, effective.Filter)
	})
}

// Refresh rebuilds the ring from the members currently listed by discovery
// and publishes it.
//
// Failures to reach a single candidate are logged and leave that candidate
// out. Only a failure to list services fails the refresh, in which case the
// ring is left untouched.
func (r *Router) Refresh(ctx context.Context) error {
	serviceIDs, err := r.discovery.ServiceIDs(ctx)
	if err != nil {
		r.observer.refreshFailed()
		r.logger.Warn("failed to list services, keeping current ring", zap.Error(err))
		return routingerrors.Wrap(routingerrors.CodeUnavailable, fmt.Errorf("cannot list services: %w", err))
	}
	r.state.CompareAndSwap(int32(Uninitialized), int32(Active))

	local := r.registration.Instance()
	if requested := r.requested.Load(); requested != nil {
		// the registration may have learned its address since
		r.mode.UpdateLocalCapabilities(local, requested.LoadFactor, requested.Filter)
	}

	next := r.fold(ctx, local, r.candidates(ctx, serviceIDs))
	prev := r.ring.Swap(next)
	r.observer.refreshed()
	r.published(prev, next)
	return nil
}

// candidates lists the instances of every service that pass the instance
// filter.
func (r *Router) candidates(ctx context.Context, serviceIDs []string) []discovery.ServiceInstance {
	var candidates []discovery.ServiceInstance
	for _, serviceID := range serviceIDs {
		instances, err := r.discovery.Instances(ctx, serviceID)
		if err != nil {
			r.sampled.Warn("instances:"+serviceID, "failed to list instances, skipping service",
				zap.String("serviceID", serviceID), zap.Error(err))
			continue
		}
		for _, instance := range instances {
			if r.filter(instance) {
				candidates = append(candidates, instance)
			}
		}
	}
	return candidates
}

type candidateResult struct {
	member member.Member
	caps   member.Capabilities
	ok     bool
}

// fold queries the capabilities of every candidate and builds a ring from
// scratch out of those that answered.
func (r *Router) fold(ctx context.Context, local discovery.ServiceInstance, candidates []discovery.ServiceInstance) *hashring.Ring {
	results := make([]candidateResult, len(candidates))

	var g errgroup.Group
	g.SetLimit(r.maxConcurrentQueries)
	for i, candidate := range candidates {
		i, candidate := i, candidate
		if isLocal(local, candidate) {
			continue
		}
		m, ok := r.remoteMember(candidate)
		if !ok {
			r.sampled.Debug("address:"+candidate.ServiceID+"/"+candidate.InstanceID, "skipping candidate without address",
				zap.String("serviceID", candidate.ServiceID),
				zap.String("instanceID", candidate.InstanceID))
			continue
		}
		g.Go(func() error {
			caps, ok, err := r.mode.Capabilities(ctx, candidate)
			if err != nil {
				r.observer.capabilityFailed()
				r.sampled.Warn("capabilities:"+m.Name, "failed to query capabilities, leaving member out",
					zap.Stringer("member", m), zap.Error(err))
				return nil
			}
			results[i] = candidateResult{member: m, caps: caps, ok: ok}
			return nil
		})
	}
	_ = g.Wait()

	next := r.ring.Load().Empty()
	for _, res := range results {
		if res.ok {
			next = next.With(res.member, res.caps.LoadFactor, res.caps.Filter)
		}
	}

	// the local member is always part of the ring once its capabilities are
	// known, whether discovery lists it yet or not
	if caps, ok := r.localCapabilities(); ok {
		next = next.With(r.localMember(local), caps.LoadFactor, caps.Filter)
	}
	return next
}

// localCapabilities returns the capabilities of the local member as the mode
// recorded them, after any decoration. It returns false if UpdateMembership
// was never called.
func (r *Router) localCapabilities() (member.Capabilities, bool) {
	if r.requested.Load() == nil {
		return member.Capabilities{}, false
	}
	return r.mode.LocalCapabilities()
}

// ResetLocalMembership rebuilds the local member once the registration of
// this process has completed and its address is known. The entry the local
// member had before is removed from the ring.
func (r *Router) ResetLocalMembership(ctx context.Context) error {
	prior, hadPrior := r.ring.Load().Local()
	r.state.Store(int32(Registered))

	err := r.Refresh(ctx)
	if err != nil {
		r.logger.Warn("refresh after registration failed, rebuilding local member only", zap.Error(err))
	}

	local := r.registration.Instance()
	localMember := r.localMember(local)
	caps, known := r.localCapabilities()
	r.update(func(ring *hashring.Ring) *hashring.Ring {
		if hadPrior && prior.Name != localMember.Name {
			if stale, ok := ring.Lookup(prior.Name); ok {
				ring = ring.Without(stale.Member)
			}
		}
		if known {
			ring = ring.With(localMember, caps.LoadFactor, caps.Filter)
		}
		return ring
	})

	r.logger.Info("local membership reset",
		zap.Stringer("member", localMember),
		zap.Bool("replacedPrior", hadPrior && prior.Name != localMember.Name))
	return err
}

// Suspect evicts a remote member from the ring immediately, without waiting
// for the next refresh. The member comes back once a refresh finds it
// healthy again.
func (r *Router) Suspect(m member.Member) {
	if m.Local {
		return
	}
	removed := r.update(func(ring *hashring.Ring) *hashring.Ring {
		return ring.Without(m)
	})
	if removed {
		r.observer.evicted()
		r.logger.Info("evicted suspect member", zap.Stringer("member", m))
	}
}

// update publishes the ring returned by fn, retrying if another writer
// published first. It returns false if fn left the ring unchanged.
func (r *Router) update(fn func(*hashring.Ring) *hashring.Ring) bool {
	for {
		prev := r.ring.Load()
		next := fn(prev)
		if next == prev {
			return false
		}
		if r.ring.CompareAndSwap(prev, next) {
			r.published(prev, next)
			return true
		}
	}
}

func (r *Router) published(prev, next *hashring.Ring) {
	r.observer.ringSize(next.Len())
	if prev.Equal(next) {
		return
	}

	r.logger.Debug("ring changed",
		zap.Stringer("ring", next),
		zap.Uint32("checksum", next.Checksum()))

	r.listenersMu.RLock()
	listeners := r.listeners
	r.listenersMu.RUnlock()
	for _, l := range listeners {
		l(next)
	}
}
