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

package dispatch

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/member"
	"go.uber.org/cmdrouter/routingerrors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Router picks destinations for commands and advertises the commands the
// local member accepts. *router.Router satisfies it.
type Router interface {
	FindDestination(command.Command) (member.Member, bool)
	UpdateMembership(loadFactor int, filter command.Filter)
}

// Transport delivers commands to remote members.
type Transport interface {
	Call(ctx context.Context, dest member.Member, cmd command.Command) ([]byte, error)
}

// DefaultLoadFactor is the load factor the local member advertises unless
// configured otherwise.
const DefaultLoadFactor = 100

// Params configures a Bus.
type Params struct {
	// Router picks destinations. Required.
	Router Router

	// Transport delivers commands to remote members. Required.
	Transport Transport

	// LoadFactor advertised for the local member. Defaults to
	// DefaultLoadFactor.
	LoadFactor int

	Logger *zap.Logger
}

// Bus is a distributed command bus. Subscribing a handler makes the local
// member accept the command; dispatching a command delivers it to whichever
// member of the cluster the router picks.
type Bus struct {
	router    Router
	transport Transport
	logger    *zap.Logger

	// advertiseMu serializes membership updates.
	advertiseMu sync.Mutex

	mu         sync.RWMutex
	loadFactor int
	nextID     uint64
	handlers   map[string]subscription
}

type subscription struct {
	id      uint64
	handler command.Handler
}

// New builds a Bus.
func New(p Params) (*Bus, error) {
	var err error
	if p.Router == nil {
		err = multierr.Append(err, routingerrors.InvalidArgumentErrorf("must provide a `Router` for the command bus"))
	}
	if p.Transport == nil {
		err = multierr.Append(err, routingerrors.InvalidArgumentErrorf("must provide a `Transport` for the command bus"))
	}
	if p.LoadFactor < 0 {
		err = multierr.Append(err, routingerrors.InvalidArgumentErrorf("`LoadFactor` must not be negative, got %d", p.LoadFactor))
	}
	if err != nil {
		return nil, err
	}

	loadFactor := p.LoadFactor
	if loadFactor == 0 {
		loadFactor = DefaultLoadFactor
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		router:     p.Router,
		transport:  p.Transport,
		logger:     logger,
		loadFactor: loadFactor,
		handlers:   make(map[string]subscription),
	}, nil
}

// Subscribe registers the handler for the named command and advertises the
// command in the capabilities of the local member. A later subscription for
// the same name replaces the handler.
//
// The returned function unsubscribes the handler.
func (b *Bus) Subscribe(name string, h command.Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	sub := subscription{id: b.nextID, handler: h}
	b.handlers[name] = sub
	b.mu.Unlock()
	b.advertise()

	b.logger.Info("subscribed command handler", zap.String("command", name))
	return func() {
		b.mu.Lock()
		if b.handlers[name].id == sub.id {
			delete(b.handlers, name)
		}
		b.mu.Unlock()
		b.advertise()
	}
}

// SetLoadFactor changes the load factor advertised for the local member.
func (b *Bus) SetLoadFactor(loadFactor int) {
	b.mu.Lock()
	b.loadFactor = loadFactor
	b.mu.Unlock()
	b.advertise()
}

// Subscriptions returns the names of the subscribed commands, sorted.
func (b *Bus) Subscriptions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *Bus) advertise() {
	b.advertiseMu.Lock()
	defer b.advertiseMu.Unlock()

	b.mu.RLock()
	loadFactor := b.loadFactor
	b.mu.RUnlock()
	b.router.UpdateMembership(loadFactor, command.NewNameFilter(b.Subscriptions()...))
}

// Dispatch delivers the command to the member picked by the router and
// returns its result. Commands without an id are given a random one.
//
// It fails with a NotFound error if no member accepts the command.
func (b *Bus) Dispatch(ctx context.Context, cmd command.Command) ([]byte, error) {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}
	if err := command.Validate(cmd); err != nil {
		return nil, routingerrors.InvalidArgumentErrorf("invalid command: %v", err)
	}

	dest, ok := b.router.FindDestination(cmd)
	if !ok {
		return nil, routingerrors.NotFoundErrorf("no handler registered for command %q", cmd.Name)
	}
	if dest.Local {
		return b.Handle(ctx, cmd)
	}

	res, err := b.transport.Call(ctx, dest, cmd)
	if err != nil {
		b.logger.Debug("command failed",
			zap.String("command", cmd.Name),
			zap.String("commandID", cmd.ID),
			zap.Stringer("member", dest),
			zap.Error(err))
	}
	return res, err
}

// DispatchAsync dispatches the command in the background and reports the
// outcome to the callback, which may be nil.
func (b *Bus) DispatchAsync(ctx context.Context, cmd command.Command, callback func([]byte, error)) {
	go func() {
		res, err := b.Dispatch(ctx, cmd)
		if callback != nil {
			callback(res, err)
		}
	}()
}

// Handle runs the local handler subscribed for the command. It serves
// commands routed to this member, whether dispatched locally or received
// from another member.
func (b *Bus) Handle(ctx context.Context, cmd command.Command) ([]byte, error) {
	b.mu.RLock()
	sub, ok := b.handlers[cmd.Name]
	b.mu.RUnlock()
	if !ok {
		return nil, routingerrors.NotFoundErrorf("no handler registered for command %q", cmd.Name)
	}
	return sub.handler.Handle(ctx, cmd)
}
