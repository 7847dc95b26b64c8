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

package command

import "github.com/google/uuid"

// DefaultRoutingKeyMetadata is the metadata entry read by
// MetadataRoutingStrategy when no key is configured.
const DefaultRoutingKeyMetadata = "routing-key"

// RoutingStrategy derives the routing key of a command. Commands with equal
// routing keys are routed to the same member as long as membership is
// stable.
type RoutingStrategy interface {
	RoutingKey(Command) string
}

// RoutingStrategyFunc adapts a function into a RoutingStrategy.
type RoutingStrategyFunc func(Command) string

// RoutingKey calls f(cmd).
func (f RoutingStrategyFunc) RoutingKey(cmd Command) string { return f(cmd) }

// Fallback produces a routing key for commands that do not carry one.
type Fallback func(Command) string

// StaticKeyFallback routes every keyless command with the same key.
func StaticKeyFallback(key string) Fallback {
	return func(Command) string { return key }
}

// RandomKeyFallback routes every keyless command with a fresh random key,
// spreading them over the ring.
func RandomKeyFallback() Fallback {
	return func(Command) string { return uuid.NewString() }
}

// MetadataRoutingStrategy reads the routing key from a metadata entry of the
// command.
type MetadataRoutingStrategy struct {
	// Metadata key holding the routing key. Defaults to
	// DefaultRoutingKeyMetadata.
	Key string

	// Fallback is consulted when the entry is absent or empty. Defaults to
	// RandomKeyFallback.
	Fallback Fallback
}

// RoutingKey implements RoutingStrategy.
func (s MetadataRoutingStrategy) RoutingKey(cmd Command) string {
	key := s.Key
	if key == "" {
		key = DefaultRoutingKeyMetadata
	}
	if v, ok := cmd.MetadataValue(key); ok && v != "" {
		return v
	}
	if s.Fallback == nil {
		return uuid.NewString()
	}
	return s.Fallback(cmd)
}
