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

import (
	"context"
	"fmt"
	"strings"
)

// Command is the low level representation of a command travelling between
// members.
type Command struct {
	// Unique identifier of this command instance.
	ID string

	// Name of the command type. Filters and handlers match on the name.
	Name string

	// Metadata carries routing information and application headers.
	Metadata map[string]string

	// Command payload, opaque to the router.
	Payload []byte
}

// MetadataValue returns the metadata entry for the given key, if any.
func (c Command) MetadataValue(key string) (string, bool) {
	if c.Metadata == nil {
		return "", false
	}
	v, ok := c.Metadata[key]
	return v, ok
}

// Validate validates the given command. An error is returned if the command
// cannot be dispatched.
func Validate(cmd Command) error {
	var missing []string
	if cmd.Name == "" {
		missing = append(missing, "command name")
	}
	if cmd.ID == "" {
		missing = append(missing, "command id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Handler handles commands delivered to the local member.
type Handler interface {
	Handle(ctx context.Context, cmd Command) ([]byte, error)
}

// HandlerFunc adapts a function into a Handler.
type HandlerFunc func(ctx context.Context, cmd Command) ([]byte, error)

// Handle calls f(ctx, cmd).
func (f HandlerFunc) Handle(ctx context.Context, cmd Command) ([]byte, error) {
	return f(ctx, cmd)
}
