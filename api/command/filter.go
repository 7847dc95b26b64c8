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
	"sort"
	"strings"
)

// Filter is a predicate over commands, describing which commands a member
// is able to handle.
//
// Filters must be immutable and safe for concurrent use.
type Filter interface {
	Matches(Command) bool
}

type acceptAll struct{}

func (acceptAll) Matches(Command) bool { return true }
func (acceptAll) String() string       { return "AcceptAll" }

type denyAll struct{}

func (denyAll) Matches(Command) bool { return false }
func (denyAll) String() string       { return "DenyAll" }

var (
	// AcceptAll matches every command.
	AcceptAll Filter = acceptAll{}

	// DenyAll matches no command.
	DenyAll Filter = denyAll{}
)

// NameFilter matches commands by name.
type NameFilter struct {
	names []string
}

// NewNameFilter returns a filter accepting commands with one of the given
// names.
func NewNameFilter(names ...string) NameFilter {
	set := make(map[string]struct{}, len(names))
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := set[n]; ok {
			continue
		}
		set[n] = struct{}{}
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	return NameFilter{names: sorted}
}

// Names returns the sorted command names accepted by this filter.
func (f NameFilter) Names() []string {
	names := make([]string, len(f.names))
	copy(names, f.names)
	return names
}

// Matches returns whether the command name is one of the filter's names.
func (f NameFilter) Matches(cmd Command) bool {
	i := sort.SearchStrings(f.names, cmd.Name)
	return i < len(f.names) && f.names[i] == cmd.Name
}

func (f NameFilter) String() string {
	return "CommandNames(" + strings.Join(f.names, ",") + ")"
}

// AndFilter matches when all of its filters match.
type AndFilter struct {
	Filters []Filter
}

// And returns a filter matching commands accepted by every given filter.
func And(filters ...Filter) Filter {
	return AndFilter{Filters: filters}
}

// Matches implements Filter.
func (f AndFilter) Matches(cmd Command) bool {
	for _, sub := range f.Filters {
		if !sub.Matches(cmd) {
			return false
		}
	}
	return true
}

// OrFilter matches when any of its filters match.
type OrFilter struct {
	Filters []Filter
}

// Or returns a filter matching commands accepted by at least one of the
// given filters.
func Or(filters ...Filter) Filter {
	return OrFilter{Filters: filters}
}

// Matches implements Filter.
func (f OrFilter) Matches(cmd Command) bool {
	for _, sub := range f.Filters {
		if sub.Matches(cmd) {
			return true
		}
	}
	return false
}

// NotFilter negates another filter.
type NotFilter struct {
	Filter Filter
}

// Not returns a filter matching the commands rejected by f.
func Not(f Filter) Filter {
	return NotFilter{Filter: f}
}

// Matches implements Filter.
func (f NotFilter) Matches(cmd Command) bool {
	return !f.Filter.Matches(cmd)
}
