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

// Package serialize converts command filters to and from the text carried by
// the member capabilities endpoint.
//
// A serialized filter is a pair: the encoded filter tree and a type tag
// naming the kind of its root filter. Both sides of the capabilities
// exchange must agree on the serializer.
package serialize

import (
	"fmt"
	"reflect"

	"go.uber.org/cmdrouter/api/command"
)

// Filter kinds used as type tags.
const (
	KindAcceptAll    = "AcceptAll"
	KindDenyAll      = "DenyAll"
	KindCommandNames = "CommandNames"
	KindAnd          = "And"
	KindOr           = "Or"
	KindNot          = "Not"
)

// Serializer encodes command filters as text.
type Serializer interface {
	// Name identifies the serializer in configuration.
	Name() string

	// Serialize encodes the filter and returns the encoded form along with
	// its type tag.
	Serialize(command.Filter) (data string, typ string, err error)

	// Deserialize decodes a filter previously produced by Serialize. It
	// fails if the decoded filter does not match the type tag.
	Deserialize(data, typ string) (command.Filter, error)
}

// node is the encoding-neutral form of a filter tree.
type node struct {
	Kind    string   `json:"kind" cbor:"1,keyasint"`
	Names   []string `json:"names,omitempty" cbor:"2,keyasint,omitempty"`
	Filters []node   `json:"filters,omitempty" cbor:"3,keyasint,omitempty"`
}

func toNode(f command.Filter) (node, error) {
	switch f := f.(type) {
	case nil:
		return node{}, fmt.Errorf("cannot serialize nil filter")
	case command.NameFilter:
		return node{Kind: KindCommandNames, Names: f.Names()}, nil
	case command.AndFilter:
		children, err := toNodes(f.Filters)
		return node{Kind: KindAnd, Filters: children}, err
	case command.OrFilter:
		children, err := toNodes(f.Filters)
		return node{Kind: KindOr, Filters: children}, err
	case command.NotFilter:
		child, err := toNode(f.Filter)
		return node{Kind: KindNot, Filters: []node{child}}, err
	}

	switch reflect.TypeOf(f) {
	case reflect.TypeOf(command.AcceptAll):
		return node{Kind: KindAcceptAll}, nil
	case reflect.TypeOf(command.DenyAll):
		return node{Kind: KindDenyAll}, nil
	}
	return node{}, fmt.Errorf("cannot serialize filter of type %T", f)
}

func toNodes(filters []command.Filter) ([]node, error) {
	nodes := make([]node, 0, len(filters))
	for _, f := range filters {
		n, err := toNode(f)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (n node) filter() (command.Filter, error) {
	switch n.Kind {
	case KindAcceptAll:
		return command.AcceptAll, nil
	case KindDenyAll:
		return command.DenyAll, nil
	case KindCommandNames:
		return command.NewNameFilter(n.Names...), nil
	case KindAnd, KindOr:
		filters := make([]command.Filter, 0, len(n.Filters))
		for _, child := range n.Filters {
			f, err := child.filter()
			if err != nil {
				return nil, err
			}
			filters = append(filters, f)
		}
		if n.Kind == KindAnd {
			return command.And(filters...), nil
		}
		return command.Or(filters...), nil
	case KindNot:
		if len(n.Filters) != 1 {
			return nil, fmt.Errorf("%v filter needs exactly one operand, got %d", KindNot, len(n.Filters))
		}
		f, err := n.Filters[0].filter()
		if err != nil {
			return nil, err
		}
		return command.Not(f), nil
	}
	return nil, fmt.Errorf("unknown filter kind %q", n.Kind)
}

// decodeNode builds the filter for n after checking it against the type tag.
func decodeNode(n node, typ string) (command.Filter, error) {
	if n.Kind != typ {
		return nil, fmt.Errorf("filter type %q does not match serialized filter %q", typ, n.Kind)
	}
	return n.filter()
}

// ByName returns the serializer with the given name: "json" or "cbor".
func ByName(name string) (Serializer, error) {
	switch name {
	case "", _jsonName:
		return JSON(), nil
	case _cborName:
		return CBOR(), nil
	}
	return nil, fmt.Errorf("unknown filter serializer %q, expected %q or %q", name, _jsonName, _cborName)
}
