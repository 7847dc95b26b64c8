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

package serialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/cmdrouter/api/command"
)

type unknownFilter struct{}

func (unknownFilter) Matches(command.Command) bool { return true }

func TestSerializers(t *testing.T) {
	orders := command.NewNameFilter("OrderCommand", "CancelOrder")

	tests := []struct {
		msg      string
		give     command.Filter
		wantType string
		accepts  []string
		rejects  []string
	}{
		{
			msg:      "accept all",
			give:     command.AcceptAll,
			wantType: KindAcceptAll,
			accepts:  []string{"OrderCommand", "Anything"},
		},
		{
			msg:      "deny all",
			give:     command.DenyAll,
			wantType: KindDenyAll,
			rejects:  []string{"OrderCommand"},
		},
		{
			msg:      "command names",
			give:     orders,
			wantType: KindCommandNames,
			accepts:  []string{"OrderCommand", "CancelOrder"},
			rejects:  []string{"ShipOrder"},
		},
		{
			msg:      "empty command names",
			give:     command.NewNameFilter(),
			wantType: KindCommandNames,
			rejects:  []string{"OrderCommand"},
		},
		{
			msg:      "nested",
			give:     command.And(command.AcceptAll, command.Or(orders, command.NewNameFilter("Ping")), command.Not(command.NewNameFilter("CancelOrder"))),
			wantType: KindAnd,
			accepts:  []string{"OrderCommand", "Ping"},
			rejects:  []string{"CancelOrder", "ShipOrder"},
		},
		{
			msg:      "not",
			give:     command.Not(command.DenyAll),
			wantType: KindNot,
			accepts:  []string{"Anything"},
		},
	}

	for _, s := range []Serializer{JSON(), CBOR()} {
		for _, tt := range tests {
			t.Run(s.Name()+"/"+tt.msg, func(t *testing.T) {
				data, typ, err := s.Serialize(tt.give)
				require.NoError(t, err)
				assert.Equal(t, tt.wantType, typ)

				f, err := s.Deserialize(data, typ)
				require.NoError(t, err)
				assert.Equal(t, tt.give, f, "deserialized filter is equal to the original")
				for _, name := range tt.accepts {
					assert.True(t, f.Matches(command.Command{Name: name}), "should accept %q", name)
				}
				for _, name := range tt.rejects {
					assert.False(t, f.Matches(command.Command{Name: name}), "should reject %q", name)
				}
			})
		}
	}
}

func TestJSONWireFormat(t *testing.T) {
	data, typ, err := JSON().Serialize(command.Or(command.NewNameFilter("b", "a"), command.DenyAll))
	require.NoError(t, err)
	assert.Equal(t, KindOr, typ)
	assert.JSONEq(t, `{"kind":"Or","filters":[{"kind":"CommandNames","names":["a","b"]},{"kind":"DenyAll"}]}`, data)
}

func TestCBORDeterministic(t *testing.T) {
	a, _, err := CBOR().Serialize(command.NewNameFilter("x", "y", "z"))
	require.NoError(t, err)
	b, _, err := CBOR().Serialize(command.NewNameFilter("z", "y", "x", "y"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSerializeErrors(t *testing.T) {
	for _, s := range []Serializer{JSON(), CBOR()} {
		t.Run(s.Name(), func(t *testing.T) {
			_, _, err := s.Serialize(nil)
			assert.Error(t, err)

			_, _, err = s.Serialize(command.And(unknownFilter{}))
			assert.Error(t, err)
		})
	}
}

func TestDeserializeErrors(t *testing.T) {
	jsonTests := []struct {
		msg  string
		data string
		typ  string
	}{
		{msg: "malformed", data: "{", typ: KindAcceptAll},
		{msg: "type mismatch", data: `{"kind":"AcceptAll"}`, typ: KindDenyAll},
		{msg: "unknown kind", data: `{"kind":"Sometimes"}`, typ: "Sometimes"},
		{msg: "not without operand", data: `{"kind":"Not"}`, typ: KindNot},
		{msg: "bad nested", data: `{"kind":"And","filters":[{"kind":"Huh"}]}`, typ: KindAnd},
	}
	for _, tt := range jsonTests {
		t.Run(tt.msg, func(t *testing.T) {
			_, err := JSON().Deserialize(tt.data, tt.typ)
			assert.Error(t, err)
		})
	}

	_, err := CBOR().Deserialize("not base64!", KindAcceptAll)
	assert.Error(t, err)
	_, err = CBOR().Deserialize("AAAA", KindAcceptAll)
	assert.Error(t, err)
}

func TestByName(t *testing.T) {
	s, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", s.Name())

	s, err = ByName("cbor")
	require.NoError(t, err)
	assert.Equal(t, "cbor", s.Name())

	_, err = ByName("xml")
	assert.Error(t, err)
}
