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
	"encoding/json"

	"go.uber.org/cmdrouter/api/command"
)

const _jsonName = "json"

type jsonSerializer struct{}

// JSON returns a serializer writing filters as JSON text.
func JSON() Serializer { return jsonSerializer{} }

func (jsonSerializer) Name() string { return _jsonName }

func (jsonSerializer) Serialize(f command.Filter) (string, string, error) {
	n, err := toNode(f)
	if err != nil {
		return "", "", err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return "", "", err
	}
	return string(data), n.Kind, nil
}

func (jsonSerializer) Deserialize(data, typ string) (command.Filter, error) {
	var n node
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		return nil, err
	}
	return decodeNode(n, typ)
}
