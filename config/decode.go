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

package config

import (
	"fmt"
	"io"
	"os"

	"github.com/uber-go/mapdecode"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v2"
)

const _tagName = "config"

// DecodeInto will decode the src's data into the dst interface.
func DecodeInto(dst interface{}, src interface{}, opts ...mapdecode.Option) error {
	opts = append(opts, mapdecode.TagName(_tagName))
	return mapdecode.Decode(dst, src, opts...)
}

// Load reads a YAML configuration, applies defaults and validates it.
func Load(r io.Reader) (Config, error) {
	var data map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&data); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("failed to parse YAML: %v", err)
	}

	cfg := Default()
	if err := DecodeInto(&cfg, data); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads the YAML configuration at the given path.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Load(f)
}

type zapLevel zapcore.Level

// Decode accepts the level names zapcore understands.
func (l *zapLevel) Decode(into mapdecode.Into) error {
	var s string
	if err := into(&s); err != nil {
		return fmt.Errorf("could not decode Zap log level: %v", err)
	}

	err := (*zapcore.Level)(l).UnmarshalText([]byte(s))
	if err != nil {
		return fmt.Errorf("could not decode Zap log level: %v", err)
	}
	return err
}
