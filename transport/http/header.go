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

package http

import (
	"net/http"
	"strings"
)

// headerMapper converts HTTP headers to and from command metadata.
type headerMapper struct{ Prefix string }

var metadataHeaders = headerMapper{MetadataHeaderPrefix}

// ToHTTPHeaders writes the metadata entries into 'to', prefixed. If 'to' is
// nil, a new header collection is allocated.
func (hm headerMapper) ToHTTPHeaders(from map[string]string, to http.Header) http.Header {
	if to == nil {
		to = make(http.Header, len(from))
	}
	for key, val := range from {
		to.Set(hm.Prefix+key, val)
	}
	return to
}

// FromHTTPHeaders reads the prefixed headers of 'from' into metadata. Keys
// are lower-cased since HTTP canonicalizes header names. If 'to' is nil and
// a prefixed header exists, a new map is allocated.
func (hm headerMapper) FromHTTPHeaders(from http.Header, to map[string]string) map[string]string {
	for origKey, vals := range from {
		if !hasPrefixFold(origKey, hm.Prefix) || len(vals) == 0 {
			continue
		}
		if to == nil {
			to = make(map[string]string)
		}
		// Note: only the first occurrence of a header is kept
		to[strings.ToLower(origKey[len(hm.Prefix):])] = vals[0]
	}
	return to
}

// hasPrefixFold reports whether s begins with prefix, performing an
// ASCII case-insensitive comparison without allocating.
func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	return strings.EqualFold(s[:len(prefix)], prefix)
}
