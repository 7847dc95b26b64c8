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

package hashring

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	farm "github.com/dgryski/go-farm"
)

// HashFunc32 places replica names and routing keys on the ring.
type HashFunc32 func(string) uint32

// ReplicaFormatterFunc builds the name of a member's n-th segment from the
// member name and the segment number.
type ReplicaFormatterFunc func(identifier string, replicaNum int) string

// Fingerprint32 is the default hash function of the ring.
func Fingerprint32(s string) uint32 {
	return farm.Fingerprint32([]byte(s))
}

// XXHash32 folds the 64 bit xxhash of s into 32 bits.
func XXHash32(s string) uint32 {
	h := xxhash.Sum64String(s)
	return uint32(h) ^ uint32(h>>32)
}

// Option is an option for the ring constructor.
type Option interface {
	apply(*Ring)
}

type optionFunc func(*Ring)

func (f optionFunc) apply(r *Ring) { f(r) }

// Hash specifies the function used to hash segments and routing keys.
//
// Changing the hash function changes the topology of the ring. Every member
// of a cluster must use the same function.
func Hash(hash HashFunc32) Option {
	return optionFunc(func(r *Ring) {
		if hash != nil {
			r.hash = hash
		}
	})
}

// ReplicaFormatter specifies the function the hash ring will use to construct
// segment names from a member name and a segment number.
//
// The default replica formatter simply concatenates the member name and the
// segment number as a decimal string.
func ReplicaFormatter(formatReplica ReplicaFormatterFunc) Option {
	return optionFunc(func(r *Ring) {
		if formatReplica != nil {
			r.formatReplica = formatReplica
		}
	})
}

func formatSimpleReplica(identifier string, replicaNum int) string {
	return identifier + strconv.Itoa(replicaNum)
}

// DelimitedReplicaFormatter joins a member name and segment number with a
// given delimiter.
func DelimitedReplicaFormatter(delimiter string) ReplicaFormatterFunc {
	return func(identifier string, replicaNum int) string {
		replica := strconv.Itoa(replicaNum)
		buffer := make([]byte, 0, len(identifier)+len(replica)+len(delimiter))
		buffer = append(buffer, identifier...)
		buffer = append(buffer, delimiter...)
		buffer = append(buffer, replica...)
		return string(buffer)
	}
}
