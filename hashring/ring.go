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
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	farm "github.com/dgryski/go-farm"
	"go.uber.org/cmdrouter/api/command"
	"go.uber.org/cmdrouter/api/member"
)

// Ring is an immutable consistent hash ring of members.
//
// Every member occupies one segment of the ring per unit of load factor.
// Operations that change membership return a new Ring and leave the receiver
// untouched, so a Ring may be shared freely between goroutines.
//
// A ring is purely a function of its options and the members added to it:
// rings built from the same members in any order route identically.
type Ring struct {
	hash          HashFunc32
	formatReplica ReplicaFormatterFunc

	// segments are sorted by hash, then member name.
	segments []segment
	members  map[string]entry
}

type segment struct {
	hash uint32
	name string
}

type entry struct {
	member     member.Member
	loadFactor int
	filter     command.Filter
}

// RingMember is a member of the ring along with the capabilities it was
// added with.
type RingMember struct {
	Member     member.Member
	LoadFactor int
	Filter     command.Filter
}

// New creates an empty ring.
func New(opts ...Option) *Ring {
	r := &Ring{
		hash:          Fingerprint32,
		formatReplica: formatSimpleReplica,
		members:       map[string]entry{},
	}
	for _, opt := range opts {
		opt.apply(r)
	}
	return r
}

// Empty returns an empty ring using the same options as the receiver.
func (r *Ring) Empty() *Ring {
	return &Ring{
		hash:          r.hash,
		formatReplica: r.formatReplica,
		members:       map[string]entry{},
	}
}

// With returns a ring that includes the given member with loadFactor
// segments accepting the commands matched by filter.
//
// If a member with the same name is already present its segments are
// replaced, so adding an equal member twice is a no-op.
func (r *Ring) With(m member.Member, loadFactor int, filter command.Filter) *Ring {
	if loadFactor < 0 {
		loadFactor = 0
	}
	if filter == nil {
		filter = command.DenyAll
	}

	next := r.copyWithout(m.Name, loadFactor)
	next.members[m.Name] = entry{member: m, loadFactor: loadFactor, filter: filter}
	for i := 0; i < loadFactor; i++ {
		next.segments = append(next.segments, segment{
			hash: next.hash(next.formatReplica(m.Name, i)),
			name: m.Name,
		})
	}
	sortSegments(next.segments)
	return next
}

// Without returns a ring without the given member. Members are matched by
// name.
func (r *Ring) Without(m member.Member) *Ring {
	if _, ok := r.members[m.Name]; !ok {
		return r
	}
	return r.copyWithout(m.Name, 0)
}

// copyWithout copies the ring, leaving out the named member, with room for
// extra segments.
func (r *Ring) copyWithout(name string, extra int) *Ring {
	next := &Ring{
		hash:          r.hash,
		formatReplica: r.formatReplica,
		segments:      make([]segment, 0, len(r.segments)+extra),
		members:       make(map[string]entry, len(r.members)+1),
	}
	for k, e := range r.members {
		if k != name {
			next.members[k] = e
		}
	}
	for _, s := range r.segments {
		if s.name != name {
			next.segments = append(next.segments, s)
		}
	}
	return next
}

// Member returns the member that should handle the command with the given
// routing key: the owner of the first segment at or after the key's hash,
// walking around the ring, whose filter accepts the command.
//
// Returns false if the ring is empty or no member accepts the command.
func (r *Ring) Member(routingKey string, cmd command.Command) (member.Member, bool) {
	if len(r.segments) == 0 {
		return member.Member{}, false
	}

	ix := indexOf(r.segments, r.hash(routingKey))
	var rejected map[string]struct{}
	for n := 0; n < len(r.segments); n++ {
		s := r.segments[(ix+n)%len(r.segments)]
		if _, ok := rejected[s.name]; ok {
			continue
		}
		e := r.members[s.name]
		if e.filter.Matches(cmd) {
			return e.member, true
		}
		if rejected == nil {
			rejected = make(map[string]struct{}, len(r.members))
		}
		rejected[s.name] = struct{}{}
		// every member refused
		if len(rejected) == len(r.members) {
			break
		}
	}
	return member.Member{}, false
}

// Members returns the distinct members of the ring, sorted by name.
//
// Members with a load factor of zero are included even though they own no
// segments.
func (r *Ring) Members() []member.Member {
	members := make([]member.Member, 0, len(r.members))
	for _, rm := range r.RingMembers() {
		members = append(members, rm.Member)
	}
	return members
}

// RingMembers returns the members of the ring with their load factors and
// filters, sorted by name.
func (r *Ring) RingMembers() []RingMember {
	names := make([]string, 0, len(r.members))
	for name := range r.members {
		names = append(names, name)
	}
	sort.Strings(names)

	members := make([]RingMember, 0, len(names))
	for _, name := range names {
		e := r.members[name]
		members = append(members, RingMember{Member: e.member, LoadFactor: e.loadFactor, Filter: e.filter})
	}
	return members
}

// Lookup returns the ring member with the given name.
func (r *Ring) Lookup(name string) (RingMember, bool) {
	e, ok := r.members[name]
	if !ok {
		return RingMember{}, false
	}
	return RingMember{Member: e.member, LoadFactor: e.loadFactor, Filter: e.filter}, true
}

// Local returns the local member of the ring, if any.
func (r *Ring) Local() (member.Member, bool) {
	for _, e := range r.members {
		if e.member.Local {
			return e.member, true
		}
	}
	return member.Member{}, false
}

// Len returns the number of members in the ring.
func (r *Ring) Len() int {
	return len(r.members)
}

// Segments returns the number of segments in the ring.
func (r *Ring) Segments() int {
	return len(r.segments)
}

// Equal reports whether both rings hold the same members with the same load
// factors and filters. Both rings are assumed to share hashing options.
func (r *Ring) Equal(o *Ring) bool {
	if r == o {
		return true
	}
	if r == nil || o == nil || len(r.members) != len(o.members) {
		return false
	}
	for name, e := range r.members {
		oe, ok := o.members[name]
		if !ok {
			return false
		}
		if e.member != oe.member || e.loadFactor != oe.loadFactor {
			return false
		}
		if !reflect.DeepEqual(e.filter, oe.filter) {
			return false
		}
	}
	return true
}

// Checksum summarizes the membership of the ring. Rings holding the same
// members with the same load factors have the same checksum.
func (r *Ring) Checksum() uint32 {
	var b strings.Builder
	for _, rm := range r.RingMembers() {
		b.WriteString(rm.Member.Name)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(rm.LoadFactor))
		b.WriteByte(';')
	}
	return farm.Fingerprint32([]byte(b.String()))
}

func (r *Ring) String() string {
	parts := make([]string, 0, len(r.members))
	for _, rm := range r.RingMembers() {
		parts = append(parts, fmt.Sprintf("%v(%d)", rm.Member, rm.LoadFactor))
	}
	return "Ring[" + strings.Join(parts, ", ") + "]"
}

func sortSegments(segments []segment) {
	sort.Slice(segments, func(i, j int) bool {
		if segments[i].hash != segments[j].hash {
			return segments[i].hash < segments[j].hash
		}
		return segments[i].name < segments[j].name
	})
}

// indexOf applies binary search to find the first segment at or after the
// given hash.
func indexOf(segments []segment, v uint32) int {
	if len(segments) == 0 {
		return -1
	}
	index := sort.Search(len(segments),
		func(i int) bool { return segments[i].hash >= v })
	// greater than all elements, returns the first
	if index >= len(segments) {
		return 0
	}
	return index
}
