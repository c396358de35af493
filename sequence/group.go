// File: sequence/group.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Group is the gating-sequence set: the fixed collection of consumer
// sequences the producer side must never overtake. Membership is fixed at
// topology setup, which is what allows lock-free reads during steady state.

package sequence

import "github.com/momentics/hioload-disruptor/api"

// Ensure compile-time interface compliance.
var _ api.Cursor = (*Group)(nil)

// Group is an immutable set of sequences read as a unit. It backs both the
// producer gating set and consumer dependency barriers.
type Group struct {
	members []*Sequence
}

// NewGroup builds a group over the given sequences. The slice is copied;
// callers may not mutate membership afterwards.
func NewGroup(members ...*Sequence) *Group {
	g := &Group{members: make([]*Sequence, len(members))}
	copy(g.members, members)
	return g
}

// Minimum returns the smallest current value among members, or fallback when
// the group is empty.
func (g *Group) Minimum(fallback int64) int64 {
	min := fallback
	for _, s := range g.members {
		if v := s.Get(); v < min {
			min = v
		}
	}
	return min
}

// Get implements api.Cursor as the minimum over the group. An empty group
// reads as the maximum int64 so it never gates anything.
func (g *Group) Get() int64 {
	if len(g.members) == 0 {
		return int64(^uint64(0) >> 1)
	}
	min := g.members[0].Get()
	for _, s := range g.members[1:] {
		if v := s.Get(); v < min {
			min = v
		}
	}
	return min
}

// Size returns the number of member sequences.
func (g *Group) Size() int {
	return len(g.members)
}

// Members returns the member sequences. The returned slice is shared;
// callers treat it as read-only.
func (g *Group) Members() []*Sequence {
	return g.members
}
