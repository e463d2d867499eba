// File: internal/roster/presence.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package roster

import "math/bits"

// Presence is a bitmap with one bit per client id in [0, size).
type Presence struct {
	words []uint64
	size  uint32
}

// NewPresence returns an all-clear bitmap covering size ids.
func NewPresence(size int) *Presence {
	return &Presence{
		words: make([]uint64, (size+63)/64),
		size:  uint32(size),
	}
}

// Set marks id as seen. Out-of-range ids are ignored.
func (p *Presence) Set(id uint32) {
	if id >= p.size {
		return
	}
	p.words[id/64] |= 1 << (id % 64)
}

// Test reports whether id was marked since the last Clear.
func (p *Presence) Test(id uint32) bool {
	if id >= p.size {
		return false
	}
	return p.words[id/64]&(1<<(id%64)) != 0
}

// Clear resets every bit.
func (p *Presence) Clear() {
	clear(p.words)
}

// Count returns the number of marked ids.
func (p *Presence) Count() int {
	n := 0
	for _, w := range p.words {
		n += bits.OnesCount64(w)
	}
	return n
}
