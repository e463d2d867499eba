// File: server/ids.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/eapache/queue"

// idAllocator hands out client ids in [1, max). Released ids are reused in
// release order before the counter advances. Not safe for concurrent use.
type idAllocator struct {
	reuse *queue.Queue
	next  uint32
	max   uint32
}

func newIDAllocator(max int) *idAllocator {
	return &idAllocator{reuse: queue.New(), next: 1, max: uint32(max)}
}

// acquire returns a free id, or false when every id is taken.
func (a *idAllocator) acquire() (uint32, bool) {
	if a.reuse.Length() > 0 {
		return a.reuse.Remove().(uint32), true
	}
	if a.next >= a.max {
		return 0, false
	}
	id := a.next
	a.next++
	return id, true
}

func (a *idAllocator) release(id uint32) {
	a.reuse.Add(id)
}

// available reports whether acquire would succeed.
func (a *idAllocator) available() bool {
	return a.reuse.Length() > 0 || a.next < a.max
}

func (a *idAllocator) state() map[string]any {
	return map[string]any{"next": a.next, "reusable": a.reuse.Length(), "max": a.max}
}
