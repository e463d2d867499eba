// File: internal/roster/roster.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Insertion-ordered table of the latest record per remote client id, with
// per-cycle presence tracking used to expire clients that vanished from the
// server's broadcast.

package roster

import (
	"github.com/momentics/rostersync/protocol"
)

type entry struct {
	frame []byte
	rec   protocol.Record // Payload aliases frame
}

// Roster holds at most one entry per client id, all ids below MaxClients.
// It is not safe for concurrent use; the session's state machine decides
// which goroutine may touch it.
type Roster struct {
	max      uint32
	entries  []*entry
	index    map[uint32]int
	presence *Presence
}

// New creates an empty roster accepting ids in [0, maxClients).
func New(maxClients int) *Roster {
	return &Roster{
		max:      uint32(maxClients),
		index:    make(map[uint32]int),
		presence: NewPresence(maxClients),
	}
}

// Len returns the number of entries.
func (r *Roster) Len() int {
	return len(r.entries)
}

// BeginCycle forgets which ids were seen, ahead of a new broadcast.
func (r *Roster) BeginCycle() {
	r.presence.Clear()
}

// Ingest stores one encoded record received in the current cycle.
//
// accepted is false when the id is out of range; the frame is left to the
// caller. taken is true when the roster kept frame as a new entry, in which
// case the caller must not reuse it. Known ids are overwritten in place.
func (r *Roster) Ingest(frame []byte) (taken, accepted bool) {
	id := protocol.RecordID(frame)
	if id >= r.max {
		return false, false
	}
	r.presence.Set(id)

	if i, ok := r.index[id]; ok {
		copy(r.entries[i].frame, frame)
		return false, true
	}

	r.index[id] = len(r.entries)
	r.entries = append(r.entries, &entry{
		frame: frame,
		rec:   protocol.Record{ID: id, Payload: frame[protocol.IDSize:]},
	})
	return true, true
}

// Sweep removes every entry not seen since BeginCycle, keeping the order of
// the survivors, and returns the frames of removed entries for recycling.
func (r *Roster) Sweep() [][]byte {
	var freed [][]byte
	kept := r.entries[:0]
	for _, e := range r.entries {
		if r.presence.Test(e.rec.ID) {
			kept = append(kept, e)
			continue
		}
		delete(r.index, e.rec.ID)
		freed = append(freed, e.frame)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
	if len(freed) > 0 {
		for i, e := range r.entries {
			r.index[e.rec.ID] = i
		}
	}
	return freed
}

// At returns the i-th entry in insertion order. The record is owned by the
// roster and valid until the next Ingest or Sweep.
func (r *Roster) At(i int) *protocol.Record {
	return &r.entries[i].rec
}

// Snapshot deep-copies every entry in insertion order.
func (r *Roster) Snapshot() []protocol.Record {
	out := make([]protocol.Record, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.rec.Clone()
	}
	return out
}

// Seen returns how many distinct in-range ids were ingested this cycle.
func (r *Roster) Seen() int {
	return r.presence.Count()
}
