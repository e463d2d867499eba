package roster_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/rostersync/internal/roster"
	"github.com/momentics/rostersync/protocol"
)

func frame(id uint32, payload string) []byte {
	b := make([]byte, protocol.IDSize+len(payload))
	protocol.PutRecordID(b, id)
	copy(b[protocol.IDSize:], payload)
	return b
}

// lookup finds id by walking the roster in order.
func lookup(r *roster.Roster, id uint32) (*protocol.Record, bool) {
	for i := 0; i < r.Len(); i++ {
		if rec := r.At(i); rec.ID == id {
			return rec, true
		}
	}
	return nil, false
}

func contents(r *roster.Roster) map[uint32]string {
	out := make(map[uint32]string, r.Len())
	for i := 0; i < r.Len(); i++ {
		rec := r.At(i)
		out[rec.ID] = string(rec.Payload)
	}
	return out
}

func TestIngestInsertsAndTakesOwnership(t *testing.T) {
	r := roster.New(4)
	r.BeginCycle()

	f := frame(1, "AAAA")
	taken, ok := r.Ingest(f)
	require.True(t, ok)
	require.True(t, taken)

	f[protocol.IDSize] = 'Z'
	rec, found := lookup(r, 1)
	require.True(t, found)
	assert.Equal(t, "ZAAA", string(rec.Payload), "roster keeps the very buffer it took")
}

func TestIngestSameIDUpdatesInPlace(t *testing.T) {
	r := roster.New(4)
	r.BeginCycle()

	_, _ = r.Ingest(frame(1, "AAAA"))
	before, _ := lookup(r, 1)

	taken, ok := r.Ingest(frame(1, "BBBB"))
	assert.True(t, ok)
	assert.False(t, taken)
	assert.Equal(t, 1, r.Len())

	after, _ := lookup(r, 1)
	assert.Same(t, before, after)
	assert.Equal(t, "BBBB", string(after.Payload))
}

func TestIngestDiscardsOutOfRange(t *testing.T) {
	r := roster.New(4)
	r.BeginCycle()

	for _, id := range []uint32{4, 5, 1 << 31} {
		taken, ok := r.Ingest(frame(id, "XXXX"))
		assert.False(t, ok)
		assert.False(t, taken)
	}
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Seen())
}

func TestSweepRemovesAbsentKeepsOrder(t *testing.T) {
	r := roster.New(8)
	r.BeginCycle()
	for _, id := range []uint32{5, 1, 3, 7} {
		_, _ = r.Ingest(frame(id, "v1v1"))
	}
	assert.Empty(t, r.Sweep())

	r.BeginCycle()
	_, _ = r.Ingest(frame(7, "v2v2"))
	_, _ = r.Ingest(frame(1, "v2v2"))
	freed := r.Sweep()
	assert.Len(t, freed, 2)

	require.Equal(t, 2, r.Len())
	assert.Equal(t, uint32(1), r.At(0).ID)
	assert.Equal(t, uint32(7), r.At(1).ID)
	_, found := lookup(r, 5)
	assert.False(t, found)

	rec, found := lookup(r, 7)
	require.True(t, found)
	assert.Equal(t, "v2v2", string(rec.Payload))
}

func TestRosterScenarios(t *testing.T) {
	r := roster.New(4)

	r.BeginCycle()
	_, _ = r.Ingest(frame(1, "AAAA"))
	_, _ = r.Ingest(frame(3, "BBBB"))
	r.Sweep()
	assert.Equal(t, map[uint32]string{1: "AAAA", 3: "BBBB"}, contents(r))

	r.BeginCycle()
	_, _ = r.Ingest(frame(1, "CCCC"))
	r.Sweep()
	assert.Equal(t, map[uint32]string{1: "CCCC"}, contents(r))
}

func TestRosterNeverHoldsDuplicateIDs(t *testing.T) {
	r := roster.New(16)
	ids := []uint32{3, 3, 9, 1, 9, 3, 15, 16, 1, 0}
	for cycle := 0; cycle < 3; cycle++ {
		r.BeginCycle()
		for _, id := range ids[cycle:] {
			_, _ = r.Ingest(frame(id, "pppp"))
		}
		r.Sweep()

		seen := map[uint32]bool{}
		for i := 0; i < r.Len(); i++ {
			id := r.At(i).ID
			assert.False(t, seen[id], "duplicate id %d", id)
			assert.Less(t, id, uint32(16))
			seen[id] = true
		}
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	r := roster.New(4)
	r.BeginCycle()
	_, _ = r.Ingest(frame(2, "KEEP"))

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	_, _ = r.Ingest(frame(2, "LOST"))
	assert.Equal(t, "KEEP", string(snap[0].Payload))
}

func TestPresence(t *testing.T) {
	p := roster.NewPresence(70)

	p.Set(0)
	p.Set(69)
	p.Set(70)
	assert.True(t, p.Test(0))
	assert.True(t, p.Test(69))
	assert.False(t, p.Test(70))
	assert.Equal(t, 2, p.Count())

	p.Clear()
	assert.Equal(t, 0, p.Count())
}
