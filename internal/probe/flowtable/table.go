// Package flowtable implements the fixed-capacity, open-addressing flow
// table owned by each capture worker, plus the deterministic sampler that
// shares its hash. The table never grows, never evicts, and never blocks:
// when full it drops updates and counts them.
package flowtable

import "MirrorScope/internal/model"

// probeLimit bounds linear probing so one pathological hash neighborhood
// cannot stall the capture loop.
const probeLimit = 64

type entry struct {
	key      model.FlowKey
	stats    model.FlowStats
	occupied bool
}

// Table is a fixed-capacity open-addressing hash table keyed by the
// 5-tuple. Not safe for concurrent use; each worker owns exactly one.
type Table struct {
	entries  []entry
	mask     uint32
	size     int
	capacity int
	dropped  uint64
}

// nextPowerOfTwo returns the smallest power of two >= n.
func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// New creates a table that holds at most capacity flows. The slot array is
// sized to the next power of two above capacity/loadFactor so the load
// factor stays below ~0.8 even at the flow cap.
func New(capacity int) *Table {
	if capacity <= 0 {
		capacity = 1
	}
	slots := nextPowerOfTwo(capacity + capacity/4)
	return &Table{
		entries:  make([]entry, slots),
		mask:     uint32(slots - 1),
		capacity: capacity,
	}
}

// Upsert adds length bytes and one packet to the flow identified by key,
// inserting the flow on first sight. If the probe limit is exhausted or the
// table is at capacity, the update is dropped and counted instead.
func (t *Table) Upsert(key model.FlowKey, length uint16) {
	idx := HashKey(key) & t.mask

	for probe := 0; probe < probeLimit; probe++ {
		e := &t.entries[idx]
		if !e.occupied {
			if t.size >= t.capacity {
				t.dropped++
				return
			}
			e.key = key
			e.stats = model.FlowStats{Packets: 1, Bytes: uint64(length)}
			e.occupied = true
			t.size++
			return
		}
		if e.key == key {
			e.stats.Packets++
			e.stats.Bytes += uint64(length)
			return
		}
		idx = (idx + 1) & t.mask
	}

	t.dropped++
}

// Drain copies all occupied slots into an owned list. It is the only way
// data leaves the table; callers typically Reset afterwards.
func (t *Table) Drain() []model.FlowEntry {
	if t.size == 0 {
		return nil
	}
	out := make([]model.FlowEntry, 0, t.size)
	for i := range t.entries {
		if t.entries[i].occupied {
			out = append(out, model.FlowEntry{
				Key:   t.entries[i].key,
				Stats: t.entries[i].stats,
			})
		}
	}
	return out
}

// Reset clears occupancy in O(capacity). No entry survives across windows.
func (t *Table) Reset() {
	for i := range t.entries {
		t.entries[i].occupied = false
	}
	t.size = 0
}

// Len returns the number of occupied slots.
func (t *Table) Len() int { return t.size }

// Capacity returns the fixed flow cap.
func (t *Table) Capacity() int { return t.capacity }

// Dropped returns how many updates were discarded because the table was
// full or the probe limit was exhausted.
func (t *Table) Dropped() uint64 { return t.dropped }

// ResetDropped zeroes the drop counter, for per-window accounting.
func (t *Table) ResetDropped() { t.dropped = 0 }
