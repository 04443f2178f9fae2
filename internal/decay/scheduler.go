package decay

import "sort"

const (
	wheelBits   = 6
	wheelSlots  = 1 << wheelBits // 64 slots per level
	wheelLevels = 4

	// wheelHorizon is the furthest delta the wheel can index directly.
	// Entries beyond it wait in the overflow bucket and are re-filed when the
	// top level wraps.
	wheelHorizon = Tick(1) << (wheelBits * wheelLevels)
)

// entry is a scheduled expiration. Cancellation tombstones the entry in
// place (dead=true); the wheel discards tombstones when it drains them.
type entry struct {
	id       string
	expireAt Tick
	seq      uint64
	dead     bool
}

// timingWheel is a hierarchical bucket queue over logical ticks. Level 0
// indexes single ticks; each higher level covers a window 64 times wider.
// Entries cascade toward level 0 as the cursor wraps level boundaries, so
// popDue never scans entries that are not yet due.
//
// Entries sharing an expiry tick are returned in insertion order via the
// monotonic sequence counter; a cascade may interleave slot append order
// with later direct placements, so popDue sorts the drained batch by
// (expireAt, seq) before returning it.
type timingWheel struct {
	levels   [wheelLevels][wheelSlots][]*entry
	overflow []*entry
	ready    []*entry // already due when scheduled; drained by the next pop
	live     map[string]*entry
	cursor   Tick // last fully drained tick
	seq      uint64
}

func newTimingWheel() *timingWheel {
	return &timingWheel{live: make(map[string]*entry)}
}

// Len reports the number of live (non-tombstoned) entries.
func (w *timingWheel) Len() int {
	if w == nil {
		return 0
	}
	return len(w.live)
}

// Schedule inserts an expiration for id. It is last-write-wins per entity: a
// live entry for the same id is tombstoned first.
func (w *timingWheel) Schedule(id string, expireAt Tick) {
	if prev, ok := w.live[id]; ok {
		prev.dead = true
		delete(w.live, id)
	}
	w.seq++
	e := &entry{id: id, expireAt: expireAt, seq: w.seq}
	w.live[id] = e
	w.place(e)
}

// Cancel tombstones the live entry for id, if any. Cancelling an absent
// entry is a no-op: detach and destroy legitimately race entries that were
// already consumed.
func (w *timingWheel) Cancel(id string) {
	e, ok := w.live[id]
	if !ok {
		return
	}
	e.dead = true
	delete(w.live, id)
}

// PopDue advances the cursor to tick and returns every live entry with
// expireAt <= tick, ordered by (expireAt, sequence). Tombstones encountered
// along the way are dropped.
func (w *timingWheel) PopDue(tick Tick) []string {
	var due []*entry
	due = w.drainBatch(due, &w.ready)

	for t := w.cursor + 1; t <= tick; t++ {
		if len(w.live) == 0 {
			// Nothing pending anywhere; skip the empty stretch.
			break
		}
		w.cascadeAt(t)
		slot := &w.levels[0][t&(wheelSlots-1)]
		due = w.drainBatch(due, slot)
	}
	w.cursor = tick

	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].expireAt != due[j].expireAt {
			return due[i].expireAt < due[j].expireAt
		}
		return due[i].seq < due[j].seq
	})
	ids := make([]string, len(due))
	for i, e := range due {
		ids[i] = e.id
	}
	return ids
}

// drainBatch consumes a slot, keeping live entries and dropping tombstones.
func (w *timingWheel) drainBatch(due []*entry, slot *[]*entry) []*entry {
	if len(*slot) == 0 {
		return due
	}
	for _, e := range *slot {
		if e.dead {
			continue
		}
		if w.live[e.id] != e {
			// A live-flagged entry the live index does not own means two
			// entries were in flight for one entity: a wheel bug, never a
			// caller mistake.
			panic("decay: duplicate scheduler entry for entity " + e.id)
		}
		delete(w.live, e.id)
		due = append(due, e)
	}
	*slot = nil
	return due
}

// cascadeAt re-files higher-level slots whose window the cursor is entering
// at tick t. The top level also re-files the overflow bucket when it wraps.
func (w *timingWheel) cascadeAt(t Tick) {
	for level := 1; level < wheelLevels; level++ {
		if t&(Tick(1)<<(wheelBits*level)-1) != 0 {
			break
		}
		idx := (t >> (wheelBits * level)) & (wheelSlots - 1)
		w.refile(&w.levels[level][idx], t)
	}
	if t&(wheelHorizon-1) == 0 {
		w.refile(&w.overflow, t)
	}
}

// refile redistributes a cascading slot relative to boundary tick now. A
// cascaded entry can expire exactly at now; it lands in the level-0 slot the
// cursor drains immediately after the cascade, preserving (expireAt, seq)
// order within the pop.
func (w *timingWheel) refile(slot *[]*entry, now Tick) {
	entries := *slot
	if len(entries) == 0 {
		return
	}
	*slot = nil
	for _, e := range entries {
		if e.dead {
			continue
		}
		w.placeAt(e, now)
	}
}

// place files a freshly scheduled entry. Scheduling at or behind the cursor
// is accepted and immediately due: the cursor's own level-0 slot was already
// drained, so such entries go to the ready list and surface on the next pop.
func (w *timingWheel) place(e *entry) {
	if e.expireAt <= w.cursor {
		w.ready = append(w.ready, e)
		return
	}
	w.placeAt(e, w.cursor)
}

// placeAt files e relative to now, where expireAt >= now.
func (w *timingWheel) placeAt(e *entry, now Tick) {
	delta := e.expireAt - now
	for level := 0; level < wheelLevels; level++ {
		if delta < Tick(1)<<(wheelBits*(level+1)) {
			idx := (e.expireAt >> (wheelBits * level)) & (wheelSlots - 1)
			w.levels[level][idx] = append(w.levels[level][idx], e)
			return
		}
	}
	w.overflow = append(w.overflow, e)
}
