package kernel

// table is a fixed-capacity arena of kernel objects addressed by
// generation-checked IDs. The low 16 bits of an ID are slot+1 and the high
// 16 bits the slot generation, so 0 is never a valid ID.
//
// Without reclaim a released slot is retired for good and IDs are never
// reused. With reclaim the slot returns to the free set under a new
// generation, and stale IDs stop resolving.
type table[T any] struct {
	slots   []tableSlot[T]
	reclaim bool
	used    int
}

type tableSlot[T any] struct {
	gen     uint16
	used    bool
	retired bool
	v       *T
}

func newTable[T any](n int, reclaim bool) table[T] {
	return table[T]{slots: make([]tableSlot[T], n), reclaim: reclaim}
}

func makeID(slot int, gen uint16) uint32 {
	return uint32(gen)<<16 | uint32(slot+1)
}

func splitID(id uint32) (slot int, gen uint16) {
	return int(id&0xFFFF) - 1, uint16(id >> 16)
}

// alloc stores v and returns its ID, or false when no slot is free.
func (tb *table[T]) alloc(v *T) (uint32, bool) {
	for i := range tb.slots {
		s := &tb.slots[i]
		if s.used || s.retired {
			continue
		}
		s.used = true
		s.v = v
		tb.used++
		return makeID(i, s.gen), true
	}
	return 0, false
}

func (tb *table[T]) get(id uint32) *T {
	slot, gen := splitID(id)
	if slot < 0 || slot >= len(tb.slots) {
		return nil
	}
	s := &tb.slots[slot]
	if !s.used || s.gen != gen {
		return nil
	}
	return s.v
}

func (tb *table[T]) free(id uint32) {
	slot, gen := splitID(id)
	if slot < 0 || slot >= len(tb.slots) {
		return
	}
	s := &tb.slots[slot]
	if !s.used || s.gen != gen {
		return
	}
	s.used = false
	s.v = nil
	tb.used--
	if tb.reclaim {
		s.gen++
	} else {
		s.retired = true
	}
}

func (tb *table[T]) len() int { return tb.used }

func (tb *table[T]) each(fn func(v *T)) {
	for i := range tb.slots {
		if s := &tb.slots[i]; s.used {
			fn(s.v)
		}
	}
}
