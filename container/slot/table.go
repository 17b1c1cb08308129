// Package slot provides a free-list-backed table that hands out small,
// reusable integer indices.
package slot

// end terminates the free list.
const end = -1

type entry[T any] struct {
	val  T
	next int
	live bool
}

// Table maps indices to values. A released index goes to the head of the
// free list and is handed out again before the table grows. Indices stay
// stable for the life of the value stored under them; the table never shrinks.
//
// Table is not safe for concurrent use.
type Table[T any] struct {
	slots []entry[T]
	free  int
	live  int
}

// New returns an empty table with room for capacity slots.
func New[T any](capacity int) *Table[T] {
	return &Table[T]{
		slots: make([]entry[T], 0, capacity),
		free:  end,
	}
}

// Allocate stores v in a free slot, or a new one, and returns its index.
func (inst *Table[T]) Allocate(v T) int {
	inst.live++
	if inst.free != end {
		i := inst.free
		s := &inst.slots[i]
		inst.free = s.next
		s.val, s.next, s.live = v, end, true
		return i
	}

	inst.slots = append(inst.slots, entry[T]{val: v, next: end, live: true})
	return len(inst.slots) - 1
}

// Release links slot i into the free list. Releasing an index twice
// corrupts the free list; it is not checked.
func (inst *Table[T]) Release(i int) {
	var zero T
	s := &inst.slots[i]
	s.val, s.next, s.live = zero, inst.free, false
	inst.free = i
	inst.live--
}

// Get returns the value in slot i, ok is false for a free slot.
func (inst *Table[T]) Get(i int) (v T, ok bool) {
	if i < 0 || i >= len(inst.slots) || !inst.slots[i].live {
		return v, false
	}
	return inst.slots[i].val, true
}

// Len returns how many slots have ever been created.
func (inst *Table[T]) Len() int {
	return len(inst.slots)
}

// Live returns how many slots currently hold a value.
func (inst *Table[T]) Live() int {
	return inst.live
}
