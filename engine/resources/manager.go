package resources

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ID identifies a resource for its whole lifetime. Slot indices are recycled,
// ids never are.
type ID = uuid.UUID

var NilID = uuid.Nil

type slot[T any] struct {
	id       ID
	refCount int
	value    T
}

// Table is the bookkeeping core shared by the resource managers: a fixed
// number of slots, stable ids and reference counts. Capacity is decided once
// at startup; a full table is an error, not a grow.
//
// Table does no locking of its own. Each manager guards its table with its
// own mutex.
type Table[T any] struct {
	name  string
	slots []*slot[T]
	index map[ID]int
	free  []int
}

func NewTable[T any](name string, capacity int) *Table[T] {
	table := &Table[T]{
		name:  name,
		slots: make([]*slot[T], capacity),
		index: make(map[ID]int, capacity),
		free:  make([]int, 0, capacity),
	}
	for i := capacity - 1; i >= 0; i-- {
		table.free = append(table.free, i)
	}
	return table
}

// Allocate stores value in a free slot with a reference count of one.
func (t *Table[T]) Allocate(value T) (ID, error) {
	if len(t.free) == 0 {
		return NilID, errors.Newf("%s: no more free slots (capacity %d)", t.name, len(t.slots))
	}
	position := t.free[len(t.free)-1]
	t.free = t.free[:len(t.free)-1]
	id := uuid.New()
	t.slots[position] = &slot[T]{id: id, refCount: 1, value: value}
	t.index[id] = position
	return id, nil
}

func (t *Table[T]) Get(id ID) (*T, bool) {
	position, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return &t.slots[position].value, true
}

// Use adds a reference. Unknown ids are ignored.
func (t *Table[T]) Use(id ID) {
	if position, ok := t.index[id]; ok {
		t.slots[position].refCount++
	}
}

// Release drops a reference and reports whether the slot was freed because
// this was the last one.
func (t *Table[T]) Release(id ID) bool {
	position, ok := t.index[id]
	if !ok {
		return false
	}
	t.slots[position].refCount--
	if t.slots[position].refCount > 0 {
		return false
	}
	delete(t.index, id)
	t.slots[position] = nil
	t.free = append(t.free, position)
	return true
}

func (t *Table[T]) RefCount(id ID) int {
	if position, ok := t.index[id]; ok {
		return t.slots[position].refCount
	}
	return 0
}

func (t *Table[T]) Len() int      { return len(t.slots) - len(t.free) }
func (t *Table[T]) Capacity() int { return len(t.slots) }
func (t *Table[T]) IsFull() bool  { return len(t.free) == 0 }

func (t *Table[T]) Each(fn func(ID, *T)) {
	for _, s := range t.slots {
		if s != nil {
			fn(s.id, &s.value)
		}
	}
}
