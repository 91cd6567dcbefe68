package exec

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/strandjs/wasm/wasm"
)

// MaxTableSize is the implementation ceiling on table sizes, independent of
// any declared maximum.
const MaxTableSize = 1 << 24

// ErrTableBounds is returned for table operations whose range falls outside
// the current table size.
var ErrTableBounds = fmt.Errorf("wasm: table access out of bounds")

// ErrTableLimit is returned by Grow when the resulting size would exceed the
// table's declared maximum or the implementation ceiling.
var ErrTableLimit = fmt.Errorf("wasm: table limit exceeded")

// A TableTypeError is returned when a value of the wrong type is stored into
// a table.
type TableTypeError struct {
	Expected wasm.ValueType
	Actual   wasm.ValueType
}

func (e *TableTypeError) Error() string {
	return fmt.Sprintf("wasm: cannot store %v value in table of %v", e.Actual, e.Expected)
}

// tableIDs allocates the fixed global lock order for two-table copies.
var tableIDs uint64

// A Table is a WASM reference table. All operations are guarded by the
// table's mutex. Copy between two distinct tables locks both mutexes in
// allocation-ID order so concurrent cross-copies cannot deadlock.
type Table struct {
	mu       sync.Mutex
	id       uint64
	elemType wasm.ValueType
	max      *uint32
	entries  []wasm.Value
}

// NewTable creates a new table of min null references of the given element
// type. max, when non-nil, bounds Grow.
func NewTable(elemType wasm.ValueType, min uint32, max *uint32) *Table {
	t := &Table{
		id:       atomic.AddUint64(&tableIDs, 1),
		elemType: elemType,
		max:      max,
		entries:  make([]wasm.Value, min),
	}
	for i := range t.entries {
		t.entries[i] = wasm.NullRef(elemType)
	}
	return t
}

// ElemType returns the table's element type.
func (t *Table) ElemType() wasm.ValueType {
	return t.elemType
}

// Size returns the table's current size in elements.
func (t *Table) Size() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return uint32(len(t.entries))
}

// Max returns the table's declared maximum size, or nil if it has none.
func (t *Table) Max() *uint32 {
	return t.max
}

// Get returns the element at index i. An out-of-range index yields the null
// reference: whether that is a trap is the caller's decision, not the
// table's.
func (t *Table) Get(i uint32) wasm.Value {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= uint32(len(t.entries)) {
		return wasm.NullRef(t.elemType)
	}
	return t.entries[i]
}

// Set stores v at index i. It fails on an out-of-range index or an element
// type mismatch, mutating nothing.
func (t *Table) Set(i uint32, v wasm.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= uint32(len(t.entries)) {
		return ErrTableBounds
	}
	if v.Type() != t.elemType {
		return &TableTypeError{Expected: t.elemType, Actual: v.Type()}
	}
	t.entries[i] = v
	return nil
}

// Grow extends the table by n copies of init, returning the old size. It
// fails without mutating if the resulting size would exceed the declared
// maximum or MaxTableSize, or if init's type mismatches.
func (t *Table) Grow(n uint32, init wasm.Value) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if init.Type() != t.elemType {
		return 0, &TableTypeError{Expected: t.elemType, Actual: init.Type()}
	}
	oldSize := uint32(len(t.entries))
	newSize := uint64(oldSize) + uint64(n)
	if t.max != nil && newSize > uint64(*t.max) || newSize > MaxTableSize {
		return 0, ErrTableLimit
	}
	for i := uint32(0); i < n; i++ {
		t.entries = append(t.entries, init)
	}
	return oldSize, nil
}

// Fill stores count copies of v starting at offset. The operation is
// all-or-nothing: an out-of-range span or type mismatch fails with no
// partial mutation.
func (t *Table) Fill(offset, count uint32, v wasm.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(offset)+uint64(count) > uint64(len(t.entries)) {
		return ErrTableBounds
	}
	if v.Type() != t.elemType {
		return &TableTypeError{Expected: t.elemType, Actual: v.Type()}
	}
	for i := uint32(0); i < count; i++ {
		t.entries[offset+i] = v
	}
	return nil
}

// CopyTo copies count elements from this table starting at srcOffset into
// dest starting at destOffset. Overlapping ranges within one table copy as
// if through an intermediate buffer. The operation is all-or-nothing.
func (t *Table) CopyTo(dest *Table, destOffset, srcOffset, count uint32) error {
	if dest == t {
		t.mu.Lock()
		defer t.mu.Unlock()
	} else {
		// Fixed global lock order by allocation ID.
		first, second := t, dest
		if dest.id < t.id {
			first, second = dest, t
		}
		first.mu.Lock()
		defer first.mu.Unlock()
		second.mu.Lock()
		defer second.mu.Unlock()
	}

	if t.elemType != dest.elemType {
		return &TableTypeError{Expected: dest.elemType, Actual: t.elemType}
	}
	if uint64(srcOffset)+uint64(count) > uint64(len(t.entries)) ||
		uint64(destOffset)+uint64(count) > uint64(len(dest.entries)) {
		return ErrTableBounds
	}
	copy(dest.entries[destOffset:destOffset+count], t.entries[srcOffset:srcOffset+count])
	return nil
}

// Init stores values starting at offset during instantiation, before the
// table is visible to other threads. Unlike Set it reports bounds failures
// as an error rather than trapping.
func (t *Table) Init(offset uint32, values []wasm.Value) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if uint64(offset)+uint64(len(values)) > uint64(len(t.entries)) {
		return ErrTableBounds
	}
	copy(t.entries[offset:], values)
	return nil
}
