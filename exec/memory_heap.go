//go:build !wasm_mmap

package exec

// NewMemory creates a new linear memory of min pages. max, when non-nil,
// bounds Grow.
func NewMemory(min uint32, max *uint32) *Memory {
	return &Memory{
		max:   max,
		bytes: make([]byte, uint64(min)*PageSize),
	}
}

// Grow grows the memory by the given number of pages, returning the old
// size in pages. It fails without mutating if the new size would exceed the
// declared maximum or 65536 pages.
func (m *Memory) Grow(pages uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldPages := uint32(uint64(len(m.bytes)) / PageSize)
	newPages := uint64(oldPages) + uint64(pages)
	if m.max != nil && newPages > uint64(*m.max) || newPages > maxMemoryPages {
		return oldPages, ErrMemoryLimit
	}
	grown := make([]byte, newPages*PageSize)
	copy(grown, m.bytes)
	m.bytes = grown
	return oldPages, nil
}
