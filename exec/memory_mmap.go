//go:build wasm_mmap && (linux || darwin)

package exec

import (
	"golang.org/x/sys/unix"
)

// The mmap allocator reserves the memory's full maximum up front with
// PROT_NONE and commits pages on Grow with mprotect, so growth never moves
// the backing array. Memories without a declared maximum reserve the full
// 4GiB address range.

// NewMemory creates a new linear memory of min pages. max, when non-nil,
// bounds Grow.
func NewMemory(min uint32, max *uint32) *Memory {
	reservePages := uint64(maxMemoryPages)
	if max != nil && uint64(*max) < reservePages {
		reservePages = uint64(*max)
	}
	if uint64(min) > reservePages {
		reservePages = uint64(min)
	}

	reserved, err := unix.Mmap(-1, 0, int(reservePages*PageSize),
		unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(err)
	}

	m := &Memory{max: max, bytes: reserved[:0:len(reserved)]}
	if err := m.commit(uint64(min)); err != nil {
		panic(err)
	}
	return m
}

// commit makes the first pages pages readable and writable. The caller must
// hold m.mu or hold the only reference to m.
func (m *Memory) commit(pages uint64) error {
	size := pages * PageSize
	if size == uint64(len(m.bytes)) {
		return nil
	}
	reserved := m.bytes[:cap(m.bytes)]
	if err := unix.Mprotect(reserved[:size], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return err
	}
	m.bytes = reserved[:size]
	return nil
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
	if newPages*PageSize > uint64(cap(m.bytes)) {
		return oldPages, ErrMemoryLimit
	}
	if err := m.commit(newPages); err != nil {
		return oldPages, err
	}
	return oldPages, nil
}
