package exec

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"go.uber.org/zap"
)

// PageSize is the WASM linear memory page size in bytes.
const PageSize = 65536

// maxMemoryPages caps linear memories at 4GiB regardless of declared limits.
const maxMemoryPages = 65536

// ErrMemoryLimit is returned by Grow when the resulting size would exceed
// the memory's maximum.
var ErrMemoryLimit = fmt.Errorf("wasm: memory limit exceeded")

// ErrMemoryBounds is returned by the embedder-facing accessors for
// out-of-range offsets. The interpreter-facing accessors trap instead.
var ErrMemoryBounds = fmt.Errorf("wasm: memory access out of bounds")

// A Memory is a WASM linear memory. Public operations are guarded by the
// memory's mutex; the atomic instruction accessors serialize under that same
// mutex. Allocation and growth live in memory_heap.go and memory_mmap.go.
type Memory struct {
	mu    sync.Mutex
	max   *uint32
	trace *zap.Logger
	bytes []byte
}

// Size returns the current size of the memory in pages.
func (m *Memory) Size() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint32(uint64(len(m.bytes)) / PageSize)
}

// Max returns the memory's declared maximum size in pages, or nil.
func (m *Memory) Max() *uint32 {
	return m.max
}

// SetTrace enables per-access logging of loads and stores to the given
// logger at debug level. Pass nil to disable.
func (m *Memory) SetTrace(logger *zap.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trace = logger
}

// EffectiveAddress computes base + offset without 32-bit wraparound.
func EffectiveAddress(base uint32, offset uint32) uint64 {
	return uint64(base) + uint64(offset)
}

// span bounds-checks an n-byte access at ea and returns the backing slice.
// The caller must hold m.mu.
func (m *Memory) span(ea uint64, n uint64) []byte {
	if ea+n > uint64(len(m.bytes)) {
		panic(TrapOutOfBoundsMemoryAccess)
	}
	return m.bytes[ea : ea+n]
}

func (m *Memory) traceLoad(ea uint64, bits uint64) {
	if m.trace != nil {
		m.trace.Debug("load", zap.Uint64("addr", ea), zap.Uint64("value", bits))
	}
}

func (m *Memory) traceStore(ea uint64, bits uint64) {
	if m.trace != nil {
		m.trace.Debug("store", zap.Uint64("addr", ea), zap.Uint64("value", bits))
	}
}

// The typed accessors below serve the interpreter's load and store
// instructions: they bounds-check against the current memory size and trap
// on out-of-range access rather than clamping.

func (m *Memory) Uint8(ea uint64) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.span(ea, 1)[0]
	m.traceLoad(ea, uint64(v))
	return v
}

func (m *Memory) PutUint8(ea uint64, v byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traceStore(ea, uint64(v))
	m.span(ea, 1)[0] = v
}

func (m *Memory) Uint16(ea uint64) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := binary.LittleEndian.Uint16(m.span(ea, 2))
	m.traceLoad(ea, uint64(v))
	return v
}

func (m *Memory) PutUint16(ea uint64, v uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traceStore(ea, uint64(v))
	binary.LittleEndian.PutUint16(m.span(ea, 2), v)
}

func (m *Memory) Uint32(ea uint64) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := binary.LittleEndian.Uint32(m.span(ea, 4))
	m.traceLoad(ea, uint64(v))
	return v
}

func (m *Memory) PutUint32(ea uint64, v uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traceStore(ea, uint64(v))
	binary.LittleEndian.PutUint32(m.span(ea, 4), v)
}

func (m *Memory) Uint64(ea uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := binary.LittleEndian.Uint64(m.span(ea, 8))
	m.traceLoad(ea, v)
	return v
}

func (m *Memory) PutUint64(ea uint64, v uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.traceStore(ea, v)
	binary.LittleEndian.PutUint64(m.span(ea, 8), v)
}

func (m *Memory) Float32(ea uint64) float32 {
	return math.Float32frombits(m.Uint32(ea))
}

func (m *Memory) PutFloat32(ea uint64, v float32) {
	m.PutUint32(ea, math.Float32bits(v))
}

func (m *Memory) Float64(ea uint64) float64 {
	return math.Float64frombits(m.Uint64(ea))
}

func (m *Memory) PutFloat64(ea uint64, v float64) {
	m.PutUint64(ea, math.Float64bits(v))
}

func (m *Memory) V128(ea uint64) [16]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var v [16]byte
	copy(v[:], m.span(ea, 16))
	return v
}

func (m *Memory) PutV128(ea uint64, v [16]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.span(ea, 16), v[:])
}

// Fill writes n copies of v starting at dst. All-or-nothing: an
// out-of-range span traps with no partial write.
func (m *Memory) Fill(dst uint64, v byte, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	span := m.span(dst, n)
	for i := range span {
		span[i] = v
	}
}

// Copy copies n bytes from src to dst within the memory, handling overlap.
func (m *Memory) Copy(dst, src, n uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dst+n > uint64(len(m.bytes)) || src+n > uint64(len(m.bytes)) {
		panic(TrapOutOfBoundsMemoryAccess)
	}
	copy(m.bytes[dst:dst+n], m.bytes[src:src+n])
}

// Init copies a data segment slice into the memory at dst.
func (m *Memory) Init(dst uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.span(dst, uint64(len(data))), data)
}

// InitData writes a data segment during instantiation. Unlike Init it
// reports bounds failures as an error for the instantiation pipeline.
func (m *Memory) InitData(dst uint64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dst+uint64(len(data)) > uint64(len(m.bytes)) {
		return ErrMemoryBounds
	}
	copy(m.bytes[dst:], data)
	return nil
}

// The embedder-facing accessors below return errors instead of trapping so
// JS-side typed views can check bounds without unwinding.

func (m *Memory) GetByte(offset uint32) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(offset) >= uint64(len(m.bytes)) {
		return 0, ErrMemoryBounds
	}
	return m.bytes[offset], nil
}

func (m *Memory) SetByte(offset uint32, v byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(offset) >= uint64(len(m.bytes)) {
		return ErrMemoryBounds
	}
	m.bytes[offset] = v
	return nil
}

// Read copies len(p) bytes starting at offset into p.
func (m *Memory) Read(offset uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(offset)+uint64(len(p)) > uint64(len(m.bytes)) {
		return ErrMemoryBounds
	}
	copy(p, m.bytes[offset:])
	return nil
}

// Write copies p into the memory starting at offset.
func (m *Memory) Write(offset uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(offset)+uint64(len(p)) > uint64(len(m.bytes)) {
		return ErrMemoryBounds
	}
	copy(m.bytes[offset:], p)
	return nil
}

// The atomic accessors serve the 0xFE instruction family. They require
// natural alignment and serialize under the memory mutex.

func (m *Memory) checkAligned(ea uint64, n uint64) {
	if ea%n != 0 {
		panic(TrapUnalignedAtomicAccess)
	}
}

func (m *Memory) AtomicUint32(ea uint64) uint32 {
	m.checkAligned(ea, 4)
	return m.Uint32(ea)
}

func (m *Memory) AtomicPutUint32(ea uint64, v uint32) {
	m.checkAligned(ea, 4)
	m.PutUint32(ea, v)
}

func (m *Memory) AtomicUint64(ea uint64) uint64 {
	m.checkAligned(ea, 8)
	return m.Uint64(ea)
}

func (m *Memory) AtomicPutUint64(ea uint64, v uint64) {
	m.checkAligned(ea, 8)
	m.PutUint64(ea, v)
}

// AtomicRMW32 applies f to the uint32 at ea and stores the result, returning
// the old value.
func (m *Memory) AtomicRMW32(ea uint64, f func(uint32) uint32) uint32 {
	m.checkAligned(ea, 4)
	m.mu.Lock()
	defer m.mu.Unlock()
	span := m.span(ea, 4)
	old := binary.LittleEndian.Uint32(span)
	binary.LittleEndian.PutUint32(span, f(old))
	return old
}

// AtomicRMW64 applies f to the uint64 at ea and stores the result, returning
// the old value.
func (m *Memory) AtomicRMW64(ea uint64, f func(uint64) uint64) uint64 {
	m.checkAligned(ea, 8)
	m.mu.Lock()
	defer m.mu.Unlock()
	span := m.span(ea, 8)
	old := binary.LittleEndian.Uint64(span)
	binary.LittleEndian.PutUint64(span, f(old))
	return old
}

// AtomicCompareExchange32 replaces the uint32 at ea with desired if it
// equals expected, returning the observed value.
func (m *Memory) AtomicCompareExchange32(ea uint64, expected, desired uint32) uint32 {
	m.checkAligned(ea, 4)
	m.mu.Lock()
	defer m.mu.Unlock()
	span := m.span(ea, 4)
	old := binary.LittleEndian.Uint32(span)
	if old == expected {
		binary.LittleEndian.PutUint32(span, desired)
	}
	return old
}

// AtomicCompareExchange64 replaces the uint64 at ea with desired if it
// equals expected, returning the observed value.
func (m *Memory) AtomicCompareExchange64(ea uint64, expected, desired uint64) uint64 {
	m.checkAligned(ea, 8)
	m.mu.Lock()
	defer m.mu.Unlock()
	span := m.span(ea, 8)
	old := binary.LittleEndian.Uint64(span)
	if old == expected {
		binary.LittleEndian.PutUint64(span, desired)
	}
	return old
}
