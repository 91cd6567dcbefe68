package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandjs/wasm/wasm"
)

func TestGlobalGetSet(t *testing.T) {
	g := NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeI32, Mutable: true}, wasm.NewI32(1))
	assert.Equal(t, int32(1), g.Get().I32())

	require.NoError(t, g.Set(wasm.NewI32(2)))
	assert.Equal(t, int32(2), g.Get().I32())

	err := g.Set(wasm.NewI64(3))
	var typeErr *GlobalTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, int32(2), g.Get().I32())
}

func TestGlobalImmutable(t *testing.T) {
	g := NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeF64}, wasm.NewF64(1.5))
	assert.Equal(t, ErrImmutableGlobal, g.Set(wasm.NewF64(2.5)))
	assert.Equal(t, 1.5, g.Get().F64())
}

func TestNewGlobalMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeI32}, wasm.NewF32(0))
	})
}

func TestGlobalReset(t *testing.T) {
	g := NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeI64, Mutable: true}, wasm.NewI64(10))
	require.NoError(t, g.Set(wasm.NewI64(99)))
	g.Reset()
	assert.Equal(t, int64(10), g.Get().I64())
}

func TestGlobalCompareExchange(t *testing.T) {
	g := NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeI32, Mutable: true}, wasm.NewI32(5))

	old, ok := g.CompareExchange(wasm.NewI32(5), wasm.NewI32(6))
	assert.True(t, ok)
	assert.Equal(t, int32(5), old.I32())
	assert.Equal(t, int32(6), g.Get().I32())

	old, ok = g.CompareExchange(wasm.NewI32(5), wasm.NewI32(7))
	assert.False(t, ok)
	assert.Equal(t, int32(6), old.I32())
	assert.Equal(t, int32(6), g.Get().I32())
}

func TestGlobalExchange(t *testing.T) {
	g := NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeF32, Mutable: true}, wasm.NewF32(1))

	old, ok := g.Exchange(wasm.NewF32(2))
	assert.True(t, ok)
	assert.Equal(t, float32(1), old.F32())
	assert.Equal(t, float32(2), g.Get().F32())

	_, ok = g.Exchange(wasm.NewI32(3))
	assert.False(t, ok)
	assert.Equal(t, float32(2), g.Get().F32())
}

func TestGlobalFetchAddSub(t *testing.T) {
	g := NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeI64, Mutable: true}, wasm.NewI64(10))

	old, ok := g.FetchAdd(wasm.NewI64(5))
	assert.True(t, ok)
	assert.Equal(t, int64(10), old.I64())
	assert.Equal(t, int64(15), g.Get().I64())

	old, ok = g.FetchSub(wasm.NewI64(3))
	assert.True(t, ok)
	assert.Equal(t, int64(15), old.I64())
	assert.Equal(t, int64(12), g.Get().I64())

	f := NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeF64, Mutable: true}, wasm.NewF64(1.5))
	_, ok = f.FetchAdd(wasm.NewF64(1))
	assert.True(t, ok)
	assert.Equal(t, 2.5, f.Get().F64())
}

func TestGlobalAtomicsOnReferences(t *testing.T) {
	g := NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeExternRef, Mutable: true}, wasm.NullRef(wasm.ValueTypeExternRef))

	_, ok := g.Exchange(wasm.NewExternRef("x"))
	assert.False(t, ok)
	_, ok = g.CompareExchange(wasm.NullRef(wasm.ValueTypeExternRef), wasm.NewExternRef("x"))
	assert.False(t, ok)
	_, ok = g.FetchAdd(wasm.NullRef(wasm.ValueTypeExternRef))
	assert.False(t, ok)
	assert.True(t, g.Get().IsNullRef())
}
