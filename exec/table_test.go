package exec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandjs/wasm/wasm"
)

func maxOf(v uint32) *uint32 {
	return &v
}

func TestNewTableStartsNull(t *testing.T) {
	table := NewTable(wasm.ValueTypeFuncRef, 3, nil)
	assert.Equal(t, uint32(3), table.Size())
	assert.Equal(t, wasm.ValueTypeFuncRef, table.ElemType())
	assert.Nil(t, table.Max())
	for i := uint32(0); i < 3; i++ {
		assert.True(t, table.Get(i).IsNullRef())
	}
}

func TestTableGetOutOfRange(t *testing.T) {
	table := NewTable(wasm.ValueTypeExternRef, 1, nil)
	v := table.Get(10)
	assert.True(t, v.IsNullRef())
	assert.Equal(t, wasm.ValueTypeExternRef, v.Type())
}

func TestTableSet(t *testing.T) {
	table := NewTable(wasm.ValueTypeFuncRef, 2, nil)
	ref := wasm.NewFuncRef("f")

	require.NoError(t, table.Set(1, ref))
	assert.Equal(t, ref, table.Get(1))

	assert.Equal(t, ErrTableBounds, table.Set(2, ref))

	err := table.Set(0, wasm.NewExternRef("x"))
	var typeErr *TableTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, wasm.ValueTypeFuncRef, typeErr.Expected)
	assert.True(t, table.Get(0).IsNullRef())
}

func TestTableGrow(t *testing.T) {
	table := NewTable(wasm.ValueTypeFuncRef, 1, maxOf(3))
	init := wasm.NewFuncRef("f")

	old, err := table.Grow(2, init)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), old)
	assert.Equal(t, uint32(3), table.Size())
	assert.Equal(t, init, table.Get(2))

	// Past the declared maximum: size unchanged.
	_, err = table.Grow(1, init)
	assert.Equal(t, ErrTableLimit, err)
	assert.Equal(t, uint32(3), table.Size())

	_, err = table.Grow(0, wasm.NewExternRef("x"))
	assert.Error(t, err)
}

func TestTableGrowCeiling(t *testing.T) {
	table := NewTable(wasm.ValueTypeFuncRef, 0, nil)
	_, err := table.Grow(MaxTableSize+1, wasm.NullRef(wasm.ValueTypeFuncRef))
	assert.Equal(t, ErrTableLimit, err)
}

func TestTableFill(t *testing.T) {
	table := NewTable(wasm.ValueTypeFuncRef, 4, nil)
	v := wasm.NewFuncRef("f")

	require.NoError(t, table.Fill(1, 2, v))
	assert.True(t, table.Get(0).IsNullRef())
	assert.Equal(t, v, table.Get(1))
	assert.Equal(t, v, table.Get(2))
	assert.True(t, table.Get(3).IsNullRef())

	// Out of range: nothing written.
	assert.Equal(t, ErrTableBounds, table.Fill(3, 2, v))
	assert.True(t, table.Get(3).IsNullRef())

	// A zero-length fill at the boundary is fine.
	assert.NoError(t, table.Fill(4, 0, v))
}

func TestTableCopyTo(t *testing.T) {
	src := NewTable(wasm.ValueTypeFuncRef, 4, nil)
	dst := NewTable(wasm.ValueTypeFuncRef, 4, nil)
	for i := uint32(0); i < 4; i++ {
		require.NoError(t, src.Set(i, wasm.NewFuncRef(i)))
	}

	require.NoError(t, src.CopyTo(dst, 1, 0, 3))
	assert.Equal(t, wasm.NewFuncRef(uint32(0)), dst.Get(1))
	assert.Equal(t, wasm.NewFuncRef(uint32(2)), dst.Get(3))

	assert.Equal(t, ErrTableBounds, src.CopyTo(dst, 3, 0, 2))
}

func TestTableCopyOverlap(t *testing.T) {
	table := NewTable(wasm.ValueTypeFuncRef, 4, nil)
	for i := uint32(0); i < 4; i++ {
		require.NoError(t, table.Set(i, wasm.NewFuncRef(i)))
	}

	// Overlapping self-copy behaves as if through an intermediate buffer.
	require.NoError(t, table.CopyTo(table, 1, 0, 3))
	assert.Equal(t, wasm.NewFuncRef(uint32(0)), table.Get(0))
	assert.Equal(t, wasm.NewFuncRef(uint32(0)), table.Get(1))
	assert.Equal(t, wasm.NewFuncRef(uint32(1)), table.Get(2))
	assert.Equal(t, wasm.NewFuncRef(uint32(2)), table.Get(3))
}

func TestTableCopyTypeMismatch(t *testing.T) {
	src := NewTable(wasm.ValueTypeFuncRef, 2, nil)
	dst := NewTable(wasm.ValueTypeExternRef, 2, nil)
	assert.Error(t, src.CopyTo(dst, 0, 0, 1))
}

func TestTableInit(t *testing.T) {
	table := NewTable(wasm.ValueTypeFuncRef, 3, nil)
	values := []wasm.Value{wasm.NewFuncRef("a"), wasm.NewFuncRef("b")}

	require.NoError(t, table.Init(1, values))
	assert.Equal(t, values[0], table.Get(1))
	assert.Equal(t, values[1], table.Get(2))

	assert.Equal(t, ErrTableBounds, table.Init(2, values))
}
