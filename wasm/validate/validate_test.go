package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strandjs/wasm/wasm"
)

func i32Const(v byte) []byte {
	return []byte{0x41, v, 0x0b}
}

func validModule() *wasm.Module {
	return &wasm.Module{
		Types: []wasm.FunctionType{
			{},
			{Params: []wasm.ValueType{wasm.ValueTypeI32}, Results: []wasm.ValueType{wasm.ValueTypeI32}},
		},
		Functions: []uint32{0, 1},
		Tables: []wasm.TableType{
			{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 2}},
		},
		Memories: []wasm.MemoryType{
			{Limits: wasm.Limits{Min: 1, Max: 16, HasMax: true}},
		},
		Globals: []wasm.GlobalEntry{
			{Type: wasm.GlobalType{Type: wasm.ValueTypeI32, Mutable: true}, Init: i32Const(7)},
		},
		Exports: []wasm.ExportEntry{
			{Name: "main", Kind: wasm.ExternalFunction, Index: 0},
			{Name: "memory", Kind: wasm.ExternalMemory, Index: 0},
		},
		Elements: []wasm.ElementSegment{
			{TableIndex: 0, Offset: i32Const(0), Funcs: []uint32{0, 1}},
		},
		Data: []wasm.DataSegment{
			{MemoryIndex: 0, Offset: i32Const(0), Bytes: []byte{1, 2, 3}},
		},
		Bodies: []wasm.FunctionBody{
			{Code: []byte{0x0b}},
			{Code: []byte{0x20, 0x00, 0x0b}},
		},
	}
}

func TestValidModule(t *testing.T) {
	assert.NoError(t, ValidateModule(validModule()))
}

func TestMultipleResults(t *testing.T) {
	m := validModule()
	m.Types[0].Results = []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32}
	assert.Error(t, ValidateModule(m))
}

func TestInvalidParameterType(t *testing.T) {
	m := validModule()
	m.Types[0].Params = []wasm.ValueType{wasm.ValueType(0x17)}
	assert.Error(t, ValidateModule(m))
}

func TestMultipleTables(t *testing.T) {
	m := validModule()
	m.Tables = append(m.Tables, m.Tables[0])
	assert.Error(t, ValidateModule(m))
}

func TestImportedAndDefinedTable(t *testing.T) {
	m := validModule()
	m.Imports = []wasm.ImportEntry{{
		ModuleName: "env", FieldName: "table", Kind: wasm.ExternalTable,
		Table: wasm.TableType{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 1}},
	}}
	assert.Error(t, ValidateModule(m))
}

func TestMultipleMemories(t *testing.T) {
	m := validModule()
	m.Memories = append(m.Memories, m.Memories[0])
	assert.Error(t, ValidateModule(m))
}

func TestMemoryTooLarge(t *testing.T) {
	m := validModule()
	m.Memories[0].Limits = wasm.Limits{Min: 65537}
	assert.Error(t, ValidateModule(m))
}

func TestLimitsMinAboveMax(t *testing.T) {
	m := validModule()
	m.Tables[0].Limits = wasm.Limits{HasMax: true, Min: 5, Max: 2}
	assert.Error(t, ValidateModule(m))
}

func TestFunctionCodeCountMismatch(t *testing.T) {
	m := validModule()
	m.Bodies = m.Bodies[:1]
	assert.Error(t, ValidateModule(m))
}

func TestUnknownFunctionType(t *testing.T) {
	m := validModule()
	m.Functions[0] = 9
	assert.Error(t, ValidateModule(m))
}

func TestInvalidLocalType(t *testing.T) {
	m := validModule()
	m.Bodies[0].Locals = []wasm.LocalEntry{{Count: 1, Type: wasm.ValueType(0x17)}}
	assert.Error(t, ValidateModule(m))
}

func TestDuplicateExportNames(t *testing.T) {
	m := validModule()
	m.Exports = append(m.Exports, wasm.ExportEntry{Name: "main", Kind: wasm.ExternalMemory, Index: 0})
	assert.Error(t, ValidateModule(m))
}

func TestExportUnknownFunction(t *testing.T) {
	m := validModule()
	m.Exports[0].Index = 5
	assert.Error(t, ValidateModule(m))
}

func TestMutableGlobalExport(t *testing.T) {
	m := validModule()
	m.Exports = append(m.Exports, wasm.ExportEntry{Name: "g", Kind: wasm.ExternalGlobal, Index: 0})
	assert.Error(t, ValidateModule(m))

	// An immutable global exports fine.
	m.Globals[0].Type.Mutable = false
	assert.NoError(t, ValidateModule(m))
}

func TestStartSignature(t *testing.T) {
	m := validModule()
	start := uint32(0)
	m.Start = &start
	assert.NoError(t, ValidateModule(m))

	start = 1 // (i32) -> i32
	assert.Error(t, ValidateModule(m))

	start = 7
	assert.Error(t, ValidateModule(m))
}

func TestElementSegmentBounds(t *testing.T) {
	m := validModule()
	m.Elements[0].Funcs = []uint32{0, 9}
	assert.Error(t, ValidateModule(m))

	m = validModule()
	m.Elements[0].TableIndex = 1
	assert.Error(t, ValidateModule(m))
}

func TestDataSegmentUnknownMemory(t *testing.T) {
	m := validModule()
	m.Data[0].MemoryIndex = 1
	assert.Error(t, ValidateModule(m))
}

func TestDataCountMismatch(t *testing.T) {
	m := validModule()
	count := uint32(2)
	m.DataCount = &count
	assert.Error(t, ValidateModule(m))

	count = 1
	assert.NoError(t, ValidateModule(m))
}

func TestInitExprRules(t *testing.T) {
	immutable := wasm.ImportEntry{
		ModuleName: "env", FieldName: "base", Kind: wasm.ExternalGlobal,
		Global: wasm.GlobalType{Type: wasm.ValueTypeI32},
	}

	// global.get of an imported immutable global is a constant expression.
	m := validModule()
	m.Imports = []wasm.ImportEntry{immutable}
	m.Data[0].Offset = []byte{0x23, 0x00, 0x0b}
	assert.NoError(t, ValidateModule(m))

	// A mutable import is not.
	m.Imports[0].Global.Mutable = true
	assert.Error(t, ValidateModule(m))

	// Neither is a locally-defined global.
	m = validModule()
	m.Data[0].Offset = []byte{0x23, 0x00, 0x0b}
	assert.Error(t, ValidateModule(m))

	// Offsets must be i32.
	m = validModule()
	m.Data[0].Offset = []byte{0x42, 0x00, 0x0b}
	assert.Error(t, ValidateModule(m))

	// Arbitrary opcodes are rejected.
	m = validModule()
	m.Globals[0].Init = []byte{0x6a, 0x0b}
	assert.Error(t, ValidateModule(m))

	// A missing end terminator is rejected.
	m = validModule()
	m.Globals[0].Init = []byte{0x41, 0x07}
	assert.Error(t, ValidateModule(m))

	// Trailing garbage after the constant is rejected.
	m = validModule()
	m.Globals[0].Init = []byte{0x41, 0x07, 0x41, 0x08, 0x0b}
	assert.Error(t, ValidateModule(m))
}
