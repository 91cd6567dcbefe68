package interpreter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strandjs/wasm/exec"
	"github.com/strandjs/wasm/wasm"
	"github.com/strandjs/wasm/wasm/code"
)

// hostFn adapts a Go closure to exec.Function for import tests.
type hostFn struct {
	typ wasm.FunctionType
	fn  func(args ...wasm.Value) ([]wasm.Value, error)
}

func (f *hostFn) Type() wasm.FunctionType {
	return f.typ
}

func (f *hostFn) Call(args ...wasm.Value) ([]wasm.Value, error) {
	return f.fn(args...)
}

func TestInstantiateRejectsInvalidModule(t *testing.T) {
	m := &wasm.Module{
		Types:     []wasm.FunctionType{{}},
		Functions: []uint32{0},
		// No bodies: function and code counts disagree.
	}
	_, err := Instantiate(m, exec.MapResolver{})
	assert.Error(t, err)
}

func TestInstantiateName(t *testing.T) {
	inst := instantiate(t, &wasm.Module{}, WithName("env"))
	assert.Equal(t, "env", inst.Name())

	inst = instantiate(t, &wasm.Module{})
	assert.Equal(t, "main", inst.Name())
}

func TestImportedHostFunction(t *testing.T) {
	addType := wasm.FunctionType{
		Params:  []wasm.ValueType{wasm.ValueTypeI32, wasm.ValueTypeI32},
		Results: []wasm.ValueType{wasm.ValueTypeI32},
	}
	add := &hostFn{
		typ: addType,
		fn: func(args ...wasm.Value) ([]wasm.Value, error) {
			return []wasm.Value{wasm.NewI32(args[0].I32() + args[1].I32())}, nil
		},
	}

	m := &wasm.Module{
		Types: []wasm.FunctionType{addType, {Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		Imports: []wasm.ImportEntry{
			{ModuleName: "env", FieldName: "add", Kind: wasm.ExternalFunction, TypeIndex: 0},
		},
		Functions: []uint32{1},
		Exports:   []wasm.ExportEntry{{Name: "f", Kind: wasm.ExternalFunction, Index: 1}},
		Bodies: []wasm.FunctionBody{
			// add(30, 12) through the import
			{Code: []byte{0x41, 0x1e, 0x41, 0x0c, 0x10, 0x00, 0x0b}},
		},
	}

	inst, err := Instantiate(m, exec.MapResolver{"env": {"add": add}})
	require.NoError(t, err)
	assert.Equal(t, int32(42), call1(t, getFunc(t, inst, "f")).I32())
}

func TestHostErrorPropagates(t *testing.T) {
	boom := errors.New("host failure")
	fail := &hostFn{
		typ: wasm.FunctionType{},
		fn: func(args ...wasm.Value) ([]wasm.Value, error) {
			return nil, boom
		},
	}

	m := &wasm.Module{
		Types: []wasm.FunctionType{{}},
		Imports: []wasm.ImportEntry{
			{ModuleName: "env", FieldName: "fail", Kind: wasm.ExternalFunction, TypeIndex: 0},
		},
		Functions: []uint32{0},
		Exports:   []wasm.ExportEntry{{Name: "f", Kind: wasm.ExternalFunction, Index: 1}},
		Bodies:    []wasm.FunctionBody{{Code: []byte{0x10, 0x00, 0x0b}}},
	}

	inst, err := Instantiate(m, exec.MapResolver{"env": {"fail": fail}})
	require.NoError(t, err)

	_, err = getFunc(t, inst, "f").Call()
	assert.Equal(t, boom, err)
}

func TestCrossInstanceImportedFunction(t *testing.T) {
	// Instance A exports a function that reads its own global. Instance B
	// imports and calls it; the body must execute against A's index spaces.
	a := &wasm.Module{
		Types:     []wasm.FunctionType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		Functions: []uint32{0},
		Globals: []wasm.GlobalEntry{
			{Type: wasm.GlobalType{Type: wasm.ValueTypeI32}, Init: []byte{0x41, 0x2a, 0x0b}},
		},
		Exports: []wasm.ExportEntry{{Name: "get", Kind: wasm.ExternalFunction, Index: 0}},
		Bodies:  []wasm.FunctionBody{{Code: []byte{0x23, 0x00, 0x0b}}},
	}
	instA := instantiate(t, a, WithName("a"))
	get := getFunc(t, instA, "get")

	b := &wasm.Module{
		Types: []wasm.FunctionType{{Results: []wasm.ValueType{wasm.ValueTypeI32}}},
		Imports: []wasm.ImportEntry{
			{ModuleName: "a", FieldName: "get", Kind: wasm.ExternalFunction, TypeIndex: 0},
		},
		Functions: []uint32{0},
		Exports:   []wasm.ExportEntry{{Name: "f", Kind: wasm.ExternalFunction, Index: 1}},
		Bodies:    []wasm.FunctionBody{{Code: []byte{0x10, 0x00, 0x0b}}},
	}
	instB, err := Instantiate(b, exec.MapResolver{"a": {"get": get}}, WithName("b"))
	require.NoError(t, err)

	assert.Equal(t, int32(42), call1(t, getFunc(t, instB, "f")).I32())
}

func TestUnresolvedImportFails(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FunctionType{{}},
		Imports: []wasm.ImportEntry{
			{ModuleName: "env", FieldName: "missing", Kind: wasm.ExternalFunction, TypeIndex: 0},
		},
	}
	_, err := Instantiate(m, exec.MapResolver{})
	var notFound *exec.ImportNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestStartFunctionRuns(t *testing.T) {
	start := uint32(0)
	m := &wasm.Module{
		Types:     []wasm.FunctionType{{}},
		Functions: []uint32{0},
		Memories:  []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Exports:   []wasm.ExportEntry{{Name: "memory", Kind: wasm.ExternalMemory, Index: 0}},
		Start:     &start,
		Bodies: []wasm.FunctionBody{
			// Writes 42 to address 0.
			{Code: []byte{0x41, 0x00, 0x41, 0x2a, 0x36, 0x02, 0x00, 0x0b}},
		},
	}
	inst := instantiate(t, m)

	mem, err := inst.GetMemory("memory")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), mem.Uint32(0))
}

func TestStartFunctionTrapFailsInstantiation(t *testing.T) {
	start := uint32(0)
	m := &wasm.Module{
		Types:     []wasm.FunctionType{{}},
		Functions: []uint32{0},
		Start:     &start,
		Bodies:    []wasm.FunctionBody{{Code: []byte{0x00, 0x0b}}},
	}
	_, err := Instantiate(m, exec.MapResolver{})
	require.Error(t, err)
	assert.ErrorIs(t, err, exec.TrapUnreachable)
}

func TestDataSegmentsApplied(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Exports:  []wasm.ExportEntry{{Name: "memory", Kind: wasm.ExternalMemory, Index: 0}},
		Data: []wasm.DataSegment{
			{MemoryIndex: 0, Offset: []byte{0x41, 0x08, 0x0b}, Bytes: []byte("hi")},
		},
	}
	inst := instantiate(t, m)

	mem, err := inst.GetMemory("memory")
	require.NoError(t, err)
	assert.Equal(t, byte('h'), mem.Uint8(8))
	assert.Equal(t, byte('i'), mem.Uint8(9))
}

func TestDataSegmentOffsetFromImportedGlobal(t *testing.T) {
	base := exec.NewGlobal(wasm.GlobalType{Type: wasm.ValueTypeI32}, wasm.NewI32(4))
	m := &wasm.Module{
		Imports: []wasm.ImportEntry{
			{ModuleName: "env", FieldName: "base", Kind: wasm.ExternalGlobal,
				Global: wasm.GlobalType{Type: wasm.ValueTypeI32}},
		},
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Exports:  []wasm.ExportEntry{{Name: "memory", Kind: wasm.ExternalMemory, Index: 0}},
		Data: []wasm.DataSegment{
			{MemoryIndex: 0, Offset: []byte{0x23, 0x00, 0x0b}, Bytes: []byte{9}},
		},
	}
	inst, err := Instantiate(m, exec.MapResolver{"env": {"base": base}})
	require.NoError(t, err)

	mem, err := inst.GetMemory("memory")
	require.NoError(t, err)
	assert.Equal(t, byte(9), mem.Uint8(4))
}

func TestDataSegmentDoesNotFit(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Data: []wasm.DataSegment{
			{MemoryIndex: 0, Offset: []byte{0x41, 0xff, 0xff, 0x03, 0x0b}, Bytes: []byte{1, 2}},
		},
	}
	_, err := Instantiate(m, exec.MapResolver{})
	assert.Equal(t, exec.ErrDataSegmentDoesNotFit, err)
}

func TestElementSegmentDoesNotFit(t *testing.T) {
	m := &wasm.Module{
		Types:     []wasm.FunctionType{{}},
		Functions: []uint32{0},
		Tables: []wasm.TableType{
			{ElemType: wasm.ValueTypeFuncRef, Limits: wasm.Limits{Min: 2}},
		},
		Elements: []wasm.ElementSegment{
			{TableIndex: 0, Offset: []byte{0x41, 0x05, 0x0b}, Funcs: []uint32{0}},
		},
		Bodies: []wasm.FunctionBody{{Code: []byte{0x0b}}},
	}
	_, err := Instantiate(m, exec.MapResolver{})
	assert.Equal(t, exec.ErrElementSegmentDoesNotFit, err)
}

// skipModule returns 7 after an unimplemented vector instruction.
func skipModule() *wasm.Module {
	return singleFunc(
		wasm.FunctionType{Results: []wasm.ValueType{wasm.ValueTypeI32}},
		wasm.FunctionBody{Code: []byte{0x41, 0x07, 0xfd, 0x62, 0x0b}},
	)
}

func TestPolicyStrict(t *testing.T) {
	// The default policy raises a runtime error, not a WASM trap.
	fn := getFunc(t, instantiate(t, skipModule()), "f")
	_, err := fn.Call()
	var unsupported *UnsupportedOpcodeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, code.Instr{Op: code.OpVectorPrefix, Sub: 0x62}, unsupported.Instr)
	var trap exec.Trap
	assert.False(t, errors.As(err, &trap))
}

func TestPolicyTrap(t *testing.T) {
	fn := getFunc(t, instantiate(t, skipModule(), WithPolicy(PolicyTrap)), "f")
	_, err := fn.Call()
	assert.Equal(t, exec.TrapUnknownOpcode, err)
}

func TestPolicySkip(t *testing.T) {
	fn := getFunc(t, instantiate(t, skipModule(), WithPolicy(PolicySkip)), "f")
	assert.Equal(t, int32(7), call1(t, fn).I32())
}

func TestUnknownOpcodeHandler(t *testing.T) {
	var seen []code.Instr
	handled := func(instr code.Instr) error {
		seen = append(seen, instr)
		return nil
	}

	fn := getFunc(t, instantiate(t, skipModule(), WithUnknownOpcodeHandler(handled)), "f")
	assert.Equal(t, int32(7), call1(t, fn).I32())
	assert.Equal(t, []code.Instr{{Op: code.OpVectorPrefix, Sub: 0x62}}, seen)

	// A failing handler traps even under the skip policy.
	reject := func(instr code.Instr) error { return errors.New("no") }
	fn = getFunc(t, instantiate(t, skipModule(), WithPolicy(PolicySkip), WithUnknownOpcodeHandler(reject)), "f")
	_, err := fn.Call()
	assert.Equal(t, exec.TrapUnknownOpcode, err)
}
