package wasm

// A Module is a decoded WASM module descriptor. It is populated by
// DecodeModule, checked by the validate package, and consumed by the
// interpreter's instantiation path. A Module is immutable after decoding;
// one Module may be instantiated any number of times.
type Module struct {
	Types     []FunctionType
	Imports   []ImportEntry
	Functions []uint32 // indices into Types
	Tables    []TableType
	Memories  []MemoryType
	Globals   []GlobalEntry
	Exports   []ExportEntry
	Start     *uint32
	Elements  []ElementSegment
	Data      []DataSegment
	Bodies    []FunctionBody
	Customs   []CustomSection

	// DataCount holds the contents of the data count section, if present.
	DataCount *uint32
}

// Custom returns the first custom section with the given name, if any.
func (m *Module) Custom(name string) *CustomSection {
	for i := range m.Customs {
		if m.Customs[i].Name == name {
			return &m.Customs[i]
		}
	}
	return nil
}

// FunctionType returns the type of the function with the given index in the
// module's function index space, which covers imported functions followed by
// locally-defined functions.
func (m *Module) FunctionType(index uint32) (FunctionType, bool) {
	for _, imp := range m.Imports {
		if imp.Kind != ExternalFunction {
			continue
		}
		if index == 0 {
			if imp.TypeIndex >= uint32(len(m.Types)) {
				return FunctionType{}, false
			}
			return m.Types[imp.TypeIndex], true
		}
		index--
	}
	if index >= uint32(len(m.Functions)) {
		return FunctionType{}, false
	}
	typeidx := m.Functions[index]
	if typeidx >= uint32(len(m.Types)) {
		return FunctionType{}, false
	}
	return m.Types[typeidx], true
}

// NumImported returns the number of imports of the given kind.
func (m *Module) NumImported(kind External) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Kind == kind {
			n++
		}
	}
	return n
}

// ImportEntry declares a single import. Exactly one of the typed fields is
// meaningful, selected by Kind.
type ImportEntry struct {
	ModuleName string
	FieldName  string
	Kind       External

	TypeIndex uint32     // ExternalFunction
	Table     TableType  // ExternalTable
	Memory    MemoryType // ExternalMemory
	Global    GlobalType // ExternalGlobal
}

// GlobalEntry declares a module-defined global variable and its constant
// initializer expression.
type GlobalEntry struct {
	Type GlobalType
	Init []byte // terminated by the end opcode
}

// ExportEntry exposes an object in one of the module's index spaces under a
// name.
type ExportEntry struct {
	Name  string
	Kind  External
	Index uint32
}

// ElementSegment initializes a range of a table with function indices.
type ElementSegment struct {
	TableIndex uint32
	Offset     []byte // init expression, must evaluate to i32
	Funcs      []uint32
}

// DataSegment initializes a range of a linear memory with raw bytes.
type DataSegment struct {
	MemoryIndex uint32
	Offset      []byte // init expression, must evaluate to i32
	Bytes       []byte
}

// LocalEntry declares Count consecutive locals of the same type.
type LocalEntry struct {
	Count uint32
	Type  ValueType
}

// FunctionBody holds a function's declared locals and its raw instruction
// stream, including the terminating end opcode.
type FunctionBody struct {
	Locals []LocalEntry
	Code   []byte
}

// NumLocals returns the total number of declared locals, not counting
// parameters.
func (b *FunctionBody) NumLocals() int {
	n := 0
	for _, l := range b.Locals {
		n += int(l.Count)
	}
	return n
}

// CustomSection is an opaque named section.
type CustomSection struct {
	Name string
	Data []byte
}
