package exec

import (
	"errors"
	"fmt"
	"sort"

	"github.com/strandjs/wasm/wasm"
)

// ErrDataSegmentDoesNotFit is returned by instantiation if a data segment
// attempts to write outside of its target memory's bounds.
var ErrDataSegmentDoesNotFit = errors.New("wasm: data segment does not fit")

// ErrElementSegmentDoesNotFit is returned by instantiation if an element
// segment attempts to write outside of its target table's bounds.
var ErrElementSegmentDoesNotFit = errors.New("wasm: element segment does not fit")

// An ExportNotFoundError is returned by the instance accessors if an export
// could not be found.
type ExportNotFoundError struct {
	ModuleName string
	FieldName  string
}

func (e *ExportNotFoundError) Error() string {
	return fmt.Sprintf("wasm: couldn't find export with name %s in module %s", e.FieldName, e.ModuleName)
}

// A KindMismatchError is returned by the instance accessors if the requested
// name refers to an export of a different kind.
type KindMismatchError struct {
	ModuleName string
	FieldName  string
	Requested  wasm.External
	Actual     wasm.External
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("wasm: export %s.%s is a %v, not a %v", e.ModuleName, e.FieldName, e.Actual, e.Requested)
}

// An Instance is an instantiated WASM module: its index spaces plus a
// name-to-export mapping fixed at instantiation time.
type Instance struct {
	name    string
	module  *wasm.Module
	funcs   []Function
	tables  []*Table
	mems    []*Memory
	globals []*Global

	exportKinds     map[string]wasm.External
	exportFunctions map[string]Function
	exportTables    map[string]*Table
	exportMemories  map[string]*Memory
	exportGlobals   map[string]*Global
}

// NewInstance builds an instance over the given index spaces. The index
// spaces must already include imported objects at their import positions;
// the export maps are derived from the module's export section.
func NewInstance(name string, module *wasm.Module, funcs []Function, tables []*Table, mems []*Memory, globals []*Global) *Instance {
	inst := &Instance{
		name:    name,
		module:  module,
		funcs:   funcs,
		tables:  tables,
		mems:    mems,
		globals: globals,

		exportKinds:     map[string]wasm.External{},
		exportFunctions: map[string]Function{},
		exportTables:    map[string]*Table{},
		exportMemories:  map[string]*Memory{},
		exportGlobals:   map[string]*Global{},
	}
	for _, e := range module.Exports {
		inst.exportKinds[e.Name] = e.Kind
		switch e.Kind {
		case wasm.ExternalFunction:
			inst.exportFunctions[e.Name] = funcs[e.Index]
		case wasm.ExternalTable:
			inst.exportTables[e.Name] = tables[e.Index]
		case wasm.ExternalMemory:
			inst.exportMemories[e.Name] = mems[e.Index]
		case wasm.ExternalGlobal:
			inst.exportGlobals[e.Name] = globals[e.Index]
		}
	}
	return inst
}

// Name returns the name the instance was instantiated under.
func (i *Instance) Name() string {
	return i.name
}

// Module returns the decoded module this instance was built from.
func (i *Instance) Module() *wasm.Module {
	return i.module
}

func (i *Instance) exportError(name string, requested wasm.External) error {
	if kind, ok := i.exportKinds[name]; ok {
		return &KindMismatchError{ModuleName: i.name, FieldName: name, Requested: requested, Actual: kind}
	}
	return &ExportNotFoundError{ModuleName: i.name, FieldName: name}
}

// GetFunction returns the exported function with the given name. If the
// function does not exist or the name refers to an export of a different
// kind, GetFunction returns an error.
func (i *Instance) GetFunction(name string) (Function, error) {
	if f, ok := i.exportFunctions[name]; ok {
		return f, nil
	}
	return nil, i.exportError(name, wasm.ExternalFunction)
}

// GetTable returns the exported table with the given name.
func (i *Instance) GetTable(name string) (*Table, error) {
	if t, ok := i.exportTables[name]; ok {
		return t, nil
	}
	return nil, i.exportError(name, wasm.ExternalTable)
}

// GetMemory returns the exported memory with the given name.
func (i *Instance) GetMemory(name string) (*Memory, error) {
	if m, ok := i.exportMemories[name]; ok {
		return m, nil
	}
	return nil, i.exportError(name, wasm.ExternalMemory)
}

// GetGlobal returns the exported global with the given name.
func (i *Instance) GetGlobal(name string) (*Global, error) {
	if g, ok := i.exportGlobals[name]; ok {
		return g, nil
	}
	return nil, i.exportError(name, wasm.ExternalGlobal)
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FunctionExports returns the names of the instance's function exports in
// sorted order.
func (i *Instance) FunctionExports() []string {
	return sortedNames(i.exportFunctions)
}

// TableExports returns the names of the instance's table exports in sorted
// order.
func (i *Instance) TableExports() []string {
	return sortedNames(i.exportTables)
}

// MemoryExports returns the names of the instance's memory exports in
// sorted order.
func (i *Instance) MemoryExports() []string {
	return sortedNames(i.exportMemories)
}

// GlobalExports returns the names of the instance's global exports in
// sorted order.
func (i *Instance) GlobalExports() []string {
	return sortedNames(i.exportGlobals)
}
