package exec

import (
	"fmt"

	"github.com/strandjs/wasm/wasm"
)

// An ImportNotFoundError is returned when a resolver has no binding for an
// imported name.
type ImportNotFoundError struct {
	ModuleName string
	FieldName  string
}

func (e *ImportNotFoundError) Error() string {
	return fmt.Sprintf("wasm: unknown import %s.%s", e.ModuleName, e.FieldName)
}

// An InvalidImportError is returned when a resolved object does not match
// the type its import declaration requires.
type InvalidImportError struct {
	ModuleName string
	FieldName  string
	Kind       wasm.External
}

func (e *InvalidImportError) Error() string {
	return fmt.Sprintf("wasm: incompatible %v import %s.%s", e.Kind, e.ModuleName, e.FieldName)
}

// An ImportResolver resolves import entries to function, memory, table, and
// global instances. The resolution policy — which modules exist and how
// their names bind — belongs to the embedding runtime; the VM only asks.
type ImportResolver interface {
	ResolveFunction(moduleName, fieldName string, type_ wasm.FunctionType) (Function, error)
	ResolveTable(moduleName, fieldName string, type_ wasm.TableType) (*Table, error)
	ResolveMemory(moduleName, fieldName string, type_ wasm.MemoryType) (*Memory, error)
	ResolveGlobal(moduleName, fieldName string, type_ wasm.GlobalType) (*Global, error)
}

// A MapResolver resolves imports from a two-level name map. Values must be
// Function, *Table, *Memory, or *Global.
type MapResolver map[string]map[string]interface{}

func (r MapResolver) lookup(moduleName, fieldName string) (interface{}, error) {
	if fields, ok := r[moduleName]; ok {
		if v, ok := fields[fieldName]; ok {
			return v, nil
		}
	}
	return nil, &ImportNotFoundError{ModuleName: moduleName, FieldName: fieldName}
}

func (r MapResolver) ResolveFunction(moduleName, fieldName string, type_ wasm.FunctionType) (Function, error) {
	v, err := r.lookup(moduleName, fieldName)
	if err != nil {
		return nil, err
	}
	f, ok := v.(Function)
	if !ok || !f.Type().Equals(type_) {
		return nil, &InvalidImportError{ModuleName: moduleName, FieldName: fieldName, Kind: wasm.ExternalFunction}
	}
	return f, nil
}

func (r MapResolver) ResolveTable(moduleName, fieldName string, type_ wasm.TableType) (*Table, error) {
	v, err := r.lookup(moduleName, fieldName)
	if err != nil {
		return nil, err
	}
	t, ok := v.(*Table)
	if !ok || t.ElemType() != type_.ElemType || !limitsMatch(t.Size(), t.Max(), type_.Limits) {
		return nil, &InvalidImportError{ModuleName: moduleName, FieldName: fieldName, Kind: wasm.ExternalTable}
	}
	return t, nil
}

func (r MapResolver) ResolveMemory(moduleName, fieldName string, type_ wasm.MemoryType) (*Memory, error) {
	v, err := r.lookup(moduleName, fieldName)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Memory)
	if !ok || !limitsMatch(m.Size(), m.Max(), type_.Limits) {
		return nil, &InvalidImportError{ModuleName: moduleName, FieldName: fieldName, Kind: wasm.ExternalMemory}
	}
	return m, nil
}

func (r MapResolver) ResolveGlobal(moduleName, fieldName string, type_ wasm.GlobalType) (*Global, error) {
	v, err := r.lookup(moduleName, fieldName)
	if err != nil {
		return nil, err
	}
	g, ok := v.(*Global)
	if !ok || g.Type() != type_ {
		return nil, &InvalidImportError{ModuleName: moduleName, FieldName: fieldName, Kind: wasm.ExternalGlobal}
	}
	return g, nil
}

// limitsMatch implements import subtyping for limits: the provided object
// must be at least as large as required and must not exceed a required
// maximum.
func limitsMatch(size uint32, max *uint32, required wasm.Limits) bool {
	if size < required.Min {
		return false
	}
	if required.HasMax {
		if max == nil || *max > required.Max {
			return false
		}
	}
	return true
}
