// Package validate checks decoded module descriptors against the structural
// and type rules of WASM 1.0. Validation never mutates the module and never
// panics on a malformed descriptor; a nil error means the module may be
// instantiated.
package validate

import (
	"github.com/willf/bitset"

	"github.com/strandjs/wasm/wasm"
	"github.com/strandjs/wasm/wasm/leb128"
)

const maxMemoryPages = 65536

type validator struct {
	module *wasm.Module

	importedFunctions []uint32
	importedGlobals   []wasm.GlobalType

	tables   int
	memories int
}

// ValidateModule checks the given module descriptor. It returns nil if the
// module is valid and the first violation found otherwise. The order in
// which violations are discovered is not part of the contract; callers
// should gate on pass/fail only.
func ValidateModule(m *wasm.Module) error {
	v := validator{module: m}

	for _, imp := range m.Imports {
		switch imp.Kind {
		case wasm.ExternalFunction:
			v.importedFunctions = append(v.importedFunctions, imp.TypeIndex)
		case wasm.ExternalTable:
			v.tables++
		case wasm.ExternalMemory:
			v.memories++
		case wasm.ExternalGlobal:
			v.importedGlobals = append(v.importedGlobals, imp.Global)
		}
	}
	v.tables += len(m.Tables)
	v.memories += len(m.Memories)

	return v.validateModule()
}

func (v *validator) validateModule() error {
	if err := v.validateTypes(); err != nil {
		return err
	}
	if err := v.validateImports(); err != nil {
		return err
	}
	if err := v.validateFunctions(); err != nil {
		return err
	}
	if err := v.validateTables(); err != nil {
		return err
	}
	if err := v.validateMemories(); err != nil {
		return err
	}
	if err := v.validateGlobals(); err != nil {
		return err
	}
	if err := v.validateExports(); err != nil {
		return err
	}
	if err := v.validateStart(); err != nil {
		return err
	}
	if err := v.validateElements(); err != nil {
		return err
	}
	if err := v.validateData(); err != nil {
		return err
	}
	return nil
}

// numFunctions returns the size of the function index space.
func (v *validator) numFunctions() uint32 {
	return uint32(len(v.importedFunctions) + len(v.module.Functions))
}

func (v *validator) functionType(index uint32) (wasm.FunctionType, bool) {
	return v.module.FunctionType(index)
}

// globalType returns the type of the global with the given index in the
// global index space (imports followed by definitions).
func (v *validator) globalType(index uint32) (wasm.GlobalType, bool) {
	if index < uint32(len(v.importedGlobals)) {
		return v.importedGlobals[index], true
	}
	index -= uint32(len(v.importedGlobals))
	if index >= uint32(len(v.module.Globals)) {
		return wasm.GlobalType{}, false
	}
	return v.module.Globals[index].Type, true
}

func (v *validator) validateTypes() error {
	for _, t := range v.module.Types {
		for _, p := range t.Params {
			if !p.IsValid() {
				return wasm.ValidationError("invalid parameter type")
			}
		}
		for _, r := range t.Results {
			if !r.IsValid() {
				return wasm.ValidationError("invalid result type")
			}
		}
		if len(t.Results) > 1 {
			return wasm.ValidationError("invalid result arity")
		}
	}
	return nil
}

func (v *validator) validateImports() error {
	for _, imp := range v.module.Imports {
		switch imp.Kind {
		case wasm.ExternalFunction:
			if imp.TypeIndex >= uint32(len(v.module.Types)) {
				return wasm.ValidationError("unknown type")
			}
		case wasm.ExternalTable:
			if !imp.Table.ElemType.IsReference() {
				return wasm.ValidationError("malformed element type")
			}
			if err := v.validateLimits(imp.Table.Limits); err != nil {
				return err
			}
		case wasm.ExternalMemory:
			if err := v.validateMemoryLimits(imp.Memory.Limits); err != nil {
				return err
			}
		case wasm.ExternalGlobal:
			if !imp.Global.Type.IsValid() {
				return wasm.ValidationError("invalid global type")
			}
		}
	}
	return nil
}

func (v *validator) validateFunctions() error {
	if len(v.module.Functions) != len(v.module.Bodies) {
		return wasm.ValidationError("function and code section have inconsistent lengths")
	}
	for i, typeidx := range v.module.Functions {
		if typeidx >= uint32(len(v.module.Types)) {
			return wasm.ValidationError("unknown type")
		}
		for _, local := range v.module.Bodies[i].Locals {
			if !local.Type.IsValid() {
				return wasm.ValidationError("invalid local type")
			}
		}
	}
	return nil
}

func (v *validator) validateLimits(limits wasm.Limits) error {
	if limits.HasMax && limits.Min > limits.Max {
		return wasm.ValidationError("size minimum must not be greater than maximum")
	}
	return nil
}

func (v *validator) validateMemoryLimits(limits wasm.Limits) error {
	if err := v.validateLimits(limits); err != nil {
		return err
	}
	if limits.Min > maxMemoryPages || limits.HasMax && limits.Max > maxMemoryPages {
		return wasm.ValidationError("memory size must be at most 65536 pages (4GiB)")
	}
	return nil
}

func (v *validator) validateTables() error {
	if v.tables > 1 {
		return wasm.ValidationError("multiple tables")
	}
	for _, t := range v.module.Tables {
		if !t.ElemType.IsReference() {
			return wasm.ValidationError("malformed element type")
		}
		if err := v.validateLimits(t.Limits); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateMemories() error {
	if v.memories > 1 {
		return wasm.ValidationError("multiple memories")
	}
	for _, m := range v.module.Memories {
		if err := v.validateMemoryLimits(m.Limits); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateGlobals() error {
	for _, g := range v.module.Globals {
		if !g.Type.Type.IsValid() {
			return wasm.ValidationError("invalid global type")
		}
		if err := v.validateInitExpr(g.Init, g.Type.Type); err != nil {
			return err
		}
	}
	return nil
}

func (v *validator) validateExports() error {
	names := map[string]bool{}
	for _, e := range v.module.Exports {
		if names[e.Name] {
			return wasm.ValidationError("duplicate export name")
		}
		names[e.Name] = true

		switch e.Kind {
		case wasm.ExternalFunction:
			if e.Index >= v.numFunctions() {
				return wasm.ValidationError("unknown function")
			}
		case wasm.ExternalTable:
			if e.Index >= uint32(v.tables) {
				return wasm.ValidationError("unknown table")
			}
		case wasm.ExternalMemory:
			if e.Index >= uint32(v.memories) {
				return wasm.ValidationError("unknown memory")
			}
		case wasm.ExternalGlobal:
			g, ok := v.globalType(e.Index)
			if !ok {
				return wasm.ValidationError("unknown global")
			}
			if g.Mutable {
				return wasm.ValidationError("mutable globals cannot be exported")
			}
		default:
			return wasm.ValidationError("invalid export kind")
		}
	}
	return nil
}

func (v *validator) validateStart() error {
	if v.module.Start == nil {
		return nil
	}
	sig, ok := v.functionType(*v.module.Start)
	if !ok {
		return wasm.ValidationError("unknown function")
	}
	if len(sig.Params) != 0 || len(sig.Results) != 0 {
		return wasm.ValidationError("start function must have type () -> ()")
	}
	return nil
}

func (v *validator) validateElements() error {
	// referenced tracks function indices already range-checked so segments
	// that repeat an index are only checked once.
	referenced := bitset.New(uint(v.numFunctions()))
	for _, seg := range v.module.Elements {
		if seg.TableIndex >= uint32(v.tables) {
			return wasm.ValidationError("unknown table")
		}
		if err := v.validateInitExpr(seg.Offset, wasm.ValueTypeI32); err != nil {
			return err
		}
		for _, funcidx := range seg.Funcs {
			if referenced.Test(uint(funcidx)) {
				continue
			}
			if funcidx >= v.numFunctions() {
				return wasm.ValidationError("unknown function")
			}
			referenced.Set(uint(funcidx))
		}
	}
	return nil
}

func (v *validator) validateData() error {
	for _, seg := range v.module.Data {
		if seg.MemoryIndex >= uint32(v.memories) {
			return wasm.ValidationError("unknown memory")
		}
		if err := v.validateInitExpr(seg.Offset, wasm.ValueTypeI32); err != nil {
			return err
		}
	}
	if v.module.DataCount != nil && int(*v.module.DataCount) != len(v.module.Data) {
		return wasm.ValidationError("data count and data section have inconsistent lengths")
	}
	return nil
}

// validateInitExpr enforces the constant-expression rule for globals and
// segment offsets: a single t.const of the expected type, or a global.get of
// an imported immutable global of the expected type, followed by end.
// Locally-defined globals are never legal here, which rules out forward
// references.
func (v *validator) validateInitExpr(expr []byte, expected wasm.ValueType) error {
	if len(expr) == 0 {
		return wasm.ValidationError("empty initializer expression")
	}
	if expr[len(expr)-1] != 0x0b {
		return wasm.ValidationError("initializer expression must end with the end opcode")
	}
	rest := expr[:len(expr)-1]
	if len(rest) == 0 {
		return wasm.ValidationError("type mismatch in initializer expression")
	}

	var actual wasm.ValueType
	op, rest := rest[0], rest[1:]
	switch op {
	case 0x41: // i32.const
		_, n, err := leb128.GetVarint32(rest)
		if err != nil || n != len(rest) {
			return wasm.ValidationError("malformed initializer expression")
		}
		actual = wasm.ValueTypeI32
	case 0x42: // i64.const
		_, n, err := leb128.GetVarint64(rest)
		if err != nil || n != len(rest) {
			return wasm.ValidationError("malformed initializer expression")
		}
		actual = wasm.ValueTypeI64
	case 0x43: // f32.const
		if len(rest) != 4 {
			return wasm.ValidationError("malformed initializer expression")
		}
		actual = wasm.ValueTypeF32
	case 0x44: // f64.const
		if len(rest) != 8 {
			return wasm.ValidationError("malformed initializer expression")
		}
		actual = wasm.ValueTypeF64
	case 0x23: // global.get
		index, n, err := leb128.GetVarUint32(rest)
		if err != nil || n != len(rest) {
			return wasm.ValidationError("malformed initializer expression")
		}
		if index >= uint32(len(v.importedGlobals)) {
			return wasm.ValidationError("constant expression required")
		}
		g := v.importedGlobals[index]
		if g.Mutable {
			return wasm.ValidationError("constant expression required")
		}
		actual = g.Type
	case 0xd0: // ref.null
		if len(rest) != 1 || !wasm.ValueType(rest[0]).IsReference() {
			return wasm.ValidationError("malformed initializer expression")
		}
		actual = wasm.ValueType(rest[0])
	default:
		return wasm.ValidationError("constant expression required")
	}

	if actual != expected {
		return wasm.ValidationError("type mismatch in initializer expression")
	}
	return nil
}
