package wasm

import (
	"errors"
	"fmt"

	"github.com/willf/bitset"
)

// ErrInvalidMagic is returned when the magic header is not detected.
var ErrInvalidMagic = errors.New("wasm: magic header not detected")

// ErrUnknownVersion is returned for any binary version other than 1.
var ErrUnknownVersion = errors.New("wasm: unknown binary version")

const (
	// Magic is the module header, "\0asm" in little-endian order.
	Magic uint32 = 0x6d736100
	// Version is the sole supported binary version.
	Version uint32 = 1
)

// SectionID is the one-byte code tagging each section in the binary format.
type SectionID uint8

const (
	SectionIDCustom    SectionID = 0
	SectionIDType      SectionID = 1
	SectionIDImport    SectionID = 2
	SectionIDFunction  SectionID = 3
	SectionIDTable     SectionID = 4
	SectionIDMemory    SectionID = 5
	SectionIDGlobal    SectionID = 6
	SectionIDExport    SectionID = 7
	SectionIDStart     SectionID = 8
	SectionIDElement   SectionID = 9
	SectionIDCode      SectionID = 10
	SectionIDData      SectionID = 11
	SectionIDDataCount SectionID = 12
)

func (s SectionID) String() string {
	names := map[SectionID]string{
		SectionIDCustom:    "custom",
		SectionIDType:      "type",
		SectionIDImport:    "import",
		SectionIDFunction:  "function",
		SectionIDTable:     "table",
		SectionIDMemory:    "memory",
		SectionIDGlobal:    "global",
		SectionIDExport:    "export",
		SectionIDStart:     "start",
		SectionIDElement:   "element",
		SectionIDCode:      "code",
		SectionIDData:      "data",
		SectionIDDataCount: "data count",
	}
	if n, ok := names[s]; ok {
		return n
	}
	return "unknown"
}

type InvalidSectionIDError SectionID

func (e InvalidSectionIDError) Error() string {
	return fmt.Sprintf("wasm: malformed section id %d", uint8(e))
}

type InvalidValueTypeError uint8

func (e InvalidValueTypeError) Error() string {
	return fmt.Sprintf("wasm: invalid value type %#x", uint8(e))
}

// An InvalidTypeFormError reports a function type entry that does not begin
// with the func form byte (0x60).
type InvalidTypeFormError byte

func (e InvalidTypeFormError) Error() string {
	return fmt.Sprintf("wasm: invalid function type form: %#x", byte(e))
}

type InvalidExternalError uint8

func (e InvalidExternalError) Error() string {
	return fmt.Sprintf("wasm: invalid external kind %d", uint8(e))
}

type InvalidInitExprOpError uint8

func (e InvalidInitExprOpError) Error() string {
	return fmt.Sprintf("wasm: invalid opcode %#x in initializer expression", uint8(e))
}

// A SectionSizeError reports a section whose declared byte length does not
// match the bytes its parser consumed.
type SectionSizeError struct {
	ID       SectionID
	Declared uint32
	Consumed uint32
}

func (e *SectionSizeError) Error() string {
	return fmt.Sprintf("wasm: %v section size mismatch: declared %d bytes, consumed %d", e.ID, e.Declared, e.Consumed)
}

// DecodeModule decodes a binary WASM module into a module descriptor. It
// returns an error rather than panicking on any malformed input: bad magic
// or version, out-of-order or duplicated sections, section length
// mismatches, truncated or over-long LEB128 sequences, and invalid type or
// kind bytes. On error the returned module is nil and any partial decode is
// discarded.
func DecodeModule(buf []byte) (*Module, error) {
	c := newCursor(buf)

	magic, err := c.uint32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := c.uint32()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, ErrUnknownVersion
	}

	d := moduleDecoder{m: &Module{}, seen: bitset.New(13)}
	for !c.done() {
		if err := d.decodeSection(c); err != nil {
			return nil, err
		}
	}
	return d.m, nil
}

type moduleDecoder struct {
	m *Module

	// Non-custom sections must occur at most once and in ID order. seen
	// tracks which have appeared; lastOrder tracks ordering.
	seen      *bitset.BitSet
	lastOrder int
}

func (d *moduleDecoder) decodeSection(c *cursor) error {
	idByte, err := c.byte()
	if err != nil {
		return err
	}
	id := SectionID(idByte)
	if id > SectionIDDataCount {
		return InvalidSectionIDError(id)
	}

	if id != SectionIDCustom {
		if d.seen.Test(uint(id)) {
			return ValidationError("section occurs more than once")
		}
		if sectionOrder(id) < d.lastOrder {
			return ValidationError("sections out of order")
		}
		d.seen.Set(uint(id))
		d.lastOrder = sectionOrder(id)
	}

	size, err := c.varuint32()
	if err != nil {
		return err
	}
	payload, err := c.bytes(size)
	if err != nil {
		return err
	}

	s := newCursor(payload)
	switch id {
	case SectionIDCustom:
		err = d.decodeCustom(s)
	case SectionIDType:
		err = d.decodeTypes(s)
	case SectionIDImport:
		err = d.decodeImports(s)
	case SectionIDFunction:
		err = d.decodeFunctions(s)
	case SectionIDTable:
		err = d.decodeTables(s)
	case SectionIDMemory:
		err = d.decodeMemories(s)
	case SectionIDGlobal:
		err = d.decodeGlobals(s)
	case SectionIDExport:
		err = d.decodeExports(s)
	case SectionIDStart:
		err = d.decodeStart(s)
	case SectionIDElement:
		err = d.decodeElements(s)
	case SectionIDCode:
		err = d.decodeCode(s)
	case SectionIDData:
		err = d.decodeData(s)
	case SectionIDDataCount:
		err = d.decodeDataCount(s)
	}
	if err != nil {
		return err
	}
	if !s.done() {
		return &SectionSizeError{ID: id, Declared: size, Consumed: uint32(s.pos)}
	}
	return nil
}

// sectionOrder maps a section ID to its required position in the module.
// The data count section sits between element and code.
func sectionOrder(id SectionID) int {
	switch id {
	case SectionIDDataCount:
		return int(SectionIDElement) + 1
	case SectionIDCode, SectionIDData:
		return int(id) + 1
	default:
		return int(id)
	}
}

func (d *moduleDecoder) decodeCustom(c *cursor) error {
	name, err := c.name()
	if err != nil {
		return err
	}
	data, err := c.bytes(uint32(c.len()))
	if err != nil {
		return err
	}
	d.m.Customs = append(d.m.Customs, CustomSection{Name: name, Data: data})
	return nil
}

func (d *moduleDecoder) decodeTypes(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Types = make([]FunctionType, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		form, err := c.byte()
		if err != nil {
			return err
		}
		if form != TypeForm {
			return InvalidTypeFormError(form)
		}
		var t FunctionType
		if t.Params, err = d.decodeValueTypes(c); err != nil {
			return err
		}
		if t.Results, err = d.decodeValueTypes(c); err != nil {
			return err
		}
		d.m.Types = append(d.m.Types, t)
	}
	return nil
}

func (d *moduleDecoder) decodeValueTypes(c *cursor) ([]ValueType, error) {
	count, err := c.varuint32()
	if err != nil {
		return nil, err
	}
	types := make([]ValueType, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		t, err := c.valueType()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func (d *moduleDecoder) decodeImports(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Imports = make([]ImportEntry, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		var entry ImportEntry
		if entry.ModuleName, err = c.name(); err != nil {
			return err
		}
		if entry.FieldName, err = c.name(); err != nil {
			return err
		}
		kind, err := c.byte()
		if err != nil {
			return err
		}
		entry.Kind = External(kind)
		switch entry.Kind {
		case ExternalFunction:
			if entry.TypeIndex, err = c.varuint32(); err != nil {
				return err
			}
		case ExternalTable:
			if entry.Table, err = d.decodeTableType(c); err != nil {
				return err
			}
		case ExternalMemory:
			if entry.Memory.Limits, err = c.limits(); err != nil {
				return err
			}
		case ExternalGlobal:
			if entry.Global, err = d.decodeGlobalType(c); err != nil {
				return err
			}
		default:
			return InvalidExternalError(kind)
		}
		d.m.Imports = append(d.m.Imports, entry)
	}
	return nil
}

func (d *moduleDecoder) decodeTableType(c *cursor) (TableType, error) {
	elem, err := c.valueType()
	if err != nil {
		return TableType{}, err
	}
	if !elem.IsReference() {
		return TableType{}, ValidationError("malformed element type")
	}
	limits, err := c.limits()
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elem, Limits: limits}, nil
}

func (d *moduleDecoder) decodeGlobalType(c *cursor) (GlobalType, error) {
	t, err := c.valueType()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := c.byte()
	if err != nil {
		return GlobalType{}, err
	}
	if mut > 1 {
		return GlobalType{}, ValidationError("malformed mutability")
	}
	return GlobalType{Type: t, Mutable: mut == 1}, nil
}

func (d *moduleDecoder) decodeFunctions(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Functions = make([]uint32, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		typeidx, err := c.varuint32()
		if err != nil {
			return err
		}
		d.m.Functions = append(d.m.Functions, typeidx)
	}
	return nil
}

func (d *moduleDecoder) decodeTables(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Tables = make([]TableType, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		t, err := d.decodeTableType(c)
		if err != nil {
			return err
		}
		d.m.Tables = append(d.m.Tables, t)
	}
	return nil
}

func (d *moduleDecoder) decodeMemories(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Memories = make([]MemoryType, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		limits, err := c.limits()
		if err != nil {
			return err
		}
		d.m.Memories = append(d.m.Memories, MemoryType{Limits: limits})
	}
	return nil
}

func (d *moduleDecoder) decodeGlobals(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Globals = make([]GlobalEntry, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		var g GlobalEntry
		if g.Type, err = d.decodeGlobalType(c); err != nil {
			return err
		}
		if g.Init, err = c.initExpr(); err != nil {
			return err
		}
		d.m.Globals = append(d.m.Globals, g)
	}
	return nil
}

func (d *moduleDecoder) decodeExports(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Exports = make([]ExportEntry, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		var e ExportEntry
		if e.Name, err = c.name(); err != nil {
			return err
		}
		kind, err := c.byte()
		if err != nil {
			return err
		}
		if kind > uint8(ExternalGlobal) {
			return InvalidExternalError(kind)
		}
		e.Kind = External(kind)
		if e.Index, err = c.varuint32(); err != nil {
			return err
		}
		d.m.Exports = append(d.m.Exports, e)
	}
	return nil
}

func (d *moduleDecoder) decodeStart(c *cursor) error {
	index, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Start = &index
	return nil
}

func (d *moduleDecoder) decodeElements(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Elements = make([]ElementSegment, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		var seg ElementSegment
		if seg.TableIndex, err = c.varuint32(); err != nil {
			return err
		}
		if seg.Offset, err = c.initExpr(); err != nil {
			return err
		}
		n, err := c.varuint32()
		if err != nil {
			return err
		}
		seg.Funcs = make([]uint32, 0, initialCap(n))
		for j := uint32(0); j < n; j++ {
			funcidx, err := c.varuint32()
			if err != nil {
				return err
			}
			seg.Funcs = append(seg.Funcs, funcidx)
		}
		d.m.Elements = append(d.m.Elements, seg)
	}
	return nil
}

func (d *moduleDecoder) decodeCode(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Bodies = make([]FunctionBody, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		size, err := c.varuint32()
		if err != nil {
			return err
		}
		payload, err := c.bytes(size)
		if err != nil {
			return err
		}

		b := newCursor(payload)
		var body FunctionBody
		localCount, err := b.varuint32()
		if err != nil {
			return err
		}
		body.Locals = make([]LocalEntry, 0, initialCap(localCount))
		total := uint64(0)
		for j := uint32(0); j < localCount; j++ {
			var l LocalEntry
			if l.Count, err = b.varuint32(); err != nil {
				return err
			}
			if l.Type, err = b.valueType(); err != nil {
				return err
			}
			if total += uint64(l.Count); total > (1<<32)-1 {
				return ValidationError("too many locals")
			}
			body.Locals = append(body.Locals, l)
		}
		body.Code = payload[b.pos:]
		if len(body.Code) == 0 || body.Code[len(body.Code)-1] != 0x0b {
			return ValidationError("function body must end with the end opcode")
		}
		d.m.Bodies = append(d.m.Bodies, body)
	}
	return nil
}

func (d *moduleDecoder) decodeData(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.Data = make([]DataSegment, 0, initialCap(count))
	for i := uint32(0); i < count; i++ {
		var seg DataSegment
		if seg.MemoryIndex, err = c.varuint32(); err != nil {
			return err
		}
		if seg.Offset, err = c.initExpr(); err != nil {
			return err
		}
		n, err := c.varuint32()
		if err != nil {
			return err
		}
		if seg.Bytes, err = c.bytes(n); err != nil {
			return err
		}
		d.m.Data = append(d.m.Data, seg)
	}
	return nil
}

func (d *moduleDecoder) decodeDataCount(c *cursor) error {
	count, err := c.varuint32()
	if err != nil {
		return err
	}
	d.m.DataCount = &count
	return nil
}

// initialCap bounds a declared element count so that a hostile module cannot
// force a huge allocation before its contents are actually read.
func initialCap(count uint32) uint32 {
	const maxInitialCap = 1024
	if count > maxInitialCap {
		return maxInitialCap
	}
	return count
}
