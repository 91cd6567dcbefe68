package wasm

import (
	"errors"
	"unicode/utf8"

	"github.com/strandjs/wasm/wasm/leb128"
)

// ErrUnexpectedEOF is returned when the input ends inside a structure the
// decoder is in the middle of reading.
var ErrUnexpectedEOF = errors.New("wasm: unexpected end of section or function")

// ErrInvalidUTF8 is returned for names that are not valid UTF-8.
var ErrInvalidUTF8 = errors.New("wasm: malformed UTF-8 encoding")

// A cursor is a checked reader over a byte buffer. Every advance is bounds-
// checked and reports truncation as an error rather than panicking, so the
// decoder stays safe on adversarial input.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) len() int {
	return len(c.buf) - c.pos
}

func (c *cursor) done() bool {
	return c.pos == len(c.buf)
}

func (c *cursor) byte() (byte, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrUnexpectedEOF
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) bytes(n uint32) ([]byte, error) {
	if uint64(n) > uint64(c.len()) {
		return nil, ErrUnexpectedEOF
	}
	b := c.buf[c.pos : c.pos+int(n)]
	c.pos += int(n)
	return b, nil
}

func (c *cursor) uint32() (uint32, error) {
	b, err := c.bytes(4)
	if err != nil {
		return 0, err
	}
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (c *cursor) varuint32() (uint32, error) {
	v, n, err := leb128.GetVarUint32(c.buf[c.pos:])
	if err != nil {
		return 0, err
	}
	c.pos += n
	return v, nil
}

func (c *cursor) varint32() (int32, error) {
	v, n, err := leb128.GetVarint32(c.buf[c.pos:])
	if err != nil {
		return 0, err
	}
	c.pos += n
	return v, nil
}

func (c *cursor) varint64() (int64, error) {
	v, n, err := leb128.GetVarint64(c.buf[c.pos:])
	if err != nil {
		return 0, err
	}
	c.pos += n
	return v, nil
}

// name reads a length-prefixed UTF-8 string.
func (c *cursor) name() (string, error) {
	n, err := c.varuint32()
	if err != nil {
		return "", err
	}
	b, err := c.bytes(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

func (c *cursor) valueType() (ValueType, error) {
	b, err := c.byte()
	if err != nil {
		return 0, err
	}
	t := ValueType(b)
	if !t.IsValid() {
		return 0, InvalidValueTypeError(b)
	}
	return t, nil
}

func (c *cursor) limits() (Limits, error) {
	flags, err := c.byte()
	if err != nil {
		return Limits{}, err
	}
	if flags > 1 {
		return Limits{}, ValidationError("integer too large")
	}
	var l Limits
	if l.Min, err = c.varuint32(); err != nil {
		return Limits{}, err
	}
	if flags == 1 {
		l.HasMax = true
		if l.Max, err = c.varuint32(); err != nil {
			return Limits{}, err
		}
	}
	return l, nil
}

// initExpr reads an initializer expression through its terminating end
// opcode, returning the bytes including the terminator.
func (c *cursor) initExpr() ([]byte, error) {
	start := c.pos
	for {
		op, err := c.byte()
		if err != nil {
			return nil, err
		}
		switch op {
		case 0x0b: // end
			return c.buf[start:c.pos], nil
		case 0x41: // i32.const
			if _, err := c.varint32(); err != nil {
				return nil, err
			}
		case 0x42: // i64.const
			if _, err := c.varint64(); err != nil {
				return nil, err
			}
		case 0x43: // f32.const
			if _, err := c.bytes(4); err != nil {
				return nil, err
			}
		case 0x44: // f64.const
			if _, err := c.bytes(8); err != nil {
				return nil, err
			}
		case 0x23: // global.get
			if _, err := c.varuint32(); err != nil {
				return nil, err
			}
		case 0xd0: // ref.null
			if _, err := c.byte(); err != nil {
				return nil, err
			}
		case 0xd2: // ref.func
			if _, err := c.varuint32(); err != nil {
				return nil, err
			}
		default:
			return nil, InvalidInitExprOpError(op)
		}
	}
}
