// Package leb128 decodes and encodes the variable-length integers used
// throughout the WebAssembly binary format.
package leb128

import "errors"

// ErrOverflow is returned when an encoded value does not fit in the target
// width or uses more continuation bytes than the format allows.
var ErrOverflow = errors.New("leb128: integer representation too long")

// ErrTruncated is returned when the input ends in the middle of an encoded
// value.
var ErrTruncated = errors.New("leb128: truncated integer")

// GetVarUint32 decodes an unsigned 32-bit integer from the front of buf and
// returns the value and the number of bytes consumed. A 32-bit value uses at
// most 5 bytes, and the final byte may only carry the low 4 bits.
func GetVarUint32(buf []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i := 0; i < len(buf); i++ {
		if i == 5 {
			return 0, 0, ErrOverflow
		}
		b := buf[i]
		if i == 4 && b&0xf0 != 0 {
			return 0, 0, ErrOverflow
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrTruncated
}

// GetVarUint64 decodes an unsigned 64-bit integer from the front of buf.
func GetVarUint64(buf []byte) (uint64, int, error) {
	var result uint64
	var shift uint
	for i := 0; i < len(buf); i++ {
		if i == 10 {
			return 0, 0, ErrOverflow
		}
		b := buf[i]
		if i == 9 && b&0xfe != 0 {
			return 0, 0, ErrOverflow
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrTruncated
}

// GetVarint32 decodes a signed 32-bit integer from the front of buf.
// The final partial byte is sign-extended.
func GetVarint32(buf []byte) (int32, int, error) {
	v, n, err := getVarint(buf, 32)
	return int32(v), n, err
}

// GetVarint64 decodes a signed 64-bit integer from the front of buf.
func GetVarint64(buf []byte) (int64, int, error) {
	return getVarint(buf, 64)
}

// GetVarint33 decodes a signed 33-bit integer from the front of buf. This
// width is used by block type immediates.
func GetVarint33(buf []byte) (int64, int, error) {
	return getVarint(buf, 33)
}

func getVarint(buf []byte, width uint) (int64, int, error) {
	maxBytes := int((width + 6) / 7)
	var result int64
	var shift uint
	for i := 0; i < len(buf); i++ {
		if i == maxBytes {
			return 0, 0, ErrOverflow
		}
		b := buf[i]
		if i == maxBytes-1 {
			// The final byte may only carry width - 7*(maxBytes-1) value
			// bits; the rest must be a valid sign extension.
			used := width - 7*uint(maxBytes-1)
			mask := byte(0x7f) &^ (1<<used - 1)
			sign := byte(0)
			if b&(1<<(used-1)) != 0 {
				sign = mask
			}
			if b&0x80 != 0 || b&mask != sign {
				return 0, 0, ErrOverflow
			}
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, i + 1, nil
		}
	}
	return 0, 0, ErrTruncated
}

// AppendVarUint32 appends the encoding of v to buf.
func AppendVarUint32(buf []byte, v uint32) []byte {
	return AppendVarUint64(buf, uint64(v))
}

// AppendVarUint64 appends the encoding of v to buf.
func AppendVarUint64(buf []byte, v uint64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf = append(buf, b)
		if v == 0 {
			return buf
		}
	}
}

// AppendVarint32 appends the encoding of v to buf.
func AppendVarint32(buf []byte, v int32) []byte {
	return AppendVarint64(buf, int64(v))
}

// AppendVarint64 appends the encoding of v to buf.
func AppendVarint64(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 && b&0x40 == 0 || v == -1 && b&0x40 != 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}
