// internal/codec/decode.go
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Decode turns register words into a normalized value.
// Pure: no IO, no state.
func Decode(registers []uint16, s Schema) (Value, error) {
	v, err := DecodeRaw(registers, s)
	if err != nil {
		return Null(), err
	}
	return Normalize(v)
}

// DecodeRaw returns the decoder's own variant, before normalization.
func DecodeRaw(registers []uint16, s Schema) (Value, error) {
	switch s.Type {
	case TypeString:
		buf := wordBytes(registers, s.ByteOrder)
		n := int(s.registerCount() * 2)
		if len(buf) < n {
			return Null(), shortBuffer(s, n, len(buf))
		}
		return BytesValue(buf[:n]), nil

	case TypeBits:
		return BitsValue(unpackBits(wordBytes(registers, s.ByteOrder))), nil

	case TypeBit:
		if s.Bit == nil {
			return Null(), fmt.Errorf("%w: bit index required for type bit", ErrDecode)
		}
		bits := unpackBits(wordBytes(registers, s.ByteOrder))
		idx := *s.Bit
		if idx < 0 || idx >= len(bits) {
			return Null(), fmt.Errorf("%w: bit index %d out of range [0,%d)", ErrDecode, idx, len(bits))
		}
		return BoolValue(bits[idx]), nil

	case TypeUnknown:
		return Null(), ErrUnknownType
	}

	f, err := s.resolve()
	if err != nil {
		return Null(), err
	}

	buf := registerBytes(registers)
	n := f.bits / 8
	if len(buf) < n {
		return Null(), shortBuffer(s, n, len(buf))
	}
	raw := readUint(buf[:n], s.ByteOrder)

	switch f.class {
	case classSigned:
		return IntValue(signExtend(raw, f.bits)), nil
	case classUnsigned:
		return UintValue(raw), nil
	default:
		return FloatValue(toFloat(raw, f.bits)), nil
	}
}

// registerBytes lays the registers out low byte first.
func registerBytes(registers []uint16) []byte {
	buf := make([]byte, len(registers)*2)
	for i, r := range registers {
		binary.LittleEndian.PutUint16(buf[2*i:], r)
	}
	return buf
}

// wordBytes lays out byte-sequence types register by register.
// Big takes each register high byte first, as it arrives on the wire.
func wordBytes(registers []uint16, order ByteOrder) []byte {
	if order != Big {
		return registerBytes(registers)
	}
	buf := make([]byte, len(registers)*2)
	for i, r := range registers {
		binary.BigEndian.PutUint16(buf[2*i:], r)
	}
	return buf
}

func readUint(b []byte, order ByteOrder) uint64 {
	var bo binary.ByteOrder = binary.LittleEndian
	if order == Big {
		bo = binary.BigEndian
	}

	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(bo.Uint16(b))
	case 4:
		return uint64(bo.Uint32(b))
	}
	return bo.Uint64(b)
}

func signExtend(raw uint64, bits int) int64 {
	switch bits {
	case 8:
		return int64(int8(raw))
	case 16:
		return int64(int16(raw))
	case 32:
		return int64(int32(raw))
	}
	return int64(raw)
}

func toFloat(raw uint64, bits int) float64 {
	switch bits {
	case 16:
		return float64(float16.Frombits(uint16(raw)).Float32())
	case 32:
		return float64(math.Float32frombits(uint32(raw)))
	}
	return math.Float64frombits(raw)
}

// unpackBits expands bytes LSB first, the Modbus coil packing.
func unpackBits(data []byte) []bool {
	out := make([]bool, len(data)*8)
	for i := range out {
		out[i] = data[i/8]&(1<<(i%8)) != 0
	}
	return out
}

func shortBuffer(s Schema, need, have int) error {
	return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrDecode, s.Type, need, have)
}
