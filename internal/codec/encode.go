// internal/codec/encode.go
package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"
)

// Encode is the inverse of DecodeRaw for numeric and string types.
// The returned registers decode back to v under the same schema.
func Encode(v Value, s Schema) ([]uint16, error) {
	switch s.Type {
	case TypeString:
		var b []byte
		switch v.kind {
		case KindString:
			b = []byte(v.s)
		case KindBytes:
			b = v.raw
		default:
			return nil, fmt.Errorf("codec: cannot encode %v as string", v.Interface())
		}
		n := int(s.registerCount() * 2)
		if len(b) > n {
			return nil, fmt.Errorf("codec: string of %d bytes exceeds %d", len(b), n)
		}
		out := make([]byte, n+n%2)
		copy(out, b)
		return wordRegisters(out, s.ByteOrder), nil

	case TypeBit, TypeBits, TypeUnknown:
		return nil, fmt.Errorf("codec: type %s cannot be written as registers", s.Type)
	}

	f, err := s.resolve()
	if err != nil {
		return nil, err
	}

	var raw uint64
	switch f.class {
	case classFloat:
		x, ok := v.Float64()
		if !ok {
			return nil, fmt.Errorf("codec: cannot encode %v as %s", v.Interface(), s.Type)
		}
		if err := checkFloat(x, f.bits, s.Type); err != nil {
			return nil, err
		}
		raw = fromFloat(x, f.bits)
	default:
		raw, err = integerBits(v, f, s.Type)
		if err != nil {
			return nil, err
		}
	}

	n := f.bits / 8
	b := make([]byte, n)
	writeUint(b, raw, s.ByteOrder)
	if n%2 != 0 {
		b = append(b, 0)
	}
	return bytesToRegisters(b), nil
}

// integerBits checks v against the target width before packing.
func integerBits(v Value, f format, t DataType) (uint64, error) {
	umax := ^uint64(0) >> (64 - f.bits)
	hi := int64(^uint64(0) >> (65 - f.bits))
	if f.class == classSigned {
		umax = uint64(hi)
	}

	switch v.kind {
	case KindInt:
		if f.class == classSigned && v.i >= -hi-1 && v.i <= hi {
			return uint64(v.i), nil
		}
		if f.class == classUnsigned && v.i >= 0 && uint64(v.i) <= umax {
			return uint64(v.i), nil
		}
	case KindUint:
		if v.u <= umax {
			return v.u, nil
		}
	case KindBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case KindFloat:
		r := math.Round(v.f)
		bound := math.Ldexp(1, f.bits)
		if f.class == classSigned {
			bound = math.Ldexp(1, f.bits-1)
			if r >= -bound && r < bound {
				return uint64(int64(r)), nil
			}
		} else if r >= 0 && r < bound {
			return uint64(r), nil
		}
	default:
		return 0, fmt.Errorf("codec: cannot encode %v as integer", v.Interface())
	}
	return 0, fmt.Errorf("%w: %v does not fit %s", ErrOutOfRange, v.Interface(), t)
}

// checkFloat rejects values the target width cannot hold.
func checkFloat(x float64, bits int, t DataType) error {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return fmt.Errorf("%w: %v is not finite", ErrOutOfRange, x)
	}
	limit := math.MaxFloat64
	switch bits {
	case 16:
		limit = float64(float16.Frombits(0x7BFF).Float32())
	case 32:
		limit = math.MaxFloat32
	}
	if math.Abs(x) > limit {
		return fmt.Errorf("%w: %v does not fit %s", ErrOutOfRange, x, t)
	}
	return nil
}

func fromFloat(x float64, bits int) uint64 {
	switch bits {
	case 16:
		return uint64(float16.Fromfloat32(float32(x)).Bits())
	case 32:
		return uint64(math.Float32bits(float32(x)))
	}
	return math.Float64bits(x)
}

func writeUint(b []byte, raw uint64, order ByteOrder) {
	var bo binary.ByteOrder = binary.LittleEndian
	if order == Big {
		bo = binary.BigEndian
	}

	switch len(b) {
	case 1:
		b[0] = byte(raw)
	case 2:
		bo.PutUint16(b, uint16(raw))
	case 4:
		bo.PutUint32(b, uint32(raw))
	default:
		bo.PutUint64(b, raw)
	}
}

// wordRegisters is the inverse of wordBytes; len(b) must be even.
func wordRegisters(b []byte, order ByteOrder) []uint16 {
	if order != Big {
		return bytesToRegisters(b)
	}
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.BigEndian.Uint16(b[2*i:])
	}
	return out
}

// bytesToRegisters packs pairs low byte first; len(b) must be even.
func bytesToRegisters(b []byte) []uint16 {
	out := make([]uint16, len(b)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return out
}
