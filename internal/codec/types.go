// internal/codec/types.go
package codec

import (
	"fmt"
	"math"
	"strings"
)

// DataType is the closed set of value types a tag can declare.
type DataType uint8

const (
	TypeUnknown DataType = iota

	// registerCount-driven widths
	TypeInt
	TypeUint
	TypeFloat

	TypeString
	TypeBit
	TypeBits

	// explicit widths
	TypeInt8
	TypeUint8
	TypeInt16
	TypeUint16
	TypeFloat16
	TypeInt32
	TypeUint32
	TypeFloat32
	TypeInt64
	TypeUint64
	TypeFloat64
)

var typeNames = map[string]DataType{
	"int":     TypeInt,
	"long":    TypeInt,
	"integer": TypeInt,
	"uint":    TypeUint,
	"double":  TypeFloat,
	"float":   TypeFloat,
	"string":  TypeString,
	"bit":     TypeBit,
	"bits":    TypeBits,
	"8int":    TypeInt8,
	"8uint":   TypeUint8,
	"16int":   TypeInt16,
	"16uint":  TypeUint16,
	"16float": TypeFloat16,
	"32int":   TypeInt32,
	"32uint":  TypeUint32,
	"32float": TypeFloat32,
	"64int":   TypeInt64,
	"64uint":  TypeUint64,
	"64float": TypeFloat64,
}

// ParseDataType maps a configured type name onto a DataType.
// Matching is case-insensitive.
func ParseDataType(name string) (DataType, error) {
	if dt, ok := typeNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return dt, nil
	}
	return TypeUnknown, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

func (t DataType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeUint:
		return "uint"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeBit:
		return "bit"
	case TypeBits:
		return "bits"
	case TypeInt8:
		return "8int"
	case TypeUint8:
		return "8uint"
	case TypeInt16:
		return "16int"
	case TypeUint16:
		return "16uint"
	case TypeFloat16:
		return "16float"
	case TypeInt32:
		return "32int"
	case TypeUint32:
		return "32uint"
	case TypeFloat32:
		return "32float"
	case TypeInt64:
		return "64int"
	case TypeUint64:
		return "64uint"
	case TypeFloat64:
		return "64float"
	}
	return "unknown"
}

// ByteOrder selects how the register buffer is read.
type ByteOrder uint8

const (
	Little ByteOrder = iota
	Big
)

// ParseByteOrder accepts LITTLE or BIG in any case. Empty means Little.
func ParseByteOrder(s string) (ByteOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "LITTLE":
		return Little, nil
	case "BIG":
		return Big, nil
	}
	return Little, fmt.Errorf("codec: unknown byte order %q", s)
}

func (o ByteOrder) String() string {
	if o == Big {
		return "BIG"
	}
	return "LITTLE"
}

// Schema is the decode-relevant part of a tag configuration.
type Schema struct {
	Type DataType

	// RegisterCount is the number of 16-bit registers the value spans.
	// 0 means 1; 0.5 selects 8-bit widths.
	RegisterCount float64

	ByteOrder ByteOrder

	// Bit is the index selected by TypeBit.
	Bit *int
}

func (s Schema) registerCount() float64 {
	if s.RegisterCount <= 0 {
		return 1
	}
	return s.RegisterCount
}

// numClass is the numeric family of a resolved type.
type numClass uint8

const (
	classSigned numClass = iota
	classUnsigned
	classFloat
)

// format is a fully resolved numeric layout.
type format struct {
	class numClass
	bits  int
}

// resolve turns a numeric DataType into a concrete class and width.
// The registerCount-driven types must land exactly on a supported width.
func (s Schema) resolve() (format, error) {
	switch s.Type {
	case TypeInt8:
		return format{classSigned, 8}, nil
	case TypeUint8:
		return format{classUnsigned, 8}, nil
	case TypeInt16:
		return format{classSigned, 16}, nil
	case TypeUint16:
		return format{classUnsigned, 16}, nil
	case TypeFloat16:
		return format{classFloat, 16}, nil
	case TypeInt32:
		return format{classSigned, 32}, nil
	case TypeUint32:
		return format{classUnsigned, 32}, nil
	case TypeFloat32:
		return format{classFloat, 32}, nil
	case TypeInt64:
		return format{classSigned, 64}, nil
	case TypeUint64:
		return format{classUnsigned, 64}, nil
	case TypeFloat64:
		return format{classFloat, 64}, nil
	case TypeInt:
		return widthFor(classSigned, s.registerCount())
	case TypeUint:
		return widthFor(classUnsigned, s.registerCount())
	case TypeFloat:
		return widthFor(classFloat, s.registerCount())
	}
	return format{}, fmt.Errorf("%w: %s is not numeric", ErrUnknownType, s.Type)
}

func widthFor(class numClass, registerCount float64) (format, error) {
	w := registerCount * 16
	if w != math.Trunc(w) {
		return format{}, fmt.Errorf("%w: registerCount %g", ErrUnsupportedWidth, registerCount)
	}

	bits := int(w)
	switch bits {
	case 16, 32, 64:
		return format{class, bits}, nil
	case 8:
		if class != classFloat {
			return format{class, bits}, nil
		}
	}
	return format{}, fmt.Errorf("%w: %d-bit %s", ErrUnsupportedWidth, bits, class)
}

func (c numClass) String() string {
	switch c {
	case classSigned:
		return "int"
	case classUnsigned:
		return "uint"
	}
	return "float"
}

// CheckWidth reports whether the schema resolves to a supported decoder.
// Non-numeric types always pass.
func (s Schema) CheckWidth() error {
	switch s.Type {
	case TypeUnknown:
		return ErrUnknownType
	case TypeString, TypeBit, TypeBits:
		return nil
	}
	_, err := s.resolve()
	return err
}
