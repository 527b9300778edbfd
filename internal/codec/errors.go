// internal/codec/errors.go
package codec

import "errors"

var (
	// ErrUnknownType means the type name is not part of the supported set.
	ErrUnknownType = errors.New("codec: unknown type")

	// ErrUnsupportedWidth means registerCount does not map to a decoder width.
	ErrUnsupportedWidth = errors.New("codec: unsupported width")

	// ErrDecode means the buffer cannot hold the requested value.
	ErrDecode = errors.New("codec: decode error")

	// ErrOutOfRange means a value cannot be encoded at the schema's width.
	ErrOutOfRange = errors.New("codec: value out of range")
)
