package packet

import (
	"errors"
	"fmt"
	"io"
)

// ErrMalformedField is wrapped by every error caused by bad field bytes.
// A malformed field aborts the decode of one packet only.
var ErrMalformedField = errors.New("malformed field")

var (
	ErrMalformedVarInt = fmt.Errorf("%w: VarInt is too long", ErrMalformedField)
	ErrStringTooLong   = fmt.Errorf("%w: string too long", ErrMalformedField)
	ErrNegativeLength  = fmt.Errorf("%w: negative length", ErrMalformedField)
	ErrInvalidBoolean  = fmt.Errorf("%w: invalid byte for Boolean field", ErrMalformedField)
	ErrInvalidEnum     = fmt.Errorf("%w: invalid enum value", ErrMalformedField)

	// ErrBufferUnderflow also matches io.ErrUnexpectedEOF.
	ErrBufferUnderflow = fmt.Errorf("%w: buffer underflow: %w", ErrMalformedField, io.ErrUnexpectedEOF)
)
