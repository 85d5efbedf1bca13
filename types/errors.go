package types

import "errors"

// Failure classes shared by all codecs. Codecs wrap these with context, use
// errors.Is to classify.
var (
	// Bad magic or a fixed-size header field that cannot be read.
	ErrMalformedHeader = errors.New("malformed header")
	// A valid container using a feature that is not implemented, such as
	// palette colors or interlacing.
	ErrUnsupportedVariant = errors.New("unsupported variant")
	// A declared length or offset runs past the end of the data.
	ErrTruncatedData = errors.New("truncated data")
	// A pixel coordinate outside the grid.
	ErrOutOfBounds = errors.New("coordinates out of bounds")
	// A value the container cannot represent, or an invalid filter parameter.
	ErrInvalidValue = errors.New("invalid value")
	// A PNG chunk whose stored CRC does not match its contents.
	ErrChecksum = errors.New("checksum mismatch")
)
