package domain

import "errors"

// Error kinds raised by the core outside of a per-file status. Per §7,
// these are either fatal to the whole command (ListFilesError,
// InvalidKey) or represent a classification the caller maps to a
// per-file status (CompressionNotSupported, Collision).
var (
	ErrListFiles               = errors.New("failed to list files")
	ErrCompressionNotSupported = errors.New("compression type not supported")
	ErrCollision               = errors.New("destination name collision")
	ErrInvalidKey              = errors.New("strong encryption policy not installed")
	ErrCanceled                = errors.New("transfer canceled")
)

// CompressionNotSupportedError names the offending codec for the
// per-file ERROR message §4.2 step 2/4 requires.
type CompressionNotSupportedError struct {
	Codec string
}

func (e *CompressionNotSupportedError) Error() string {
	return "compression type not supported: " + e.Codec
}

func (e *CompressionNotSupportedError) Unwrap() error {
	return ErrCompressionNotSupported
}
