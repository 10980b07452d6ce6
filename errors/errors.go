// Package errors defines all exported error sentinels for the csf library.
//
// This is the single source of truth for error values. The top-level csf
// package, the chunkstore and codec packages, and the internal solver all
// import from here, so errors.Is checks work across package boundaries.
package errors

import "errors"

// Configuration errors, reported before construction starts.
var (
	ErrNoKeys             = errors.New("csf: no keys and no pre-built store supplied")
	ErrNoTransform        = errors.New("csf: no transformation strategy for key type")
	ErrValueCountMismatch = errors.New("csf: number of values does not match number of keys")
	ErrUnknownCodec       = errors.New("csf: unknown codec")
	ErrInvalidWorkers     = errors.New("csf: worker count must be non-negative")
	ErrCodewordTooLong    = errors.New("csf: maximum codeword length exceeds 63 bits")
	ErrInvalidLimit       = errors.New("csf: decoding table limit must be at least 1")
)

// Construction errors
var (
	ErrDuplicateKey        = errors.New("csf: duplicate key detected")
	ErrUncheckedStore      = errors.New("csf: duplicate triple in pre-built store; duplicates cannot be diagnosed without explicit keys")
	ErrLocalSeedsExhausted = errors.New("csf: all local seeds exhausted for chunk")
	ErrStoreClosed         = errors.New("csf: chunk store is closed")
	ErrValueNotCoded       = errors.New("csf: value has no codeword")
	ErrTooManyKeys         = errors.New("csf: key count exceeds maximum (2^54)")
)

// Serialized form errors
var (
	ErrInvalidMagic      = errors.New("csf: invalid magic number")
	ErrInvalidVersion    = errors.New("csf: unsupported version")
	ErrChecksumFailed    = errors.New("csf: checksum verification failed")
	ErrTruncatedFile     = errors.New("csf: serialized function is truncated")
	ErrCorrupted         = errors.New("csf: serialized function is corrupted")
	ErrTransformMismatch = errors.New("csf: transform does not match serialized function")
	ErrFunctionClosed    = errors.New("csf: function is closed")
)
