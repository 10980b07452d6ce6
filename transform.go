package csf

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	csferrors "github.com/tamirms/csf/errors"
)

// TransformID identifies a key transform in serialized functions, so a
// function is only opened with the transform it was built with.
type TransformID uint8

const (
	// TransformCustom marks a user-defined transform. It is not checked on
	// open.
	TransformCustom TransformID = iota
	TransformBytes
	TransformStrings
	TransformUint64s
	TransformISO88591
)

func (id TransformID) String() string {
	switch id {
	case TransformCustom:
		return "custom"
	case TransformBytes:
		return "bytes"
	case TransformStrings:
		return "utf8"
	case TransformUint64s:
		return "uint64"
	case TransformISO88591:
		return "iso-8859-1"
	default:
		return fmt.Sprintf("TransformID(%d)", uint8(id))
	}
}

// Transform turns a key into the bytes that are hashed.
// Equal keys must produce equal bytes.
type Transform[K any] interface {
	// AppendBytes appends the byte form of key to dst.
	AppendBytes(dst []byte, key K) []byte
	ID() TransformID
}

// Bytes hashes []byte keys as they are.
type Bytes struct{}

func (Bytes) AppendBytes(dst []byte, key []byte) []byte { return append(dst, key...) }
func (Bytes) ID() TransformID                            { return TransformBytes }

// Strings hashes the UTF-8 encoding of string keys.
type Strings struct{}

func (Strings) AppendBytes(dst []byte, key string) []byte { return append(dst, key...) }
func (Strings) ID() TransformID                            { return TransformStrings }

// Uint64s hashes the 8-byte little-endian encoding of uint64 keys.
type Uint64s struct{}

func (Uint64s) AppendBytes(dst []byte, key uint64) []byte {
	return binary.LittleEndian.AppendUint64(dst, key)
}
func (Uint64s) ID() TransformID { return TransformUint64s }

// ISO88591 hashes one byte per rune of string keys. Runes above U+00FF
// become '?'.
type ISO88591 struct{}

func (ISO88591) AppendBytes(dst []byte, key string) []byte {
	for i := 0; i < len(key); {
		r, size := utf8.DecodeRuneInString(key[i:])
		if r > 0xFF {
			r = '?'
		}
		dst = append(dst, byte(r))
		i += size
	}
	return dst
}
func (ISO88591) ID() TransformID { return TransformISO88591 }

// TransformFunc adapts a function to a custom Transform.
type TransformFunc[K any] func(dst []byte, key K) []byte

func (f TransformFunc[K]) AppendBytes(dst []byte, key K) []byte { return f(dst, key) }
func (TransformFunc[K]) ID() TransformID                         { return TransformCustom }

// defaultTransform returns the built-in transform for []byte, string and
// uint64 keys.
func defaultTransform[K any]() (Transform[K], error) {
	var t any
	switch any(*new(K)).(type) {
	case []byte:
		t = Bytes{}
	case string:
		t = Strings{}
	case uint64:
		t = Uint64s{}
	default:
		return nil, fmt.Errorf("%w: %T", csferrors.ErrNoTransform, *new(K))
	}
	return t.(Transform[K]), nil
}
