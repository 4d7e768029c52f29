// Package signature provides the canonical encoding and hashing functions
// every node uses to agree on the identity of a block.
package signature

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"unicode/utf8"

	sha256 "github.com/minio/sha256-simd"
)

// CanonicalVersion identifies the set of encoding rules implemented by
// Encode. Any change to the byte output must bump this value since nodes
// running different versions will compute different block hashes.
const CanonicalVersion = 1

// ZeroHash represents the previous hash recorded by the genesis block.
const ZeroHash string = "0"

// ErrUnsupported is returned when a value has no canonical representation.
var ErrUnsupported = errors.New("value has no canonical form")

// =============================================================================

// Object represents a canonical object. Keys are always written in byte
// order regardless of how the map was populated.
type Object map[string]any

// Encode returns the canonical form of the specified value.
//
// Version 1 rules:
//
//	objects are written with keys sorted by byte order and no whitespace
//	strings must be valid UTF-8 and only '"', '\' and control characters are escaped
//	integers are written in base 10
//	floats are written in their shortest round trip decimal form, never in
//	scientific notation, and integral floats carry no fractional part
//	arrays keep their order
func Encode(value any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, value); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Hash returns the hex encoded SHA-256 digest of the canonical form of the
// value. An empty string is returned if the value can't be encoded, use Sum
// when the caller must tell the two apart.
func Hash(value any) string {
	hash, err := Sum(value)
	if err != nil {
		return ""
	}

	return hash
}

// Sum returns the hex encoded SHA-256 digest of the canonical form of the
// value or the reason the value has no canonical form.
func Sum(value any) (string, error) {
	data, err := Encode(value)
	if err != nil {
		return "", err
	}

	return Digest(data), nil
}

// Digest returns the lower case hex encoded SHA-256 digest of the data.
func Digest(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// =============================================================================

func encode(buf *bytes.Buffer, value any) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")

	case bool:
		buf.WriteString(strconv.FormatBool(v))

	case string:
		return encodeString(buf, v)

	case int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))

	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))

	case uint:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))

	case uint64:
		buf.WriteString(strconv.FormatUint(v, 10))

	case float64:
		return encodeFloat(buf, v)

	case Object:
		return encodeObject(buf, v)

	case []Object:
		buf.WriteByte('[')
		for i, obj := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeObject(buf, obj); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	case []any:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	default:
		return fmt.Errorf("%w: %T", ErrUnsupported, value)
	}

	return nil
}

func encodeObject(buf *bytes.Buffer, obj Object) error {
	keys := make([]string, 0, len(obj))
	for key := range obj {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeString(buf, key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := encode(buf, obj[key]); err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
	}
	buf.WriteByte('}')

	return nil
}

func encodeFloat(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number", ErrUnsupported)
	}

	// Negative zero and zero must hash the same.
	if f == 0 {
		f = 0
	}

	buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

const hexDigits = "0123456789abcdef"

func encodeString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: invalid utf-8 string", ErrUnsupported)
	}

	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			buf.WriteString(`\"`)
		case c == '\\':
			buf.WriteString(`\\`)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\r':
			buf.WriteString(`\r`)
		case c == '\t':
			buf.WriteString(`\t`)
		case c == '\b':
			buf.WriteString(`\b`)
		case c == '\f':
			buf.WriteString(`\f`)
		case c < 0x20:
			buf.WriteString(`\u00`)
			buf.WriteByte(hexDigits[c>>4])
			buf.WriteByte(hexDigits[c&0xF])
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte('"')

	return nil
}
