// Package tableid generates and validates table identifiers.
//
// IDs are UUIDv7 values encoded as 26 lowercase Crockford base32
// characters, so they sort by creation time.
package tableid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Crockford's base32, as used by TypeID
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length is the length of every encoded ID.
const Length = 26

// Generate returns a new table ID.
func Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails when the system entropy source does.
		panic("tableid: " + err.Error())
	}
	return Encode(id)
}

// Encode renders a UUID as 26 base32 characters. The 128 bits are
// right-aligned in 130, so the first character carries only 3 bits.
func Encode(id uuid.UUID) string {
	var out [Length]byte

	// Walk 5-bit groups from the least significant end.
	var acc uint32
	bits := 0
	pos := Length - 1
	for i := len(id) - 1; i >= 0; i-- {
		acc |= uint32(id[i]) << bits
		bits += 8
		for bits >= 5 {
			out[pos] = alphabet[acc&0x1f]
			pos--
			acc >>= 5
			bits -= 5
		}
	}
	out[pos] = alphabet[acc&0x1f]

	return string(out[:])
}

// Validate checks that s is a well-formed table ID.
func Validate(s string) error {
	if len(s) != Length {
		return fmt.Errorf("table ID must be exactly %d characters, got %d", Length, len(s))
	}

	// The leading character holds 3 bits.
	if s[0] > '7' {
		return fmt.Errorf("table ID first character must be 0-7, got %c", s[0])
	}

	for i := 0; i < len(s); i++ {
		if strings.IndexByte(alphabet, s[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", s[i], i)
		}
	}
	return nil
}
