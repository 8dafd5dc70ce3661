package valueobjects

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// IdentifierHash is the obfuscated form of a contact identifier such as a
// phone number. It lets two parties match a request to an identity without
// the raw identifier being stored. It is not a proof of ownership.
type IdentifierHash struct {
	value string
}

// NormalizeIdentifier strips every character other than ASCII 0-9 from raw.
// Country-code prefixes are not canonicalized: "+1 555..." and "555..."
// normalize to different digit strings.
func NormalizeIdentifier(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HashIdentifier normalizes raw and returns its stable hash. Equivalent
// formatting of the same digits always yields the same hash.
func HashIdentifier(raw string) IdentifierHash {
	digits := NormalizeIdentifier(raw)
	sum := sha256.Sum256([]byte(digits))
	return IdentifierHash{value: hex.EncodeToString(sum[:])}
}

// NewIdentifierHashFromString restores a hash previously produced by HashIdentifier
func NewIdentifierHashFromString(s string) (IdentifierHash, error) {
	if len(s) != sha256.Size*2 {
		return IdentifierHash{}, errors.New("identifier hash must be a hex encoded sha256 digest")
	}
	if _, err := hex.DecodeString(s); err != nil {
		return IdentifierHash{}, errors.New("identifier hash must be hex encoded")
	}
	return IdentifierHash{value: strings.ToLower(s)}, nil
}

// String returns the hex encoded hash
func (h IdentifierHash) String() string {
	return h.value
}

// Equals checks if two hashes are equal
func (h IdentifierHash) Equals(other IdentifierHash) bool {
	return h.value == other.value
}

// IsZero checks if the hash is unset
func (h IdentifierHash) IsZero() bool {
	return h.value == ""
}

// MarshalJSON implements json.Marshaler
func (h IdentifierHash) MarshalJSON() ([]byte, error) {
	return []byte(`"` + h.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (h *IdentifierHash) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("IdentifierHash must be a string")
	}
	raw := string(data[1 : len(data)-1])
	if raw == "" {
		h.value = ""
		return nil
	}
	parsed, err := NewIdentifierHashFromString(raw)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
