package valueobjects

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// IdentityID is a value object representing a unique identity identifier
type IdentityID struct {
	value string
}

// NewIdentityID creates a new random IdentityID
func NewIdentityID() IdentityID {
	return IdentityID{value: uuid.New().String()}
}

// NewIdentityIDFromString creates an IdentityID from an existing string
func NewIdentityIDFromString(id string) (IdentityID, error) {
	if id == "" {
		return IdentityID{}, errors.New("identity ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return IdentityID{}, errors.New("identity ID must be a valid UUID")
	}
	return IdentityID{value: strings.ToLower(id)}, nil
}

// MustIdentityID parses id and panics on failure. Intended for tests and constants.
func MustIdentityID(id string) IdentityID {
	parsed, err := NewIdentityIDFromString(id)
	if err != nil {
		panic(err)
	}
	return parsed
}

// String returns the string representation of the IdentityID
func (id IdentityID) String() string {
	return id.value
}

// Equals checks if two IdentityIDs are equal
func (id IdentityID) Equals(other IdentityID) bool {
	return id.value == other.value
}

// IsZero checks if the IdentityID is the zero value
func (id IdentityID) IsZero() bool {
	return id.value == ""
}

// Compare orders identity ids lexicographically over their canonical
// lowercase form. It returns -1, 0 or +1.
func (id IdentityID) Compare(other IdentityID) int {
	return strings.Compare(id.value, other.value)
}

// CanonicalPair returns the two ids ordered so that the first is the smaller.
func CanonicalPair(a, b IdentityID) (IdentityID, IdentityID) {
	if a.Compare(b) <= 0 {
		return a, b
	}
	return b, a
}

// MarshalJSON implements json.Marshaler
func (id IdentityID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *IdentityID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("IdentityID must be a string")
	}
	raw := string(data[1 : len(data)-1])
	if raw == "" {
		id.value = ""
		return nil
	}
	parsed, err := NewIdentityIDFromString(raw)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
