package valueobjects

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewIdentityIDFromString(t *testing.T) {
	validUUID := uuid.New().String()

	tests := []struct {
		name    string
		input   string
		wantErr bool
		errMsg  string
	}{
		{name: "valid UUID string", input: validUUID},
		{name: "empty string", input: "", wantErr: true, errMsg: "identity ID cannot be empty"},
		{name: "invalid UUID format", input: "not-a-uuid", wantErr: true, errMsg: "identity ID must be a valid UUID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewIdentityIDFromString(tt.input)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				assert.True(t, id.IsZero())
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.input, id.String())
			}
		})
	}
}

func TestNewIdentityIDFromString_Lowercases(t *testing.T) {
	id, err := NewIdentityIDFromString("A0EEBC99-9C0B-4EF8-BB6D-6BB9BD380A11")

	assert.NoError(t, err)
	assert.Equal(t, "a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11", id.String())
}

func TestCanonicalPair(t *testing.T) {
	low := MustIdentityID("00000000-0000-4000-8000-000000000001")
	high := MustIdentityID("ffffffff-0000-4000-8000-000000000001")

	tests := []struct {
		name string
		a, b IdentityID
	}{
		{name: "already ordered", a: low, b: high},
		{name: "reversed", a: high, b: low},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := CanonicalPair(tt.a, tt.b)

			assert.True(t, first.Equals(low))
			assert.True(t, second.Equals(high))
		})
	}
}

func TestIdentityID_Compare(t *testing.T) {
	a := MustIdentityID("00000000-0000-4000-8000-000000000001")
	b := MustIdentityID("00000000-0000-4000-8000-000000000002")

	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}
