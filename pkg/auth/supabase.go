package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

// userLookup is satisfied by the Supabase auth client bound to a token
type userLookup func(token string) (*types.UserResponse, error)

// SupabaseVerifier asks Supabase Auth who owns the token
type SupabaseVerifier struct {
	lookup userLookup
}

var _ Verifier = (*SupabaseVerifier)(nil)

// NewSupabaseVerifier uses the project's service role client
func NewSupabaseVerifier(client *supabase.Client) *SupabaseVerifier {
	return &SupabaseVerifier{
		lookup: func(token string) (*types.UserResponse, error) {
			return client.Auth.WithToken(token).GetUser()
		},
	}
}

// Verify resolves the token to the Supabase user id
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*Principal, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, ErrMissingToken
	}

	// GetUser takes no context; the token is checked by the auth server
	user, err := v.lookup(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	name, _ := user.UserMetadata["name"].(string)
	return &Principal{Subject: user.ID.String(), Name: name}, nil
}
