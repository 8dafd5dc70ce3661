// Package supabase implements the remote store ports on Supabase Postgres
// through its PostgREST API.
//
// Expected schema:
//
//	identities(id uuid pk, display_name text, identifier_hash text unique, score int, created_at timestamptz)
//	connection_requests(id uuid pk, from_id uuid, to_identifier_hash text, to_id uuid null, to_name text,
//	                    relation_type text, hidden bool, status text, created_at timestamptz, updated_at timestamptz)
//	relationships(id uuid pk, user_a uuid, user_b uuid, relation_type text, hidden bool, strength int,
//	              last_interaction timestamptz null, verified_at timestamptz, created_at timestamptz,
//	              unique(user_a, user_b))
package supabase

import (
	"strings"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

// Client is the part of the Supabase client the repositories use
type Client interface {
	From(table string) *postgrest.QueryBuilder
}

var _ Client = (*supa.Client)(nil)

const (
	tableIdentities    = "identities"
	tableRequests      = "connection_requests"
	tableRelationships = "relationships"

	returnRepresentation = "representation"

	// Postgres unique_violation
	codeUniqueViolation = "23505"
)

// NewClient connects with the service role key
func NewClient(url, serviceRoleKey string) (*supa.Client, error) {
	return supa.NewClient(url, serviceRoleKey, nil)
}

// isUniqueViolation matches the "(code) message" form PostgREST errors take
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "("+codeUniqueViolation+")")
}

func ascending() *postgrest.OrderOpts {
	return &postgrest.OrderOpts{Ascending: true}
}
