package handlers

import (
	"time"

	"github.com/LoadingLlama/relation/application/services"
	"github.com/LoadingLlama/relation/domain/core/entities"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
)

// IdentityResponse is the caller's profile
type IdentityResponse struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	IdentifierHash string    `json:"identifier_hash"`
	Score          int       `json:"score"`
	CreatedAt      time.Time `json:"created_at"`
}

func toIdentityResponse(identity *entities.Identity) IdentityResponse {
	return IdentityResponse{
		ID:             identity.ID().String(),
		DisplayName:    identity.DisplayName(),
		IdentifierHash: identity.IdentifierHash().String(),
		Score:          identity.Score(),
		CreatedAt:      identity.CreatedAt(),
	}
}

// RequestResponse is a connection request as seen by the caller
type RequestResponse struct {
	ID           string    `json:"id"`
	FromID       string    `json:"from_id"`
	ToID         string    `json:"to_id,omitempty"`
	ToName       string    `json:"to_name"`
	RelationType string    `json:"relation_type,omitempty"`
	Typed        bool      `json:"typed"`
	Hidden       bool      `json:"hidden"`
	Status       string    `json:"status"`
	Direction    string    `json:"direction"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toRequestResponse(req *entities.ConnectionRequest, direction entities.Direction) RequestResponse {
	resp := RequestResponse{
		ID:           req.ID(),
		FromID:       req.FromID().String(),
		ToName:       req.ToName(),
		RelationType: req.RelationType().String(),
		Typed:        req.Kind().IsTyped(),
		Hidden:       req.Hidden(),
		Status:       string(req.Status()),
		Direction:    string(direction),
		CreatedAt:    req.CreatedAt(),
		UpdatedAt:    req.UpdatedAt(),
	}
	if !req.ToID().IsZero() {
		resp.ToID = req.ToID().String()
	}
	return resp
}

func toRequestResponses(views []services.RequestView) []RequestResponse {
	out := make([]RequestResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toRequestResponse(v.Request, v.Direction))
	}
	return out
}

// RelationshipResponse is a verified relationship from the caller's side
type RelationshipResponse struct {
	ID              string     `json:"id"`
	CounterpartID   string     `json:"counterpart_id"`
	CounterpartName string     `json:"counterpart_name,omitempty"`
	RelationType    string     `json:"relation_type"`
	Hidden          bool       `json:"hidden"`
	Strength        int        `json:"strength"`
	LastInteraction *time.Time `json:"last_interaction,omitempty"`
	VerifiedAt      time.Time  `json:"verified_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// nameLookup resolves display names for counterparts
type nameLookup interface {
	Lookup(id valueobjects.IdentityID) (*entities.Identity, bool)
}

func toRelationshipResponse(rel *entities.Relationship, viewer valueobjects.IdentityID, names nameLookup) RelationshipResponse {
	counterpart := rel.Counterpart(viewer)
	resp := RelationshipResponse{
		ID:              rel.ID(),
		CounterpartID:   counterpart.String(),
		RelationType:    rel.RelationType().String(),
		Hidden:          rel.Hidden(),
		Strength:        rel.Strength(),
		LastInteraction: rel.LastInteraction(),
		VerifiedAt:      rel.VerifiedAt(),
		CreatedAt:       rel.CreatedAt(),
	}
	if identity, ok := names.Lookup(counterpart); ok {
		resp.CounterpartName = identity.DisplayName()
	}
	return resp
}

// InsightsResponse mirrors the disclosure policy of the caller's depth tier
type InsightsResponse struct {
	NetworkDepth        int      `json:"network_depth"`
	TotalConnections    *int     `json:"total_connections,omitempty"`
	FadingRelationships []string `json:"fading_relationship_ids,omitempty"`
	CentralNodeIDs      []string `json:"central_node_ids,omitempty"`
}
