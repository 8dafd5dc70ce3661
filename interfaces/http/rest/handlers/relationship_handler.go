package handlers

import (
	"net/http"
	"time"

	"github.com/LoadingLlama/relation/application/services"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RelationshipHandler handles relationship HTTP requests
type RelationshipHandler struct {
	base
	now func() time.Time
}

// NewRelationshipHandler creates a new relationship handler
func NewRelationshipHandler(workspaces *services.WorkspaceFactory, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *RelationshipHandler {
	return &RelationshipHandler{
		base: base{workspaces: workspaces, errors: errs, logger: logger},
		now:  time.Now,
	}
}

// UpdateRelationshipRequest edits the mutable profile fields. Interacted
// stamps the last interaction with the server time unless InteractedAt is set.
type UpdateRelationshipRequest struct {
	Strength     *int       `json:"strength,omitempty" validate:"omitempty,min=1,max=10"`
	Interacted   bool       `json:"interacted,omitempty"`
	InteractedAt *time.Time `json:"interacted_at,omitempty"`
}

// ListRelationships handles GET /relationships
func (h *RelationshipHandler) ListRelationships(w http.ResponseWriter, r *http.Request) {
	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		viewer := ws.Session.ViewerID()
		rels := ws.Relationships.Query(viewer)

		out := make([]RelationshipResponse, 0, len(rels))
		for _, rel := range rels {
			out = append(out, toRelationshipResponse(rel, viewer, ws.Session))
		}
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"relationships": out,
			"total":         len(out),
		})
		return nil
	})
}

// UpdateRelationship handles PATCH /relationships/{relationshipID}
func (h *RelationshipHandler) UpdateRelationship(w http.ResponseWriter, r *http.Request) {
	relationshipID := chi.URLParam(r, "relationshipID")

	var req UpdateRelationshipRequest
	if err := decode(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}
	if req.Strength == nil && !req.Interacted && req.InteractedAt == nil {
		h.errors.Handle(w, r, pkgerrors.NewValidationError("nothing to update"))
		return
	}

	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		rel, err := ws.Relationships.Get(relationshipID)
		if err != nil {
			return err
		}
		if req.Strength != nil {
			if rel, err = ws.Relationships.SetStrength(r.Context(), relationshipID, *req.Strength); err != nil {
				return err
			}
		}
		if req.Interacted || req.InteractedAt != nil {
			at := h.now()
			if req.InteractedAt != nil {
				at = *req.InteractedAt
			}
			if rel, err = ws.Relationships.RecordInteraction(r.Context(), relationshipID, at); err != nil {
				return err
			}
		}
		h.respondJSON(w, http.StatusOK, toRelationshipResponse(rel, ws.Session.ViewerID(), ws.Session))
		return nil
	})
}

// DeleteRelationship handles DELETE /relationships/{relationshipID}
func (h *RelationshipHandler) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	relationshipID := chi.URLParam(r, "relationshipID")

	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		if err := ws.Relationships.Remove(r.Context(), relationshipID); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}
