package handlers

import (
	"net/http"

	"github.com/LoadingLlama/relation/application/services"
	"github.com/LoadingLlama/relation/domain/core/entities"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RequestHandler handles connection request HTTP requests
type RequestHandler struct {
	base
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(workspaces *services.WorkspaceFactory, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{base: base{workspaces: workspaces, errors: errs, logger: logger}}
}

// CreateRequestRequest represents the request body for sending a request.
// RelationType must be empty when requests are untyped.
type CreateRequestRequest struct {
	ToIdentifier string `json:"to_identifier" validate:"required,max=40"`
	ToName       string `json:"to_name" validate:"required,max=100"`
	RelationType string `json:"relation_type,omitempty" validate:"max=60"`
	Hidden       bool   `json:"hidden,omitempty"`
}

// AcceptRequestRequest optionally overrides the relation type on accept
type AcceptRequestRequest struct {
	RelationType string `json:"relation_type,omitempty" validate:"max=60"`
}

// CreateRequest handles POST /requests
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateRequestRequest
	if err := decode(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		created, err := ws.Ledger.Create(r.Context(), services.CreateRequestInput{
			ToIdentifier: req.ToIdentifier,
			ToName:       req.ToName,
			RelationType: req.RelationType,
			Hidden:       req.Hidden,
		})
		if created != nil && pkgerrors.IsPersistence(err) {
			h.respondUnsynced(w, r, toRequestResponse(created, entities.DirectionOutgoing), err)
			return nil
		}
		if err != nil {
			return err
		}
		h.respondJSON(w, http.StatusCreated, toRequestResponse(created, entities.DirectionOutgoing))
		return nil
	})
}

// ListRequests handles GET /requests?direction=incoming|outgoing
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	direction := entities.Direction(r.URL.Query().Get("direction"))
	switch direction {
	case "", entities.DirectionIncoming, entities.DirectionOutgoing:
	default:
		h.errors.Handle(w, r, pkgerrors.NewValidationError("direction must be incoming or outgoing"))
		return
	}

	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		views, err := ws.Ledger.List(direction)
		if err != nil {
			return err
		}
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"requests": toRequestResponses(views),
			"total":    len(views),
		})
		return nil
	})
}

// AcceptRequest handles POST /requests/{requestID}/accept
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	var req AcceptRequestRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			h.errors.Handle(w, r, err)
			return
		}
	}

	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		viewer := ws.Session.ViewerID()
		rel, err := ws.Ledger.Accept(r.Context(), requestID, req.RelationType)
		if rel != nil && pkgerrors.IsPersistence(err) {
			h.respondUnsynced(w, r, toRelationshipResponse(rel, viewer, ws.Session), err)
			return nil
		}
		if err != nil {
			return err
		}
		h.respondJSON(w, http.StatusOK, toRelationshipResponse(rel, viewer, ws.Session))
		return nil
	})
}

// DeclineRequest handles POST /requests/{requestID}/decline
func (h *RequestHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		err := ws.Ledger.Decline(r.Context(), requestID)
		if pkgerrors.IsPersistence(err) {
			if view, getErr := ws.Ledger.Get(requestID); getErr == nil {
				h.respondUnsynced(w, r, toRequestResponse(view.Request, view.Direction), err)
				return nil
			}
		}
		if err != nil {
			return err
		}
		view, err := ws.Ledger.Get(requestID)
		if err != nil {
			return err
		}
		h.respondJSON(w, http.StatusOK, toRequestResponse(view.Request, view.Direction))
		return nil
	})
}

// WithdrawRequest handles DELETE /requests/{requestID}
func (h *RequestHandler) WithdrawRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")

	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		if err := ws.Ledger.Withdraw(r.Context(), requestID); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}
