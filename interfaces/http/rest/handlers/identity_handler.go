package handlers

import (
	"net/http"

	"github.com/LoadingLlama/relation/application/services"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"go.uber.org/zap"
)

// IdentityHandler handles the caller's own identity
type IdentityHandler struct {
	base
	identities *services.IdentityService
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(
	workspaces *services.WorkspaceFactory,
	identities *services.IdentityService,
	errs *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *IdentityHandler {
	return &IdentityHandler{
		base:       base{workspaces: workspaces, errors: errs, logger: logger},
		identities: identities,
	}
}

// RegisterRequest represents the request body for registering the caller
type RegisterRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=100"`
	Identifier  string `json:"identifier" validate:"required,max=40"`
}

// Register handles POST /me. The identity id is the token subject.
func (h *IdentityHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(r, &req); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	id, err := viewerID(r.Context())
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	identity, err := h.identities.Register(r.Context(), id, req.DisplayName, req.Identifier)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

// GetMe handles GET /me
func (h *IdentityHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		viewer, err := ws.Session.Viewer()
		if err != nil {
			return err
		}
		h.respondJSON(w, http.StatusOK, map[string]interface{}{
			"identity": toIdentityResponse(viewer),
			"offline":  ws.Session.Offline(),
		})
		return nil
	})
}
