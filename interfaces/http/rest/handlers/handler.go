// Package handlers exposes the relationship services over HTTP. Every
// authenticated request opens a workspace for the caller and closes it
// before returning.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/LoadingLlama/relation/application/services"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	"github.com/LoadingLlama/relation/pkg/auth"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"
	"github.com/LoadingLlama/relation/pkg/utils"

	"go.uber.org/zap"
)

// base carries what every handler needs
type base struct {
	workspaces *services.WorkspaceFactory
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// viewerID resolves the authenticated caller to an identity id
func viewerID(ctx context.Context) (valueobjects.IdentityID, error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return valueobjects.IdentityID{}, pkgerrors.NewUnauthorizedError("unauthorized")
	}
	id, err := valueobjects.NewIdentityIDFromString(principal.Subject)
	if err != nil {
		return valueobjects.IdentityID{}, pkgerrors.NewUnauthorizedError("token subject is not an identity id")
	}
	return id, nil
}

// withWorkspace opens the caller's workspace, runs fn and tears the
// workspace down again. Errors from opening or from fn go to the error
// handler.
func (b *base) withWorkspace(w http.ResponseWriter, r *http.Request, fn func(ws *services.Workspace) error) {
	id, err := viewerID(r.Context())
	if err != nil {
		b.errors.Handle(w, r, err)
		return
	}

	ws, err := b.workspaces.Open(r.Context(), id)
	if err != nil {
		b.errors.Handle(w, r, err)
		return
	}
	defer func() {
		if err := ws.Close(r.Context()); err != nil {
			b.logger.Warn("Failed to close workspace", zap.String("viewer_id", id.String()), zap.Error(err))
		}
	}()

	if err := fn(ws); err != nil {
		b.errors.Handle(w, r, err)
	}
}

// decode reads a JSON body into dst and validates it
func decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.NewValidationError("invalid request body: " + err.Error())
	}
	if err := utils.ValidateStruct(dst); err != nil {
		appErr := pkgerrors.NewValidationError(err.Error())
		var fields utils.FieldErrors
		if errors.As(err, &fields) {
			appErr = appErr.WithDetails(map[string]interface{}{"fields": fields})
		}
		return appErr
	}
	return nil
}

// respondJSON sends a JSON response
func (b *base) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		b.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondUnsynced reports a change that was kept locally while the remote
// write failed
func (b *base) respondUnsynced(w http.ResponseWriter, r *http.Request, data interface{}, err error) {
	b.logger.Warn("Change kept locally after remote failure",
		zap.String("path", r.URL.Path),
		zap.Error(err))
	b.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"data":   data,
		"synced": false,
		"error":  pkgerrors.GetAppError(err).Message,
	})
}
