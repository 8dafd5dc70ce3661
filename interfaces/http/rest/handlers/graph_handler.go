package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/LoadingLlama/relation/application/services"
	"github.com/LoadingLlama/relation/domain/core/valueobjects"
	domainservices "github.com/LoadingLlama/relation/domain/services"
	pkgerrors "github.com/LoadingLlama/relation/pkg/errors"

	"go.uber.org/zap"
)

// GraphHandler serves graph projections and insights
type GraphHandler struct {
	base
	now func() time.Time
}

// NewGraphHandler creates a new graph handler
func NewGraphHandler(workspaces *services.WorkspaceFactory, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{
		base: base{workspaces: workspaces, errors: errs, logger: logger},
		now:  time.Now,
	}
}

// GetGraph handles GET /graph?viewpoint=&search=&show_hidden=&reveal=
//
// An empty viewpoint is the caller's default view. reveal limits how many
// counterpart nodes are included; omitted means all of them.
func (h *GraphHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var viewpoint valueobjects.IdentityID
	if raw := q.Get("viewpoint"); raw != "" {
		id, err := valueobjects.NewIdentityIDFromString(raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("viewpoint must be an identity id"))
			return
		}
		viewpoint = id
	}

	budget := domainservices.RevealAll
	if raw := q.Get("reveal"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("reveal must be a non-negative integer"))
			return
		}
		budget = n
	}

	filter := domainservices.Filter{Search: q.Get("search")}
	if raw := q.Get("show_hidden"); raw != "" {
		show, err := strconv.ParseBool(raw)
		if err != nil {
			h.errors.Handle(w, r, pkgerrors.NewValidationError("show_hidden must be a boolean"))
			return
		}
		filter.ShowHidden = show
	}

	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		snapshot, err := ws.Network.Query(services.GraphQuery{
			Viewpoint:    viewpoint,
			Filter:       filter,
			RevealBudget: budget,
		})
		if err != nil {
			return err
		}
		h.respondJSON(w, http.StatusOK, snapshot)
		return nil
	})
}

// GetInsights handles GET /insights
func (h *GraphHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	h.withWorkspace(w, r, func(ws *services.Workspace) error {
		insights, err := ws.Network.GetInsights(h.now())
		if err != nil {
			return err
		}

		resp := InsightsResponse{
			NetworkDepth:     insights.NetworkDepth,
			TotalConnections: insights.TotalConnections,
		}
		for _, rel := range insights.FadingRelationships {
			resp.FadingRelationships = append(resp.FadingRelationships, rel.ID())
		}
		for _, id := range insights.CentralNodeIDs {
			resp.CentralNodeIDs = append(resp.CentralNodeIDs, id.String())
		}
		h.respondJSON(w, http.StatusOK, resp)
		return nil
	})
}
