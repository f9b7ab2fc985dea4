package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/voltio/gridbase/internal/api/jsonapi"
	"github.com/voltio/gridbase/internal/api/middleware"
	"github.com/voltio/gridbase/internal/apperr"
	"github.com/voltio/gridbase/internal/project"
)

// ProjectHandler handles /api/v1/projects* routes.
type ProjectHandler struct {
	svc *project.Service
}

// NewProjectHandler creates a ProjectHandler.
func NewProjectHandler(svc *project.Service) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// List handles GET /api/v1/projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	projects, err := h.svc.ListProjects(r.Context(), claims.OrganizationID)
	if err != nil {
		renderServiceError(w, err)
		return
	}

	data := make([]any, 0, len(projects))
	for _, p := range projects {
		data = append(data, jsonapi.ResourceObject{Type: "projects", ID: p.ID, Attributes: p})
	}
	jsonapi.RenderList(w, http.StatusOK, data)
}

// Create handles POST /api/v1/projects.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	p, err := h.svc.CreateProject(r.Context(), claims.OrganizationID, claims.UserID, req.Name)
	if err != nil {
		renderServiceError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, jsonapi.ResourceObject{Type: "projects", ID: p.ID, Attributes: p})
}

// Get handles GET /api/v1/projects/{id}. The optional ?rev= query parameter
// selects a revision; an id not belonging to the project falls back to the
// latest revision.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	res, err := h.svc.Resolve(r.Context(), claims.OrganizationID, r.PathValue("id"), r.URL.Query().Get("rev"))
	if err != nil {
		renderServiceError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{
		Type:       "project_views",
		ID:         res.Project.ID,
		Attributes: res,
	})
}

// CreateRevision handles POST /api/v1/projects/{id}/revisions.
func (h *ProjectHandler) CreateRevision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VersionLabel string `json:"versionLabel"`
		Comment      string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	rev, err := h.svc.CreateRevision(r.Context(), claims.OrganizationID, claims.UserID,
		r.PathValue("id"), req.VersionLabel, req.Comment)
	if err != nil {
		renderServiceError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusCreated, jsonapi.ResourceObject{Type: "revisions", ID: rev.ID, Attributes: rev})
}

// DeleteRevision handles DELETE /api/v1/projects/{id}/revisions/{revisionID}.
func (h *ProjectHandler) DeleteRevision(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	err := h.svc.DeleteRevision(r.Context(), claims.OrganizationID, claims.UserID,
		r.PathValue("id"), r.PathValue("revisionID"))
	if err != nil {
		renderServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveConfig handles PUT /api/v1/projects/{id}/config. Form values arrive
// as JSON; numeric fields may be strings or numbers and default to 0 when
// absent or unparseable. An empty revisionId targets the project's default
// (unrevisioned) config slot.
func (h *ProjectHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonapi.RenderError(w, http.StatusBadRequest, "invalid_body", "Bad Request", "request body must be valid JSON")
		return
	}

	// The target revision may come as a body field or as ?rev=; the body
	// wins when both are present. Empty means the default slot.
	var revisionID *string
	if rev := fieldString(body, "revisionId"); rev != "" {
		revisionID = &rev
	} else if rev := r.URL.Query().Get("rev"); rev != "" {
		revisionID = &rev
	}
	in := project.ConfigInput{
		SubstationName:   fieldString(body, "substationName"),
		VoltageKv:        fieldString(body, "voltageKv"),
		TransformerCount: fieldString(body, "transformerCount"),
	}

	claims := middleware.ClaimsFromContext(r.Context())
	cfg, err := h.svc.SaveConfig(r.Context(), claims.OrganizationID, claims.UserID,
		r.PathValue("id"), revisionID, in)
	if err != nil {
		renderServiceError(w, err)
		return
	}
	jsonapi.RenderOne(w, http.StatusOK, jsonapi.ResourceObject{Type: "project_configs", ID: cfg.ID, Attributes: cfg})
}

// fieldString reads a JSON field as its string form: strings pass through,
// numbers are formatted, everything else is empty.
func fieldString(body map[string]any, key string) string {
	switch v := body[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// renderServiceError maps the apperr taxonomy onto JSON:API responses.
func renderServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		jsonapi.RenderErrorMeta(w, http.StatusUnauthorized,
			"unauthenticated", "Unauthorized", "authentication required",
			jsonapi.Meta{"redirect": "/sign-in"})
	case errors.Is(err, apperr.ErrNoActiveTenant):
		jsonapi.RenderErrorMeta(w, http.StatusForbidden,
			"no_active_tenant", "Forbidden", "no organization is selected for this account",
			jsonapi.Meta{"redirect": "/onboarding/organization-selection"})
	case errors.Is(err, apperr.ErrNotFound):
		jsonapi.RenderError(w, http.StatusNotFound,
			"not_found", "Not Found", "the requested resource does not exist")
	case errors.Is(err, apperr.ErrConflict):
		jsonapi.RenderError(w, http.StatusConflict,
			"constraint_violation", "Conflict", "the write conflicts with an existing resource")
	case errors.Is(err, apperr.ErrInvalid):
		jsonapi.RenderError(w, http.StatusUnprocessableEntity,
			"invalid_input", "Unprocessable Entity", err.Error())
	default:
		jsonapi.RenderError(w, http.StatusInternalServerError,
			"internal_error", "Internal Server Error", fmt.Sprintf("request failed: %v", err))
	}
}
