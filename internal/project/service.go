// Package project implements the dashboard core: resolving a project's
// active revision and configuration for display, and the mutations that
// create projects, revisions, and configuration snapshots.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/voltio/gridbase/internal/apperr"
	"github.com/voltio/gridbase/internal/model"
	"github.com/voltio/gridbase/internal/store"
	"github.com/voltio/gridbase/internal/viewcache"
)

// Service coordinates the store and the view-invalidation hook. It keeps no
// per-request state; every call re-reads committed data.
type Service struct {
	store *store.Store
	views viewcache.Invalidator
	log   *slog.Logger
}

// NewService creates a Service.
func NewService(st *store.Store, views viewcache.Invalidator, log *slog.Logger) *Service {
	return &Service{store: st, views: views, log: log}
}

// ConfigData is the substation configuration payload. It is stored as
// opaque JSON so new fields can be added without a schema change.
type ConfigData struct {
	SubstationName   string  `json:"substationName"`
	VoltageKv        float64 `json:"voltageKv"`
	TransformerCount int     `json:"transformerCount"`
}

// ConfigView is a config row with its payload decoded. A null stored
// payload decodes to the zero ConfigData.
type ConfigView struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"projectId"`
	RevisionID *string    `json:"revisionId"`
	CreatedBy  string     `json:"createdBy"`
	Data       ConfigData `json:"data"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Resolution is everything the project detail view needs: the project, its
// full revision history newest first, the revision selected for display,
// and that revision's configuration (nil when none has been saved yet).
type Resolution struct {
	Project          model.Project    `json:"project"`
	Revisions        []model.Revision `json:"revisions"`
	ActiveRevisionID *string          `json:"activeRevisionId"`
	Config           *ConfigView      `json:"config"`
}

// ListProjects returns the organization's projects, most recently updated
// first.
func (s *Service) ListProjects(ctx context.Context, orgID string) ([]model.Project, error) {
	if orgID == "" {
		return nil, apperr.ErrNoActiveTenant
	}
	return s.store.ListProjects(ctx, orgID)
}

// CreateProject lazily creates the organization row, then inserts the
// project. A name already used within the organization fails with
// apperr.ErrConflict; the caller retries with a different name rather than
// resubmitting.
func (s *Service) CreateProject(ctx context.Context, orgID, userID, name string) (model.Project, error) {
	if userID == "" {
		return model.Project{}, apperr.ErrUnauthenticated
	}
	if orgID == "" {
		return model.Project{}, apperr.ErrNoActiveTenant
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Project{}, fmt.Errorf("%w: project name is required", apperr.ErrInvalid)
	}

	if err := s.store.EnsureOrganization(ctx, orgID); err != nil {
		return model.Project{}, err
	}

	p := model.Project{
		OrganizationID: orgID,
		CreatedBy:      userID,
		Name:           name,
	}
	if err := s.store.CreateProject(ctx, &p); err != nil {
		return model.Project{}, err
	}

	s.invalidate(ctx, viewcache.ProjectListKey(orgID))
	return p, nil
}

// Resolve loads the project detail view state. The requested revision id is
// honoured only when it actually belongs to the project; anything else —
// stale, mistyped, or another tenant's id — silently falls back to the
// latest revision. A project with no revisions resolves against the default
// (unrevisioned) config slot.
func (s *Service) Resolve(ctx context.Context, orgID, projectID, requestedRevisionID string) (Resolution, error) {
	if orgID == "" {
		return Resolution{}, apperr.ErrNoActiveTenant
	}

	p, err := s.store.GetProject(ctx, projectID, orgID)
	if err != nil {
		return Resolution{}, err
	}

	revisions, err := s.store.ListRevisions(ctx, projectID)
	if err != nil {
		return Resolution{}, err
	}

	var active *string
	if len(revisions) > 0 {
		active = &revisions[0].ID
	}
	if requestedRevisionID != "" {
		for i := range revisions {
			if revisions[i].ID == requestedRevisionID {
				active = &revisions[i].ID
				break
			}
		}
	}

	cfg, err := s.store.GetConfig(ctx, projectID, active)
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{
		Project:          p,
		Revisions:        revisions,
		ActiveRevisionID: active,
		Config:           decodeConfig(cfg),
	}, nil
}

// CreateRevision inserts a labelled checkpoint. Ownership of the project is
// re-verified against the caller's organization before the write, the same
// scoped lookup Resolve uses, so a guessed project id cannot be used to
// inject revisions across tenants.
func (s *Service) CreateRevision(ctx context.Context, orgID, userID, projectID, versionLabel, comment string) (model.Revision, error) {
	if userID == "" {
		return model.Revision{}, apperr.ErrUnauthenticated
	}
	if orgID == "" {
		return model.Revision{}, apperr.ErrNoActiveTenant
	}
	versionLabel = strings.TrimSpace(versionLabel)
	if projectID == "" || versionLabel == "" {
		return model.Revision{}, fmt.Errorf("%w: project id and version label are required", apperr.ErrInvalid)
	}

	if _, err := s.store.GetProject(ctx, projectID, orgID); err != nil {
		return model.Revision{}, err
	}

	r := model.Revision{
		ProjectID:    projectID,
		CreatedBy:    userID,
		VersionLabel: versionLabel,
	}
	if c := strings.TrimSpace(comment); c != "" {
		r.Comment = &c
	}
	if err := s.store.CreateRevision(ctx, &r); err != nil {
		return model.Revision{}, err
	}
	if err := s.store.TouchProject(ctx, projectID); err != nil {
		s.log.Warn("touch project after revision", "project_id", projectID, "err", err)
	}

	s.invalidate(ctx, viewcache.ProjectDetailKey(projectID))
	return r, nil
}

// DeleteRevision removes a revision after re-verifying project ownership.
func (s *Service) DeleteRevision(ctx context.Context, orgID, userID, projectID, revisionID string) error {
	if userID == "" {
		return apperr.ErrUnauthenticated
	}
	if orgID == "" {
		return apperr.ErrNoActiveTenant
	}
	if _, err := s.store.GetProject(ctx, projectID, orgID); err != nil {
		return err
	}
	if err := s.store.DeleteRevision(ctx, projectID, revisionID); err != nil {
		return err
	}
	s.invalidate(ctx, viewcache.ProjectDetailKey(projectID))
	return nil
}

// ConfigInput carries the raw form fields for SaveConfig. Numeric fields
// arrive as strings and default to 0 when absent or non-numeric.
type ConfigInput struct {
	SubstationName   string
	VoltageKv        string
	TransformerCount string
}

// SaveConfig upserts the configuration snapshot for the (project, revision)
// slot; a nil revisionID targets the project's default slot. The existing
// row's payload and creator are replaced, never merged.
func (s *Service) SaveConfig(ctx context.Context, orgID, userID, projectID string, revisionID *string, in ConfigInput) (*ConfigView, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	if orgID == "" {
		return nil, apperr.ErrNoActiveTenant
	}
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", apperr.ErrInvalid)
	}

	if _, err := s.store.GetProject(ctx, projectID, orgID); err != nil {
		return nil, err
	}

	data := ConfigData{
		SubstationName:   strings.TrimSpace(in.SubstationName),
		VoltageKv:        parseFloatOrZero(in.VoltageKv),
		TransformerCount: parseIntOrZero(in.TransformerCount),
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal config payload: %w", err)
	}

	cfg := model.ProjectConfig{
		ProjectID:  projectID,
		RevisionID: revisionID,
		CreatedBy:  userID,
		Data:       payload,
	}
	if err := s.store.UpsertConfig(ctx, &cfg); err != nil {
		return nil, err
	}
	if err := s.store.TouchProject(ctx, projectID); err != nil {
		s.log.Warn("touch project after config save", "project_id", projectID, "err", err)
	}

	s.invalidate(ctx, viewcache.ProjectDetailKey(projectID))

	stored, err := s.store.GetConfig(ctx, projectID, revisionID)
	if err != nil {
		return nil, err
	}
	return decodeConfig(stored), nil
}

// CreateTodo inserts a legacy todo for the caller.
func (s *Service) CreateTodo(ctx context.Context, userID, title, message string) (model.Todo, error) {
	if userID == "" {
		return model.Todo{}, apperr.ErrUnauthenticated
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Todo{}, fmt.Errorf("%w: title is required", apperr.ErrInvalid)
	}
	t := model.Todo{OwnerID: userID, Title: title, Message: message}
	if err := s.store.CreateTodo(ctx, &t); err != nil {
		return model.Todo{}, err
	}
	return t, nil
}

// ListTodos returns the caller's legacy todos.
func (s *Service) ListTodos(ctx context.Context, userID string) ([]model.Todo, error) {
	if userID == "" {
		return nil, apperr.ErrUnauthenticated
	}
	return s.store.ListTodos(ctx, userID)
}

// invalidate drops view-cache keys after a successful write. Invalidation
// failures are logged and swallowed: the write already committed, and a
// stale rendered view must not fail the mutation.
func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.views == nil {
		return
	}
	if err := s.views.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("view cache invalidation failed", "keys", keys, "err", err)
	}
}

func decodeConfig(cfg *model.ProjectConfig) *ConfigView {
	if cfg == nil {
		return nil
	}
	view := &ConfigView{
		ID:         cfg.ID,
		ProjectID:  cfg.ProjectID,
		RevisionID: cfg.RevisionID,
		CreatedBy:  cfg.CreatedBy,
		CreatedAt:  cfg.CreatedAt,
		UpdatedAt:  cfg.UpdatedAt,
	}
	if len(cfg.Data) > 0 {
		_ = json.Unmarshal(cfg.Data, &view.Data)
	}
	return view
}

func parseFloatOrZero(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseIntOrZero(s string) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return v
}
