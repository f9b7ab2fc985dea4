// Package store is the persistence layer for organizations, projects,
// revisions, and configuration snapshots. Uniqueness and referential
// integrity live in the schema; this package translates driver errors into
// the apperr taxonomy and never pre-checks for conflicts.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voltio/gridbase/internal/apperr"
	"github.com/voltio/gridbase/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps a *gorm.DB. It holds no state of its own; all state lives in
// the database, so a single Store is safe for concurrent use.
type Store struct {
	db *gorm.DB
}

// New creates a Store backed by the given GORM DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// EnsureOrganization inserts the organization row if absent and does nothing
// otherwise. The conflict clause makes it a single atomic statement, so
// concurrent first-project creations cannot race each other.
func (s *Store) EnsureOrganization(ctx context.Context, orgID string) error {
	org := model.Organization{ID: orgID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&org).Error
	if err != nil {
		return fmt.Errorf("ensure organization %s: %w", orgID, apperr.Classify(err))
	}
	return nil
}

// CreateProject inserts a project. A duplicate (organization, name) pair
// surfaces as apperr.ErrConflict.
func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create project: %w", apperr.Classify(err))
	}
	return nil
}

// GetProject fetches a project by id scoped to the owning organization.
// A project that exists under another tenant is reported as not found.
func (s *Store) GetProject(ctx context.Context, projectID, orgID string) (model.Project, error) {
	var p model.Project
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", projectID, orgID).
		First(&p).Error
	if err != nil {
		return model.Project{}, fmt.Errorf("get project: %w", apperr.Classify(err))
	}
	return p, nil
}

// ListProjects returns the organization's projects, most recently updated
// first.
func (s *Store) ListProjects(ctx context.Context, orgID string) ([]model.Project, error) {
	var out []model.Project
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", apperr.Classify(err))
	}
	return out, nil
}

// TouchProject refreshes the project's updated_at so list ordering reflects
// recent revision/config activity.
func (s *Store) TouchProject(ctx context.Context, projectID string) error {
	err := s.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("id = ?", projectID).
		Update("updated_at", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("touch project: %w", apperr.Classify(err))
	}
	return nil
}

// CreateRevision inserts a revision. A duplicate (project, version label)
// pair surfaces as apperr.ErrConflict.
func (s *Store) CreateRevision(ctx context.Context, r *model.Revision) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create revision: %w", apperr.Classify(err))
	}
	return nil
}

// ListRevisions returns a project's revisions newest first. Ties on
// created_at fall back to id order, which is insertion order because
// revision ids are UUIDv7.
func (s *Store) ListRevisions(ctx context.Context, projectID string) ([]model.Revision, error) {
	var out []model.Revision
	err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", apperr.Classify(err))
	}
	return out, nil
}

// DeleteRevision removes a revision belonging to the given project. Any
// config attached to the revision survives with its revision reference
// cleared (FK SET NULL) and becomes the project's default config — unless a
// default already exists, in which case the revision's config is deleted
// instead so the one-default-per-project invariant holds.
func (s *Store) DeleteRevision(ctx context.Context, projectID, revisionID string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rev model.Revision
		if err := tx.Where("id = ? AND project_id = ?", revisionID, projectID).First(&rev).Error; err != nil {
			return err
		}

		var defaults int64
		if err := tx.Model(&model.ProjectConfig{}).
			Where("project_id = ? AND revision_id IS NULL", projectID).
			Count(&defaults).Error; err != nil {
			return err
		}
		if defaults > 0 {
			if err := tx.Where("project_id = ? AND revision_id = ?", projectID, revisionID).
				Delete(&model.ProjectConfig{}).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&rev).Error
	})
	if err != nil {
		return fmt.Errorf("delete revision: %w", apperr.Classify(err))
	}
	return nil
}

// GetConfig fetches the config for the (project, revision) slot; revisionID
// nil selects the default (unrevisioned) slot. A missing config is a valid
// state and returns (nil, nil).
func (s *Store) GetConfig(ctx context.Context, projectID string, revisionID *string) (*model.ProjectConfig, error) {
	q := s.db.WithContext(ctx).Where("project_id = ?", projectID)
	if revisionID != nil {
		q = q.Where("revision_id = ?", *revisionID)
	} else {
		q = q.Where("revision_id IS NULL")
	}

	var cfg model.ProjectConfig
	if err := q.First(&cfg).Error; err != nil {
		err = apperr.Classify(err)
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get config: %w", err)
	}
	return &cfg, nil
}

// UpsertConfig inserts or replaces the config for the (project, revision)
// slot. The revisioned slot uses the database's own conflict resolution on
// the composite unique index. The null-revision slot cannot be targeted by
// a conflict clause (NULLs are distinct in unique indexes on both drivers),
// so it is handled explicitly inside a transaction: update in place, insert
// only when no row was touched.
func (s *Store) UpsertConfig(ctx context.Context, cfg *model.ProjectConfig) error {
	if cfg.RevisionID != nil {
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "project_id"}, {Name: "revision_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"data", "created_by", "updated_at"}),
			}).
			Create(cfg).Error
		if err != nil {
			return fmt.Errorf("upsert config: %w", apperr.Classify(err))
		}
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.ProjectConfig{}).
			Where("project_id = ? AND revision_id IS NULL", cfg.ProjectID).
			Updates(map[string]any{
				"data":       cfg.Data,
				"created_by": cfg.CreatedBy,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		return tx.Create(cfg).Error
	})
	if err != nil {
		return fmt.Errorf("upsert config: %w", apperr.Classify(err))
	}
	return nil
}

// CountConfigs returns how many config rows a project has; used by tests and
// housekeeping to assert slot invariants.
func (s *Store) CountConfigs(ctx context.Context, projectID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&model.ProjectConfig{}).
		Where("project_id = ?", projectID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count configs: %w", apperr.Classify(err))
	}
	return n, nil
}

// CreateTodo inserts a legacy todo row.
func (s *Store) CreateTodo(ctx context.Context, t *model.Todo) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create todo: %w", apperr.Classify(err))
	}
	return nil
}

// ListTodos returns the owner's todos, most recently updated first.
func (s *Store) ListTodos(ctx context.Context, ownerID string) ([]model.Todo, error) {
	var out []model.Todo
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", apperr.Classify(err))
	}
	return out, nil
}
