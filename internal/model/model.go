// Package model contains GORM model definitions shared across packages.
// All models are driver-agnostic: they work with both PostgreSQL and SQLite.
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Organization represents a tenant. Its ID is the external identity
// provider's organization id, so no UUID is generated here. Rows are created
// lazily on first project creation and carry opaque billing references that
// this service never interprets.
type Organization struct {
	ID                                 string    `gorm:"type:text;primaryKey" json:"id"`
	StripeCustomerID                   *string   `gorm:"type:text;uniqueIndex" json:"-"`
	StripeSubscriptionID               *string   `gorm:"type:text" json:"-"`
	StripeSubscriptionPriceID          *string   `gorm:"type:text" json:"-"`
	StripeSubscriptionStatus           *string   `gorm:"type:text" json:"-"`
	StripeSubscriptionCurrentPeriodEnd *int64    `json:"-"`
	CreatedAt                          time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt                          time.Time `gorm:"not null" json:"updatedAt"`
}

// Project belongs to exactly one organization. (organization_id, name) is
// unique: two projects in the same tenant cannot share a name.
type Project struct {
	ID             string       `gorm:"type:text;primaryKey" json:"id"`
	OrganizationID string       `gorm:"type:text;not null;uniqueIndex:uq_project_org_name;index:idx_project_org_updated,priority:1" json:"organizationId"`
	Organization   Organization `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedBy      string       `gorm:"type:text;not null" json:"createdBy"`
	Name           string       `gorm:"type:text;not null;uniqueIndex:uq_project_org_name" json:"name"`
	CreatedAt      time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt      time.Time    `gorm:"not null;index:idx_project_org_updated,priority:2" json:"updatedAt"`
}

// BeforeCreate generates a UUID primary key if not set.
func (p *Project) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// Revision is an immutable, labelled checkpoint of a project's configuration
// history. (project_id, version_label) is unique within a project.
type Revision struct {
	ID           string    `gorm:"type:text;primaryKey" json:"id"`
	ProjectID    string    `gorm:"type:text;not null;uniqueIndex:uq_revision_project_label;index:idx_revision_project_created,priority:1" json:"projectId"`
	Project      Project   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedBy    string    `gorm:"type:text;not null" json:"createdBy"`
	VersionLabel string    `gorm:"type:text;not null;uniqueIndex:uq_revision_project_label" json:"versionLabel"`
	Comment      *string   `gorm:"type:text" json:"comment,omitempty"`
	CreatedAt    time.Time `gorm:"not null;index:idx_revision_project_created,priority:2" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate assigns a UUIDv7 primary key if not set. V7 ids are
// time-ordered within the process, so `created_at DESC, id DESC` keeps a
// stable latest-first ordering even when two revisions share a timestamp.
func (r *Revision) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		r.ID = id.String()
	}
	return nil
}

// ProjectConfig is a configuration snapshot. RevisionID is nullable: a nil
// revision marks the project's default (unrevisioned) configuration. The
// (project_id, revision_id) pair is unique, including the null slot — that
// dimension is enforced explicitly by the store because neither SQLite nor
// PostgreSQL folds NULLs into a plain unique index.
type ProjectConfig struct {
	ID         string         `gorm:"type:text;primaryKey" json:"id"`
	ProjectID  string         `gorm:"type:text;not null;index;uniqueIndex:uq_config_project_revision" json:"projectId"`
	Project    Project        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	RevisionID *string        `gorm:"type:text;uniqueIndex:uq_config_project_revision" json:"revisionId"`
	Revision   *Revision      `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	CreatedBy  string         `gorm:"type:text;not null" json:"createdBy"`
	Data       datatypes.JSON `json:"data"`
	CreatedAt  time.Time      `gorm:"not null" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate generates a UUID primary key if not set.
func (c *ProjectConfig) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// Todo is a legacy entity kept for backward compatibility with earlier
// deployments. It has no foreign keys into the project schema.
type Todo struct {
	ID        string    `gorm:"type:text;primaryKey" json:"id"`
	OwnerID   string    `gorm:"type:text;not null;index" json:"ownerId"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// BeforeCreate generates a UUID primary key if not set.
func (t *Todo) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// StringSlice is a []string that GORM serialises as JSON text on both drivers.
type StringSlice []string

// User is the GORM model for the users table. OrganizationID is the user's
// active tenant; it flows into the JWT org claim at login.
type User struct {
	ID             string      `gorm:"type:text;primaryKey"`
	OrganizationID *string     `gorm:"type:text"`
	Email          string      `gorm:"type:text;not null;uniqueIndex"`
	Name           string      `gorm:"type:text;not null;default:''"`
	PasswordHash   string      `gorm:"type:text;not null;default:''"`
	Roles          StringSlice `gorm:"type:text;not null;default:'[]';serializer:json"`
	DeactivatedAt  *time.Time
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// RefreshToken is the GORM model for the refresh_tokens table.
type RefreshToken struct {
	ID        string    `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"type:text;not null;index"`
	TokenHash string    `gorm:"type:text;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	RevokedAt *time.Time
	CreatedAt time.Time `gorm:"not null"`
}

// BeforeCreate generates a UUID primary key if not set.
func (rt *RefreshToken) BeforeCreate(_ *gorm.DB) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	return nil
}
