// Package seed creates a default admin user on first boot when the users
// table is empty.
package seed

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/voltio/gridbase/internal/model"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminOptions configures the seed admin user.
type AdminOptions struct {
	Email    string
	Password string // if empty, a random password is generated
	OrgID    string // if set, the admin is bound to this organization
}

// EnsureAdmin creates a seed admin user if no users exist. When OrgID is set
// the organization row is created too and becomes the admin's active tenant,
// so a fresh install can reach the project routes immediately.
// It prints the generated password to stdout and returns it.
// The function is idempotent — it is safe to call on every startup.
func EnsureAdmin(ctx context.Context, db *gorm.DB, opts AdminOptions, log *slog.Logger) error {
	var count int64
	if err := db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		log.Info("seed admin already exists")
		return nil
	}

	password := opts.Password
	if password == "" {
		var err error
		password, err = generatePassword()
		if err != nil {
			return fmt.Errorf("generate seed password: %w", err)
		}
		// Print the generated password to stdout exactly once.
		fmt.Printf("[gridbase] seed admin password: %s\n", password)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	var orgID *string
	if opts.OrgID != "" {
		org := &model.Organization{ID: opts.OrgID}
		if err := db.WithContext(ctx).FirstOrCreate(org, model.Organization{ID: opts.OrgID}).Error; err != nil {
			return fmt.Errorf("ensure seed organization: %w", err)
		}
		orgID = &opts.OrgID
	}

	u := &model.User{
		Email:          opts.Email,
		Name:           "Seed Admin",
		PasswordHash:   string(hash),
		Roles:          model.StringSlice{"Admin"},
		OrganizationID: orgID,
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return fmt.Errorf("insert seed admin: %w", err)
	}

	log.Info("seed admin created", "email", opts.Email, "org", opts.OrgID)
	return nil
}

func generatePassword() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
