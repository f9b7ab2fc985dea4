package seed_test

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voltio/gridbase/internal/db"
	"github.com/voltio/gridbase/internal/model"
	"github.com/voltio/gridbase/internal/seed"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newNullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.NewSQLite(filepath.Join(t.TempDir(), "seed_test.db"))
	require.NoError(t, err)
	return gdb
}

func TestEnsureAdmin_CreatesAdminWithOrg(t *testing.T) {
	gdb := newTestDB(t)

	err := seed.EnsureAdmin(context.Background(), gdb, seed.AdminOptions{
		Email:    "admin@example.com",
		Password: "first-boot-password",
		OrgID:    "org_demo",
	}, newNullLogger())
	require.NoError(t, err)

	var u model.User
	require.NoError(t, gdb.Where("email = ?", "admin@example.com").First(&u).Error)
	assert.Equal(t, model.StringSlice{"Admin"}, u.Roles)
	require.NotNil(t, u.OrganizationID)
	assert.Equal(t, "org_demo", *u.OrganizationID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("first-boot-password")))

	var org model.Organization
	require.NoError(t, gdb.Where("id = ?", "org_demo").First(&org).Error)
}

func TestEnsureAdmin_NoOrgBinding(t *testing.T) {
	gdb := newTestDB(t)

	err := seed.EnsureAdmin(context.Background(), gdb, seed.AdminOptions{
		Email:    "admin@example.com",
		Password: "pw",
	}, newNullLogger())
	require.NoError(t, err)

	var u model.User
	require.NoError(t, gdb.Where("email = ?", "admin@example.com").First(&u).Error)
	assert.Nil(t, u.OrganizationID)
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	gdb := newTestDB(t)
	log := newNullLogger()

	opts := seed.AdminOptions{Email: "admin@example.com", Password: "pw", OrgID: "org_demo"}
	require.NoError(t, seed.EnsureAdmin(context.Background(), gdb, opts, log))
	require.NoError(t, seed.EnsureAdmin(context.Background(), gdb, opts, log))

	var count int64
	require.NoError(t, gdb.Model(&model.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
