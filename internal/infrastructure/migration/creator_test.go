package migration

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add account labels", "add_account_labels"},
		{"Add-Account-Labels", "add_account_labels"},
		{"CREATE_SPOOL_INDEX", "create_spool_index"},
		{"add__audit__index", "add_audit_index"},
		{"backfill zones 2026", "backfill_zones_2026"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, sanitizeName(tt.input), "input %q", tt.input)
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "add account labels", "free-form labels on accounts")
	require.NoError(t, err)

	assert.Len(t, mf.Version, 14)
	assert.Equal(t, "add account labels", mf.Name)
	assert.True(t, strings.HasSuffix(mf.UpPath, "_add_account_labels.up.sql"))
	assert.True(t, strings.HasSuffix(mf.DownPath, "_add_account_labels.down.sql"))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Migration: add_account_labels")
	assert.Contains(t, string(up), "-- Description: free-form labels on accounts")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "-- Description: revert free-form labels on accounts")
}

func TestCreateMigration_HeaderMatchesCheckedInStyle(t *testing.T) {
	// generated files must look like the migrations shipped with the repo:
	// a Migration line, a Description line, then SQL
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "create spool index", "index pending spool entries by zone")
	require.NoError(t, err)

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	lines := strings.Split(string(up), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "-- Migration: create_spool_index", lines[0])
	assert.Equal(t, "-- Description: index pending spool entries by zone", lines[1])
}

func TestCreateMigration_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	mf, err := CreateMigration(dir, "create zones", "zones and operator controls")
	require.NoError(t, err)

	assert.FileExists(t, mf.UpPath)
	assert.FileExists(t, mf.DownPath)
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{
		"20260115000001_create_zones.up.sql",
		"20260115000001_create_zones.down.sql",
		"20260115000002_create_accounts.up.sql",
		"20260115000002_create_accounts.down.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- sql\n"), 0644))
	}

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"20260115000001_create_zones",
		"20260115000002_create_accounts",
	}, migrations)
}

func TestListMigrations_EmptyDirectory(t *testing.T) {
	migrations, err := ListMigrations(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrations_NonexistentDirectory(t *testing.T) {
	migrations, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, migrations)
}

func TestListMigrations_IgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.sql"), []byte("-- sql"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "archive"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260115000003_create_audit.up.sql"), []byte("-- sql"), 0644))

	migrations, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20260115000003_create_audit"}, migrations)
}
