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
		{"add contacts table", "add_contacts_table"},
		{"Add-Contacts-Table", "add_contacts_table"},
		{"ADD_CONTACTS_TABLE", "add_contacts_table"},
		{"add__contacts__table", "add_contacts_table"},
		{"Add Contacts 123", "add_contacts_123"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"trailing_", "trailing"},
		{"", "migration"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	tmpDir := t.TempDir()

	mf, err := CreateMigration(tmpDir, "add contacts table")
	require.NoError(t, err)
	require.NotNil(t, mf)

	// Version format is YYYYMMDDHHMMSS
	assert.Len(t, mf.Version, 14)
	assert.True(t, strings.HasSuffix(mf.UpPath, ".up.sql"))
	assert.True(t, strings.HasSuffix(mf.DownPath, ".down.sql"))

	upBase := strings.TrimSuffix(filepath.Base(mf.UpPath), ".up.sql")
	downBase := strings.TrimSuffix(filepath.Base(mf.DownPath), ".down.sql")
	assert.Equal(t, upBase, downBase)

	upContent, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(upContent), "add contacts table")

	downContent, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(downContent), "rollback")
}

func TestListMigrations(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{
		"000002_add_batches.up.sql",
		"000002_add_batches.down.sql",
		"000001_create_tenants.up.sql",
		"000001_create_tenants.down.sql",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), []byte("--"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "tenant"), 0o755))

	names, err := ListMigrations(tmpDir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_create_tenants.up.sql",
		"000002_add_batches.up.sql",
	}, names)
}

func TestMigrationPaths(t *testing.T) {
	assert.Equal(t, filepath.Join("migrations", "landlord"), LandlordPath("migrations"))
	assert.Equal(t, filepath.Join("migrations", "tenant"), TenantPath("migrations"))
}
