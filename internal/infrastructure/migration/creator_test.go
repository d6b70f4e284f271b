package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	mf, err := CreateMigration(dir, "Add Invoice Indexes", "Index invoices by account")
	require.NoError(t, err)

	assert.Len(t, mf.Version, 14)
	assert.Equal(t, "Add Invoice Indexes", mf.Name)
	assert.Equal(t, mf.Version+"_add_invoice_indexes.up.sql", filepath.Base(mf.UpPath))
	assert.Equal(t, mf.Version+"_add_invoice_indexes.down.sql", filepath.Base(mf.DownPath))

	up, err := os.ReadFile(mf.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "Add Invoice Indexes (up)")
	assert.Contains(t, string(up), "Index invoices by account")

	down, err := os.ReadFile(mf.DownPath)
	require.NoError(t, err)
	assert.Contains(t, string(down), "Add Invoice Indexes (down)")
}

func TestCreateMigrationMakesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")

	_, err := CreateMigration(dir, "init", "")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"add_users_table", "add_users_table"},
		{"Add Users Table", "add_users_table"},
		{"add--users__table", "add_users_table"},
		{"  spaced  out  ", "spaced_out"},
		{"drop col#2!", "drop_col2"},
		{"trailing_", "trailing"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeName(tt.in), "input %q", tt.in)
	}
}

func TestListMigrations(t *testing.T) {
	t.Run("missing directory is empty", func(t *testing.T) {
		migrations, err := ListMigrations(filepath.Join(t.TempDir(), "nope"))
		require.NoError(t, err)
		assert.Empty(t, migrations)
	})

	t.Run("pairs listed once in order", func(t *testing.T) {
		dir := t.TempDir()
		for _, name := range []string{
			"20260102000000_second.up.sql",
			"20260102000000_second.down.sql",
			"20260101000000_first.up.sql",
			"20260101000000_first.down.sql",
			"notes.txt",
		} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("-- sql"), 0644))
		}

		migrations, err := ListMigrations(dir)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"20260101000000_first",
			"20260102000000_second",
		}, migrations)
	})
}
