package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPendingMigrationsSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0002_b.up.sql", "0001_a.up.sql", "0001_a.down.sql", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "0003_dir.up.sql"), 0o755))

	versions, err := PendingMigrations(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"0001_a", "0002_b"}, versions)
}

func TestPendingMigrationsShippedSchema(t *testing.T) {
	versions, err := PendingMigrations(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.Contains(t, versions, "0001_escrow")
}
