package database

import (
	"path/filepath"
	"testing"

	"github.com/mypocket/mypocket/pkg/mypocket/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLiteAndMigrate(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "test.db")

	db, err := Connect(config.DatabaseConfig{Type: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer Close(db)

	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable("links"))
	assert.True(t, db.Migrator().HasTable("link_tags"))
}

func TestConnectUnsupported(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Type: "oracle", DSN: "x"})
	assert.Error(t, err)
}
