package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashwinyue/persona-chat/internal/config"
	"github.com/ashwinyue/persona-chat/internal/model"
)

func TestNewSQLite(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}}

	db, err := New(cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping(context.Background()))
	for _, m := range model.AllModels {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New(&config.Config{Database: config.DatabaseConfig{Driver: "oracle"}})
	assert.ErrorContains(t, err, "unsupported database driver")
}
