// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"testing"

	"crm-service/internal/model"
	"crm-service/pkg/database"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a fresh in-memory SQLite database with the full schema and
// installs it as the process-wide handle for the duration of the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(sqlite.Open(":memory:"), logger.Silent)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, model.Migrate(db))

	database.SetDB(db)
	t.Cleanup(func() {
		database.SetDB(nil)
		_ = sqlDB.Close()
	})
	return db
}
