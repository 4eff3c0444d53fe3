// Package dbtest opens throwaway SQLite ledgers for tests.
package dbtest

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-ledger-api/internal/config"
	"github.com/wso2/consent-ledger-api/internal/database"
)

// NewLogger returns a logger that discards its output
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// NewSQLite creates a migrated ledger database in a temporary directory. The
// database is closed when the test finishes.
func NewSQLite(t testing.TB) *database.DB {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Type: config.DatabaseTypeSQLite,
		Path: filepath.Join(t.TempDir(), "ledger.db"),
	}

	db, err := database.Initialize(cfg, NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.ApplySchema(context.Background()))
	return db
}
