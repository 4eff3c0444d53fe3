package database

import "github.com/wso2/consent-ledger-api/internal/config"

// DBQuery represents a database query with an identifier and the SQL text.
// Query holds the MySQL syntax; SQLiteQuery is used instead when set and the
// connection is sqlite.
type DBQuery struct {
	// ID is the unique identifier for the query.
	ID string
	// Query is the default query (MySQL syntax).
	Query string
	// SQLiteQuery is the SQLite-specific query variant.
	SQLiteQuery string
}

// GetQuery returns the appropriate query for the specified database type.
// If a database-specific query is not available, it falls back to the default query.
func (d DBQuery) GetQuery(dbType string) string {
	if dbType == config.DatabaseTypeSQLite && d.SQLiteQuery != "" {
		return d.SQLiteQuery
	}
	return d.Query
}
