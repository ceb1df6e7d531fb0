package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migrate creates the schema if it does not exist. DDL is kept portable
// between PostgreSQL and SQLite; the primary key clause is the only
// driver-specific piece.
func Migrate(db *sqlx.DB) error {
	pk := "BIGSERIAL PRIMARY KEY"
	if db.DriverName() == "sqlite3" {
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS users (
			id %s,
			username TEXT NOT NULL UNIQUE,
			hashed_password TEXT NOT NULL,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS documents (
			id %s,
			doc_id TEXT NOT NULL UNIQUE,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			source_type TEXT NOT NULL,
			lang TEXT NOT NULL DEFAULT 'en',
			downloaded_at TIMESTAMP NOT NULL,
			owner_id BIGINT NOT NULL DEFAULT 0
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS classification_results (
			id %s,
			document_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			result_json TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS guidelines (
			id %s,
			guideline_id TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			standard TEXT NOT NULL,
			control_text TEXT NOT NULL,
			source_url TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT ''
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS guideline_keywords (
			id %s,
			guideline_id BIGINT NOT NULL,
			keyword TEXT NOT NULL
		)`, pk),
		`CREATE INDEX IF NOT EXISTS idx_classification_results_document
			ON classification_results (document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_guideline_keywords_guideline
			ON guideline_keywords (guideline_id)`,
		`CREATE INDEX IF NOT EXISTS idx_guidelines_category ON guidelines (category)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate schema: %w", err)
		}
	}

	return nil
}
