package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cybermed/agent/internal/domain"
)

// ClassificationsRepository handles database operations for classification
// results. It satisfies jobs.ResultSink.
type ClassificationsRepository struct {
	db *sqlx.DB
}

// NewClassificationsRepository creates a new classifications repository.
func NewClassificationsRepository(db *sqlx.DB) *ClassificationsRepository {
	return &ClassificationsRepository{db: db}
}

// SaveResult persists a classification result for a document.
func (r *ClassificationsRepository) SaveResult(ctx context.Context, result *domain.ClassificationResult) error {
	query := r.db.Rebind(`INSERT INTO classification_results
		(document_id, user_id, result_json, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)
	if err := r.db.QueryRowContext(ctx, query,
		result.DocumentID, result.UserID, result.ResultJSON, result.CreatedAt,
	).Scan(&result.ID); err != nil {
		return fmt.Errorf("insert classification result: %w", err)
	}
	return nil
}

// LatestForDocument returns the newest classification result for the given
// document, or ErrNotFound when the document has never been classified.
func (r *ClassificationsRepository) LatestForDocument(ctx context.Context, documentID int64) (*domain.ClassificationResult, error) {
	var result domain.ClassificationResult
	query := r.db.Rebind(`SELECT * FROM classification_results
		WHERE document_id = ?
		ORDER BY id DESC
		LIMIT 1`)
	if err := r.db.GetContext(ctx, &result, query, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest classification for document %d: %w", documentID, err)
	}
	return &result, nil
}

// ClassifiedDocument pairs a document's catalog fields with its newest
// classification result.
type ClassifiedDocument struct {
	DocID      string `db:"doc_id" json:"doc_id"`
	URL        string `db:"url" json:"url"`
	Title      string `db:"title" json:"title"`
	ResultJSON string `db:"result_json" json:"result"`
}

// ListLatest returns the newest classification per document.
func (r *ClassificationsRepository) ListLatest(ctx context.Context) ([]*ClassifiedDocument, error) {
	var rows []*ClassifiedDocument
	query := `SELECT d.doc_id, d.url, d.title, cr.result_json
		FROM classification_results cr
		JOIN (
			SELECT document_id, MAX(id) AS latest_id
			FROM classification_results
			GROUP BY document_id
		) latest ON latest.latest_id = cr.id
		JOIN documents d ON d.id = cr.document_id
		ORDER BY d.id`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list latest classifications: %w", err)
	}
	return rows, nil
}

// CountClassified returns the number of documents with at least one result.
func (r *ClassificationsRepository) CountClassified(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(DISTINCT document_id) FROM classification_results`
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count classified documents: %w", err)
	}
	return count, nil
}
