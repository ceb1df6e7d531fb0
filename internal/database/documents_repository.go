package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cybermed/agent/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DocumentsRepository handles database operations for crawled documents.
type DocumentsRepository struct {
	db *sqlx.DB
}

// NewDocumentsRepository creates a new documents repository.
func NewDocumentsRepository(db *sqlx.DB) *DocumentsRepository {
	return &DocumentsRepository{db: db}
}

// Upsert inserts a document or refreshes an existing one keyed by doc_id.
func (r *DocumentsRepository) Upsert(ctx context.Context, doc *domain.Document) error {
	existing, err := r.GetByDocID(ctx, doc.DocID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if existing != nil {
		query := r.db.Rebind(`UPDATE documents
			SET title = ?, content = ?, downloaded_at = ?
			WHERE doc_id = ?`)
		if _, err := r.db.ExecContext(ctx, query, doc.Title, doc.Content, doc.DownloadedAt, doc.DocID); err != nil {
			return fmt.Errorf("update document: %w", err)
		}
		doc.ID = existing.ID
		return nil
	}

	query := r.db.Rebind(`INSERT INTO documents
		(doc_id, url, title, content, source_type, lang, downloaded_at, owner_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := r.db.QueryRowContext(ctx, query,
		doc.DocID, doc.URL, doc.Title, doc.Content,
		doc.SourceType, doc.Lang, doc.DownloadedAt, doc.OwnerID,
	).Scan(&doc.ID); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByDocID retrieves a document by its external identifier.
func (r *DocumentsRepository) GetByDocID(ctx context.Context, docID string) (*domain.Document, error) {
	var doc domain.Document
	query := r.db.Rebind(`SELECT * FROM documents WHERE doc_id = ?`)
	if err := r.db.GetContext(ctx, &doc, query, docID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document %s: %w", docID, err)
	}
	return &doc, nil
}

// GetManyByDocIDs resolves documents for the given external identifiers,
// preserving input order and collapsing duplicates. Unknown identifiers are
// skipped, mirroring the classify endpoint's lenient resolution.
func (r *DocumentsRepository) GetManyByDocIDs(ctx context.Context, docIDs []string) ([]*domain.Document, error) {
	seen := make(map[string]bool, len(docIDs))
	docs := make([]*domain.Document, 0, len(docIDs))

	for _, id := range docIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		doc, err := r.GetByDocID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// ListUnclassified returns all documents without any classification result,
// ordered by id for a stable processing order.
func (r *DocumentsRepository) ListUnclassified(ctx context.Context) ([]*domain.Document, error) {
	var docs []*domain.Document
	query := `SELECT * FROM documents d
		WHERE NOT EXISTS (
			SELECT 1 FROM classification_results cr WHERE cr.document_id = d.id
		)
		ORDER BY d.id`
	if err := r.db.SelectContext(ctx, &docs, query); err != nil {
		return nil, fmt.Errorf("list unclassified documents: %w", err)
	}
	return docs, nil
}

// List returns the document catalog with classification flags.
func (r *DocumentsRepository) List(ctx context.Context, offset, limit int) ([]*domain.DocumentInfo, error) {
	var infos []*domain.DocumentInfo
	query := r.db.Rebind(`SELECT d.id, d.doc_id, d.url, d.title, d.source_type, d.lang, d.downloaded_at,
			EXISTS (
				SELECT 1 FROM classification_results cr WHERE cr.document_id = d.id
			) AS is_classified
		FROM documents d
		ORDER BY d.id
		LIMIT ? OFFSET ?`)
	if err := r.db.SelectContext(ctx, &infos, query, limit, offset); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return infos, nil
}

// ListRecent returns the most recently downloaded documents.
func (r *DocumentsRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Document, error) {
	var docs []*domain.Document
	query := r.db.Rebind(`SELECT * FROM documents ORDER BY downloaded_at DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &docs, query, limit); err != nil {
		return nil, fmt.Errorf("list recent documents: %w", err)
	}
	return docs, nil
}

// ListAll returns every document in the catalog in insertion order.
func (r *DocumentsRepository) ListAll(ctx context.Context) ([]*domain.Document, error) {
	var docs []*domain.Document
	if err := r.db.SelectContext(ctx, &docs, `SELECT * FROM documents ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list all documents: %w", err)
	}
	return docs, nil
}

// Count returns the total number of documents.
func (r *DocumentsRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM documents`); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return count, nil
}

// Delete removes a document and its classification results.
func (r *DocumentsRepository) Delete(ctx context.Context, docID string) error {
	doc, err := r.GetByDocID(ctx, docID)
	if err != nil {
		return err
	}

	query := r.db.Rebind(`DELETE FROM classification_results WHERE document_id = ?`)
	if _, err := r.db.ExecContext(ctx, query, doc.ID); err != nil {
		return fmt.Errorf("delete classification results: %w", err)
	}

	query = r.db.Rebind(`DELETE FROM documents WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, query, doc.ID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	return nil
}
