package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/cybermed/agent/internal/domain"
)

// GuidelinesRepository handles database operations for security guidelines.
type GuidelinesRepository struct {
	db *sqlx.DB
}

// NewGuidelinesRepository creates a new guidelines repository.
func NewGuidelinesRepository(db *sqlx.DB) *GuidelinesRepository {
	return &GuidelinesRepository{db: db}
}

// Create inserts a guideline together with its keywords.
func (r *GuidelinesRepository) Create(ctx context.Context, g *domain.Guideline) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// RETURNING works on both drivers; lib/pq does not support LastInsertId.
	query := tx.Rebind(`INSERT INTO guidelines
		(guideline_id, category, standard, control_text, source_url, region)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := tx.QueryRowContext(ctx, query,
		g.GuidelineID, g.Category, g.Standard, g.ControlText, g.SourceURL, g.Region,
	).Scan(&g.ID); err != nil {
		return fmt.Errorf("insert guideline: %w", err)
	}

	kwQuery := tx.Rebind(`INSERT INTO guideline_keywords (guideline_id, keyword) VALUES (?, ?)`)
	for _, kw := range g.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, kwQuery, g.ID, kw); err != nil {
			return fmt.Errorf("insert guideline keyword: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// List returns guidelines matching the filter, keywords attached.
func (r *GuidelinesRepository) List(ctx context.Context, filter domain.GuidelineFilter) ([]*domain.Guideline, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Standard != "" {
		conds = append(conds, "standard = ?")
		args = append(args, filter.Standard)
	}
	if filter.Region != "" {
		conds = append(conds, "region = ?")
		args = append(args, filter.Region)
	}
	if filter.Query != "" {
		conds = append(conds, "control_text LIKE ?")
		args = append(args, "%"+filter.Query+"%")
	}

	query := `SELECT * FROM guidelines`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	var guidelines []*domain.Guideline
	if err := r.db.SelectContext(ctx, &guidelines, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list guidelines: %w", err)
	}

	for _, g := range guidelines {
		keywords, err := r.keywordsFor(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		g.Keywords = keywords
	}
	return guidelines, nil
}

func (r *GuidelinesRepository) keywordsFor(ctx context.Context, guidelineID int64) ([]string, error) {
	var keywords []string
	query := r.db.Rebind(`SELECT keyword FROM guideline_keywords WHERE guideline_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &keywords, query, guidelineID); err != nil {
		return nil, fmt.Errorf("get guideline keywords: %w", err)
	}
	return keywords, nil
}

// Categories returns the distinct guideline categories.
func (r *GuidelinesRepository) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "category")
}

// Standards returns the distinct guideline standards.
func (r *GuidelinesRepository) Standards(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "standard")
}

// Regions returns the distinct guideline regions.
func (r *GuidelinesRepository) Regions(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "region")
}

func (r *GuidelinesRepository) distinct(ctx context.Context, column string) ([]string, error) {
	var values []string
	query := fmt.Sprintf(`SELECT DISTINCT %s FROM guidelines WHERE %s != '' ORDER BY %s`, column, column, column)
	if err := r.db.SelectContext(ctx, &values, query); err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	return values, nil
}

// AllKeywords returns every distinct keyword across all guidelines. The
// keyword matcher builds its dictionary from this set.
func (r *GuidelinesRepository) AllKeywords(ctx context.Context) ([]string, error) {
	var keywords []string
	query := `SELECT DISTINCT keyword FROM guideline_keywords ORDER BY keyword`
	if err := r.db.SelectContext(ctx, &keywords, query); err != nil {
		return nil, fmt.Errorf("all keywords: %w", err)
	}
	return keywords, nil
}
