package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/cybermed/agent/internal/domain"
)

// UsersRepository handles database operations for user accounts.
type UsersRepository struct {
	db *sqlx.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sqlx.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create inserts a new user.
func (r *UsersRepository) Create(ctx context.Context, user *domain.User) error {
	query := r.db.Rebind(`INSERT INTO users
		(username, hashed_password, is_admin, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id`)
	if err := r.db.QueryRowContext(ctx, query,
		user.Username, user.HashedPassword, user.IsAdmin, user.CreatedAt,
	).Scan(&user.ID); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByUsername retrieves a user by username.
func (r *UsersRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	query := r.db.Rebind(`SELECT * FROM users WHERE username = ?`)
	if err := r.db.GetContext(ctx, &user, query, username); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", username, err)
	}
	return &user, nil
}

// GetByID retrieves a user by primary key.
func (r *UsersRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	query := r.db.Rebind(`SELECT * FROM users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return &user, nil
}

// List returns all users ordered by id.
func (r *UsersRepository) List(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	if err := r.db.SelectContext(ctx, &users, `SELECT * FROM users ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// SetAdmin toggles a user's admin flag.
func (r *UsersRepository) SetAdmin(ctx context.Context, id int64, isAdmin bool) error {
	query := r.db.Rebind(`UPDATE users SET is_admin = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, isAdmin, id)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
