package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ewhall/parley/internal/repository"
)

// UserStore persists registered users in PostgreSQL.
type UserStore struct {
	db *sql.DB
}

// NewUserStore creates a UserStore.
func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

// Load returns every stored user.
func (s *UserStore) Load(ctx context.Context) ([]repository.UserRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, password_hash, is_admin FROM users`)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()

	var users []repository.UserRecord
	for rows.Next() {
		var u repository.UserRecord
		if err := rows.Scan(&u.Username, &u.PasswordHash, &u.IsAdmin); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return users, nil
}

// Save creates or replaces a user record.
func (s *UserStore) Save(ctx context.Context, u repository.UserRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, is_admin)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (username)
		 DO UPDATE SET password_hash = EXCLUDED.password_hash, is_admin = EXCLUDED.is_admin, updated_at = now()`,
		u.Username, u.PasswordHash, u.IsAdmin,
	)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// Delete removes a user record.
func (s *UserStore) Delete(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
