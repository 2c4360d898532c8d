package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UserValues is the stored key values of one user.
type UserValues struct {
	ID        int64
	UserID    int64
	KeyValues string
	UpdatedAt time.Time
}

// UserValuesRepository stores at most one key values record per user.
type UserValuesRepository struct {
	db      *sql.DB
	dialect BackendType
	now     func() time.Time
}

// NewUserValuesRepository creates a repository on backend.
func NewUserValuesRepository(backend *Backend) *UserValuesRepository {
	return &UserValuesRepository{db: backend.DB, dialect: backend.Type, now: time.Now}
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (r *UserValuesRepository) rebind(query string) string {
	if r.dialect != BackendPostgreSQL {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// Save inserts the first record for userID. A second record for the same
// user fails with ErrAlreadyExists.
func (r *UserValuesRepository) Save(ctx context.Context, userID int64, keyValues string) error {
	_, err := r.db.ExecContext(ctx,
		r.rebind("INSERT INTO user_values (user_id, key_values, updated_at) VALUES (?, ?, ?)"),
		userID, keyValues, r.now().UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %d", ErrAlreadyExists, userID)
		}
		return fmt.Errorf("insert user values: %w", err)
	}
	return nil
}

// Update replaces the key values of userID's record in one transaction.
// It returns ErrNotFound when the user has no record.
func (r *UserValuesRepository) Update(ctx context.Context, userID int64, keyValues string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRowContext(ctx, r.rebind("SELECT id FROM user_values WHERE user_id = ?"), userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select user values: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		r.rebind("UPDATE user_values SET key_values = ?, updated_at = ? WHERE id = ?"),
		keyValues, r.now().UnixMilli(), id); err != nil {
		return fmt.Errorf("update user values: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns userID's record, or ErrNotFound.
func (r *UserValuesRepository) Get(ctx context.Context, userID int64) (*UserValues, error) {
	var (
		uv      UserValues
		updated int64
	)
	err := r.db.QueryRowContext(ctx,
		r.rebind("SELECT id, user_id, key_values, updated_at FROM user_values WHERE user_id = ?"), userID).
		Scan(&uv.ID, &uv.UserID, &uv.KeyValues, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user values: %w", err)
	}
	uv.UpdatedAt = time.UnixMilli(updated)
	return &uv, nil
}

// Count returns the number of stored records.
func (r *UserValuesRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_values").Scan(&n); err != nil {
		return 0, fmt.Errorf("count user values: %w", err)
	}
	return n, nil
}
