// Package users manages drive accounts: profiles, roles, storage limits
// and the account deletion cascade.
package users

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/model"
)

// Store is the PostgreSQL-backed user store.
type Store struct {
	db             *sql.DB
	defaultLimitMB float64
}

// NewStore creates a new user store. defaultLimitMB is assigned to new
// accounts.
func NewStore(db *sql.DB, defaultLimitMB float64) *Store {
	if defaultLimitMB <= 0 {
		defaultLimitMB = model.DefaultStorageLimitMB
	}
	return &Store{db: db, defaultLimitMB: defaultLimitMB}
}

const userCols = `id, email, role, storage_limit_mb, created_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Role, &u.StorageLimitMB, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create registers a new account with the default storage limit.
func (s *Store) Create(ctx context.Context, email, password string, role model.Role) (*model.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_user", time.Since(start)) }()

	if email == "" {
		return nil, fmt.Errorf("email: %w", model.ErrInvalidName)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, password_hash, role, storage_limit_mb)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userCols,
		uuid.NewString(), email, string(hash), role, s.defaultLimitMB)
	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	logging.Info("created user",
		zap.String("id", user.ID),
		zap.String("email", user.Email),
		zap.String("role", string(user.Role)))
	return user, nil
}

// GetByID returns a user by id.
func (s *Store) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetByEmail returns a user by email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", email, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

// Credentials returns the id and password hash for a login check.
func (s *Store) Credentials(ctx context.Context, email string) (id, passwordHash string, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT id, password_hash FROM users WHERE email = $1`, email).Scan(&id, &passwordHash)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("user %s: %w", email, model.ErrNotFound)
	}
	if err != nil {
		return "", "", fmt.Errorf("get credentials: %w", err)
	}
	return id, passwordHash, nil
}

// List returns all users, newest first.
func (s *Store) List(ctx context.Context) ([]model.User, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_users", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	list := []model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		list = append(list, *user)
	}
	return list, rows.Err()
}

// UpdateRole changes a user's role.
func (s *Store) UpdateRole(ctx context.Context, userID string, role model.Role) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET role = $1 WHERE id = $2`, role, userID)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	return nil
}

// UpdateEmail changes a user's email address.
func (s *Store) UpdateEmail(ctx context.Context, userID, email string) error {
	if email == "" {
		return fmt.Errorf("email: %w", model.ErrInvalidName)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = $1 WHERE id = $2`, email, userID)
	if err != nil {
		return fmt.Errorf("update email: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}
	return nil
}

// Delete removes an account and cascades through everything it owns:
// share grants, backups, files and folders. Returns the blob references
// of the deleted files so the caller can release them from the blob
// store after the transaction commits.
func (s *Store) Delete(ctx context.Context, userID string) ([]string, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_user", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM share_grants WHERE granted_by = $1 OR granted_to = $1
		 OR (item_type = 'file' AND item_id IN (SELECT id FROM files WHERE owner_id = $1))
		 OR (item_type = 'folder' AND item_id IN (SELECT id FROM folders WHERE owner_id = $1))`,
		userID); err != nil {
		return nil, fmt.Errorf("delete grants: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM backups WHERE owner_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("delete backups: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`DELETE FROM files WHERE owner_id = $1 RETURNING blob_ref`, userID)
	if err != nil {
		return nil, fmt.Errorf("delete files: %w", err)
	}
	var blobRefs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan blob ref: %w", err)
		}
		blobRefs = append(blobRefs, ref)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("blob ref rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM folders WHERE owner_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("delete folders: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("user %s: %w", userID, model.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logging.Info("deleted user account",
		zap.String("user", userID),
		zap.Int("files", len(blobRefs)))
	return blobRefs, nil
}

// SystemStats holds system-wide totals for the admin surface.
type SystemStats struct {
	TotalUsers     int     `json:"total_users"`
	TotalFiles     int     `json:"total_files"`
	TotalFolders   int     `json:"total_folders"`
	TotalStorageMB float64 `json:"total_storage_mb"`
}

// Stats returns system-wide totals. Storage counts non-trashed files,
// matching quota accounting.
func (s *Store) Stats(ctx context.Context) (*SystemStats, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("system_stats", time.Since(start)) }()

	var st SystemStats
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM users),
		   (SELECT COUNT(*) FROM files),
		   (SELECT COUNT(*) FROM folders),
		   (SELECT COALESCE(SUM(size_mb), 0) FROM files WHERE trashed = FALSE)`).
		Scan(&st.TotalUsers, &st.TotalFiles, &st.TotalFolders, &st.TotalStorageMB)
	if err != nil {
		return nil, fmt.Errorf("system stats: %w", err)
	}
	return &st, nil
}
