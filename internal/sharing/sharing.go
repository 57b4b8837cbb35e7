// Package sharing manages per-user grants on individual items. Grants
// never propagate through the folder tree; each grant covers exactly one
// file or folder.
package sharing

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/model"
)

// Store manages share grants.
type Store struct {
	db *sql.DB
}

// NewStore creates a new sharing store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const grantCols = `id, item_type, item_id, granted_by, granted_to, permission, created_at`

func scanGrant(row interface{ Scan(...interface{}) error }) (*model.ShareGrant, error) {
	var g model.ShareGrant
	if err := row.Scan(&g.ID, &g.ItemType, &g.ItemID, &g.GrantedBy, &g.GrantedTo,
		&g.Permission, &g.CreatedAt); err != nil {
		return nil, err
	}
	return &g, nil
}

// Grant gives granteeID the permission on an item. The caller must own
// the item (admins excepted); the grantee must exist. Granting the same
// item to the same user twice just adds a second, harmless row.
func (s *Store) Grant(ctx context.Context, caller model.Caller, itemType model.ItemType, itemID, granteeID string, perm model.Permission) (*model.ShareGrant, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("grant", time.Since(start)) }()

	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, granteeID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check grantee: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("grantee %s: %w", granteeID, model.ErrNotFound)
	}

	table := "files"
	if itemType == model.ItemFolder {
		table = "folders"
	}
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM `+table+` WHERE id = $1`, itemID).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%s %s: %w", itemType, itemID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item owner: %w", err)
	}
	if !caller.CanActOn(ownerID) {
		return nil, fmt.Errorf("grant on %s owned by %s: %w", itemID, ownerID, model.ErrForbidden)
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO share_grants (id, item_type, item_id, granted_by, granted_to, permission)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+grantCols,
		uuid.NewString(), itemType, itemID, caller.ID, granteeID, perm)
	grant, err := scanGrant(row)
	if err != nil {
		return nil, fmt.Errorf("insert grant: %w", err)
	}

	logging.Debug("granted access",
		zap.String("item", itemID),
		zap.String("grantee", granteeID),
		zap.String("permission", string(perm)))
	return grant, nil
}

// Revoke removes a grant by id. Only the grantor or an admin may revoke.
func (s *Store) Revoke(ctx context.Context, caller model.Caller, grantID string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("revoke", time.Since(start)) }()

	var grantedBy string
	err := s.db.QueryRowContext(ctx,
		`SELECT granted_by FROM share_grants WHERE id = $1`, grantID).Scan(&grantedBy)
	if err == sql.ErrNoRows {
		return fmt.Errorf("grant %s: %w", grantID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("get grant: %w", err)
	}
	if !caller.CanActOn(grantedBy) {
		return fmt.Errorf("revoke grant by %s: %w", grantedBy, model.ErrForbidden)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM share_grants WHERE id = $1`, grantID); err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	return nil
}

// HasGrant reports whether userID holds any grant on the item.
func (s *Store) HasGrant(ctx context.Context, userID string, itemType model.ItemType, itemID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM share_grants
		   WHERE granted_to = $1 AND item_type = $2 AND item_id = $3)`,
		userID, itemType, itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check grant: %w", err)
	}
	return exists, nil
}

// ListGrants returns all grants on an item.
func (s *Store) ListGrants(ctx context.Context, itemType model.ItemType, itemID string) ([]model.ShareGrant, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_grants", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+grantCols+` FROM share_grants
		 WHERE item_type = $1 AND item_id = $2
		 ORDER BY created_at DESC`, itemType, itemID)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	grants := []model.ShareGrant{}
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, *grant)
	}
	return grants, rows.Err()
}

// SharedFolders returns the non-trashed folders other users granted to
// userID.
func (s *Store) SharedFolders(ctx context.Context, userID string) ([]model.Folder, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("shared_folders", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT f.id, f.owner_id, f.parent_id, f.name, f.color, f.is_public,
		        f.starred, f.trashed, f.created_at, f.updated_at
		 FROM folders f
		 JOIN share_grants g ON g.item_type = 'folder' AND g.item_id = f.id
		 WHERE g.granted_to = $1 AND f.trashed = FALSE
		 ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("shared folders: %w", err)
	}
	defer rows.Close()

	folders := []model.Folder{}
	for rows.Next() {
		var f model.Folder
		var parentID, color sql.NullString
		if err := rows.Scan(&f.ID, &f.OwnerID, &parentID, &f.Name, &color,
			&f.IsPublic, &f.Starred, &f.Trashed, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		if parentID.Valid {
			f.ParentID = &parentID.String
		}
		if color.Valid {
			f.Color = &color.String
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// SharedFiles returns the non-trashed files other users granted to
// userID.
func (s *Store) SharedFiles(ctx context.Context, userID string) ([]model.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("shared_files", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT f.id, f.owner_id, f.folder_id, f.name, f.size_mb, f.mime_type,
		        f.blob_ref, f.is_public, f.starred, f.trashed, f.last_accessed_at,
		        f.created_at, f.updated_at
		 FROM files f
		 JOIN share_grants g ON g.item_type = 'file' AND g.item_id = f.id
		 WHERE g.granted_to = $1 AND f.trashed = FALSE
		 ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("shared files: %w", err)
	}
	defer rows.Close()

	files := []model.File{}
	for rows.Next() {
		var f model.File
		var folderID sql.NullString
		if err := rows.Scan(&f.ID, &f.OwnerID, &folderID, &f.Name, &f.SizeMB, &f.MimeType,
			&f.BlobRef, &f.IsPublic, &f.Starred, &f.Trashed,
			&f.LastAccessedAt, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		if folderID.Valid {
			f.FolderID = &folderID.String
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
