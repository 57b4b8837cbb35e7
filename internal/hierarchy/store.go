// Package hierarchy owns the folder/file tree: creation, lifecycle
// (active/trashed), visibility, starring, listing, search and the bulk
// export/replace primitives the backup manager builds on.
package hierarchy

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/model"
)

// Store is the PostgreSQL-backed hierarchy store.
type Store struct {
	db *sql.DB
}

// NewStore creates a new hierarchy store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying database handle for use by other stores.
func (s *Store) DB() *sql.DB {
	return s.db
}

const folderCols = `id, owner_id, parent_id, name, color, is_public, starred, trashed, created_at, updated_at`
const fileCols = `id, owner_id, folder_id, name, size_mb, mime_type, blob_ref, is_public, starred, trashed, last_accessed_at, created_at, updated_at`

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func scanFolder(row interface{ Scan(...interface{}) error }) (*model.Folder, error) {
	var f model.Folder
	var parentID, color sql.NullString
	if err := row.Scan(&f.ID, &f.OwnerID, &parentID, &f.Name, &color,
		&f.IsPublic, &f.Starred, &f.Trashed, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		f.ParentID = &parentID.String
	}
	if color.Valid {
		f.Color = &color.String
	}
	return &f, nil
}

func scanFile(row interface{ Scan(...interface{}) error }) (*model.File, error) {
	var f model.File
	var folderID sql.NullString
	if err := row.Scan(&f.ID, &f.OwnerID, &folderID, &f.Name, &f.SizeMB, &f.MimeType,
		&f.BlobRef, &f.IsPublic, &f.Starred, &f.Trashed,
		&f.LastAccessedAt, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	if folderID.Valid {
		f.FolderID = &folderID.String
	}
	return &f, nil
}

// validateParent checks that parentID (if set) references an existing,
// non-trashed folder owned by ownerID.
func validateParent(ctx context.Context, q queryer, ownerID string, parentID *string) error {
	if parentID == nil {
		return nil
	}
	var trashed bool
	err := q.QueryRowContext(ctx,
		`SELECT trashed FROM folders WHERE id = $1 AND owner_id = $2`,
		*parentID, ownerID).Scan(&trashed)
	if err == sql.ErrNoRows {
		return fmt.Errorf("parent folder %s: %w", *parentID, model.ErrInvalidParent)
	}
	if err != nil {
		return fmt.Errorf("check parent: %w", err)
	}
	if trashed {
		return fmt.Errorf("parent folder %s is trashed: %w", *parentID, model.ErrInvalidParent)
	}
	return nil
}

// CreateFolder creates a folder under parentID (nil = root).
func (s *Store) CreateFolder(ctx context.Context, caller model.Caller, name string, parentID *string) (*model.Folder, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_folder", time.Since(start)) }()

	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("folder name: %w", model.ErrInvalidName)
	}
	if err := validateParent(ctx, s.db, caller.ID, parentID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO folders (id, owner_id, parent_id, name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+folderCols,
		uuid.NewString(), caller.ID, parentID, name)
	folder, err := scanFolder(row)
	if err != nil {
		return nil, fmt.Errorf("insert folder: %w", err)
	}

	logging.Debug("created folder",
		zap.String("id", folder.ID),
		zap.String("owner", folder.OwnerID),
		zap.String("name", folder.Name))
	return folder, nil
}

// CreateFileParams describe a new file's metadata. The blob must already
// be written under BlobRef before this is called; on error the caller
// issues a compensating blob delete.
type CreateFileParams struct {
	Name     string
	SizeMB   float64
	MimeType string
	BlobRef  string
	FolderID *string
}

// CreateFile inserts file metadata after checking the owner's quota.
// The owner's profile row is locked for the duration of the transaction,
// which serializes concurrent uploads against the same quota: two racing
// uploads cannot both pass the admission check and jointly exceed the
// limit.
func (s *Store) CreateFile(ctx context.Context, caller model.Caller, p CreateFileParams) (*model.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_file", time.Since(start)) }()

	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("file name: %w", model.ErrInvalidName)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var limitMB float64
	err = tx.QueryRowContext(ctx,
		`SELECT storage_limit_mb FROM users WHERE id = $1 FOR UPDATE`,
		caller.ID).Scan(&limitMB)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("owner %s: %w", caller.ID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock owner: %w", err)
	}

	if err := validateParent(ctx, tx, caller.ID, p.FolderID); err != nil {
		return nil, err
	}

	var usedMB float64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size_mb), 0) FROM files WHERE owner_id = $1 AND trashed = FALSE`,
		caller.ID).Scan(&usedMB)
	if err != nil {
		return nil, fmt.Errorf("compute usage: %w", err)
	}

	if usedMB+p.SizeMB > limitMB {
		metrics.RecordQuotaCheck(false)
		return nil, fmt.Errorf("used %.2fMB + %.2fMB > limit %.2fMB: %w",
			usedMB, p.SizeMB, limitMB, model.ErrQuotaExceeded)
	}
	metrics.RecordQuotaCheck(true)

	row := tx.QueryRowContext(ctx,
		`INSERT INTO files (id, owner_id, folder_id, name, size_mb, mime_type, blob_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+fileCols,
		uuid.NewString(), caller.ID, p.FolderID, p.Name, p.SizeMB, p.MimeType, p.BlobRef)
	file, err := scanFile(row)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logging.Debug("created file",
		zap.String("id", file.ID),
		zap.String("owner", file.OwnerID),
		zap.String("name", file.Name),
		zap.Float64("size_mb", file.SizeMB))
	return file, nil
}

// GetFolder returns a folder by id.
func (s *Store) GetFolder(ctx context.Context, id string) (*model.Folder, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_folder", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+folderCols+` FROM folders WHERE id = $1`, id)
	folder, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("folder %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get folder: %w", err)
	}
	return folder, nil
}

// GetFile returns a file by id.
func (s *Store) GetFile(ctx context.Context, id string) (*model.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_file", time.Since(start)) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileCols+` FROM files WHERE id = $1`, id)
	file, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("file %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}
	return file, nil
}

// itemOwner returns the owner of an item, or ErrNotFound.
func (s *Store) itemOwner(ctx context.Context, t model.ItemType, id string) (string, error) {
	table := "files"
	if t == model.ItemFolder {
		table = "folders"
	}
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM `+table+` WHERE id = $1`, id).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%s %s: %w", t, id, model.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get owner: %w", err)
	}
	return ownerID, nil
}

// authorize verifies the caller owns the item (or is an admin).
func (s *Store) authorize(ctx context.Context, caller model.Caller, t model.ItemType, id string) error {
	ownerID, err := s.itemOwner(ctx, t, id)
	if err != nil {
		return err
	}
	if !caller.CanActOn(ownerID) {
		return fmt.Errorf("%s %s owned by %s: %w", t, id, ownerID, model.ErrForbidden)
	}
	return nil
}

// Rename changes an item's name.
func (s *Store) Rename(ctx context.Context, caller model.Caller, t model.ItemType, id, newName string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("rename", time.Since(start)) }()

	if strings.TrimSpace(newName) == "" {
		return fmt.Errorf("new name: %w", model.ErrInvalidName)
	}
	if err := s.authorize(ctx, caller, t, id); err != nil {
		return err
	}

	table := "files"
	if t == model.ItemFolder {
		table = "folders"
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET name = $1, updated_at = NOW() WHERE id = $2`, newName, id)
	if err != nil {
		return fmt.Errorf("rename %s: %w", t, err)
	}
	return nil
}

// Move re-parents an item. For folders the destination is validated
// against the cycle rule: a folder may not move into its own subtree.
// The check and the update run in one transaction holding the owner's
// profile-row lock, the same serialization point CreateFile and
// ReplaceAll use, so two concurrent moves on one user's tree cannot
// both pass the cycle check against a stale parent chain and commit a
// cycle together.
func (s *Store) Move(ctx context.Context, caller model.Caller, t model.ItemType, id string, newParentID *string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("move", time.Since(start)) }()

	ownerID, err := s.itemOwner(ctx, t, id)
	if err != nil {
		return err
	}
	if !caller.CanActOn(ownerID) {
		return fmt.Errorf("%s %s owned by %s: %w", t, id, ownerID, model.ErrForbidden)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var locked string
	if err := tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE id = $1 FOR UPDATE`, ownerID).Scan(&locked); err != nil {
		return fmt.Errorf("lock owner: %w", err)
	}

	if err := validateParent(ctx, tx, ownerID, newParentID); err != nil {
		return err
	}

	switch {
	case t == model.ItemFolder && newParentID != nil:
		if err := checkNoCycle(ctx, tx, id, *newParentID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE folders SET parent_id = $1, updated_at = NOW() WHERE id = $2`, newParentID, id)
	case t == model.ItemFolder:
		_, err = tx.ExecContext(ctx,
			`UPDATE folders SET parent_id = NULL, updated_at = NOW() WHERE id = $1`, id)
	default:
		_, err = tx.ExecContext(ctx,
			`UPDATE files SET folder_id = $1, updated_at = NOW() WHERE id = $2`, newParentID, id)
	}
	if err != nil {
		return fmt.Errorf("move %s: %w", t, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// checkNoCycle walks up from newParentID; if it reaches folderID the
// move would create a cycle. A revisited ancestor means the stored tree
// is already cyclic.
func checkNoCycle(ctx context.Context, q queryer, folderID, newParentID string) error {
	if folderID == newParentID {
		return fmt.Errorf("folder %s into itself: %w", folderID, model.ErrInvalidParent)
	}
	crumbs, err := walkToRoot(func(id string) (*parentRef, error) {
		return fetchParentRef(ctx, q, id)
	}, newParentID)
	if err != nil {
		return err
	}
	for _, c := range crumbs {
		if c.ID == folderID {
			return fmt.Errorf("folder %s into its own subtree: %w", folderID, model.ErrInvalidParent)
		}
	}
	return nil
}

// SetStarred flips an item's starred flag.
func (s *Store) SetStarred(ctx context.Context, caller model.Caller, t model.ItemType, id string, starred bool) error {
	return s.setFlag(ctx, caller, t, id, "starred", starred)
}

// SetPublic flips an item's public visibility. Visibility is not
// propagated to children: a private file inside a public folder stays
// private until toggled itself.
func (s *Store) SetPublic(ctx context.Context, caller model.Caller, t model.ItemType, id string, isPublic bool) error {
	return s.setFlag(ctx, caller, t, id, "is_public", isPublic)
}

func (s *Store) setFlag(ctx context.Context, caller model.Caller, t model.ItemType, id, column string, value bool) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_"+column, time.Since(start)) }()

	if err := s.authorize(ctx, caller, t, id); err != nil {
		return err
	}
	table := "files"
	if t == model.ItemFolder {
		table = "folders"
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET `+column+` = $1, updated_at = NOW() WHERE id = $2`, value, id)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	return nil
}

// SetFolderColor sets or clears a folder's display color.
func (s *Store) SetFolderColor(ctx context.Context, caller model.Caller, id string, color *string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_folder_color", time.Since(start)) }()

	if err := s.authorize(ctx, caller, model.ItemFolder, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE folders SET color = $1, updated_at = NOW() WHERE id = $2`, color, id)
	if err != nil {
		return fmt.Errorf("set folder color: %w", err)
	}
	return nil
}

// MoveToTrash soft-deletes an item. Idempotent.
func (s *Store) MoveToTrash(ctx context.Context, caller model.Caller, t model.ItemType, id string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("move_to_trash", time.Since(start)) }()

	if err := s.authorize(ctx, caller, t, id); err != nil {
		return err
	}
	table := "files"
	if t == model.ItemFolder {
		table = "folders"
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET trashed = TRUE, updated_at = NOW() WHERE id = $1 AND trashed = FALSE`, id)
	if err != nil {
		return fmt.Errorf("move to trash: %w", err)
	}
	return nil
}

// RestoreFromTrash clears an item's trashed flag. If the former parent
// is itself trashed or gone, the item is re-parented to root rather than
// restored into a dangling location. Idempotent.
func (s *Store) RestoreFromTrash(ctx context.Context, caller model.Caller, t model.ItemType, id string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("restore_from_trash", time.Since(start)) }()

	if err := s.authorize(ctx, caller, t, id); err != nil {
		return err
	}

	if t == model.ItemFolder {
		folder, err := s.GetFolder(ctx, id)
		if err != nil {
			return err
		}
		parentID := folder.ParentID
		if parentID != nil && !s.parentUsable(ctx, folder.OwnerID, *parentID) {
			parentID = nil
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE folders SET trashed = FALSE, parent_id = $1, updated_at = NOW()
			 WHERE id = $2 AND trashed = TRUE`, parentID, id)
		if err != nil {
			return fmt.Errorf("restore folder: %w", err)
		}
		return nil
	}

	file, err := s.GetFile(ctx, id)
	if err != nil {
		return err
	}
	folderID := file.FolderID
	if folderID != nil && !s.parentUsable(ctx, file.OwnerID, *folderID) {
		folderID = nil
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE files SET trashed = FALSE, folder_id = $1, updated_at = NOW()
		 WHERE id = $2 AND trashed = TRUE`, folderID, id)
	if err != nil {
		return fmt.Errorf("restore file: %w", err)
	}
	return nil
}

// parentUsable reports whether folderID exists, belongs to ownerID and
// is not trashed.
func (s *Store) parentUsable(ctx context.Context, ownerID, folderID string) bool {
	var trashed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT trashed FROM folders WHERE id = $1 AND owner_id = $2`,
		folderID, ownerID).Scan(&trashed)
	return err == nil && !trashed
}

// PermanentlyDelete removes an item's records for good and returns the
// blob references that must be released from the blob store. Deleting a
// folder cascades through its entire subtree, trashed descendants
// included.
func (s *Store) PermanentlyDelete(ctx context.Context, caller model.Caller, t model.ItemType, id string) ([]string, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("permanently_delete", time.Since(start)) }()

	if err := s.authorize(ctx, caller, t, id); err != nil {
		return nil, err
	}

	if t == model.ItemFile {
		var blobRef string
		err := s.db.QueryRowContext(ctx,
			`DELETE FROM files WHERE id = $1 RETURNING blob_ref`, id).Scan(&blobRef)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("file %s: %w", id, model.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("delete file: %w", err)
		}
		logging.Debug("permanently deleted file", zap.String("id", id))
		return []string{blobRef}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// UNION (not UNION ALL) so the walk terminates even on corrupt
	// cyclic parent chains.
	rows, err := tx.QueryContext(ctx,
		`WITH RECURSIVE subtree AS (
		    SELECT id FROM folders WHERE id = $1
		    UNION
		    SELECT f.id FROM folders f JOIN subtree s ON f.parent_id = s.id
		 )
		 SELECT id FROM subtree`, id)
	if err != nil {
		return nil, fmt.Errorf("collect subtree: %w", err)
	}
	var folderIDs []string
	for rows.Next() {
		var fid string
		if err := rows.Scan(&fid); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan subtree: %w", err)
		}
		folderIDs = append(folderIDs, fid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subtree rows: %w", err)
	}

	blobRows, err := tx.QueryContext(ctx,
		`DELETE FROM files WHERE folder_id = ANY($1) RETURNING blob_ref`,
		pq.Array(folderIDs))
	if err != nil {
		return nil, fmt.Errorf("delete subtree files: %w", err)
	}
	var blobRefs []string
	for blobRows.Next() {
		var ref string
		if err := blobRows.Scan(&ref); err != nil {
			blobRows.Close()
			return nil, fmt.Errorf("scan blob ref: %w", err)
		}
		blobRefs = append(blobRefs, ref)
	}
	blobRows.Close()
	if err := blobRows.Err(); err != nil {
		return nil, fmt.Errorf("blob ref rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM folders WHERE id = ANY($1)`, pq.Array(folderIDs)); err != nil {
		return nil, fmt.Errorf("delete folders: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	logging.Debug("permanently deleted folder subtree",
		zap.String("id", id),
		zap.Int("folders", len(folderIDs)),
		zap.Int("files", len(blobRefs)))
	return blobRefs, nil
}

// TouchAccessed updates a file's last access time.
func (s *Store) TouchAccessed(ctx context.Context, fileID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE files SET last_accessed_at = NOW() WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("touch accessed: %w", err)
	}
	return nil
}
