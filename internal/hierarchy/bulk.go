package hierarchy

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/model"
)

// ExportAll returns every folder and file owned by ownerID, trashed
// items included. The backup manager snapshots from this.
func (s *Store) ExportAll(ctx context.Context, ownerID string) ([]model.Folder, []model.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("export_all", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderCols+` FROM folders WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("export folders: %w", err)
	}
	var folders []model.Folder
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan folder: %w", err)
		}
		folders = append(folders, *folder)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("folder rows: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT `+fileCols+` FROM files WHERE owner_id = $1 ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, nil, fmt.Errorf("export files: %w", err)
	}
	var files []model.File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, *file)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("file rows: %w", err)
	}

	return folders, files, nil
}

// ReplaceAll atomically swaps a user's entire hierarchy for the given
// set: one transaction locks the owner's profile row (excluding
// concurrent uploads and other replaces), deletes every current folder
// and file, then inserts the snapshot's folders first so parent
// references resolve, then its files, all with their original ids and
// timestamps. Any failure rolls the whole swap back; no caller ever
// observes a partially replaced tree.
func (s *Store) ReplaceAll(ctx context.Context, ownerID string, folders []model.Folder, files []model.File) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("replace_all", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var limitMB float64
	if err := tx.QueryRowContext(ctx,
		`SELECT storage_limit_mb FROM users WHERE id = $1 FOR UPDATE`,
		ownerID).Scan(&limitMB); err != nil {
		return fmt.Errorf("lock owner: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM files WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("clear files: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM folders WHERE owner_id = $1`, ownerID); err != nil {
		return fmt.Errorf("clear folders: %w", err)
	}

	for _, f := range folders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO folders (`+folderCols+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			f.ID, ownerID, f.ParentID, f.Name, f.Color,
			f.IsPublic, f.Starred, f.Trashed, f.CreatedAt, f.UpdatedAt); err != nil {
			return fmt.Errorf("insert folder %s: %w", f.ID, err)
		}
	}
	for _, f := range files {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO files (`+fileCols+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			f.ID, ownerID, f.FolderID, f.Name, f.SizeMB, f.MimeType, f.BlobRef,
			f.IsPublic, f.Starred, f.Trashed, f.LastAccessedAt, f.CreatedAt, f.UpdatedAt); err != nil {
			return fmt.Errorf("insert file %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logging.Info("replaced hierarchy",
		zap.String("owner", ownerID),
		zap.Int("folders", len(folders)),
		zap.Int("files", len(files)))
	return nil
}
