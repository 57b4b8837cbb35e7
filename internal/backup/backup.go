// Package backup captures point-in-time snapshots of a user's entire
// hierarchy and restores them destructively. Snapshots are stored as
// versioned JSON records and decoded into typed entities on restore, so
// the schema can evolve without breaking old backups.
package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stratodrive/stratodrive/internal/hierarchy"
	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/model"
)

// Manager creates, lists, restores and deletes backups.
type Manager struct {
	db        *sql.DB
	hierarchy *hierarchy.Store
}

// NewManager creates a new backup manager.
func NewManager(db *sql.DB, h *hierarchy.Store) *Manager {
	return &Manager{db: db, hierarchy: h}
}

const backupCols = `id, owner_id, name, file_count, folder_count, total_size_mb, created_at`

func scanBackup(row interface{ Scan(...interface{}) error }) (*model.Backup, error) {
	var b model.Backup
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Name, &b.FileCount, &b.FolderCount,
		&b.TotalSizeMB, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create captures a snapshot of everything the caller owns, active and
// trashed alike, with original ids and timestamps preserved. Capture is
// synchronous; the descriptor is returned once the snapshot is
// persisted.
func (m *Manager) Create(ctx context.Context, caller model.Caller, name string) (*model.Backup, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_backup", time.Since(start)) }()

	if name == "" {
		return nil, fmt.Errorf("backup name: %w", model.ErrInvalidName)
	}

	folders, files, err := m.hierarchy.ExportAll(ctx, caller.ID)
	if err != nil {
		metrics.RecordBackupOperation("create", err)
		return nil, fmt.Errorf("export hierarchy: %w", err)
	}

	snapshot := model.Snapshot{
		SchemaVersion: model.SnapshotVersion,
		Folders:       folders,
		Files:         files,
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		metrics.RecordBackupOperation("create", err)
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	var totalMB float64
	for _, f := range files {
		totalMB += f.SizeMB
	}

	row := m.db.QueryRowContext(ctx,
		`INSERT INTO backups (id, owner_id, name, snapshot, file_count, folder_count, total_size_mb)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+backupCols,
		uuid.NewString(), caller.ID, name, string(raw), len(files), len(folders), totalMB)
	b, err := scanBackup(row)
	if err != nil {
		metrics.RecordBackupOperation("create", err)
		return nil, fmt.Errorf("insert backup: %w", err)
	}

	metrics.RecordBackupOperation("create", nil)
	logging.Info("created backup",
		zap.String("id", b.ID),
		zap.String("owner", b.OwnerID),
		zap.Int("folders", b.FolderCount),
		zap.Int("files", b.FileCount))
	return b, nil
}

// List returns a user's backup descriptors, newest first.
func (m *Manager) List(ctx context.Context, ownerID string) ([]model.Backup, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_backups", time.Since(start)) }()

	rows, err := m.db.QueryContext(ctx,
		`SELECT `+backupCols+` FROM backups WHERE owner_id = $1 ORDER BY created_at DESC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	backups := []model.Backup{}
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

// Get returns one backup descriptor, enforcing ownership.
func (m *Manager) Get(ctx context.Context, caller model.Caller, backupID string) (*model.Backup, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT `+backupCols+` FROM backups WHERE id = $1`, backupID)
	b, err := scanBackup(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("backup %s: %w", backupID, model.ErrBackupNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get backup: %w", err)
	}
	if !caller.CanActOn(b.OwnerID) {
		return nil, fmt.Errorf("backup %s owned by %s: %w", backupID, b.OwnerID, model.ErrForbidden)
	}
	return b, nil
}

// Restore destructively replaces the caller's live hierarchy with the
// snapshot's contents. The swap runs as one transaction in the hierarchy
// store; on any failure the live tree is untouched. Restored file
// records may reference blob paths that were permanently deleted since
// the snapshot was taken; restore recovers metadata only, never blob
// bytes.
func (m *Manager) Restore(ctx context.Context, caller model.Caller, backupID string) (*model.Backup, error) {
	start := time.Now()
	defer func() { metrics.RecordRestoreDuration(time.Since(start)) }()

	// Descriptor and snapshot come from one query so a backup deleted
	// between two reads cannot surface as anything but not-found.
	var b model.Backup
	var raw []byte
	err := m.db.QueryRowContext(ctx,
		`SELECT `+backupCols+`, snapshot FROM backups WHERE id = $1`, backupID).
		Scan(&b.ID, &b.OwnerID, &b.Name, &b.FileCount, &b.FolderCount,
			&b.TotalSizeMB, &b.CreatedAt, &raw)
	if err == sql.ErrNoRows {
		err = fmt.Errorf("backup %s: %w", backupID, model.ErrBackupNotFound)
		metrics.RecordBackupOperation("restore", err)
		return nil, err
	}
	if err != nil {
		metrics.RecordBackupOperation("restore", err)
		return nil, fmt.Errorf("load backup: %w", err)
	}
	if !caller.CanActOn(b.OwnerID) {
		err = fmt.Errorf("backup %s owned by %s: %w", backupID, b.OwnerID, model.ErrForbidden)
		metrics.RecordBackupOperation("restore", err)
		return nil, err
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		metrics.RecordBackupOperation("restore", err)
		return nil, fmt.Errorf("decode snapshot: %w: %v", model.ErrRestoreFailed, err)
	}
	if snapshot.SchemaVersion != model.SnapshotVersion {
		err := fmt.Errorf("snapshot schema version %d unsupported: %w",
			snapshot.SchemaVersion, model.ErrRestoreFailed)
		metrics.RecordBackupOperation("restore", err)
		return nil, err
	}

	if err := m.hierarchy.ReplaceAll(ctx, b.OwnerID, snapshot.Folders, snapshot.Files); err != nil {
		metrics.RecordBackupOperation("restore", err)
		return nil, fmt.Errorf("%w: %v", model.ErrRestoreFailed, err)
	}

	metrics.RecordBackupOperation("restore", nil)
	logging.Info("restored backup",
		zap.String("id", b.ID),
		zap.String("owner", b.OwnerID),
		zap.Int("folders", b.FolderCount),
		zap.Int("files", b.FileCount))
	return &b, nil
}

// Delete removes a backup for good. Owner-only (admins excepted);
// irreversible.
func (m *Manager) Delete(ctx context.Context, caller model.Caller, backupID string) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_backup", time.Since(start)) }()

	if _, err := m.Get(ctx, caller, backupID); err != nil {
		metrics.RecordBackupOperation("delete", err)
		return err
	}
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM backups WHERE id = $1`, backupID); err != nil {
		metrics.RecordBackupOperation("delete", err)
		return fmt.Errorf("delete backup: %w", err)
	}
	metrics.RecordBackupOperation("delete", nil)
	return nil
}

// ListAll returns every backup descriptor in the system, newest first.
// Admin surface.
func (m *Manager) ListAll(ctx context.Context) ([]model.Backup, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_all_backups", time.Since(start)) }()

	rows, err := m.db.QueryContext(ctx,
		`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list all backups: %w", err)
	}
	defer rows.Close()

	backups := []model.Backup{}
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}
