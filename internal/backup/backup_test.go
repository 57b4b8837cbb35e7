// Integration tests for backup and restore. They require PostgreSQL and
// are skipped when TEST_DATABASE_URL is not set.
package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/stratodrive/stratodrive/internal/hierarchy"
	"github.com/stratodrive/stratodrive/internal/logging"
	"github.com/stratodrive/stratodrive/internal/model"
)

var testDB *sql.DB

func TestMain(m *testing.M) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "SKIP: TEST_DATABASE_URL not set")
		os.Exit(0)
	}

	logging.InitDefault()

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "SKIP: cannot connect to test DB: %v\n", err)
		os.Exit(0)
	}
	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "SKIP: test DB not reachable: %v\n", err)
		os.Exit(0)
	}
	testDB = db

	migration, err := os.ReadFile(filepath.Join("..", "..", "migrations", "0001_init.up.sql"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "SKIP: cannot read migration: %v\n", err)
		os.Exit(0)
	}
	if _, err := db.Exec(string(migration)); err != nil {
		fmt.Fprintf(os.Stderr, "SKIP: migration failed: %v\n", err)
		os.Exit(0)
	}

	os.Exit(m.Run())
}

func createTestUser(t *testing.T) model.Caller {
	t.Helper()
	id := uuid.NewString()
	_, err := testDB.Exec(
		`INSERT INTO users (id, email, password_hash, role, storage_limit_mb)
		 VALUES ($1, $2, 'x', 'writer', 500)`,
		id, id+"@test.local")
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return model.Caller{ID: id, Email: id + "@test.local", Role: model.RoleWriter}
}

func buildTree(t *testing.T, h *hierarchy.Store, caller model.Caller) (*model.Folder, *model.File) {
	t.Helper()
	ctx := context.Background()
	folder, err := h.CreateFolder(ctx, caller, "Projects", nil)
	if err != nil {
		t.Fatal(err)
	}
	file, err := h.CreateFile(ctx, caller, hierarchy.CreateFileParams{
		Name: "plan.txt", SizeMB: 2, MimeType: "text/plain",
		BlobRef: caller.ID + "/" + uuid.NewString(), FolderID: &folder.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return folder, file
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := hierarchy.NewStore(testDB)
	m := NewManager(testDB, h)
	caller := createTestUser(t)

	folder, file := buildTree(t, h, caller)

	b, err := m.Create(ctx, caller, "before changes")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.FolderCount != 1 || b.FileCount != 1 {
		t.Fatalf("counts = %d folders, %d files; want 1, 1", b.FolderCount, b.FileCount)
	}

	// Mutate after the snapshot: delete the file, add another, rename
	// the folder.
	if _, err := h.PermanentlyDelete(ctx, caller, model.ItemFile, file.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := h.CreateFile(ctx, caller, hierarchy.CreateFileParams{
		Name: "later.txt", SizeMB: 1, BlobRef: caller.ID + "/later",
	}); err != nil {
		t.Fatal(err)
	}
	if err := h.Rename(ctx, caller, model.ItemFolder, folder.ID, "Renamed"); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Restore(ctx, caller, b.ID); err != nil {
		t.Fatalf("restore: %v", err)
	}

	// The snapshot state is back, original ids and timestamps included.
	gotFolder, err := h.GetFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("folder missing after restore: %v", err)
	}
	if gotFolder.Name != "Projects" {
		t.Errorf("folder name = %q, want Projects", gotFolder.Name)
	}
	if !gotFolder.CreatedAt.Equal(folder.CreatedAt) {
		t.Errorf("folder created_at changed across restore")
	}
	gotFile, err := h.GetFile(ctx, file.ID)
	if err != nil {
		t.Fatalf("file missing after restore: %v", err)
	}
	if gotFile.Name != "plan.txt" || gotFile.FolderID == nil || *gotFile.FolderID != folder.ID {
		t.Errorf("file = %+v, want plan.txt in %s", gotFile, folder.ID)
	}

	// The file added after the snapshot is gone.
	listing, err := h.List(ctx, caller.ID, nil, hierarchy.FilterActive)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range listing.Files {
		if f.Name == "later.txt" {
			t.Error("post-snapshot file survived the restore")
		}
	}
}

func TestBackupIncludesTrashed(t *testing.T) {
	ctx := context.Background()
	h := hierarchy.NewStore(testDB)
	m := NewManager(testDB, h)
	caller := createTestUser(t)

	_, file := buildTree(t, h, caller)
	if err := h.MoveToTrash(ctx, caller, model.ItemFile, file.ID); err != nil {
		t.Fatal(err)
	}

	b, err := m.Create(ctx, caller, "with trash")
	if err != nil {
		t.Fatal(err)
	}
	if b.FileCount != 1 {
		t.Fatalf("file count = %d, want trashed file included", b.FileCount)
	}

	if _, err := m.Restore(ctx, caller, b.ID); err != nil {
		t.Fatal(err)
	}
	restored, err := h.GetFile(ctx, file.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !restored.Trashed {
		t.Error("file restored as active, want trashed as snapshotted")
	}
}

func TestRestoreCorruptSnapshotLeavesTreeIntact(t *testing.T) {
	ctx := context.Background()
	h := hierarchy.NewStore(testDB)
	m := NewManager(testDB, h)
	caller := createTestUser(t)

	_, file := buildTree(t, h, caller)

	// Plant a backup whose snapshot cannot be decoded.
	badID := uuid.NewString()
	if _, err := testDB.Exec(
		`INSERT INTO backups (id, owner_id, name, snapshot, file_count, folder_count, total_size_mb)
		 VALUES ($1, $2, 'bad', '{"schema_version": 99}', 0, 0, 0)`,
		badID, caller.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Restore(ctx, caller, badID); !errors.Is(err, model.ErrRestoreFailed) {
		t.Fatalf("got %v, want ErrRestoreFailed", err)
	}

	// The failed restore must not have touched the live tree.
	if _, err := h.GetFile(ctx, file.ID); err != nil {
		t.Fatalf("live tree damaged by failed restore: %v", err)
	}
}

func TestRestoreFailingMidInsertLeavesTreeIntact(t *testing.T) {
	ctx := context.Background()
	h := hierarchy.NewStore(testDB)
	m := NewManager(testDB, h)
	caller := createTestUser(t)

	folder, file := buildTree(t, h, caller)

	// A decodable snapshot that repeats a folder id. The restore clears
	// the live tree, inserts the first copy, then hits the primary key
	// on the second, after the delete phase has already run.
	now := time.Now().UTC()
	dup := model.Folder{
		ID: uuid.NewString(), OwnerID: caller.ID, Name: "dup",
		CreatedAt: now, UpdatedAt: now,
	}
	raw, err := json.Marshal(model.Snapshot{
		SchemaVersion: model.SnapshotVersion,
		Folders:       []model.Folder{dup, dup},
	})
	if err != nil {
		t.Fatal(err)
	}
	badID := uuid.NewString()
	if _, err := testDB.Exec(
		`INSERT INTO backups (id, owner_id, name, snapshot, file_count, folder_count, total_size_mb)
		 VALUES ($1, $2, 'mid-insert failure', $3, 0, 2, 0)`,
		badID, caller.ID, string(raw)); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Restore(ctx, caller, badID); !errors.Is(err, model.ErrRestoreFailed) {
		t.Fatalf("got %v, want ErrRestoreFailed", err)
	}

	// The whole swap rolled back: nothing deleted, nothing half
	// inserted.
	if _, err := h.GetFolder(ctx, folder.ID); err != nil {
		t.Fatalf("pre-restore folder lost: %v", err)
	}
	if _, err := h.GetFile(ctx, file.ID); err != nil {
		t.Fatalf("pre-restore file lost: %v", err)
	}
	if _, err := h.GetFolder(ctx, dup.ID); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("snapshot folder present after failed restore: %v", err)
	}
}

func TestRestoreDeletedBackup(t *testing.T) {
	ctx := context.Background()
	h := hierarchy.NewStore(testDB)
	m := NewManager(testDB, h)
	caller := createTestUser(t)

	buildTree(t, h, caller)
	b, err := m.Create(ctx, caller, "short-lived")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, caller, b.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Restore(ctx, caller, b.ID); !errors.Is(err, model.ErrBackupNotFound) {
		t.Fatalf("got %v, want ErrBackupNotFound", err)
	}
}

func TestBackupOwnership(t *testing.T) {
	ctx := context.Background()
	h := hierarchy.NewStore(testDB)
	m := NewManager(testDB, h)
	alice := createTestUser(t)
	mallory := createTestUser(t)

	buildTree(t, h, alice)
	b, err := m.Create(ctx, alice, "private")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Get(ctx, mallory, b.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden", err)
	}
	if _, err := m.Restore(ctx, mallory, b.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("restore by non-owner: got %v, want ErrForbidden", err)
	}
	if err := m.Delete(ctx, mallory, b.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("delete by non-owner: got %v, want ErrForbidden", err)
	}

	if err := m.Delete(ctx, alice, b.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := m.Get(ctx, alice, b.ID); !errors.Is(err, model.ErrBackupNotFound) {
		t.Fatalf("got %v, want ErrBackupNotFound after delete", err)
	}
}
