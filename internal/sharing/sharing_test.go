// Integration tests for share grants. They require PostgreSQL and are
// skipped when TEST_DATABASE_URL is not set.
package sharing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

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

func createTestFile(t *testing.T, owner model.Caller) string {
	t.Helper()
	id := uuid.NewString()
	_, err := testDB.Exec(
		`INSERT INTO files (id, owner_id, name, size_mb, blob_ref)
		 VALUES ($1, $2, 'shared.txt', 1, $3)`,
		id, owner.ID, owner.ID+"/"+id)
	if err != nil {
		t.Fatalf("create test file: %v", err)
	}
	return id
}

func TestGrantAndSharedWithMe(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testDB)
	alice := createTestUser(t)
	bob := createTestUser(t)
	fileID := createTestFile(t, alice)

	grant, err := s.Grant(ctx, alice, model.ItemFile, fileID, bob.ID, model.PermViewer)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if grant.GrantedBy != alice.ID || grant.GrantedTo != bob.ID {
		t.Errorf("grant = %+v", grant)
	}

	shared, err := s.SharedFiles(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(shared) != 1 || shared[0].ID != fileID {
		t.Fatalf("shared-with-me = %v, want the granted file", shared)
	}

	ok, err := s.HasGrant(ctx, bob.ID, model.ItemFile, fileID)
	if err != nil || !ok {
		t.Fatalf("HasGrant = %v, %v; want true", ok, err)
	}
}

func TestGrantRequiresOwnership(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testDB)
	alice := createTestUser(t)
	bob := createTestUser(t)
	carol := createTestUser(t)
	fileID := createTestFile(t, alice)

	if _, err := s.Grant(ctx, bob, model.ItemFile, fileID, carol.ID, model.PermViewer); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden for non-owner grant", err)
	}
}

func TestGrantUnknownGrantee(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testDB)
	alice := createTestUser(t)
	fileID := createTestFile(t, alice)

	if _, err := s.Grant(ctx, alice, model.ItemFile, fileID, uuid.NewString(), model.PermViewer); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound for unknown grantee", err)
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testDB)
	alice := createTestUser(t)
	bob := createTestUser(t)
	fileID := createTestFile(t, alice)

	grant, err := s.Grant(ctx, alice, model.ItemFile, fileID, bob.ID, model.PermEditor)
	if err != nil {
		t.Fatal(err)
	}

	// The grantee cannot revoke, only the grantor or an admin.
	if err := s.Revoke(ctx, bob, grant.ID); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("got %v, want ErrForbidden for grantee revoke", err)
	}
	if err := s.Revoke(ctx, alice, grant.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	ok, err := s.HasGrant(ctx, bob.ID, model.ItemFile, fileID)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("grant still present after revoke")
	}
}

func TestTrashedItemsLeaveSharedListing(t *testing.T) {
	ctx := context.Background()
	s := NewStore(testDB)
	alice := createTestUser(t)
	bob := createTestUser(t)
	fileID := createTestFile(t, alice)

	if _, err := s.Grant(ctx, alice, model.ItemFile, fileID, bob.ID, model.PermViewer); err != nil {
		t.Fatal(err)
	}
	if _, err := testDB.Exec(`UPDATE files SET trashed = TRUE WHERE id = $1`, fileID); err != nil {
		t.Fatal(err)
	}

	shared, err := s.SharedFiles(ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range shared {
		if f.ID == fileID {
			t.Error("trashed file still in shared-with-me listing")
		}
	}
}
