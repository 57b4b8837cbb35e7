package hierarchy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/model"
)

// parentRef is the minimal folder view the upward walk needs.
type parentRef struct {
	ID       string
	Name     string
	ParentID *string
}

// walkToRoot follows parent pointers from folderID to the root and
// returns the breadcrumbs ordered root first. It tracks visited ids so a
// corrupt cyclic parent chain fails with ErrCorruptHierarchy instead of
// looping forever. fetch returns ErrNotFound for missing ids.
func walkToRoot(fetch func(id string) (*parentRef, error), folderID string) ([]model.Breadcrumb, error) {
	var crumbs []model.Breadcrumb
	visited := make(map[string]bool)

	id := folderID
	for {
		if visited[id] {
			return nil, fmt.Errorf("parent chain revisits folder %s: %w", id, model.ErrCorruptHierarchy)
		}
		visited[id] = true

		ref, err := fetch(id)
		if err != nil {
			return nil, err
		}

		crumbs = append([]model.Breadcrumb{{ID: ref.ID, Name: ref.Name}}, crumbs...)
		if ref.ParentID == nil {
			return crumbs, nil
		}
		id = *ref.ParentID
	}
}

// fetchParentRef loads the minimal folder view for the upward walk. It
// runs against whatever queryer the caller is in, so cycle checks inside
// a transaction see that transaction's view of the tree.
func fetchParentRef(ctx context.Context, q queryer, id string) (*parentRef, error) {
	var ref parentRef
	var parentID sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, name, parent_id FROM folders WHERE id = $1`, id).
		Scan(&ref.ID, &ref.Name, &parentID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("folder %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch folder: %w", err)
	}
	if parentID.Valid {
		ref.ParentID = &parentID.String
	}
	return &ref, nil
}

// BreadcrumbPath returns the path from the root folder down to folderID
// inclusive.
func (s *Store) BreadcrumbPath(ctx context.Context, folderID string) ([]model.Breadcrumb, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("breadcrumb_path", time.Since(start)) }()

	return walkToRoot(func(id string) (*parentRef, error) {
		return fetchParentRef(ctx, s.db, id)
	}, folderID)
}
