package hierarchy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stratodrive/stratodrive/internal/metrics"
	"github.com/stratodrive/stratodrive/internal/model"
)

// Filter selects which slice of the hierarchy a listing returns.
type Filter string

const (
	FilterActive  Filter = "active"
	FilterTrashed Filter = "trashed"
	FilterStarred Filter = "starred"
	FilterPublic  Filter = "public"
)

// ValidFilter reports whether s names a known filter.
func ValidFilter(s string) bool {
	switch Filter(s) {
	case FilterActive, FilterTrashed, FilterStarred, FilterPublic:
		return true
	}
	return false
}

// Listing holds the folders and files returned by List.
type Listing struct {
	Folders []model.Folder `json:"folders"`
	Files   []model.File   `json:"files"`
}

// List returns an owner's folders and files matching the filter, newest
// created first. For FilterActive the listing is scoped to one parent
// (nil = root); the other filters span the whole hierarchy. FilterPublic
// with an empty ownerID lists every user's public items (the public
// library).
func (s *Store) List(ctx context.Context, ownerID string, parentID *string, filter Filter) (*Listing, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_"+string(filter), time.Since(start)) }()

	var folderWhere, fileWhere string
	var args []interface{}

	switch filter {
	case FilterActive:
		args = append(args, ownerID)
		if parentID == nil {
			folderWhere = `owner_id = $1 AND parent_id IS NULL AND trashed = FALSE`
			fileWhere = `owner_id = $1 AND folder_id IS NULL AND trashed = FALSE`
		} else {
			args = append(args, *parentID)
			folderWhere = `owner_id = $1 AND parent_id = $2 AND trashed = FALSE`
			fileWhere = `owner_id = $1 AND folder_id = $2 AND trashed = FALSE`
		}
	case FilterTrashed:
		args = append(args, ownerID)
		folderWhere = `owner_id = $1 AND trashed = TRUE`
		fileWhere = folderWhere
	case FilterStarred:
		args = append(args, ownerID)
		folderWhere = `owner_id = $1 AND starred = TRUE AND trashed = FALSE`
		fileWhere = folderWhere
	case FilterPublic:
		if ownerID == "" {
			folderWhere = `is_public = TRUE AND trashed = FALSE`
			fileWhere = folderWhere
		} else {
			args = append(args, ownerID)
			folderWhere = `owner_id = $1 AND is_public = TRUE AND trashed = FALSE`
			fileWhere = folderWhere
		}
	default:
		return nil, fmt.Errorf("unknown filter %q", filter)
	}

	listing := &Listing{Folders: []model.Folder{}, Files: []model.File{}}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderCols+` FROM folders WHERE `+folderWhere+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	for rows.Next() {
		folder, err := scanFolder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		listing.Folders = append(listing.Folders, *folder)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("folder rows: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT `+fileCols+` FROM files WHERE `+fileWhere+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan file: %w", err)
		}
		listing.Files = append(listing.Files, *file)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("file rows: %w", err)
	}

	return listing, nil
}

// escapeLike quotes ILIKE metacharacters so a search term containing
// "%", "_" or "\" matches those characters literally.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

// SearchFiles returns an owner's active files whose names contain the
// search term (case-insensitive), newest first. The term is matched as
// a literal substring, not a pattern.
func (s *Store) SearchFiles(ctx context.Context, ownerID, term string) ([]model.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("search_files", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileCols+` FROM files
		 WHERE owner_id = $1 AND trashed = FALSE AND name ILIKE '%' || $2 || '%' ESCAPE '\'
		 ORDER BY created_at DESC`, ownerID, escapeLike(term))
	if err != nil {
		return nil, fmt.Errorf("search files: %w", err)
	}
	defer rows.Close()

	files := []model.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}

// RecentFiles returns an owner's most recently accessed active files.
func (s *Store) RecentFiles(ctx context.Context, ownerID string, limit int) ([]model.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("recent_files", time.Since(start)) }()

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileCols+` FROM files
		 WHERE owner_id = $1 AND trashed = FALSE
		 ORDER BY last_accessed_at DESC LIMIT $2`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent files: %w", err)
	}
	defer rows.Close()

	files := []model.File{}
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		files = append(files, *file)
	}
	return files, rows.Err()
}
