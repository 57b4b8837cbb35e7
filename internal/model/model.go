// Package model defines the core entities of the drive: users, folders,
// files, share grants and backups, plus the error taxonomy shared by all
// stores.
package model

import "time"

// Role is a user's role. Roles gate which mutating operations a caller
// may invoke; see the rbac package for the capability table.
type Role string

const (
	RoleReader Role = "reader"
	RoleWriter Role = "writer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// ValidRole reports whether s names a known role.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleReader, RoleWriter, RoleEditor, RoleAdmin:
		return true
	}
	return false
}

// DefaultStorageLimitMB is the storage limit assigned to new users.
const DefaultStorageLimitMB = 500.0

// User is a drive account.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	StorageLimitMB float64   `json:"storage_limit_mb"`
	CreatedAt      time.Time `json:"created_at"`
}

// Folder is a node in a user's hierarchy. ParentID is nil for root-level
// folders. OwnerID is immutable after creation.
type Folder struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	ParentID  *string   `json:"parent_id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color,omitempty"`
	IsPublic  bool      `json:"is_public"`
	Starred   bool      `json:"starred"`
	Trashed   bool      `json:"trashed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// File is a stored file's metadata. The bytes live in the external blob
// store under BlobRef; FolderID is nil for root-level files.
type File struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	FolderID       *string   `json:"folder_id"`
	Name           string    `json:"name"`
	SizeMB         float64   `json:"size_mb"`
	MimeType       string    `json:"mime_type"`
	BlobRef        string    `json:"blob_ref"`
	IsPublic       bool      `json:"is_public"`
	Starred        bool      `json:"starred"`
	Trashed        bool      `json:"trashed"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ItemType discriminates folders from files in operations that address
// either.
type ItemType string

const (
	ItemFolder ItemType = "folder"
	ItemFile   ItemType = "file"
)

// ValidItemType reports whether s names a known item type.
func ValidItemType(s string) bool {
	return ItemType(s) == ItemFolder || ItemType(s) == ItemFile
}

// Permission is the access level carried by a share grant.
type Permission string

const (
	PermViewer    Permission = "viewer"
	PermCommenter Permission = "commenter"
	PermEditor    Permission = "editor"
)

// ValidPermission reports whether s names a known permission.
func ValidPermission(s string) bool {
	switch Permission(s) {
	case PermViewer, PermCommenter, PermEditor:
		return true
	}
	return false
}

// ShareGrant gives one user access to one item. Duplicate grants are
// harmless; revocation is by grant id.
type ShareGrant struct {
	ID         string     `json:"id"`
	ItemType   ItemType   `json:"item_type"`
	ItemID     string     `json:"item_id"`
	GrantedBy  string     `json:"granted_by"`
	GrantedTo  string     `json:"granted_to"`
	Permission Permission `json:"permission"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Breadcrumb is one step of a folder path, root first.
type Breadcrumb struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Usage is a user's quota standing.
type Usage struct {
	UsedMB  float64 `json:"used_mb"`
	LimitMB float64 `json:"limit_mb"`
}

// SnapshotVersion is the current backup snapshot schema version.
const SnapshotVersion = 1

// Snapshot is the deep copy of a user's entire hierarchy captured by a
// backup. Folders and files keep their original ids and timestamps so a
// restore reproduces the tree exactly.
type Snapshot struct {
	SchemaVersion int      `json:"schema_version"`
	Folders       []Folder `json:"folders"`
	Files         []File   `json:"files"`
}

// Backup is a stored snapshot descriptor. The snapshot itself is
// immutable once written.
type Backup struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	FileCount   int       `json:"file_count"`
	FolderCount int       `json:"folder_count"`
	TotalSizeMB float64   `json:"total_size_mb"`
	CreatedAt   time.Time `json:"created_at"`
}
