// Package rbac maps (role, action) pairs to allow/deny decisions.
// Authorization checks happen once at each operation entry point instead
// of ad hoc role comparisons scattered across call sites.
package rbac

import "github.com/stratodrive/stratodrive/internal/model"

// Action names an operation a caller may attempt.
type Action string

const (
	ActionView            Action = "view"
	ActionCreateFolder    Action = "create_folder"
	ActionUploadFile      Action = "upload_file"
	ActionRename          Action = "rename"
	ActionMove            Action = "move"
	ActionStar            Action = "star"
	ActionTogglePublic    Action = "toggle_public"
	ActionTrash           Action = "trash"
	ActionRestore         Action = "restore"
	ActionPermanentDelete Action = "permanent_delete"
	ActionShare           Action = "share"
	ActionCreateBackup    Action = "create_backup"
	ActionRestoreBackup   Action = "restore_backup"
	ActionDeleteBackup    Action = "delete_backup"
	ActionManageUsers     Action = "manage_users"
	ActionSetQuota        Action = "set_quota"
)

// writerActions are the mutations any non-reader may perform on their
// own items.
var writerActions = map[Action]bool{
	ActionCreateFolder:    true,
	ActionUploadFile:      true,
	ActionRename:          true,
	ActionMove:            true,
	ActionStar:            true,
	ActionTogglePublic:    true,
	ActionTrash:           true,
	ActionRestore:         true,
	ActionPermanentDelete: true,
	ActionShare:           true,
	ActionCreateBackup:    true,
	ActionRestoreBackup:   true,
	ActionDeleteBackup:    true,
}

// Can reports whether a role may perform an action. Ownership checks are
// separate and happen in the stores; this only gates by role.
func Can(role model.Role, action Action) bool {
	switch role {
	case model.RoleAdmin:
		return true
	case model.RoleEditor, model.RoleWriter:
		return action == ActionView || writerActions[action]
	case model.RoleReader:
		return action == ActionView || action == ActionStar
	}
	return false
}
