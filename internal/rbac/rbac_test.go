package rbac

import (
	"testing"

	"github.com/stratodrive/stratodrive/internal/model"
)

func TestCan(t *testing.T) {
	tests := []struct {
		role   model.Role
		action Action
		expect bool
	}{
		{model.RoleAdmin, ActionManageUsers, true},
		{model.RoleAdmin, ActionSetQuota, true},
		{model.RoleAdmin, ActionUploadFile, true},
		{model.RoleEditor, ActionUploadFile, true},
		{model.RoleEditor, ActionManageUsers, false},
		{model.RoleEditor, ActionSetQuota, false},
		{model.RoleWriter, ActionCreateFolder, true},
		{model.RoleWriter, ActionRestoreBackup, true},
		{model.RoleWriter, ActionManageUsers, false},
		{model.RoleReader, ActionView, true},
		{model.RoleReader, ActionStar, true},
		{model.RoleReader, ActionUploadFile, false},
		{model.RoleReader, ActionTrash, false},
		{model.Role("bogus"), ActionView, false},
	}

	for _, tt := range tests {
		if got := Can(tt.role, tt.action); got != tt.expect {
			t.Errorf("Can(%s, %s) = %v, want %v", tt.role, tt.action, got, tt.expect)
		}
	}
}
