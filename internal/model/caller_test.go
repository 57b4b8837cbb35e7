package model

import "testing"

func TestCallerCanActOn(t *testing.T) {
	tests := []struct {
		name    string
		caller  Caller
		ownerID string
		want    bool
	}{
		{"owner acts on own item", Caller{ID: "u1", Role: RoleWriter}, "u1", true},
		{"writer blocked on foreign item", Caller{ID: "u1", Role: RoleWriter}, "u2", false},
		{"editor blocked on foreign item", Caller{ID: "u1", Role: RoleEditor}, "u2", false},
		{"reader blocked on foreign item", Caller{ID: "u1", Role: RoleReader}, "u2", false},
		{"admin acts on any item", Caller{ID: "u1", Role: RoleAdmin}, "u2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.caller.CanActOn(tt.ownerID); got != tt.want {
				t.Errorf("CanActOn(%q) = %v, want %v", tt.ownerID, got, tt.want)
			}
		})
	}
}

func TestValidators(t *testing.T) {
	if !ValidRole("admin") || ValidRole("superuser") {
		t.Error("ValidRole")
	}
	if !ValidItemType("file") || ValidItemType("link") {
		t.Error("ValidItemType")
	}
	if !ValidPermission("commenter") || ValidPermission("owner") {
		t.Error("ValidPermission")
	}
}
