package model

// Caller identifies the authenticated user an operation runs as.
// Threading it explicitly through every operation keeps authorization
// testable without ambient session state.
type Caller struct {
	ID    string
	Email string
	Role  Role
}

// IsAdmin reports whether the caller holds the admin role.
func (c Caller) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// CanActOn reports whether the caller may mutate an item owned by
// ownerID: owners act on their own items, admins on anyone's.
func (c Caller) CanActOn(ownerID string) bool {
	return c.ID == ownerID || c.IsAdmin()
}
