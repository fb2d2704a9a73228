package roles

// Role represents a role for management.
type Role struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
}

// PermissionChange is the audited before/after of a permission replacement.
type PermissionChange struct {
	Old []string `json:"old"`
	New []string `json:"new"`
}
