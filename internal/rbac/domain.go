package rbac

import "context"

// Permission is one grantable capability of the catalogue.
type Permission struct {
	Token       string `json:"token"`
	Description string `json:"description"`
}

// Catalog lists the permissions known to the credential store.
type Catalog interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
}
