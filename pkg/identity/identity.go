// Package identity carries the caller of an operation through the request
// context: who they are, which department they belong to and what their role
// allows. The gateway authenticates; this service only consumes the result.
package identity

import (
	"context"
	"fmt"

	"github.com/medflow/hospital-erp/pkg/permissions"
)

// SystemUserID identifies operations started by the service itself,
// such as the periodic restock scan.
const SystemUserID = "00000000-0000-0000-0000-000000000000"

// Identity represents the entity performing an action.
type Identity struct {
	UserID       string   `json:"user_id"`
	DepartmentID string   `json:"department_id"`
	Role         string   `json:"role"`
	IsGlobalRole bool     `json:"is_global_role"`
	Permissions  []string `json:"permissions,omitempty"`
}

// System returns the identity used for background jobs.
func System() *Identity {
	return &Identity{
		UserID:       SystemUserID,
		Role:         permissions.RoleAdmin,
		IsGlobalRole: true,
	}
}

// IsSystem returns true if the identity represents the service itself.
func (i *Identity) IsSystem() bool {
	if i == nil {
		return true
	}
	return i.UserID == SystemUserID
}

// Can reports whether the identity holds the permission, either explicitly
// or through its role.
func (i *Identity) Can(permission string) bool {
	if i == nil {
		return false
	}
	if permissions.HasPermission(i.Permissions, permission) {
		return true
	}
	return permissions.HasPermission(permissions.ForRole(i.Role), permission)
}

// CanAccessDepartment reports whether the identity may act on the department's stock.
// Global roles see every department.
func (i *Identity) CanAccessDepartment(departmentID string) bool {
	if i == nil {
		return false
	}
	return i.IsGlobalRole || i.DepartmentID == departmentID
}

// String returns a representation of the identity for logging
func (i *Identity) String() string {
	if i.IsSystem() {
		return "system"
	}
	return fmt.Sprintf("%s (%s@%s)", i.UserID, i.Role, i.DepartmentID)
}

type contextKey struct{}

// FromContext retrieves the Identity from the context.
// Returns nil if no identity is present.
func FromContext(ctx context.Context) *Identity {
	if ctx == nil {
		return nil
	}
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, contextKey{}, id)
}

// OrSystem returns the identity in ctx, falling back to System.
func OrSystem(ctx context.Context) *Identity {
	if id := FromContext(ctx); id != nil {
		return id
	}
	return System()
}
