// Package permissions provides utilities for checking permissions against
// required permissions with support for wildcards, and the static
// role-to-permission table of the inventory service.
//
// Permission Format:
//   - "*" - Full access (all permissions)
//   - "resource.*" - All actions on a resource (e.g., "inventory.*")
//   - "resource.action" - Specific action (e.g., "inventory.read")
package permissions

import (
	"strings"
)

// Permissions checked by the inventory service.
const (
	InventoryRead       = "inventory.read"
	InventoryWrite      = "inventory.write"
	InventoryTransfer   = "inventory.transfer"
	InventoryUsage      = "inventory.usage"
	RequisitionCreate   = "requisitions.create"
	RequisitionRead     = "requisitions.read"
	RequisitionApprove  = "requisitions.approve"
	RequisitionCheckout = "requisitions.checkout"
	ProcurementRead     = "procurement.read"
	ProcurementManage   = "procurement.manage"
	TransactionsManage  = "transactions.manage"
)

// Roles known to the inventory service.
const (
	RoleAdmin              = "admin"
	RoleWarehouseManager   = "warehouse_manager"
	RoleProcurementOfficer = "procurement_officer"
	RoleDepartmentHead     = "department_head"
	RoleDepartmentStaff    = "department_staff"
)

var rolePermissions = map[string][]string{
	RoleAdmin: {"*"},
	RoleWarehouseManager: {
		"inventory.*", "requisitions.*", ProcurementRead, TransactionsManage,
	},
	RoleProcurementOfficer: {
		InventoryRead, RequisitionRead, "procurement.*",
	},
	RoleDepartmentHead: {
		InventoryRead, InventoryUsage, RequisitionCreate, RequisitionRead, RequisitionCheckout, ProcurementRead,
	},
	RoleDepartmentStaff: {
		InventoryRead, InventoryUsage, RequisitionCreate, RequisitionRead, RequisitionCheckout,
	},
}

// ForRole returns the permissions granted to a role. Unknown roles get none.
func ForRole(role string) []string {
	return rolePermissions[strings.ToLower(role)]
}

// HasPermission checks if the user's permissions include the required permission.
// Supports wildcard matching:
//   - "*" matches everything
//   - "inventory.*" matches "inventory.read", "inventory.write", etc.
//   - Exact match for specific permissions
func HasPermission(userPerms []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range userPerms {
		if p == "*" || p == required {
			return true
		}
		if strings.HasSuffix(p, ".*") {
			prefix := strings.TrimSuffix(p, ".*")
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission checks if the user has any of the required permissions.
func HasAnyPermission(userPerms []string, required []string) bool {
	for _, req := range required {
		if HasPermission(userPerms, req) {
			return true
		}
	}
	return false
}
