package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		name     string
		perms    []string
		required string
		want     bool
	}{
		{"full access", []string{"*"}, RequisitionApprove, true},
		{"exact match", []string{InventoryRead}, InventoryRead, true},
		{"resource wildcard", []string{"procurement.*"}, ProcurementManage, true},
		{"wildcard does not cross resources", []string{"inventory.*"}, RequisitionApprove, false},
		{"prefix is not a wildcard", []string{"inventory.*"}, "inventoryx.read", false},
		{"nothing required", nil, "", true},
		{"no permissions", nil, InventoryRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.perms, tt.required))
		})
	}
}

func TestForRole(t *testing.T) {
	assert.True(t, HasPermission(ForRole(RoleWarehouseManager), RequisitionApprove))
	assert.True(t, HasPermission(ForRole("Warehouse_Manager"), InventoryTransfer))
	assert.False(t, HasPermission(ForRole(RoleDepartmentStaff), RequisitionApprove))
	assert.True(t, HasPermission(ForRole(RoleProcurementOfficer), ProcurementManage))
	assert.Empty(t, ForRole("janitor"))
	assert.True(t, HasAnyPermission(ForRole(RoleDepartmentHead), []string{ProcurementManage, ProcurementRead}))
}
