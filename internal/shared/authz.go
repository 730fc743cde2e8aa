package shared

import "fmt"

// Role is the closed set of operator roles.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// ParseRole validates a role string coming from the boundary.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleOwner, RoleManager, RoleEmployee:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
}

// Capability names a single operation the boundary can gate on.
type Capability string

const (
	CapRestock          Capability = "inventory.restock"
	CapFillWarehouse    Capability = "inventory.fill_warehouse"
	CapAdjustStock      Capability = "inventory.adjust"
	CapUpdateSalesFloor Capability = "inventory.update_sales_floor"
	CapViewInventory    Capability = "inventory.view"
	CapProcessSale      Capability = "sales.process"
	CapConfirmSale      Capability = "sales.confirm"
	CapCancelSale       Capability = "sales.cancel"
	CapRefundSale       Capability = "sales.refund"
	CapProcessReturns   Capability = "returns.process"
	CapViewReports      Capability = "reports.view"
	CapManageProducts   Capability = "masterdata.manage"
)

// capabilities is the role -> allowed operations table. Checked once at
// the HTTP boundary; services never inspect roles.
var capabilities = map[Role]map[Capability]bool{
	RoleOwner: {
		CapRestock: true, CapFillWarehouse: true, CapAdjustStock: true,
		CapUpdateSalesFloor: true, CapViewInventory: true,
		CapProcessSale: true, CapConfirmSale: true, CapCancelSale: true,
		CapRefundSale: true, CapProcessReturns: true, CapViewReports: true,
		CapManageProducts: true,
	},
	RoleManager: {
		CapRestock: true, CapUpdateSalesFloor: true, CapViewInventory: true,
		CapProcessSale: true, CapConfirmSale: true, CapCancelSale: true,
		CapRefundSale: true, CapProcessReturns: true, CapViewReports: true,
	},
	RoleEmployee: {
		CapRestock: true, CapUpdateSalesFloor: true, CapViewInventory: true,
		CapProcessSale: true, CapConfirmSale: true, CapCancelSale: true,
	},
}

// Can reports whether the role holds the capability.
func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

// Authorize returns ErrForbidden when the role lacks the capability.
func Authorize(r Role, c Capability) error {
	if !r.Can(c) {
		return fmt.Errorf("%w: role %s lacks %s", ErrForbidden, r, c)
	}
	return nil
}
