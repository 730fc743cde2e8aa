package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, s := range []string{"owner", "manager", "employee"} {
		role, err := ParseRole(s)
		require.NoError(t, err)
		require.Equal(t, Role(s), role)
	}

	_, err := ParseRole("intern")
	require.ErrorIs(t, err, ErrValidation)
	_, err = ParseRole("")
	require.ErrorIs(t, err, ErrValidation)
}

func TestCapabilityTable(t *testing.T) {
	cases := []struct {
		role Role
		cap  Capability
		want bool
	}{
		{RoleOwner, CapFillWarehouse, true},
		{RoleOwner, CapAdjustStock, true},
		{RoleOwner, CapManageProducts, true},
		{RoleManager, CapRefundSale, true},
		{RoleManager, CapViewReports, true},
		{RoleManager, CapFillWarehouse, false},
		{RoleManager, CapAdjustStock, false},
		{RoleManager, CapManageProducts, false},
		{RoleEmployee, CapProcessSale, true},
		{RoleEmployee, CapRestock, true},
		{RoleEmployee, CapRefundSale, false},
		{RoleEmployee, CapProcessReturns, false},
		{RoleEmployee, CapViewReports, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.role.Can(tc.cap), "%s / %s", tc.role, tc.cap)
	}
}

func TestAuthorizeForbidden(t *testing.T) {
	require.NoError(t, Authorize(RoleManager, CapProcessReturns))
	err := Authorize(RoleEmployee, CapProcessReturns)
	require.ErrorIs(t, err, ErrForbidden)
}
