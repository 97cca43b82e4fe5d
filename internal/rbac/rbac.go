package rbac

import "github.com/rentchain/escrow/internal/models"

// Role constants
const (
	RoleOperator = "operator"
	RolePayer    = "payer"
	RolePayee    = "payee"
	RoleAccount  = "account"
)

// Permission constants
const (
	PermCreatePayment = "create_payment"
	PermSettle        = "settle"
	PermDispute       = "dispute"
	PermRefund        = "refund"
	PermSetFeeRate    = "set_fee_rate"
	PermPause         = "pause"
	PermDeposit       = "deposit"
	PermApprove       = "approve"
	PermViewPayment   = "view_payment"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleOperator: {
		PermRefund, PermSetFeeRate, PermPause, PermDeposit, PermViewPayment,
	},
	RolePayer: {
		PermSettle, PermDispute, PermViewPayment,
	},
	RolePayee: {
		PermDispute, PermViewPayment,
		// Payee CANNOT settle: only the obligor pays.
	},
	RoleAccount: {
		PermCreatePayment, PermApprove,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// RolesFor lists the roles caller holds, relative to p when p is non-nil.
func RolesFor(caller, operator models.Address, p *models.Payment) []string {
	if caller.IsZero() {
		return nil
	}
	roles := []string{RoleAccount}
	if caller == operator {
		roles = append(roles, RoleOperator)
	}
	if p != nil {
		if caller == p.Payer {
			roles = append(roles, RolePayer)
		}
		if caller == p.Payee {
			roles = append(roles, RolePayee)
		}
	}
	return roles
}

// Can reports whether any of roles grants permission.
func Can(roles []string, permission string) bool {
	for _, r := range roles {
		if HasPermission(r, permission) {
			return true
		}
	}
	return false
}
