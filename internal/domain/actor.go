package domain

// PermissionPayments grants administrative access to the billing surface:
// creating payments for any account, updating payment state, promocode CRUD.
const PermissionPayments = "payments"

// Actor is the authenticated caller of an operation: the session's account
// plus the permissions it carries.
type Actor struct {
	AccountID   int64
	Permissions []string
}

func (a Actor) HasPermission(p string) bool {
	for _, v := range a.Permissions {
		if v == p {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor holds the administrative payments
// permission.
func (a Actor) IsAdmin() bool {
	return a.HasPermission(PermissionPayments)
}

// Authorize checks that the actor owns the resource or is an admin. Runs
// before any state-changing logic; the returned error never reveals whether
// the resource exists.
func (a Actor) Authorize(ownerAccountID int64) error {
	if a.AccountID == ownerAccountID || a.IsAdmin() {
		return nil
	}
	return ErrNotEnoughPermissions
}
