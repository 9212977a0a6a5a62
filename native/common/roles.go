package common

import (
	"errors"

	"creditnet/crypto"
)

// ErrUnauthorized is returned when a caller lacks the role a mutation needs.
var ErrUnauthorized = errors.New("unauthorized")

// Named permissions gating the P&L surface. Role assignment itself lives in
// the governance layer; engines only consult the view.
const (
	RolePnLReporter    = "pnl.reporter"
	RoleSharingAdmin   = "pnl.sharingAdmin"
	RoleReserveManager = "pnl.reserveManager"
	RoleTokenMinter    = "token.minter"
)

// RoleView exposes role membership checks to the engines.
type RoleView interface {
	HasRole(role string, addr crypto.Address) bool
}

// RequireRole rejects callers missing the named role. A nil view denies all
// privileged calls so a misconfigured engine fails closed.
func RequireRole(v RoleView, role string, caller crypto.Address) error {
	if v == nil {
		return ErrUnauthorized
	}
	if !v.HasRole(role, caller) {
		return ErrUnauthorized
	}
	return nil
}
