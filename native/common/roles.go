package common

import (
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Role names a capability granted to an account within the scope of a single
// contract address.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMinter Role = "MINTER"
)

// RoleView reports role membership.
type RoleView interface {
	HasRole(scope ethcommon.Address, role Role, account ethcommon.Address) (bool, error)
}

// UnauthorizedError is returned when the caller lacks the role required by a
// privileged operation.
type UnauthorizedError struct {
	Scope  ethcommon.Address
	Role   Role
	Caller ethcommon.Address
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s lacks role %s on %s", e.Caller.Hex(), e.Role, e.Scope.Hex())
}

// RequireRole returns an *UnauthorizedError unless caller holds role within
// scope.
func RequireRole(view RoleView, scope ethcommon.Address, role Role, caller ethcommon.Address) error {
	if view == nil {
		return &UnauthorizedError{Scope: scope, Role: role, Caller: caller}
	}
	ok, err := view.HasRole(scope, role, caller)
	if err != nil {
		return err
	}
	if !ok {
		return &UnauthorizedError{Scope: scope, Role: role, Caller: caller}
	}
	return nil
}

// RequireAddress succeeds only when caller equals expected. It is used for
// contract-to-contract hooks where the capability is the caller identity.
func RequireAddress(scope ethcommon.Address, role Role, expected, caller ethcommon.Address) error {
	if expected == (ethcommon.Address{}) || expected != caller {
		return &UnauthorizedError{Scope: scope, Role: role, Caller: caller}
	}
	return nil
}
