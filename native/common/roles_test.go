package common

import (
	"errors"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

type staticRoles map[ethcommon.Address]bool

func (s staticRoles) HasRole(_ ethcommon.Address, _ Role, account ethcommon.Address) (bool, error) {
	return s[account], nil
}

func TestRequireRole(t *testing.T) {
	scope := ethcommon.HexToAddress("0x01")
	admin := ethcommon.HexToAddress("0xa1")
	user := ethcommon.HexToAddress("0xb2")
	roles := staticRoles{admin: true}

	if err := RequireRole(roles, scope, RoleAdmin, admin); err != nil {
		t.Fatalf("admin rejected: %v", err)
	}
	err := RequireRole(roles, scope, RoleAdmin, user)
	var unauthorized *UnauthorizedError
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected UnauthorizedError, got %v", err)
	}
	if unauthorized.Caller != user || unauthorized.Role != RoleAdmin || unauthorized.Scope != scope {
		t.Fatalf("unexpected error payload: %+v", unauthorized)
	}
	if err := RequireRole(nil, scope, RoleAdmin, admin); err == nil {
		t.Fatalf("expected nil role view to deny")
	}
}

func TestRequireAddress(t *testing.T) {
	scope := ethcommon.HexToAddress("0x01")
	hook := ethcommon.HexToAddress("0x02")
	if err := RequireAddress(scope, "STAKING", hook, hook); err != nil {
		t.Fatalf("expected match to pass: %v", err)
	}
	if err := RequireAddress(scope, "STAKING", ethcommon.Address{}, ethcommon.Address{}); err == nil {
		t.Fatalf("zero expected address must never authorize")
	}
}

func TestGuardAll(t *testing.T) {
	pauses := PauseSet{"vault": true}
	if err := GuardAll(pauses, "protocol", "other"); err != nil {
		t.Fatalf("unexpected pause: %v", err)
	}
	if err := GuardAll(pauses, "protocol", "vault"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected ErrModulePaused, got %v", err)
	}
	if err := Guard(nil, "vault"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}
}
