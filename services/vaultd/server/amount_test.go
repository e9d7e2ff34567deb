package server

import (
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	nativecommon "cantorfi/native/common"
	"cantorfi/native/staking"
	"cantorfi/native/token"
	"cantorfi/native/vault"
)

func TestAmountInputResolve(t *testing.T) {
	v, err := amountInput{Amount: "1_500_000"}.resolve(6)
	require.NoError(t, err)
	require.Equal(t, "1500000", v.String())

	v, err = amountInput{Display: "1.5"}.resolve(6)
	require.NoError(t, err)
	require.Equal(t, "1500000", v.String())

	v, err = amountInput{Display: "2"}.resolve(18)
	require.NoError(t, err)
	require.Equal(t, "2000000000000000000", v.String())

	for _, in := range []amountInput{
		{},
		{Amount: "1", Display: "1"},
		{Amount: "-1"},
		{Amount: "1.5"},
		{Display: "0.0000001"},
		{Display: "-3"},
		{Display: "abc"},
	} {
		_, err := in.resolve(6)
		require.ErrorIs(t, err, errBadRequest, "input %+v", in)
	}
}

func TestNewAmountDisplay(t *testing.T) {
	require.Equal(t, Amount{Raw: "0", Display: "0"}, newAmount(nil, 6))
	require.Equal(t, "0.000001", newAmount(big.NewInt(1), 6).Display)
	require.Equal(t, "425", newAmount(big.NewInt(425_000_000), 6).Display)
}

func TestClassifyErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&nativecommon.UnauthorizedError{Caller: common.HexToAddress("0x01")}, http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", nativecommon.ErrModulePaused), http.StatusLocked},
		{vault.ErrVaultNotFound, http.StatusNotFound},
		{token.ErrUnknownToken, http.StatusNotFound},
		{vault.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{staking.ErrInvalidRatio, http.StatusUnprocessableEntity},
		{vault.ErrExceedsMaxBorrow, http.StatusConflict},
		{staking.ErrLockNotExpired, http.StatusConflict},
		{badRequest("nope"), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := classify(tc.err)
		require.Equal(t, tc.status, status, "error %v", tc.err)
	}
}
