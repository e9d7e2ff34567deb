package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cantorfi/core/protocol"
	"cantorfi/native/collateral"
	nativecommon "cantorfi/native/common"
	"cantorfi/native/factory"
	"cantorfi/native/fees"
	"cantorfi/native/staking"
	"cantorfi/native/token"
	"cantorfi/native/vault"
)

// errBadRequest marks malformed input detected by the handlers themselves.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

var (
	notFoundErrors = []error{
		vault.ErrVaultNotFound,
		staking.ErrPoolNotFound,
		token.ErrUnknownToken,
		factory.ErrUnknownToken,
		factory.ErrVaultNotFound,
		factory.ErrNotInitialised,
		fees.ErrCollectorNotFound,
		staking.ErrNoStake,
		collateral.ErrNotInitialised,
		collateral.ErrNoPrice,
	}
	invalidErrors = []error{
		vault.ErrInvalidParams,
		vault.ErrInvalidAmount,
		vault.ErrInvalidLock,
		staking.ErrInvalidAmount,
		staking.ErrInvalidRatio,
		token.ErrInvalidAmount,
		token.ErrInvalidDecimals,
		token.ErrZeroAddress,
		token.ErrOverflow,
		fees.ErrInvalidAmount,
		fees.ErrZeroAddress,
		factory.ErrZeroAddress,
		factory.ErrFeeTooHigh,
		protocol.ErrUnknownSetting,
		protocol.ErrReceiptToken,
		collateral.ErrInvalidParams,
		collateral.ErrInvalidPrice,
	}
	conflictErrors = []error{
		vault.ErrVaultExists,
		vault.ErrVaultInactive,
		vault.ErrInsufficientBalance,
		vault.ErrInsufficientLiquidity,
		vault.ErrMaxLiquidity,
		vault.ErrLockNotExpired,
		vault.ErrNothingToClaim,
		vault.ErrNoDebt,
		vault.ErrUserHasStakedCVT,
		vault.ErrUserHasBorrow,
		vault.ErrExceedsMaxBorrow,
		vault.ErrUtilizationTooHigh,
		vault.ErrExceedsMaxProtocolBorrow,
		vault.ErrStakingNotConfigured,
		vault.ErrPositionSolvent,
		staking.ErrPoolExists,
		staking.ErrVaultNotWired,
		staking.ErrLockNotExpired,
		staking.ErrNothingToClaim,
		staking.ErrNoStakers,
		token.ErrTokenExists,
		token.ErrInsufficientBalance,
		token.ErrInsufficientAllowance,
		fees.ErrCollectorExists,
		fees.ErrExceedsAvailable,
		factory.ErrAlreadyInitialised,
		factory.ErrFactoryNotRegistered,
		factory.ErrPoolDeployed,
		protocol.ErrAlreadyBootstrapped,
		vault.ErrCollateralMoved,
		vault.ErrCrossCollateralDisabled,
		collateral.ErrPriceDeviation,
		collateral.ErrStalePrice,
		collateral.ErrVaultRegistered,
		collateral.ErrInsufficientCollateral,
		collateral.ErrStakedCollateral,
		collateral.ErrHealthy,
		collateral.ErrNoCrossDebt,
	}
)

// classify maps a runtime error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	var unauthorized *nativecommon.UnauthorizedError
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.As(err, &unauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusLocked, "paused"
	case matches(err, notFoundErrors):
		return http.StatusNotFound, "not_found"
	case matches(err, invalidErrors):
		return http.StatusUnprocessableEntity, "invalid_argument"
	case matches(err, conflictErrors):
		return http.StatusConflict, "failed_precondition"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func matches(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := strings.TrimSpace(err.Error())
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
