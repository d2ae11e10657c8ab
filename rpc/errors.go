package rpc

import (
	"errors"
	"net/http"

	"tenor/native/bond"
	"tenor/native/common"
	"tenor/native/oracle"
	"tenor/native/redemption"
	"tenor/native/vault"
)

// writeModuleError translates module sentinel errors onto the wire. Caller
// mistakes map to invalid-params, pauses to service-unavailable, and
// everything else to a generic server error.
func writeModuleError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, common.ErrModulePaused):
		writeError(w, http.StatusServiceUnavailable, id, codeServerError, err.Error(), nil)
	case isCallerError(err):
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
	default:
		writeError(w, http.StatusBadRequest, id, codeServerError, err.Error(), nil)
	}
}

func isCallerError(err error) bool {
	callerErrors := []error{
		vault.ErrZeroAmount,
		vault.ErrZeroDebt,
		vault.ErrNegativeDebt,
		vault.ErrVaultNotOpen,
		vault.ErrVaultAlreadyOpen,
		vault.ErrUnsupportedCollateral,
		vault.ErrCollateralAssetMismatch,
		vault.ErrMarketNotRegistered,
		vault.ErrNotAuthorized,
		bond.ErrZeroAmount,
		bond.ErrSelfLiquidation,
		redemption.ErrZeroAmount,
		oracle.ErrFeedNotFound,
	}
	for _, candidate := range callerErrors {
		if errors.Is(err, candidate) {
			return true
		}
	}
	return false
}
