package vault

import "errors"

// The ledger never wraps business failures in free text: every rejection maps
// to exactly one sentinel below so callers can branch with errors.Is.
var (
	// Precondition violations, caller-correctable.
	ErrVaultNotOpen                 = errors.New("balance sheet: vault not open")
	ErrVaultAlreadyOpen             = errors.New("balance sheet: vault already open")
	ErrZeroAmount                   = errors.New("balance sheet: amount must be positive")
	ErrZeroDebt                     = errors.New("balance sheet: debt must be positive")
	ErrInsufficientFreeCollateral   = errors.New("balance sheet: insufficient free collateral")
	ErrInsufficientLockedCollateral = errors.New("balance sheet: insufficient locked collateral")
	ErrUnsupportedCollateral        = errors.New("balance sheet: collateral not accepted by market")
	ErrCollateralAssetMismatch      = errors.New("balance sheet: vault holds a different collateral asset")
	ErrNegativeDebt                 = errors.New("balance sheet: debt must not be negative")

	// Authorization violations.
	ErrNotAuthorized       = errors.New("balance sheet: caller is not the market debt token")
	ErrMarketNotRegistered = errors.New("balance sheet: market not registered")

	// Risk-policy violations.
	ErrActionNotAllowed                = errors.New("balance sheet: action not allowed by risk parameters")
	ErrBelowCollateralizationThreshold = errors.New("balance sheet: collateralization ratio below threshold")

	// Dependent-system failures.
	ErrInsufficientBalance = errors.New("balance sheet: insufficient asset balance")
	ErrReentrantCall       = errors.New("balance sheet: reentrant call rejected")

	// Wiring failures.
	ErrNilState             = errors.New("balance sheet: state not configured")
	ErrNotRiskProvider      = errors.New("balance sheet: risk parameter provider failed sanity check")
	ErrNotDebtToken         = errors.New("balance sheet: token failed debt token sanity check")
	ErrUnknownPrecisionData = errors.New("balance sheet: missing precision scalar for collateral")
)
