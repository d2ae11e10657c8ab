package bond

import "errors"

var (
	// ErrInvalidConfig rejects a token constructed with a bad configuration.
	ErrInvalidConfig = errors.New("bond token: invalid config")
	// ErrZeroAmount rejects amounts that are nil, zero or negative.
	ErrZeroAmount = errors.New("bond token: zero amount")
	// ErrBondMatured rejects operations that require a live bond.
	ErrBondMatured = errors.New("bond token: bond matured")
	// ErrBondNotMatured rejects operations that require a matured bond.
	ErrBondNotMatured = errors.New("bond token: bond not matured")
	// ErrBorrowNotAllowed is returned when the risk parameters gate borrows.
	ErrBorrowNotAllowed = errors.New("bond token: borrow not allowed")
	// ErrRepayNotAllowed is returned when the risk parameters gate repays.
	ErrRepayNotAllowed = errors.New("bond token: repay not allowed")
	// ErrLiquidateNotAllowed is returned when the risk parameters gate
	// liquidations.
	ErrLiquidateNotAllowed = errors.New("bond token: liquidate not allowed")
	// ErrDebtCeilingExceeded is returned when a borrow would push the total
	// supply past the market's debt ceiling.
	ErrDebtCeilingExceeded = errors.New("bond token: debt ceiling exceeded")
	// ErrNoDebt is returned when a repay or liquidation targets a vault
	// without outstanding debt.
	ErrNoDebt = errors.New("bond token: no debt outstanding")
	// ErrInsufficientBalance is returned when an account holds fewer bonds
	// than an operation needs to burn or move.
	ErrInsufficientBalance = errors.New("bond token: insufficient balance")
	// ErrSelfLiquidation rejects borrowers liquidating their own vault.
	ErrSelfLiquidation = errors.New("bond token: self liquidation")
	// ErrVaultNotUnderwater rejects liquidating a healthy vault before the
	// bond matures.
	ErrVaultNotUnderwater = errors.New("bond token: vault not underwater")
)
