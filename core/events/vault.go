package events

import (
	"math/big"

	"tenor/core/types"
	"tenor/crypto"
)

const (
	// TypeVaultOpened is emitted when a borrower opens a vault in a market.
	TypeVaultOpened = "vault.opened"
	// TypeCollateralDeposited is emitted when free collateral enters a vault.
	TypeCollateralDeposited = "vault.collateral_deposited"
	// TypeCollateralWithdrawn is emitted when free collateral leaves a vault.
	TypeCollateralWithdrawn = "vault.collateral_withdrawn"
	// TypeCollateralLocked is emitted when collateral moves free -> locked.
	TypeCollateralLocked = "vault.collateral_locked"
	// TypeCollateralFreed is emitted when collateral moves locked -> free.
	TypeCollateralFreed = "vault.collateral_freed"
	// TypeCollateralClutched is emitted when locked collateral is seized.
	TypeCollateralClutched = "vault.collateral_clutched"
	// TypeVaultDebtUpdated is emitted whenever a bond rewrites vault debt.
	TypeVaultDebtUpdated = "vault.debt_updated"
)

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

type VaultOpened struct {
	Market   crypto.Address
	Borrower crypto.Address
}

func (VaultOpened) EventType() string { return TypeVaultOpened }

func (e VaultOpened) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultOpened,
		Attributes: map[string]string{
			"market":   e.Market.String(),
			"borrower": e.Borrower.String(),
		},
	}
}

type CollateralDeposited struct {
	Market   crypto.Address
	Borrower crypto.Address
	Asset    crypto.Address
	Amount   *big.Int
}

func (CollateralDeposited) EventType() string { return TypeCollateralDeposited }

func (e CollateralDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralDeposited,
		Attributes: map[string]string{
			"market":   e.Market.String(),
			"borrower": e.Borrower.String(),
			"asset":    e.Asset.String(),
			"amount":   amountString(e.Amount),
		},
	}
}

type CollateralWithdrawn struct {
	Market   crypto.Address
	Borrower crypto.Address
	Asset    crypto.Address
	Amount   *big.Int
}

func (CollateralWithdrawn) EventType() string { return TypeCollateralWithdrawn }

func (e CollateralWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralWithdrawn,
		Attributes: map[string]string{
			"market":   e.Market.String(),
			"borrower": e.Borrower.String(),
			"asset":    e.Asset.String(),
			"amount":   amountString(e.Amount),
		},
	}
}

type CollateralLocked struct {
	Market   crypto.Address
	Borrower crypto.Address
	Asset    crypto.Address
	Amount   *big.Int
}

func (CollateralLocked) EventType() string { return TypeCollateralLocked }

func (e CollateralLocked) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralLocked,
		Attributes: map[string]string{
			"market":   e.Market.String(),
			"borrower": e.Borrower.String(),
			"asset":    e.Asset.String(),
			"amount":   amountString(e.Amount),
		},
	}
}

type CollateralFreed struct {
	Market   crypto.Address
	Borrower crypto.Address
	Asset    crypto.Address
	Amount   *big.Int
}

func (CollateralFreed) EventType() string { return TypeCollateralFreed }

func (e CollateralFreed) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralFreed,
		Attributes: map[string]string{
			"market":   e.Market.String(),
			"borrower": e.Borrower.String(),
			"asset":    e.Asset.String(),
			"amount":   amountString(e.Amount),
		},
	}
}

type CollateralClutched struct {
	Market     crypto.Address
	Liquidator crypto.Address
	Borrower   crypto.Address
	Asset      crypto.Address
	Amount     *big.Int
}

func (CollateralClutched) EventType() string { return TypeCollateralClutched }

func (e CollateralClutched) Event() *types.Event {
	return &types.Event{
		Type: TypeCollateralClutched,
		Attributes: map[string]string{
			"market":     e.Market.String(),
			"liquidator": e.Liquidator.String(),
			"borrower":   e.Borrower.String(),
			"asset":      e.Asset.String(),
			"amount":     amountString(e.Amount),
		},
	}
}

type VaultDebtUpdated struct {
	Market   crypto.Address
	Borrower crypto.Address
	OldDebt  *big.Int
	NewDebt  *big.Int
}

func (VaultDebtUpdated) EventType() string { return TypeVaultDebtUpdated }

func (e VaultDebtUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDebtUpdated,
		Attributes: map[string]string{
			"market":   e.Market.String(),
			"borrower": e.Borrower.String(),
			"oldDebt":  amountString(e.OldDebt),
			"newDebt":  amountString(e.NewDebt),
		},
	}
}
