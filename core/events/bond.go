package events

import (
	"math/big"

	"tenor/core/types"
	"tenor/crypto"
)

const (
	// TypeBondBorrowed is emitted when a borrower takes on bond debt.
	TypeBondBorrowed = "bond.borrowed"
	// TypeBondRepaid is emitted when bond debt is paid down.
	TypeBondRepaid = "bond.repaid"
	// TypeBondLiquidated is emitted when a liquidator settles debt for
	// clutched collateral.
	TypeBondLiquidated = "bond.liquidated"
	// TypeBondMinted is emitted when new bond tokens enter circulation.
	TypeBondMinted = "bond.minted"
	// TypeBondBurned is emitted when bond tokens are destroyed.
	TypeBondBurned = "bond.burned"
)

type BondBorrowed struct {
	Market   crypto.Address
	Borrower crypto.Address
	Amount   *big.Int
	NewDebt  *big.Int
}

func (BondBorrowed) EventType() string { return TypeBondBorrowed }

func (e BondBorrowed) Event() *types.Event {
	return &types.Event{
		Type: TypeBondBorrowed,
		Attributes: map[string]string{
			"market":   e.Market.String(),
			"borrower": e.Borrower.String(),
			"amount":   amountString(e.Amount),
			"newDebt":  amountString(e.NewDebt),
		},
	}
}

type BondRepaid struct {
	Market   crypto.Address
	Payer    crypto.Address
	Borrower crypto.Address
	Amount   *big.Int
	NewDebt  *big.Int
}

func (BondRepaid) EventType() string { return TypeBondRepaid }

func (e BondRepaid) Event() *types.Event {
	return &types.Event{
		Type: TypeBondRepaid,
		Attributes: map[string]string{
			"market":   e.Market.String(),
			"payer":    e.Payer.String(),
			"borrower": e.Borrower.String(),
			"amount":   amountString(e.Amount),
			"newDebt":  amountString(e.NewDebt),
		},
	}
}

type BondLiquidated struct {
	Market     crypto.Address
	Liquidator crypto.Address
	Borrower   crypto.Address
	Repaid     *big.Int
	Clutched   *big.Int
}

func (BondLiquidated) EventType() string { return TypeBondLiquidated }

func (e BondLiquidated) Event() *types.Event {
	return &types.Event{
		Type: TypeBondLiquidated,
		Attributes: map[string]string{
			"market":     e.Market.String(),
			"liquidator": e.Liquidator.String(),
			"borrower":   e.Borrower.String(),
			"repaid":     amountString(e.Repaid),
			"clutched":   amountString(e.Clutched),
		},
	}
}

type BondMinted struct {
	Market  crypto.Address
	Account crypto.Address
	Amount  *big.Int
}

func (BondMinted) EventType() string { return TypeBondMinted }

func (e BondMinted) Event() *types.Event {
	return &types.Event{
		Type: TypeBondMinted,
		Attributes: map[string]string{
			"market":  e.Market.String(),
			"account": e.Account.String(),
			"amount":  amountString(e.Amount),
		},
	}
}

type BondBurned struct {
	Market  crypto.Address
	Account crypto.Address
	Amount  *big.Int
}

func (BondBurned) EventType() string { return TypeBondBurned }

func (e BondBurned) Event() *types.Event {
	return &types.Event{
		Type: TypeBondBurned,
		Attributes: map[string]string{
			"market":  e.Market.String(),
			"account": e.Account.String(),
			"amount":  amountString(e.Amount),
		},
	}
}
