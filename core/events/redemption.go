package events

import (
	"math/big"

	"tenor/core/types"
	"tenor/crypto"
)

const (
	// TypeUnderlyingSupplied is emitted when underlying is swapped for bonds.
	TypeUnderlyingSupplied = "redemption.underlying_supplied"
	// TypeBondsRedeemed is emitted when matured bonds are swapped back.
	TypeBondsRedeemed = "redemption.bonds_redeemed"
)

type UnderlyingSupplied struct {
	Market           crypto.Address
	Account          crypto.Address
	UnderlyingAmount *big.Int
	BondAmount       *big.Int
}

func (UnderlyingSupplied) EventType() string { return TypeUnderlyingSupplied }

func (e UnderlyingSupplied) Event() *types.Event {
	return &types.Event{
		Type: TypeUnderlyingSupplied,
		Attributes: map[string]string{
			"market":           e.Market.String(),
			"account":          e.Account.String(),
			"underlyingAmount": amountString(e.UnderlyingAmount),
			"bondAmount":       amountString(e.BondAmount),
		},
	}
}

type BondsRedeemed struct {
	Market           crypto.Address
	Account          crypto.Address
	BondAmount       *big.Int
	UnderlyingAmount *big.Int
}

func (BondsRedeemed) EventType() string { return TypeBondsRedeemed }

func (e BondsRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeBondsRedeemed,
		Attributes: map[string]string{
			"market":           e.Market.String(),
			"account":          e.Account.String(),
			"bondAmount":       amountString(e.BondAmount),
			"underlyingAmount": amountString(e.UnderlyingAmount),
		},
	}
}
