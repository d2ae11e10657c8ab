package vault

import (
	"math/big"

	"tenor/core/types"
	"tenor/crypto"
)

// Asset describes a token the protocol transacts in: collateral assets and
// market underlyings. Decimals is the native fractional precision, at most 18.
type Asset struct {
	Address  crypto.Address
	Symbol   string
	Decimals uint8
}

// Vault tracks one borrower's position in one market. Debt is denominated in
// the market's 18-decimal bond units; collateral amounts keep the collateral
// asset's native precision.
type Vault struct {
	// Debt is the outstanding bond-unit debt owed by the borrower.
	Debt *big.Int
	// CollateralAsset is the single collateral type held by the vault. Zero
	// until the first deposit, and mutable again only once the vault holds no
	// collateral of it.
	CollateralAsset crypto.Address
	// FreeCollateral is deposited but not counted toward collateralization.
	FreeCollateral *big.Int
	// LockedCollateral backs the debt and is the amount liquidators can clutch.
	LockedCollateral *big.Int
	// IsOpen flips to true exactly once via OpenVault and never back.
	IsOpen bool
}

// Clone returns a deep copy so staged mutations never leak into stored state.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := &Vault{CollateralAsset: v.CollateralAsset, IsOpen: v.IsOpen}
	if v.Debt != nil {
		clone.Debt = new(big.Int).Set(v.Debt)
	}
	if v.FreeCollateral != nil {
		clone.FreeCollateral = new(big.Int).Set(v.FreeCollateral)
	}
	if v.LockedCollateral != nil {
		clone.LockedCollateral = new(big.Int).Set(v.LockedCollateral)
	}
	clone.ensureDefaults()
	return clone
}

func (v *Vault) ensureDefaults() {
	if v.Debt == nil {
		v.Debt = big.NewInt(0)
	}
	if v.FreeCollateral == nil {
		v.FreeCollateral = big.NewInt(0)
	}
	if v.LockedCollateral == nil {
		v.LockedCollateral = big.NewInt(0)
	}
}

// TotalCollateral returns FreeCollateral + LockedCollateral.
func (v *Vault) TotalCollateral() *big.Int {
	total := new(big.Int)
	if v == nil {
		return total
	}
	if v.FreeCollateral != nil {
		total.Add(total, v.FreeCollateral)
	}
	if v.LockedCollateral != nil {
		total.Add(total, v.LockedCollateral)
	}
	return total
}

// DebtToken is the capability surface the ledger consumes from the market's
// fixed-maturity bond contract.
type DebtToken interface {
	// IsDebtToken is a sanity marker checked at registration.
	IsDebtToken() bool
	// ExpirationTime is the unix timestamp at which the bond matures.
	ExpirationTime() uint64
	// Underlying is the asset the bond settles into.
	Underlying() Asset
	// Collaterals is the set of assets the market accepts as collateral.
	Collaterals() []Asset
	// CollateralPrecisionScalar returns 10^(18-decimals) for an accepted
	// collateral, or ok=false when the asset is not accepted.
	CollateralPrecisionScalar(asset crypto.Address) (*big.Int, bool)
}

// RiskParameterProvider supplies per-market limits consumed read-only.
type RiskParameterProvider interface {
	// IsRiskParameterProvider is a sanity marker checked at construction.
	IsRiskParameterProvider() bool
	// BondCollateralizationRatio is the liquidation threshold mantissa.
	BondCollateralizationRatio(market crypto.Address) (*big.Int, error)
	// LiquidationIncentive is the global seizure bonus mantissa; zero
	// disables clutchable-collateral payouts.
	LiquidationIncentive() *big.Int
	// DepositCollateralAllowed gates the deposit flow per market.
	DepositCollateralAllowed(market crypto.Address) (bool, error)
}

// PriceSource resolves a canonical 18-decimal USD price for a symbol.
type PriceSource interface {
	GetAdjustedPrice(symbol string) (*big.Int, error)
}

// State is the persistence boundary for vaults and protocol accounts.
// Lookups return nil (with a nil error) when the record does not exist.
type State interface {
	GetVault(market, borrower crypto.Address) (*Vault, error)
	PutVault(market, borrower crypto.Address, vault *Vault) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// Custodian performs the external asset movement attached to deposits,
// withdrawals and clutches. Implementations must be all-or-nothing: a failed
// transfer leaves both balances untouched.
type Custodian interface {
	Transfer(asset crypto.Address, from, to crypto.Address, amount *big.Int) error
}
