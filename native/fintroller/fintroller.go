// Package fintroller holds the governance-controlled risk parameters consumed
// read-only by the vault ledger: per-bond collateralization thresholds, the
// global liquidation incentive, debt ceilings and action gates.
package fintroller

import (
	"errors"
	"math/big"
	"sync"

	"tenor/crypto"
)

var (
	errNotAdmin                   = errors.New("fintroller: caller is not the admin")
	errBondNotListed              = errors.New("fintroller: bond not listed")
	errBondAlreadyListed          = errors.New("fintroller: bond already listed")
	errCollateralizationRatioLow  = errors.New("fintroller: collateralization ratio below 100%")
	errCollateralizationRatioHigh = errors.New("fintroller: collateralization ratio above 10000%")
	errLiquidationIncentiveLow    = errors.New("fintroller: liquidation incentive below 100%")
	errLiquidationIncentiveHigh   = errors.New("fintroller: liquidation incentive above 150%")
)

// Exported views of the sentinel errors for callers matching with errors.Is.
var (
	ErrNotAdmin      = errNotAdmin
	ErrBondNotListed = errBondNotListed
)

var (
	// ratioLowerBound is 1.00e18: 100% collateralization.
	ratioLowerBound = mustBigInt("1000000000000000000")
	// ratioUpperBound is 100e18: 10,000% collateralization.
	ratioUpperBound = mustBigInt("100000000000000000000")
	// incentiveUpperBound is 1.50e18: a 50% liquidation bonus.
	incentiveUpperBound = mustBigInt("1500000000000000000")

	defaultCollateralizationRatio = mustBigInt("1500000000000000000")
	defaultLiquidationIncentive   = mustBigInt("1100000000000000000")
)

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// Bond captures the risk parameters for a single listed market.
type Bond struct {
	CollateralizationRatio *big.Int
	DebtCeiling            *big.Int

	DepositCollateralAllowed bool
	BorrowAllowed            bool
	RepayBorrowAllowed       bool
	LiquidateBorrowAllowed   bool
	RedeemBondsAllowed       bool
	SupplyUnderlyingAllowed  bool
}

// Clone returns a deep copy of the bond record.
func (b *Bond) Clone() *Bond {
	if b == nil {
		return nil
	}
	clone := *b
	if b.CollateralizationRatio != nil {
		clone.CollateralizationRatio = new(big.Int).Set(b.CollateralizationRatio)
	}
	if b.DebtCeiling != nil {
		clone.DebtCeiling = new(big.Int).Set(b.DebtCeiling)
	}
	return &clone
}

// Fintroller is the risk parameter provider. All mutators require the admin
// capability; reads are safe for concurrent use.
type Fintroller struct {
	mu                   sync.RWMutex
	admin                crypto.Address
	bonds                map[[crypto.AddressLength]byte]*Bond
	liquidationIncentive *big.Int
}

// New constructs a fintroller administered by the given address, with the
// default 110% liquidation incentive.
func New(admin crypto.Address) *Fintroller {
	return &Fintroller{
		admin:                admin,
		bonds:                make(map[[crypto.AddressLength]byte]*Bond),
		liquidationIncentive: new(big.Int).Set(defaultLiquidationIncentive),
	}
}

// IsRiskParameterProvider is a sanity marker checked when the provider is
// wired into the ledger.
func (f *Fintroller) IsRiskParameterProvider() bool { return f != nil }

func (f *Fintroller) requireAdmin(caller crypto.Address) error {
	if !caller.Equal(f.admin) {
		return errNotAdmin
	}
	return nil
}

func (f *Fintroller) bond(market crypto.Address) (*Bond, error) {
	record, ok := f.bonds[market.Key()]
	if !ok {
		return nil, errBondNotListed
	}
	return record, nil
}

// ListBond registers a market with default parameters: a 150% threshold, a
// zero debt ceiling (borrowing stays blocked until the admin raises it) and
// every action permitted.
func (f *Fintroller) ListBond(caller, market crypto.Address) error {
	if err := f.requireAdmin(caller); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bonds[market.Key()]; ok {
		return errBondAlreadyListed
	}
	f.bonds[market.Key()] = &Bond{
		CollateralizationRatio:   new(big.Int).Set(defaultCollateralizationRatio),
		DebtCeiling:              big.NewInt(0),
		DepositCollateralAllowed: true,
		BorrowAllowed:            true,
		RepayBorrowAllowed:       true,
		LiquidateBorrowAllowed:   true,
		RedeemBondsAllowed:       true,
		SupplyUnderlyingAllowed:  true,
	}
	return nil
}

// IsBondListed reports whether the market has been listed.
func (f *Fintroller) IsBondListed(market crypto.Address) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.bonds[market.Key()]
	return ok
}

// SetBondCollateralizationRatio updates the threshold mantissa for a listed
// bond, bounded to [100%, 10000%].
func (f *Fintroller) SetBondCollateralizationRatio(caller, market crypto.Address, ratio *big.Int) error {
	if err := f.requireAdmin(caller); err != nil {
		return err
	}
	if ratio == nil || ratio.Cmp(ratioLowerBound) < 0 {
		return errCollateralizationRatioLow
	}
	if ratio.Cmp(ratioUpperBound) > 0 {
		return errCollateralizationRatioHigh
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record, err := f.bond(market)
	if err != nil {
		return err
	}
	record.CollateralizationRatio = new(big.Int).Set(ratio)
	return nil
}

// BondCollateralizationRatio returns the threshold mantissa for the market.
func (f *Fintroller) BondCollateralizationRatio(market crypto.Address) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	record, err := f.bond(market)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(record.CollateralizationRatio), nil
}

// SetBondDebtCeiling caps the aggregate debt the market may carry. A zero
// ceiling keeps borrowing blocked, so listing a bond is not enough to open it
// for business.
func (f *Fintroller) SetBondDebtCeiling(caller, market crypto.Address, ceiling *big.Int) error {
	if err := f.requireAdmin(caller); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record, err := f.bond(market)
	if err != nil {
		return err
	}
	if ceiling == nil {
		ceiling = big.NewInt(0)
	}
	record.DebtCeiling = new(big.Int).Set(ceiling)
	return nil
}

// BondDebtCeiling returns the debt cap for the market.
func (f *Fintroller) BondDebtCeiling(market crypto.Address) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	record, err := f.bond(market)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(record.DebtCeiling), nil
}

// SetLiquidationIncentive updates the global incentive mantissa. Zero is
// accepted and disables clutchable-collateral payouts; non-zero values are
// bounded to [100%, 150%].
func (f *Fintroller) SetLiquidationIncentive(caller crypto.Address, incentive *big.Int) error {
	if err := f.requireAdmin(caller); err != nil {
		return err
	}
	if incentive == nil {
		incentive = big.NewInt(0)
	}
	if incentive.Sign() != 0 {
		if incentive.Cmp(ratioLowerBound) < 0 {
			return errLiquidationIncentiveLow
		}
		if incentive.Cmp(incentiveUpperBound) > 0 {
			return errLiquidationIncentiveHigh
		}
	}
	f.mu.Lock()
	f.liquidationIncentive = new(big.Int).Set(incentive)
	f.mu.Unlock()
	return nil
}

// LiquidationIncentive returns the global incentive mantissa.
func (f *Fintroller) LiquidationIncentive() *big.Int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return new(big.Int).Set(f.liquidationIncentive)
}

// Action identifies a gated protocol flow.
type Action int

const (
	ActionDepositCollateral Action = iota
	ActionBorrow
	ActionRepayBorrow
	ActionLiquidateBorrow
	ActionRedeemBonds
	ActionSupplyUnderlying
)

// SetActionAllowed toggles the gate for one flow on a listed bond.
func (f *Fintroller) SetActionAllowed(caller, market crypto.Address, action Action, allowed bool) error {
	if err := f.requireAdmin(caller); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	record, err := f.bond(market)
	if err != nil {
		return err
	}
	switch action {
	case ActionDepositCollateral:
		record.DepositCollateralAllowed = allowed
	case ActionBorrow:
		record.BorrowAllowed = allowed
	case ActionRepayBorrow:
		record.RepayBorrowAllowed = allowed
	case ActionLiquidateBorrow:
		record.LiquidateBorrowAllowed = allowed
	case ActionRedeemBonds:
		record.RedeemBondsAllowed = allowed
	case ActionSupplyUnderlying:
		record.SupplyUnderlyingAllowed = allowed
	}
	return nil
}

// ActionAllowed reports whether the flow is currently permitted on the market.
func (f *Fintroller) ActionAllowed(market crypto.Address, action Action) (bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	record, err := f.bond(market)
	if err != nil {
		return false, err
	}
	switch action {
	case ActionDepositCollateral:
		return record.DepositCollateralAllowed, nil
	case ActionBorrow:
		return record.BorrowAllowed, nil
	case ActionRepayBorrow:
		return record.RepayBorrowAllowed, nil
	case ActionLiquidateBorrow:
		return record.LiquidateBorrowAllowed, nil
	case ActionRedeemBonds:
		return record.RedeemBondsAllowed, nil
	case ActionSupplyUnderlying:
		return record.SupplyUnderlyingAllowed, nil
	}
	return false, nil
}

// DepositCollateralAllowed reports the deposit gate for the market.
func (f *Fintroller) DepositCollateralAllowed(market crypto.Address) (bool, error) {
	return f.ActionAllowed(market, ActionDepositCollateral)
}

// BorrowAllowed reports the borrow gate for the market.
func (f *Fintroller) BorrowAllowed(market crypto.Address) (bool, error) {
	return f.ActionAllowed(market, ActionBorrow)
}

// RepayBorrowAllowed reports the repay gate for the market.
func (f *Fintroller) RepayBorrowAllowed(market crypto.Address) (bool, error) {
	return f.ActionAllowed(market, ActionRepayBorrow)
}

// LiquidateBorrowAllowed reports the liquidation gate for the market.
func (f *Fintroller) LiquidateBorrowAllowed(market crypto.Address) (bool, error) {
	return f.ActionAllowed(market, ActionLiquidateBorrow)
}

// RedeemBondsAllowed reports the redemption gate for the market.
func (f *Fintroller) RedeemBondsAllowed(market crypto.Address) (bool, error) {
	return f.ActionAllowed(market, ActionRedeemBonds)
}

// SupplyUnderlyingAllowed reports the supply gate for the market.
func (f *Fintroller) SupplyUnderlyingAllowed(market crypto.Address) (bool, error) {
	return f.ActionAllowed(market, ActionSupplyUnderlying)
}

// Bond returns a copy of the listed bond's parameters, primarily for RPC.
func (f *Fintroller) Bond(market crypto.Address) (*Bond, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	record, err := f.bond(market)
	if err != nil {
		return nil, err
	}
	return record.Clone(), nil
}
