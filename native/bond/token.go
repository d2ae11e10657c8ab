package bond

import (
	"math/big"
	"sync"
	"time"

	"tenor/core/events"
	"tenor/crypto"
	"tenor/native/common"
	"tenor/native/vault"
)

const moduleName = "bond"

// BalanceSheet is the slice of the collateral ledger the token drives. Every
// debt flow runs inside WithVault so the vault cannot change between the
// token's checks and its debt write. It is satisfied by *vault.Ledger.
type BalanceSheet interface {
	WithVault(caller, market, borrower crypto.Address, fn func(*vault.VaultTx) error) error
}

// RiskParameters is the slice of the risk provider the token consults. It is
// satisfied by *fintroller.Fintroller.
type RiskParameters interface {
	BorrowAllowed(market crypto.Address) (bool, error)
	RepayBorrowAllowed(market crypto.Address) (bool, error)
	LiquidateBorrowAllowed(market crypto.Address) (bool, error)
	BondDebtCeiling(market crypto.Address) (*big.Int, error)
	BondCollateralizationRatio(market crypto.Address) (*big.Int, error)
}

// TokenConfig describes one fixed-term bond market.
type TokenConfig struct {
	// Address identifies the market on the balance sheet and authorizes the
	// token's ledger calls.
	Address crypto.Address
	Name    string
	Symbol  string
	// Expiration is the unix timestamp at which the bond matures.
	Expiration uint64
	// Underlying is the asset the bond settles into at maturity.
	Underlying vault.Asset
	// Collaterals is the set of assets the market accepts.
	Collaterals []vault.Asset
}

// Token is a fixed-term zero-coupon debt token. Borrowers mint it against
// locked collateral and it redeems one-for-one against the underlying after
// maturity. Bond amounts always carry 18 decimals.
type Token struct {
	address     crypto.Address
	name        string
	symbol      string
	expiration  uint64
	underlying  vault.Asset
	collaterals []vault.Asset
	scalars     map[[crypto.AddressLength]byte]*big.Int

	sheet   BalanceSheet
	risk    RiskParameters
	emitter events.Emitter
	pauses  common.PauseView
	now     func() time.Time

	mu          sync.RWMutex
	balances    map[[crypto.AddressLength]byte]*big.Int
	totalSupply *big.Int
}

// NewToken builds a bond market token bound to the given balance sheet and
// risk parameters.
func NewToken(cfg TokenConfig, sheet BalanceSheet, risk RiskParameters) (*Token, error) {
	if sheet == nil || risk == nil {
		return nil, ErrInvalidConfig
	}
	if cfg.Address.IsZero() || cfg.Expiration == 0 || len(cfg.Collaterals) == 0 {
		return nil, ErrInvalidConfig
	}
	if cfg.Underlying.Decimals > 18 {
		return nil, ErrInvalidConfig
	}
	scalars := make(map[[crypto.AddressLength]byte]*big.Int, len(cfg.Collaterals))
	for _, collateral := range cfg.Collaterals {
		if collateral.Decimals > 18 || collateral.Address.IsZero() {
			return nil, ErrInvalidConfig
		}
		exp := big.NewInt(int64(18 - collateral.Decimals))
		scalars[collateral.Address.Key()] = new(big.Int).Exp(big.NewInt(10), exp, nil)
	}
	return &Token{
		address:     cfg.Address,
		name:        cfg.Name,
		symbol:      cfg.Symbol,
		expiration:  cfg.Expiration,
		underlying:  cfg.Underlying,
		collaterals: append([]vault.Asset(nil), cfg.Collaterals...),
		scalars:     scalars,
		sheet:       sheet,
		risk:        risk,
		emitter:     events.NoopEmitter{},
		now:         time.Now,
		balances:    make(map[[crypto.AddressLength]byte]*big.Int),
		totalSupply: big.NewInt(0),
	}, nil
}

// SetEmitter overrides the event emitter. A nil emitter restores the no-op
// default.
func (t *Token) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	t.emitter = emitter
}

// SetPauses wires the module pause view consulted before every mutation.
func (t *Token) SetPauses(pauses common.PauseView) {
	t.pauses = pauses
}

// SetClock overrides the wall clock used for maturity checks.
func (t *Token) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	t.now = now
}

// IsDebtToken marks the token for balance-sheet registration.
func (t *Token) IsDebtToken() bool { return t != nil }

// Address is the market address the token acts under.
func (t *Token) Address() crypto.Address { return t.address }

func (t *Token) Name() string   { return t.name }
func (t *Token) Symbol() string { return t.symbol }

// Decimals is fixed at 18 for every bond market.
func (t *Token) Decimals() uint8 { return 18 }

// ExpirationTime is the unix timestamp at which the bond matures.
func (t *Token) ExpirationTime() uint64 { return t.expiration }

// IsMatured reports whether the bond has reached its expiration.
func (t *Token) IsMatured() bool {
	return uint64(t.now().Unix()) >= t.expiration
}

// Underlying is the asset the bond settles into.
func (t *Token) Underlying() vault.Asset { return t.underlying }

// Collaterals is the set of assets the market accepts as collateral.
func (t *Token) Collaterals() []vault.Asset {
	return append([]vault.Asset(nil), t.collaterals...)
}

// CollateralPrecisionScalar returns 10^(18-decimals) for an accepted
// collateral.
func (t *Token) CollateralPrecisionScalar(asset crypto.Address) (*big.Int, bool) {
	scalar, ok := t.scalars[asset.Key()]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(scalar), true
}

// TotalSupply is the amount of bonds in circulation.
func (t *Token) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.totalSupply)
}

// BalanceOf returns the bond balance held by addr.
func (t *Token) BalanceOf(addr crypto.Address) *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	balance, ok := t.balances[addr.Key()]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(balance)
}

// Mint creates amount bonds for the account. Only in-process modules hold a
// reference to the token, so minting is not separately gated.
func (t *Token) Mint(account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	t.mu.Lock()
	key := account.Key()
	balance, ok := t.balances[key]
	if !ok {
		balance = big.NewInt(0)
	}
	t.balances[key] = new(big.Int).Add(balance, amount)
	t.totalSupply = new(big.Int).Add(t.totalSupply, amount)
	t.mu.Unlock()
	t.emit(events.BondMinted{Market: t.address, Account: account, Amount: amount})
	return nil
}

// Burn destroys amount bonds held by the account.
func (t *Token) Burn(account crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	t.mu.Lock()
	key := account.Key()
	balance, ok := t.balances[key]
	if !ok || balance.Cmp(amount) < 0 {
		t.mu.Unlock()
		return ErrInsufficientBalance
	}
	t.balances[key] = new(big.Int).Sub(balance, amount)
	t.totalSupply = new(big.Int).Sub(t.totalSupply, amount)
	t.mu.Unlock()
	t.emit(events.BondBurned{Market: t.address, Account: account, Amount: amount})
	return nil
}

// Transfer moves bonds between accounts without touching the balance sheet.
func (t *Token) Transfer(from, to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fromKey := from.Key()
	balance, ok := t.balances[fromKey]
	if !ok || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	toKey := to.Key()
	toBalance, ok := t.balances[toKey]
	if !ok {
		toBalance = big.NewInt(0)
	}
	t.balances[fromKey] = new(big.Int).Sub(balance, amount)
	t.balances[toKey] = new(big.Int).Add(toBalance, amount)
	return nil
}

// Borrow mints amount bonds to the borrower against their locked collateral
// and raises the vault debt accordingly. Borrowing stops at maturity.
func (t *Token) Borrow(borrower crypto.Address, amount *big.Int) error {
	if err := common.Guard(t.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if t.IsMatured() {
		return ErrBondMatured
	}
	allowed, err := t.risk.BorrowAllowed(t.address)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrBorrowNotAllowed
	}

	return t.sheet.WithVault(t.address, t.address, borrower, func(tx *vault.VaultTx) error {
		record, err := tx.Vault()
		if err != nil {
			return err
		}
		if !record.IsOpen {
			return vault.ErrVaultNotOpen
		}

		ceiling, err := t.risk.BondDebtCeiling(t.address)
		if err != nil {
			return err
		}
		hypotheticalSupply := new(big.Int).Add(t.TotalSupply(), amount)
		if ceiling == nil || hypotheticalSupply.Cmp(ceiling) > 0 {
			return ErrDebtCeilingExceeded
		}

		newDebt := new(big.Int).Add(record.Debt, amount)
		ratio, err := tx.HypotheticalRatio(record.CollateralAsset, record.LockedCollateral, newDebt)
		if err != nil {
			return err
		}
		threshold, err := t.risk.BondCollateralizationRatio(t.address)
		if err != nil {
			return err
		}
		if ratio.Cmp(threshold) < 0 {
			return vault.ErrBelowCollateralizationThreshold
		}

		if err := t.mintChecked(borrower, amount, ceiling); err != nil {
			return err
		}
		if err := tx.SetDebt(newDebt); err != nil {
			if burnErr := t.Burn(borrower, amount); burnErr != nil {
				return burnErr
			}
			return err
		}
		t.emit(events.BondBorrowed{Market: t.address, Borrower: borrower, Amount: amount, NewDebt: newDebt})
		return nil
	})
}

// mintChecked creates bonds only if the resulting supply stays at or below
// the debt ceiling. The check and the mint share one critical section so
// concurrent borrows against different vaults cannot overshoot the ceiling
// together.
func (t *Token) mintChecked(account crypto.Address, amount, ceiling *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	t.mu.Lock()
	hypothetical := new(big.Int).Add(t.totalSupply, amount)
	if ceiling == nil || hypothetical.Cmp(ceiling) > 0 {
		t.mu.Unlock()
		return ErrDebtCeilingExceeded
	}
	key := account.Key()
	balance, ok := t.balances[key]
	if !ok {
		balance = big.NewInt(0)
	}
	t.balances[key] = new(big.Int).Add(balance, amount)
	t.totalSupply = hypothetical
	t.mu.Unlock()
	t.emit(events.BondMinted{Market: t.address, Account: account, Amount: amount})
	return nil
}

// RepayBorrow burns bonds from the payer and lowers the borrower's vault
// debt. Amounts above the outstanding debt are clamped to it.
func (t *Token) RepayBorrow(payer, borrower crypto.Address, amount *big.Int) error {
	if err := common.Guard(t.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	allowed, err := t.risk.RepayBorrowAllowed(t.address)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrRepayNotAllowed
	}

	return t.sheet.WithVault(t.address, t.address, borrower, func(tx *vault.VaultTx) error {
		record, err := tx.Vault()
		if err != nil {
			return err
		}
		if !record.IsOpen {
			return vault.ErrVaultNotOpen
		}
		if record.Debt.Sign() == 0 {
			return ErrNoDebt
		}

		repay := new(big.Int).Set(amount)
		if repay.Cmp(record.Debt) > 0 {
			repay.Set(record.Debt)
		}
		if err := t.Burn(payer, repay); err != nil {
			return err
		}
		newDebt := new(big.Int).Sub(record.Debt, repay)
		if err := tx.SetDebt(newDebt); err != nil {
			// Hand the bonds back so the failed repay is a no-op.
			if mintErr := t.Mint(payer, repay); mintErr != nil {
				return mintErr
			}
			return err
		}
		t.emit(events.BondRepaid{Market: t.address, Payer: payer, Borrower: borrower, Amount: repay, NewDebt: newDebt})
		return nil
	})
}

// LiquidateBorrow lets a liquidator repay up to the full debt of an
// underwater or matured vault in exchange for clutched collateral. It
// returns the debt actually repaid and the collateral seized.
func (t *Token) LiquidateBorrow(liquidator, borrower crypto.Address, amount *big.Int) (*big.Int, *big.Int, error) {
	if err := common.Guard(t.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrZeroAmount
	}
	if liquidator.Equal(borrower) {
		return nil, nil, ErrSelfLiquidation
	}
	allowed, err := t.risk.LiquidateBorrowAllowed(t.address)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, ErrLiquidateNotAllowed
	}

	var repaid, clutched *big.Int
	err = t.sheet.WithVault(t.address, t.address, borrower, func(tx *vault.VaultTx) error {
		record, err := tx.Vault()
		if err != nil {
			return err
		}
		if !record.IsOpen {
			return vault.ErrVaultNotOpen
		}
		if record.Debt.Sign() == 0 {
			return ErrNoDebt
		}
		if !t.IsMatured() {
			underwater, err := tx.IsUnderwater()
			if err != nil {
				return err
			}
			if !underwater {
				return ErrVaultNotUnderwater
			}
		}

		repay := new(big.Int).Set(amount)
		if repay.Cmp(record.Debt) > 0 {
			repay.Set(record.Debt)
		}
		seizable, err := tx.Clutchable(record.CollateralAsset, repay)
		if err != nil {
			return err
		}
		if seizable.Cmp(record.LockedCollateral) > 0 {
			return vault.ErrInsufficientLockedCollateral
		}

		if err := t.Burn(liquidator, repay); err != nil {
			return err
		}
		newDebt := new(big.Int).Sub(record.Debt, repay)
		if err := tx.SetDebt(newDebt); err != nil {
			if mintErr := t.Mint(liquidator, repay); mintErr != nil {
				return mintErr
			}
			return err
		}
		if seizable.Sign() > 0 {
			if err := tx.Clutch(liquidator, seizable); err != nil {
				if restoreErr := tx.SetDebt(record.Debt); restoreErr != nil {
					return restoreErr
				}
				if mintErr := t.Mint(liquidator, repay); mintErr != nil {
					return mintErr
				}
				return err
			}
		}
		repaid, clutched = repay, seizable
		t.emit(events.BondLiquidated{Market: t.address, Liquidator: liquidator, Borrower: borrower, Repaid: repay, Clutched: seizable})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return repaid, clutched, nil
}

func (t *Token) emit(evt events.Event) {
	if evt == nil {
		return
	}
	t.emitter.Emit(evt)
}
