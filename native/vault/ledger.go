package vault

import (
	"math/big"
	"sync"
	"sync/atomic"

	"tenor/core/events"
	"tenor/crypto"
	"tenor/native/common"
)

const moduleName = "vault"

type vaultKey struct {
	market   [crypto.AddressLength]byte
	borrower [crypto.AddressLength]byte
}

// Ledger is the collateral balance sheet. It tracks one vault per
// (market, borrower) pair, custodies the collateral backing every vault and
// enforces the risk parameters supplied by the configured provider.
//
// Mutating operations against the same vault are serialized through a
// per-vault mutex. A ledger-wide latch is held while collateral moves through
// the custodian; any call arriving while the latch is set is rejected with
// ErrReentrantCall.
type Ledger struct {
	custody   crypto.Address
	state     State
	risk      RiskParameterProvider
	prices    PriceSource
	custodian Custodian
	pauses    common.PauseView
	emitter   events.Emitter

	busy atomic.Bool

	lockMu sync.Mutex
	locks  map[vaultKey]*sync.Mutex

	marketMu sync.RWMutex
	markets  map[[crypto.AddressLength]byte]DebtToken
}

// NewLedger constructs a ledger that persists vaults and accounts through
// state, prices collateral through prices and reads risk parameters from risk.
// Collateral is held in the custody account.
func NewLedger(custody crypto.Address, state State, risk RiskParameterProvider, prices PriceSource) (*Ledger, error) {
	if state == nil {
		return nil, ErrNilState
	}
	if risk == nil || !risk.IsRiskParameterProvider() {
		return nil, ErrNotRiskProvider
	}
	return &Ledger{
		custody:   custody,
		state:     state,
		risk:      risk,
		prices:    prices,
		custodian: NewAccountCustodian(state),
		emitter:   events.NoopEmitter{},
		locks:     make(map[vaultKey]*sync.Mutex),
		markets:   make(map[[crypto.AddressLength]byte]DebtToken),
	}, nil
}

// SetEmitter overrides the event emitter. A nil emitter restores the no-op
// default.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	l.emitter = emitter
}

// SetPauses wires the module pause view consulted before every mutation.
func (l *Ledger) SetPauses(pauses common.PauseView) {
	l.pauses = pauses
}

// SetCustodian overrides the transfer backend. A nil custodian restores the
// account-backed default.
func (l *Ledger) SetCustodian(custodian Custodian) {
	if custodian == nil {
		custodian = NewAccountCustodian(l.state)
	}
	l.custodian = custodian
}

// Custody returns the address holding all vault collateral.
func (l *Ledger) Custody() crypto.Address {
	return l.custody
}

// RegisterMarket lists a debt token so vaults can be opened against it.
func (l *Ledger) RegisterMarket(market crypto.Address, token DebtToken) error {
	if token == nil || !token.IsDebtToken() {
		return ErrNotDebtToken
	}
	l.marketMu.Lock()
	defer l.marketMu.Unlock()
	l.markets[market.Key()] = token
	return nil
}

func (l *Ledger) market(market crypto.Address) (DebtToken, error) {
	l.marketMu.RLock()
	defer l.marketMu.RUnlock()
	token, ok := l.markets[market.Key()]
	if !ok {
		return nil, ErrMarketNotRegistered
	}
	return token, nil
}

func (l *Ledger) vaultLock(market, borrower crypto.Address) *sync.Mutex {
	key := vaultKey{market: market.Key(), borrower: borrower.Key()}
	l.lockMu.Lock()
	defer l.lockMu.Unlock()
	mu, ok := l.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[key] = mu
	}
	return mu
}

func (l *Ledger) loadVault(market, borrower crypto.Address) (*Vault, error) {
	vault, err := l.state.GetVault(market, borrower)
	if err != nil {
		return nil, err
	}
	if vault == nil {
		vault = &Vault{}
	}
	vault.ensureDefaults()
	return vault, nil
}

func (l *Ledger) beginMutation() error {
	if err := common.Guard(l.pauses, moduleName); err != nil {
		return err
	}
	if l.busy.Load() {
		return ErrReentrantCall
	}
	return nil
}

// interact runs fn with the reentrancy latch held. Calls entering the ledger
// while fn executes are rejected rather than deadlocked.
func (l *Ledger) interact(fn func() error) error {
	if !l.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer l.busy.Store(false)
	return fn()
}

func (l *Ledger) emit(evt events.Event) {
	if evt == nil {
		return
	}
	l.emitter.Emit(evt)
}

// OpenVault creates an empty vault for borrower in the given market.
func (l *Ledger) OpenVault(market, borrower crypto.Address) error {
	if err := l.beginMutation(); err != nil {
		return err
	}
	if _, err := l.market(market); err != nil {
		return err
	}

	mu := l.vaultLock(market, borrower)
	mu.Lock()
	defer mu.Unlock()

	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return err
	}
	if vault.IsOpen {
		return ErrVaultAlreadyOpen
	}
	staged := vault.Clone()
	staged.IsOpen = true
	if err := l.state.PutVault(market, borrower, staged); err != nil {
		return err
	}
	l.emit(&events.VaultOpened{Market: market, Borrower: borrower})
	return nil
}

// DepositCollateral pulls amount of asset from the borrower into custody and
// credits the vault's free collateral.
func (l *Ledger) DepositCollateral(market, borrower, asset crypto.Address, amount *big.Int) error {
	if err := l.beginMutation(); err != nil {
		return err
	}
	token, err := l.market(market)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	allowed, err := l.risk.DepositCollateralAllowed(market)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrActionNotAllowed
	}
	if _, ok := findCollateral(token, asset); !ok {
		return ErrUnsupportedCollateral
	}

	mu := l.vaultLock(market, borrower)
	mu.Lock()
	defer mu.Unlock()

	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return err
	}
	if !vault.IsOpen {
		return ErrVaultNotOpen
	}
	if !vault.CollateralAsset.IsZero() && !vault.CollateralAsset.Equal(asset) && vault.TotalCollateral().Sign() > 0 {
		return ErrCollateralAssetMismatch
	}

	staged := vault.Clone()
	staged.CollateralAsset = asset
	staged.FreeCollateral = new(big.Int).Add(staged.FreeCollateral, amount)
	if err := l.state.PutVault(market, borrower, staged); err != nil {
		return err
	}
	if err := l.interact(func() error {
		return l.custodian.Transfer(asset, borrower, l.custody, amount)
	}); err != nil {
		if rollbackErr := l.state.PutVault(market, borrower, vault); rollbackErr != nil {
			return rollbackErr
		}
		return err
	}
	l.emit(&events.CollateralDeposited{
		Market:   market,
		Borrower: borrower,
		Asset:    asset,
		Amount:   amount,
	})
	return nil
}

// WithdrawCollateral releases free collateral from custody back to the
// borrower.
func (l *Ledger) WithdrawCollateral(market, borrower crypto.Address, amount *big.Int) error {
	if err := l.beginMutation(); err != nil {
		return err
	}
	if _, err := l.market(market); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}

	mu := l.vaultLock(market, borrower)
	mu.Lock()
	defer mu.Unlock()

	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return err
	}
	if !vault.IsOpen {
		return ErrVaultNotOpen
	}
	if vault.FreeCollateral.Cmp(amount) < 0 {
		return ErrInsufficientFreeCollateral
	}

	staged := vault.Clone()
	staged.FreeCollateral = new(big.Int).Sub(staged.FreeCollateral, amount)
	if err := l.state.PutVault(market, borrower, staged); err != nil {
		return err
	}
	asset := vault.CollateralAsset
	if err := l.interact(func() error {
		return l.custodian.Transfer(asset, l.custody, borrower, amount)
	}); err != nil {
		if rollbackErr := l.state.PutVault(market, borrower, vault); rollbackErr != nil {
			return rollbackErr
		}
		return err
	}
	l.emit(&events.CollateralWithdrawn{
		Market:   market,
		Borrower: borrower,
		Asset:    asset,
		Amount:   amount,
	})
	return nil
}

// LockCollateral moves collateral from the free to the locked bucket so it
// can back debt.
func (l *Ledger) LockCollateral(market, borrower crypto.Address, amount *big.Int) error {
	if err := l.beginMutation(); err != nil {
		return err
	}
	if _, err := l.market(market); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}

	mu := l.vaultLock(market, borrower)
	mu.Lock()
	defer mu.Unlock()

	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return err
	}
	if !vault.IsOpen {
		return ErrVaultNotOpen
	}
	if vault.FreeCollateral.Cmp(amount) < 0 {
		return ErrInsufficientFreeCollateral
	}

	staged := vault.Clone()
	staged.FreeCollateral = new(big.Int).Sub(staged.FreeCollateral, amount)
	staged.LockedCollateral = new(big.Int).Add(staged.LockedCollateral, amount)
	if err := l.state.PutVault(market, borrower, staged); err != nil {
		return err
	}
	l.emit(&events.CollateralLocked{
		Market:   market,
		Borrower: borrower,
		Asset:    vault.CollateralAsset,
		Amount:   amount,
	})
	return nil
}

// FreeCollateral moves collateral from the locked to the free bucket. When
// the vault carries debt the remaining locked collateral must keep the vault
// at or above the market's collateralization threshold.
func (l *Ledger) FreeCollateral(market, borrower crypto.Address, amount *big.Int) error {
	if err := l.beginMutation(); err != nil {
		return err
	}
	token, err := l.market(market)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}

	mu := l.vaultLock(market, borrower)
	mu.Lock()
	defer mu.Unlock()

	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return err
	}
	if !vault.IsOpen {
		return ErrVaultNotOpen
	}
	if vault.LockedCollateral.Cmp(amount) < 0 {
		return ErrInsufficientLockedCollateral
	}

	if vault.Debt.Sign() > 0 {
		remaining := new(big.Int).Sub(vault.LockedCollateral, amount)
		ratio, err := l.hypotheticalRatio(token, vault.CollateralAsset, remaining, vault.Debt)
		if err != nil {
			return err
		}
		threshold, err := l.risk.BondCollateralizationRatio(market)
		if err != nil {
			return err
		}
		if ratio.Cmp(threshold) < 0 {
			return ErrBelowCollateralizationThreshold
		}
	}

	staged := vault.Clone()
	staged.LockedCollateral = new(big.Int).Sub(staged.LockedCollateral, amount)
	staged.FreeCollateral = new(big.Int).Add(staged.FreeCollateral, amount)
	if err := l.state.PutVault(market, borrower, staged); err != nil {
		return err
	}
	l.emit(&events.CollateralFreed{
		Market:   market,
		Borrower: borrower,
		Asset:    vault.CollateralAsset,
		Amount:   amount,
	})
	return nil
}

// SetVaultDebt records the vault's new debt figure. Only the market's debt
// token may call it.
func (l *Ledger) SetVaultDebt(caller, market, borrower crypto.Address, newDebt *big.Int) error {
	if err := l.beginMutation(); err != nil {
		return err
	}
	if _, err := l.market(market); err != nil {
		return err
	}
	if !caller.Equal(market) {
		return ErrNotAuthorized
	}

	mu := l.vaultLock(market, borrower)
	mu.Lock()
	defer mu.Unlock()

	return l.setVaultDebtLocked(market, borrower, newDebt)
}

// setVaultDebtLocked assumes the vault's mutex is held by the caller.
func (l *Ledger) setVaultDebtLocked(market, borrower crypto.Address, newDebt *big.Int) error {
	if newDebt == nil {
		newDebt = big.NewInt(0)
	}
	if newDebt.Sign() < 0 {
		return ErrNegativeDebt
	}

	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return err
	}
	if !vault.IsOpen {
		return ErrVaultNotOpen
	}

	staged := vault.Clone()
	staged.Debt = new(big.Int).Set(newDebt)
	if err := l.state.PutVault(market, borrower, staged); err != nil {
		return err
	}
	l.emit(&events.VaultDebtUpdated{
		Market:   market,
		Borrower: borrower,
		OldDebt:  vault.Debt,
		NewDebt:  newDebt,
	})
	return nil
}

// ClutchCollateral seizes locked collateral from a borrower's vault and pays
// it out to the liquidator. Only the market's debt token may call it.
func (l *Ledger) ClutchCollateral(caller, market, liquidator, borrower crypto.Address, amount *big.Int) error {
	if err := l.beginMutation(); err != nil {
		return err
	}
	if _, err := l.market(market); err != nil {
		return err
	}
	if !caller.Equal(market) {
		return ErrNotAuthorized
	}

	mu := l.vaultLock(market, borrower)
	mu.Lock()
	defer mu.Unlock()

	return l.clutchCollateralLocked(market, liquidator, borrower, amount)
}

// clutchCollateralLocked assumes the vault's mutex is held by the caller.
func (l *Ledger) clutchCollateralLocked(market, liquidator, borrower crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}

	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return err
	}
	if !vault.IsOpen {
		return ErrVaultNotOpen
	}
	if vault.LockedCollateral.Cmp(amount) < 0 {
		return ErrInsufficientLockedCollateral
	}

	staged := vault.Clone()
	staged.LockedCollateral = new(big.Int).Sub(staged.LockedCollateral, amount)
	if err := l.state.PutVault(market, borrower, staged); err != nil {
		return err
	}
	asset := vault.CollateralAsset
	if err := l.interact(func() error {
		return l.custodian.Transfer(asset, l.custody, liquidator, amount)
	}); err != nil {
		if rollbackErr := l.state.PutVault(market, borrower, vault); rollbackErr != nil {
			return rollbackErr
		}
		return err
	}
	l.emit(&events.CollateralClutched{
		Market:     market,
		Liquidator: liquidator,
		Borrower:   borrower,
		Asset:      asset,
		Amount:     amount,
	})
	return nil
}

// VaultTx exposes one vault to the market's debt token while the vault's
// mutex is held, so a read-check-write sequence cannot interleave with other
// writers. It is only valid inside the WithVault callback.
type VaultTx struct {
	ledger   *Ledger
	token    DebtToken
	market   crypto.Address
	borrower crypto.Address
}

// WithVault runs fn with exclusive access to the (market, borrower) vault.
// Only the market's debt token may call it.
func (l *Ledger) WithVault(caller, market, borrower crypto.Address, fn func(*VaultTx) error) error {
	if err := l.beginMutation(); err != nil {
		return err
	}
	token, err := l.market(market)
	if err != nil {
		return err
	}
	if !caller.Equal(market) {
		return ErrNotAuthorized
	}

	mu := l.vaultLock(market, borrower)
	mu.Lock()
	defer mu.Unlock()

	return fn(&VaultTx{ledger: l, token: token, market: market, borrower: borrower})
}

// Vault returns a copy of the vault as it stands inside the transaction.
func (tx *VaultTx) Vault() (*Vault, error) {
	vault, err := tx.ledger.loadVault(tx.market, tx.borrower)
	if err != nil {
		return nil, err
	}
	return vault.Clone(), nil
}

// SetDebt records the vault's new debt figure.
func (tx *VaultTx) SetDebt(newDebt *big.Int) error {
	return tx.ledger.setVaultDebtLocked(tx.market, tx.borrower, newDebt)
}

// Clutch seizes locked collateral and pays it out to the liquidator.
func (tx *VaultTx) Clutch(liquidator crypto.Address, amount *big.Int) error {
	return tx.ledger.clutchCollateralLocked(tx.market, liquidator, tx.borrower, amount)
}

// HypotheticalRatio reports what the collateralization ratio would be if the
// vault held lockedHyp collateral against debtHyp debt.
func (tx *VaultTx) HypotheticalRatio(collateral crypto.Address, lockedHyp, debtHyp *big.Int) (*big.Int, error) {
	return tx.ledger.hypotheticalRatio(tx.token, collateral, lockedHyp, debtHyp)
}

// Clutchable computes the collateral a liquidator may seize for repaying
// repayAmount of the market's underlying.
func (tx *VaultTx) Clutchable(collateral crypto.Address, repayAmount *big.Int) (*big.Int, error) {
	return tx.ledger.ClutchableCollateral(tx.market, collateral, repayAmount)
}

// IsUnderwater reports whether the vault's collateralization has fallen below
// the market's threshold.
func (tx *VaultTx) IsUnderwater() (bool, error) {
	vault, err := tx.ledger.loadVault(tx.market, tx.borrower)
	if err != nil {
		return false, err
	}
	if !vault.IsOpen || vault.Debt.Sign() == 0 {
		return false, nil
	}
	ratio, err := tx.ledger.hypotheticalRatio(tx.token, vault.CollateralAsset, vault.LockedCollateral, vault.Debt)
	if err != nil {
		return false, err
	}
	threshold, err := tx.ledger.risk.BondCollateralizationRatio(tx.market)
	if err != nil {
		return false, err
	}
	return ratio.Cmp(threshold) < 0, nil
}

// GetVault returns a copy of the vault, zero-valued when it was never opened.
func (l *Ledger) GetVault(market, borrower crypto.Address) (*Vault, error) {
	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return nil, err
	}
	return vault.Clone(), nil
}

// CurrentCollateralizationRatio reports the vault's collateralization as an
// 18-decimal ratio of locked collateral value to debt value.
func (l *Ledger) CurrentCollateralizationRatio(market, borrower crypto.Address) (*big.Int, error) {
	token, err := l.market(market)
	if err != nil {
		return nil, err
	}
	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return nil, err
	}
	if !vault.IsOpen {
		return nil, ErrVaultNotOpen
	}
	return l.hypotheticalRatio(token, vault.CollateralAsset, vault.LockedCollateral, vault.Debt)
}

// HypotheticalCollateralizationRatio reports what the collateralization ratio
// would be if the vault held lockedHyp collateral against debtHyp debt.
func (l *Ledger) HypotheticalCollateralizationRatio(market, borrower, collateral crypto.Address, lockedHyp, debtHyp *big.Int) (*big.Int, error) {
	token, err := l.market(market)
	if err != nil {
		return nil, err
	}
	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return nil, err
	}
	if !vault.IsOpen {
		return nil, ErrVaultNotOpen
	}
	return l.hypotheticalRatio(token, collateral, lockedHyp, debtHyp)
}

// IsAccountUnderwater reports whether the vault's collateralization has fallen
// below the market's threshold. Vaults that were never opened or carry no
// debt are never underwater.
func (l *Ledger) IsAccountUnderwater(market, borrower crypto.Address) (bool, error) {
	token, err := l.market(market)
	if err != nil {
		return false, err
	}
	vault, err := l.loadVault(market, borrower)
	if err != nil {
		return false, err
	}
	if !vault.IsOpen || vault.Debt.Sign() == 0 {
		return false, nil
	}
	ratio, err := l.hypotheticalRatio(token, vault.CollateralAsset, vault.LockedCollateral, vault.Debt)
	if err != nil {
		return false, err
	}
	threshold, err := l.risk.BondCollateralizationRatio(market)
	if err != nil {
		return false, err
	}
	return ratio.Cmp(threshold) < 0, nil
}
