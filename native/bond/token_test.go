package bond

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"tenor/core/types"
	"tenor/crypto"
	"tenor/native/fintroller"
	"tenor/native/vault"
	"tenor/storage"
)

func makeAddress(prefix crypto.AddressPrefix, fill byte) crypto.Address {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = fill
	}
	return crypto.NewAddress(prefix, raw)
}

func mantissa(units int64) *big.Int {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	return new(big.Int).Mul(big.NewInt(units), one)
}

type staticPrices map[string]*big.Int

func (p staticPrices) GetAdjustedPrice(symbol string) (*big.Int, error) {
	price, ok := p[symbol]
	if !ok {
		return nil, errors.New("no price for " + symbol)
	}
	return new(big.Int).Set(price), nil
}

const bondExpiration = uint64(1_900_000_000)

type tokenFixture struct {
	token      *Token
	ledger     *vault.Ledger
	store      *vault.Store
	risk       *fintroller.Fintroller
	prices     staticPrices
	admin      crypto.Address
	market     crypto.Address
	borrower   crypto.Address
	liquidator crypto.Address
	weth       crypto.Address
	clock      *time.Time
}

// newTokenFixture wires a bond market against a live ledger: WETH collateral
// at $1,000, a $1 underlying, the default 150% threshold and 110% incentive,
// and a 1,000,000 bond debt ceiling. The clock starts well before maturity.
func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	admin := makeAddress(crypto.TenorPrefix, 0x01)
	custody := makeAddress(crypto.TenorPrefix, 0x02)
	market := makeAddress(crypto.TenorPrefix, 0x03)
	borrower := makeAddress(crypto.TenorPrefix, 0x04)
	liquidator := makeAddress(crypto.TenorPrefix, 0x05)
	weth := makeAddress(crypto.AssetPrefix, 0x06)
	usdc := makeAddress(crypto.AssetPrefix, 0x07)

	prices := staticPrices{
		"WETH": mantissa(1_000),
		"USDC": mantissa(1),
	}

	risk := fintroller.New(admin)
	if err := risk.ListBond(admin, market); err != nil {
		t.Fatalf("list bond: %v", err)
	}
	if err := risk.SetBondDebtCeiling(admin, market, mantissa(1_000_000)); err != nil {
		t.Fatalf("set debt ceiling: %v", err)
	}

	store, err := vault.NewStore(storage.NewMemDB())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ledger, err := vault.NewLedger(custody, store, risk, prices)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	token, err := NewToken(TokenConfig{
		Address:    market,
		Name:       "Tenor USDC 2030",
		Symbol:     "tUSDC30",
		Expiration: bondExpiration,
		Underlying: vault.Asset{Address: usdc, Symbol: "USDC", Decimals: 18},
		Collaterals: []vault.Asset{
			{Address: weth, Symbol: "WETH", Decimals: 18},
		},
	}, ledger, risk)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if err := ledger.RegisterMarket(market, token); err != nil {
		t.Fatalf("register market: %v", err)
	}

	clock := time.Unix(int64(bondExpiration)-86_400, 0)
	token.SetClock(func() time.Time { return clock })

	f := &tokenFixture{
		token:      token,
		ledger:     ledger,
		store:      store,
		risk:       risk,
		prices:     prices,
		admin:      admin,
		market:     market,
		borrower:   borrower,
		liquidator: liquidator,
		weth:       weth,
		clock:      &clock,
	}
	return f
}

func (f *tokenFixture) advancePastMaturity(t *testing.T) {
	t.Helper()
	*f.clock = time.Unix(int64(bondExpiration), 0)
}

func (f *tokenFixture) fund(t *testing.T, addr crypto.Address, asset crypto.Address, amount *big.Int) {
	t.Helper()
	account, err := f.store.GetAccount(addr)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if account == nil {
		account = types.NewAccount()
	}
	account.SetBalance(asset.Key(), new(big.Int).Add(account.Balance(asset.Key()), amount))
	if err := f.store.PutAccount(addr, account); err != nil {
		t.Fatalf("store account: %v", err)
	}
}

func (f *tokenFixture) openLockedVault(t *testing.T, collateral *big.Int) {
	t.Helper()
	f.fund(t, f.borrower, f.weth, collateral)
	if err := f.ledger.OpenVault(f.market, f.borrower); err != nil {
		t.Fatalf("open vault: %v", err)
	}
	if err := f.ledger.DepositCollateral(f.market, f.borrower, f.weth, collateral); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := f.ledger.LockCollateral(f.market, f.borrower, collateral); err != nil {
		t.Fatalf("lock: %v", err)
	}
}

func (f *tokenFixture) debt(t *testing.T) *big.Int {
	t.Helper()
	record, err := f.ledger.GetVault(f.market, f.borrower)
	if err != nil {
		t.Fatalf("get vault: %v", err)
	}
	return record.Debt
}

func TestBorrowMintsAgainstLockedCollateral(t *testing.T) {
	f := newTokenFixture(t)
	f.openLockedVault(t, mantissa(1))

	if err := f.token.Borrow(f.borrower, mantissa(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if f.token.BalanceOf(f.borrower).Cmp(mantissa(500)) != 0 {
		t.Fatalf("bonds not minted: %s", f.token.BalanceOf(f.borrower))
	}
	if f.token.TotalSupply().Cmp(mantissa(500)) != 0 {
		t.Fatalf("total supply mismatch: %s", f.token.TotalSupply())
	}
	if f.debt(t).Cmp(mantissa(500)) != 0 {
		t.Fatalf("vault debt mismatch: %s", f.debt(t))
	}

	// $1,000 of collateral cannot carry $700 of debt at a 150% threshold.
	if err := f.token.Borrow(f.borrower, mantissa(200)); !errors.Is(err, vault.ErrBelowCollateralizationThreshold) {
		t.Fatalf("expected ErrBelowCollateralizationThreshold, got %v", err)
	}
	if err := f.token.Borrow(f.borrower, mantissa(100)); err != nil {
		t.Fatalf("second borrow: %v", err)
	}
	if f.debt(t).Cmp(mantissa(600)) != 0 {
		t.Fatalf("debt not accumulated: %s", f.debt(t))
	}
}

func TestBorrowValidation(t *testing.T) {
	f := newTokenFixture(t)

	if err := f.token.Borrow(f.borrower, big.NewInt(0)); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected ErrZeroAmount, got %v", err)
	}
	if err := f.token.Borrow(f.borrower, mantissa(1)); !errors.Is(err, vault.ErrVaultNotOpen) {
		t.Fatalf("expected ErrVaultNotOpen, got %v", err)
	}

	f.openLockedVault(t, mantissa(1))

	if err := f.risk.SetActionAllowed(f.admin, f.market, fintroller.ActionBorrow, false); err != nil {
		t.Fatalf("set action: %v", err)
	}
	if err := f.token.Borrow(f.borrower, mantissa(1)); !errors.Is(err, ErrBorrowNotAllowed) {
		t.Fatalf("expected ErrBorrowNotAllowed, got %v", err)
	}
	if err := f.risk.SetActionAllowed(f.admin, f.market, fintroller.ActionBorrow, true); err != nil {
		t.Fatalf("set action: %v", err)
	}

	if err := f.risk.SetBondDebtCeiling(f.admin, f.market, mantissa(100)); err != nil {
		t.Fatalf("set debt ceiling: %v", err)
	}
	if err := f.token.Borrow(f.borrower, mantissa(200)); !errors.Is(err, ErrDebtCeilingExceeded) {
		t.Fatalf("expected ErrDebtCeilingExceeded, got %v", err)
	}
	if err := f.risk.SetBondDebtCeiling(f.admin, f.market, mantissa(1_000_000)); err != nil {
		t.Fatalf("set debt ceiling: %v", err)
	}

	f.advancePastMaturity(t)
	if err := f.token.Borrow(f.borrower, mantissa(1)); !errors.Is(err, ErrBondMatured) {
		t.Fatalf("expected ErrBondMatured, got %v", err)
	}
}

func TestBorrowRequiresLockedCollateral(t *testing.T) {
	f := newTokenFixture(t)
	f.fund(t, f.borrower, f.weth, mantissa(1))
	if err := f.ledger.OpenVault(f.market, f.borrower); err != nil {
		t.Fatalf("open vault: %v", err)
	}
	if err := f.ledger.DepositCollateral(f.market, f.borrower, f.weth, mantissa(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// Free collateral does not back debt.
	if err := f.token.Borrow(f.borrower, mantissa(1)); !errors.Is(err, vault.ErrBelowCollateralizationThreshold) {
		t.Fatalf("expected ErrBelowCollateralizationThreshold, got %v", err)
	}
}

func TestConcurrentBorrowsRecordAllDebt(t *testing.T) {
	f := newTokenFixture(t)
	f.openLockedVault(t, mantissa(1))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.token.Borrow(f.borrower, mantissa(1)); err != nil {
				t.Errorf("borrow: %v", err)
			}
		}()
	}
	wg.Wait()

	supply := f.token.TotalSupply()
	if supply.Cmp(mantissa(100)) != 0 {
		t.Fatalf("total supply mismatch: %s", supply)
	}
	if f.debt(t).Cmp(supply) != 0 {
		t.Fatalf("vault debt %s does not match the %s bonds minted", f.debt(t), supply)
	}
}

func TestConcurrentBorrowsRespectDebtCeiling(t *testing.T) {
	f := newTokenFixture(t)
	if err := f.risk.SetBondDebtCeiling(f.admin, f.market, mantissa(50)); err != nil {
		t.Fatalf("set debt ceiling: %v", err)
	}
	f.openLockedVault(t, mantissa(1))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.token.Borrow(f.borrower, mantissa(1))
			if err != nil && !errors.Is(err, ErrDebtCeilingExceeded) {
				t.Errorf("borrow: %v", err)
			}
		}()
	}
	wg.Wait()

	if f.token.TotalSupply().Cmp(mantissa(50)) != 0 {
		t.Fatalf("supply did not settle at the ceiling: %s", f.token.TotalSupply())
	}
	if f.debt(t).Cmp(mantissa(50)) != 0 {
		t.Fatalf("vault debt does not match the minted supply: %s", f.debt(t))
	}
}

func TestRepayBorrowClampsToDebt(t *testing.T) {
	f := newTokenFixture(t)
	f.openLockedVault(t, mantissa(1))
	if err := f.token.Borrow(f.borrower, mantissa(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}

	if err := f.token.RepayBorrow(f.borrower, f.borrower, mantissa(600)); err != nil {
		t.Fatalf("repay: %v", err)
	}
	if f.debt(t).Sign() != 0 {
		t.Fatalf("debt not cleared: %s", f.debt(t))
	}
	if f.token.BalanceOf(f.borrower).Sign() != 0 {
		t.Fatalf("bonds not burned: %s", f.token.BalanceOf(f.borrower))
	}
	if f.token.TotalSupply().Sign() != 0 {
		t.Fatalf("total supply not reduced: %s", f.token.TotalSupply())
	}

	if err := f.token.RepayBorrow(f.borrower, f.borrower, mantissa(1)); !errors.Is(err, ErrNoDebt) {
		t.Fatalf("expected ErrNoDebt, got %v", err)
	}
}

func TestRepayBorrowByThirdParty(t *testing.T) {
	f := newTokenFixture(t)
	f.openLockedVault(t, mantissa(1))
	if err := f.token.Borrow(f.borrower, mantissa(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	payer := makeAddress(crypto.TenorPrefix, 0x66)
	if err := f.token.Transfer(f.borrower, payer, mantissa(200)); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	if err := f.token.RepayBorrow(payer, f.borrower, mantissa(200)); err != nil {
		t.Fatalf("third-party repay: %v", err)
	}
	if f.debt(t).Cmp(mantissa(300)) != 0 {
		t.Fatalf("debt mismatch: %s", f.debt(t))
	}
	if f.token.BalanceOf(payer).Sign() != 0 {
		t.Fatalf("payer bonds not burned: %s", f.token.BalanceOf(payer))
	}

	// The payer is out of bonds now.
	if err := f.token.RepayBorrow(payer, f.borrower, mantissa(100)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	if err := f.risk.SetActionAllowed(f.admin, f.market, fintroller.ActionRepayBorrow, false); err != nil {
		t.Fatalf("set action: %v", err)
	}
	if err := f.token.RepayBorrow(f.borrower, f.borrower, mantissa(1)); !errors.Is(err, ErrRepayNotAllowed) {
		t.Fatalf("expected ErrRepayNotAllowed, got %v", err)
	}
}

func TestLiquidateBorrowUnderwaterVault(t *testing.T) {
	f := newTokenFixture(t)
	f.openLockedVault(t, mantissa(1))
	if err := f.token.Borrow(f.borrower, mantissa(500)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := f.token.Mint(f.liquidator, mantissa(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, _, err := f.token.LiquidateBorrow(f.borrower, f.borrower, mantissa(100)); !errors.Is(err, ErrSelfLiquidation) {
		t.Fatalf("expected ErrSelfLiquidation, got %v", err)
	}
	if _, _, err := f.token.LiquidateBorrow(f.liquidator, f.borrower, mantissa(100)); !errors.Is(err, ErrVaultNotUnderwater) {
		t.Fatalf("expected ErrVaultNotUnderwater, got %v", err)
	}

	// WETH collapsing to $600 puts the vault at 120%, below the 150%
	// threshold.
	f.prices["WETH"] = mantissa(600)
	repaid, clutched, err := f.token.LiquidateBorrow(f.liquidator, f.borrower, mantissa(100))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if repaid.Cmp(mantissa(100)) != 0 {
		t.Fatalf("unexpected repaid amount: %s", repaid)
	}
	// $100 repaid with a 110% incentive claims $110 of WETH at $600.
	wantClutched, _ := new(big.Int).SetString("183333333333333333", 10)
	if clutched.Cmp(wantClutched) != 0 {
		t.Fatalf("unexpected clutched amount: %s", clutched)
	}
	if f.debt(t).Cmp(mantissa(400)) != 0 {
		t.Fatalf("debt mismatch after liquidation: %s", f.debt(t))
	}
	if f.token.BalanceOf(f.liquidator).Cmp(mantissa(900)) != 0 {
		t.Fatalf("liquidator bonds mismatch: %s", f.token.BalanceOf(f.liquidator))
	}

	account, err := f.store.GetAccount(f.liquidator)
	if err != nil {
		t.Fatalf("load liquidator account: %v", err)
	}
	if account == nil || account.Balance(f.weth.Key()).Cmp(wantClutched) != 0 {
		t.Fatalf("liquidator did not receive clutched collateral")
	}
}

func TestLiquidateBorrowAfterMaturity(t *testing.T) {
	f := newTokenFixture(t)
	f.openLockedVault(t, mantissa(1))
	if err := f.token.Borrow(f.borrower, mantissa(400)); err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := f.token.Mint(f.liquidator, mantissa(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	// The vault is healthy, but a matured bond is liquidatable regardless.
	f.advancePastMaturity(t)
	repaid, clutched, err := f.token.LiquidateBorrow(f.liquidator, f.borrower, mantissa(1_000))
	if err != nil {
		t.Fatalf("liquidate: %v", err)
	}
	if repaid.Cmp(mantissa(400)) != 0 {
		t.Fatalf("repay not clamped to debt: %s", repaid)
	}
	// $400 repaid with a 110% incentive claims $440 of WETH at $1,000.
	wantClutched, _ := new(big.Int).SetString("440000000000000000", 10)
	if clutched.Cmp(wantClutched) != 0 {
		t.Fatalf("unexpected clutched amount: %s", clutched)
	}
	if f.debt(t).Sign() != 0 {
		t.Fatalf("debt not cleared: %s", f.debt(t))
	}
}

func TestTokenMetadata(t *testing.T) {
	f := newTokenFixture(t)
	if f.token.Decimals() != 18 {
		t.Fatalf("unexpected decimals: %d", f.token.Decimals())
	}
	if !f.token.IsDebtToken() {
		t.Fatalf("token does not identify as debt token")
	}
	scalar, ok := f.token.CollateralPrecisionScalar(f.weth)
	if !ok || scalar.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("unexpected scalar for 18-decimal collateral: %s", scalar)
	}
	if _, ok := f.token.CollateralPrecisionScalar(makeAddress(crypto.AssetPrefix, 0x99)); ok {
		t.Fatalf("scalar reported for unknown collateral")
	}
	if f.token.ExpirationTime() != bondExpiration {
		t.Fatalf("unexpected expiration: %d", f.token.ExpirationTime())
	}
}

func TestNewTokenValidation(t *testing.T) {
	f := newTokenFixture(t)
	cfg := TokenConfig{
		Address:    makeAddress(crypto.TenorPrefix, 0x42),
		Expiration: bondExpiration,
		Underlying: vault.Asset{Address: makeAddress(crypto.AssetPrefix, 0x43), Symbol: "USDC", Decimals: 18},
		Collaterals: []vault.Asset{
			{Address: makeAddress(crypto.AssetPrefix, 0x44), Symbol: "WETH", Decimals: 18},
		},
	}

	broken := cfg
	broken.Expiration = 0
	if _, err := NewToken(broken, f.ledger, f.risk); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for zero expiration, got %v", err)
	}
	broken = cfg
	broken.Collaterals = nil
	if _, err := NewToken(broken, f.ledger, f.risk); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for no collaterals, got %v", err)
	}
	broken = cfg
	broken.Collaterals = []vault.Asset{{Address: makeAddress(crypto.AssetPrefix, 0x44), Symbol: "X", Decimals: 19}}
	if _, err := NewToken(broken, f.ledger, f.risk); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for high-precision collateral, got %v", err)
	}
	if _, err := NewToken(cfg, nil, f.risk); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for nil sheet, got %v", err)
	}
}
