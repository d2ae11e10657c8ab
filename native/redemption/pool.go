package redemption

import (
	"errors"
	"math/big"

	"tenor/core/events"
	"tenor/crypto"
	"tenor/native/common"
	"tenor/native/fixedpoint"
	"tenor/native/vault"
)

const moduleName = "redemption"

var (
	// ErrInvalidConfig rejects a pool constructed with a bad configuration.
	ErrInvalidConfig = errors.New("redemption pool: invalid config")
	// ErrZeroAmount rejects amounts that are nil, zero or that round down to
	// nothing in the underlying's precision.
	ErrZeroAmount = errors.New("redemption pool: zero amount")
	// ErrBondMatured rejects supplying into a matured market.
	ErrBondMatured = errors.New("redemption pool: bond matured")
	// ErrBondNotMatured rejects redeeming before maturity.
	ErrBondNotMatured = errors.New("redemption pool: bond not matured")
	// ErrSupplyNotAllowed is returned when the risk parameters gate supply.
	ErrSupplyNotAllowed = errors.New("redemption pool: supply not allowed")
	// ErrRedeemNotAllowed is returned when the risk parameters gate redeem.
	ErrRedeemNotAllowed = errors.New("redemption pool: redeem not allowed")
	// ErrInsufficientReserve is returned when the pool holds less underlying
	// than a redemption pays out.
	ErrInsufficientReserve = errors.New("redemption pool: insufficient reserve")
)

// BondToken is the slice of the debt token the pool mints and burns. It is
// satisfied by *bond.Token.
type BondToken interface {
	Address() crypto.Address
	Underlying() vault.Asset
	IsMatured() bool
	Mint(account crypto.Address, amount *big.Int) error
	Burn(account crypto.Address, amount *big.Int) error
}

// RiskParameters is the slice of the risk provider the pool consults. It is
// satisfied by *fintroller.Fintroller.
type RiskParameters interface {
	SupplyUnderlyingAllowed(market crypto.Address) (bool, error)
	RedeemBondsAllowed(market crypto.Address) (bool, error)
}

// Pool swaps underlying for bonds one-for-one before maturity and back again
// after it. The underlying sits in the pool's reserve account until redeemed.
type Pool struct {
	reserve   crypto.Address
	token     BondToken
	risk      RiskParameters
	state     vault.State
	custodian vault.Custodian
	emitter   events.Emitter
	pauses    common.PauseView
	scalar    *big.Int
}

// NewPool builds the redemption pool for one bond market. The reserve address
// is the account that custodies supplied underlying.
func NewPool(reserve crypto.Address, token BondToken, risk RiskParameters, state vault.State) (*Pool, error) {
	if token == nil || risk == nil || state == nil || reserve.IsZero() {
		return nil, ErrInvalidConfig
	}
	underlying := token.Underlying()
	if underlying.Decimals > 18 {
		return nil, ErrInvalidConfig
	}
	exp := big.NewInt(int64(18 - underlying.Decimals))
	return &Pool{
		reserve:   reserve,
		token:     token,
		risk:      risk,
		state:     state,
		custodian: vault.NewAccountCustodian(state),
		emitter:   events.NoopEmitter{},
		scalar:    new(big.Int).Exp(big.NewInt(10), exp, nil),
	}, nil
}

// SetEmitter overrides the event emitter. A nil emitter restores the no-op
// default.
func (p *Pool) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	p.emitter = emitter
}

// SetPauses wires the module pause view consulted before every mutation.
func (p *Pool) SetPauses(pauses common.PauseView) {
	p.pauses = pauses
}

// Reserve is the account holding the pool's underlying.
func (p *Pool) Reserve() crypto.Address {
	return p.reserve
}

// UnderlyingReserve reports how much underlying the pool currently holds.
func (p *Pool) UnderlyingReserve() (*big.Int, error) {
	account, err := p.state.GetAccount(p.reserve)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return big.NewInt(0), nil
	}
	return account.Balance(p.token.Underlying().Address.Key()), nil
}

// bondAmountFor converts an underlying amount into 18-decimal bond units.
func (p *Pool) bondAmountFor(underlyingAmount *big.Int) (*big.Int, error) {
	amount, err := fixedpoint.FromBig(underlyingAmount)
	if err != nil {
		return nil, err
	}
	scalar, err := fixedpoint.FromBig(p.scalar)
	if err != nil {
		return nil, err
	}
	bonds, err := fixedpoint.Upscale(amount, scalar)
	if err != nil {
		return nil, err
	}
	return bonds.ToBig(), nil
}

// underlyingAmountFor converts 18-decimal bond units into the underlying's
// native precision, truncating any residue.
func (p *Pool) underlyingAmountFor(bondAmount *big.Int) (*big.Int, error) {
	amount, err := fixedpoint.FromBig(bondAmount)
	if err != nil {
		return nil, err
	}
	scalar, err := fixedpoint.FromBig(p.scalar)
	if err != nil {
		return nil, err
	}
	underlying, err := fixedpoint.Downscale(amount, scalar)
	if err != nil {
		return nil, err
	}
	return underlying.ToBig(), nil
}

// SupplyUnderlying pulls underlying from the supplier into the reserve and
// mints bonds one-for-one. Supply stops at maturity.
func (p *Pool) SupplyUnderlying(supplier crypto.Address, underlyingAmount *big.Int) error {
	if err := common.Guard(p.pauses, moduleName); err != nil {
		return err
	}
	if underlyingAmount == nil || underlyingAmount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if p.token.IsMatured() {
		return ErrBondMatured
	}
	allowed, err := p.risk.SupplyUnderlyingAllowed(p.token.Address())
	if err != nil {
		return err
	}
	if !allowed {
		return ErrSupplyNotAllowed
	}

	bondAmount, err := p.bondAmountFor(underlyingAmount)
	if err != nil {
		return err
	}
	underlying := p.token.Underlying()
	if err := p.custodian.Transfer(underlying.Address, supplier, p.reserve, underlyingAmount); err != nil {
		return err
	}
	if err := p.token.Mint(supplier, bondAmount); err != nil {
		// Return the underlying so the failed supply is a no-op.
		if refundErr := p.custodian.Transfer(underlying.Address, p.reserve, supplier, underlyingAmount); refundErr != nil {
			return refundErr
		}
		return err
	}
	p.emit(events.UnderlyingSupplied{
		Market:           p.token.Address(),
		Account:          supplier,
		UnderlyingAmount: underlyingAmount,
		BondAmount:       bondAmount,
	})
	return nil
}

// RedeemBonds burns matured bonds and pays out underlying one-for-one from
// the reserve. Only the largest multiple of the precision scalar is burned,
// so a residue below one underlying unit stays with the redeemer.
func (p *Pool) RedeemBonds(redeemer crypto.Address, bondAmount *big.Int) error {
	if err := common.Guard(p.pauses, moduleName); err != nil {
		return err
	}
	if bondAmount == nil || bondAmount.Sign() <= 0 {
		return ErrZeroAmount
	}
	if !p.token.IsMatured() {
		return ErrBondNotMatured
	}
	allowed, err := p.risk.RedeemBondsAllowed(p.token.Address())
	if err != nil {
		return err
	}
	if !allowed {
		return ErrRedeemNotAllowed
	}

	underlyingAmount, err := p.underlyingAmountFor(bondAmount)
	if err != nil {
		return err
	}
	if underlyingAmount.Sign() == 0 {
		return ErrZeroAmount
	}
	reserve, err := p.UnderlyingReserve()
	if err != nil {
		return err
	}
	if reserve.Cmp(underlyingAmount) < 0 {
		return ErrInsufficientReserve
	}

	burnAmount := new(big.Int).Mul(underlyingAmount, p.scalar)
	if err := p.token.Burn(redeemer, burnAmount); err != nil {
		return err
	}
	underlying := p.token.Underlying()
	if err := p.custodian.Transfer(underlying.Address, p.reserve, redeemer, underlyingAmount); err != nil {
		if mintErr := p.token.Mint(redeemer, burnAmount); mintErr != nil {
			return mintErr
		}
		return err
	}
	p.emit(events.BondsRedeemed{
		Market:           p.token.Address(),
		Account:          redeemer,
		BondAmount:       burnAmount,
		UnderlyingAmount: underlyingAmount,
	})
	return nil
}

func (p *Pool) emit(evt events.Event) {
	if evt == nil {
		return
	}
	p.emitter.Emit(evt)
}
