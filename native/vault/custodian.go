package vault

import (
	"math/big"

	"tenor/core/types"
	"tenor/crypto"
)

// accountCustodian moves balances between protocol accounts through the state
// layer. It is the default Custodian when none is injected.
type accountCustodian struct {
	state State
}

// NewAccountCustodian returns a custodian that settles transfers against the
// account table in the given state.
func NewAccountCustodian(state State) Custodian {
	return &accountCustodian{state: state}
}

func (c *accountCustodian) Transfer(asset crypto.Address, from, to crypto.Address, amount *big.Int) error {
	if c == nil || c.state == nil {
		return ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}

	fromAcc, err := c.state.GetAccount(from)
	if err != nil {
		return err
	}
	if fromAcc == nil {
		return ErrInsufficientBalance
	}
	key := asset.Key()
	balance := fromAcc.Balance(key)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	// A self-transfer settles to the same balance; staging two copies of the
	// account would credit the amount twice.
	if from.Equal(to) {
		return nil
	}

	toAcc, err := c.state.GetAccount(to)
	if err != nil {
		return err
	}
	if toAcc == nil {
		toAcc = types.NewAccount()
	}

	stagedFrom := fromAcc.Clone()
	stagedFrom.SetBalance(key, new(big.Int).Sub(balance, amount))
	stagedTo := toAcc.Clone()
	stagedTo.SetBalance(key, new(big.Int).Add(stagedTo.Balance(key), amount))

	if err := c.state.PutAccount(from, stagedFrom); err != nil {
		return err
	}
	if err := c.state.PutAccount(to, stagedTo); err != nil {
		// Restore the sender so a half-applied transfer never survives.
		if restoreErr := c.state.PutAccount(from, fromAcc); restoreErr != nil {
			return restoreErr
		}
		return err
	}
	return nil
}
