package types

import "math/big"

// Account holds the fungible token balances for a protocol participant.
// Balances are keyed by the fixed-width asset address payload and denominated
// in the asset's native decimals. Custody accounts owned by the modules use
// the same representation as end-user accounts.
type Account struct {
	Nonce    uint64
	Balances map[[20]byte]*big.Int
}

// NewAccount returns an account with an initialised balance table.
func NewAccount() *Account {
	return &Account{Balances: make(map[[20]byte]*big.Int)}
}

// Balance returns the stored balance for the asset, never nil.
func (a *Account) Balance(asset [20]byte) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Balances[asset]; ok && bal != nil {
		return bal
	}
	return big.NewInt(0)
}

// SetBalance records the balance for the asset, allocating the table lazily.
func (a *Account) SetBalance(asset [20]byte, amount *big.Int) {
	if a == nil {
		return
	}
	if a.Balances == nil {
		a.Balances = make(map[[20]byte]*big.Int)
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	a.Balances[asset] = new(big.Int).Set(amount)
}

// Clone returns a deep copy so callers can stage mutations without touching
// the stored account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, Balances: make(map[[20]byte]*big.Int, len(a.Balances))}
	for asset, bal := range a.Balances {
		if bal == nil {
			bal = big.NewInt(0)
		}
		clone.Balances[asset] = new(big.Int).Set(bal)
	}
	return clone
}
