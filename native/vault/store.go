package vault

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"tenor/core/types"
	"tenor/crypto"
	"tenor/storage"
)

const (
	vaultRecordPrefix  = "vault/record/"
	vaultAccountPrefix = "vault/account/"
)

// Store persists vaults and protocol accounts as RLP records in a key-value
// database. It implements State.
type Store struct {
	db storage.Database
}

// NewStore wraps db in a vault state store.
func NewStore(db storage.Database) (*Store, error) {
	if db == nil {
		return nil, ErrNilState
	}
	return &Store{db: db}, nil
}

type storedAddress struct {
	Prefix string
	Bytes  []byte
}

func addressToStored(addr crypto.Address) storedAddress {
	return storedAddress{Prefix: string(addr.Prefix()), Bytes: addr.Bytes()}
}

func (s storedAddress) toAddress() crypto.Address {
	// The zero address round-trips as an empty payload: a vault persisted
	// before its first deposit has no collateral asset yet.
	if len(s.Bytes) != crypto.AddressLength {
		return crypto.Address{}
	}
	return crypto.NewAddress(crypto.AddressPrefix(s.Prefix), s.Bytes)
}

type storedVault struct {
	Debt             *big.Int
	CollateralAsset  storedAddress
	FreeCollateral   *big.Int
	LockedCollateral *big.Int
	IsOpen           bool
}

type storedBalance struct {
	Asset  []byte
	Amount *big.Int
}

type storedAccount struct {
	Nonce    uint64
	Balances []storedBalance
}

func vaultStorageKey(market, borrower crypto.Address) []byte {
	key := make([]byte, 0, len(vaultRecordPrefix)+2*crypto.AddressLength+1)
	key = append(key, vaultRecordPrefix...)
	key = append(key, market.Bytes()...)
	key = append(key, '/')
	key = append(key, borrower.Bytes()...)
	return key
}

func accountStorageKey(addr crypto.Address) []byte {
	key := make([]byte, 0, len(vaultAccountPrefix)+crypto.AddressLength)
	key = append(key, vaultAccountPrefix...)
	key = append(key, addr.Bytes()...)
	return key
}

// GetVault loads the vault stored for (market, borrower), or nil when none
// exists.
func (s *Store) GetVault(market, borrower crypto.Address) (*Vault, error) {
	raw, ok, err := s.db.Get(vaultStorageKey(market, borrower))
	if err != nil {
		return nil, fmt.Errorf("vault store: load vault: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var stored storedVault
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("vault store: decode vault: %w", err)
	}
	vault := &Vault{
		Debt:             stored.Debt,
		CollateralAsset:  stored.CollateralAsset.toAddress(),
		FreeCollateral:   stored.FreeCollateral,
		LockedCollateral: stored.LockedCollateral,
		IsOpen:           stored.IsOpen,
	}
	vault.ensureDefaults()
	return vault, nil
}

// PutVault writes the vault record for (market, borrower). A nil vault
// deletes the record.
func (s *Store) PutVault(market, borrower crypto.Address, vault *Vault) error {
	key := vaultStorageKey(market, borrower)
	if vault == nil {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("vault store: delete vault: %w", err)
		}
		return nil
	}
	clone := vault.Clone()
	clone.ensureDefaults()
	stored := storedVault{
		Debt:             clone.Debt,
		CollateralAsset:  addressToStored(clone.CollateralAsset),
		FreeCollateral:   clone.FreeCollateral,
		LockedCollateral: clone.LockedCollateral,
		IsOpen:           clone.IsOpen,
	}
	raw, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("vault store: encode vault: %w", err)
	}
	if err := s.db.Put(key, raw); err != nil {
		return fmt.Errorf("vault store: store vault: %w", err)
	}
	return nil
}

// GetAccount loads the protocol account at addr, or nil when none exists.
func (s *Store) GetAccount(addr crypto.Address) (*types.Account, error) {
	raw, ok, err := s.db.Get(accountStorageKey(addr))
	if err != nil {
		return nil, fmt.Errorf("vault store: load account: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var stored storedAccount
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, fmt.Errorf("vault store: decode account: %w", err)
	}
	account := types.NewAccount()
	account.Nonce = stored.Nonce
	for _, balance := range stored.Balances {
		if len(balance.Asset) != crypto.AddressLength {
			return nil, fmt.Errorf("vault store: decode account: asset key has %d bytes", len(balance.Asset))
		}
		var key [crypto.AddressLength]byte
		copy(key[:], balance.Asset)
		account.SetBalance(key, balance.Amount)
	}
	return account, nil
}

// PutAccount writes the protocol account at addr. A nil account deletes the
// record.
func (s *Store) PutAccount(addr crypto.Address, account *types.Account) error {
	key := accountStorageKey(addr)
	if account == nil {
		if err := s.db.Delete(key); err != nil {
			return fmt.Errorf("vault store: delete account: %w", err)
		}
		return nil
	}
	stored := storedAccount{
		Nonce:    account.Nonce,
		Balances: make([]storedBalance, 0, len(account.Balances)),
	}
	for asset, amount := range account.Balances {
		if amount == nil || amount.Sign() == 0 {
			continue
		}
		assetKey := make([]byte, crypto.AddressLength)
		copy(assetKey, asset[:])
		stored.Balances = append(stored.Balances, storedBalance{
			Asset:  assetKey,
			Amount: new(big.Int).Set(amount),
		})
	}
	sort.Slice(stored.Balances, func(i, j int) bool {
		return bytes.Compare(stored.Balances[i].Asset, stored.Balances[j].Asset) < 0
	})
	raw, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("vault store: encode account: %w", err)
	}
	if err := s.db.Put(key, raw); err != nil {
		return fmt.Errorf("vault store: store account: %w", err)
	}
	return nil
}
