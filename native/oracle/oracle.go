// Package oracle provides the USD price view consumed by the vault ledger.
// Feeds report prices in their own decimal precision; the registry upscales
// every answer to the canonical 18-decimal mantissa before returning it.
package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"tenor/crypto"
	"tenor/native/fixedpoint"
)

var (
	// ErrFeedNotFound indicates the symbol has no registered feed.
	ErrFeedNotFound = errors.New("oracle: price feed not found")
	// ErrFeedDisabled indicates the feed exists but has been switched off.
	ErrFeedDisabled = errors.New("oracle: price feed disabled")
	// ErrInvalidPrice indicates the feed answered with a non-positive price.
	ErrInvalidPrice = errors.New("oracle: invalid price")
)

// PriceFeed is the upstream source for a single symbol's USD price.
type PriceFeed interface {
	// LatestPrice returns the most recent price in the feed's own decimals.
	LatestPrice() (*big.Int, error)
	// Decimals reports the feed's fractional precision, at most 18.
	Decimals() uint8
	// Description names the feed for diagnostics.
	Description() string
}

// Feed is the registry record for a symbol: the upstream aggregator, the
// asset it prices and an operator-controlled kill switch.
type Feed struct {
	Feed     PriceFeed
	Asset    crypto.Address
	Disabled bool
}

// Registry maps symbols to price feeds. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	feeds map[string]Feed
}

// NewRegistry constructs an empty feed registry.
func NewRegistry() *Registry {
	return &Registry{feeds: make(map[string]Feed)}
}

func normaliseSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// SetFeed registers or replaces the feed serving the symbol. Registering a
// feed re-enables a previously disabled symbol.
func (r *Registry) SetFeed(symbol string, asset crypto.Address, feed PriceFeed) error {
	if r == nil {
		return fmt.Errorf("oracle: registry not configured")
	}
	key := normaliseSymbol(symbol)
	if key == "" {
		return fmt.Errorf("oracle: symbol required")
	}
	if feed == nil {
		return fmt.Errorf("oracle: feed required for %s", key)
	}
	if feed.Decimals() > fixedpoint.Decimals {
		return fixedpoint.ErrDecimalsOutOfRange
	}
	r.mu.Lock()
	r.feeds[key] = Feed{Feed: feed, Asset: asset}
	r.mu.Unlock()
	return nil
}

// DeleteFeed removes the feed for the symbol.
func (r *Registry) DeleteFeed(symbol string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.feeds, normaliseSymbol(symbol))
	r.mu.Unlock()
}

// SetDisabled flips the kill switch for the symbol's feed.
func (r *Registry) SetDisabled(symbol string, disabled bool) error {
	if r == nil {
		return fmt.Errorf("oracle: registry not configured")
	}
	key := normaliseSymbol(symbol)
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.feeds[key]
	if !ok {
		return ErrFeedNotFound
	}
	record.Disabled = disabled
	r.feeds[key] = record
	return nil
}

// GetFeed returns the registry record for the symbol.
func (r *Registry) GetFeed(symbol string) (Feed, bool) {
	if r == nil {
		return Feed{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.feeds[normaliseSymbol(symbol)]
	return record, ok
}

// GetAdjustedPrice returns the symbol's USD price upscaled to the canonical
// 18-decimal precision. The call fails when the feed is missing, disabled, or
// answers with a non-positive value.
func (r *Registry) GetAdjustedPrice(symbol string) (*big.Int, error) {
	record, ok := r.GetFeed(symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, normaliseSymbol(symbol))
	}
	if record.Disabled {
		return nil, fmt.Errorf("%w: %s", ErrFeedDisabled, normaliseSymbol(symbol))
	}
	raw, err := record.Feed.LatestPrice()
	if err != nil {
		return nil, fmt.Errorf("oracle: %s: %w", record.Feed.Description(), err)
	}
	if raw == nil || raw.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrice, normaliseSymbol(symbol))
	}
	price, err := fixedpoint.FromBig(raw)
	if err != nil {
		return nil, err
	}
	scalar, err := fixedpoint.ScalarFor(record.Feed.Decimals())
	if err != nil {
		return nil, err
	}
	adjusted, err := fixedpoint.Upscale(price, scalar)
	if err != nil {
		return nil, err
	}
	return adjusted.ToBig(), nil
}

// ManualFeed is an in-memory feed used in tests and for manual overrides
// during incident response.
type ManualFeed struct {
	mu          sync.RWMutex
	price       *big.Int
	decimals    uint8
	description string
	updatedAt   time.Time
}

// NewManualFeed constructs a manual feed reporting at the given decimals.
func NewManualFeed(description string, decimals uint8) *ManualFeed {
	return &ManualFeed{description: strings.TrimSpace(description), decimals: decimals}
}

// Set stores the price. The value is copied defensively.
func (f *ManualFeed) Set(price *big.Int) {
	if f == nil || price == nil {
		return
	}
	f.mu.Lock()
	f.price = new(big.Int).Set(price)
	f.updatedAt = time.Now().UTC()
	f.mu.Unlock()
}

// SetDecimal parses a base-10 integer string and stores it as the price.
func (f *ManualFeed) SetDecimal(price string) error {
	parsed, ok := new(big.Int).SetString(strings.TrimSpace(price), 10)
	if !ok {
		return fmt.Errorf("oracle: invalid manual price %q", price)
	}
	f.Set(parsed)
	return nil
}

// LatestPrice implements the PriceFeed interface.
func (f *ManualFeed) LatestPrice() (*big.Int, error) {
	if f == nil {
		return nil, fmt.Errorf("oracle: manual feed not configured")
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.price == nil {
		return nil, fmt.Errorf("oracle: manual feed %s has no price", f.description)
	}
	return new(big.Int).Set(f.price), nil
}

// Decimals implements the PriceFeed interface.
func (f *ManualFeed) Decimals() uint8 { return f.decimals }

// Description implements the PriceFeed interface.
func (f *ManualFeed) Description() string { return f.description }

// UpdatedAt reports when the manual price was last set.
func (f *ManualFeed) UpdatedAt() time.Time {
	if f == nil {
		return time.Time{}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.updatedAt
}
