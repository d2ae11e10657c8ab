package config

import (
	"fmt"
	"math/big"
	"strings"

	"tenor/crypto"
)

// ValidateConfig rejects configurations the daemon could not wire cleanly.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(cfg.AdminAddress) != "" {
		if _, err := crypto.DecodeAddress(cfg.AdminAddress); err != nil {
			return fmt.Errorf("config: AdminAddress: %w", err)
		}
	}
	if strings.TrimSpace(cfg.CustodyAddress) != "" {
		if _, err := crypto.DecodeAddress(cfg.CustodyAddress); err != nil {
			return fmt.Errorf("config: CustodyAddress: %w", err)
		}
	}
	if cfg.LiquidationIncentive != "" {
		if _, err := ParseMantissa(cfg.LiquidationIncentive); err != nil {
			return fmt.Errorf("config: LiquidationIncentive: %w", err)
		}
	}

	seen := make(map[string]struct{}, len(cfg.Markets))
	for i, market := range cfg.Markets {
		if err := validateMarket(market); err != nil {
			return fmt.Errorf("config: markets[%d] (%s): %w", i, market.Symbol, err)
		}
		if _, dup := seen[market.Address]; dup {
			return fmt.Errorf("config: markets[%d]: duplicate address %s", i, market.Address)
		}
		seen[market.Address] = struct{}{}
	}
	for i, feed := range cfg.Feeds {
		if err := validateFeed(feed); err != nil {
			return fmt.Errorf("config: feeds[%d] (%s): %w", i, feed.Symbol, err)
		}
	}
	return nil
}

func validateMarket(market MarketConfig) error {
	if _, err := crypto.DecodeAddress(market.Address); err != nil {
		return fmt.Errorf("Address: %w", err)
	}
	if _, err := crypto.DecodeAddress(market.ReserveAddress); err != nil {
		return fmt.Errorf("ReserveAddress: %w", err)
	}
	if market.Expiration == 0 {
		return fmt.Errorf("Expiration must be set")
	}
	if market.CollateralizationRatio != "" {
		if _, err := ParseMantissa(market.CollateralizationRatio); err != nil {
			return fmt.Errorf("CollateralizationRatio: %w", err)
		}
	}
	if market.DebtCeiling != "" {
		if _, err := ParseMantissa(market.DebtCeiling); err != nil {
			return fmt.Errorf("DebtCeiling: %w", err)
		}
	}
	if err := validateAsset(market.Underlying); err != nil {
		return fmt.Errorf("Underlying: %w", err)
	}
	if len(market.Collaterals) == 0 {
		return fmt.Errorf("at least one collateral required")
	}
	for _, collateral := range market.Collaterals {
		if err := validateAsset(collateral); err != nil {
			return fmt.Errorf("collateral %s: %w", collateral.Symbol, err)
		}
	}
	return nil
}

func validateAsset(asset AssetConfig) error {
	if _, err := crypto.DecodeAddress(asset.Address); err != nil {
		return fmt.Errorf("Address: %w", err)
	}
	if strings.TrimSpace(asset.Symbol) == "" {
		return fmt.Errorf("Symbol must be set")
	}
	if asset.Decimals > 18 {
		return fmt.Errorf("Decimals above 18")
	}
	return nil
}

func validateFeed(feed FeedConfig) error {
	if strings.TrimSpace(feed.Symbol) == "" {
		return fmt.Errorf("Symbol must be set")
	}
	if _, err := crypto.DecodeAddress(feed.Asset); err != nil {
		return fmt.Errorf("Asset: %w", err)
	}
	if feed.Decimals > 18 {
		return fmt.Errorf("Decimals above 18")
	}
	if feed.Price != "" {
		if _, err := ParseMantissa(feed.Price); err != nil {
			return fmt.Errorf("Price: %w", err)
		}
	}
	return nil
}

// ParseMantissa parses a non-negative base-10 integer amount.
func ParseMantissa(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("empty amount")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", value)
	}
	return amount, nil
}
