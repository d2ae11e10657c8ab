package config

// AssetConfig describes one on-ledger asset.
type AssetConfig struct {
	Address  string `toml:"Address"`
	Symbol   string `toml:"Symbol"`
	Decimals uint8  `toml:"Decimals"`
}

// MarketConfig describes one fixed-term bond market. Mantissa fields are
// 18-decimal amounts written as decimal strings so TOML never loses
// precision.
type MarketConfig struct {
	Name    string `toml:"Name"`
	Symbol  string `toml:"Symbol"`
	Address string `toml:"Address"`
	// Expiration is the unix timestamp at which the bond matures.
	Expiration uint64 `toml:"Expiration"`
	// CollateralizationRatio overrides the default threshold when set.
	CollateralizationRatio string `toml:"CollateralizationRatio,omitempty"`
	// DebtCeiling caps the market's circulating bond supply.
	DebtCeiling string        `toml:"DebtCeiling"`
	Underlying  AssetConfig   `toml:"Underlying"`
	Collaterals []AssetConfig `toml:"Collaterals"`
	// ReserveAddress custodies the market's redemption pool underlying.
	ReserveAddress string `toml:"ReserveAddress"`
}

// FeedConfig seeds one manual price feed.
type FeedConfig struct {
	Symbol      string `toml:"Symbol"`
	Asset       string `toml:"Asset"`
	Decimals    uint8  `toml:"Decimals"`
	Description string `toml:"Description,omitempty"`
	// Price is the initial answer in the feed's own precision; empty leaves
	// the feed unset until an operator pushes a price.
	Price string `toml:"Price,omitempty"`
}

// Pauses flags modules that boot in the paused state.
type Pauses struct {
	Vault      bool `toml:"Vault"`
	Bond       bool `toml:"Bond"`
	Redemption bool `toml:"Redemption"`
}
