package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"tenor/crypto"
)

func testAddress(prefix crypto.AddressPrefix, fill byte) string {
	raw := make([]byte, crypto.AddressLength)
	for i := range raw {
		raw[i] = fill
	}
	return crypto.NewAddress(prefix, raw).String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func marketBody(marketAddr, reserveAddr, usdcAddr, wethAddr string) string {
	return fmt.Sprintf(`
RPCAddress = ":9090"
AdminAddress = %q
CustodyAddress = %q

[[Markets]]
Name = "Tenor USDC 2030"
Symbol = "tUSDC30"
Address = %q
ReserveAddress = %q
Expiration = 1900000000
DebtCeiling = "1000000000000000000000000"

[Markets.Underlying]
Address = %q
Symbol = "USDC"
Decimals = 6

[[Markets.Collaterals]]
Address = %q
Symbol = "WETH"
Decimals = 18
`, testAddress(crypto.TenorPrefix, 0x01), testAddress(crypto.TenorPrefix, 0x02),
		marketAddr, reserveAddr, usdcAddr, wethAddr)
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8080" || cfg.DataDir != "./tenor-data" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}
}

func TestLoadParsesMarkets(t *testing.T) {
	body := marketBody(
		testAddress(crypto.TenorPrefix, 0x03),
		testAddress(crypto.TenorPrefix, 0x04),
		testAddress(crypto.AssetPrefix, 0x05),
		testAddress(crypto.AssetPrefix, 0x06),
	)
	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9090" {
		t.Fatalf("RPCAddress not parsed: %s", cfg.RPCAddress)
	}
	if len(cfg.Markets) != 1 {
		t.Fatalf("expected 1 market, got %d", len(cfg.Markets))
	}
	market := cfg.Markets[0]
	if market.Symbol != "tUSDC30" || market.Expiration != 1_900_000_000 {
		t.Fatalf("market not parsed: %+v", market)
	}
	if market.Underlying.Decimals != 6 || len(market.Collaterals) != 1 {
		t.Fatalf("market assets not parsed: %+v", market)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel default not applied: %s", cfg.LogLevel)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := map[string]string{
		"bad admin address": `AdminAddress = "not-bech32"`,
		"bad incentive":     `LiquidationIncentive = "1.1"`,
		"market without expiration": fmt.Sprintf(`
[[Markets]]
Address = %q
ReserveAddress = %q

[Markets.Underlying]
Address = %q
Symbol = "USDC"
Decimals = 6

[[Markets.Collaterals]]
Address = %q
Symbol = "WETH"
Decimals = 18
`, testAddress(crypto.TenorPrefix, 0x03), testAddress(crypto.TenorPrefix, 0x04),
			testAddress(crypto.AssetPrefix, 0x05), testAddress(crypto.AssetPrefix, 0x06)),
		"collateral decimals too high": fmt.Sprintf(`
[[Markets]]
Address = %q
ReserveAddress = %q
Expiration = 1900000000

[Markets.Underlying]
Address = %q
Symbol = "USDC"
Decimals = 6

[[Markets.Collaterals]]
Address = %q
Symbol = "WETH"
Decimals = 19
`, testAddress(crypto.TenorPrefix, 0x03), testAddress(crypto.TenorPrefix, 0x04),
			testAddress(crypto.AssetPrefix, 0x05), testAddress(crypto.AssetPrefix, 0x06)),
	}
	for name, body := range cases {
		if _, err := Load(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseMantissa(t *testing.T) {
	amount, err := ParseMantissa("1500000000000000000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if amount.String() != "1500000000000000000" {
		t.Fatalf("unexpected amount: %s", amount)
	}
	for _, bad := range []string{"", "1.5", "-1", "abc"} {
		if _, err := ParseMantissa(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
