package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tenor/core/types"
	"tenor/crypto"
	"tenor/native/bond"
	"tenor/native/fintroller"
	"tenor/native/oracle"
	"tenor/native/redemption"
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

type serverFixture struct {
	server   *Server
	handler  http.Handler
	store    *vault.Store
	market   crypto.Address
	borrower crypto.Address
	weth     crypto.Address
	usdc     crypto.Address
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	admin := makeAddress(crypto.TenorPrefix, 0x01)
	custody := makeAddress(crypto.TenorPrefix, 0x02)
	market := makeAddress(crypto.TenorPrefix, 0x03)
	borrower := makeAddress(crypto.TenorPrefix, 0x04)
	reserve := makeAddress(crypto.TenorPrefix, 0x05)
	weth := makeAddress(crypto.AssetPrefix, 0x06)
	usdc := makeAddress(crypto.AssetPrefix, 0x07)

	registry := oracle.NewRegistry()
	wethFeed := oracle.NewManualFeed("weth/usd", 8)
	wethFeed.Set(new(big.Int).Mul(big.NewInt(1_000), big.NewInt(100_000_000)))
	if err := registry.SetFeed("WETH", weth, wethFeed); err != nil {
		t.Fatalf("set feed: %v", err)
	}
	usdcFeed := oracle.NewManualFeed("usdc/usd", 8)
	usdcFeed.Set(big.NewInt(100_000_000))
	if err := registry.SetFeed("USDC", usdc, usdcFeed); err != nil {
		t.Fatalf("set feed: %v", err)
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
	ledger, err := vault.NewLedger(custody, store, risk, registry)
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	token, err := bond.NewToken(bond.TokenConfig{
		Address:    market,
		Name:       "Tenor USDC 2030",
		Symbol:     "tUSDC30",
		Expiration: uint64(time.Now().Add(24 * time.Hour).Unix()),
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
	pool, err := redemption.NewPool(reserve, token, risk, store)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}

	server := NewServer(ledger, registry, nil)
	server.RegisterMarket(&Market{Token: token, Pool: pool})

	return &serverFixture{
		server:   server,
		handler:  server.Router(),
		store:    store,
		market:   market,
		borrower: borrower,
		weth:     weth,
		usdc:     usdc,
	}
}

func (f *serverFixture) fund(t *testing.T, addr crypto.Address, asset crypto.Address, amount *big.Int) {
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

func (f *serverFixture) call(t *testing.T, method string, params interface{}) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	body := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		body["params"] = []interface{}{params}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var resp RPCResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
	return rec, resp
}

func resultMap(t *testing.T, resp RPCResponse) map[string]interface{} {
	t.Helper()
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected result shape: %#v", resp.Result)
	}
	return result
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestUnknownMethod(t *testing.T) {
	f := newServerFixture(t)
	rec, resp := f.call(t, "vault_doesNotExist", map[string]string{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
}

func TestVaultLifecycleOverRPC(t *testing.T) {
	f := newServerFixture(t)
	f.fund(t, f.borrower, f.weth, mantissa(2))

	ref := map[string]string{
		"market":   f.market.String(),
		"borrower": f.borrower.String(),
	}
	rec, resp := f.call(t, "vault_open", ref)
	if rec.Code != http.StatusOK || resp.Error != nil {
		t.Fatalf("open failed: %d %+v", rec.Code, resp.Error)
	}

	// A second open maps onto an invalid-params error.
	rec, resp = f.call(t, "vault_open", ref)
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %d %+v", rec.Code, resp.Error)
	}

	_, resp = f.call(t, "vault_depositCollateral", map[string]string{
		"market":   f.market.String(),
		"borrower": f.borrower.String(),
		"asset":    f.weth.String(),
		"amount":   mantissa(2).String(),
	})
	if resp.Error != nil {
		t.Fatalf("deposit failed: %+v", resp.Error)
	}
	result := resultMap(t, resp)
	if result["freeCollateral"] != mantissa(2).String() {
		t.Fatalf("unexpected free collateral: %v", result["freeCollateral"])
	}

	_, resp = f.call(t, "vault_lockCollateral", map[string]string{
		"market":   f.market.String(),
		"borrower": f.borrower.String(),
		"amount":   mantissa(2).String(),
	})
	if resp.Error != nil {
		t.Fatalf("lock failed: %+v", resp.Error)
	}
	result = resultMap(t, resp)
	if result["lockedCollateral"] != mantissa(2).String() {
		t.Fatalf("unexpected locked collateral: %v", result["lockedCollateral"])
	}

	_, resp = f.call(t, "bond_borrow", map[string]string{
		"market":   f.market.String(),
		"borrower": f.borrower.String(),
		"amount":   mantissa(1_000).String(),
	})
	if resp.Error != nil {
		t.Fatalf("borrow failed: %+v", resp.Error)
	}
	result = resultMap(t, resp)
	if result["balance"] != mantissa(1_000).String() {
		t.Fatalf("unexpected bond balance: %v", result["balance"])
	}

	_, resp = f.call(t, "vault_currentRatio", ref)
	if resp.Error != nil {
		t.Fatalf("ratio failed: %+v", resp.Error)
	}
	result = resultMap(t, resp)
	// $2,000 of locked WETH over $1,000 of debt is a ratio of 2.
	if result["ratio"] != mantissa(2).String() {
		t.Fatalf("unexpected ratio: %v", result["ratio"])
	}

	_, resp = f.call(t, "vault_isUnderwater", ref)
	if resp.Error != nil {
		t.Fatalf("underwater failed: %+v", resp.Error)
	}
	if resultMap(t, resp)["underwater"] != false {
		t.Fatalf("healthy vault reported underwater")
	}
}

func TestOraclePriceOverRPC(t *testing.T) {
	f := newServerFixture(t)
	_, resp := f.call(t, "oracle_price", map[string]string{"symbol": "weth"})
	if resp.Error != nil {
		t.Fatalf("oracle_price failed: %+v", resp.Error)
	}
	result := resultMap(t, resp)
	if result["symbol"] != "WETH" {
		t.Fatalf("unexpected symbol: %v", result["symbol"])
	}
	// The 8-decimal feed answer is upscaled to an 18-decimal mantissa.
	if result["price"] != mantissa(1_000).String() {
		t.Fatalf("unexpected price: %v", result["price"])
	}

	rec, resp := f.call(t, "oracle_price", map[string]string{"symbol": "DOGE"})
	if rec.Code != http.StatusBadRequest || resp.Error == nil {
		t.Fatalf("expected error for unknown symbol, got %d %+v", rec.Code, resp.Error)
	}
}

func TestRedemptionOverRPC(t *testing.T) {
	f := newServerFixture(t)
	supplier := makeAddress(crypto.TenorPrefix, 0x31)
	f.fund(t, supplier, f.usdc, mantissa(100))

	_, resp := f.call(t, "redemption_supplyUnderlying", map[string]string{
		"market":  f.market.String(),
		"account": supplier.String(),
		"amount":  mantissa(100).String(),
	})
	if resp.Error != nil {
		t.Fatalf("supply failed: %+v", resp.Error)
	}
	if resultMap(t, resp)["balance"] != mantissa(100).String() {
		t.Fatalf("unexpected bond balance after supply")
	}

	// Redeeming before maturity is rejected.
	rec, resp := f.call(t, "redemption_redeemBonds", map[string]string{
		"market":  f.market.String(),
		"account": supplier.String(),
		"amount":  mantissa(100).String(),
	})
	if rec.Code != http.StatusBadRequest || resp.Error == nil {
		t.Fatalf("expected redeem rejection, got %d %+v", rec.Code, resp.Error)
	}
}

func TestInvalidParamsRejected(t *testing.T) {
	f := newServerFixture(t)
	rec, resp := f.call(t, "vault_open", map[string]string{
		"market":   "not-an-address",
		"borrower": f.borrower.String(),
	})
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %d %+v", rec.Code, resp.Error)
	}

	rec, resp = f.call(t, "vault_open", nil)
	if rec.Code != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params for missing payload, got %d %+v", rec.Code, resp.Error)
	}
}
