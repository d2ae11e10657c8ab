package rpc

import (
	"math/big"
	"net/http"
)

// bondFloat converts bond units to whole bonds for gauge exports.
func bondFloat(amount *big.Int) float64 {
	if amount == nil {
		return 0
	}
	scaled, _ := new(big.Float).Quo(
		new(big.Float).SetInt(amount),
		big.NewFloat(1e18),
	).Float64()
	return scaled
}

func (s *Server) handleBondBorrow(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market   string `json:"market"`
		Borrower string `json:"borrower"`
		Amount   string `json:"amount"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, ok := s.market(params.Market)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "unknown market "+params.Market, nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := market.Token.Borrow(borrower, amount); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	s.metrics.ObserveBorrow(params.Market, bondFloat(amount))
	s.metrics.SetBondSupply(params.Market, bondFloat(market.Token.TotalSupply()))
	writeResult(w, req.ID, map[string]string{
		"balance":     market.Token.BalanceOf(borrower).String(),
		"totalSupply": market.Token.TotalSupply().String(),
	})
}

func (s *Server) handleBondRepay(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market   string `json:"market"`
		Payer    string `json:"payer"`
		Borrower string `json:"borrower"`
		Amount   string `json:"amount"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, ok := s.market(params.Market)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "unknown market "+params.Market, nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	payer := borrower
	if params.Payer != "" {
		payer, err = parseAddress("payer", params.Payer)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
			return
		}
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := market.Token.RepayBorrow(payer, borrower, amount); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	s.metrics.ObserveRepay(params.Market, bondFloat(amount))
	s.metrics.SetBondSupply(params.Market, bondFloat(market.Token.TotalSupply()))
	s.writeVault(w, req.ID, params.Market, params.Borrower)
}

func (s *Server) handleBondLiquidate(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market     string `json:"market"`
		Liquidator string `json:"liquidator"`
		Borrower   string `json:"borrower"`
		Amount     string `json:"amount"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, ok := s.market(params.Market)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "unknown market "+params.Market, nil)
		return
	}
	liquidator, err := parseAddress("liquidator", params.Liquidator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	repaid, clutched, err := market.Token.LiquidateBorrow(liquidator, borrower, amount)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	s.metrics.ObserveLiquidation(params.Market)
	s.metrics.SetBondSupply(params.Market, bondFloat(market.Token.TotalSupply()))
	writeResult(w, req.ID, map[string]string{
		"repaid":   amountString(repaid),
		"clutched": amountString(clutched),
	})
}

func (s *Server) handleBondBalanceOf(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market  string `json:"market"`
		Account string `json:"account"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, ok := s.market(params.Market)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "unknown market "+params.Market, nil)
		return
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": market.Token.BalanceOf(account).String()})
}

func (s *Server) handleBondTotalSupply(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market string `json:"market"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, ok := s.market(params.Market)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "unknown market "+params.Market, nil)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"totalSupply": market.Token.TotalSupply().String(),
		"expiration":  amountString(new(big.Int).SetUint64(market.Token.ExpirationTime())),
	})
}

func (s *Server) handleRedemptionSupply(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market  string `json:"market"`
		Account string `json:"account"`
		Amount  string `json:"amount"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, ok := s.market(params.Market)
	if !ok || market.Pool == nil {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "unknown market "+params.Market, nil)
		return
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := market.Pool.SupplyUnderlying(account, amount); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"balance": market.Token.BalanceOf(account).String()})
}

func (s *Server) handleRedemptionRedeem(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market  string `json:"market"`
		Account string `json:"account"`
		Amount  string `json:"amount"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, ok := s.market(params.Market)
	if !ok || market.Pool == nil {
		writeError(w, http.StatusNotFound, req.ID, codeInvalidParams, "unknown market "+params.Market, nil)
		return
	}
	account, err := parseAddress("account", params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if err := market.Pool.RedeemBonds(account, amount); err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	reserve, err := market.Pool.UnderlyingReserve()
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"balance": market.Token.BalanceOf(account).String(),
		"reserve": amountString(reserve),
	})
}
