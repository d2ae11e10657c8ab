package rpc

import (
	"net/http"
)

type vaultRef struct {
	Market   string `json:"market"`
	Borrower string `json:"borrower"`
}

type vaultAmountParams struct {
	Market   string `json:"market"`
	Borrower string `json:"borrower"`
	Amount   string `json:"amount"`
}

type VaultResponse struct {
	Market           string `json:"market"`
	Borrower         string `json:"borrower"`
	Debt             string `json:"debt"`
	CollateralAsset  string `json:"collateralAsset,omitempty"`
	FreeCollateral   string `json:"freeCollateral"`
	LockedCollateral string `json:"lockedCollateral"`
	IsOpen           bool   `json:"isOpen"`
}

func (s *Server) handleVaultOpen(w http.ResponseWriter, req *RPCRequest) {
	var params vaultRef
	if !decodeParams(w, req, &params) {
		return
	}
	market, err := parseAddress("market", params.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	opErr := s.ledger.OpenVault(market, borrower)
	s.metrics.ObserveVaultOperation("open", opErr)
	if opErr != nil {
		writeModuleError(w, req.ID, opErr)
		return
	}
	writeResult(w, req.ID, map[string]bool{"opened": true})
}

func (s *Server) handleVaultDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market   string `json:"market"`
		Borrower string `json:"borrower"`
		Asset    string `json:"asset"`
		Amount   string `json:"amount"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, err := parseAddress("market", params.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	asset, err := parseAddress("asset", params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	opErr := s.ledger.DepositCollateral(market, borrower, asset, amount)
	s.metrics.ObserveVaultOperation("deposit", opErr)
	if opErr != nil {
		writeModuleError(w, req.ID, opErr)
		return
	}
	s.writeVault(w, req.ID, params.Market, params.Borrower)
}

func (s *Server) handleVaultWithdraw(w http.ResponseWriter, req *RPCRequest) {
	s.handleVaultMove(w, req, "withdraw")
}

func (s *Server) handleVaultLock(w http.ResponseWriter, req *RPCRequest) {
	s.handleVaultMove(w, req, "lock")
}

func (s *Server) handleVaultFree(w http.ResponseWriter, req *RPCRequest) {
	s.handleVaultMove(w, req, "free")
}

func (s *Server) handleVaultMove(w http.ResponseWriter, req *RPCRequest, op string) {
	var params vaultAmountParams
	if !decodeParams(w, req, &params) {
		return
	}
	market, err := parseAddress("market", params.Market)
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
	var opErr error
	switch op {
	case "withdraw":
		opErr = s.ledger.WithdrawCollateral(market, borrower, amount)
	case "lock":
		opErr = s.ledger.LockCollateral(market, borrower, amount)
	case "free":
		opErr = s.ledger.FreeCollateral(market, borrower, amount)
	}
	s.metrics.ObserveVaultOperation(op, opErr)
	if opErr != nil {
		writeModuleError(w, req.ID, opErr)
		return
	}
	s.writeVault(w, req.ID, params.Market, params.Borrower)
}

func (s *Server) handleVaultGet(w http.ResponseWriter, req *RPCRequest) {
	var params vaultRef
	if !decodeParams(w, req, &params) {
		return
	}
	if _, err := parseAddress("market", params.Market); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	if _, err := parseAddress("borrower", params.Borrower); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	s.writeVault(w, req.ID, params.Market, params.Borrower)
}

func (s *Server) writeVault(w http.ResponseWriter, id interface{}, marketStr, borrowerStr string) {
	market, err := parseAddress("market", marketStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", borrowerStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, id, codeInvalidParams, err.Error(), nil)
		return
	}
	record, err := s.ledger.GetVault(market, borrower)
	if err != nil {
		writeModuleError(w, id, err)
		return
	}
	resp := VaultResponse{
		Market:           marketStr,
		Borrower:         borrowerStr,
		Debt:             amountString(record.Debt),
		FreeCollateral:   amountString(record.FreeCollateral),
		LockedCollateral: amountString(record.LockedCollateral),
		IsOpen:           record.IsOpen,
	}
	if !record.CollateralAsset.IsZero() {
		resp.CollateralAsset = record.CollateralAsset.String()
	}
	writeResult(w, id, resp)
}

func (s *Server) handleVaultCurrentRatio(w http.ResponseWriter, req *RPCRequest) {
	var params vaultRef
	if !decodeParams(w, req, &params) {
		return
	}
	market, err := parseAddress("market", params.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ratio, err := s.ledger.CurrentCollateralizationRatio(market, borrower)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"ratio": amountString(ratio)})
}

func (s *Server) handleVaultHypotheticalRatio(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market     string `json:"market"`
		Borrower   string `json:"borrower"`
		Collateral string `json:"collateral"`
		Locked     string `json:"locked"`
		Debt       string `json:"debt"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, err := parseAddress("market", params.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collateral, err := parseAddress("collateral", params.Collateral)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	locked, err := parseAmount("locked", params.Locked)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	debt, err := parseAmount("debt", params.Debt)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	ratio, err := s.ledger.HypotheticalCollateralizationRatio(market, borrower, collateral, locked, debt)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"ratio": amountString(ratio)})
}

func (s *Server) handleVaultClutchable(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Market      string `json:"market"`
		Collateral  string `json:"collateral"`
		RepayAmount string `json:"repayAmount"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	market, err := parseAddress("market", params.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	collateral, err := parseAddress("collateral", params.Collateral)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	repay, err := parseAmount("repayAmount", params.RepayAmount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	clutchable, err := s.ledger.ClutchableCollateral(market, collateral, repay)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"clutchable": amountString(clutchable)})
}

func (s *Server) handleVaultIsUnderwater(w http.ResponseWriter, req *RPCRequest) {
	var params vaultRef
	if !decodeParams(w, req, &params) {
		return
	}
	market, err := parseAddress("market", params.Market)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	borrower, err := parseAddress("borrower", params.Borrower)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	underwater, err := s.ledger.IsAccountUnderwater(market, borrower)
	if err != nil {
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"underwater": underwater})
}
