package rpc

import (
	"net/http"
	"strings"
)

func (s *Server) handleOraclePrice(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Symbol string `json:"symbol"`
	}
	if !decodeParams(w, req, &params) {
		return
	}
	symbol := strings.TrimSpace(params.Symbol)
	if symbol == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "symbol required", nil)
		return
	}
	price, err := s.prices.GetAdjustedPrice(symbol)
	if err != nil {
		s.metrics.ObserveOracleFailure(symbol)
		writeModuleError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{
		"symbol": strings.ToUpper(symbol),
		"price":  amountString(price),
	})
}
