package rpc

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tenor/native/bond"
	"tenor/native/oracle"
	"tenor/native/redemption"
	"tenor/native/vault"
	"tenor/observability/metrics"
)

const jsonRPCVersion = "2.0"

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// Market bundles the per-market modules the server dispatches into.
type Market struct {
	Token *bond.Token
	Pool  *redemption.Pool
}

// Server exposes the lending protocol over JSON-RPC.
type Server struct {
	ledger  *vault.Ledger
	prices  *oracle.Registry
	markets map[string]*Market
	logger  *slog.Logger
	metrics *metrics.LendingMetrics
}

// NewServer wires a JSON-RPC server over the balance sheet and price
// registry. Markets are attached afterwards with RegisterMarket.
func NewServer(ledger *vault.Ledger, prices *oracle.Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:  ledger,
		prices:  prices,
		markets: make(map[string]*Market),
		logger:  logger,
		metrics: metrics.Lending(),
	}
}

// RegisterMarket makes a bond market dispatchable by its address.
func (s *Server) RegisterMarket(market *Market) {
	if market == nil || market.Token == nil {
		return
	}
	s.markets[market.Token.Address().String()] = market
}

func (s *Server) market(addr string) (*Market, bool) {
	market, ok := s.markets[strings.TrimSpace(addr)]
	return market, ok
}

// Router builds the HTTP surface: JSON-RPC at the root, health and metrics
// probes alongside.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/", s.handle)

	return r
}

// Start serves the router until the listener fails.
func (s *Server) Start(addr string) error {
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}
	var req RPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if strings.TrimSpace(req.Method) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	switch req.Method {
	case "vault_open":
		s.handleVaultOpen(w, &req)
	case "vault_depositCollateral":
		s.handleVaultDeposit(w, &req)
	case "vault_withdrawCollateral":
		s.handleVaultWithdraw(w, &req)
	case "vault_lockCollateral":
		s.handleVaultLock(w, &req)
	case "vault_freeCollateral":
		s.handleVaultFree(w, &req)
	case "vault_get":
		s.handleVaultGet(w, &req)
	case "vault_currentRatio":
		s.handleVaultCurrentRatio(w, &req)
	case "vault_hypotheticalRatio":
		s.handleVaultHypotheticalRatio(w, &req)
	case "vault_clutchableCollateral":
		s.handleVaultClutchable(w, &req)
	case "vault_isUnderwater":
		s.handleVaultIsUnderwater(w, &req)
	case "bond_borrow":
		s.handleBondBorrow(w, &req)
	case "bond_repayBorrow":
		s.handleBondRepay(w, &req)
	case "bond_liquidateBorrow":
		s.handleBondLiquidate(w, &req)
	case "bond_balanceOf":
		s.handleBondBalanceOf(w, &req)
	case "bond_totalSupply":
		s.handleBondTotalSupply(w, &req)
	case "redemption_supplyUnderlying":
		s.handleRedemptionSupply(w, &req)
	case "redemption_redeemBonds":
		s.handleRedemptionRedeem(w, &req)
	case "oracle_price":
		s.handleOraclePrice(w, &req)
	default:
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "unknown method "+req.Method, nil)
	}
}
