package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenor/config"
	"tenor/core/events"
	"tenor/core/types"
	"tenor/crypto"
	"tenor/native/bond"
	"tenor/native/common"
	"tenor/native/fintroller"
	"tenor/native/oracle"
	"tenor/native/redemption"
	"tenor/native/vault"
	"tenor/observability/logging"
	"tenor/rpc"
	"tenor/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("tenord", cfg.Environment, logging.ParseLevel(cfg.LogLevel))

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	store, err := vault.NewStore(db)
	if err != nil {
		logger.Error("Failed to initialise vault store", slog.Any("error", err))
		os.Exit(1)
	}

	admin, err := crypto.DecodeAddress(cfg.AdminAddress)
	if err != nil {
		logger.Error("Invalid admin address", slog.Any("error", err))
		os.Exit(1)
	}
	custody, err := crypto.DecodeAddress(cfg.CustodyAddress)
	if err != nil {
		logger.Error("Invalid custody address", slog.Any("error", err))
		os.Exit(1)
	}

	registry := oracle.NewRegistry()
	if err := seedFeeds(registry, cfg.Feeds); err != nil {
		logger.Error("Failed to seed price feeds", slog.Any("error", err))
		os.Exit(1)
	}

	risk := fintroller.New(admin)
	if incentive := cfg.LiquidationIncentive; incentive != "" {
		mantissa, err := config.ParseMantissa(incentive)
		if err != nil {
			logger.Error("Invalid liquidation incentive", slog.Any("error", err))
			os.Exit(1)
		}
		if err := risk.SetLiquidationIncentive(admin, mantissa); err != nil {
			logger.Error("Failed to set liquidation incentive", slog.Any("error", err))
			os.Exit(1)
		}
	}

	ledger, err := vault.NewLedger(custody, store, risk, registry)
	if err != nil {
		logger.Error("Failed to initialise balance sheet", slog.Any("error", err))
		os.Exit(1)
	}

	pauses := common.NewPauses()
	pauses.SetPaused("vault", cfg.Pauses.Vault)
	pauses.SetPaused("bond", cfg.Pauses.Bond)
	pauses.SetPaused("redemption", cfg.Pauses.Redemption)
	ledger.SetPauses(pauses)

	emitter := eventLogger{logger: logger}
	ledger.SetEmitter(emitter)

	server := rpc.NewServer(ledger, registry, logger)

	for _, marketCfg := range cfg.Markets {
		market, err := buildMarket(marketCfg, admin, risk, ledger, store, pauses, emitter)
		if err != nil {
			logger.Error("Failed to initialise market",
				slog.String("symbol", marketCfg.Symbol), slog.Any("error", err))
			os.Exit(1)
		}
		server.RegisterMarket(market)
		logger.Info("Market registered",
			slog.String("symbol", marketCfg.Symbol),
			slog.String("address", marketCfg.Address),
			slog.Uint64("expiration", marketCfg.Expiration))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("JSON-RPC server listening", slog.String("addr", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("JSON-RPC server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
	}
}

// buildMarket lists the bond with the risk parameter provider, constructs the
// debt token and its redemption pool, and wires both into the pause set.
func buildMarket(
	marketCfg config.MarketConfig,
	admin crypto.Address,
	risk *fintroller.Fintroller,
	ledger *vault.Ledger,
	store *vault.Store,
	pauses common.PauseView,
	emitter events.Emitter,
) (*rpc.Market, error) {
	marketAddr, err := crypto.DecodeAddress(marketCfg.Address)
	if err != nil {
		return nil, fmt.Errorf("market address: %w", err)
	}
	reserve, err := crypto.DecodeAddress(marketCfg.ReserveAddress)
	if err != nil {
		return nil, fmt.Errorf("reserve address: %w", err)
	}

	if err := risk.ListBond(admin, marketAddr); err != nil {
		return nil, fmt.Errorf("list bond: %w", err)
	}
	if ratio := marketCfg.CollateralizationRatio; ratio != "" {
		mantissa, err := config.ParseMantissa(ratio)
		if err != nil {
			return nil, fmt.Errorf("collateralization ratio: %w", err)
		}
		if err := risk.SetBondCollateralizationRatio(admin, marketAddr, mantissa); err != nil {
			return nil, err
		}
	}
	if ceiling := marketCfg.DebtCeiling; ceiling != "" {
		mantissa, err := config.ParseMantissa(ceiling)
		if err != nil {
			return nil, fmt.Errorf("debt ceiling: %w", err)
		}
		if err := risk.SetBondDebtCeiling(admin, marketAddr, mantissa); err != nil {
			return nil, err
		}
	}

	underlying, err := buildAsset(marketCfg.Underlying)
	if err != nil {
		return nil, fmt.Errorf("underlying: %w", err)
	}
	collaterals := make([]vault.Asset, 0, len(marketCfg.Collaterals))
	for _, assetCfg := range marketCfg.Collaterals {
		asset, err := buildAsset(assetCfg)
		if err != nil {
			return nil, fmt.Errorf("collateral %s: %w", assetCfg.Symbol, err)
		}
		collaterals = append(collaterals, asset)
	}

	token, err := bond.NewToken(bond.TokenConfig{
		Address:     marketAddr,
		Name:        marketCfg.Name,
		Symbol:      marketCfg.Symbol,
		Expiration:  marketCfg.Expiration,
		Underlying:  underlying,
		Collaterals: collaterals,
	}, ledger, risk)
	if err != nil {
		return nil, err
	}
	token.SetPauses(pauses)
	token.SetEmitter(emitter)

	if err := ledger.RegisterMarket(marketAddr, token); err != nil {
		return nil, err
	}

	pool, err := redemption.NewPool(reserve, token, risk, store)
	if err != nil {
		return nil, err
	}
	pool.SetPauses(pauses)
	pool.SetEmitter(emitter)

	return &rpc.Market{Token: token, Pool: pool}, nil
}

func buildAsset(cfg config.AssetConfig) (vault.Asset, error) {
	addr, err := crypto.DecodeAddress(cfg.Address)
	if err != nil {
		return vault.Asset{}, err
	}
	return vault.Asset{Address: addr, Symbol: cfg.Symbol, Decimals: cfg.Decimals}, nil
}

func seedFeeds(registry *oracle.Registry, feeds []config.FeedConfig) error {
	for _, feedCfg := range feeds {
		asset, err := crypto.DecodeAddress(feedCfg.Asset)
		if err != nil {
			return fmt.Errorf("feed %s: %w", feedCfg.Symbol, err)
		}
		description := feedCfg.Description
		if description == "" {
			description = feedCfg.Symbol
		}
		feed := oracle.NewManualFeed(description, feedCfg.Decimals)
		if feedCfg.Price != "" {
			price, err := config.ParseMantissa(feedCfg.Price)
			if err != nil {
				return fmt.Errorf("feed %s price: %w", feedCfg.Symbol, err)
			}
			feed.Set(price)
		}
		if err := registry.SetFeed(feedCfg.Symbol, asset, feed); err != nil {
			return fmt.Errorf("feed %s: %w", feedCfg.Symbol, err)
		}
	}
	return nil
}

// eventLogger writes protocol events to the structured log so operators can
// follow state transitions without an indexer attached.
type eventLogger struct {
	logger *slog.Logger
}

func (l eventLogger) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	attrs := []any{slog.String("type", evt.EventType())}
	if rich, ok := evt.(interface{ Event() *types.Event }); ok {
		if detail := rich.Event(); detail != nil {
			for key, value := range detail.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.logger.Info("protocol event", attrs...)
}
