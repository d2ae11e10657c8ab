package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type LendingMetrics struct {
	vaultOperations *prometheus.CounterVec
	vaultErrors     *prometheus.CounterVec
	bondsBorrowed   *prometheus.CounterVec
	bondsRepaid     *prometheus.CounterVec
	liquidations    *prometheus.CounterVec
	bondSupply      *prometheus.GaugeVec
	oracleFailures  *prometheus.CounterVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			vaultOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tenor_vault_operations_total",
				Help: "Count of balance sheet mutations by operation.",
			}, []string{"op"}),
			vaultErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tenor_vault_operation_errors_total",
				Help: "Count of rejected balance sheet mutations by operation.",
			}, []string{"op"}),
			bondsBorrowed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tenor_bonds_borrowed_total",
				Help: "Bond units minted through borrows per market.",
			}, []string{"market"}),
			bondsRepaid: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tenor_bonds_repaid_total",
				Help: "Bond units burned through repays per market.",
			}, []string{"market"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tenor_liquidations_total",
				Help: "Count of executed liquidations per market.",
			}, []string{"market"}),
			bondSupply: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "tenor_bond_total_supply",
				Help: "Circulating bond supply per market, scaled to whole bonds.",
			}, []string{"market"}),
			oracleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tenor_oracle_failures_total",
				Help: "Count of failed price lookups by symbol.",
			}, []string{"symbol"}),
		}
		prometheus.MustRegister(
			lendingRegistry.vaultOperations,
			lendingRegistry.vaultErrors,
			lendingRegistry.bondsBorrowed,
			lendingRegistry.bondsRepaid,
			lendingRegistry.liquidations,
			lendingRegistry.bondSupply,
			lendingRegistry.oracleFailures,
		)
	})
	return lendingRegistry
}

func (m *LendingMetrics) ObserveVaultOperation(op string, err error) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.vaultOperations.WithLabelValues(op).Inc()
	if err != nil {
		m.vaultErrors.WithLabelValues(op).Inc()
	}
}

func (m *LendingMetrics) ObserveBorrow(market string, bonds float64) {
	if m == nil {
		return
	}
	m.bondsBorrowed.WithLabelValues(market).Add(bonds)
}

func (m *LendingMetrics) ObserveRepay(market string, bonds float64) {
	if m == nil {
		return
	}
	m.bondsRepaid.WithLabelValues(market).Add(bonds)
}

func (m *LendingMetrics) ObserveLiquidation(market string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(market).Inc()
}

func (m *LendingMetrics) SetBondSupply(market string, bonds float64) {
	if m == nil {
		return
	}
	m.bondSupply.WithLabelValues(market).Set(bonds)
}

func (m *LendingMetrics) ObserveOracleFailure(symbol string) {
	if m == nil {
		return
	}
	if symbol == "" {
		symbol = "unknown"
	}
	m.oracleFailures.WithLabelValues(symbol).Inc()
}
