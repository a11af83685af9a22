package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type LedgerMetrics struct {
	transactions *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	accounts     prometheus.Gauge
	grants       prometheus.Gauge
}

type DecryptMetrics struct {
	requests *prometheus.CounterVec
	handles  prometheus.Counter
}

type CoprocessorMetrics struct {
	precision prometheus.Gauge
}

var (
	coprocessorOnce     sync.Once
	coprocessorRegistry *CoprocessorMetrics

	ledgerOnce     sync.Once
	ledgerRegistry *LedgerMetrics

	decryptOnce     sync.Once
	decryptRegistry *DecryptMetrics
)

func Ledger() *LedgerMetrics {
	ledgerOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tzama_ledger_transactions_total",
				Help: "Ledger entrypoint calls by kind and outcome.",
			}, []string{"kind", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "tzama_ledger_transaction_seconds",
				Help:    "Time spent in a ledger transition including coprocessor calls.",
				Buckets: prometheus.DefBuckets,
			}, []string{"kind"}),
			accounts: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "tzama_ledger_accounts",
				Help: "Number of accounts known to the ledger.",
			}),
			grants: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "tzama_acl_grants",
				Help: "Number of (handle, principal) access grants.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.transactions,
			ledgerRegistry.latency,
			ledgerRegistry.accounts,
			ledgerRegistry.grants,
		)
	})
	return ledgerRegistry
}

func (m *LedgerMetrics) ObserveTransaction(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.transactions.WithLabelValues(kind, outcome).Inc()
	m.latency.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *LedgerMetrics) SetAccounts(n int) {
	if m == nil {
		return
	}
	m.accounts.Set(float64(n))
}

func (m *LedgerMetrics) SetGrants(n int) {
	if m == nil {
		return
	}
	m.grants.Set(float64(n))
}

func Decrypt() *DecryptMetrics {
	decryptOnce.Do(func() {
		decryptRegistry = &DecryptMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "tzama_decrypt_requests_total",
				Help: "User decryption requests by outcome.",
			}, []string{"outcome"}),
			handles: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "tzama_decrypt_handles_total",
				Help: "Handles released to their owners.",
			}),
		}
		prometheus.MustRegister(decryptRegistry.requests, decryptRegistry.handles)
	})
	return decryptRegistry
}

func (m *DecryptMetrics) ObserveRequest(outcome string, handles int) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.requests.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.handles.Add(float64(handles))
	}
}

func Coprocessor() *CoprocessorMetrics {
	coprocessorOnce.Do(func() {
		coprocessorRegistry = &CoprocessorMetrics{
			precision: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "tzama_coprocessor_precision_error",
				Help: "Absolute error of a CKKS encrypt/decrypt round trip, measured at startup.",
			}),
		}
		prometheus.MustRegister(coprocessorRegistry.precision)
	})
	return coprocessorRegistry
}

func (m *CoprocessorMetrics) SetPrecision(e float64) {
	if m == nil {
		return
	}
	m.precision.Set(e)
}
