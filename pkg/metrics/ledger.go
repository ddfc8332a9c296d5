package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mpp"

// Outcome labels shared by ledger counters.
const (
	OutcomeRecorded = "recorded"
	OutcomeRejected = "rejected"
)

// LedgerMetrics counts ledger writes and checkout outcomes.
type LedgerMetrics struct {
	numbers   *prometheus.CounterVec
	stock     *prometheus.CounterVec
	points    *prometheus.CounterVec
	checkouts *prometheus.CounterVec
	drift     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	numbers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "numbering",
		Name:      "allocations_total",
		Help:      "Document numbers handed out, by document type.",
	}, []string{"document_type"})
	stock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "stock",
		Name:      "movements_total",
		Help:      "Stock movement attempts, by type and outcome.",
	}, []string{"type", "outcome"})
	points := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "loyalty",
		Name:      "movements_total",
		Help:      "Points movement attempts, by type and outcome.",
	}, []string{"type", "outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "sessions_total",
		Help:      "POS checkout sessions, by final status.",
	}, []string{"status"})
	drift := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "drift_detected_total",
		Help:      "Reconciliations where the cached balance disagreed with the ledger.",
	}, []string{"ledger"})
	reg.MustRegister(numbers, stock, points, checkouts, drift)
	return &LedgerMetrics{
		numbers:   numbers,
		stock:     stock,
		points:    points,
		checkouts: checkouts,
		drift:     drift,
	}
}

// IncAllocation counts one allocated number.
func (m *LedgerMetrics) IncAllocation(documentType string) {
	if m == nil || m.numbers == nil {
		return
	}
	m.numbers.WithLabelValues(normalizeLabel(documentType)).Inc()
}

// IncStockMovement counts a stock movement attempt.
func (m *LedgerMetrics) IncStockMovement(movementType, outcome string) {
	if m == nil || m.stock == nil {
		return
	}
	m.stock.WithLabelValues(normalizeLabel(movementType), normalizeLabel(outcome)).Inc()
}

// IncPointsMovement counts a points movement attempt.
func (m *LedgerMetrics) IncPointsMovement(movementType, outcome string) {
	if m == nil || m.points == nil {
		return
	}
	m.points.WithLabelValues(normalizeLabel(movementType), normalizeLabel(outcome)).Inc()
}

// IncCheckout counts a finished checkout session.
func (m *LedgerMetrics) IncCheckout(status string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncDrift counts a reconciliation mismatch for the named ledger.
func (m *LedgerMetrics) IncDrift(ledger string) {
	if m == nil || m.drift == nil {
		return
	}
	m.drift.WithLabelValues(normalizeLabel(ledger)).Inc()
}
