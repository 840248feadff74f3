package workorders

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	StockOps        *prometheus.CounterVec
	Inconsistencies *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	Recomputes      *prometheus.CounterVec
}

// NewMetrics registers the engine collectors on reg. A nil reg builds
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StockOps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workstock",
			Name:      "stock_operations_total",
			Help:      "Material link/unlink/quantity operations by outcome.",
		}, []string{"op", "result"}),
		Inconsistencies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workstock",
			Name:      "inconsistencies_total",
			Help:      "Ledger changes committed without the matching stock change.",
		}, []string{"op", "step"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workstock",
			Name:      "workflow_transitions_total",
			Help:      "Order workflow events by outcome.",
		}, []string{"event", "result"}),
		Recomputes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "workstock",
			Name:      "budget_recomputes_total",
			Help:      "Budget recomputations by outcome.",
		}, []string{"result"}),
	}
}

var rejections = []error{
	ErrInvalidQuantity, ErrInvalidLaborCost, ErrMaterialNotFound, ErrOrderNotFound,
	ErrInsufficientStock, ErrAlreadyLinked, ErrBudgetNotComputed, ErrEntryNotFound,
	ErrInvalidStatus, ErrInvalidTransition,
}

// result collapses an error into a low-cardinality label: rejected for the
// caller's mistakes, error for store failures, critical for divergence.
func result(err error) string {
	if err == nil {
		return "ok"
	}
	if IsCritical(err) {
		return "critical"
	}
	for _, r := range rejections {
		if errors.Is(err, r) {
			return "rejected"
		}
	}
	return "error"
}
