package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics counts borrow/return traffic and the fines it produces.
type LendingMetrics struct {
	borrows  *prometheus.CounterVec
	returns  *prometheus.CounterVec
	fines    prometheus.Counter
	fineAmt  prometheus.Counter
	failures *prometheus.CounterVec
}

// NewLendingMetrics registers the lending metrics on the provided registerer.
func NewLendingMetrics(reg prometheus.Registerer) *LendingMetrics {
	if reg == nil {
		return &LendingMetrics{}
	}
	borrows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_borrows_total",
		Help: "Successful borrow operations.",
	}, []string{"linked"})
	returns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_returns_total",
		Help: "Successful return operations.",
	}, []string{"overdue"})
	fines := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lending_fines_assessed_total",
		Help: "Returns that produced a non-zero fine.",
	})
	fineAmt := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lending_fine_amount_total",
		Help: "Cumulative fine amount assessed, in currency units.",
	})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lending_failures_total",
		Help: "Rejected lending operations by error code.",
	}, []string{"op", "code"})
	reg.MustRegister(borrows, returns, fines, fineAmt, failures)
	return &LendingMetrics{
		borrows:  borrows,
		returns:  returns,
		fines:    fines,
		fineAmt:  fineAmt,
		failures: failures,
	}
}

// ObserveBorrow records one successful borrow; linked marks member-linked loans.
func (m *LendingMetrics) ObserveBorrow(linked bool) {
	if m == nil || m.borrows == nil {
		return
	}
	m.borrows.WithLabelValues(boolLabel(linked)).Inc()
}

// ObserveReturn records one successful return and its fine, if any.
func (m *LendingMetrics) ObserveReturn(overdue bool, fineAmount float64) {
	if m == nil || m.returns == nil {
		return
	}
	m.returns.WithLabelValues(boolLabel(overdue)).Inc()
	if fineAmount > 0 {
		m.fines.Inc()
		m.fineAmt.Add(fineAmount)
	}
}

// ObserveFailure records a rejected operation by its error code.
func (m *LendingMetrics) ObserveFailure(op, code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(op, code).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
