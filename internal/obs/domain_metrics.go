package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// InspectionsTotal counts inspection passes by owner type and result.
	InspectionsTotal *prometheus.CounterVec
	// InspectionDuration records how long one inspection pass takes.
	InspectionDuration prometheus.Histogram
	// DetectedChangesTotal counts detected changes by change type.
	DetectedChangesTotal *prometheus.CounterVec
	// ReconcileActionsTotal counts plan actions by category and kind.
	ReconcileActionsTotal *prometheus.CounterVec
	// CartsAbandonedTotal counts carts flagged by the abandonment sweep.
	CartsAbandonedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		InspectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inspections_total",
			Help:      "Count of cart inspection passes by outcome.",
		}, []string{"owner_type", "result"})
		InspectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inspection_duration_ms",
			Help:      "Latency of one inspection pass in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		})
		DetectedChangesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detected_changes_total",
			Help:      "Count of detected cart changes by type.",
		}, []string{"type"})
		ReconcileActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_actions_total",
			Help:      "Count of reconciliation plan actions by line category and action.",
		}, []string{"category", "action"})
		CartsAbandonedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "carts_abandoned_total",
			Help:      "Number of carts flagged abandoned by the background sweep.",
		})

		mustRegisterCollector(reg, InspectionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				InspectionsTotal = v
			}
		})
		mustRegisterCollector(reg, InspectionDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				InspectionDuration = v
			}
		})
		mustRegisterCollector(reg, DetectedChangesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				DetectedChangesTotal = v
			}
		})
		mustRegisterCollector(reg, ReconcileActionsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReconcileActionsTotal = v
			}
		})
		mustRegisterCollector(reg, CartsAbandonedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CartsAbandonedTotal = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
