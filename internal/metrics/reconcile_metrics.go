package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconcileMetrics содержит метрики движка сверки платежей.
type ReconcileMetrics struct {
	// Счётчики операций
	reconcileStarted  prometheus.Counter
	reconcileApproved prometheus.Counter
	reconcileReverted prometheus.Counter
	reconcileNoop     prometheus.Counter
	reconcileFailed   prometheus.Counter
	reconcileRetry    prometheus.Counter

	// Гистограмма времени выполнения
	reconcileDuration prometheus.Histogram

	// Счётчик событий outbox
	outboxEvents prometheus.Counter

	// Gauge для сверок в полёте
	activeReconciles prometheus.Gauge
}

// NewReconcileMetrics создаёт новый экземпляр метрик сверки.
func NewReconcileMetrics() *ReconcileMetrics {
	return newReconcileMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newReconcileMetricsWithRegisterer(registerer prometheus.Registerer) *ReconcileMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &ReconcileMetrics{
		reconcileStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "boxoffice_reconcile_started_total",
			Help: "Total number of reconciliation requests started",
		}),
		reconcileApproved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "boxoffice_reconcile_approved_total",
			Help: "Total number of first-time approvals committed",
		}),
		reconcileReverted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "boxoffice_reconcile_reverted_total",
			Help: "Total number of approved reservations reverted",
		}),
		reconcileNoop: registerCounter(registerer, prometheus.CounterOpts{
			Name: "boxoffice_reconcile_noop_total",
			Help: "Total number of idempotent reconciliations with no state change",
		}),
		reconcileFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "boxoffice_reconcile_failed_total",
			Help: "Total number of failed reconciliations",
		}),
		reconcileRetry: registerCounter(registerer, prometheus.CounterOpts{
			Name: "boxoffice_reconcile_retry_later_total",
			Help: "Total number of reconciliations deferred due to gateway unavailability",
		}),
		reconcileDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "boxoffice_reconcile_duration_seconds",
			Help:    "Duration of reconciliation requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "boxoffice_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
		activeReconciles: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "boxoffice_active_reconciles",
			Help: "Number of currently running reconciliations",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordStarted увеличивает счётчик запущенных сверок.
func (m *ReconcileMetrics) RecordStarted() {
	m.reconcileStarted.Inc()
	m.activeReconciles.Inc()
}

// RecordFinished уменьшает число сверок в полёте.
func (m *ReconcileMetrics) RecordFinished() {
	m.activeReconciles.Dec()
}

// RecordApproved увеличивает счётчик первых подтверждений.
func (m *ReconcileMetrics) RecordApproved() {
	m.reconcileApproved.Inc()
}

// RecordReverted увеличивает счётчик снятых подтверждений.
func (m *ReconcileMetrics) RecordReverted() {
	m.reconcileReverted.Inc()
}

// RecordNoop увеличивает счётчик идемпотентных повторов.
func (m *ReconcileMetrics) RecordNoop() {
	m.reconcileNoop.Inc()
}

// RecordFailed увеличивает счётчик неудачных сверок.
func (m *ReconcileMetrics) RecordFailed() {
	m.reconcileFailed.Inc()
}

// RecordRetryLater увеличивает счётчик отложенных сверок.
func (m *ReconcileMetrics) RecordRetryLater() {
	m.reconcileRetry.Inc()
}

// RecordDuration записывает время выполнения сверки.
func (m *ReconcileMetrics) RecordDuration(duration time.Duration) {
	m.reconcileDuration.Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *ReconcileMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
