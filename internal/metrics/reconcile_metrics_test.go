package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewReconcileMetrics(t *testing.T) {
	metrics := newReconcileMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("NewReconcileMetrics should not return nil")
	}
	if metrics.reconcileStarted == nil {
		t.Error("reconcileStarted counter should not be nil")
	}
	if metrics.reconcileApproved == nil {
		t.Error("reconcileApproved counter should not be nil")
	}
	if metrics.reconcileReverted == nil {
		t.Error("reconcileReverted counter should not be nil")
	}
	if metrics.reconcileNoop == nil {
		t.Error("reconcileNoop counter should not be nil")
	}
	if metrics.reconcileFailed == nil {
		t.Error("reconcileFailed counter should not be nil")
	}
	if metrics.reconcileDuration == nil {
		t.Error("reconcileDuration histogram should not be nil")
	}
	if metrics.activeReconciles == nil {
		t.Error("activeReconciles gauge should not be nil")
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestRecordStartedAndFinished(t *testing.T) {
	metrics := newReconcileMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordStarted()
	metrics.RecordStarted()
	metrics.RecordFinished()

	if got := counterValue(t, metrics.reconcileStarted); got != 2 {
		t.Fatalf("expected 2 started, got %v", got)
	}
	if got := gaugeValue(t, metrics.activeReconciles); got != 1 {
		t.Fatalf("expected 1 active, got %v", got)
	}
}

func TestRecordOutcomes(t *testing.T) {
	metrics := newReconcileMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordApproved()
	metrics.RecordReverted()
	metrics.RecordNoop()
	metrics.RecordNoop()
	metrics.RecordFailed()
	metrics.RecordRetryLater()
	metrics.RecordDuration(150 * time.Millisecond)

	if got := counterValue(t, metrics.reconcileApproved); got != 1 {
		t.Fatalf("expected 1 approved, got %v", got)
	}
	if got := counterValue(t, metrics.reconcileNoop); got != 2 {
		t.Fatalf("expected 2 noop, got %v", got)
	}
	if got := counterValue(t, metrics.reconcileRetry); got != 1 {
		t.Fatalf("expected 1 retry-later, got %v", got)
	}
}
