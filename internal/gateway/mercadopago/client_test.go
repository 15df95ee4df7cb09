package mercadopago

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/boxoffice/internal/domain"
)

func testClient(t *testing.T, handler http.Handler, attempts int) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient("test-token",
		WithBaseURL(srv.URL),
		WithRetryPolicy(ZeroDelayPolicy(attempts)),
		WithLogger(log.WithField("component", "test")),
	)
	return client, srv
}

func TestGetPayment_ConvertsToMinorUnits(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/123" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 123,
			"status": "approved",
			"status_detail": "accredited",
			"currency_id": "ARS",
			"transaction_amount": 1500.50,
			"external_reference": "general:res-1",
			"live_mode": true,
			"metadata": {"reservation_id": "res-1"}
		}`))
	}), 1)

	p, err := client.GetPayment(context.Background(), "123")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if p.AmountMinor != 150050 {
		t.Fatalf("expected 150050 minor units, got %d", p.AmountMinor)
	}
	if p.ID != "123" || p.Status != "approved" || p.StatusDetail != "accredited" {
		t.Fatalf("unexpected payment: %+v", p)
	}
	if p.Metadata["reservation_id"] != "res-1" {
		t.Fatalf("metadata not normalized: %+v", p.Metadata)
	}
}

func TestGetPayment_RetriesOnNotYetVisible(t *testing.T) {
	var calls int64
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id": 7, "status": "approved", "currency_id": "ARS", "transaction_amount": 10}`))
	}), 5)

	p, err := client.GetPayment(context.Background(), "7")
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if p.AmountMinor != 1000 {
		t.Fatalf("expected 1000, got %d", p.AmountMinor)
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
}

func TestGetPayment_NotFoundAfterRetries(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), 3)

	_, err := client.GetPayment(context.Background(), "missing")
	if !errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestGetPayment_ServerErrorsBecomeGatewayUnavailable(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}), 3)

	_, err := client.GetPayment(context.Background(), "1")
	if !errors.Is(err, domain.ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Fatal("gateway unavailability must be retryable for the caller")
	}
}

func TestGetPayment_ClientErrorAbortsImmediately(t *testing.T) {
	var calls int64
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}), 5)

	_, err := client.GetPayment(context.Background(), "1")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, domain.ErrGatewayUnavailable) || errors.Is(err, domain.ErrPaymentNotFound) {
		t.Fatalf("401 must not be mapped to retryable errors, got %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Fatalf("non-retryable error must abort after 1 call, got %d", got)
	}
}

func TestGetOrder_CollectsPayments(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchant_orders/55" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{
			"id": 55,
			"payments": [
				{"id": 1, "status": "rejected", "currency_id": "ARS", "transaction_amount": 10},
				{"id": 2, "status": "approved", "currency_id": "ARS", "transaction_amount": 10}
			]
		}`))
	}), 1)

	order, err := client.GetOrder(context.Background(), "55")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(order.Payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(order.Payments))
	}
	if order.Payments[1].Status != "approved" {
		t.Fatalf("unexpected payments: %+v", order.Payments)
	}
}

func TestSearchByPreference(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/search" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("preference_id"); got != "pref-9" {
			t.Fatalf("unexpected preference id %q", got)
		}
		_, _ = w.Write([]byte(`{"results": [{"id": 3, "status": "approved", "currency_id": "ARS", "transaction_amount": 25.5}]}`))
	}), 1)

	payments, err := client.SearchByPreference(context.Background(), "pref-9")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(payments) != 1 || payments[0].AmountMinor != 2550 {
		t.Fatalf("unexpected result: %+v", payments)
	}
}
