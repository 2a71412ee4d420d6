//go:build !integration

package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitness-billing/internal/config"
	"fitness-billing/internal/domain/ports/adapter"
)

func testGateway(baseURL string) *EripGateway {
	l := zerolog.New(io.Discard)
	return NewEripGateway(config.GatewayConfig{
		BaseURL:  baseURL,
		Username: "merchant",
		Password: "secret",
		Timeout:  2 * time.Second,
		Retries:  3,
	}, &l)
}

func TestEripGateway_Authenticate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/security/opening" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "merchant" || body["password"] != "secret" {
			t.Errorf("unexpected credentials: %v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	}))
	defer srv.Close()

	token, err := testGateway(srv.URL).Authenticate(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if token != "tok-1" {
		t.Errorf("expected token tok-1, got %q", token)
	}
}

func TestEripGateway_CreateInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoicing/bills" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("expected bearer token, got %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["number"] != "payment_7" {
			t.Errorf("expected invoice number payment_7, got %v", body["number"])
		}
		if body["amount"] != "99.5" {
			t.Errorf("expected amount 99.5, got %v", body["amount"])
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"billID": "bill-9"})
	}))
	defer srv.Close()

	id, err := testGateway(srv.URL).CreateInvoice(
		context.Background(), "tok-1", "payment_7",
		decimal.RequireFromString("99.5"),
		adapter.InvoiceMeta{MerchantID: "m-1", StoreName: "store", ServiceID: "7000"},
	)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if id != "bill-9" {
		t.Errorf("expected bill-9, got %q", id)
	}
}

func TestEripGateway_QueryInvoice(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoicing/bills" || r.URL.Query().Get("number") != "payment_7" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalAmount": "100",
			"amountPaid":  "100",
			"dueDate":     due.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	status, err := testGateway(srv.URL).QueryInvoice(context.Background(), "tok-1", "payment_7")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !status.TotalAmount.Equal(status.AmountPaid) {
		t.Errorf("expected a fully paid invoice, got %s/%s", status.AmountPaid, status.TotalAmount)
	}
	if !status.DueDate.Equal(due) {
		t.Errorf("expected due date %s, got %s", due, status.DueDate)
	}
}

func TestEripGateway_Retries(t *testing.T) {
	t.Run("retries a 5xx and succeeds", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
		}))
		defer srv.Close()

		token, err := testGateway(srv.URL).Authenticate(context.Background())
		if err != nil {
			t.Fatalf("expected success after retries, got: %v", err)
		}
		if token != "tok-1" {
			t.Errorf("expected token tok-1, got %q", token)
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("expected 3 attempts, got %d", got)
		}
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := testGateway(srv.URL).Authenticate(context.Background())
		if err == nil {
			t.Fatal("expected an error")
		}
		if got := calls.Load(); got != 3 {
			t.Errorf("expected 3 attempts, got %d", got)
		}
	})

	t.Run("does not retry a 4xx", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := testGateway(srv.URL).Authenticate(context.Background())
		if err == nil {
			t.Fatal("expected an error")
		}
		if got := calls.Load(); got != 1 {
			t.Errorf("expected a single attempt, got %d", got)
		}
	})

	t.Run("stops retrying when the context is cancelled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		g := testGateway(srv.URL)
		_, err := g.Authenticate(ctx)
		if err == nil {
			t.Fatal("expected an error")
		}
	})
}

func TestEripGateway_ActivateDeactivate(t *testing.T) {
	var lastBody map[string]bool
	var lastPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	g := testGateway(srv.URL)
	if err := g.ActivateInvoice(context.Background(), "tok-1", "bill-9"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if lastPath != "/invoicing/bills/bill-9/status" || !lastBody["active"] {
		t.Errorf("unexpected activate request: %s %v", lastPath, lastBody)
	}

	if err := g.DeactivateInvoice(context.Background(), "tok-1", "bill-9"); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if lastBody["active"] {
		t.Errorf("expected active=false, got %v", lastBody)
	}
}

func TestNewEripGateway_ClampsConfig(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "tok-1"})
	}))
	defer srv.Close()

	l := zerolog.New(io.Discard)
	g := NewEripGateway(config.GatewayConfig{
		BaseURL:  srv.URL,
		Username: "merchant",
		Password: "secret",
	}, &l)

	// A zero-value retry count must still send the request.
	if _, err := g.Authenticate(context.Background()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 request, got %d", calls.Load())
	}
	if g.retries <= 0 || g.timeout <= 0 {
		t.Errorf("config not clamped: retries=%d timeout=%s", g.retries, g.timeout)
	}
}
