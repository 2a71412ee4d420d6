package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitness-billing/internal/config"
	"fitness-billing/internal/domain/ports/adapter"
)

var _ adapter.BillingGateway = (*EripGateway)(nil)

// EripGateway talks to the invoice provider over its JSON API. Every call
// runs under an explicit timeout and a bounded retry policy; transport
// errors and 5xx responses are retried, 4xx are not.
type EripGateway struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	retries  int
	client   *http.Client
	log      *zerolog.Logger
}

func NewEripGateway(cfg config.GatewayConfig, log *zerolog.Logger) *EripGateway {
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &EripGateway{
		baseURL:  cfg.BaseURL,
		username: cfg.Username,
		password: cfg.Password,
		timeout:  cfg.Timeout,
		retries:  cfg.Retries,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

type authResponse struct {
	Token string `json:"token"`
}

type createBillResponse struct {
	BillID string `json:"billID"`
}

type billStatusResponse struct {
	TotalAmount decimal.Decimal `json:"totalAmount"`
	AmountPaid  decimal.Decimal `json:"amountPaid"`
	DueDate     time.Time       `json:"dueDate"`
}

type paymentLinkResponse struct {
	URL string `json:"url"`
}

func (g *EripGateway) Authenticate(ctx context.Context) (string, error) {
	body := map[string]string{"username": g.username, "password": g.password}
	var resp authResponse
	if err := g.call(ctx, http.MethodPost, "/security/opening", "", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("gateway auth: empty token")
	}
	return resp.Token, nil
}

func (g *EripGateway) CreateInvoice(ctx context.Context, token, invoiceName string, amount decimal.Decimal, meta adapter.InvoiceMeta) (string, error) {
	body := map[string]any{
		"number":     invoiceName, // provider-side idempotency key
		"amount":     amount.String(),
		"merchantId": meta.MerchantID,
		"storeName":  meta.StoreName,
		"serviceId":  meta.ServiceID,
	}
	var resp createBillResponse
	if err := g.call(ctx, http.MethodPost, "/invoicing/bills", token, body, &resp); err != nil {
		return "", err
	}
	if resp.BillID == "" {
		return "", fmt.Errorf("create invoice %s: empty bill id", invoiceName)
	}
	return resp.BillID, nil
}

func (g *EripGateway) ActivateInvoice(ctx context.Context, token, invoiceID string) error {
	return g.call(ctx, http.MethodPut, "/invoicing/bills/"+invoiceID+"/status", token, map[string]bool{"active": true}, nil)
}

func (g *EripGateway) DeactivateInvoice(ctx context.Context, token, invoiceID string) error {
	return g.call(ctx, http.MethodPut, "/invoicing/bills/"+invoiceID+"/status", token, map[string]bool{"active": false}, nil)
}

func (g *EripGateway) QueryInvoice(ctx context.Context, token, invoiceName string) (adapter.InvoiceStatus, error) {
	var resp billStatusResponse
	if err := g.call(ctx, http.MethodGet, "/invoicing/bills?number="+invoiceName, token, nil, &resp); err != nil {
		return adapter.InvoiceStatus{}, err
	}
	return adapter.InvoiceStatus{
		TotalAmount: resp.TotalAmount,
		AmountPaid:  resp.AmountPaid,
		DueDate:     resp.DueDate,
	}, nil
}

func (g *EripGateway) PaymentLink(ctx context.Context, token, invoiceID string) (string, error) {
	var resp paymentLinkResponse
	if err := g.call(ctx, http.MethodGet, "/invoicing/bills/"+invoiceID+"/paymentlink", token, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// call performs one logical request with retries. out may be nil when the
// response body does not matter.
func (g *EripGateway) call(ctx context.Context, method, path, token string, body, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	var lastErr error
	for attempt := 0; attempt < g.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		retryable, err := g.once(ctx, method, path, token, payload, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
		g.log.Warn().Err(err).Str("path", path).Int("attempt", attempt+1).Msg("gateway call retry")
	}
	return lastErr
}

func (g *EripGateway) once(ctx context.Context, method, path, token string, payload []byte, out any) (retryable bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("gateway %s %s: status %d, body: %s", method, path, resp.StatusCode, string(b))
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("gateway %s %s: status %d, body: %s", method, path, resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.Unmarshal(b, out); err != nil {
			return false, fmt.Errorf("unmarshal response: %w, body: %s", err, string(b))
		}
	}
	return false, nil
}
