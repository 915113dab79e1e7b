package payment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"expertbooking/internal/pkg/config"
	"expertbooking/internal/pkg/errs"
	"expertbooking/internal/usecase/shared"

	"github.com/goccy/go-json"
)

// ErrProviderRejected marks any non-2xx provider response. Not retried
// here: the client retries with its original idempotency key.
var ErrProviderRejected = errs.New("payment provider rejected the request")

// Client talks to the provider's checkout-session API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.ProviderConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type createSessionRequest struct {
	AmountCents int64                  `json:"amount_cents"`
	Currency    string                 `json:"currency"`
	Methods     []string               `json:"methods"`
	Description string                 `json:"description"`
	ExpiresAt   time.Time              `json:"expires_at"`
	Metadata    shared.SessionMetadata `json:"metadata"`
}

type sessionResponse struct {
	ID          string    `json:"id"`
	CheckoutURL string    `json:"checkout_url"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (c *Client) CreateSession(ctx context.Context, p shared.CreateSessionParams) (*shared.PaymentSession, error) {
	body := createSessionRequest{
		AmountCents: p.AmountCents,
		Currency:    "EUR",
		Methods:     p.Methods,
		Description: p.Description,
		ExpiresAt:   p.ExpiresAt,
		Metadata:    p.Metadata,
	}

	var resp sessionResponse
	if err := c.post(ctx, "/v1/checkout-sessions", p.IdempotencyKey, body, &resp); err != nil {
		return nil, err
	}

	return &shared.PaymentSession{
		ID:          resp.ID,
		CheckoutURL: resp.CheckoutURL,
		Status:      resp.Status,
		ExpiresAt:   resp.ExpiresAt,
	}, nil
}

type createRefundRequest struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

func (c *Client) CreateRefund(ctx context.Context, sessionID, reason string) error {
	body := createRefundRequest{SessionID: sessionID, Reason: reason}
	return c.post(ctx, "/v1/refunds", "", body, nil)
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errs.Wrap(err, "failed to marshal provider request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return errs.Wrap(err, "failed to build provider request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Mark(errs.Wrap(err, "provider request failed"), ErrProviderRejected)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errs.Wrap(err, "failed to read provider response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errs.Mark(
			errs.New(fmt.Sprintf("provider returned %d: %s", resp.StatusCode, truncate(raw, 256))),
			ErrProviderRejected,
		)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errs.Wrap(err, "failed to decode provider response")
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
