// Package paystack talks to a Paystack compatible payment gateway.
package paystack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://api.paystack.co"
	maxBodyBytes   = 1 << 20
)

// ErrUnavailable marks failures where the outcome of the transaction is unknown:
// network errors, timeouts, 5xx/429 responses and unparseable bodies. Callers must
// leave local payment state untouched.
var ErrUnavailable = errors.New("paystack: gateway unavailable")

// Config holds client configuration.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client verifies transactions by reference.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// New builds a client. A zero timeout defaults to 30s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		baseURL:    base,
		secretKey:  cfg.SecretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Verification is the parsed outcome of a verify call.
type Verification struct {
	HTTPStatus        int
	Status            bool
	Message           string
	TransactionStatus string
	Reference         string
	TransactionID     string
	Amount            int64
	Currency          string
	PaidAt            *time.Time
}

// Succeeded reports whether the gateway confirms a successful charge of at least
// minAmount minor units for the transaction identified by reference.
func (v *Verification) Succeeded(reference string, minAmount int64) bool {
	if v == nil || !v.Status {
		return false
	}
	return v.Reference == reference && v.TransactionStatus == "success" && v.Amount >= minAmount
}

// Reason summarises why a verification did not succeed.
func (v *Verification) Reason(reference string, minAmount int64) string {
	switch {
	case v == nil:
		return "no response"
	case !v.Status:
		if v.Message != "" {
			return v.Message
		}
		return "gateway returned status false"
	case v.Reference != reference:
		return fmt.Sprintf("gateway confirmed reference %q, expected %q", v.Reference, reference)
	case v.TransactionStatus != "success":
		return fmt.Sprintf("transaction status is %q", v.TransactionStatus)
	case v.Amount < minAmount:
		return fmt.Sprintf("amount %d is below the required %d", v.Amount, minAmount)
	default:
		return ""
	}
}

// Verify fetches the transaction identified by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	if strings.TrimSpace(reference) == "" {
		return nil, errors.New("paystack: reference required")
	}
	endpoint := c.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: malformed response (http %d)", ErrUnavailable, resp.StatusCode)
	}

	return parseVerification(resp.StatusCode, body), nil
}

func parseVerification(httpStatus int, body []byte) *Verification {
	res := gjson.ParseBytes(body)
	v := &Verification{
		HTTPStatus:        httpStatus,
		Status:            res.Get("status").Bool(),
		Message:           res.Get("message").String(),
		TransactionStatus: res.Get("data.status").String(),
		Reference:         res.Get("data.reference").String(),
		Amount:            res.Get("data.amount").Int(),
		Currency:          res.Get("data.currency").String(),
	}
	if id := res.Get("data.id"); id.Exists() {
		v.TransactionID = id.String()
	}
	if paid := res.Get("data.paid_at").String(); paid != "" {
		if ts, err := time.Parse(time.RFC3339, paid); err == nil {
			v.PaidAt = &ts
		}
	}
	if httpStatus >= http.StatusBadRequest {
		v.Status = false
	}
	return v
}
