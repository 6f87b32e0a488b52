package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultPaystackURL is the production API root.
const DefaultPaystackURL = "https://api.paystack.co"

// Paystack is a client for the Paystack transaction API.
type Paystack struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewPaystack returns a client rooted at baseURL.  A nil client uses a plain
// http.Client; callers bound each call with a context deadline instead of a
// client-wide timeout.
func NewPaystack(baseURL string, client *http.Client, logger *zap.Logger) *Paystack {
	if baseURL == "" {
		baseURL = DefaultPaystackURL
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Paystack{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logger:  logger.Named("paystack"),
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize creates a transaction and returns the hosted checkout URL.
func (p *Paystack) Initialize(ctx context.Context, secretKey string, req InitializeRequest) (Session, error) {
	body := map[string]any{
		"email":     req.Email,
		"amount":    req.AmountMinor,
		"reference": req.Reference,
		"metadata":  req.Metadata,
	}
	if req.Currency != "" {
		body["currency"] = req.Currency
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := p.do(ctx, secretKey, http.MethodPost, "/transaction/initialize", body, &data); err != nil {
		return Session{}, err
	}
	if data.Reference == "" {
		data.Reference = req.Reference
	}
	return Session{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify fetches the transaction by reference.  An unknown reference comes
// back as an *APIError wrapping ErrRejected.
func (p *Paystack) Verify(ctx context.Context, secretKey, reference string) (Transaction, error) {
	var data struct {
		Reference string          `json:"reference"`
		Status    string          `json:"status"`
		Amount    int64           `json:"amount"`
		Currency  string          `json:"currency"`
		PaidAt    *time.Time      `json:"paid_at"`
		Metadata  json.RawMessage `json:"metadata"`
	}
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.do(ctx, secretKey, http.MethodGet, path, nil, &data); err != nil {
		return Transaction{}, err
	}
	md, err := decodeMetadata(data.Metadata)
	if err != nil {
		p.logger.Warn("unreadable transaction metadata", zap.String("reference", reference), zap.Error(err))
	}
	return Transaction{
		Reference:   data.Reference,
		Status:      data.Status,
		AmountMinor: data.Amount,
		Currency:    data.Currency,
		PaidAt:      data.PaidAt,
		Metadata:    md,
	}, nil
}

func (p *Paystack) do(ctx context.Context, secretKey, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("paystack: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+secretKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			p.logger.Warn("request timed out", zap.String("path", path))
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		p.logger.Error("request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%w: reading %s", ErrTimeout, path)
		}
		return fmt.Errorf("paystack: read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		p.logger.Warn("unreadable response", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: http %d: malformed response", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		p.logger.Warn("server error", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: http %d: %s", ErrUnavailable, resp.StatusCode, env.Message)
	}
	if resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("paystack: decode data: %w", err)
		}
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// decodeMetadata accepts the object we sent as well as the looser shapes
// the gateway hands back (numbers as strings, or an empty string when no
// metadata was attached).
func decodeMetadata(raw json.RawMessage) (Metadata, error) {
	var md Metadata
	if len(raw) == 0 || string(raw) == "null" || string(raw) == `""` {
		return md, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return md, err
	}
	md.EventID = str(fields["eventId"])
	md.TierID = str(fields["ticketId"])
	md.BuyerID = str(fields["userId"])
	switch q := fields["quantity"].(type) {
	case float64:
		md.Quantity = int(q)
	case string:
		md.Quantity, _ = strconv.Atoi(q)
	}
	return md, nil
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}
