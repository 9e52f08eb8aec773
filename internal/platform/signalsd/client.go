// Package signalsd is the REST client for the signals-engine backend: market
// listings, ranked signals, AI advice (free and premium), paper trading, and
// payment verification.
package signalsd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nort67/marketbot/internal/domain"
)

// bodyPreviewLimit bounds how much of an error body is carried back for
// user-visible diagnostics.
const bodyPreviewLimit = 2000

// Client talks to the signals-engine backend over HTTP.
//
// Advice generation runs an AI agent upstream, so the read timeout is
// deliberately generous while the connect timeout stays short.
type Client struct {
	baseURL      string
	signalsLimit int
	httpClient   *http.Client
}

// Config holds construction parameters for the Client.
type Config struct {
	BaseURL        string
	ConnectTimeout time.Duration // default 10s
	ReadTimeout    time.Duration // default 60s; agent calls are slow
	SignalsLimit   int           // default 20, passed as ?top=
}

// New creates a backend client from cfg, applying defaults for any zero
// timeout values.
func New(cfg Config) *Client {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 10 * time.Second
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = 60 * time.Second
	}
	limit := cfg.SignalsLimit
	if limit <= 0 {
		limit = 20
	}

	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		signalsLimit: limit,
		httpClient: &http.Client{
			Timeout: read,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connect,
				}).DialContext,
				TLSHandshakeTimeout: connect,
				MaxIdleConns:        16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// Trending returns the raw trending-markets payload.
func (c *Client) Trending(ctx context.Context) domain.BackendResult {
	return c.doGet(ctx, "/markets/trending")
}

// Markets returns the raw market-listing payload.
func (c *Client) Markets(ctx context.Context) domain.BackendResult {
	return c.doGet(ctx, "/markets")
}

// Signals returns the raw ranked-signals payload.
func (c *Client) Signals(ctx context.Context) domain.BackendResult {
	return c.doGet(ctx, "/signals?top="+strconv.Itoa(c.signalsLimit))
}

// Advice returns the raw free-tier advice payload for marketID.
func (c *Client) Advice(ctx context.Context, marketID string) domain.BackendResult {
	params := url.Values{}
	params.Set("market_id", marketID)
	return c.doGet(ctx, "/agent/advice?"+params.Encode())
}

// PremiumAdvice returns the raw premium advice payload for marketID. The
// backend answers with a payment-required condition until the chat has paid.
func (c *Client) PremiumAdvice(ctx context.Context, marketID string, chatID int64) domain.BackendResult {
	params := url.Values{}
	params.Set("market_id", marketID)
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	return c.doGet(ctx, "/agent/advice/premium?"+params.Encode())
}

// PlacePaperTrade submits a simulated trade. The amount must be a finite
// positive number and side is normalized to an uppercase outcome token before
// anything is sent; violations resolve locally to a TransportError without a
// backend call.
func (c *Client) PlacePaperTrade(ctx context.Context, chatID int64, marketID, side string, amount float64) domain.BackendResult {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return domain.TransportErrorResult(fmt.Sprintf("invalid trade amount %v", amount), "")
	}

	payload := map[string]any{
		"user_id":         strconv.FormatInt(chatID, 10),
		"market_id":       marketID,
		"side":            strings.ToUpper(strings.TrimSpace(side)),
		"amount":          amount,
		"client_order_id": uuid.NewString(),
	}
	return c.doPost(ctx, "/papertrade", payload)
}

// VerifyPayment asks the backend to confirm a transaction proof for chatID.
func (c *Client) VerifyPayment(ctx context.Context, proof string, chatID int64) domain.BackendResult {
	payload := map[string]any{
		"tx_hash": proof,
		"chat_id": strconv.FormatInt(chatID, 10),
	}
	return c.doPost(ctx, "/payments/verify", payload)
}

// WalletSummary returns the raw paper-trading wallet snapshot for chatID.
func (c *Client) WalletSummary(ctx context.Context, chatID int64) domain.BackendResult {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(chatID, 10))
	return c.doGet(ctx, "/wallet/summary?"+params.Encode())
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) doGet(ctx context.Context, path string) domain.BackendResult {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *Client) doPost(ctx context.Context, path string, payload any) domain.BackendResult {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.TransportErrorResult(fmt.Sprintf("encode request: %v", err), "")
	}
	return c.do(ctx, http.MethodPost, path, body)
}

// do sends one request and folds every outcome into a BackendResult. Nothing
// escapes as a Go error.
func (c *Client) do(ctx context.Context, method, path string, reqBody []byte) domain.BackendResult {
	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return domain.TransportErrorResult(fmt.Sprintf("create request: %v", err), "")
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.TransportErrorResult(fmt.Sprintf("connection failed: %v", err), "")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.TransportErrorResult(fmt.Sprintf("read response: %v", err), "")
	}

	if paymentSignaled(resp.StatusCode, body) {
		return c.paymentRequired(body)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.TransportErrorResult(
			fmt.Sprintf("backend returned HTTP %d", resp.StatusCode),
			preview(body),
		)
	}

	return domain.OkResult(body)
}

// paymentSignaled detects the server's payment-required condition, either as
// HTTP 402 or as an application-level marker embedded in the body.
func paymentSignaled(status int, body []byte) bool {
	if status == http.StatusPaymentRequired {
		return true
	}
	return bytes.Contains(body, []byte("PAYMENT-REQUIRED"))
}

// paymentRequired parses amount, asset, and address out of a
// payment-required body. If any of the three cannot be recovered the result
// degrades to a TransportError carrying the raw body so the caller can still
// show something to the user.
func (c *Client) paymentRequired(body []byte) domain.BackendResult {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return domain.TransportErrorResult("payment required, but payment details were unreadable", preview(body))
	}

	req := domain.PaymentRequirement{}
	ok := true

	switch v := raw["amount"].(type) {
	case float64:
		req.Amount = v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			ok = false
		}
		req.Amount = f
	default:
		ok = false
	}
	if s, isStr := raw["asset"].(string); isStr && s != "" {
		req.Asset = s
	} else {
		ok = false
	}
	if s, isStr := raw["address"].(string); isStr && s != "" {
		req.Address = s
	} else {
		ok = false
	}

	if !ok || req.Amount <= 0 {
		return domain.TransportErrorResult("payment required, but payment details were unreadable", preview(body))
	}
	return domain.PaymentRequiredResult(req)
}

// preview bounds a raw body for user-visible diagnostics. Clipped by runes
// so a multi-byte character is never split.
func preview(body []byte) string {
	runes := []rune(string(body))
	if len(runes) > bodyPreviewLimit {
		runes = runes[:bodyPreviewLimit]
	}
	return string(runes)
}

// Compile-time interface check.
var _ domain.MarketService = (*Client)(nil)
