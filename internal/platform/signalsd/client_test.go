package signalsd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nort67/marketbot/internal/domain"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return New(Config{BaseURL: srv.URL}), srv
}

func TestTrendingOK(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/trending", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Write([]byte(`{"markets":[]}`))
	})
	defer srv.Close()

	res := c.Trending(context.Background())
	assert.Equal(t, domain.ResultOK, res.Kind)
	assert.JSONEq(t, `{"markets":[]}`, string(res.Body))
}

func TestSignalsPassesTopParam(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/signals", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("top"))
		w.Write([]byte(`{"signals":[]}`))
	})
	defer srv.Close()

	res := c.Signals(context.Background())
	assert.Equal(t, domain.ResultOK, res.Kind)
}

func TestPremiumAdvicePassesChatID(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agent/advice/premium", r.URL.Path)
		assert.Equal(t, "527079", r.URL.Query().Get("market_id"))
		assert.Equal(t, "7", r.URL.Query().Get("chat_id"))
		w.Write([]byte(`{"content":"x"}`))
	})
	defer srv.Close()

	res := c.PremiumAdvice(context.Background(), "527079", 7)
	assert.Equal(t, domain.ResultOK, res.Kind)
}

func TestPaymentRequired(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{
			name:   "http 402",
			status: http.StatusPaymentRequired,
			body:   `{"amount":0.05,"asset":"USDC","address":"0xABC"}`,
		},
		{
			name:   "body marker on http 200",
			status: http.StatusOK,
			body:   `{"error":"PAYMENT-REQUIRED","amount":0.05,"asset":"USDC","address":"0xABC"}`,
		},
		{
			name:   "string amount",
			status: http.StatusPaymentRequired,
			body:   `{"amount":"0.05","asset":"USDC","address":"0xABC"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			defer srv.Close()

			res := c.PremiumAdvice(context.Background(), "527079", 7)
			require.Equal(t, domain.ResultPaymentRequired, res.Kind)
			assert.InDelta(t, 0.05, res.Payment.Amount, 1e-9)
			assert.Equal(t, "USDC", res.Payment.Asset)
			assert.Equal(t, "0xABC", res.Payment.Address)
		})
	}
}

func TestPaymentRequiredUnreadableDetails(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `payment needed`},
		{name: "missing address", body: `{"amount":0.05,"asset":"USDC"}`},
		{name: "zero amount", body: `{"amount":0,"asset":"USDC","address":"0xABC"}`},
		{name: "non-numeric amount", body: `{"amount":"lots","asset":"USDC","address":"0xABC"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusPaymentRequired)
				w.Write([]byte(tt.body))
			})
			defer srv.Close()

			res := c.PremiumAdvice(context.Background(), "527079", 7)
			require.Equal(t, domain.ResultTransportError, res.Kind)
			assert.Contains(t, res.Message, "payment details were unreadable")
			assert.Equal(t, tt.body, res.RawBody)
		})
	}
}

func TestNonSuccessStatus(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`boom`))
	})
	defer srv.Close()

	res := c.Trending(context.Background())
	require.Equal(t, domain.ResultTransportError, res.Kind)
	assert.Contains(t, res.Message, "HTTP 500")
	assert.Equal(t, "boom", res.RawBody)
}

func TestErrorBodyPreviewIsBounded(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 10_000)))
	})
	defer srv.Close()

	res := c.Trending(context.Background())
	require.Equal(t, domain.ResultTransportError, res.Kind)
	assert.Len(t, res.RawBody, bodyPreviewLimit)
}

func TestErrorBodyPreviewKeepsRunesIntact(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("π", 5_000)))
	})
	defer srv.Close()

	res := c.Trending(context.Background())
	require.Equal(t, domain.ResultTransportError, res.Kind)
	assert.True(t, utf8.ValidString(res.RawBody))
	assert.Equal(t, bodyPreviewLimit, utf8.RuneCountInString(res.RawBody))
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(nil)
	c := New(Config{BaseURL: srv.URL})
	srv.Close()

	res := c.Trending(context.Background())
	require.Equal(t, domain.ResultTransportError, res.Kind)
	assert.Contains(t, res.Message, "connection failed")
}

func TestContextCancellation(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Trending(ctx)
	assert.Equal(t, domain.ResultTransportError, res.Kind)
}

func TestPlacePaperTrade(t *testing.T) {
	var got map[string]any
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/papertrade", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"order_id":"ord-1","status":"ACCEPTED"}`))
	})
	defer srv.Close()

	res := c.PlacePaperTrade(context.Background(), 7, "527079", " yes ", 50)
	require.Equal(t, domain.ResultOK, res.Kind)

	assert.Equal(t, "527079", got["market_id"])
	assert.Equal(t, "YES", got["side"])
	assert.Equal(t, "7", got["user_id"])
	assert.InDelta(t, 50, got["amount"].(float64), 1e-9)
	assert.NotEmpty(t, got["client_order_id"])
}

func TestPlacePaperTradeRejectsBadAmountLocally(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend must not be contacted for an invalid amount")
	})
	defer srv.Close()

	for _, amount := range []float64{0, -5} {
		res := c.PlacePaperTrade(context.Background(), 7, "527079", "yes", amount)
		assert.Equal(t, domain.ResultTransportError, res.Kind)
	}
}

func TestVerifyPaymentPayload(t *testing.T) {
	var got map[string]any
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/verify", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":true}`))
	})
	defer srv.Close()

	proof := strings.Repeat("ab", 32)
	res := c.VerifyPayment(context.Background(), proof, 7)
	require.Equal(t, domain.ResultOK, res.Kind)
	assert.Equal(t, proof, got["tx_hash"])
	assert.Equal(t, "7", got["chat_id"])
}

func TestBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets", r.URL.Path)
		w.Write([]byte(`{"markets":[]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/"})
	res := c.Markets(context.Background())
	assert.Equal(t, domain.ResultOK, res.Kind)
}
