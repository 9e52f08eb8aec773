// Package normalize converts loosely-typed backend payloads into the typed
// domain structures. The backend schema has drifted across versions, so every
// field is resolved through an ordered list of candidate keys and missing
// optional fields fall back to documented defaults instead of failing.
package normalize

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/nort67/marketbot/internal/domain"
)

const (
	// trendingLimit and signalsLimit bound what is rendered from list
	// endpoints; marketsLimit bounds the raw listing.
	trendingLimit = 10
	signalsLimit  = 10
	marketsLimit  = 50

	// rawPreviewLimit caps how much of an unparsable body is preserved for
	// fallback display.
	rawPreviewLimit = 2000

	// listPlaceholder stands in for a list field that could not be
	// interpreted at all.
	listPlaceholder = "(unavailable)"

	// DefaultPlan is the suggested plan when the backend omits one.
	DefaultPlan = "WAIT"
	// DefaultConfidence is used when the backend omits a confidence score.
	DefaultConfidence = 0.5
	// DefaultDisclaimer is attached to advice that arrived without one.
	DefaultDisclaimer = "Not financial advice. Prediction markets are volatile; trade at your own risk."
)

// ParseError is the typed parse failure: the payload shape could not be
// interpreted. Raw holds a bounded copy of the offending body.
type ParseError struct {
	Raw string
}

func (e *ParseError) Error() string {
	return "unexpected response shape"
}

// parseFailure clips by runes so the preview stays valid UTF-8; the chat
// platform rejects messages with broken encoding.
func parseFailure(body []byte) *ParseError {
	runes := []rune(string(body))
	if len(runes) > rawPreviewLimit {
		runes = runes[:rawPreviewLimit]
	}
	return &ParseError{Raw: string(runes)}
}

// TrendingList parses a trending-markets payload, preserving backend order
// and truncating to the rendered top 10.
func TrendingList(body []byte) ([]domain.MarketSummary, error) {
	return marketList(body, trendingLimit, "markets", "trending", "data")
}

// MarketList parses a market-listing payload, truncated to 50 raw markets.
func MarketList(body []byte) ([]domain.MarketSummary, error) {
	return marketList(body, marketsLimit, "markets", "data", "results")
}

func marketList(body []byte, limit int, arrayKeys ...string) ([]domain.MarketSummary, error) {
	items, err := itemsOf(body, arrayKeys...)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MarketSummary, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		m := domain.MarketSummary{
			ID:       str(obj, "id", "market_id"),
			Question: str(obj, "question", "title"),
		}
		if v, ok := num(obj, "volume", "volume_usd"); ok && v >= 0 {
			m.Volume = v
		}
		if v, ok := num(obj, "current_odds", "odds", "probability"); ok {
			m.CurrentOdds = v
			m.HasOdds = true
		}
		if ts, ok := timestamp(obj, "expires_at", "expiry", "end_date"); ok {
			m.ExpiresAt = &ts
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// SignalList parses a ranked-signals payload. Signals are ordered by score
// descending with ties broken by original backend order, truncated to the
// rendered top 10.
func SignalList(body []byte) ([]domain.Signal, error) {
	items, err := itemsOf(body, "signals", "data")
	if err != nil {
		return nil, err
	}

	out := make([]domain.Signal, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s := domain.Signal{
			MarketID: str(obj, "market_id", "id"),
			Question: str(obj, "question", "title"),
			Reason:   str(obj, "reason", "rationale"),
		}
		if v, ok := num(obj, "score", "strength"); ok {
			s.Score = v
		}
		if v, ok := num(obj, "volume"); ok {
			s.Volume = v
		}
		if v, ok := num(obj, "current_odds", "odds"); ok {
			s.CurrentOdds = v
			s.HasOdds = true
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > signalsLimit {
		out = out[:signalsLimit]
	}
	return out, nil
}

// Advice parses a free-tier advice payload. Missing optional fields take
// their documented defaults; only a body with no recognizable object shape
// fails.
func Advice(marketID string, body []byte) (domain.AdviceResult, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return domain.AdviceResult{}, parseFailure(body)
	}

	res := domain.AdviceResult{
		MarketID:      marketID,
		Summary:       str(obj, "summary", "analysis"),
		WhyTrending:   str(obj, "why_trending", "why"),
		RiskFactors:   stringList(obj, "risk_factors", "risks"),
		SuggestedPlan: DefaultPlan,
		Confidence:    DefaultConfidence,
		Disclaimer:    DefaultDisclaimer,
	}

	if id := str(obj, "market_id", "id"); id != "" {
		res.MarketID = id
	}
	if p := str(obj, "suggested_plan", "plan"); p != "" {
		res.SuggestedPlan = strings.ToUpper(p)
	}
	if v, ok := num(obj, "confidence"); ok && v >= 0 && v <= 1 {
		res.Confidence = v
	}
	if d := str(obj, "disclaimer"); d != "" {
		res.Disclaimer = d
	}
	res.StaleDataWarning = str(obj, "stale_data_warning", "stale_warning")

	return res, nil
}

// PremiumContent extracts the unlocked premium content string.
func PremiumContent(body []byte) (string, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", parseFailure(body)
	}
	content := str(obj, "content", "premium_content")
	if content == "" {
		return "", parseFailure(body)
	}
	return content, nil
}

// Verification parses a payment-verification verdict. A missing reason on a
// failed verification defaults to "Unknown error".
func Verification(body []byte) (domain.PaymentVerification, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return domain.PaymentVerification{}, parseFailure(body)
	}

	v := domain.PaymentVerification{}
	success, ok := obj["success"].(bool)
	if !ok {
		if s, isStr := obj["success"].(string); isStr {
			success = strings.EqualFold(s, "true")
		} else {
			return domain.PaymentVerification{}, parseFailure(body)
		}
	}
	v.Success = success
	if !v.Success {
		v.Reason = str(obj, "reason", "error")
		if v.Reason == "" {
			v.Reason = "Unknown error"
		}
	}
	return v, nil
}

// TradeReceipt parses a paper-trade confirmation.
func TradeReceipt(body []byte) (domain.PaperTradeReceipt, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return domain.PaperTradeReceipt{}, parseFailure(body)
	}

	r := domain.PaperTradeReceipt{
		OrderID:  str(obj, "order_id", "id"),
		MarketID: str(obj, "market_id"),
		Side:     strings.ToUpper(str(obj, "side")),
		Status:   str(obj, "status"),
	}
	if v, ok := num(obj, "amount"); ok {
		r.Amount = v
	}
	if r.Status == "" {
		r.Status = "ACCEPTED"
	}
	return r, nil
}

// Wallet parses a wallet-summary payload.
func Wallet(body []byte) (domain.WalletSummary, error) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return domain.WalletSummary{}, parseFailure(body)
	}

	w := domain.WalletSummary{}
	v, ok := num(obj, "balance", "balance_usd")
	if !ok {
		return domain.WalletSummary{}, parseFailure(body)
	}
	w.Balance = v
	if n, ok := num(obj, "active_bets", "open_positions"); ok {
		w.ActiveBets = int(n)
	}
	return w, nil
}

// --------------------------------------------------------------------------
// Field lookup helpers
// --------------------------------------------------------------------------

// itemsOf returns the payload's item array: either the body is a bare JSON
// array, or an object holding the array under one of arrayKeys. Anything
// else is a ParseError.
func itemsOf(body []byte, arrayKeys ...string) ([]any, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var items []any
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, parseFailure(body)
		}
		return items, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, parseFailure(body)
	}
	v, ok := field(obj, arrayKeys...)
	if !ok {
		return nil, parseFailure(body)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, parseFailure(body)
	}
	return items, nil
}

// field resolves a value through an ordered list of candidate keys. Each
// candidate is tried as written and then as its lowercase no-separator form,
// which covers the backend revisions that dropped underscores.
func field(obj map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
		compact := strings.ReplaceAll(strings.ToLower(k), "_", "")
		if compact != k {
			if v, ok := obj[compact]; ok {
				return v, true
			}
		}
	}
	return nil, false
}

func str(obj map[string]any, keys ...string) string {
	v, ok := field(obj, keys...)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// num coerces a numeric field that some backend revisions serialize as a
// string.
func num(obj map[string]any, keys ...string) (float64, bool) {
	v, ok := field(obj, keys...)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		var f float64
		if err := json.Unmarshal([]byte(strings.TrimSpace(n)), &f); err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func timestamp(obj map[string]any, keys ...string) (time.Time, bool) {
	s := str(obj, keys...)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// stringList resolves a list field that may arrive as a native JSON array or
// as a list serialized inside a string. A value that cannot be interpreted as
// a list at all degrades to the literal placeholder rather than aborting the
// whole parse.
func stringList(obj map[string]any, keys ...string) []string {
	v, ok := field(obj, keys...)
	if !ok {
		return nil
	}

	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		trimmed := strings.TrimSpace(list)
		if trimmed == "" {
			return nil
		}
		// Embedded JSON array first, then newline/semicolon separated text.
		if strings.HasPrefix(trimmed, "[") {
			var parsed []string
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return parsed
			}
			return []string{listPlaceholder}
		}
		var out []string
		for _, part := range strings.FieldsFunc(trimmed, func(r rune) bool {
			return r == '\n' || r == ';'
		}) {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	default:
		return []string{listPlaceholder}
	}
}
