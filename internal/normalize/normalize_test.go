package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendingList(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
		wantErr bool
	}{
		{
			name:    "object with markets key",
			body:    `{"markets":[{"id":"1","question":"A?","volume":100},{"id":"2","question":"B?","volume":50}]}`,
			wantLen: 2,
		},
		{
			name:    "bare top-level array",
			body:    `[{"id":"1","question":"A?"}]`,
			wantLen: 1,
		},
		{
			name:    "no-separator key variant",
			body:    `{"markets":[{"marketid":"1","question":"A?","currentodds":0.62}]}`,
			wantLen: 1,
		},
		{
			name:    "missing array key",
			body:    `{"unexpected":"shape"}`,
			wantErr: true,
		},
		{
			name:    "not json at all",
			body:    `Error: Backend unreachable.`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markets, err := TrendingList([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.NotEmpty(t, pe.Raw)
				return
			}
			require.NoError(t, err)
			assert.Len(t, markets, tt.wantLen)
		})
	}
}

func TestTrendingListTruncatesToTen(t *testing.T) {
	var items []string
	for i := 0; i < 25; i++ {
		items = append(items, `{"id":"m","question":"q"}`)
	}
	body := `{"markets":[` + strings.Join(items, ",") + `]}`

	markets, err := TrendingList([]byte(body))
	require.NoError(t, err)
	assert.Len(t, markets, 10)
}

func TestTrendingListPreservesBackendOrder(t *testing.T) {
	body := `{"markets":[{"id":"z"},{"id":"a"},{"id":"m"}]}`
	markets, err := TrendingList([]byte(body))
	require.NoError(t, err)
	require.Len(t, markets, 3)
	assert.Equal(t, "z", markets[0].ID)
	assert.Equal(t, "a", markets[1].ID)
	assert.Equal(t, "m", markets[2].ID)
}

func TestTrendingListOddsPresence(t *testing.T) {
	body := `{"markets":[{"id":"1","current_odds":0.62},{"id":"2"}]}`
	markets, err := TrendingList([]byte(body))
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.True(t, markets[0].HasOdds)
	assert.InDelta(t, 0.62, markets[0].CurrentOdds, 1e-9)
	assert.False(t, markets[1].HasOdds)
}

func TestParseErrorRawIsBounded(t *testing.T) {
	huge := `{"nope":"` + strings.Repeat("x", 10_000) + `"}`
	_, err := TrendingList([]byte(huge))
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.LessOrEqual(t, utf8.RuneCountInString(pe.Raw), rawPreviewLimit)
}

func TestParseErrorRawKeepsRunesIntact(t *testing.T) {
	huge := `{"nope":"` + strings.Repeat("é", 5_000) + `"}`
	_, err := TrendingList([]byte(huge))
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.True(t, utf8.ValidString(pe.Raw))
	assert.Equal(t, rawPreviewLimit, utf8.RuneCountInString(pe.Raw))
}

func TestSignalListRanking(t *testing.T) {
	body := `{"signals":[
		{"market_id":"low","score":0.2},
		{"market_id":"tie1","score":0.8},
		{"market_id":"high","score":0.9},
		{"market_id":"tie2","score":0.8}
	]}`

	signals, err := SignalList([]byte(body))
	require.NoError(t, err)
	require.Len(t, signals, 4)

	assert.Equal(t, "high", signals[0].MarketID)
	// Ties keep original backend order.
	assert.Equal(t, "tie1", signals[1].MarketID)
	assert.Equal(t, "tie2", signals[2].MarketID)
	assert.Equal(t, "low", signals[3].MarketID)
}

func TestAdviceDefaults(t *testing.T) {
	// Every optional field absent: defaults apply, no error.
	advice, err := Advice("527079", []byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "527079", advice.MarketID)
	assert.Equal(t, DefaultPlan, advice.SuggestedPlan)
	assert.InDelta(t, DefaultConfidence, advice.Confidence, 1e-9)
	assert.Equal(t, DefaultDisclaimer, advice.Disclaimer)
	assert.Empty(t, advice.StaleDataWarning)
}

func TestAdviceFields(t *testing.T) {
	body := `{
		"market_id": "42",
		"summary": "Looks volatile.",
		"why_trending": "Election night.",
		"risk_factors": ["thin book", "headline risk"],
		"suggested_plan": "buy_yes",
		"confidence": 0.83,
		"stale_data_warning": "data is 2h old"
	}`

	advice, err := Advice("ignored", []byte(body))
	require.NoError(t, err)

	assert.Equal(t, "42", advice.MarketID)
	assert.Equal(t, "BUY_YES", advice.SuggestedPlan)
	assert.InDelta(t, 0.83, advice.Confidence, 1e-9)
	assert.Equal(t, []string{"thin book", "headline risk"}, advice.RiskFactors)
	assert.Equal(t, "data is 2h old", advice.StaleDataWarning)
}

func TestAdviceRiskFactorShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{
			name: "native list",
			body: `{"risk_factors":["a","b"]}`,
			want: []string{"a", "b"},
		},
		{
			name: "json array embedded in a string",
			body: `{"risk_factors":"[\"a\",\"b\"]"}`,
			want: []string{"a", "b"},
		},
		{
			name: "newline separated text",
			body: `{"risk_factors":"a\nb"}`,
			want: []string{"a", "b"},
		},
		{
			name: "unparsable shape degrades to placeholder",
			body: `{"risk_factors":{"not":"a list"}}`,
			want: []string{listPlaceholder},
		},
		{
			name: "broken embedded json degrades to placeholder",
			body: `{"risk_factors":"[broken"}`,
			want: []string{listPlaceholder},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advice, err := Advice("1", []byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, advice.RiskFactors)
		})
	}
}

func TestAdviceStringConfidence(t *testing.T) {
	advice, err := Advice("1", []byte(`{"confidence":"0.9"}`))
	require.NoError(t, err)
	assert.InDelta(t, 0.9, advice.Confidence, 1e-9)
}

func TestPremiumContent(t *testing.T) {
	content, err := PremiumContent([]byte(`{"content":"deep insight"}`))
	require.NoError(t, err)
	assert.Equal(t, "deep insight", content)

	_, err = PremiumContent([]byte(`{"something":"else"}`))
	require.Error(t, err)
}

func TestVerification(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantSuccess bool
		wantReason  string
		wantErr     bool
	}{
		{name: "success", body: `{"success":true}`, wantSuccess: true},
		{name: "failure with reason", body: `{"success":false,"reason":"expired"}`, wantReason: "expired"},
		{name: "failure without reason defaults", body: `{"success":false}`, wantReason: "Unknown error"},
		{name: "string success variant", body: `{"success":"true"}`, wantSuccess: true},
		{name: "missing success field", body: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Verification([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, v.Success)
			assert.Equal(t, tt.wantReason, v.Reason)
		})
	}
}

func TestWallet(t *testing.T) {
	w, err := Wallet([]byte(`{"balance":950.5,"active_bets":3}`))
	require.NoError(t, err)
	assert.InDelta(t, 950.5, w.Balance, 1e-9)
	assert.Equal(t, 3, w.ActiveBets)

	_, err = Wallet([]byte(`{"no_balance_here":1}`))
	require.Error(t, err)
}

func TestTradeReceiptDefaults(t *testing.T) {
	r, err := TradeReceipt([]byte(`{"order_id":"abc","market_id":"1","side":"yes","amount":50}`))
	require.NoError(t, err)
	assert.Equal(t, "YES", r.Side)
	assert.Equal(t, "ACCEPTED", r.Status)
	assert.InDelta(t, 50, r.Amount, 1e-9)
}
