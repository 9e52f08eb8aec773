// Package render formats structured results into chat messages. Rendering is
// pure: the same input always produces the same output, and every message is
// clamped to the configured length cap before it leaves this package.
package render

import (
	"fmt"
	"strings"

	"github.com/nort67/marketbot/internal/domain"
)

const (
	// HardCap is the messaging platform's transport limit. The configured
	// cap must never exceed it.
	HardCap = 4096

	// DefaultCap leaves headroom under the transport limit.
	DefaultCap = 3500

	// MinCap is the smallest accepted cap; anything lower could not hold
	// the truncation marker itself.
	MinCap = len(truncationMarker) + 1

	// truncationMarker is appended whenever a message had to be cut. A
	// message is never silently dropped.
	truncationMarker = "… [truncated]"

	// transportPreviewLimit bounds the raw-body preview shown on transport
	// failures.
	transportPreviewLimit = 200

	divider = "═══════════════════════"
)

// Renderer turns domain values into length-bounded text blocks.
type Renderer struct {
	cap int
}

// New creates a Renderer with the given message cap. Zero or negative uses
// DefaultCap; anything outside [MinCap, HardCap] is clamped into range.
func New(messageCap int) *Renderer {
	if messageCap <= 0 {
		messageCap = DefaultCap
	}
	if messageCap < MinCap {
		messageCap = MinCap
	}
	if messageCap > HardCap {
		messageCap = HardCap
	}
	return &Renderer{cap: messageCap}
}

// Menu is the /start greeting shown alongside the inline keyboard.
func (r *Renderer) Menu() string {
	return r.clamp("NORT67 AI MARKET ANALYST\n\n" +
		"Real-time prediction market analysis powered by:\n" +
		"• Live market data feeds\n" +
		"• AI reasoning engine\n" +
		"• Web intelligence gathering\n\n" +
		"Paper trading environment - risk-free strategy testing\n\n" +
		"Commands: /advice /signals /trending /portfolio")
}

// Help lists the command table. Any unmatched text falls through to this.
func (r *Renderer) Help() string {
	return r.clamp("NORT67 AI MARKET ANALYST\n\n" +
		"Available commands:\n" +
		"• /trending - Hottest markets by volume\n" +
		"• /advice <id> - AI analysis for market\n" +
		"• /premium <id> - Premium AI analysis (paid)\n" +
		"• /signals - Algorithmic trading signals\n" +
		"• /markets - Live market listings\n" +
		"• /portfolio - Paper trading summary\n" +
		"• /papertrade <id> yes/no <amount> - Simulate trades\n\n" +
		"Type /start for interactive menu.")
}

// AdviceUsage is returned when /advice is invoked without a market ID.
func (r *Renderer) AdviceUsage() string {
	return "Usage: /advice <market_id>\nExample: /advice 527079"
}

// PremiumUsage is returned when /premium is invoked without a market ID.
func (r *Renderer) PremiumUsage() string {
	return "Usage: /premium <market_id>\nExample: /premium 527079"
}

// PaperTradeUsage is returned when /papertrade is invoked with missing
// arguments.
func (r *Renderer) PaperTradeUsage() string {
	return "PAPER TRADE ORDER\n" + divider + "\n" +
		"Usage: /papertrade <market_id> <yes/no> <amount>\n" +
		"Example: /papertrade 527079 yes 50\n\n" +
		"Simulates trades without real money risk."
}

// InvalidAmount is returned when the /papertrade amount fails local
// validation; the backend is never contacted in that case.
func (r *Renderer) InvalidAmount() string {
	return "Invalid amount. Please use numbers only (e.g. 50, 100.50)."
}

// RateLimited is returned when a chat exceeds the per-chat command budget.
func (r *Renderer) RateLimited() string {
	return "Slow down a little - try again in a few seconds."
}

// TrendingBanner is sent before the (slow) trending query.
func (r *Renderer) TrendingBanner() string { return "Querying Signals Engine..." }

// MarketsBanner is sent before the market-listing query.
func (r *Renderer) MarketsBanner() string { return "Fetching market data..." }

// SignalsBanner is sent before the signals query.
func (r *Renderer) SignalsBanner() string { return "Analyzing Market Momentum..." }

// TrendingList renders the top trending markets.
func (r *Renderer) TrendingList(markets []domain.MarketSummary) string {
	var b strings.Builder
	b.WriteString("TRENDING MARKETS\n")
	b.WriteString(divider)
	b.WriteString("\n\n")
	if len(markets) == 0 {
		b.WriteString("No trending markets available at this time.")
	}
	for i, m := range markets {
		fmt.Fprintf(&b, "%d. %s\n   ID %s | Vol $%.0f | Odds %s\n",
			i+1, m.Question, m.ID, m.Volume, odds(m.CurrentOdds, m.HasOdds))
	}
	return r.clamp(b.String())
}

// MarketList renders the broader market listing.
func (r *Renderer) MarketList(markets []domain.MarketSummary) string {
	var b strings.Builder
	b.WriteString("LIVE MARKETS\n")
	b.WriteString(divider)
	b.WriteString("\n\n")
	if len(markets) == 0 {
		b.WriteString("No market data available at this time.")
	}
	for i, m := range markets {
		fmt.Fprintf(&b, "%d. %s\n   ID %s | Vol $%.0f | Odds %s\n",
			i+1, m.Question, m.ID, m.Volume, odds(m.CurrentOdds, m.HasOdds))
	}
	return r.clamp(b.String())
}

// SignalList renders the ranked signals.
func (r *Renderer) SignalList(signals []domain.Signal) string {
	var b strings.Builder
	b.WriteString("Top Opportunities:\n\n")
	if len(signals) == 0 {
		b.WriteString("No signals right now - markets are quiet.")
	}
	for i, s := range signals {
		fmt.Fprintf(&b, "%d. %s\n   Score %.2f | Odds %s | Vol $%.0f\n",
			i+1, s.Question, s.Score, odds(s.CurrentOdds, s.HasOdds), s.Volume)
		if s.Reason != "" {
			fmt.Fprintf(&b, "   %s\n", s.Reason)
		}
	}
	return r.clamp(b.String())
}

// Advice renders a free-tier advice result.
func (r *Renderer) Advice(a domain.AdviceResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "AI ANALYSIS - market %s\n%s\n\n", a.MarketID, divider)
	if a.StaleDataWarning != "" {
		fmt.Fprintf(&b, "⚠️ %s\n\n", a.StaleDataWarning)
	}
	if a.Summary != "" {
		b.WriteString(a.Summary)
		b.WriteString("\n\n")
	}
	if a.WhyTrending != "" {
		fmt.Fprintf(&b, "Why trending: %s\n\n", a.WhyTrending)
	}
	if len(a.RiskFactors) > 0 {
		b.WriteString("Risk factors:\n")
		for _, rf := range a.RiskFactors {
			fmt.Fprintf(&b, "• %s\n", rf)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Suggested plan: %s\nConfidence: %s\n\n%s",
		a.SuggestedPlan, ConfidenceLabel(a.Confidence), a.Disclaimer)
	return r.clamp(b.String())
}

// PremiumLocked renders the payment instructions shown when premium content
// is gated. The amount, asset, and address all appear in the prompt.
func (r *Renderer) PremiumLocked(req domain.PaymentRequirement) string {
	return r.clamp(fmt.Sprintf(
		"💎 Premium Content Locked\n"+
			"To unlock, send $%v %s to address: %s on Base network.\n"+
			"Reply with your transaction hash.",
		req.Amount, req.Asset, req.Address))
}

// PremiumContent renders unlocked premium content.
func (r *Renderer) PremiumContent(content string) string {
	return r.clamp("💎 Premium Content:\n" + content)
}

// PaymentVerified is sent between a successful verification and the unlocked
// content delivery.
func (r *Renderer) PaymentVerified() string {
	return "✅ Payment verified! Unlocking premium advice..."
}

// VerificationFailed renders a rejected proof; the user may retry.
func (r *Renderer) VerificationFailed(reason string) string {
	if reason == "" {
		reason = "Unknown error"
	}
	return r.clamp("❌ Payment not verified. Details: " + reason)
}

// TradeReceipt renders a confirmed paper trade.
func (r *Renderer) TradeReceipt(t domain.PaperTradeReceipt) string {
	var b strings.Builder
	b.WriteString("PAPER TRADE EXECUTED\n")
	b.WriteString(divider)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Market %s | %s $%.2f\nStatus: %s\n", t.MarketID, t.Side, t.Amount, t.Status)
	if t.OrderID != "" {
		fmt.Fprintf(&b, "Order: %s\n", t.OrderID)
	}
	return r.clamp(b.String())
}

// Wallet renders a live wallet summary.
func (r *Renderer) Wallet(w domain.WalletSummary) string {
	return r.clamp(fmt.Sprintf(
		"📂 Portfolio Summary (Paper Mode)\nBalance: $%.2f\nActive Bets: %d",
		w.Balance, w.ActiveBets))
}

// StaticPortfolio is the fallback when the wallet endpoint is unavailable.
func (r *Renderer) StaticPortfolio() string {
	return "📂 Portfolio Summary (Paper Mode)\nBalance: $1,000.00\nActive Bets: 0"
}

// TransportFailure renders a transport-level failure with a bounded preview
// of whatever the backend sent back.
func (r *Renderer) TransportFailure(message, rawBody string) string {
	out := "⚠️ " + message
	if rawBody != "" {
		out += "\nRaw: " + clip(rawBody, transportPreviewLimit)
	}
	return r.clamp(out)
}

// ParseFailure renders an uninterpretable payload with a bounded preview so
// the user still sees something rather than a silent failure.
func (r *Renderer) ParseFailure(rawBody string) string {
	return r.clamp("⚠️ Could not read the backend response.\nRaw: " + rawBody)
}

// ConfidenceLabel buckets a 0..1 confidence score for display.
func ConfidenceLabel(c float64) string {
	switch {
	case c >= 0.75:
		return "HIGH"
	case c >= 0.5:
		return "MEDIUM"
	default:
		return "LOW"
	}
}

// odds formats an odds value as a whole-number percentage, or an em-dash
// when the backend omitted it.
func odds(v float64, has bool) string {
	if !has {
		return "—"
	}
	return fmt.Sprintf("%.0f%%", v*100)
}

// clamp enforces the message cap, appending the truncation marker when the
// message had to be cut.
func (r *Renderer) clamp(s string) string {
	runes := []rune(s)
	if len(runes) <= r.cap {
		return s
	}
	marker := []rune(truncationMarker)
	return string(runes[:r.cap-len(marker)]) + truncationMarker
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
