// Package router classifies inbound chat events and dispatches them to the
// backend client, the payment gate, and the renderer.
//
// Dispatch order for a message: payment-proof pattern check (consulted only
// while the chat's payment gate is armed), then the first whitespace token
// matched against the fixed command table, with unmatched text falling
// through to the help response. Button presses map onto the same operations
// as their textual counterparts.
package router

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nort67/marketbot/internal/domain"
	"github.com/nort67/marketbot/internal/normalize"
	"github.com/nort67/marketbot/internal/paygate"
	"github.com/nort67/marketbot/internal/render"
)

// proofPattern matches a transaction proof: exactly 64 hex characters.
var proofPattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

// Notifier delivers a progress message to a chat ahead of a slow backend
// call. The messaging gateway satisfies this.
type Notifier interface {
	Send(ctx context.Context, out domain.Outbound) error
}

// Router owns per-chat command handling. All failure modes resolve to
// user-visible messages; Handle never panics an event loop.
type Router struct {
	backend  domain.MarketService
	sessions domain.SessionStore
	gate     *paygate.Gate
	render   *render.Renderer
	logger   *slog.Logger

	// notifier is optional; when nil, banners are returned inline with the
	// results instead of being sent eagerly.
	notifier Notifier

	// limiter is optional; nil disables per-chat rate limiting.
	limiter    domain.RateLimiter
	rateLimit  int
	rateWindow time.Duration
}

// Options holds optional Router settings.
type Options struct {
	Notifier   Notifier
	Limiter    domain.RateLimiter
	RateLimit  int           // commands per window, default 20
	RateWindow time.Duration // default 1m
}

// New creates a Router.
func New(backend domain.MarketService, sessions domain.SessionStore, gate *paygate.Gate, renderer *render.Renderer, logger *slog.Logger, opts Options) *Router {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	return &Router{
		backend:    backend,
		sessions:   sessions,
		gate:       gate,
		render:     renderer,
		logger:     logger.With(slog.String("component", "router")),
		notifier:   opts.Notifier,
		limiter:    opts.Limiter,
		rateLimit:  opts.RateLimit,
		rateWindow: opts.RateWindow,
	}
}

// Handle processes one inbound event and returns the outbound messages to
// deliver, in order.
func (r *Router) Handle(ctx context.Context, ev domain.Event) []domain.Outbound {
	switch ev.Kind {
	case domain.EventCallback:
		return r.handleCallback(ctx, ev)
	default:
		return r.handleMessage(ctx, ev)
	}
}

func (r *Router) handleMessage(ctx context.Context, ev domain.Event) []domain.Outbound {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return nil
	}

	// Transaction-proof replies take priority over command parsing, but only
	// while a payment is actually pending for this chat. A stray 64-hex
	// message with nothing pending falls through to the command table.
	if proofPattern.MatchString(text) && r.gate.Armed(ctx, ev.ChatID) {
		return r.say(ev.ChatID, r.gate.SubmitProof(ctx, ev.ChatID, text)...)
	}

	fields := strings.Fields(text)
	command := fields[0]

	if limited := r.limited(ctx, ev.ChatID); limited != nil {
		return limited
	}

	switch command {
	case "/start":
		return []domain.Outbound{r.menu(ev.ChatID)}
	case "/trending":
		return r.trending(ctx, ev.ChatID)
	case "/markets":
		return r.markets(ctx, ev.ChatID)
	case "/signals":
		return r.signals(ctx, ev.ChatID)
	case "/advice":
		return r.advice(ctx, ev.ChatID, fields)
	case "/premium":
		return r.premium(ctx, ev.ChatID, fields)
	case "/portfolio":
		return r.portfolio(ctx, ev.ChatID)
	case "/papertrade":
		return r.paperTrade(ctx, ev.ChatID, fields)
	default:
		return r.say(ev.ChatID, r.render.Help())
	}
}

func (r *Router) handleCallback(ctx context.Context, ev domain.Event) []domain.Outbound {
	if limited := r.limited(ctx, ev.ChatID); limited != nil {
		return limited
	}

	switch ev.CallbackData {
	case "btn_trending":
		return r.trending(ctx, ev.ChatID)
	case "btn_advice":
		return r.say(ev.ChatID, "Enter the Market ID for AI analysis, e.g. /advice 527079")
	case "btn_portfolio":
		return r.portfolio(ctx, ev.ChatID)
	default:
		r.logger.WarnContext(ctx, "unknown callback data",
			slog.Int64("chat_id", ev.ChatID),
			slog.String("data", ev.CallbackData),
		)
		return nil
	}
}

// --------------------------------------------------------------------------
// Command handlers
// --------------------------------------------------------------------------

func (r *Router) trending(ctx context.Context, chatID int64) []domain.Outbound {
	out := r.banner(ctx, chatID, r.render.TrendingBanner())

	result := r.backend.Trending(ctx)
	body, failed := r.unwrap(chatID, result)
	if failed != nil {
		return append(out, failed...)
	}

	markets, err := normalize.TrendingList(body)
	if err != nil {
		return append(out, r.parseFailure(chatID, err)...)
	}
	return append(out, r.say(chatID, r.render.TrendingList(markets))...)
}

func (r *Router) markets(ctx context.Context, chatID int64) []domain.Outbound {
	out := r.banner(ctx, chatID, r.render.MarketsBanner())

	result := r.backend.Markets(ctx)
	body, failed := r.unwrap(chatID, result)
	if failed != nil {
		return append(out, failed...)
	}

	markets, err := normalize.MarketList(body)
	if err != nil {
		return append(out, r.parseFailure(chatID, err)...)
	}
	return append(out, r.say(chatID, r.render.MarketList(markets))...)
}

func (r *Router) signals(ctx context.Context, chatID int64) []domain.Outbound {
	out := r.banner(ctx, chatID, r.render.SignalsBanner())

	result := r.backend.Signals(ctx)
	body, failed := r.unwrap(chatID, result)
	if failed != nil {
		return append(out, failed...)
	}

	signals, err := normalize.SignalList(body)
	if err != nil {
		return append(out, r.parseFailure(chatID, err)...)
	}
	return append(out, r.say(chatID, r.render.SignalList(signals))...)
}

func (r *Router) advice(ctx context.Context, chatID int64, fields []string) []domain.Outbound {
	if len(fields) < 2 {
		return r.say(chatID, r.render.AdviceUsage())
	}
	marketID := fields[1]
	r.rememberMarket(ctx, chatID, marketID)

	result := r.backend.Advice(ctx, marketID)
	switch result.Kind {
	case domain.ResultOK:
		advice, err := normalize.Advice(marketID, result.Body)
		if err != nil {
			return r.parseFailure(chatID, err)
		}
		return r.say(chatID, r.render.Advice(advice))
	case domain.ResultPaymentRequired:
		// Some backend versions gate /advice itself.
		return r.say(chatID, r.gate.Lock(ctx, chatID, marketID, result.Payment)...)
	case domain.ResultTransportError:
		return r.say(chatID, r.render.TransportFailure(result.Message, result.RawBody))
	default:
		return r.say(chatID, r.render.ParseFailure(result.RawBody))
	}
}

func (r *Router) premium(ctx context.Context, chatID int64, fields []string) []domain.Outbound {
	if len(fields) < 2 {
		return r.say(chatID, r.render.PremiumUsage())
	}
	marketID := fields[1]
	r.rememberMarket(ctx, chatID, marketID)

	result := r.backend.PremiumAdvice(ctx, marketID, chatID)
	switch result.Kind {
	case domain.ResultOK:
		content, err := normalize.PremiumContent(result.Body)
		if err != nil {
			return r.parseFailure(chatID, err)
		}
		return r.say(chatID, r.render.PremiumContent(content))
	case domain.ResultPaymentRequired:
		return r.say(chatID, r.gate.Lock(ctx, chatID, marketID, result.Payment)...)
	case domain.ResultTransportError:
		return r.say(chatID, r.render.TransportFailure(result.Message, result.RawBody))
	default:
		return r.say(chatID, r.render.ParseFailure(result.RawBody))
	}
}

func (r *Router) portfolio(ctx context.Context, chatID int64) []domain.Outbound {
	result := r.backend.WalletSummary(ctx, chatID)
	if result.Kind == domain.ResultOK {
		if wallet, err := normalize.Wallet(result.Body); err == nil {
			return r.say(chatID, r.render.Wallet(wallet))
		}
	}
	// The wallet endpoint is best-effort; fall back to the static paper
	// summary rather than surfacing an error for a read-only overview.
	r.logger.DebugContext(ctx, "wallet summary unavailable, using static portfolio",
		slog.Int64("chat_id", chatID),
	)
	return r.say(chatID, r.render.StaticPortfolio())
}

func (r *Router) paperTrade(ctx context.Context, chatID int64, fields []string) []domain.Outbound {
	if len(fields) < 4 {
		return r.say(chatID, r.render.PaperTradeUsage())
	}
	marketID, side := fields[1], fields[2]

	amount, err := strconv.ParseFloat(fields[3], 64)
	if err != nil || amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		// Reported locally; the backend is not contacted.
		return r.say(chatID, r.render.InvalidAmount())
	}

	result := r.backend.PlacePaperTrade(ctx, chatID, marketID, side, amount)
	switch result.Kind {
	case domain.ResultOK:
		receipt, perr := normalize.TradeReceipt(result.Body)
		if perr != nil {
			return r.parseFailure(chatID, perr)
		}
		return r.say(chatID, r.render.TradeReceipt(receipt))
	case domain.ResultTransportError:
		return r.say(chatID, r.render.TransportFailure(result.Message, result.RawBody))
	default:
		return r.say(chatID, r.render.ParseFailure(result.RawBody))
	}
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// banner sends a progress message before a slow backend call. With a notifier
// it goes out immediately so the user sees it while the call runs; a send
// failure only costs the banner. Without one it is returned for in-order
// delivery with the results.
func (r *Router) banner(ctx context.Context, chatID int64, text string) []domain.Outbound {
	if r.notifier == nil {
		return r.say(chatID, text)
	}
	if err := r.notifier.Send(ctx, domain.Outbound{ChatID: chatID, Text: text}); err != nil {
		r.logger.WarnContext(ctx, "banner send failed",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// rememberMarket records the last market the chat asked about; the payment
// gate unlocks against this when the backend later demands payment.
func (r *Router) rememberMarket(ctx context.Context, chatID int64, marketID string) {
	sess, err := r.sessions.Get(ctx, chatID)
	if err != nil {
		sess = domain.ChatSession{ChatID: chatID}
	}
	sess.PendingMarketID = marketID
	if err := r.sessions.Put(ctx, sess); err != nil {
		r.logger.ErrorContext(ctx, "failed to store session",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}
}

// limited returns a rate-limit notice when the chat exceeded its command
// budget, or nil when the command may proceed. Limiter failures fail open.
func (r *Router) limited(ctx context.Context, chatID int64) []domain.Outbound {
	if r.limiter == nil {
		return nil
	}
	allowed, err := r.limiter.Allow(ctx, "chat:"+strconv.FormatInt(chatID, 10), r.rateLimit, r.rateWindow)
	if err != nil {
		r.logger.WarnContext(ctx, "rate limiter unavailable",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if allowed {
		return nil
	}
	return r.say(chatID, r.render.RateLimited())
}

// unwrap converts the error variants of a BackendResult into outbound
// messages, returning the raw body when the result is OK.
func (r *Router) unwrap(chatID int64, result domain.BackendResult) ([]byte, []domain.Outbound) {
	switch result.Kind {
	case domain.ResultOK:
		return result.Body, nil
	case domain.ResultTransportError:
		return nil, r.say(chatID, r.render.TransportFailure(result.Message, result.RawBody))
	default:
		return nil, r.say(chatID, r.render.ParseFailure(result.RawBody))
	}
}

func (r *Router) parseFailure(chatID int64, err error) []domain.Outbound {
	var pe *normalize.ParseError
	if errors.As(err, &pe) {
		return r.say(chatID, r.render.ParseFailure(pe.Raw))
	}
	return r.say(chatID, r.render.ParseFailure(""))
}

func (r *Router) say(chatID int64, texts ...string) []domain.Outbound {
	out := make([]domain.Outbound, 0, len(texts))
	for _, t := range texts {
		if t == "" {
			continue
		}
		out = append(out, domain.Outbound{ChatID: chatID, Text: t})
	}
	return out
}

// menu builds the /start response with its inline keyboard.
func (r *Router) menu(chatID int64) domain.Outbound {
	return domain.Outbound{
		ChatID: chatID,
		Text:   r.render.Menu(),
		Buttons: [][]domain.Button{
			{
				{Label: "Trending Markets", Data: "btn_trending"},
				{Label: "AI Advice", Data: "btn_advice"},
			},
			{
				{Label: "📂 Portfolio", Data: "btn_portfolio"},
			},
		},
	}
}
