// Package paygate coordinates the pay-to-unlock protocol for premium content.
//
// Per chat the gate is a two-state machine: NONE -> AWAITING_PROOF when the
// backend gates a premium request, and AWAITING_PROOF -> NONE on a verified
// proof. A rejected proof or a verification transport failure keeps the gate
// armed so the user can retry.
package paygate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nort67/marketbot/internal/domain"
	"github.com/nort67/marketbot/internal/normalize"
	"github.com/nort67/marketbot/internal/render"
)

// Gate drives the payment state machine against the session store and the
// backend's verification endpoint.
type Gate struct {
	backend  domain.MarketService
	sessions domain.SessionStore
	render   *render.Renderer
	logger   *slog.Logger
}

// New creates a Gate.
func New(backend domain.MarketService, sessions domain.SessionStore, renderer *render.Renderer, logger *slog.Logger) *Gate {
	return &Gate{
		backend:  backend,
		sessions: sessions,
		render:   renderer,
		logger:   logger.With(slog.String("component", "paygate")),
	}
}

// Armed reports whether the chat has a pending payment awaiting proof. A
// 64-hex message is only treated as a proof when this is true; with the gate
// disarmed such a message falls through to normal command handling.
func (g *Gate) Armed(ctx context.Context, chatID int64) bool {
	sess, err := g.sessions.Get(ctx, chatID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.ErrorContext(ctx, "session lookup failed",
				slog.Int64("chat_id", chatID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	return sess.State == domain.PaymentStateAwaitingProof && sess.PendingPayment != nil
}

// Lock records the payment requirement for the market the chat asked about,
// arms the gate, and returns the payment instructions to show the user.
func (g *Gate) Lock(ctx context.Context, chatID int64, marketID string, req domain.PaymentRequirement) []string {
	sess, err := g.sessions.Get(ctx, chatID)
	if err != nil {
		sess = domain.ChatSession{ChatID: chatID}
	}
	sess.State = domain.PaymentStateAwaitingProof
	sess.PendingMarketID = marketID
	sess.PendingPayment = &req

	if err := g.sessions.Put(ctx, sess); err != nil {
		g.logger.ErrorContext(ctx, "failed to arm payment gate",
			slog.Int64("chat_id", chatID),
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return []string{g.render.TransportFailure("could not start the payment flow, please try again", "")}
	}

	g.logger.InfoContext(ctx, "payment gate armed",
		slog.Int64("chat_id", chatID),
		slog.String("market_id", marketID),
		slog.Float64("amount", req.Amount),
		slog.String("asset", req.Asset),
	)
	return []string{g.render.PremiumLocked(req)}
}

// SubmitProof verifies a transaction proof. On success the gate disarms and
// the previously requested premium content is fetched using the session's
// pending market ID. On rejection or transport failure the gate stays armed.
func (g *Gate) SubmitProof(ctx context.Context, chatID int64, proof string) []string {
	sess, err := g.sessions.Get(ctx, chatID)
	if err != nil || sess.State != domain.PaymentStateAwaitingProof || sess.PendingMarketID == "" {
		// Router checks Armed first; reaching here means the session
		// changed underneath us.
		return []string{g.render.TransportFailure("no pending payment for this chat", "")}
	}

	result := g.backend.VerifyPayment(ctx, proof, chatID)
	switch result.Kind {
	case domain.ResultOK:
		// fall through to verdict parsing below
	case domain.ResultTransportError:
		// Retryable: the gate stays armed.
		return []string{g.render.TransportFailure("Verification error: "+result.Message, result.RawBody)}
	default:
		return []string{g.render.ParseFailure(result.RawBody)}
	}

	verdict, perr := normalize.Verification(result.Body)
	if perr != nil {
		var pe *normalize.ParseError
		if errors.As(perr, &pe) {
			return []string{g.render.ParseFailure(pe.Raw)}
		}
		return []string{g.render.ParseFailure("")}
	}

	if !verdict.Success {
		g.logger.InfoContext(ctx, "payment proof rejected",
			slog.Int64("chat_id", chatID),
			slog.String("reason", verdict.Reason),
		)
		return []string{g.render.VerificationFailed(verdict.Reason)}
	}

	marketID := sess.PendingMarketID

	// Disarm before fetching: the payment itself is settled even if the
	// content fetch below fails.
	sess.State = domain.PaymentStateNone
	sess.PendingPayment = nil
	if err := g.sessions.Put(ctx, sess); err != nil {
		g.logger.ErrorContext(ctx, "failed to disarm payment gate",
			slog.Int64("chat_id", chatID),
			slog.String("error", err.Error()),
		)
	}

	g.logger.InfoContext(ctx, "payment verified",
		slog.Int64("chat_id", chatID),
		slog.String("market_id", marketID),
	)

	out := []string{g.render.PaymentVerified()}
	out = append(out, g.deliver(ctx, chatID, marketID)...)
	return out
}

// deliver fetches and renders the unlocked premium content.
func (g *Gate) deliver(ctx context.Context, chatID int64, marketID string) []string {
	result := g.backend.PremiumAdvice(ctx, marketID, chatID)
	switch result.Kind {
	case domain.ResultOK:
		content, err := normalize.PremiumContent(result.Body)
		if err != nil {
			var pe *normalize.ParseError
			if errors.As(err, &pe) {
				return []string{g.render.ParseFailure(pe.Raw)}
			}
			return []string{g.render.ParseFailure("")}
		}
		return []string{g.render.PremiumContent(content)}
	case domain.ResultPaymentRequired:
		// The backend still considers the content locked. Re-arm so the
		// user can sort it out rather than losing the flow.
		return g.Lock(ctx, chatID, marketID, result.Payment)
	case domain.ResultTransportError:
		return []string{g.render.TransportFailure(result.Message, result.RawBody)}
	default:
		return []string{g.render.ParseFailure(result.RawBody)}
	}
}
