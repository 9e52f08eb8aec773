package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nort67/marketbot/internal/domain"
)

// Handler processes one inbound event into outbound messages.
type Handler interface {
	Handle(ctx context.Context, ev domain.Event) []domain.Outbound
}

// Sender delivers one outbound message.
type Sender interface {
	Send(ctx context.Context, out domain.Outbound) error
}

// Dispatcher fans inbound events out to a fixed pool of workers. Events are
// sharded by chat ID, so one chat's slow advice call never blocks other
// chats while events within a chat keep their order — which also means each
// chat's session is only ever touched by one worker at a time.
type Dispatcher struct {
	handler Handler
	sender  Sender
	queues  []chan domain.Event
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher with the given worker count and
// per-worker queue depth.
func NewDispatcher(handler Handler, sender Sender, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	queues := make([]chan domain.Event, workers)
	for i := range queues {
		queues[i] = make(chan domain.Event, queueSize)
	}
	return &Dispatcher{
		handler: handler,
		sender:  sender,
		queues:  queues,
		logger:  logger.With(slog.String("component", "dispatcher")),
	}
}

// Run consumes events until the channel closes or ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, events <-chan domain.Event) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := range d.queues {
		queue := d.queues[i]
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ev, ok := <-queue:
					if !ok {
						return nil
					}
					d.process(ctx, ev)
				}
			}
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range d.queues {
				close(q)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				queue := d.queues[uint64(ev.ChatID)%uint64(len(d.queues))]
				select {
				case queue <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	})

	return g.Wait()
}

// process handles a single event. A panic while handling one event is
// contained here so it cannot take down the other chats' workers.
func (d *Dispatcher) process(ctx context.Context, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "panic while handling event",
				slog.Int64("chat_id", ev.ChatID),
				slog.Any("panic", r),
			)
		}
	}()

	for _, out := range d.handler.Handle(ctx, ev) {
		if err := d.sender.Send(ctx, out); err != nil {
			d.logger.ErrorContext(ctx, "send failed",
				slog.Int64("chat_id", out.ChatID),
				slog.String("error", err.Error()),
			)
		}
	}
}
