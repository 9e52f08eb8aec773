package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nort67/marketbot/internal/domain"
)

type echoHandler struct {
	delay func(ev domain.Event) time.Duration
	panic func(ev domain.Event) bool
}

func (h *echoHandler) Handle(ctx context.Context, ev domain.Event) []domain.Outbound {
	if h.panic != nil && h.panic(ev) {
		panic("handler blew up")
	}
	if h.delay != nil {
		time.Sleep(h.delay(ev))
	}
	return []domain.Outbound{{ChatID: ev.ChatID, Text: ev.Text}}
}

type recordingSender struct {
	mu   sync.Mutex
	sent []domain.Outbound
}

func (s *recordingSender) Send(ctx context.Context, out domain.Outbound) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, out)
	return nil
}

func (s *recordingSender) byChat() map[int64][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]string)
	for _, o := range s.sent {
		out[o.ChatID] = append(out[o.ChatID], o.Text)
	}
	return out
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherPreservesPerChatOrder(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(&echoHandler{}, sender, 4, 16, discard())

	events := make(chan domain.Event)
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), events) }()

	const perChat = 20
	for i := 0; i < perChat; i++ {
		for chat := int64(1); chat <= 8; chat++ {
			events <- domain.Event{ChatID: chat, Text: fmt.Sprintf("msg-%d", i)}
		}
	}
	close(events)
	require.NoError(t, <-done)

	for chat, texts := range sender.byChat() {
		require.Len(t, texts, perChat, "chat %d", chat)
		for i, text := range texts {
			assert.Equal(t, fmt.Sprintf("msg-%d", i), text, "chat %d", chat)
		}
	}
}

func TestDispatcherSlowChatDoesNotBlockOthers(t *testing.T) {
	sender := &recordingSender{}
	handler := &echoHandler{
		delay: func(ev domain.Event) time.Duration {
			if ev.ChatID == 0 {
				return 300 * time.Millisecond
			}
			return 0
		},
	}
	d := NewDispatcher(handler, sender, 4, 16, discard())

	events := make(chan domain.Event)
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), events) }()

	start := time.Now()
	events <- domain.Event{ChatID: 0, Text: "slow"}
	events <- domain.Event{ChatID: 1, Text: "fast"}

	// The fast chat's reply must not wait out the slow chat's handler.
	require.Eventually(t, func() bool {
		return len(sender.byChat()[1]) == 1
	}, 200*time.Millisecond, 5*time.Millisecond)
	assert.Less(t, time.Since(start), 300*time.Millisecond)

	close(events)
	require.NoError(t, <-done)
}

func TestDispatcherSurvivesHandlerPanic(t *testing.T) {
	sender := &recordingSender{}
	handler := &echoHandler{
		panic: func(ev domain.Event) bool { return ev.Text == "boom" },
	}
	d := NewDispatcher(handler, sender, 2, 8, discard())

	events := make(chan domain.Event)
	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background(), events) }()

	events <- domain.Event{ChatID: 1, Text: "boom"}
	events <- domain.Event{ChatID: 1, Text: "after"}
	close(events)
	require.NoError(t, <-done)

	assert.Equal(t, []string{"after"}, sender.byChat()[1])
}

func TestDispatcherStopsOnContextCancel(t *testing.T) {
	d := NewDispatcher(&echoHandler{}, &recordingSender{}, 2, 8, discard())

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan domain.Event)
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, events) }()

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}
