package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// mockTransport implements sentry.Transport and keeps captured events.
type mockTransport struct {
	mu     sync.RWMutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(_ sentry.ClientOptions) {} //nolint:gocritic // interface signature

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool { return true }

func (t *mockTransport) FlushWithContext(context.Context) bool { return true }

func (t *mockTransport) Close() {}

func (t *mockTransport) Events() []*sentry.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*sentry.Event, len(t.events))
	copy(out, t.events)
	return out
}

// waitForEvents polls until n events arrived or timeout passes.
func (t *mockTransport) waitForEvents(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if len(t.Events()) >= n {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
