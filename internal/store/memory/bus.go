package memory

import (
	"context"
	"sync"

	"github.com/carbidx2025/CarbidX-EM/internal/domain"
)

const subscriberBuffer = 64

// SignalBus is an in-process domain.SignalBus. Publish fans a payload out to
// every current subscriber of the channel; a subscriber that has fallen
// subscriberBuffer messages behind is skipped rather than blocking the
// publisher.
type SignalBus struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan []byte
	next int
}

// NewSignalBus creates an empty in-process bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{subs: make(map[string]map[int]chan []byte)}
}

// Publish delivers payload to every subscriber of channel.
func (b *SignalBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[channel] {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel of payloads published to the given channel. The
// returned channel closes when ctx is cancelled.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)

	b.mu.Lock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[int]chan []byte)
	}
	id := b.next
	b.next++
	b.subs[channel][id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[channel], id)
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Compile-time interface check.
var _ domain.SignalBus = (*SignalBus)(nil)
