// Package events is the fire-and-forget notification boundary. Downstream
// consumers subscribe out-of-band; a publish failure is logged by callers
// and never fails the operation that produced the event.
package events

import (
	"context"
	"sync"
	"time"
)

// Channel names.
const (
	ChannelMerchantCreated     = "merchant.created"
	ChannelMerchantUpdated     = "merchant.updated"
	ChannelMerchantDeactivated = "merchant.deactivated"
	ChannelTransactionCreated  = "transaction.created"
	ChannelPatternDetected     = "pattern.detected"
)

// MerchantEvent notifies about a merchant lifecycle change.
type MerchantEvent struct {
	MerchantID     string    `json:"merchant_id"`
	NormalizedName string    `json:"normalized_name"`
	Category       string    `json:"category,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// TransactionEvent notifies about a newly persisted transaction.
type TransactionEvent struct {
	TransactionID string    `json:"transaction_id"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// PatternEvent notifies about a newly detected pattern.
type PatternEvent struct {
	PatternID  string    `json:"pattern_id"`
	MerchantID string    `json:"merchant_id"`
	Type       string    `json:"type"`
	Frequency  string    `json:"frequency"`
	Confidence float64   `json:"confidence"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher pushes events to a channel. Implementations serialize the
// payload; delivery is at-most-once.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Nop discards all events. Used when no bus is configured.
type Nop struct{}

var _ Publisher = (*Nop)(nil)

func (Nop) Publish(context.Context, string, any) error { return nil }

// Mock records published events for test assertions.
type Mock struct {
	mu        sync.Mutex
	published []PublishedEvent

	// Error injection
	PublishErr error
}

// PublishedEvent is one recorded Publish call.
type PublishedEvent struct {
	Channel string
	Payload any
}

var _ Publisher = (*Mock)(nil)

// NewMock creates an empty mock publisher.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Publish(_ context.Context, channel string, payload any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.published = append(m.published, PublishedEvent{Channel: channel, Payload: payload})
	return nil
}

// Published returns a copy of all recorded events.
func (m *Mock) Published() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.published))
	copy(out, m.published)
	return out
}

// CountFor returns how many events were published to a channel.
func (m *Mock) CountFor(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int
	for _, e := range m.published {
		if e.Channel == channel {
			n++
		}
	}
	return n
}
