// Package memory records catalog events the way the Pub/Sub publisher would
// send them, for tests and dry runs.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/JakeFAU/adcatalog/internal/publisher/pubsub"
)

// Publisher keeps every event in publish order.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// PublishedMessage is one event as it would appear on the topic.
type PublishedMessage struct {
	Kind       string
	Payload    any
	Data       []byte
	Attributes map[string]string
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish encodes payload to JSON and records it with the event kind and
// trace context as attributes. Payloads that cannot be encoded fail as they
// would on Pub/Sub.
func (p *Publisher) Publish(ctx context.Context, kind string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	attrs := propagation.MapCarrier{pubsub.EventAttribute: kind}
	otel.GetTextMapPropagator().Inject(ctx, attrs)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{
		Kind:       kind,
		Payload:    payload,
		Data:       data,
		Attributes: attrs,
	})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a copy of the recorded events.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
