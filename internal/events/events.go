// Package events publishes marketplace domain events.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Routing keys
const (
	DatasetUploaded   = "dataset.uploaded"
	DatasetFlagged    = "dataset.flagged"
	DatasetDeleted    = "dataset.deleted"
	PurchaseCompleted = "purchase.completed"
	ContractDeployed  = "contract.deployed"
)

// Publisher delivers an event to interested consumers
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
	Close() error
}

// Envelope wraps every published payload
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// Emit publishes and logs failures; a broker outage never fails the caller
func Emit(ctx context.Context, p Publisher, routingKey string, payload any) {
	if p == nil {
		return // Events disabled
	}
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		logrus.WithFields(logrus.Fields{
			"event": routingKey,
			"error": err.Error(),
		}).Warn("Event publish failed")
	}
}

// NopPublisher logs events at debug level instead of sending them
type NopPublisher struct{}

// Publish logs the event
func (NopPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	logrus.WithField("event", routingKey).Debug("Event not published, no broker configured")
	return nil
}

// Close does nothing
func (NopPublisher) Close() error { return nil }

// MemoryPublisher records events in memory
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Envelope
}

// Publish records the event
func (m *MemoryPublisher) Publish(_ context.Context, routingKey string, payload any) error {
	m.mu.Lock() // Guard the recorded events
	defer m.mu.Unlock()
	m.events = append(m.events, Envelope{Type: routingKey, OccurredAt: time.Now(), Data: payload})
	return nil
}

// Close does nothing
func (m *MemoryPublisher) Close() error { return nil }

// Types returns the routing keys published so far, in order
func (m *MemoryPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events)) // Routing keys in publish order
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}
