package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/quickcart/apiserver/config"
)

// PublishedAtAttr is stamped on every outgoing message.
const PublishedAtAttr = "published_at"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend, stamping outgoing messages and shielding
// subscribers from handler panics.
type MQ struct {
	backend Backend
	now     func() time.Time
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend, now: time.Now}
}

// Open connects the backend named by cfg.Backend. It returns nil without
// error when messaging is disabled.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Backend {
	case config.BackendNone, "":
		return nil, nil
	case config.BackendRabbitMQ:
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(client), nil
	case config.BackendPubSub:
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel. attrs is not modified.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	stamped := make(map[string]string, len(attrs)+1)
	for key, value := range attrs {
		stamped[key] = value
	}
	if _, ok := stamped[PublishedAtAttr]; !ok {
		stamped[PublishedAtAttr] = m.now().UTC().Format(time.RFC3339)
	}
	return m.backend.Publish(ctx, channel, data, stamped)
}

// Subscribe consumes messages from the named channel until ctx is done.
// A panicking handler is reported as a failed message.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, func(ctx context.Context, msg Message) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic on message %s: %v", msg.ID, r)
			}
		}()
		return handler(ctx, msg)
	})
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
