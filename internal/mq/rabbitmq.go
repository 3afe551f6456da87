package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quickcart/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes events to a topic exchange, using the channel
// name as routing key. Subscribers consume from one named queue bound to
// every channel they subscribe to.
type RabbitMQClient struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	pub      *amqp.Channel
	exchange string
	queue    string
	durable  bool
	autoDel  bool
	prefetch int
}

// NewRabbitMQClient dials RabbitMQ and declares the events exchange.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	err = pub.ExchangeDeclare(exchange, amqp.ExchangeTopic, cfg.QueueDurable, false, false, false, nil)
	if err != nil {
		_ = pub.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitMQClient{
		conn:     conn,
		pub:      pub,
		exchange: exchange,
		queue:    strings.TrimSpace(cfg.ConsumerQueue),
		durable:  cfg.QueueDurable,
		autoDel:  cfg.QueueAutoDelete,
		prefetch: cfg.PrefetchCount,
	}, nil
}

// Publish routes data to channel. The publishing channel is shared by all
// requests, so publishes are serialized.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: r.deliveryMode(),
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         attrs["type"],
		Headers:      attributesToHeaders(attrs),
		Body:         data,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.pub.PublishWithContext(ctx, r.exchange, channel, false, false, msg); err != nil {
		return "", err
	}
	return msg.MessageId, nil
}

// Subscribe binds the consumer queue to channel and handles deliveries
// until ctx is done. A failed message is requeued once, then dropped.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()

	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			return err
		}
	}

	queue, err := ch.QueueDeclare(r.queueName(channel), r.durable, r.autoDel, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(queue.Name, channel, r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", queue.Name, channel, err)
	}

	consumerTag := "quickcart-" + uuid.NewString()
	deliveries, err := ch.Consume(queue.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publishing channel and the connection.
func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pub != nil {
		_ = r.pub.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) deliveryMode() uint8 {
	if r.durable {
		return amqp.Persistent
	}
	return amqp.Transient
}

func (r *RabbitMQClient) queueName(channel string) string {
	if r.queue != "" {
		return r.queue
	}
	return channel
}

func attributesToHeaders(attrs map[string]string) amqp.Table {
	if len(attrs) == 0 {
		return nil
	}
	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}
	return headers
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
