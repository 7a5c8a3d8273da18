package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher sends AuthEvents to a durable queue.  The connection is opened
// lazily and dropped on any failure so the next event redials.
type Publisher struct {
	url     string
	queue   string
	timeout time.Duration
	log     *logrus.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url, queue string, log *logrus.Logger) *Publisher {
	return &Publisher{url: url, queue: queue, timeout: 5 * time.Second, log: log}
}

// Record publishes ev in the background.  Failures are logged and dropped;
// the caller never waits on the broker.
func (p *Publisher) Record(ev AuthEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			p.log.WithError(err).WithField("event", ev.Type).Warn("audit publish failed")
		}
	}()
}

// Publish sends one event as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev AuthEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         string(ev.Type),
			Body:         body,
		})
	if err != nil {
		p.reset()
	}
	return err
}

// channel returns the cached channel, dialing when needed.  p.mu is held.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
