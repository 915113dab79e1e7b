package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"expertbooking/internal/pkg/errs"
	"expertbooking/internal/usecase/shared"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher pushes booking notifications onto a durable queue consumed by
// the notification service. Callers treat every Publish as fire-and-forget.
type Publisher struct {
	ch    *amqp.Channel
	queue string
	mu    sync.Mutex
}

func NewPublisher(conn *amqp.Connection, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errs.Wrap(err, "failed to open amqp channel")
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return nil, errs.Wrap(err, "failed to declare notification queue")
	}

	return &Publisher{ch: ch, queue: queue}, nil
}

func (p *Publisher) Publish(ctx context.Context, n shared.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return errs.Wrap(err, "failed to marshal notification")
	}

	// amqp091 channels are not safe for concurrent publish
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		return errs.Wrap(err, "failed to publish notification")
	}
	return nil
}

func (p *Publisher) Close() {
	if err := p.ch.Close(); err != nil {
		slog.Warn("failed to close amqp channel", "error", err.Error())
	}
}
