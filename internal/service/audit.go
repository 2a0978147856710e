package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/pms-auth-service/internal/queue"
)

// EventPublisher receives account events after a change has been applied.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AccountEvent) error
}

// AMQPPublisher dials the broker per event. Admin changes are rare, so a
// long-lived channel is not worth the reconnect handling.
type AMQPPublisher struct {
	URL string
	// DialTimeout bounds the TCP connect and AMQP handshake. It is further
	// capped by the context deadline.
	DialTimeout time.Duration
}

const defaultDialTimeout = 2 * time.Second

func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{URL: url, DialTimeout: defaultDialTimeout}
}

// Publish sends ev to the account.events queue as a persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.AccountEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timeout := p.DialTimeout
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	conn, err := amqp.DialConfig(p.URL, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		queue.AccountEventsQueue, // name
		true,                     // durable
		false,                    // autoDelete
		false,                    // exclusive
		false,                    // noWait
		nil,                      // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx,
		"",                       // default exchange
		queue.AccountEventsQueue, // routing key = queue name
		false,                    // mandatory
		false,                    // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
}
