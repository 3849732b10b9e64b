package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const settledQueueName = "payment.settled"

// Publisher emits settlement events to RabbitMQ. A nil or
// empty-URL publisher is valid and downgrades publishing to a no-op so
// the confirmation flow never depends on the broker being up.
type Publisher struct {
	url string
}

// NewPublisher returns a publisher for the given AMQP URL. An empty
// URL disables publishing.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// PublishPaymentSettled publishes the event to the durable
// payment.settled queue. Errors are logged and returned so the caller
// can ignore them without interrupting the request flow. Messages are
// marked persistent.
func (p *Publisher) PublishPaymentSettled(ctx context.Context, event PaymentSettledEvent) error {
	if p == nil || p.url == "" {
		return nil
	}
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(settledQueueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", settledQueueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
