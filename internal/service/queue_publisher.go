package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/rbac-admin/internal/logging"
	q "github.com/iliyamo/rbac-admin/internal/queue"
)

// EventPublisher delivers audit events.  Implementations must not block a
// request for long; callers treat delivery as best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev q.AuditEvent) error
}

// NopPublisher drops every event.  It is used when audit events are
// disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, q.AuditEvent) error { return nil }

// RabbitPublisher publishes audit events to the durable audit queue.  It
// dials per publish: audit traffic is a handful of messages per login, and
// a fresh connection survives broker restarts without reconnect logic.
type RabbitPublisher struct {
	URL         string
	DialTimeout time.Duration
}

func NewRabbitPublisher(url string) *RabbitPublisher {
	return &RabbitPublisher{URL: url, DialTimeout: 2 * time.Second}
}

// Publish sends ev as a persistent JSON message.  Errors are logged and
// returned so the caller can choose to ignore them.
func (p *RabbitPublisher) Publish(ctx context.Context, ev q.AuditEvent) error {
	l := logging.FromContext(ctx).With("component", "audit-publisher", "event", ev.Type)

	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(p.DialTimeout)})
	if err != nil {
		l.Warn("rabbitmq_dial_failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		l.Warn("rabbitmq_channel_failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.AuditQueueName, // name
		true,             // durable
		false,            // autoDelete
		false,            // exclusive
		false,            // noWait
		nil,              // args
	); err != nil {
		l.Warn("rabbitmq_queue_declare_failed", "error", err)
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",               // default exchange
		q.AuditQueueName, // routing key = queue name
		false,            // mandatory
		false,            // immediate
		pub,
	); err != nil {
		l.Warn("rabbitmq_publish_failed", "error", err)
		return err
	}
	return nil
}
