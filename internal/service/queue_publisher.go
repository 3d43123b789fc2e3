// Package queue_publisher provides functions to publish domain events to RabbitMQ.
// Errors are logged and returned to allow callers to ignore failures without
// interrupting the main request flow.
package queue_publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	q "github.com/iliyamo/moviestore/internal/queue"
)

// Publisher sends invalidation events to the broker at URL.  It dials per
// publish: events are rare (only after a failed cache delete), so holding
// a connection open buys nothing.
type Publisher struct {
	URL string
	Log zerolog.Logger
}

func New(url string, log zerolog.Logger) *Publisher {
	return &Publisher{URL: url, Log: log.With().Str("component", "rabbitmq").Logger()}
}

// PublishInvalidation publishes ev to the invalidation queue.  A missing
// ID or timestamp is filled in.  Messages are marked as persistent.
func (p *Publisher) PublishInvalidation(ctx context.Context, ev q.InvalidationEvent) error {
	pub, err := newPublishing(ev, time.Now().UTC())
	if err != nil {
		p.Log.Error().Err(err).Msg("marshal event failed")
		return err
	}

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		p.Log.Error().Err(err).Msg("dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Error().Err(err).Msg("channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		q.InvalidationQueue, // name
		true,                // durable
		false,               // autoDelete
		false,               // exclusive
		false,               // noWait
		nil,                 // args
	); err != nil {
		p.Log.Error().Err(err).Msg("queue declare failed")
		return err
	}

	if err := ch.PublishWithContext(ctx,
		"",                  // default exchange
		q.InvalidationQueue, // routing key = queue name
		false,               // mandatory
		false,               // immediate
		pub,
	); err != nil {
		p.Log.Error().Err(err).Msg("publish failed")
		return err
	}
	return nil
}

func newPublishing(ev q.InvalidationEvent, now time.Time) (amqp.Publishing, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt == "" {
		ev.CreatedAt = now.Format(time.RFC3339)
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.ID,
		Timestamp:    now,
		Body:         body,
	}, nil
}
