package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/iliyamo/moviestore/internal/cache"
	"github.com/iliyamo/moviestore/internal/errs"
)

// Sessions opens scoped cache connections.  *cache.Cache satisfies it.
type Sessions interface {
	WithSession(ctx context.Context, fn func(ctx context.Context, s *cache.Session) error) error
}

// StartInvalidationConsumer connects to RabbitMQ at url, declares the
// invalidation queue (durable) and deletes the keys named by each message.
// It runs a reconnect loop with exponential backoff and returns only when
// ctx is cancelled.  A message whose keys cannot be deleted is requeued
// after a delay that grows while the cache stays unreachable; a malformed
// message is rejected.
func StartInvalidationConsumer(ctx context.Context, url string, sessions Sessions, log zerolog.Logger) error {
	log = log.With().Str("component", "invalidation-consumer").Logger()
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, sessions, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sessions Sessions, log zerolog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("set QoS failed")
	}
	if _, err := ch.QueueDeclare(InvalidationQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(InvalidationQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	var retry requeueDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			switch err := HandleMessage(ctx, sessions, d.Body); {
			case err == nil:
				retry.reset()
				_ = d.Ack(false)
			case errors.Is(err, errMalformed):
				log.Error().Err(err).Msg("rejecting malformed message")
				_ = d.Nack(false, false) // do not requeue, it will never parse
			default:
				wait := retry.next(err)
				log.Warn().Err(err).Dur("requeue_in", wait).Msg("invalidation failed")
				slept := sleep(ctx, wait)
				_ = d.Nack(false, true)
				if !slept {
					return ctx.Err()
				}
			}
		}
	}
}

var errMalformed = errors.New("malformed invalidation event")

// requeueDelay paces redelivery of events that failed.  It doubles from
// 100ms up to 30s while the cache is unavailable and resets on success.
type requeueDelay struct{ cur time.Duration }

const (
	minRequeueDelay = 100 * time.Millisecond
	maxRequeueDelay = 30 * time.Second
)

func (r *requeueDelay) next(err error) time.Duration {
	if !errors.Is(err, errs.ErrUnavailable) {
		return minRequeueDelay
	}
	if r.cur == 0 {
		r.cur = minRequeueDelay
	} else {
		r.cur = min(2*r.cur, maxRequeueDelay)
	}
	return r.cur
}

func (r *requeueDelay) reset() { r.cur = 0 }

// HandleMessage decodes one InvalidationEvent and invalidates its keys on
// a scoped cache connection.
func HandleMessage(ctx context.Context, sessions Sessions, body []byte) error {
	var ev InvalidationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if len(ev.Keys) == 0 {
		return fmt.Errorf("%w: no keys", errMalformed)
	}
	return sessions.WithSession(ctx, func(ctx context.Context, s *cache.Session) error {
		return s.Invalidate(ctx, ev.Keys...)
	})
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
