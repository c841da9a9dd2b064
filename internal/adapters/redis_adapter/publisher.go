// internal/adapters/redis_adapter/publisher.go
package redis_a

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ammerola/pharmapos-be/internal/core/domain"
	"github.com/ammerola/pharmapos-be/internal/core/ports"
)

// Envelope is the wire format of a broadcast event
type Envelope struct {
	Event       domain.EventName `json:"event"`
	Payload     json.RawMessage  `json:"payload"`
	PublishedAt time.Time        `json:"published_at"`
}

// Publisher broadcasts events on a Redis pub/sub channel
type Publisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a pub/sub event publisher
func NewPublisher(client *redis.Client, channel string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		logger:  logger.With(slog.String("component", "event_publisher")),
	}
}

// Publish sends one event to every current subscriber
func (p *Publisher) Publish(ctx context.Context, event domain.EventName, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	data, err := json.Marshal(Envelope{
		Event:       event,
		Payload:     body,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal error: %w", err)
	}

	receivers, err := p.client.Publish(ctx, p.channel, data).Result()
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event",
			slog.String("event", string(event)),
			slog.Any("error", err))
		return fmt.Errorf("redis publish error: %w", err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("event", string(event)),
		slog.Int64("receivers", receivers))

	return nil
}

// Subscribe streams envelopes from the channel until ctx is done. Messages
// that fail to decode are logged and skipped.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan Envelope, error) {
	sub := p.client.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe error: %w", err)
	}

	out := make(chan Envelope)
	go func() {
		defer close(out)
		defer sub.Close()

		messages := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					p.logger.WarnContext(ctx, "dropping malformed event",
						slog.Any("error", err))
					continue
				}
				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
