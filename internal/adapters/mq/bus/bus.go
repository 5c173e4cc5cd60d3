// Package bus adapts redis pub/sub for trigger and completion messaging.
//
// Subscribing is a dedicated long-lived loop owned by a single goroutine;
// publishes go through the regular pooled client, so no explicit connection
// lock is needed.
package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/refx-online/omajinai/pkg/logger"
)

// Channel names shared with the host server.
const (
	// TriggerChannel receives bare integer user ids requesting a full
	// recalculation.
	TriggerChannel = "omajinai:recalculate"

	// CompletionChannel echoes the triggering user id once a pass
	// finishes.
	CompletionChannel = "refx:recalculate"

	// StatusChannel carries the best-effort liveness flag at process
	// start and stop.
	StatusChannel = "omajinai:online"
)

// Bus is a thin pub/sub wrapper around a redis client.
type Bus struct {
	client redis.UniversalClient
	logger logger.Logger
}

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithLogger sets a custom logger for the bus.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Bus over a redis client.
func New(client redis.UniversalClient, opts ...Option) *Bus {
	b := &Bus{
		client: client,
		logger: logger.Get().Named("bus"),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Subscribe returns a channel of raw message payloads from the named
// pub/sub channel. The channel closes when ctx is canceled.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan string, error) {
	sub := b.client.Subscribe(ctx, channel)

	// Force the subscription onto the wire before handing out messages.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribing to %s: %w", channel, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer func() {
			if err := sub.Close(); err != nil {
				b.logger.Warn(ctx, "closing subscription", logger.Error(err))
			}
		}()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Publish sends payload on the named channel.
func (b *Bus) Publish(ctx context.Context, channel, payload string) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}
	return nil
}

// PublishStatus publishes the liveness flag best-effort; failures are
// logged, never surfaced.
func (b *Bus) PublishStatus(ctx context.Context, online bool) {
	payload := "0"
	if online {
		payload = "1"
	}
	if err := b.Publish(ctx, StatusChannel, payload); err != nil {
		b.logger.Warn(ctx, "failed to publish liveness flag", logger.Error(err))
	}
}
