package lifecycle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSource feeds notifications published on a Redis pub/sub channel to
// a coordinator. Each message is one notification or an array, handled in
// its own scope.
type RedisSource struct {
	client  *redis.Client
	channel string
	coord   *Coordinator
}

// NewRedisSource creates a source for channel.
func NewRedisSource(client *redis.Client, channel string, coord *Coordinator) *RedisSource {
	return &RedisSource{client: client, channel: channel, coord: coord}
}

// Run subscribes and handles messages until ctx is cancelled. It returns
// only a subscription error; bad messages are logged and skipped.
func (s *RedisSource) Run(ctx context.Context) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before consuming.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.channel, err)
	}
	slog.Info("listening for notifications", slog.String("channel", s.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.handle(ctx, msg.Payload)
		}
	}
}

func (s *RedisSource) handle(ctx context.Context, payload string) {
	batch, err := DecodeNotifications([]byte(payload))
	if err != nil {
		slog.Warn("discarding malformed notification message",
			slog.String("channel", s.channel),
			slog.Any("error", err),
		)
		return
	}

	// A message already received is handled fully even during shutdown.
	scoped := s.coord.Scope(context.WithoutCancel(ctx), uuid.NewString())
	for _, n := range batch {
		s.coord.Handle(scoped, n)
	}
}
