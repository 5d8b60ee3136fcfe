package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig selects the server and channel.
type RedisConfig struct {
	Addr    string
	Channel string
}

// RedisListener consumes JSON events from a Redis pub/sub channel.
type RedisListener struct {
	client  *redis.Client
	channel string
	handler EventHandler
	logger  *slog.Logger
}

// NewRedisListener connects to cfg.Addr and verifies it with a PING.
func NewRedisListener(ctx context.Context, cfg RedisConfig, handler EventHandler, logger *slog.Logger) (*RedisListener, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisListener{
		client:  client,
		channel: cfg.Channel,
		handler: handler,
		logger:  logger.With(slog.String("component", "redis_listener"), slog.String("channel", cfg.Channel)),
	}, nil
}

// Run subscribes and consumes until ctx is done.
func (l *RedisListener) Run(ctx context.Context) error {
	sub := l.client.Subscribe(ctx, l.channel)
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", l.channel, err)
	}
	l.logger.Info("listener_started")
	l.consume(ctx, sub.Channel())
	l.logger.Info("listener_stopped")
	return nil
}

// Close releases the connection pool.
func (l *RedisListener) Close() error {
	return l.client.Close()
}

func (l *RedisListener) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				l.logger.Warn("notification_invalid", slog.String("error", err.Error()))
				continue
			}
			if err := l.handler.Handle(ctx, ev); err != nil {
				l.logger.Warn("notification_failed",
					slog.String("type", string(ev.Type)),
					slog.String("unit", ev.Ref().String()),
					slog.String("error", err.Error()))
			}
		}
	}
}
