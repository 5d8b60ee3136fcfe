package notify

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig selects the topic to consume.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// messageReader is the part of *kafka.Reader the listener uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaListener consumes JSON events from a Kafka topic.
type KafkaListener struct {
	reader  messageReader
	handler EventHandler
	logger  *slog.Logger
}

// NewKafkaListener creates a consumer-group reader for cfg.
func NewKafkaListener(cfg KafkaConfig, handler EventHandler, logger *slog.Logger) *KafkaListener {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.Group,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return newKafkaListener(r, cfg.Topic, handler, logger)
}

func newKafkaListener(r messageReader, topic string, handler EventHandler, logger *slog.Logger) *KafkaListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaListener{
		reader:  r,
		handler: handler,
		logger:  logger.With(slog.String("component", "kafka_listener"), slog.String("topic", topic)),
	}
}

// Run consumes until ctx is done, then closes the reader. Messages that
// fail to decode or handle are logged and committed so they are not
// redelivered forever.
func (l *KafkaListener) Run(ctx context.Context) error {
	l.logger.Info("listener_started")
	defer func() { _ = l.reader.Close() }()
	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("listener_stopped")
				return nil
			}
			l.logger.Error("kafka_fetch_failed", slog.String("error", err.Error()))
			continue
		}

		l.process(ctx, msg)

		if err := l.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			l.logger.Error("kafka_commit_failed",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.String("error", err.Error()))
		}
	}
}

func (l *KafkaListener) process(ctx context.Context, msg kafka.Message) {
	ev, err := DecodeEvent(msg.Value)
	if err != nil {
		l.logger.Warn("notification_invalid",
			slog.Int("partition", msg.Partition),
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()))
		return
	}
	if err := l.handler.Handle(ctx, ev); err != nil {
		l.logger.Warn("notification_failed",
			slog.String("type", string(ev.Type)),
			slog.String("unit", ev.Ref().String()),
			slog.String("error", err.Error()))
	}
}
