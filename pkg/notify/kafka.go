package notify

import (
	"context"
	"time"

	"istishara/pkg/config"
	"istishara/pkg/kafka"
	kafka_config "istishara/pkg/kafka/config"
	"istishara/pkg/logger"
	"istishara/pkg/model"
)

const eventTypeNotification = "notification.created"

// KafkaNotifier publishes notification events keyed by recipient, so each
// user's notifications stay ordered on one partition. Delivery and
// read-state belong to the consumer side.
type KafkaNotifier struct {
	producer *kafka.Producer
	source   string
}

// NewKafkaNotifier builds a notifier from service config, or a Noop when no
// brokers are configured.
func NewKafkaNotifier(cfg *config.Config, serviceName string) (Notifier, error) {
	if len(cfg.KafkaBrokers) == 0 {
		cfg.Log.Warn("No Kafka brokers configured, notifications will be dropped")
		return Noop{}, nil
	}

	producer, err := kafka.NewProducer(
		kafka_config.FromBrokers(cfg.KafkaBrokers),
		cfg.NotificationsTopic,
		cfg.NotificationsDLQTopic,
	)
	if err != nil {
		return nil, err
	}

	return &KafkaNotifier{
		producer: producer,
		source:   serviceName,
	}, nil
}

func (n *KafkaNotifier) Notify(ctx context.Context, userID, message, link string) error {
	msg := kafka.NewMessage().
		WithKey(userID).
		WithValue(model.Notification{
			UserID:    userID,
			Message:   message,
			Link:      link,
			CreatedAt: time.Now().UTC(),
		}).
		WithEventType(eventTypeNotification).
		WithSource(n.source).
		Build()

	return n.producer.Publish(ctx, msg)
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

// Send is a helper for call sites: it notifies and only logs on failure, so
// the triggering operation never observes a sink error.
func Send(ctx context.Context, notifier Notifier, log *logger.Logger, userID, message, link string) {
	if err := notifier.Notify(ctx, userID, message, link); err != nil {
		log.Warn("Failed to dispatch notification",
			"user_id", userID,
			"link", link,
			"error", err,
		)
	}
}
