package kafka

import (
	"context"

	"github.com/Shopify/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/pubsub"
)

// PubSub publishes and consumes billing events through Kafka
type PubSub struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *logger.Logger
}

// GetSaramaConfig returns the producer and consumer settings shared by both sides
func GetSaramaConfig(cfg *config.Configuration) *sarama.Config {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_1_0_0
	saramaConfig.ClientID = cfg.Event.ClientID

	// Billing events must not be lost once an invoice is committed
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	saramaConfig.Consumer.Offsets.Retry.Max = 3

	return saramaConfig
}

// NewPubSub creates a new kafka-based pubsub
func NewPubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	saramaConfig := GetSaramaConfig(cfg)

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               cfg.Event.Brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, err
	}

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               cfg.Event.Brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaConfig,
			ConsumerGroup:         cfg.Event.ClientID,
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		_ = publisher.Close()
		return nil, err
	}

	return &PubSub{
		publisher:  publisher,
		subscriber: subscriber,
		logger:     logger,
	}, nil
}

func (p *PubSub) Publish(ctx context.Context, topic string, msg *message.Message) error {
	msg.SetContext(ctx)
	return p.publisher.Publish(topic, msg)
}

func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return p.subscriber.Subscribe(ctx, topic)
}

func (p *PubSub) Close() error {
	pubErr := p.publisher.Close()
	subErr := p.subscriber.Close()
	if pubErr != nil {
		return pubErr
	}
	return subErr
}
