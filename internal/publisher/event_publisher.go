package publisher

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/retainer/internal/config"
	ierr "github.com/flexprice/retainer/internal/errors"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/flexprice/retainer/internal/pubsub"
	"github.com/flexprice/retainer/internal/pubsub/kafka"
	"github.com/flexprice/retainer/internal/pubsub/memory"
	"github.com/flexprice/retainer/internal/types"
	jsoniter "github.com/json-iterator/go"
)

// EventPublisher hands billing events to the configured transport
type EventPublisher interface {
	Publish(ctx context.Context, event *types.BillingEvent) error
}

type eventPublisher struct {
	pubsub pubsub.Publisher
	topic  string
	logger *logger.Logger
}

// NewPubSub builds the transport selected by event.backend
func NewPubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	switch cfg.Event.Backend {
	case types.PublisherBackendMemory:
		return memory.NewPubSub(logger), nil
	case types.PublisherBackendKafka:
		return kafka.NewPubSub(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown event backend: %s", cfg.Event.Backend)
	}
}

// NewEventPublisher creates a publisher writing to the configured topic
func NewEventPublisher(cfg *config.Configuration, logger *logger.Logger, ps pubsub.PubSub) EventPublisher {
	return &eventPublisher{
		pubsub: ps,
		topic:  cfg.Event.Topic,
		logger: logger,
	}
}

func (p *eventPublisher) Publish(ctx context.Context, event *types.BillingEvent) error {
	if event.ID == "" {
		event.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT)
	}

	payload, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal billing event").
			Mark(ierr.ErrSystem)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_name", event.EventName)
	msg.Metadata.Set("client_id", event.ClientID)

	p.logger.Debugw("publishing billing event",
		"event_id", event.ID,
		"event_name", event.EventName,
		"invoice_id", event.InvoiceID,
		"topic", p.topic,
	)

	if err := p.pubsub.Publish(ctx, p.topic, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish billing event").
			WithReportableDetails(map[string]any{
				"event_id":   event.ID,
				"event_name": event.EventName,
			}).
			Mark(ierr.ErrSystem)
	}
	return nil
}
