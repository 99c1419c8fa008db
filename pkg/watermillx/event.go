package watermillx

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	watermillSQL "github.com/ThreeDotsLabs/watermill-sql/v4/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gitlab.com/insightbox/insightbox-backend/internal/domain/event"
	"gitlab.com/insightbox/insightbox-backend/pkg/otelx"
)

// SubscriberFactory builds a subscriber for one consumer group.
type SubscriberFactory func(consumerGroup string) (message.Subscriber, error)

// SQLSubscribers reads events from the postgres outbox tables. A zero pollInterval keeps the library default.
func SQLSubscribers(pool *pgxpool.Pool, logger watermill.LoggerAdapter, pollInterval time.Duration) SubscriberFactory {
	return func(consumerGroup string) (message.Subscriber, error) {
		return watermillSQL.NewSubscriber(
			watermillSQL.BeginnerFromPgx(pool),
			watermillSQL.SubscriberConfig{
				ConsumerGroup:    consumerGroup,
				SchemaAdapter:    watermillSQL.DefaultPostgreSQLSchema{},
				OffsetsAdapter:   watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
				InitializeSchema: true,
				PollInterval:     pollInterval,
			},
			logger,
		)
	}
}

// GoChannelSubscribers shares one in-process pub/sub between all handlers.
func GoChannelSubscribers(pubsub *gochannel.GoChannel) SubscriberFactory {
	return func(string) (message.Subscriber, error) {
		return pubsub, nil
	}
}

func NewGoChannel(logger watermill.LoggerAdapter) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            64,
		BlockPublishUntilSubscriberAck: false,
	}, logger)
}

func NewEventProcessor(router *message.Router, subscribers SubscriberFactory, logger watermill.LoggerAdapter) (*cqrs.EventProcessor, error) {
	return cqrs.NewEventProcessorWithConfig(router, cqrs.EventProcessorConfig{
		GenerateSubscribeTopic: func(params cqrs.EventProcessorGenerateSubscribeTopicParams) (string, error) {
			evt, ok := params.EventHandler.NewEvent().(event.Event)
			if !ok {
				return "", fmt.Errorf("event handler %T does not implement event.Event", params.EventHandler.NewEvent())
			}
			return MessageTopic(evt)
		},
		SubscriberConstructor: func(params cqrs.EventProcessorSubscriberConstructorParams) (message.Subscriber, error) {
			return subscribers(params.HandlerName)
		},
		Marshaler:         cqrs.JSONMarshaler{},
		Logger:            logger,
		AckOnUnknownEvent: true,
	})
}

func NewEventBus(publisher message.Publisher, logger watermill.LoggerAdapter) (*cqrs.EventBus, error) {
	eventBus, err := cqrs.NewEventBusWithConfig(publisher, cqrs.EventBusConfig{
		GeneratePublishTopic: func(params cqrs.GenerateEventPublishTopicParams) (string, error) {
			evt, ok := params.Event.(event.Event)
			if !ok {
				return "", fmt.Errorf("event %T does not implement event.Event", params.Event)
			}
			return MessageTopic(evt)
		},
		Marshaler: cqrs.JSONMarshaler{},
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	return eventBus, nil
}

// NewTxEventBus publishes into the outbox tables through tx, so events commit or roll back with it.
func NewTxEventBus(tx pgx.Tx, logger watermill.LoggerAdapter) (*cqrs.EventBus, error) {
	publisher, err := watermillSQL.NewPublisher(
		watermillSQL.TxFromPgx(tx),
		watermillSQL.PublisherConfig{
			SchemaAdapter: watermillSQL.DefaultPostgreSQLSchema{},
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher: %w", err)
	}

	return NewEventBus(publisher, logger)
}

func Publish(ctx context.Context, tx pgx.Tx, logger watermill.LoggerAdapter, evts ...event.Event) error {
	if len(evts) == 0 {
		return nil
	}

	eventBus, err := NewTxEventBus(tx, logger)
	if err != nil {
		return err
	}

	return PublishAll(ctx, eventBus, evts...)
}

// PublishAll stamps each event with the current trace context and publishes it.
func PublishAll(ctx context.Context, bus *cqrs.EventBus, evts ...event.Event) error {
	for _, evt := range evts {
		if p, ok := evt.(otelx.TracePropagator); ok {
			p.Propagate(ctx)
		}
		if err := bus.Publish(ctx, evt); err != nil {
			return fmt.Errorf("failed to publish event %T: %w", evt, err)
		}
	}
	return nil
}

func MessageTopic(evt event.Event) (string, error) {
	streamName := evt.GetStreamName()
	if streamName == "" {
		return "", fmt.Errorf("stream name is empty, event: %T", evt)
	}

	return streamName, nil
}

// InitializeEventSchema creates the outbox tables for the given streams up front,
// so the first publish inside a transaction does not have to.
func InitializeEventSchema(pool *pgxpool.Pool, logger watermill.LoggerAdapter, streams ...string) error {
	subscriber, err := watermillSQL.NewSubscriber(
		watermillSQL.BeginnerFromPgx(pool),
		watermillSQL.SubscriberConfig{
			SchemaAdapter:    watermillSQL.DefaultPostgreSQLSchema{},
			OffsetsAdapter:   watermillSQL.DefaultPostgreSQLOffsetsAdapter{},
			InitializeSchema: true,
		},
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create subscriber: %w", err)
	}
	defer subscriber.Close()

	for _, stream := range streams {
		if err := subscriber.SubscribeInitialize(stream); err != nil {
			return fmt.Errorf("failed to initialize event schema for %s: %w", stream, err)
		}
	}

	return nil
}
