package kafka

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/arhteh596/granovskicrm-sub002/internal/domain"
	"github.com/arhteh596/granovskicrm-sub002/internal/kafka/registry"

	// Blank import triggers init() in each handler file,
	// registering all event handlers into the registry.
	_ "github.com/arhteh596/granovskicrm-sub002/internal/kafka/handlers"
)

// Sink receives decoded events. application.Service implements it.
type Sink interface {
	Deliver(ctx context.Context, ev domain.Event) bool
}

// Consumer wraps the franz-go Kafka client.
type Consumer struct {
	client *kgo.Client
	sink   Sink
}

// New creates a Consumer with the given brokers, group ID, and topics.
func New(brokers []string, groupID string, topics []string, sink Sink) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: client, sink: sink}, nil
}

// Start polls Kafka and processes records. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().Msg("kafka consumer started")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		fetches.EachRecord(func(r *kgo.Record) {
			c.process(ctx, r)
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			log.Error().Err(err).Msg("kafka commit error")
		}
	}

	c.client.Close()
	log.Info().Msg("kafka consumer stopped")
	return nil
}

// process routes a record through the registry and hands the event to the sink.
func (c *Consumer) process(ctx context.Context, r *kgo.Record) {
	log.Debug().
		Str("topic", r.Topic).
		Str("key", string(r.Key)).
		Msg("processing kafka record")

	ev := registry.DispatchDirect(r.Topic, r.Value)
	if ev == nil {
		ev = registry.Dispatch(r.Topic, r.Value)
	}
	if ev == nil {
		log.Debug().Str("topic", r.Topic).Msg("no handler matched, skipping")
		return
	}

	c.sink.Deliver(ctx, *ev)
}
