package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"game-party/pkg/config"
	"game-party/pkg/logger"
	"game-party/pkg/model"
	redisclient "game-party/pkg/redis"

	"github.com/google/uuid"
)

const readBatchSize = 16

// Handler processes one command from the ordered log. Handlers must be
// replay-idempotent: an entry can be redelivered after a crash mid-processing,
// so they check current state before applying a transition.
type Handler func(ctx context.Context, event model.Event) error

// Consumer reads the ordered log through a consumer group shared by all
// instances. Each entry is delivered to exactly one group member, which
// dispatches it through an explicit type-to-handler table built at startup.
type Consumer struct {
	redis    *redisclient.Client
	key      string
	group    string
	consumer string
	block    time.Duration
	handlers map[model.EventType]Handler
}

// NewConsumer creates a group consumer with a per-instance consumer name
func NewConsumer(client *redisclient.Client, cfg *config.StreamConfig, handlers map[model.EventType]Handler) *Consumer {
	return &Consumer{
		redis:    client,
		key:      cfg.Key,
		group:    cfg.Group,
		consumer: fmt.Sprintf("consumer-%s", uuid.NewString()),
		block:    cfg.BlockTimeout,
		handlers: handlers,
	}
}

// Run reads and dispatches entries until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.redis.XGroupCreateMkStream(ctx, c.key, c.group); err != nil {
		return err
	}

	logger.Infof("stream consumer %s joined group %s on %s", c.consumer, c.group, c.key)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		streams, err := c.redis.XReadGroup(ctx, c.key, c.group, c.consumer, readBatchSize, c.block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Errorf(err, "failed to read command stream")
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				c.dispatch(ctx, msg.Values)
				if err := c.redis.XAck(ctx, c.key, c.group, msg.ID); err != nil {
					logger.Errorf(err, "failed to ack entry %s", msg.ID)
				}
			}
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, values map[string]interface{}) {
	raw, ok := values[eventField].(string)
	if !ok {
		logger.Warnf("stream entry without %s field, skipping", eventField)
		return
	}

	var event model.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		logger.Errorf(err, "failed to decode stream entry")
		return
	}

	handler, ok := c.handlers[event.Type]
	if !ok {
		logger.Warnf("no handler registered for event type %s", event.Type)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Errorf(nil, "handler for %s panicked: %v", event.Type, r)
		}
	}()

	if err := handler(ctx, event); err != nil {
		logger.Errorf(err, "failed to process %s event %s", event.Type, event.ID)
	}
}
