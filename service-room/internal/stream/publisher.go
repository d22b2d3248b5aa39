package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"game-party/pkg/config"
	"game-party/pkg/model"
	redisclient "game-party/pkg/redis"
)

const eventField = "event"

// Publisher appends commands to the ordered room log. Entries are durable
// and replayable; every state transition in the system originates here.
type Publisher struct {
	redis  *redisclient.Client
	key    string
	maxLen int64
}

// NewPublisher creates a publisher for the configured stream
func NewPublisher(client *redisclient.Client, cfg *config.StreamConfig) *Publisher {
	return &Publisher{
		redis:  client,
		key:    cfg.Key,
		maxLen: cfg.MaxLen,
	}
}

// Enqueue appends event to the ordered log
func (p *Publisher) Enqueue(ctx context.Context, event model.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = p.redis.XAdd(ctx, p.key, p.maxLen, map[string]interface{}{
		eventField: string(data),
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue event %s: %w", event.Type, err)
	}
	return nil
}
