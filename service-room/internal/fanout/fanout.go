package fanout

import (
	"context"
	"encoding/json"

	"game-party/pkg/config"
	"game-party/pkg/logger"
	"game-party/pkg/model"
	redisclient "game-party/pkg/redis"
)

// Publisher pushes broadcast frames onto the shared pub/sub channel so the
// instance holding each live connection can deliver them. Unordered and
// at-most-once; anything that must survive a miss goes through the recovery
// log before it gets here.
type Publisher struct {
	redis   *redisclient.Client
	channel string
}

// NewPublisher creates a fan-out publisher on the configured channel
func NewPublisher(client *redisclient.Client, cfg *config.FanoutConfig) *Publisher {
	return &Publisher{redis: client, channel: cfg.Channel}
}

// Publish sends frame to every subscribed instance
func (p *Publisher) Publish(ctx context.Context, frame model.BroadcastFrame) error {
	return p.redis.Publish(ctx, p.channel, frame)
}

// FrameHandler receives frames on the subscribing instance
type FrameHandler func(frame model.BroadcastFrame)

// Subscriber listens on the fan-out channel and hands each frame to the
// local delivery handler.
type Subscriber struct {
	redis   *redisclient.Client
	channel string
	handler FrameHandler
}

// NewSubscriber creates a subscriber delivering frames to handler
func NewSubscriber(client *redisclient.Client, cfg *config.FanoutConfig, handler FrameHandler) *Subscriber {
	return &Subscriber{redis: client, channel: cfg.Channel, handler: handler}
}

// Run consumes frames until ctx is cancelled
func (s *Subscriber) Run(ctx context.Context) error {
	pubsub := s.redis.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	logger.Infof("fan-out subscriber listening on %s", s.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var frame model.BroadcastFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				logger.Errorf(err, "failed to decode broadcast frame")
				continue
			}
			s.handler(frame)
		}
	}
}
