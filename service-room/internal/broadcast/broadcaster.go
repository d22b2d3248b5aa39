package broadcast

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"game-party/pkg/logger"
	"game-party/pkg/model"

	"game-party/service-room/internal/fanout"
	"game-party/service-room/internal/recovery"
	"game-party/service-room/internal/registry"
)

// roomDestination matches "/topic/room/{joinCode}" and any suffixed variant;
// the join code is the recovery log's partition key.
var roomDestination = regexp.MustCompile(`^/topic/room/([^/]+)(?:/.*)?$`)

// RoomCode extracts the join code from a room destination. Destinations that
// don't address a room bypass recovery bookkeeping entirely.
func RoomCode(destination string) (string, bool) {
	match := roomDestination.FindStringSubmatch(destination)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Destination builds a room topic path, optionally with a suffix segment
func Destination(joinCode string, suffix ...string) string {
	parts := append([]string{"/topic/room/" + joinCode}, suffix...)
	return strings.Join(parts, "/")
}

// Transport delivers an envelope to one locally held connection
type Transport interface {
	Send(connID, destination string, response model.Envelope) error
}

// Broadcaster routes outgoing payloads. Room-addressed payloads are recorded
// in the recovery log first, so the stream id travels with the envelope and a
// reconnecting client can use it as its replay cursor. Delivery itself is
// best-effort relative to the state change that produced the payload.
type Broadcaster struct {
	registry *registry.Registry
	recovery *recovery.Log
	fanout   *fanout.Publisher

	mu        sync.RWMutex
	transport Transport
}

// New creates a broadcaster. The transport is attached later via
// SetTransport because the connection layer is constructed after the
// services that broadcast through it.
func New(reg *registry.Registry, rec *recovery.Log, pub *fanout.Publisher) *Broadcaster {
	return &Broadcaster{
		registry: reg,
		recovery: rec,
		fanout:   pub,
	}
}

// SetTransport attaches the local connection transport
func (b *Broadcaster) SetTransport(t Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transport = t
}

// Publish records a room-addressed response in the recovery log, then fans it
// out to every instance. A recovery failure downgrades the message to
// non-recoverable (no id) rather than blocking the broadcast; a fan-out
// failure falls back to delivering on this instance only.
func (b *Broadcaster) Publish(ctx context.Context, destination string, response model.Envelope) {
	if joinCode, ok := RoomCode(destination); ok {
		streamID, err := b.recovery.Save(ctx, joinCode, destination, response)
		if err != nil {
			logger.Errorf(err, "failed to record broadcast for recovery on %s", destination)
		} else {
			response = response.WithID(streamID)
		}
	}

	frame := model.BroadcastFrame{Destination: destination, Response: response}
	if err := b.fanout.Publish(ctx, frame); err != nil {
		logger.Errorf(err, "failed to fan out broadcast on %s, delivering locally only", destination)
		b.DeliverLocal(frame)
	}
}

// DeliverLocal sends frame to the connections this instance holds for the
// addressed room. Called by the fan-out subscriber on every instance.
func (b *Broadcaster) DeliverLocal(frame model.BroadcastFrame) {
	b.mu.RLock()
	transport := b.transport
	b.mu.RUnlock()
	if transport == nil {
		return
	}

	joinCode, ok := RoomCode(frame.Destination)
	if !ok {
		return
	}

	for _, connID := range b.registry.ConnsByRoom(joinCode) {
		if err := transport.Send(connID, frame.Destination, frame.Response); err != nil {
			logger.Debugf("failed to deliver to connection %s: %v", connID, err)
		}
	}
}
