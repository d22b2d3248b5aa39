package recovery

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"game-party/pkg/config"
	"game-party/pkg/logger"
	"game-party/pkg/model"
	redisclient "game-party/pkg/redis"

	"github.com/redis/go-redis/v9"
)

// saveScript performs the check-and-append as one atomic server-side step:
// a dedup hit returns the previously recorded stream id without appending,
// otherwise the entry is appended with an approximate length cap, the dedup
// mapping is recorded with its short TTL, and the stream's own retention TTL
// is armed only when it has none yet. Splitting this into a read then a write
// at the application level would reintroduce the dedup race.
var saveScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[2])
if existing then
  return existing
end
local id = redis.call('XADD', KEYS[1], 'MAXLEN', '~', ARGV[1], '*',
  'destination', ARGV[2], 'response', ARGV[3], 'timestamp', ARGV[4])
redis.call('SET', KEYS[2], id, 'PX', ARGV[5])
if redis.call('PTTL', KEYS[1]) == -1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[6])
end
return id
`)

// Log is the per-room replay store for broadcasts already sent. Reconnecting
// clients fetch the gap since their last seen stream id instead of losing it.
type Log struct {
	redis     *redisclient.Client
	dedupTTL  time.Duration
	retention time.Duration
	maxLen    int64
}

// NewLog creates a recovery log with the configured retention bounds
func NewLog(client *redisclient.Client, cfg *config.RecoveryConfig) *Log {
	return &Log{
		redis:     client,
		dedupTTL:  cfg.DedupTTL,
		retention: cfg.Retention,
		maxLen:    cfg.MaxLen,
	}
}

func streamKey(joinCode string) string {
	return fmt.Sprintf("room:%s:recovery", joinCode)
}

func dedupKey(joinCode, contentHash string) string {
	return fmt.Sprintf("room:%s:recovery:dedup:%s", joinCode, contentHash)
}

// ContentHash fingerprints a broadcast by destination, success flag,
// serialized data, and error message. The timestamp is excluded so a retried
// duplicate publish collides with the original.
func ContentHash(destination string, response model.Envelope) string {
	h := md5.New()
	io.WriteString(h, destination)
	io.WriteString(h, strconv.FormatBool(response.Success))
	if response.Data != nil {
		if data, err := json.Marshal(response.Data); err == nil {
			h.Write(data)
		} else {
			io.WriteString(h, fmt.Sprintf("%v", response.Data))
		}
	}
	io.WriteString(h, response.ErrorMessage)
	return hex.EncodeToString(h.Sum(nil))
}

// Save records a broadcast and returns its stream id. Saving the same content
// again within the dedup TTL returns the original id without appending, so a
// duplicate publish race cannot produce two records.
func (l *Log) Save(ctx context.Context, joinCode, destination string, response model.Envelope) (string, error) {
	body, err := json.Marshal(response)
	if err != nil {
		return "", fmt.Errorf("failed to marshal broadcast for recovery: %w", err)
	}

	hash := ContentHash(destination, response)
	keys := []string{streamKey(joinCode), dedupKey(joinCode, hash)}
	args := []interface{}{
		l.maxLen,
		destination,
		string(body),
		time.Now().UnixMilli(),
		l.dedupTTL.Milliseconds(),
		l.retention.Milliseconds(),
	}

	result, err := l.redis.ScriptRun(ctx, saveScript, keys, args...)
	if err != nil {
		return "", fmt.Errorf("failed to save recovery record: %w", err)
	}

	id, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("unexpected recovery script result type %T", result)
	}
	return id, nil
}

// MessagesSince returns the records after lastStreamID, oldest first. An
// unknown room or an already caught-up cursor yields an empty slice.
func (l *Log) MessagesSince(ctx context.Context, joinCode, lastStreamID string) ([]model.RecoveryMessage, error) {
	entries, err := l.redis.XRange(ctx, streamKey(joinCode), "-", "+")
	if err != nil {
		return nil, fmt.Errorf("failed to read recovery log: %w", err)
	}

	messages := make([]model.RecoveryMessage, 0, len(entries))
	for _, entry := range entries {
		if lastStreamID != "" && !streamIDAfter(entry.ID, lastStreamID) {
			continue
		}

		msg, err := decodeRecord(entry.ID, entry.Values)
		if err != nil {
			logger.Errorf(err, "skipping malformed recovery record %s in room %s", entry.ID, joinCode)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Cleanup deletes the room's replay log and dedup index. Idempotent.
func (l *Log) Cleanup(ctx context.Context, joinCode string) error {
	keys, err := l.redis.Keys(ctx, dedupKey(joinCode, "*"))
	if err != nil {
		return fmt.Errorf("failed to list recovery dedup keys: %w", err)
	}
	keys = append(keys, streamKey(joinCode))
	if err := l.redis.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete recovery log: %w", err)
	}
	return nil
}

func decodeRecord(streamID string, values map[string]interface{}) (model.RecoveryMessage, error) {
	destination, _ := values["destination"].(string)
	body, _ := values["response"].(string)
	if destination == "" || body == "" {
		return model.RecoveryMessage{}, fmt.Errorf("record missing destination or response")
	}

	var response model.Envelope
	if err := json.Unmarshal([]byte(body), &response); err != nil {
		return model.RecoveryMessage{}, fmt.Errorf("failed to decode response body: %w", err)
	}

	var timestamp int64
	if raw, ok := values["timestamp"].(string); ok {
		timestamp, _ = strconv.ParseInt(raw, 10, 64)
	}

	return model.RecoveryMessage{
		StreamID:        streamID,
		Destination:     destination,
		Response:        response.WithID(streamID),
		TimestampMillis: timestamp,
	}, nil
}

// streamIDAfter reports whether stream id a is strictly greater than b,
// comparing the millisecond and sequence parts numerically.
func streamIDAfter(a, b string) bool {
	aMs, aSeq := splitStreamID(a)
	bMs, bSeq := splitStreamID(b)
	if aMs != bMs {
		return aMs > bMs
	}
	return aSeq > bSeq
}

func splitStreamID(id string) (int64, int64) {
	msPart, seqPart, found := strings.Cut(id, "-")
	ms, _ := strconv.ParseInt(msPart, 10, 64)
	var seq int64
	if found {
		seq, _ = strconv.ParseInt(seqPart, 10, 64)
	}
	return ms, seq
}
