// internal/cache/historian.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cardtable/uno/internal/game"
)

// DefaultQueueName is the Redis list (queue) name for event batch logs.
const DefaultQueueName = "uno_events"

// EventBatchRecord is what the historian pushes for each published batch.
type EventBatchRecord struct {
	RoomID    string       `json:"room_id"`
	Events    []game.Event `json:"events"`
	Timestamp int64        `json:"timestamp"`
}

// Historian mirrors every published event batch onto a Redis list so an
// offline consumer can replay or archive games. It is an optional game.Sink:
// the server runs without it when Redis is not configured.
type Historian struct {
	rdb    *redis.Client
	queue  string
	logger *logrus.Logger
}

// ConnectHistorian dials Redis and verifies the connection with a ping.
func ConnectHistorian(addr string, db int, queue string, logger *logrus.Logger) (*Historian, error) {
	if queue == "" {
		queue = DefaultQueueName
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Historian{rdb: rdb, queue: queue, logger: logger}, nil
}

// HandleBatch serializes the batch and pushes it to the queue. Failures are
// logged and dropped; the game never waits on the historian.
func (h *Historian) HandleBatch(roomID string, batch []game.Event) {
	record := EventBatchRecord{
		RoomID:    roomID,
		Events:    batch,
		Timestamp: time.Now().Unix(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		h.logger.Warnf("historian: failed to marshal batch for room %s: %v", roomID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := h.rdb.RPush(ctx, h.queue, data).Err(); err != nil {
		h.logger.Warnf("historian: failed to RPush to %q: %v", h.queue, err)
	}
}

// Close releases the Redis connection.
func (h *Historian) Close() error {
	return h.rdb.Close()
}
