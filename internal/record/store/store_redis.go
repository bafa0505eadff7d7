package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "provenance/pkg/domain"
	"provenance/pkg/platform/sentinel"

	"provenance/internal/record"
)

// checkpointKeyPrefix namespaces suspended-run checkpoints in Redis.
const checkpointKeyPrefix = "provenance:checkpoint:"

// RedisCheckpoint stores the full record of a run suspended at the blocking
// identity review. The durable store remains authoritative; the checkpoint
// lets resume paths skip a database read and carries a TTL so abandoned
// runs do not pile up in Redis.
type RedisCheckpoint struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCheckpoint creates a checkpoint store. A zero ttl disables expiry.
func NewRedisCheckpoint(client *redis.Client, ttl time.Duration) *RedisCheckpoint {
	return &RedisCheckpoint{client: client, ttl: ttl}
}

func checkpointKey(runID id.RunID) string {
	return checkpointKeyPrefix + runID.String()
}

// Save writes the record as the run's checkpoint.
func (c *RedisCheckpoint) Save(ctx context.Context, rec *record.VerificationRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := c.client.Set(ctx, checkpointKey(rec.RunID), doc, c.ttl).Err(); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Load reads a run's checkpoint. Returns sentinel.ErrNotFound when no
// checkpoint exists (expired or never suspended).
func (c *RedisCheckpoint) Load(ctx context.Context, runID id.RunID) (*record.VerificationRecord, error) {
	doc, err := c.client.Get(ctx, checkpointKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var rec record.VerificationRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &rec, nil
}

// Delete removes a run's checkpoint once the run has resumed or aborted.
func (c *RedisCheckpoint) Delete(ctx context.Context, runID id.RunID) error {
	if err := c.client.Del(ctx, checkpointKey(runID)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
