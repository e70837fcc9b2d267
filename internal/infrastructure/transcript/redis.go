package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-widget/internal/domain/conversation"
)

const (
	keyPrefix    = "jan:widget:transcript:"
	pingTimeout  = 5 * time.Second
	snapshotVers = "v1"
)

type record struct {
	Version  string                `json:"version"`
	Snapshot conversation.Snapshot `json:"snapshot"`
}

// RedisArchive stores conversation snapshots as JSON with a TTL.
type RedisArchive struct {
	client redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

// NewRedisArchive connects to redisURL and verifies the connection.
func NewRedisArchive(redisURL string, ttl time.Duration, log zerolog.Logger) (*RedisArchive, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url must be provided")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log = log.With().Str("component", "transcript-archive").Logger()
	log.Info().Dur("ttl", ttl).Msg("connected to redis transcript archive")
	return NewRedisArchiveWithClient(client, ttl, log), nil
}

// NewRedisArchiveWithClient wraps an existing client.
func NewRedisArchiveWithClient(client redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *RedisArchive {
	return &RedisArchive{client: client, ttl: ttl, log: log}
}

// Save writes snap, replacing any earlier snapshot of the same conversation.
func (a *RedisArchive) Save(ctx context.Context, snap conversation.Snapshot) error {
	payload, err := json.Marshal(record{Version: snapshotVers, Snapshot: snap})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := a.client.Set(ctx, Key(snap.ID), payload, a.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Load reads the last snapshot of id.
func (a *RedisArchive) Load(ctx context.Context, id string) (*conversation.Snapshot, error) {
	payload, err := a.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, conversation.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if rec.Version != snapshotVers {
		a.log.Warn().Str("conversation_id", id).Str("version", rec.Version).Msg("ignoring snapshot with unknown version")
		return nil, conversation.ErrConversationNotFound
	}
	return &rec.Snapshot, nil
}

// Delete removes the snapshot of id. Missing keys are ignored.
func (a *RedisArchive) Delete(ctx context.Context, id string) error {
	if err := a.client.Del(ctx, Key(id)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Ping checks the connection for readiness probes.
func (a *RedisArchive) Ping(ctx context.Context) error {
	return a.client.Ping(ctx).Err()
}

// Close releases the client.
func (a *RedisArchive) Close() error {
	return a.client.Close()
}

// Key returns the redis key for a conversation.
func Key(id string) string {
	return keyPrefix + id
}

var _ conversation.Archive = (*RedisArchive)(nil)
