package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pubquiz-ledger/internal/domain"
)

// SnapshotMirror replicates team snapshots through Redis.
// Key scheme:
//
//	SET  ledger:team:{teamID}:snapshot  {whole JSON document}
//	SADD ledger:teams                   {teamID}
//
// Each push SETs the complete document; nested fields are never patched, so
// any consumer that compares values (or watches the key) sees every write.
type SnapshotMirror struct {
	client *redis.Client
	ttl    time.Duration // zero means keep forever
}

func NewSnapshotMirror(client *redis.Client, ttl time.Duration) *SnapshotMirror {
	return &SnapshotMirror{client: client, ttl: ttl}
}

func (m *SnapshotMirror) PushTeam(ctx context.Context, snap domain.TeamSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.snapshotKey(snap.TeamID), data, m.ttl)
	pipe.SAdd(ctx, m.indexKey(), snap.TeamID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push snapshot: %w", err)
	}
	return nil
}

func (m *SnapshotMirror) PullTeam(ctx context.Context, teamID string) (domain.TeamSnapshot, bool, error) {
	raw, err := m.client.Get(ctx, m.snapshotKey(teamID)).Bytes()
	if err == redis.Nil {
		return domain.TeamSnapshot{}, false, nil
	}
	if err != nil {
		return domain.TeamSnapshot{}, false, fmt.Errorf("pull snapshot: %w", err)
	}
	var snap domain.TeamSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.TeamSnapshot{}, false, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, true, nil
}

func (m *SnapshotMirror) TeamIDs(ctx context.Context) ([]string, error) {
	ids, err := m.client.SMembers(ctx, m.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	return ids, nil
}

func (m *SnapshotMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

func (m *SnapshotMirror) snapshotKey(teamID string) string {
	return "ledger:team:" + teamID + ":snapshot"
}

func (m *SnapshotMirror) indexKey() string {
	return "ledger:teams"
}
