package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/destinasi/internal/destination"
)

// sessionRecord is the Redis value behind session:<id>.
type sessionRecord struct {
	UserID      string           `json:"user_id"`
	Email       string           `json:"email"`
	Role        destination.Role `json:"role"`
	RefreshHash string           `json:"refresh_hash"`
}

func sessionKey(id string) string  { return "session:" + id }
func refreshKey(hash string) string { return "refresh:" + hash }

// loadSession returns nil, nil when the session does not exist.
func (p *Provider) loadSession(ctx context.Context, id string) (*sessionRecord, error) {
	val, err := p.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling session %s: %w", id, err)
	}
	return &rec, nil
}

// storeSession writes the session and its refresh-token index with a fresh TTL.
func (p *Provider) storeSession(ctx context.Context, id string, rec sessionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling session %s: %w", id, err)
	}

	_, err = p.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(id), b, p.refreshTTL)
		pipe.Set(ctx, refreshKey(rec.RefreshHash), id, p.refreshTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing session %s: %w", id, err)
	}
	return nil
}

func (p *Provider) deleteSession(ctx context.Context, id string, rec sessionRecord) error {
	if err := p.redis.Del(ctx, sessionKey(id), refreshKey(rec.RefreshHash)).Err(); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}
