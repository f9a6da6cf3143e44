// Package redis_session keeps conversation histories in Redis so multiple
// backend instances can share sessions. Each session is a message list plus
// a metadata hash; both expire together when a TTL is configured.
package redis_session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge-ai/companion/internal/session"
	"github.com/carebridge-ai/companion/models"
)

// Store is a Redis-backed session store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Store from an existing client. ttl of zero means keys
// never expire.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func metaKey(id string) string     { return fmt.Sprintf("session:%s:meta", id) }
func messagesKey(id string) string { return fmt.Sprintf("session:%s:messages", id) }

func (s *Store) GetOrCreate(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		exists, err := s.client.Exists(ctx, metaKey(sessionID)).Result()
		if err != nil {
			return "", err
		}
		if exists == 1 {
			now := time.Now().UTC().Format(time.RFC3339)
			if err := s.client.HSet(ctx, metaKey(sessionID), "last_active", now).Err(); err != nil {
				return "", err
			}
			s.refreshTTL(ctx, sessionID)
			return sessionID, nil
		}
	}
	id := sessionID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.client.HSet(ctx, metaKey(id), "created_at", now, "last_active", now).Err(); err != nil {
		return "", err
	}
	s.refreshTTL(ctx, id)
	return id, nil
}

func (s *Store) Append(ctx context.Context, sessionID string, role models.MessageRole, content string) error {
	exists, err := s.client.Exists(ctx, metaKey(sessionID)).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return nil
	}
	msg := models.ChatMessage{Role: role, Content: content, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, messagesKey(sessionID), data)
	pipe.LTrim(ctx, messagesKey(sessionID), int64(-session.MaxHistory), -1)
	pipe.HSet(ctx, metaKey(sessionID), "last_active", time.Now().UTC().Format(time.RFC3339))
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	s.refreshTTL(ctx, sessionID)
	return nil
}

func (s *Store) History(ctx context.Context, sessionID string, max int) ([]models.ChatMessage, error) {
	if max <= 0 {
		max = session.DefaultHistoryWindow
	}
	raw, err := s.client.LRange(ctx, messagesKey(sessionID), int64(-max), -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	out := make([]models.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(r), &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) (bool, error) {
	removed, err := s.client.Del(ctx, metaKey(sessionID), messagesKey(sessionID)).Result()
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

func (s *Store) refreshTTL(ctx context.Context, sessionID string) {
	if s.ttl <= 0 {
		return
	}
	_ = s.client.Expire(ctx, metaKey(sessionID), s.ttl).Err()
	_ = s.client.Expire(ctx, messagesKey(sessionID), s.ttl).Err()
}
