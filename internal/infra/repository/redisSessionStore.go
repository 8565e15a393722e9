package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voice-banking/internal/domain/entities"
	Irepository "voice-banking/internal/domain/interfaces/repository"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "voicebank"

type RedisSessionStore struct {
	client *redis.Client
}

func NewRedisSessionStore(client *redis.Client) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func pendingKey(sessionID, proposalID string) string {
	return fmt.Sprintf("%s:pending:%s:%s", keyPrefix, sessionID, proposalID)
}

func latestKey(sessionID string) string {
	return fmt.Sprintf("%s:pending:%s:latest", keyPrefix, sessionID)
}

func velocityKey(accountID string) string {
	return fmt.Sprintf("%s:velocity:%s", keyPrefix, accountID)
}

func (s *RedisSessionStore) SetPending(ctx context.Context, action entities.PendingAction, ttl time.Duration) error {
	payload, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal pending action: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, pendingKey(action.SessionID, action.ProposalID), payload, ttl)
	pipe.Set(ctx, latestKey(action.SessionID), action.ProposalID, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store pending action: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) GetPending(ctx context.Context, sessionID, proposalID string) (entities.PendingAction, error) {
	var action entities.PendingAction

	payload, err := s.client.Get(ctx, pendingKey(sessionID, proposalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return action, Irepository.ErrNotFound
	}
	if err != nil {
		return action, fmt.Errorf("failed to load pending action: %w", err)
	}

	if err := json.Unmarshal(payload, &action); err != nil {
		return action, fmt.Errorf("failed to decode pending action: %w", err)
	}
	return action, nil
}

func (s *RedisSessionStore) LatestPending(ctx context.Context, sessionID string) (entities.PendingAction, error) {
	proposalID, err := s.client.Get(ctx, latestKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return entities.PendingAction{}, Irepository.ErrNotFound
	}
	if err != nil {
		return entities.PendingAction{}, fmt.Errorf("failed to load latest proposal: %w", err)
	}
	return s.GetPending(ctx, sessionID, proposalID)
}

func (s *RedisSessionStore) TakePending(ctx context.Context, sessionID, proposalID string) (entities.PendingAction, error) {
	var action entities.PendingAction

	payload, err := s.client.GetDel(ctx, pendingKey(sessionID, proposalID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return action, Irepository.ErrNotFound
	}
	if err != nil {
		return action, fmt.Errorf("failed to take pending action: %w", err)
	}

	if err := s.clearLatest(ctx, sessionID, proposalID); err != nil {
		return action, err
	}
	if err := json.Unmarshal(payload, &action); err != nil {
		return action, fmt.Errorf("failed to decode pending action: %w", err)
	}
	return action, nil
}

func (s *RedisSessionStore) clearLatest(ctx context.Context, sessionID, proposalID string) error {
	latest, err := s.client.Get(ctx, latestKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load latest proposal: %w", err)
	}
	if latest != proposalID {
		return nil
	}
	if err := s.client.Del(ctx, latestKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear latest proposal: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) ClearPending(ctx context.Context, sessionID, proposalID string) error {
	latest, err := s.client.Get(ctx, latestKey(sessionID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to load latest proposal: %w", err)
	}

	keys := []string{pendingKey(sessionID, proposalID)}
	if latest == proposalID {
		keys = append(keys, latestKey(sessionID))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to clear pending action: %w", err)
	}
	return nil
}

// RecordOutgoing counts one outgoing payment. The window starts with the first payment.
func (s *RedisSessionStore) RecordOutgoing(ctx context.Context, accountID string, window time.Duration) (int64, error) {
	key := velocityKey(accountID)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to record outgoing payment: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("failed to set velocity window: %w", err)
		}
	}
	return count, nil
}

func (s *RedisSessionStore) RecentOutgoing(ctx context.Context, accountID string) (int64, error) {
	count, err := s.client.Get(ctx, velocityKey(accountID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read outgoing count: %w", err)
	}
	return count, nil
}
