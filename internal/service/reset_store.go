package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/model"
)

// ResetStore keeps single-use credential reset tokens and queues their
// notifications for the reset notification worker.
type ResetStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResetStore creates a new ResetStore.
func NewResetStore(rdb *redis.Client, ttl time.Duration) *ResetStore {
	return &ResetStore{rdb: rdb, ttl: ttl}
}

// TTL is how long an issued token stays redeemable.
func (s *ResetStore) TTL() time.Duration {
	return s.ttl
}

// Issue stores a new token for the account and returns it.
func (s *ResetStore) Issue(ctx context.Context, accountID int) (string, error) {
	token := uuid.New().String()
	if err := s.rdb.Set(ctx, config.CacheKey.PasswordResetKey(token), accountID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	return token, nil
}

// Consume redeems a token exactly once and returns its account ID.
func (s *ResetStore) Consume(ctx context.Context, token string) (int, error) {
	id, err := s.rdb.GetDel(ctx, config.CacheKey.PasswordResetKey(token)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrInvalidResetToken
		}
		return 0, fmt.Errorf("consume reset token: %w", err)
	}
	return id, nil
}

// Enqueue pushes a notification onto the reset queue.
func (s *ResetStore) Enqueue(ctx context.Context, n model.PasswordResetNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.rdb.RPush(ctx, config.WorkerKey.PasswordResetQueue, payload).Err()
}
