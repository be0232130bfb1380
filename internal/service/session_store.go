package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/model"
)

// Claims extends JWT standard claims with the session's account.
type Claims struct {
	jwt.RegisteredClaims
	AccountID int            `json:"account_id"`
	Role      model.RoleTier `json:"role"`
}

// SessionStore issues HS256 session tokens and tracks live sessions in Redis
// so that sign-out revokes a token before it expires.
type SessionStore struct {
	rdb     *redis.Client
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(rdb *redis.Client, secret string, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, secret: []byte(secret), ttl: ttl, nowFunc: time.Now}
}

// Issue creates a session for the account and registers it in Redis.
func (s *SessionStore) Issue(ctx context.Context, account *model.Account) (*model.Session, error) {
	jti := uuid.New().String()
	now := s.nowFunc()
	expiresAt := now.Add(s.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   strconv.Itoa(account.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		AccountID: account.ID,
		Role:      account.Role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.SessionKey(jti), account.ID, s.ttl)
	pipe.SAdd(ctx, config.CacheKey.AccountSessionsKey(account.ID), jti)
	pipe.Expire(ctx, config.CacheKey.AccountSessionsKey(account.ID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	return &model.Session{
		ID:        jti,
		Token:     signed,
		AccountID: account.ID,
		Role:      account.Role,
		ExpiresAt: expiresAt,
		Valid:     true,
	}, nil
}

// parse validates the signature and expiry of a token.
func (s *SessionStore) parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.nowFunc))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// Lookup returns the live session behind a token. Malformed, expired, and
// revoked tokens yield (nil, nil); only storage failures are errors.
func (s *SessionStore) Lookup(ctx context.Context, tokenStr string) (*model.Session, error) {
	if tokenStr == "" {
		return nil, nil
	}
	claims, err := s.parse(tokenStr)
	if err != nil {
		return nil, nil
	}

	stored, err := s.rdb.Get(ctx, config.CacheKey.SessionKey(claims.ID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("check session: %w", err)
	}
	if stored != claims.AccountID {
		return nil, nil
	}

	return &model.Session{
		ID:        claims.ID,
		Token:     tokenStr,
		AccountID: claims.AccountID,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAt.Time,
		Valid:     true,
	}, nil
}

// Revoke removes the session behind a token. Unknown tokens are ignored.
func (s *SessionStore) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return nil
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, config.CacheKey.SessionKey(claims.ID))
	pipe.SRem(ctx, config.CacheKey.AccountSessionsKey(claims.AccountID), claims.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// RevokeAll removes every live session of an account.
func (s *SessionStore) RevokeAll(ctx context.Context, accountID int) error {
	setKey := config.CacheKey.AccountSessionsKey(accountID)
	ids, err := s.rdb.SMembers(ctx, setKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("list sessions: %w", err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, config.CacheKey.SessionKey(id))
	}
	keys = append(keys, setKey)
	return s.rdb.Del(ctx, keys...).Err()
}
