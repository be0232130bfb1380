package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionKey returns the cache key holding the account ID of a live session.
func (r *CacheKeyStruct) SessionKey(jti string) string {
	return fmt.Sprintf("session:%s", jti)
}

// AccountSessionsKey returns the cache key of the set of live session IDs for an account.
func (r *CacheKeyStruct) AccountSessionsKey(accountID int) string {
	return fmt.Sprintf("account:%d:sessions", accountID)
}

// PasswordResetKey returns the cache key for a pending credential reset token.
func (r *CacheKeyStruct) PasswordResetKey(token string) string {
	return fmt.Sprintf("reset:%s", token)
}

// AttendanceEventsChannel returns the Redis PubSub channel for check-in/out events.
func (r *CacheKeyStruct) AttendanceEventsChannel() string {
	return "attendance:events"
}

var CacheKey = NewCacheKeyStruct()
