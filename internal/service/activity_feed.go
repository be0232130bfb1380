package service

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/model"
)

// ActivityFeed carries attendance events over Redis pub/sub so every server
// instance can push them to its WebSocket clients.
type ActivityFeed struct {
	rdb *redis.Client
	log zerolog.Logger
}

// NewActivityFeed creates a new ActivityFeed.
func NewActivityFeed(rdb *redis.Client, log zerolog.Logger) *ActivityFeed {
	return &ActivityFeed{rdb: rdb, log: log.With().Str("component", "activity_feed").Logger()}
}

// Publish broadcasts an event.
func (f *ActivityFeed) Publish(ctx context.Context, event model.ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, config.CacheKey.AttendanceEventsChannel(), payload).Err()
}

// Subscribe streams events until ctx is done. The returned channel is
// closed when the subscription ends.
func (f *ActivityFeed) Subscribe(ctx context.Context) (<-chan model.ActivityEvent, error) {
	sub := f.rdb.Subscribe(ctx, config.CacheKey.AttendanceEventsChannel())
	// Wait for the subscription to be confirmed so no event published
	// after Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, err
	}

	out := make(chan model.ActivityEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event model.ActivityEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.log.Warn().Err(err).Msg("Dropping malformed attendance event")
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
