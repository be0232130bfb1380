package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/libris-backend/internal/config"
	"github.com/stemsi/libris-backend/internal/model"
)

const ResetPollTimeout = 1 * time.Second

// Notifier delivers a credential reset link to its recipient.
type Notifier interface {
	Notify(ctx context.Context, n model.PasswordResetNotification) error
}

// LogNotifier writes reset links to the log instead of sending mail.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "log_notifier").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, p model.PasswordResetNotification) error {
	n.log.Info().
		Int("account_id", p.AccountID).
		Str("email", p.Email).
		Str("link", p.Link).
		Time("expires_at", p.ExpiresAt).
		Msg("Password reset link")
	return nil
}

// ResetNotificationWorker drains the reset queue and hands each
// notification to a Notifier.
type ResetNotificationWorker struct {
	rdb      *redis.Client
	notifier Notifier
	log      zerolog.Logger
}

func NewResetNotificationWorker(rdb *redis.Client, notifier Notifier, log zerolog.Logger) *ResetNotificationWorker {
	return &ResetNotificationWorker{
		rdb:      rdb,
		notifier: notifier,
		log:      log.With().Str("component", "reset_notification_worker").Logger(),
	}
}

// Start blocks until ctx is done.
func (w *ResetNotificationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResetNotificationWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("ResetNotificationWorker stopped")
			return
		default:
		}

		item, err := w.rdb.BLPop(ctx, ResetPollTimeout, config.WorkerKey.PasswordResetQueue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("BLPop error")
				time.Sleep(ResetPollTimeout)
			}
			continue
		}
		if len(item) < 2 {
			continue
		}

		w.process(ctx, item[1])
	}
}

func (w *ResetNotificationWorker) process(ctx context.Context, payload string) {
	var n model.PasswordResetNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		w.log.Error().Err(err).Msg("Invalid JSON payload")
		return
	}
	if time.Now().After(n.ExpiresAt) {
		w.log.Warn().Int("account_id", n.AccountID).Msg("Dropping expired reset notification")
		return
	}
	if err := w.notifier.Notify(ctx, n); err != nil {
		w.log.Error().Err(err).Int("account_id", n.AccountID).Msg("Reset notification delivery failed")
	}
}
