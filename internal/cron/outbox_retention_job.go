package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

const (
	defaultEventRetention      = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
	defaultOutboxAttempts      = 10
)

// OutboxRetentionJobParams configure the outbox cleanup job. DeadLetters is
// optional; without it only outbox rows are pruned.
type OutboxRetentionJobParams struct {
	Logger              *logger.Logger
	DB                  txRunner
	Events              eventPruner
	DeadLetters         deadLetterPruner
	Retention           time.Duration
	DeadLetterRetention time.Duration
	MaxAttempts         int
}

type eventPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type deadLetterPruner interface {
	DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob builds the job that prunes delivered and abandoned
// ledger events. Dead letters are kept longer so operators can still requeue
// them after the source row is gone from the hot table.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Events == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:          params.Logger,
		db:            params.DB,
		events:        params.Events,
		deadLetters:   params.DeadLetters,
		eventTTL:      orDefault(params.Retention, defaultEventRetention),
		deadLetterTTL: orDefault(params.DeadLetterRetention, defaultDeadLetterRetention),
		attempts:      params.MaxAttempts,
		now:           time.Now,
	}
	if job.attempts <= 0 {
		job.attempts = defaultOutboxAttempts
	}
	if job.deadLetterTTL < job.eventTTL {
		return nil, fmt.Errorf("dead letter retention %s shorter than event retention %s", job.deadLetterTTL, job.eventTTL)
	}
	return job, nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

type outboxRetentionJob struct {
	logg          *logger.Logger
	db            txRunner
	events        eventPruner
	deadLetters   deadLetterPruner
	eventTTL      time.Duration
	deadLetterTTL time.Duration
	attempts      int
	now           func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	eventCutoff := now.Add(-j.eventTTL)
	letterCutoff := now.Add(-j.deadLetterTTL)

	var events, letters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if events, err = j.events.DeletePublishedBefore(ctx, tx, eventCutoff, j.attempts); err != nil {
			return fmt.Errorf("prune events: %w", err)
		}
		if j.deadLetters == nil {
			return nil
		}
		if letters, err = j.deadLetters.DeleteBefore(ctx, tx, letterCutoff); err != nil {
			return fmt.Errorf("prune dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"event_cutoff":         eventCutoff,
		"dead_letter_cutoff":   letterCutoff,
		"events_deleted":       events,
		"dead_letters_deleted": letters,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
