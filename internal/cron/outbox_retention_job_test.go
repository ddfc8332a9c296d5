package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

type fakeEventPruner struct {
	cutoff   time.Time
	attempts int
	err      error
}

func (f *fakeEventPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error) {
	f.cutoff = cutoff
	f.attempts = minAttemptCount
	return 7, f.err
}

type fakeDeadLetterPruner struct {
	cutoffs []time.Time
}

func (f *fakeDeadLetterPruner) DeleteBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.cutoffs = append(f.cutoffs, cutoff)
	return 2, nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newOutboxRetentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test"})
	params.DB = passthroughTx{}
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionJobUsesSeparateCutoffs(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	events := &fakeEventPruner{}
	letters := &fakeDeadLetterPruner{}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Events: events, DeadLetters: letters})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, now.Add(-defaultEventRetention), events.cutoff)
	assert.Equal(t, defaultOutboxAttempts, events.attempts)
	require.Len(t, letters.cutoffs, 1)
	assert.Equal(t, now.Add(-defaultDeadLetterRetention), letters.cutoffs[0])
}

func TestOutboxRetentionJobHonoursConfiguredWindow(t *testing.T) {
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	events := &fakeEventPruner{}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{Events: events, Retention: 72 * time.Hour, MaxAttempts: 3})
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, time.Date(2026, 2, 7, 12, 0, 0, 0, time.UTC), events.cutoff)
	assert.Equal(t, 3, events.attempts)
}

func TestOutboxRetentionJobStopsOnEventFailure(t *testing.T) {
	letters := &fakeDeadLetterPruner{}
	job := newOutboxRetentionJob(t, OutboxRetentionJobParams{
		Events:      &fakeEventPruner{err: errors.New("boom")},
		DeadLetters: letters,
	})

	require.Error(t, job.Run(context.Background()))
	assert.Empty(t, letters.cutoffs)
}

func TestNewOutboxRetentionJobRejectsShortDeadLetterWindow(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:              logger.New(logger.Options{ServiceName: "test"}),
		DB:                  passthroughTx{},
		Events:              &fakeEventPruner{},
		Retention:           48 * time.Hour,
		DeadLetterRetention: 24 * time.Hour,
	})
	require.Error(t, err)
}
