package outbox_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/testutil"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox/payloads"
)

type fixture struct {
	db      *db.Client
	repo    *outbox.Repository
	dlq     *outbox.DLQRepository
	service *outbox.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := testutil.NewSQLiteClient(t)
	repo := outbox.NewRepository(client.DB())
	return fixture{
		db:      client,
		repo:    repo,
		dlq:     outbox.NewDLQRepository(client.DB()),
		service: outbox.NewService(repo, logger.New(logger.Options{Output: io.Discard})),
	}
}

func documentCreated(tenantID uuid.UUID) outbox.DomainEvent {
	docID := uuid.New()
	return outbox.DomainEvent{
		TenantID:      tenantID,
		EventType:     enums.EventDocumentCreated,
		AggregateType: enums.AggregateDocument,
		AggregateID:   docID,
		Data: payloads.DocumentCreatedEvent{
			DocumentID: docID,
			TenantID:   tenantID,
			Number:     "FAC-00001",
		},
	}
}

func (f fixture) rows(t *testing.T) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.DB().Order("created_at ASC").Find(&rows).Error)
	return rows
}

func TestEmitWritesDecodableEnvelope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID := uuid.New()

	require.NoError(t, f.db.WithTx(ctx, func(tx *gorm.DB) error {
		return f.service.Emit(ctx, tx, documentCreated(tenantID))
	}))

	rows := f.rows(t)
	require.Len(t, rows, 1)
	env, err := outbox.DecodeEnvelope(rows[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, enums.EventDocumentCreated, env.EventType)
	assert.Equal(t, tenantID, env.TenantID)
	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.OccurredAt.IsZero())
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.Contains(t, string(env.Data), "FAC-00001")
	assert.True(t, rows[0].Pending())
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	missingTenant := documentCreated(uuid.Nil)
	unknownType := documentCreated(uuid.New())
	unknownType.EventType = "stock_counted"
	missingAggregate := documentCreated(uuid.New())
	missingAggregate.AggregateID = uuid.Nil

	for name, event := range map[string]outbox.DomainEvent{
		"missing tenant":    missingTenant,
		"unknown type":      unknownType,
		"missing aggregate": missingAggregate,
	} {
		err := f.db.WithTx(ctx, func(tx *gorm.DB) error {
			return f.service.Emit(ctx, tx, event)
		})
		assert.Error(t, err, name)
	}
	assert.Error(t, f.service.Emit(ctx, nil, documentCreated(uuid.New())))
	assert.Empty(t, f.rows(t))
}

func TestEmitIfNotExistsWritesOncePerAggregate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := documentCreated(uuid.New())

	var created []bool
	for range 2 {
		require.NoError(t, f.db.WithTx(ctx, func(tx *gorm.DB) error {
			ok, err := f.service.EmitIfNotExists(ctx, tx, event)
			created = append(created, ok)
			return err
		}))
	}
	assert.Equal(t, []bool{true, false}, created)
	assert.Len(t, f.rows(t), 1)
}

func TestNotifierSwallowsInvalidEvents(t *testing.T) {
	f := newFixture(t)
	notifier := outbox.NewNotifier(f.db, f.service, logger.New(logger.Options{Output: io.Discard}))

	notifier.Notify(context.Background(), documentCreated(uuid.Nil))
	notifier.Notify(context.Background(), documentCreated(uuid.New()))

	assert.Len(t, f.rows(t), 1)
}

func TestDeadLettersListAndRequeue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, otherTenant := uuid.New(), uuid.New()

	require.NoError(t, f.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := f.service.Emit(ctx, tx, documentCreated(tenantID)); err != nil {
			return err
		}
		return f.service.Emit(ctx, tx, documentCreated(otherTenant))
	}))
	rows := f.rows(t)
	require.Len(t, rows, 2)

	msg := "topic not found"
	require.NoError(t, f.db.WithTx(ctx, func(tx *gorm.DB) error {
		for _, row := range rows {
			if err := f.dlq.InsertTx(tx, models.OutboxDLQ{
				EventID:       row.ID,
				TenantID:      row.TenantID,
				EventType:     row.EventType,
				AggregateType: row.AggregateType,
				AggregateID:   row.AggregateID,
				Payload:       row.Payload,
				ErrorReason:   enums.OutboxDLQReasonNoRoute,
				ErrorMessage:  &msg,
				AttemptCount:  1,
			}); err != nil {
				return err
			}
			if err := f.repo.MarkTerminalTx(tx, row.ID, 1, assert.AnError); err != nil {
				return err
			}
		}
		return nil
	}))

	scoped, err := f.dlq.List(ctx, &tenantID, 0)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, tenantID, scoped[0].TenantID)

	all, err := f.dlq.List(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	reason, err := f.dlq.Reason(ctx, scoped[0].EventID)
	require.NoError(t, err)
	assert.Equal(t, enums.OutboxDLQReasonNoRoute, reason)

	require.NoError(t, f.dlq.Requeue(ctx, scoped[0].EventID))
	var requeued models.OutboxEvent
	require.NoError(t, f.db.DB().First(&requeued, "id = ?", scoped[0].EventID).Error)
	assert.True(t, requeued.Pending())
	assert.Zero(t, requeued.AttemptCount)
	assert.Nil(t, requeued.LastError)

	assert.ErrorIs(t, f.dlq.Requeue(ctx, scoped[0].EventID), outbox.ErrDeadLetterNotFound)
	_, err = f.dlq.Reason(ctx, scoped[0].EventID)
	assert.ErrorIs(t, err, outbox.ErrDeadLetterNotFound)
}
