package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

const defaultDLQPageSize = 50

// ErrDeadLetterNotFound is returned by Requeue for an unknown event id.
var ErrDeadLetterNotFound = errors.New("dead letter not found")

// DLQRepository stores events the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errTxRequired
	}
	if entry.ErrorMessage != nil {
		msg := truncateError(*entry.ErrorMessage)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// List returns the newest dead letters first. A nil tenant lists every tenant.
func (r *DLQRepository) List(ctx context.Context, tenantID *uuid.UUID, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQPageSize
	}
	query := r.db.WithContext(ctx).Order("failed_at DESC").Order("id DESC").Limit(limit)
	if tenantID != nil {
		query = query.Where("tenant_id = ?", *tenantID)
	}
	var rows []models.OutboxDLQ
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return rows, nil
}

// Reason returns why eventID was dead-lettered.
func (r *DLQRepository) Reason(ctx context.Context, eventID uuid.UUID) (enums.OutboxDLQErrorReason, error) {
	var row models.OutboxDLQ
	err := r.db.WithContext(ctx).Select("error_reason").Where("event_id = ?", eventID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrDeadLetterNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read dead letter: %w", err)
	}
	return row.ErrorReason, nil
}

// Requeue drops the dead letter for eventID and makes the outbox row eligible
// for publishing again with a fresh attempt budget.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{})
		if res.Error != nil {
			return fmt.Errorf("delete dead letter: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrDeadLetterNotFound
		}
		res = tx.Model(&models.OutboxEvent{}).
			Where("id = ?", eventID).
			Updates(map[string]any{
				"published_at":  nil,
				"attempt_count": 0,
				"last_error":    nil,
			})
		if res.Error != nil {
			return fmt.Errorf("reset outbox row: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// the row was already pruned by retention
			return fmt.Errorf("outbox row %s no longer exists", eventID)
		}
		return nil
	})
}

// DeleteBefore prunes dead letters that failed before cutoff.
func (r *DLQRepository) DeleteBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		return 0, errTxRequired
	}
	res := tx.WithContext(ctx).Where("failed_at < ?", cutoff.UTC()).Delete(&models.OutboxDLQ{})
	return res.RowsAffected, res.Error
}
