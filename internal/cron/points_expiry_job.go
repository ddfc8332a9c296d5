package cron

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox/payloads"
)

const defaultReminderWindowDays = 30

// PointsExpiryJobParams configure the loyalty expiry scheduler.
type PointsExpiryJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Tenants    tenantLister
	Loyalty    pointsExpirer
	Outbox     outboxEmitter
	WindowDays int
	ExpireDue  bool
}

type pointsExpirer interface {
	ExpiringSoonForTenant(ctx context.Context, tenantID uuid.UUID, windowDays int) iter.Seq2[models.PointsMovement, error]
	ExpireDue(ctx context.Context, tenantID uuid.UUID, now time.Time) (*loyalty.ExpireSummary, error)
}

// NewPointsExpiryJob builds the job that reminds clients of lapsing points and
// then writes EXPIRE rows for the ones already past due.
func NewPointsExpiryJob(params PointsExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant lister required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	window := params.WindowDays
	if window <= 0 {
		window = defaultReminderWindowDays
	}
	return &pointsExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		tenants:   params.Tenants,
		loyalty:   params.Loyalty,
		outbox:    params.Outbox,
		window:    window,
		expireDue: params.ExpireDue,
		now:       time.Now,
	}, nil
}

type pointsExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	tenants   tenantLister
	loyalty   pointsExpirer
	outbox    outboxEmitter
	window    int
	expireDue bool
	now       func() time.Time
}

func (j *pointsExpiryJob) Name() string { return "points-expiry" }

func (j *pointsExpiryJob) Run(ctx context.Context) error {
	tenantIDs, err := j.tenants.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	var errs error
	for _, tenantID := range tenantIDs {
		tenantCtx := j.logg.WithTenantID(ctx, tenantID.String())
		if err := j.remind(tenantCtx, tenantID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s reminders: %w", tenantID, err))
		}
		if !j.expireDue {
			continue
		}
		summary, err := j.loyalty.ExpireDue(tenantCtx, tenantID, j.now().UTC())
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s expiry: %w", tenantID, err))
			continue
		}
		logCtx := j.logg.WithFields(tenantCtx, map[string]any{
			"expired": summary.Expired,
			"points":  summary.Points,
			"skipped": summary.Skipped,
		})
		j.logg.Info(logCtx, "points expiry pass complete")
	}
	return errs
}

func (j *pointsExpiryJob) remind(ctx context.Context, tenantID uuid.UUID) error {
	sent := 0
	for movement, err := range j.loyalty.ExpiringSoonForTenant(ctx, tenantID, j.window) {
		if err != nil {
			return fmt.Errorf("query expiring points: %w", err)
		}
		created, err := j.emitReminder(ctx, movement)
		if err != nil {
			return err
		}
		if created {
			sent++
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"sent": sent, "window_days": j.window})
	j.logg.Info(logCtx, "points expiry reminders queued")
	return nil
}

func (j *pointsExpiryJob) emitReminder(ctx context.Context, movement models.PointsMovement) (bool, error) {
	if movement.ExpiresAt == nil {
		return false, nil
	}
	var created bool
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		created, err = j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			TenantID:      movement.TenantID,
			EventType:     enums.EventPointsExpiringSoon,
			AggregateType: enums.AggregatePointsMovement,
			AggregateID:   movement.ID,
			Version:       1,
			OccurredAt:    j.now().UTC(),
			Data: payloads.PointsExpiringSoonEvent{
				MovementID: movement.ID,
				ClientID:   movement.ClientID,
				TenantID:   movement.TenantID,
				Points:     movement.Points,
				ExpiresAt:  movement.ExpiresAt.UTC(),
			},
		})
		return err
	})
	if err != nil {
		return false, fmt.Errorf("emit expiry reminder: %w", err)
	}
	return created, nil
}
