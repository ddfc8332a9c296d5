package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/stock"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

// LedgerReconcileJobParams configure the nightly ledger audit.
type LedgerReconcileJobParams struct {
	Logger  *logger.Logger
	Tenants tenantLister
	Stock   stockReconciler
	Loyalty pointsReconciler
}

type stockReconciler interface {
	ReconcileTenant(ctx context.Context, tenantID uuid.UUID, repair bool) ([]stock.ReconcileReport, error)
}

type pointsReconciler interface {
	ReconcileTenant(ctx context.Context, tenantID uuid.UUID, repair bool) ([]loyalty.ReconcileReport, error)
}

// NewLedgerReconcileJob builds the audit that replays both ledgers against
// their cached balances. It reports drift and never repairs.
func NewLedgerReconcileJob(params LedgerReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant lister required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock reconciler required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("points reconciler required")
	}
	return &ledgerReconcileJob{
		logg:    params.Logger,
		tenants: params.Tenants,
		stock:   params.Stock,
		loyalty: params.Loyalty,
	}, nil
}

type ledgerReconcileJob struct {
	logg    *logger.Logger
	tenants tenantLister
	stock   stockReconciler
	loyalty pointsReconciler
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	tenantIDs, err := j.tenants.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}
	var errs error
	for _, tenantID := range tenantIDs {
		tenantCtx := j.logg.WithTenantID(ctx, tenantID.String())

		stockReports, err := j.stock.ReconcileTenant(tenantCtx, tenantID, false)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s stock: %w", tenantID, err))
		}
		stockDrift := 0
		for _, report := range stockReports {
			if report.Drift {
				stockDrift++
			}
		}

		pointsReports, err := j.loyalty.ReconcileTenant(tenantCtx, tenantID, false)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s points: %w", tenantID, err))
		}
		pointsDrift := 0
		for _, report := range pointsReports {
			if report.Drift {
				pointsDrift++
			}
		}

		logCtx := j.logg.WithFields(tenantCtx, map[string]any{
			"products":     len(stockReports),
			"stock_drift":  stockDrift,
			"clients":      len(pointsReports),
			"points_drift": pointsDrift,
		})
		if stockDrift > 0 || pointsDrift > 0 {
			j.logg.Warn(logCtx, "ledger drift found")
			continue
		}
		j.logg.Info(logCtx, "ledgers consistent")
	}
	return errs
}
