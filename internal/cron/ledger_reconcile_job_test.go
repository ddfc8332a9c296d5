package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/stock"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

type fakeStockReconciler struct {
	reports []stock.ReconcileReport
	err     error
	repairs []bool
}

func (f *fakeStockReconciler) ReconcileTenant(_ context.Context, _ uuid.UUID, repair bool) ([]stock.ReconcileReport, error) {
	f.repairs = append(f.repairs, repair)
	return f.reports, f.err
}

type fakePointsReconciler struct {
	reports []loyalty.ReconcileReport
	err     error
	repairs []bool
}

func (f *fakePointsReconciler) ReconcileTenant(_ context.Context, _ uuid.UUID, repair bool) ([]loyalty.ReconcileReport, error) {
	f.repairs = append(f.repairs, repair)
	return f.reports, f.err
}

func newLedgerReconcileJob(t *testing.T, tenants tenantLister, s stockReconciler, p pointsReconciler) Job {
	t.Helper()
	job, err := NewLedgerReconcileJob(LedgerReconcileJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "test"}),
		Tenants: tenants,
		Stock:   s,
		Loyalty: p,
	})
	if err != nil {
		t.Fatalf("NewLedgerReconcileJob: %v", err)
	}
	return job
}

func TestLedgerReconcileJobAuditsWithoutRepair(t *testing.T) {
	stockSide := &fakeStockReconciler{reports: []stock.ReconcileReport{{Drift: true}, {}}}
	pointsSide := &fakePointsReconciler{reports: []loyalty.ReconcileReport{{}}}
	job := newLedgerReconcileJob(t, staticTenants{ids: []uuid.UUID{uuid.New(), uuid.New()}}, stockSide, pointsSide)

	if job.Name() != "ledger-reconcile" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(stockSide.repairs) != 2 || len(pointsSide.repairs) != 2 {
		t.Fatalf("expected both ledgers audited per tenant, got %d/%d", len(stockSide.repairs), len(pointsSide.repairs))
	}
	for _, repair := range append(stockSide.repairs, pointsSide.repairs...) {
		if repair {
			t.Fatal("audit must not repair")
		}
	}
}

func TestLedgerReconcileJobAggregatesErrors(t *testing.T) {
	stockSide := &fakeStockReconciler{err: errors.New("stock down")}
	pointsSide := &fakePointsReconciler{err: errors.New("points down")}
	job := newLedgerReconcileJob(t, staticTenants{ids: []uuid.UUID{uuid.New()}}, stockSide, pointsSide)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(pointsSide.repairs) != 1 {
		t.Fatal("a stock failure must not skip the points audit")
	}
}

func TestLedgerReconcileJobFailsWithoutTenants(t *testing.T) {
	job := newLedgerReconcileJob(t, staticTenants{err: errors.New("db down")}, &fakeStockReconciler{}, &fakePointsReconciler{})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
