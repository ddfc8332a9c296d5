package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
)

const driftLedger = "stock"

// Replay recomputes a product's stock from its initial level and movement
// history, and checks that each row starts where the previous one ended.
func Replay(product models.Product, history []models.StockMovement) ReconcileReport {
	report := ReconcileReport{
		ProductID: product.ID,
		Movements: len(history),
		Cached:    product.CurrentStock,
		Replayed:  product.InitialStock,
	}
	for i, m := range history {
		expectedBefore := product.InitialStock
		if i > 0 {
			expectedBefore = history[i-1].StockAfter
		}
		if !m.StockBefore.Equal(expectedBefore) || !m.StockAfter.Equal(m.StockBefore.Add(m.QuantityDelta)) {
			report.ChainBroken = true
		}
		report.Replayed = report.Replayed.Add(m.QuantityDelta)
	}
	if len(history) > 0 {
		latest := history[len(history)-1].StockAfter
		report.LatestAfter = &latest
	}
	report.Drift = report.ChainBroken ||
		!report.Replayed.Equal(report.Cached) ||
		(report.LatestAfter != nil && !report.LatestAfter.Equal(report.Cached))
	return report
}

func (s *service) Reconcile(ctx context.Context, tenantID, productID uuid.UUID, repair bool) (*ReconcileReport, error) {
	var report ReconcileReport
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProductForUpdate(ctx, tenantID, productID)
		if err != nil {
			return err
		}
		history, err := repo.History(ctx, tenantID, productID)
		if err != nil {
			return err
		}
		report = Replay(*product, history)
		if repair && !report.Replayed.Equal(report.Cached) {
			if err := repo.UpdateCurrentStock(ctx, productID, report.Replayed); err != nil {
				return err
			}
			report.Repaired = true
		}
		return nil
	})
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "reconcile stock")
	}

	if report.Drift {
		s.metrics.IncDrift(driftLedger)
		if s.logg != nil {
			logCtx := s.logg.WithTenantID(ctx, tenantID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"product_id":   productID.String(),
				"cached":       report.Cached.String(),
				"replayed":     report.Replayed.String(),
				"chain_broken": report.ChainBroken,
				"repaired":     report.Repaired,
			})
			s.logg.Warn(logCtx, "stock ledger drift detected")
		}
	}
	return &report, nil
}

func (s *service) ReconcileTenant(ctx context.Context, tenantID uuid.UUID, repair bool) ([]ReconcileReport, error) {
	ids, err := s.repo.ListProductIDs(ctx, tenantID)
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "list products")
	}
	reports := make([]ReconcileReport, 0, len(ids))
	for _, id := range ids {
		report, err := s.Reconcile(ctx, tenantID, id, repair)
		if err != nil {
			return reports, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}
