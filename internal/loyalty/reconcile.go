package loyalty

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
)

// Replay sums a client's deltas from zero and checks that every row's
// balance_after follows from the previous one.
func Replay(client models.Client, history []models.PointsMovement) ReconcileReport {
	report := ReconcileReport{
		ClientID:  client.ID,
		Movements: len(history),
		Cached:    client.PointsBalance,
	}
	var previous int64
	for _, m := range history {
		if m.BalanceAfter != previous+m.Delta {
			report.ChainBroken = true
		}
		report.Replayed += m.Delta
		previous = m.BalanceAfter
	}
	if len(history) > 0 {
		latest := history[len(history)-1].BalanceAfter
		report.LatestAfter = &latest
	}
	report.Drift = report.ChainBroken ||
		report.Replayed != report.Cached ||
		(report.LatestAfter != nil && *report.LatestAfter != report.Cached)
	return report
}

func (s *service) Reconcile(ctx context.Context, tenantID, clientID uuid.UUID, repair bool) (*ReconcileReport, error) {
	var report ReconcileReport
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		clientRepo := s.clients.WithTx(tx)
		client, err := clientRepo.FindForUpdate(ctx, tenantID, clientID)
		if err != nil {
			return err
		}
		history, err := s.repo.WithTx(tx).History(ctx, tenantID, clientID)
		if err != nil {
			return err
		}
		report = Replay(*client, history)
		if repair && report.Replayed != report.Cached {
			if err := clientRepo.UpdatePointsBalance(ctx, clientID, report.Replayed); err != nil {
				return err
			}
			report.Repaired = true
		}
		return nil
	})
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "reconcile points")
	}

	if report.Drift {
		s.metrics.IncDrift(driftLedger)
		if s.logg != nil {
			logCtx := s.logg.WithTenantID(ctx, tenantID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"client_id":    clientID.String(),
				"cached":       report.Cached,
				"replayed":     report.Replayed,
				"chain_broken": report.ChainBroken,
				"repaired":     report.Repaired,
			})
			s.logg.Warn(logCtx, "points ledger drift detected")
		}
	}
	return &report, nil
}

func (s *service) ReconcileTenant(ctx context.Context, tenantID uuid.UUID, repair bool) ([]ReconcileReport, error) {
	ids, err := s.clients.ListIDs(ctx, tenantID)
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "list clients")
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
