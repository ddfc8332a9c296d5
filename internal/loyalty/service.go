package loyalty

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/clients"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/tenants"
	dbpkg "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
)

const (
	pageSize    = 100
	driftLedger = "points"
)

// Service maintains the append-only points ledger and cached client balances.
type Service interface {
	ApplyMovement(ctx context.Context, input ApplyMovementInput) (*models.PointsMovement, error)
	// EarnForPurchase credits the points a purchase amount is worth under the
	// tenant's rate. It returns nil when the amount earns nothing.
	EarnForPurchase(ctx context.Context, input EarnInput) (*models.PointsMovement, error)
	// ExpiringSoon yields the client's EARN rows expiring within windowDays
	// that have no EXPIRE row yet. Points are reported gross: nothing already
	// spent is netted out.
	ExpiringSoon(ctx context.Context, tenantID, clientID uuid.UUID, windowDays int) iter.Seq2[models.PointsMovement, error]
	ExpiringSoonForTenant(ctx context.Context, tenantID uuid.UUID, windowDays int) iter.Seq2[models.PointsMovement, error]
	ExpireDue(ctx context.Context, tenantID uuid.UUID, now time.Time) (*ExpireSummary, error)
	Reconcile(ctx context.Context, tenantID, clientID uuid.UUID, repair bool) (*ReconcileReport, error)
	ReconcileTenant(ctx context.Context, tenantID uuid.UUID, repair bool) ([]ReconcileReport, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the loyalty service.
type ServiceParams struct {
	Repo    *Repository
	Clients *clients.Repository
	Tenants *tenants.Repository
	DB      txRunner
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
	Clock   func() time.Time
}

type service struct {
	repo    *Repository
	clients *clients.Repository
	tenants *tenants.Repository
	db      txRunner
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
	now     func() time.Time
}

// NewService builds the loyalty ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if params.Clients == nil {
		return nil, fmt.Errorf("client repository required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:    params.Repo,
		clients: params.Clients,
		tenants: params.Tenants,
		db:      params.DB,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     clock,
	}, nil
}

// SignedDelta returns the balance change a movement applies.
func SignedDelta(input ApplyMovementInput) (int64, error) {
	if input.TenantID == uuid.Nil || input.ClientID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "tenant and client are required")
	}
	if !input.Type.IsValid() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "unknown points movement type").
			WithDetails(map[string]any{"type": input.Type})
	}
	if input.Points <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "points must be positive").
			WithDetails(map[string]any{"points": input.Points})
	}
	if input.Debit && input.Type != enums.PointsMovementAdjust {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "only adjustments carry a direction")
	}
	if input.ExpiresAt != nil && input.Type != enums.PointsMovementEarn {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "only earned points expire")
	}
	if input.SourceMovementID != nil && input.Type != enums.PointsMovementExpire {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "only expirations reference an earlier movement")
	}
	if input.Type.Debits() || input.Debit {
		return -input.Points, nil
	}
	return input.Points, nil
}

func (s *service) ApplyMovement(ctx context.Context, input ApplyMovementInput) (*models.PointsMovement, error) {
	delta, err := SignedDelta(input)
	if err != nil {
		return nil, err
	}
	var movement *models.PointsMovement
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		movement, txErr = s.applyTx(ctx, tx, input, delta)
		return txErr
	})
	return s.finish(ctx, input, movement, err)
}

func (s *service) applyTx(ctx context.Context, tx *gorm.DB, input ApplyMovementInput, delta int64) (*models.PointsMovement, error) {
	repo := s.repo.WithTx(tx)
	client, err := s.clients.WithTx(tx).FindForUpdate(ctx, input.TenantID, input.ClientID)
	if err != nil {
		return nil, err
	}

	if input.SourceMovementID != nil {
		source, err := repo.FindMovement(ctx, input.TenantID, *input.SourceMovementID)
		if err != nil {
			return nil, err
		}
		if source.Type != enums.PointsMovementEarn || source.ClientID != client.ID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "expiration must reference an EARN movement of the same client").
				WithDetails(map[string]any{"source_movement_id": source.ID})
		}
		if input.Points > source.Points {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot expire more points than were earned").
				WithDetails(map[string]any{"source_movement_id": source.ID, "earned": source.Points, "points": input.Points})
		}
		expired, err := repo.IsExpired(ctx, source.ID)
		if err != nil {
			return nil, err
		}
		if expired {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "points already expired").
				WithDetails(map[string]any{"source_movement_id": source.ID})
		}
	}

	balance := client.PointsBalance + delta
	if balance < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNegativeBalance, "points balance cannot go negative").
			WithDetails(map[string]any{
				"client_id": client.ID,
				"balance":   client.PointsBalance,
				"requested": input.Points,
			})
	}

	movement := &models.PointsMovement{
		TenantID:         input.TenantID,
		ClientID:         client.ID,
		Type:             input.Type,
		Points:           input.Points,
		Delta:            delta,
		BalanceAfter:     balance,
		SourceMovementID: input.SourceMovementID,
		DocumentID:       input.DocumentID,
		Reason:           strings.TrimSpace(input.Reason),
		CreatedAt:        s.now().UTC(),
	}
	if input.ExpiresAt != nil {
		expiresAt := input.ExpiresAt.UTC()
		movement.ExpiresAt = &expiresAt
	}
	if err := repo.CreateMovement(ctx, movement); err != nil {
		return nil, err
	}
	if err := s.clients.WithTx(tx).UpdatePointsBalance(ctx, client.ID, balance); err != nil {
		return nil, err
	}
	return movement, nil
}

func (s *service) finish(ctx context.Context, input ApplyMovementInput, movement *models.PointsMovement, err error) (*models.PointsMovement, error) {
	if err != nil {
		s.metrics.IncPointsMovement(string(input.Type), metrics.OutcomeRejected)
		if s.logg != nil && pkgerrors.IsCode(err, pkgerrors.CodeNegativeBalance) {
			logCtx := s.logg.WithTenantID(ctx, input.TenantID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"client_id": input.ClientID.String(),
				"type":      input.Type,
				"points":    input.Points,
			})
			s.logg.Warn(logCtx, "points movement rejected")
		}
		return nil, dbpkg.ClassifyWriteError(err, "apply points movement")
	}

	s.metrics.IncPointsMovement(string(input.Type), metrics.OutcomeRecorded)
	if s.logg != nil {
		logCtx := s.logg.WithTenantID(ctx, input.TenantID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"client_id":     movement.ClientID.String(),
			"movement_id":   movement.ID.String(),
			"type":          movement.Type,
			"delta":         movement.Delta,
			"balance_after": movement.BalanceAfter,
		})
		s.logg.Info(logCtx, "points movement recorded")
	}
	return movement, nil
}

func (s *service) EarnForPurchase(ctx context.Context, input EarnInput) (*models.PointsMovement, error) {
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase amount cannot be negative")
	}
	tenant, err := s.tenants.FindByID(ctx, input.TenantID)
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "load tenant")
	}
	points := input.Amount.Mul(tenant.LoyaltyPointsPerUnit).Floor().IntPart()
	if points <= 0 {
		return nil, nil
	}

	apply := ApplyMovementInput{
		TenantID:   input.TenantID,
		ClientID:   input.ClientID,
		Type:       enums.PointsMovementEarn,
		Points:     points,
		DocumentID: input.DocumentID,
		Reason:     input.Reason,
	}
	if tenant.LoyaltyExpiryDays > 0 {
		expiresAt := s.now().AddDate(0, 0, tenant.LoyaltyExpiryDays)
		apply.ExpiresAt = &expiresAt
	}
	return s.ApplyMovement(ctx, apply)
}

func (s *service) ExpiringSoon(ctx context.Context, tenantID, clientID uuid.UUID, windowDays int) iter.Seq2[models.PointsMovement, error] {
	if clientID == uuid.Nil {
		return failed(pkgerrors.New(pkgerrors.CodeValidation, "client id is required"))
	}
	return s.expiring(ctx, tenantID, clientID, windowDays)
}

func (s *service) ExpiringSoonForTenant(ctx context.Context, tenantID uuid.UUID, windowDays int) iter.Seq2[models.PointsMovement, error] {
	return s.expiring(ctx, tenantID, uuid.Nil, windowDays)
}

func (s *service) expiring(ctx context.Context, tenantID, clientID uuid.UUID, windowDays int) iter.Seq2[models.PointsMovement, error] {
	if windowDays <= 0 {
		return failed(pkgerrors.New(pkgerrors.CodeValidation, "window must be at least one day").
			WithDetails(map[string]any{"window_days": windowDays}))
	}
	return func(yield func(models.PointsMovement, error) bool) {
		now := s.now()
		q := expiringQuery{
			TenantID: tenantID,
			ClientID: clientID,
			From:     now,
			To:       now.AddDate(0, 0, windowDays),
			Limit:    pageSize,
		}
		for {
			rows, err := s.repo.expiringPage(ctx, q)
			if err != nil {
				yield(models.PointsMovement{}, dbpkg.ClassifyWriteError(err, "list expiring points"))
				return
			}
			for _, row := range rows {
				if !yield(row, nil) {
					return
				}
			}
			if len(rows) < q.Limit {
				return
			}
			last := rows[len(rows)-1]
			q.AfterAt, q.AfterID = last.ExpiresAt, last.ID
		}
	}
}

func failed(err error) iter.Seq2[models.PointsMovement, error] {
	return func(yield func(models.PointsMovement, error) bool) {
		yield(models.PointsMovement{}, err)
	}
}

// ExpireDue writes an EXPIRE row for every EARN row past its expiry. The
// expired amount is clamped to what the balance holds beyond the client's
// still-live credits, so spending an old grant never costs a newer one; a
// client with nothing expirable left is skipped.
func (s *service) ExpireDue(ctx context.Context, tenantID uuid.UUID, now time.Time) (*ExpireSummary, error) {
	summary := &ExpireSummary{}
	q := expiringQuery{TenantID: tenantID, To: now, Limit: pageSize}
	var errs error
	for {
		rows, err := s.repo.expiringPage(ctx, q)
		if err != nil {
			return summary, dbpkg.ClassifyWriteError(err, "list due points")
		}
		for _, row := range rows {
			movement, err := s.expireOne(ctx, row, now)
			switch {
			case err != nil:
				errs = multierr.Append(errs, fmt.Errorf("expire %s: %w", row.ID, err))
			case movement == nil:
				summary.Skipped++
			default:
				summary.Expired++
				summary.Points += movement.Points
			}
		}
		if len(rows) < q.Limit {
			break
		}
		last := rows[len(rows)-1]
		q.AfterAt, q.AfterID = last.ExpiresAt, last.ID
	}

	if s.logg != nil {
		logCtx := s.logg.WithTenantID(ctx, tenantID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"expired": summary.Expired,
			"points":  summary.Points,
			"skipped": summary.Skipped,
		})
		s.logg.Info(logCtx, "due points expired")
	}
	if errs != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeInternal, errs, "some points could not be expired").
			WithDetails(map[string]any{"failures": len(multierr.Errors(errs))})
	}
	return summary, nil
}

func (s *service) expireOne(ctx context.Context, earn models.PointsMovement, now time.Time) (*models.PointsMovement, error) {
	sourceID := earn.ID
	input := ApplyMovementInput{
		TenantID:         earn.TenantID,
		ClientID:         earn.ClientID,
		Type:             enums.PointsMovementExpire,
		SourceMovementID: &sourceID,
		Reason:           "expiration",
	}
	var movement *models.PointsMovement
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		client, err := s.clients.WithTx(tx).FindForUpdate(ctx, earn.TenantID, earn.ClientID)
		if err != nil {
			return err
		}
		live, err := s.repo.WithTx(tx).UnexpiredCredit(ctx, earn.TenantID, earn.ClientID, now)
		if err != nil {
			return err
		}
		input.Points = min(earn.Points, client.PointsBalance-live)
		if input.Points <= 0 {
			return nil
		}
		movement, err = s.applyTx(ctx, tx, input, -input.Points)
		return err
	})
	if err != nil || movement == nil {
		if err != nil {
			err = dbpkg.ClassifyWriteError(err, "expire points")
		}
		return nil, err
	}
	return s.finish(ctx, input, movement, nil)
}
