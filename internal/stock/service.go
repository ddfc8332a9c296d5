package stock

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/pagination"
)

// quantityScale matches the numeric(14,3) quantity columns.
const quantityScale int32 = 3

// Service maintains the append-only stock ledger and the cached product stock.
type Service interface {
	RecordMovement(ctx context.Context, input RecordMovementInput) (*models.StockMovement, error)
	// ListMovements lazily walks a product's movements page by page. Ranging
	// over the sequence again restarts from filter.Cursor.
	ListMovements(ctx context.Context, tenantID, productID uuid.UUID, filter MovementFilter) iter.Seq2[models.StockMovement, error]
	ListMovementsPage(ctx context.Context, tenantID, productID uuid.UUID, filter MovementFilter) (*MovementPage, error)
	Products(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Availability(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]Level, error)
	// CheckAvailability reports every tracked product whose stock cannot
	// cover the requested quantity. Nothing is written.
	CheckAvailability(ctx context.Context, tenantID uuid.UUID, demand map[uuid.UUID]decimal.Decimal) error
	Reconcile(ctx context.Context, tenantID, productID uuid.UUID, repair bool) (*ReconcileReport, error)
	ReconcileTenant(ctx context.Context, tenantID uuid.UUID, repair bool) ([]ReconcileReport, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the stock service.
type ServiceParams struct {
	Repo    *Repository
	DB      txRunner
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
}

type service struct {
	repo    *Repository
	db      txRunner
	logg    *logger.Logger
	metrics *metrics.LedgerMetrics
}

// NewService builds the stock ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    params.Repo,
		db:      params.DB,
		logg:    params.Logger,
		metrics: params.Metrics,
	}, nil
}

// SignedDelta converts a movement request into the delta applied to stock.
func SignedDelta(movementType enums.StockMovementType, quantity decimal.Decimal) (decimal.Decimal, error) {
	if !quantity.Equal(quantity.Truncate(quantityScale)) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity has more than three decimals").
			WithDetails(map[string]any{"quantity": quantity.String()})
	}
	switch movementType {
	case enums.StockMovementIn, enums.StockMovementOut:
		if !quantity.IsPositive() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
				WithDetails(map[string]any{"type": movementType, "quantity": quantity.String()})
		}
		if movementType == enums.StockMovementOut {
			return quantity.Neg(), nil
		}
		return quantity, nil
	case enums.StockMovementAdjust:
		if quantity.IsZero() {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "adjustment cannot be zero")
		}
		return quantity, nil
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown stock movement type").
			WithDetails(map[string]any{"type": movementType})
	}
}

func (s *service) RecordMovement(ctx context.Context, input RecordMovementInput) (*models.StockMovement, error) {
	if input.TenantID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and product are required")
	}
	delta, err := SignedDelta(input.Type, input.Quantity)
	if err != nil {
		return nil, err
	}

	var movement *models.StockMovement
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.FindProductForUpdate(ctx, input.TenantID, input.ProductID)
		if err != nil {
			return err
		}
		before := product.CurrentStock
		after := before.Add(delta)
		if product.StockTracked && after.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
				WithDetails(map[string]any{
					"product_id": product.ID,
					"available":  before.String(),
					"requested":  delta.Abs().String(),
				})
		}

		movement = &models.StockMovement{
			TenantID:      input.TenantID,
			ProductID:     product.ID,
			Type:          input.Type,
			QuantityDelta: delta,
			StockBefore:   before,
			StockAfter:    after,
			Reason:        strings.TrimSpace(input.Reason),
			ReferenceID:   input.ReferenceID,
			CreatedAt:     time.Now().UTC(),
		}
		if err := repo.CreateMovement(ctx, movement); err != nil {
			return err
		}
		return repo.UpdateCurrentStock(ctx, product.ID, after)
	})
	if err != nil {
		s.metrics.IncStockMovement(string(input.Type), metrics.OutcomeRejected)
		if s.logg != nil && pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock) {
			logCtx := s.logg.WithTenantID(ctx, input.TenantID.String())
			logCtx = s.logg.WithFields(logCtx, map[string]any{
				"product_id": input.ProductID.String(),
				"type":       input.Type,
				"quantity":   input.Quantity.String(),
			})
			s.logg.Warn(logCtx, "stock movement rejected")
		}
		return nil, dbpkg.ClassifyWriteError(err, "record stock movement")
	}

	s.metrics.IncStockMovement(string(input.Type), metrics.OutcomeRecorded)
	if s.logg != nil {
		logCtx := s.logg.WithTenantID(ctx, input.TenantID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"product_id":  movement.ProductID.String(),
			"movement_id": movement.ID.String(),
			"type":        movement.Type,
			"delta":       movement.QuantityDelta.String(),
			"stock_after": movement.StockAfter.String(),
		})
		s.logg.Info(logCtx, "stock movement recorded")
	}
	return movement, nil
}

// MovementCursor returns the cursor resuming a listing right after m.
func MovementCursor(m models.StockMovement, order pagination.Order) string {
	return pagination.EncodeCursor(pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID, Order: order})
}

func movementPosition(m models.StockMovement) (time.Time, uuid.UUID) {
	return m.CreatedAt, m.ID
}

func (s *service) buildQuery(tenantID, productID uuid.UUID, filter MovementFilter) (movementQuery, error) {
	order := filter.Order
	if order == "" {
		order = pagination.NewestFirst
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return movementQuery{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil && cursor.Order != order {
		return movementQuery{}, pkgerrors.New(pkgerrors.CodeValidation, "cursor was issued for a different order").
			WithDetails(map[string]any{"cursor_order": cursor.Order, "order": order})
	}
	for _, t := range filter.Types {
		if !t.IsValid() {
			return movementQuery{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown stock movement type").
				WithDetails(map[string]any{"type": t})
		}
	}
	if filter.Since != nil && filter.Until != nil && !filter.Since.Before(*filter.Until) {
		return movementQuery{}, pkgerrors.New(pkgerrors.CodeValidation, "since must be before until")
	}
	return movementQuery{
		TenantID:  tenantID,
		ProductID: productID,
		Types:     filter.Types,
		Since:     filter.Since,
		Until:     filter.Until,
		Order:     order,
		After:     cursor,
		Limit:     pagination.NormalizeLimit(filter.PageSize),
	}, nil
}

func (s *service) ListMovements(ctx context.Context, tenantID, productID uuid.UUID, filter MovementFilter) iter.Seq2[models.StockMovement, error] {
	return func(yield func(models.StockMovement, error) bool) {
		q, err := s.buildQuery(tenantID, productID, filter)
		if err != nil {
			yield(models.StockMovement{}, err)
			return
		}
		for {
			rows, err := s.repo.listMovements(ctx, q)
			if err != nil {
				yield(models.StockMovement{}, dbpkg.ClassifyWriteError(err, "list stock movements"))
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
			q.After = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID, Order: q.Order}
		}
	}
}

func (s *service) ListMovementsPage(ctx context.Context, tenantID, productID uuid.UUID, filter MovementFilter) (*MovementPage, error) {
	q, err := s.buildQuery(tenantID, productID, filter)
	if err != nil {
		return nil, err
	}
	pageSize := q.Limit
	q.Limit = pagination.LimitWithBuffer(pageSize)

	rows, err := s.repo.listMovements(ctx, q)
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "list stock movements")
	}
	page := &MovementPage{}
	page.Items, page.NextCursor = pagination.Trim(rows, pageSize, q.Order, movementPosition)
	return page, nil
}

func (s *service) Products(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	products, err := s.repo.FindProducts(ctx, tenantID, productIDs)
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "load products")
	}
	out := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	var missing []uuid.UUID
	for _, id := range productIDs {
		if _, ok := out[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_ids": missing})
	}
	return out, nil
}

func (s *service) Availability(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]Level, error) {
	products, err := s.Products(ctx, tenantID, productIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]Level, len(products))
	for id, p := range products {
		out[id] = Level{ProductID: id, Tracked: p.StockTracked, Available: p.CurrentStock}
	}
	return out, nil
}

func (s *service) CheckAvailability(ctx context.Context, tenantID uuid.UUID, demand map[uuid.UUID]decimal.Decimal) error {
	ids := make([]uuid.UUID, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	levels, err := s.Availability(ctx, tenantID, ids)
	if err != nil {
		return err
	}

	var shortages []Shortage
	for _, id := range ids {
		level := levels[id]
		if !level.Tracked {
			continue
		}
		if level.Available.LessThan(demand[id]) {
			shortages = append(shortages, Shortage{ProductID: id, Available: level.Available, Requested: demand[id]})
		}
	}
	if len(shortages) > 0 {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{"shortages": shortages})
	}
	return nil
}
