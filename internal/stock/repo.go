package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/pagination"
)

// Repository persists stock movements and the cached product stock.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to stock operations.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindProductForUpdate locks the product row so concurrent movements on the
// same product queue behind each other.
func (r *Repository) FindProductForUpdate(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		Take(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProducts loads the tenant's products among ids. Missing ids are simply
// absent from the result.
func (r *Repository) FindProducts(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ListProductIDs returns every product of the tenant.
func (r *Repository) ListProductIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateMovement appends a ledger row.
func (r *Repository) CreateMovement(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// UpdateCurrentStock stores the cached level justified by a ledger row written
// in the same transaction.
func (r *Repository) UpdateCurrentStock(ctx context.Context, productID uuid.UUID, level decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("current_stock", level).Error
}

type movementQuery struct {
	TenantID  uuid.UUID
	ProductID uuid.UUID
	Types     []enums.StockMovementType
	Since     *time.Time
	Until     *time.Time
	Order     pagination.Order
	After     *pagination.Cursor
	Limit     int
}

// listMovements returns one keyset page ordered by (created_at, id).
func (r *Repository) listMovements(ctx context.Context, q movementQuery) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", q.TenantID, q.ProductID)
	if len(q.Types) > 0 {
		types := make([]string, 0, len(q.Types))
		for _, t := range q.Types {
			types = append(types, string(t))
		}
		query = query.Where("type IN ?", types)
	}
	if q.Since != nil {
		query = query.Where("created_at >= ?", q.Since.UTC())
	}
	if q.Until != nil {
		query = query.Where("created_at < ?", q.Until.UTC())
	}

	var rows []models.StockMovement
	if err := query.
		Scopes(pagination.Keyset(q.Order, q.After)).
		Limit(q.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// History returns every movement of a product in ledger order.
func (r *Repository) History(ctx context.Context, tenantID, productID uuid.UUID) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_id = ?", tenantID, productID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
