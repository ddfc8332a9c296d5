package loyalty

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
)

const notExpired = `NOT EXISTS (SELECT 1 FROM points_movements e WHERE e.source_movement_id = points_movements.id AND e.type = 'EXPIRE')`

// Repository persists the points ledger.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to points operations.
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

// CreateMovement appends a ledger row.
func (r *Repository) CreateMovement(ctx context.Context, movement *models.PointsMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// FindMovement loads one ledger row of the tenant.
func (r *Repository) FindMovement(ctx context.Context, tenantID, id uuid.UUID) (*models.PointsMovement, error) {
	var movement models.PointsMovement
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&movement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "points movement not found").
			WithDetails(map[string]any{"movement_id": id})
	}
	if err != nil {
		return nil, err
	}
	return &movement, nil
}

// IsExpired reports whether an EXPIRE row already references sourceID.
func (r *Repository) IsExpired(ctx context.Context, sourceID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PointsMovement{}).
		Where("source_movement_id = ? AND type = ?", sourceID, enums.PointsMovementExpire).
		Count(&count).Error
	return count > 0, err
}

type expiringQuery struct {
	TenantID uuid.UUID
	ClientID uuid.UUID
	From     time.Time
	To       time.Time
	AfterAt  *time.Time
	AfterID  uuid.UUID
	Limit    int
}

// expiringPage returns EARN rows expiring in [From, To] with no EXPIRE row
// referencing them, ordered by (expires_at, id). A nil ClientID spans the
// whole tenant.
func (r *Repository) expiringPage(ctx context.Context, q expiringQuery) ([]models.PointsMovement, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND type = ?", q.TenantID, enums.PointsMovementEarn).
		Where("expires_at IS NOT NULL AND expires_at >= ? AND expires_at <= ?", q.From.UTC(), q.To.UTC()).
		Where(notExpired)
	if q.ClientID != uuid.Nil {
		query = query.Where("client_id = ?", q.ClientID)
	}
	if q.AfterAt != nil {
		at := q.AfterAt.UTC()
		query = query.Where("(expires_at > ? OR (expires_at = ? AND id > ?))", at, at, q.AfterID)
	}
	var rows []models.PointsMovement
	if err := query.
		Order("expires_at ASC").
		Order("id ASC").
		Limit(q.Limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UnexpiredCredit sums the client's credits still live at now: rows with a
// positive delta whose expiry is unset or later than now.
func (r *Repository) UnexpiredCredit(ctx context.Context, tenantID, clientID uuid.UUID, now time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.PointsMovement{}).
		Select("COALESCE(SUM(delta), 0)").
		Where("tenant_id = ? AND client_id = ? AND delta > 0", tenantID, clientID).
		Where("expires_at IS NULL OR expires_at > ?", now.UTC()).
		Scan(&total).Error
	return total, err
}

// History returns a client's movements in ledger order.
func (r *Repository) History(ctx context.Context, tenantID, clientID uuid.UUID) ([]models.PointsMovement, error) {
	var rows []models.PointsMovement
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND client_id = ?", tenantID, clientID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
