package clients

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
)

// Repository handles client persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to client operations.
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

// Create persists a new client row.
func (r *Repository) Create(ctx context.Context, client *models.Client) error {
	return r.db.WithContext(ctx).Create(client).Error
}

// FindByID loads a tenant's client.
func (r *Repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&client).Error; err != nil {
		return nil, mapFindError(err, id)
	}
	return &client, nil
}

// FindForUpdate loads the client row under FOR UPDATE so the cached points
// balance cannot change until the caller's transaction ends.
func (r *Repository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&client).Error; err != nil {
		return nil, mapFindError(err, id)
	}
	return &client, nil
}

// FindWalkIn returns the tenant's walk-in client, or gorm.ErrRecordNotFound.
func (r *Repository) FindWalkIn(ctx context.Context, tenantID uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_walk_in = ?", tenantID, true).
		Order("created_at ASC").
		Take(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// UpdatePointsBalance stores the cached balance justified by a ledger row
// written in the same transaction.
func (r *Repository) UpdatePointsBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Client{}).
		Where("id = ?", id).
		Update("points_balance", balance).Error
}

// ListIDs returns every client of the tenant.
func (r *Repository) ListIDs(ctx context.Context, tenantID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Client{}).
		Where("tenant_id = ?", tenantID).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func mapFindError(err error, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "client not found").
			WithDetails(map[string]any{"client_id": id})
	}
	return err
}
