package numbering

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
)

// Repository persists number sequences.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to sequence operations.
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

// Seed inserts the sequence row unless another caller already created it.
func (r *Repository) Seed(ctx context.Context, seq *models.NumberSequence) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(seq).Error
}

// LockSequence reads the sequence row with FOR UPDATE so concurrent
// allocators for the same key queue behind the holder.
func (r *Repository) LockSequence(ctx context.Context, tenantID uuid.UUID, docType enums.DocumentType) (*models.NumberSequence, error) {
	var seq models.NumberSequence
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND document_type = ?", tenantID, docType).
		Take(&seq).Error; err != nil {
		return nil, err
	}
	return &seq, nil
}

// Advance moves next_value one step past current. The guard on the current
// value turns a lost update into zero affected rows instead of a reused number.
func (r *Repository) Advance(ctx context.Context, tenantID uuid.UUID, docType enums.DocumentType, current int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.NumberSequence{}).
		Where("tenant_id = ? AND document_type = ? AND next_value = ?", tenantID, docType, current).
		Updates(map[string]any{
			"next_value": gorm.Expr("next_value + 1"),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
