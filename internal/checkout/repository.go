package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
)

// Repository persists the checkout saga log. Sessions are written outside the
// step transactions so a rolled-back step never erases its own audit trail.
type Repository interface {
	Create(ctx context.Context, session *models.CheckoutSession) error
	Save(ctx context.Context, session *models.CheckoutSession) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.CheckoutSession, error)
}

// sagaColumns are the fields a checkout run moves forward. Identity and
// creation time are fixed at Create.
var sagaColumns = []string{
	"status", "client_id", "invoice_id", "payment_id", "credit_note_id",
	"completed_steps", "failed_step", "failure_reason", "updated_at",
}

var errSessionNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout session repository backed by db.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, session *models.CheckoutSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

// Save records the saga progress of an existing session.
func (r *repository) Save(ctx context.Context, session *models.CheckoutSession) error {
	res := r.db.WithContext(ctx).
		Model(session).
		Where("tenant_id = ?", session.TenantID).
		Select(sagaColumns).
		Updates(session)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errSessionNotFound
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&session).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, errSessionNotFound.Message()).
			WithDetails(map[string]any{"checkout_id": id})
	case err != nil:
		return nil, err
	}
	return &session, nil
}
