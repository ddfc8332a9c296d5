package documents

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
)

// Repository persists documents, their lines and their payments.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds a GORM DB to document operations.
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

// Create inserts the document together with its lines.
func (r *Repository) Create(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// FindByID loads a document with its lines in position order.
func (r *Repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&doc).Error
	if err != nil {
		return nil, mapNotFound(err, "document not found", map[string]any{"document_id": id})
	}
	return &doc, nil
}

// FindForUpdate locks the document row for the caller's transaction. Lines
// are loaded separately since they are never modified in place.
func (r *Repository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&doc).Error
	if err != nil {
		return nil, mapNotFound(err, "document not found", map[string]any{"document_id": id})
	}
	lines, err := r.Lines(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	return &doc, nil
}

// Lines returns a document's rows in position order.
func (r *Repository) Lines(ctx context.Context, documentID uuid.UUID) ([]models.DocumentLine, error) {
	var lines []models.DocumentLine
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("position ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// FindByLinkedQuote returns the invoice converted from quoteID, if any.
func (r *Repository) FindByLinkedQuote(ctx context.Context, tenantID, quoteID uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND linked_quote_id = ?", tenantID, quoteID).
		Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByLinkedDocument returns the credit note issued against invoiceID, if any.
func (r *Repository) FindByLinkedDocument(ctx context.Context, tenantID, invoiceID uuid.UUID) (*models.Document, error) {
	var doc models.Document
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND linked_document_id = ? AND type = ?", tenantID, invoiceID, enums.DocumentTypeCreditNote).
		Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// UpdateStatus stores the new status and remaining amount.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.DocumentStatus, remainingDue decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Document{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"remaining_due": remainingDue,
		}).Error
}

// CreatePayment inserts a payment or refund row.
func (r *Repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// FindPaymentForUpdate locks a payment row.
func (r *Repository) FindPaymentForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Take(&payment).Error
	if err != nil {
		return nil, mapNotFound(err, "payment not found", map[string]any{"payment_id": id})
	}
	return &payment, nil
}

// MarkPaymentRefunded flags the original payment once its refund row exists.
func (r *Repository) MarkPaymentRefunded(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Update("status", enums.PaymentStatusRefunded).Error
}

// Payments lists a document's payment rows, oldest first.
func (r *Repository) Payments(ctx context.Context, tenantID, documentID uuid.UUID) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		Order("created_at ASC").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func mapNotFound(err error, message string, details map[string]any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, message).WithDetails(details)
	}
	return err
}
