package documents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/money"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox/payloads"
)

func validatePayment(amount decimal.Decimal, method enums.PaymentMethod) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive").
			WithDetails(map[string]any{"amount": amount.String()})
	}
	if !amount.Equal(money.Round(amount)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment amount has more than two decimals").
			WithDetails(map[string]any{"amount": amount.String()})
	}
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method").
			WithDetails(map[string]any{"method": method})
	}
	return nil
}

// RecordPayment books money against an open invoice and moves it to PAID once
// nothing remains due.
func (s *service) RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error) {
	if err := validatePayment(input.Amount, input.Method); err != nil {
		return nil, err
	}
	receivedAt := input.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	var (
		payment   *models.Payment
		remaining decimal.Decimal
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		doc, err := repo.FindForUpdate(ctx, input.TenantID, input.DocumentID)
		if err != nil {
			return err
		}
		if doc.Type != enums.DocumentTypeInvoice {
			return pkgerrors.New(pkgerrors.CodeValidation, "payments can only be recorded on invoices").
				WithDetails(map[string]any{"document_id": doc.ID, "type": doc.Type})
		}
		if doc.Status != enums.DocumentStatusDraft && doc.Status != enums.DocumentStatusSent {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "invoice is not open for payment").
				WithDetails(map[string]any{"document_id": doc.ID, "status": doc.Status})
		}
		if input.Amount.GreaterThan(doc.RemainingDue) {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment exceeds the amount due").
				WithDetails(map[string]any{
					"document_id":   doc.ID,
					"amount":        input.Amount.StringFixed(2),
					"remaining_due": doc.RemainingDue.StringFixed(2),
				})
		}

		payment = &models.Payment{
			TenantID:   input.TenantID,
			DocumentID: doc.ID,
			Amount:     input.Amount,
			Method:     input.Method,
			Status:     enums.PaymentStatusReceived,
			ReceivedAt: receivedAt.UTC(),
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		remaining = doc.RemainingDue.Sub(input.Amount)
		status := doc.Status
		if remaining.IsZero() {
			status = enums.DocumentStatusPaid
		}
		return repo.UpdateStatus(ctx, doc.ID, status, remaining)
	})
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "record payment")
	}

	s.logPayment(ctx, payment, "payment recorded")
	s.notifyPayment(ctx, payment, remaining)
	return payment, nil
}

// AttachPayment books the payment of an invoice that was issued as PAID. The
// invoice amounts are left untouched.
func (s *service) AttachPayment(ctx context.Context, input AttachPaymentInput) (*models.Payment, error) {
	if err := validatePayment(input.Amount, input.Method); err != nil {
		return nil, err
	}

	var payment *models.Payment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		doc, err := repo.FindForUpdate(ctx, input.TenantID, input.DocumentID)
		if err != nil {
			return err
		}
		if doc.Type != enums.DocumentTypeInvoice || doc.Status != enums.DocumentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment can only be attached to a paid invoice").
				WithDetails(map[string]any{"document_id": doc.ID, "type": doc.Type, "status": doc.Status})
		}
		if input.Amount.GreaterThan(doc.Total) {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment exceeds the invoice total").
				WithDetails(map[string]any{"amount": input.Amount.StringFixed(2), "total": doc.Total.StringFixed(2)})
		}
		payment = &models.Payment{
			TenantID:   input.TenantID,
			DocumentID: doc.ID,
			Amount:     input.Amount,
			Method:     input.Method,
			Status:     enums.PaymentStatusReceived,
			ReceivedAt: time.Now().UTC(),
		}
		return repo.CreatePayment(ctx, payment)
	})
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "attach payment")
	}

	s.logPayment(ctx, payment, "payment attached")
	s.notifyPayment(ctx, payment, decimal.Zero)
	return payment, nil
}

// RefundPayment writes the negative row reversing paymentID and flags the
// original as refunded. A payment is refunded at most once.
func (s *service) RefundPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*models.Payment, error) {
	var refund *models.Payment
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		original, err := repo.FindPaymentForUpdate(ctx, tenantID, paymentID)
		if err != nil {
			return err
		}
		if original.Status != enums.PaymentStatusReceived {
			return pkgerrors.New(pkgerrors.CodeConflict, "payment already refunded").
				WithDetails(map[string]any{"payment_id": original.ID, "status": original.Status})
		}
		reverses := original.ID
		refund = &models.Payment{
			TenantID:          tenantID,
			DocumentID:        original.DocumentID,
			Amount:            original.Amount.Neg(),
			Method:            original.Method,
			Status:            enums.PaymentStatusRefund,
			ReversesPaymentID: &reverses,
			ReceivedAt:        time.Now().UTC(),
		}
		if err := repo.CreatePayment(ctx, refund); err != nil {
			return err
		}
		return repo.MarkPaymentRefunded(ctx, original.ID)
	})
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "refund payment")
	}

	s.logPayment(ctx, refund, "payment refunded")
	return refund, nil
}

func (s *service) logPayment(ctx context.Context, payment *models.Payment, msg string) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithTenantID(ctx, payment.TenantID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"payment_id":  payment.ID.String(),
		"document_id": payment.DocumentID.String(),
		"amount":      payment.Amount.StringFixed(2),
		"method":      payment.Method,
	})
	s.logg.Info(logCtx, msg)
}

func (s *service) notifyPayment(ctx context.Context, payment *models.Payment, remaining decimal.Decimal) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, outbox.DomainEvent{
		TenantID:      payment.TenantID,
		EventType:     enums.EventPaymentReceived,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentReceivedEvent{
			PaymentID:    payment.ID,
			DocumentID:   payment.DocumentID,
			TenantID:     payment.TenantID,
			Amount:       payment.Amount,
			Method:       payment.Method,
			RemainingDue: remaining,
			ReceivedAt:   payment.ReceivedAt,
		},
	})
}
