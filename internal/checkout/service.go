package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/checkout/helpers"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/documents"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/numbering"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/stock"
	dbpkg "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox/payloads"
)

type clientResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, clientID *uuid.UUID) (*models.Client, error)
}

type numberAllocator interface {
	Allocate(ctx context.Context, tenantID uuid.UUID, docType enums.DocumentType) (*numbering.Allocation, error)
}

type documentIssuer interface {
	IssuePaidInvoice(ctx context.Context, input documents.IssuePaidInvoiceInput) (*models.Document, error)
	IssueCreditNote(ctx context.Context, input documents.IssueCreditNoteInput) (*models.Document, error)
	AttachPayment(ctx context.Context, input documents.AttachPaymentInput) (*models.Payment, error)
	RefundPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*models.Payment, error)
}

type stockLedger interface {
	Products(ctx context.Context, tenantID uuid.UUID, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error)
	CheckAvailability(ctx context.Context, tenantID uuid.UUID, demand map[uuid.UUID]decimal.Decimal) error
	RecordMovement(ctx context.Context, input stock.RecordMovementInput) (*models.StockMovement, error)
}

type pointsLedger interface {
	EarnForPurchase(ctx context.Context, input loyalty.EarnInput) (*models.PointsMovement, error)
}

type notifier interface {
	Notify(ctx context.Context, event outbox.DomainEvent)
}

// Service runs POS sales as a sequence of committed steps. A failure after
// the invoice exists is undone by compensating writes, never by rollback: the
// issued invoice stays in the ledger, its payment is refunded and a credit
// note cancels it, so callers see a compensated sale rather than a standing
// invoice.
type Service interface {
	Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	Get(ctx context.Context, tenantID, checkoutID uuid.UUID) (*models.CheckoutSession, error)
}

// ServiceParams wires the checkout saga to the ledgers it drives.
type ServiceParams struct {
	Sessions  Repository
	Clients   clientResolver
	Numbering numberAllocator
	Documents documentIssuer
	Stock     stockLedger
	Loyalty   pointsLedger
	Notifier  notifier
	Logger    *logger.Logger
	Metrics   *metrics.LedgerMetrics
}

type service struct {
	sessions  Repository
	clients   clientResolver
	numbering numberAllocator
	documents documentIssuer
	stock     stockLedger
	loyalty   pointsLedger
	notifier  notifier
	logg      *logger.Logger
	metrics   *metrics.LedgerMetrics
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Sessions == nil {
		return nil, fmt.Errorf("checkout session repository required")
	}
	if params.Clients == nil {
		return nil, fmt.Errorf("client resolver required")
	}
	if params.Numbering == nil {
		return nil, fmt.Errorf("number allocator required")
	}
	if params.Documents == nil {
		return nil, fmt.Errorf("document service required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if params.Loyalty == nil {
		return nil, fmt.Errorf("loyalty service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	return &service{
		sessions:  params.Sessions,
		clients:   params.Clients,
		numbering: params.Numbering,
		documents: params.Documents,
		stock:     params.Stock,
		loyalty:   params.Loyalty,
		notifier:  params.Notifier,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

func (s *service) Get(ctx context.Context, tenantID, checkoutID uuid.UUID) (*models.CheckoutSession, error) {
	session, err := s.sessions.FindByID(ctx, tenantID, checkoutID)
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "load checkout session")
	}
	return session, nil
}

func (s *service) Execute(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	if !input.Method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").
			WithDetails(map[string]any{"method": input.Method})
	}
	if err := helpers.ValidateCartLines(input.Lines); err != nil {
		return nil, err
	}

	run := &saga{}
	session := &models.CheckoutSession{
		TenantID:       input.TenantID,
		Status:         enums.CheckoutStatusPending,
		CompletedSteps: run.completedJSON(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "open checkout session")
	}

	result := &CheckoutResult{SessionID: session.ID}
	if step, err := s.run(ctx, input, session, run, result); err != nil {
		return nil, s.fail(ctx, session, run, step, err)
	}

	session.Status = enums.CheckoutStatusCompleted
	session.CompletedSteps = run.completedJSON()
	s.save(ctx, session)
	s.metrics.IncCheckout(string(session.Status))
	result.Status = session.Status

	if s.logg != nil {
		logCtx := s.logg.WithTenantID(ctx, input.TenantID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"checkout_id":    session.ID.String(),
			"invoice_number": result.Invoice.Number,
			"total":          result.Invoice.Total.String(),
			"walk_in":        result.Client.IsWalkIn,
		})
		s.logg.Info(logCtx, "checkout completed")
	}
	return result, nil
}

// run executes the steps in order and reports the step that failed.
func (s *service) run(ctx context.Context, input CheckoutInput, session *models.CheckoutSession, run *saga, result *CheckoutResult) (enums.CheckoutStep, error) {
	client, err := s.clients.Resolve(ctx, input.TenantID, input.ClientID)
	if err != nil {
		return enums.CheckoutStepResolveClient, err
	}
	result.Client = client
	session.ClientID = &client.ID
	run.done(enums.CheckoutStepResolveClient)

	demand, productIDs := helpers.DemandByProduct(input.Lines)
	products, err := s.stock.Products(ctx, input.TenantID, productIDs)
	if err != nil {
		return enums.CheckoutStepPrice, err
	}
	lines := make([]documents.LineInput, 0, len(input.Lines))
	for _, line := range input.Lines {
		product := products[line.ProductID]
		productID := product.ID
		lines = append(lines, documents.LineInput{
			ProductID:       &productID,
			Label:           product.Name,
			Quantity:        line.Quantity,
			UnitPrice:       product.UnitPrice,
			TaxRate:         product.TaxRate,
			DiscountPercent: line.DiscountPercent,
		})
	}
	if _, _, _, err := documents.PriceLines(lines, input.GlobalDiscountPercent); err != nil {
		return enums.CheckoutStepPrice, err
	}
	run.done(enums.CheckoutStepPrice)

	if err := s.stock.CheckAvailability(ctx, input.TenantID, demand); err != nil {
		return enums.CheckoutStepStockCheck, err
	}
	run.done(enums.CheckoutStepStockCheck)

	allocation, err := s.numbering.Allocate(ctx, input.TenantID, enums.DocumentTypeInvoice)
	if err != nil {
		return enums.CheckoutStepAllocate, err
	}
	run.done(enums.CheckoutStepAllocate)

	invoice, err := s.documents.IssuePaidInvoice(ctx, documents.IssuePaidInvoiceInput{
		TenantID:              input.TenantID,
		ClientID:              client.ID,
		Lines:                 lines,
		GlobalDiscountPercent: input.GlobalDiscountPercent,
		Allocation:            allocation,
	})
	if err != nil {
		return enums.CheckoutStepInvoice, err
	}
	result.Invoice = invoice
	session.InvoiceID = &invoice.ID
	run.done(enums.CheckoutStepInvoice)
	run.onFailure("credit note", func(ctx context.Context) error {
		note, err := s.documents.IssueCreditNote(ctx, documents.IssueCreditNoteInput{
			TenantID:  input.TenantID,
			InvoiceID: invoice.ID,
		})
		if err != nil {
			return err
		}
		session.CreditNoteID = &note.ID
		return nil
	})

	if invoice.Total.IsPositive() {
		payment, err := s.documents.AttachPayment(ctx, documents.AttachPaymentInput{
			TenantID:   input.TenantID,
			DocumentID: invoice.ID,
			Amount:     invoice.Total,
			Method:     input.Method,
		})
		if err != nil {
			return enums.CheckoutStepPayment, err
		}
		result.Payment = payment
		session.PaymentID = &payment.ID
		run.onFailure("payment refund", func(ctx context.Context) error {
			_, err := s.documents.RefundPayment(ctx, input.TenantID, payment.ID)
			return err
		})
	}
	run.done(enums.CheckoutStepPayment)

	for _, productID := range productIDs {
		if !products[productID].StockTracked {
			continue
		}
		quantity := demand[productID]
		movement, err := s.stock.RecordMovement(ctx, stock.RecordMovementInput{
			TenantID:    input.TenantID,
			ProductID:   productID,
			Type:        enums.StockMovementOut,
			Quantity:    quantity,
			Reason:      "Vente " + invoice.Number,
			ReferenceID: &invoice.ID,
		})
		if err != nil {
			return enums.CheckoutStepStock, err
		}
		result.Movements = append(result.Movements, *movement)
		run.onFailure("stock return", func(ctx context.Context) error {
			_, err := s.stock.RecordMovement(ctx, stock.RecordMovementInput{
				TenantID:    input.TenantID,
				ProductID:   productID,
				Type:        enums.StockMovementIn,
				Quantity:    quantity,
				Reason:      "Annulation " + invoice.Number,
				ReferenceID: &invoice.ID,
			})
			return err
		})
	}
	run.done(enums.CheckoutStepStock)

	if !client.IsWalkIn {
		points, err := s.loyalty.EarnForPurchase(ctx, loyalty.EarnInput{
			TenantID:   input.TenantID,
			ClientID:   client.ID,
			Amount:     invoice.Total,
			DocumentID: &invoice.ID,
			Reason:     "Achat " + invoice.Number,
		})
		if err != nil {
			return enums.CheckoutStepLoyalty, err
		}
		result.Points = points
	}
	run.done(enums.CheckoutStepLoyalty)
	return "", nil
}

// fail records why a checkout stopped. Failures before the invoice commits are
// rejections with nothing to undo; later ones run the compensations.
func (s *service) fail(ctx context.Context, session *models.CheckoutSession, run *saga, step enums.CheckoutStep, cause error) error {
	reason := cause.Error()
	session.FailedStep = &step
	session.FailureReason = &reason

	logCtx := ctx
	if s.logg != nil {
		logCtx = s.logg.WithTenantID(ctx, session.TenantID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"checkout_id": session.ID.String(),
			"failed_step": step,
		})
	}

	if !run.hasReversals() {
		session.Status = enums.CheckoutStatusRejected
		session.CompletedSteps = run.completedJSON()
		s.save(ctx, session)
		s.metrics.IncCheckout(string(session.Status))
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "reason", reason), "checkout rejected")
		}
		return cause
	}

	compErr := run.compensate(ctx)
	session.Status = enums.CheckoutStatusCompensated
	if compErr != nil {
		session.Status = enums.CheckoutStatusCompensationFailed
	}
	session.CompletedSteps = run.completedJSON()
	s.save(ctx, session)
	s.metrics.IncCheckout(string(session.Status))

	s.notifier.Notify(ctx, outbox.DomainEvent{
		TenantID:      session.TenantID,
		EventType:     enums.EventCheckoutCompensated,
		AggregateType: enums.AggregateCheckout,
		AggregateID:   session.ID,
		Data: payloads.CheckoutCompensatedEvent{
			CheckoutID:   session.ID,
			TenantID:     session.TenantID,
			InvoiceID:    session.InvoiceID,
			CreditNoteID: session.CreditNoteID,
			FailedStep:   step,
			Reason:       reason,
			Complete:     compErr == nil,
		},
	})

	if compErr == nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(logCtx, "reason", reason), "checkout compensated")
		}
		return cause
	}

	failures := multierr.Errors(compErr)
	messages := make([]string, 0, len(failures))
	for _, f := range failures {
		messages = append(messages, f.Error())
	}
	if s.logg != nil {
		s.logg.Error(s.logg.WithField(logCtx, "compensation_errors", messages), "checkout compensation incomplete", compErr)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, multierr.Combine(cause, compErr), "checkout failed and could not be fully reversed").
		WithDetails(map[string]any{
			"checkout_id":         session.ID,
			"failed_step":         step,
			"reason":              reason,
			"compensation_errors": messages,
		})
}

// save persists the saga log. The ledger writes already committed, so a
// failure here is logged and not returned.
func (s *service) save(ctx context.Context, session *models.CheckoutSession) {
	if err := s.sessions.Save(context.WithoutCancel(ctx), session); err != nil && s.logg != nil {
		logCtx := s.logg.WithTenantID(ctx, session.TenantID.String())
		s.logg.Error(s.logg.WithField(logCtx, "checkout_id", session.ID.String()), "persist checkout session", err)
	}
}
