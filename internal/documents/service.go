package documents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/clients"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/numbering"
	dbpkg "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/money"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox/payloads"
)

const (
	linkedQuoteConstraint = "linked_quote"
	numberConstraint      = "idx_documents_number"
	sqliteNumberColumns   = "documents.number"
)

// Service drives the quote, invoice and credit note lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateDocumentInput) (*models.Document, error)
	Get(ctx context.Context, tenantID, documentID uuid.UUID) (*models.Document, error)
	Transition(ctx context.Context, input TransitionInput) (*models.Document, error)
	ConvertQuoteToInvoice(ctx context.Context, tenantID, quoteID uuid.UUID) (*models.Document, error)
	IssuePaidInvoice(ctx context.Context, input IssuePaidInvoiceInput) (*models.Document, error)
	IssueCreditNote(ctx context.Context, input IssueCreditNoteInput) (*models.Document, error)
	RecordPayment(ctx context.Context, input RecordPaymentInput) (*models.Payment, error)
	AttachPayment(ctx context.Context, input AttachPaymentInput) (*models.Payment, error)
	RefundPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*models.Payment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type notifier interface {
	Notify(ctx context.Context, event outbox.DomainEvent)
}

// ServiceParams wires the document service.
type ServiceParams struct {
	Repo      *Repository
	Clients   *clients.Repository
	Numbering numbering.Service
	DB        txRunner
	Notifier  notifier
	Logger    *logger.Logger
}

type service struct {
	repo      *Repository
	clients   *clients.Repository
	numbering numbering.Service
	db        txRunner
	notifier  notifier
	logg      *logger.Logger
}

// NewService builds the document lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("document repository required")
	}
	if params.Clients == nil {
		return nil, fmt.Errorf("client repository required")
	}
	if params.Numbering == nil {
		return nil, fmt.Errorf("numbering service required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:      params.Repo,
		clients:   params.Clients,
		numbering: params.Numbering,
		db:        params.DB,
		notifier:  params.Notifier,
		logg:      params.Logger,
	}, nil
}

// PriceLines validates the caller's rows and computes their amounts. Line
// amounts are rounded to two decimals and summed without a second rounding.
func PriceLines(lines []LineInput, globalDiscount decimal.Decimal) ([]models.DocumentLine, decimal.Decimal, decimal.Decimal, error) {
	inputs := make([]money.Line, 0, len(lines))
	for i, line := range lines {
		if strings.TrimSpace(line.Label) == "" {
			return nil, decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "line label is required").
				WithDetails(map[string]any{"line": i + 1})
		}
		inputs = append(inputs, money.Line{
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			TaxRate:         line.TaxRate,
			DiscountPercent: line.DiscountPercent,
		})
	}
	totals, err := money.PriceLines(inputs, globalDiscount)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid document lines").
			WithDetails(map[string]any{"reason": err.Error()})
	}

	out := make([]models.DocumentLine, 0, len(lines))
	for i, line := range lines {
		amounts := totals.Lines[i]
		out = append(out, models.DocumentLine{
			Position:        i + 1,
			ProductID:       line.ProductID,
			Label:           strings.TrimSpace(line.Label),
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			TaxRate:         line.TaxRate,
			DiscountPercent: line.DiscountPercent,
			LineHT:          amounts.HT,
			LineTVA:         amounts.TVA,
			LineTTC:         amounts.TTC,
		})
	}
	return out, totals.PreTax, totals.Tax, nil
}

func (s *service) Create(ctx context.Context, input CreateDocumentInput) (*models.Document, error) {
	if input.TenantID == uuid.Nil || input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and client are required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown document type").
			WithDetails(map[string]any{"type": input.Type})
	}
	lines, preTax, tax, err := PriceLines(input.Lines, input.GlobalDiscountPercent)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		TenantID:              input.TenantID,
		Type:                  input.Type,
		Status:                enums.DocumentStatusDraft,
		ClientID:              input.ClientID,
		GlobalDiscountPercent: input.GlobalDiscountPercent,
		PreTax:                preTax,
		Tax:                   tax,
		Total:                 preTax.Add(tax),
		RemainingDue:          preTax.Add(tax),
		Notes:                 input.Notes,
		Lines:                 lines,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.clients.WithTx(tx).FindByID(ctx, input.TenantID, input.ClientID); err != nil {
			return err
		}
		return s.insertNumbered(ctx, tx, doc, nil)
	})
	if err != nil {
		return nil, classifyDocumentError(err, "create document")
	}

	s.logDocument(ctx, doc, "document created")
	s.notifyCreated(ctx, doc, nil)
	return doc, nil
}

func (s *service) Get(ctx context.Context, tenantID, documentID uuid.UUID) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, tenantID, documentID)
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "load document")
	}
	return doc, nil
}

func (s *service) Transition(ctx context.Context, input TransitionInput) (*models.Document, error) {
	if !input.To.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown document status").
			WithDetails(map[string]any{"status": input.To})
	}

	var (
		doc  *models.Document
		from enums.DocumentStatus
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindForUpdate(ctx, input.TenantID, input.DocumentID)
		if err != nil {
			return err
		}
		from = current.Status
		if !enums.CanTransition(current.Type, current.Status, input.To) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "document status transition not allowed").
				WithDetails(map[string]any{
					"document_id": current.ID,
					"type":        current.Type,
					"from":        current.Status,
					"to":          input.To,
					"allowed":     enums.AllowedTransitions(current.Type, current.Status),
				})
		}
		if current.Type == enums.DocumentTypeQuote && input.To == enums.DocumentStatusCancelled {
			invoice, err := repo.FindByLinkedQuote(ctx, input.TenantID, current.ID)
			if err != nil {
				return err
			}
			if invoice != nil {
				return alreadyConverted(current.ID, invoice)
			}
		}

		remaining := current.RemainingDue
		if input.To == enums.DocumentStatusPaid {
			remaining = decimal.Zero
		}
		if err := repo.UpdateStatus(ctx, current.ID, input.To, remaining); err != nil {
			return err
		}
		current.Status = input.To
		current.RemainingDue = remaining
		doc = current
		return nil
	})
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "transition document")
	}

	if s.logg != nil {
		logCtx := s.logg.WithTenantID(ctx, doc.TenantID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"document_id": doc.ID.String(),
			"from":        from,
			"to":          doc.Status,
		})
		s.logg.Info(logCtx, "document transitioned")
	}
	return doc, nil
}

func (s *service) ConvertQuoteToInvoice(ctx context.Context, tenantID, quoteID uuid.UUID) (*models.Document, error) {
	var invoice *models.Document
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		quote, err := repo.FindForUpdate(ctx, tenantID, quoteID)
		if err != nil {
			return err
		}
		if quote.Type != enums.DocumentTypeQuote {
			return pkgerrors.New(pkgerrors.CodeValidation, "only quotes can be converted").
				WithDetails(map[string]any{"document_id": quote.ID, "type": quote.Type})
		}
		if quote.Status != enums.DocumentStatusAccepted {
			return pkgerrors.New(pkgerrors.CodeNotAccepted, "quote must be accepted before conversion").
				WithDetails(map[string]any{"document_id": quote.ID, "status": quote.Status})
		}
		existing, err := repo.FindByLinkedQuote(ctx, tenantID, quote.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return alreadyConverted(quote.ID, existing)
		}

		linked := quote.ID
		invoice = &models.Document{
			TenantID:              tenantID,
			Type:                  enums.DocumentTypeInvoice,
			Status:                enums.DocumentStatusDraft,
			ClientID:              quote.ClientID,
			GlobalDiscountPercent: quote.GlobalDiscountPercent,
			PreTax:                quote.PreTax,
			Tax:                   quote.Tax,
			Total:                 quote.Total,
			RemainingDue:          quote.Total,
			LinkedQuoteID:         &linked,
			Notes:                 quote.Notes,
			Lines:                 copyLines(quote.Lines),
		}
		return s.insertNumbered(ctx, tx, invoice, nil)
	})
	if dbpkg.IsUniqueViolation(err, linkedQuoteConstraint) {
		err = pkgerrors.Wrap(pkgerrors.CodeAlreadyConverted, err, "quote already converted").
			WithDetails(map[string]any{"quote_id": quoteID})
	}
	if err != nil {
		return nil, classifyDocumentError(err, "convert quote")
	}

	s.logDocument(ctx, invoice, "quote converted to invoice")
	s.notifyCreated(ctx, invoice, &quoteID)
	return invoice, nil
}

func (s *service) IssuePaidInvoice(ctx context.Context, input IssuePaidInvoiceInput) (*models.Document, error) {
	if input.TenantID == uuid.Nil || input.ClientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant and client are required")
	}
	if alloc := input.Allocation; alloc != nil {
		if alloc.TenantID != input.TenantID || alloc.DocumentType != enums.DocumentTypeInvoice {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocation does not belong to this invoice").
				WithDetails(map[string]any{"number": alloc.Number, "document_type": alloc.DocumentType})
		}
	}
	lines, preTax, tax, err := PriceLines(input.Lines, input.GlobalDiscountPercent)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		TenantID:              input.TenantID,
		Type:                  enums.DocumentTypeInvoice,
		Status:                enums.DocumentStatusPaid,
		ClientID:              input.ClientID,
		GlobalDiscountPercent: input.GlobalDiscountPercent,
		PreTax:                preTax,
		Tax:                   tax,
		Total:                 preTax.Add(tax),
		RemainingDue:          decimal.Zero,
		Notes:                 input.Notes,
		Lines:                 lines,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.clients.WithTx(tx).FindByID(ctx, input.TenantID, input.ClientID); err != nil {
			return err
		}
		return s.insertNumbered(ctx, tx, doc, input.Allocation)
	})
	if err != nil {
		return nil, classifyDocumentError(err, "issue paid invoice")
	}

	s.logDocument(ctx, doc, "paid invoice issued")
	s.notifyCreated(ctx, doc, nil)
	return doc, nil
}

func (s *service) IssueCreditNote(ctx context.Context, input IssueCreditNoteInput) (*models.Document, error) {
	var note *models.Document
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invoice, err := repo.FindForUpdate(ctx, input.TenantID, input.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Type != enums.DocumentTypeInvoice {
			return pkgerrors.New(pkgerrors.CodeValidation, "credit notes can only reference invoices").
				WithDetails(map[string]any{"document_id": invoice.ID, "type": invoice.Type})
		}
		if invoice.Status == enums.DocumentStatusCancelled {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled invoices cannot be credited").
				WithDetails(map[string]any{"document_id": invoice.ID})
		}
		existing, err := repo.FindByLinkedDocument(ctx, input.TenantID, invoice.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "invoice already credited").
				WithDetails(map[string]any{"invoice_id": invoice.ID, "credit_note_id": existing.ID})
		}

		linked := invoice.ID
		notes := input.Notes
		if notes == nil {
			ref := "Avoir sur " + invoice.Number
			notes = &ref
		}
		note = &models.Document{
			TenantID:              input.TenantID,
			Type:                  enums.DocumentTypeCreditNote,
			Status:                enums.DocumentStatusPaid,
			ClientID:              invoice.ClientID,
			GlobalDiscountPercent: invoice.GlobalDiscountPercent,
			PreTax:                invoice.PreTax,
			Tax:                   invoice.Tax,
			Total:                 invoice.Total,
			RemainingDue:          decimal.Zero,
			LinkedDocumentID:      &linked,
			Notes:                 notes,
			Lines:                 copyLines(invoice.Lines),
		}
		return s.insertNumbered(ctx, tx, note, nil)
	})
	if err != nil {
		return nil, classifyDocumentError(err, "issue credit note")
	}

	s.logDocument(ctx, note, "credit note issued")
	s.notifyCreated(ctx, note, &input.InvoiceID)
	return note, nil
}

// insertNumbered stamps doc with a number and persists it in tx. A nil
// allocation draws the number inside tx so both commit together.
func (s *service) insertNumbered(ctx context.Context, tx *gorm.DB, doc *models.Document, alloc *numbering.Allocation) error {
	if alloc == nil {
		drawn, err := s.numbering.AllocateTx(ctx, tx, doc.TenantID, doc.Type)
		if err != nil {
			return err
		}
		alloc = drawn
	}
	doc.Number = alloc.Number
	doc.IssuedAt = time.Now().UTC()
	return s.repo.WithTx(tx).Create(ctx, doc)
}

func copyLines(lines []models.DocumentLine) []models.DocumentLine {
	out := make([]models.DocumentLine, 0, len(lines))
	for _, line := range lines {
		line.ID = uuid.Nil
		line.DocumentID = uuid.Nil
		out = append(out, line)
	}
	return out
}

func alreadyConverted(quoteID uuid.UUID, invoice *models.Document) error {
	return pkgerrors.New(pkgerrors.CodeAlreadyConverted, "quote already converted").
		WithDetails(map[string]any{
			"quote_id":       quoteID,
			"invoice_id":     invoice.ID,
			"invoice_number": invoice.Number,
		})
}

func classifyDocumentError(err error, message string) error {
	if pkgerrors.As(err) == nil &&
		(dbpkg.IsUniqueViolation(err, numberConstraint) || dbpkg.IsUniqueViolation(err, sqliteNumberColumns)) {
		return pkgerrors.Wrap(pkgerrors.CodeDuplicateNumber, err, message)
	}
	return dbpkg.ClassifyWriteError(err, message)
}

func (s *service) logDocument(ctx context.Context, doc *models.Document, msg string) {
	if s.logg == nil || doc == nil {
		return
	}
	logCtx := s.logg.WithTenantID(ctx, doc.TenantID.String())
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"document_id": doc.ID.String(),
		"type":        doc.Type,
		"number":      doc.Number,
		"total":       doc.Total.StringFixed(2),
	})
	s.logg.Info(logCtx, msg)
}

func (s *service) notifyCreated(ctx context.Context, doc *models.Document, sourceID *uuid.UUID) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, outbox.DomainEvent{
		TenantID:      doc.TenantID,
		EventType:     enums.EventDocumentCreated,
		AggregateType: enums.AggregateDocument,
		AggregateID:   doc.ID,
		Data: payloads.DocumentCreatedEvent{
			DocumentID: doc.ID,
			TenantID:   doc.TenantID,
			ClientID:   doc.ClientID,
			Type:       doc.Type,
			Status:     doc.Status,
			Number:     doc.Number,
			Total:      doc.Total,
			SourceID:   sourceID,
			CreatedAt:  doc.IssuedAt,
		},
	})
}
