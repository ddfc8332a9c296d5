package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/responses"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/validators"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/documents"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

const maxNotesLength = 2000

type documentLineRequest struct {
	ProductID       *uuid.UUID      `json:"product_id,omitempty"`
	Label           string          `json:"label" validate:"required,max=255"`
	Quantity        decimal.Decimal `json:"quantity" validate:"required,dpos,dscale=3"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxRate         decimal.Decimal `json:"tax_rate"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

type createDocumentRequest struct {
	Type                  string                `json:"type" validate:"required,oneof=QUOTE INVOICE"`
	ClientID              uuid.UUID             `json:"client_id" validate:"required"`
	Lines                 []documentLineRequest `json:"lines" validate:"required,min=1,dive"`
	GlobalDiscountPercent decimal.Decimal       `json:"global_discount_percent"`
	Notes                 *string               `json:"notes,omitempty"`
}

func (req createDocumentRequest) lines() []documents.LineInput {
	out := make([]documents.LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		out = append(out, documents.LineInput{
			ProductID:       line.ProductID,
			Label:           validators.SanitizeString(line.Label, 255),
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
			TaxRate:         line.TaxRate,
			DiscountPercent: line.DiscountPercent,
		})
	}
	return out
}

type transitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type paymentRequest struct {
	Amount     decimal.Decimal `json:"amount" validate:"required,dpos,dscale=2"`
	Method     string          `json:"method" validate:"required"`
	ReceivedAt *time.Time      `json:"received_at,omitempty"`
}

type creditNoteRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// CreateDocument opens a DRAFT quote or invoice. Credit notes are only ever
// issued against an invoice.
func CreateDocument(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("document"))
			return
		}
		tenantID, err := tenantIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createDocumentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		doc, err := svc.Create(r.Context(), documents.CreateDocumentInput{
			TenantID:              tenantID,
			Type:                  enums.DocumentType(payload.Type),
			ClientID:              payload.ClientID,
			Lines:                 payload.lines(),
			GlobalDiscountPercent: payload.GlobalDiscountPercent,
			Notes:                 sanitizeNotes(payload.Notes),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDocumentResponse(doc))
	}
}

func GetDocument(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("document"))
			return
		}
		tenantID, documentID, err := documentTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		doc, err := svc.Get(r.Context(), tenantID, documentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDocumentResponse(doc))
	}
}

// TransitionDocument moves a document to the requested status.
func TransitionDocument(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("document"))
			return
		}
		tenantID, documentID, err := documentTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseDocumentStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown document status"))
			return
		}

		doc, err := svc.Transition(r.Context(), documents.TransitionInput{
			TenantID:   tenantID,
			DocumentID: documentID,
			To:         to,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newDocumentResponse(doc))
	}
}

// ConvertQuote turns an ACCEPTED quote into a DRAFT invoice.
func ConvertQuote(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("document"))
			return
		}
		tenantID, quoteID, err := documentTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.ConvertQuoteToInvoice(r.Context(), tenantID, quoteID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDocumentResponse(invoice))
	}
}

// RecordDocumentPayment settles part or all of an open invoice.
func RecordDocumentPayment(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("document"))
			return
		}
		tenantID, documentID, err := documentTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(payload.Method)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment method"))
			return
		}
		receivedAt := time.Now().UTC()
		if payload.ReceivedAt != nil {
			receivedAt = payload.ReceivedAt.UTC()
		}

		payment, err := svc.RecordPayment(r.Context(), documents.RecordPaymentInput{
			TenantID:   tenantID,
			DocumentID: documentID,
			Amount:     payload.Amount,
			Method:     method,
			ReceivedAt: receivedAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPaymentResponse(payment))
	}
}

// IssueCreditNote cancels the financial effect of an invoice.
func IssueCreditNote(svc documents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("document"))
			return
		}
		tenantID, invoiceID, err := documentTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload creditNoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		note, err := svc.IssueCreditNote(r.Context(), documents.IssueCreditNoteInput{
			TenantID:  tenantID,
			InvoiceID: invoiceID,
			Notes:     sanitizeNotes(payload.Notes),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newDocumentResponse(note))
	}
}

func documentTarget(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	tenantID, err := tenantIDFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	documentID, err := validators.ParsePathUUID(r, "documentId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, documentID, nil
}

func sanitizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	clean := validators.SanitizeString(*notes, maxNotesLength)
	if clean == "" {
		return nil
	}
	return &clean
}
