package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/responses"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/validators"
	checkoutsvc "github.com/AlexandreGoumain/my-pro-partner-sub005/internal/checkout"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

type cartLineRequest struct {
	ProductID       uuid.UUID       `json:"product_id" validate:"required"`
	Quantity        decimal.Decimal `json:"quantity" validate:"required,dpos,dscale=3"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

type checkoutRequest struct {
	ClientID              *uuid.UUID        `json:"client_id,omitempty"`
	Lines                 []cartLineRequest `json:"lines" validate:"required,min=1,dive"`
	GlobalDiscountPercent decimal.Decimal   `json:"global_discount_percent"`
	PaymentMethod         string            `json:"payment_method" validate:"required"`
}

type checkoutResponse struct {
	CheckoutID     uuid.UUID               `json:"checkout_id"`
	Status         string                  `json:"status"`
	Client         *clientResponse         `json:"client"`
	Invoice        *documentResponse       `json:"invoice"`
	Payment        *paymentResponse        `json:"payment,omitempty"`
	StockMovements []stockMovementResponse `json:"stock_movements"`
	Points         *pointsMovementResponse `json:"points,omitempty"`
}

type checkoutSessionResponse struct {
	CheckoutID     uuid.UUID  `json:"checkout_id"`
	Status         string     `json:"status"`
	ClientID       *uuid.UUID `json:"client_id,omitempty"`
	InvoiceID      *uuid.UUID `json:"invoice_id,omitempty"`
	PaymentID      *uuid.UUID `json:"payment_id,omitempty"`
	CreditNoteID   *uuid.UUID `json:"credit_note_id,omitempty"`
	CompletedSteps []string   `json:"completed_steps"`
	FailedStep     *string    `json:"failed_step,omitempty"`
	FailureReason  *string    `json:"failure_reason,omitempty"`
}

// POSCheckout rings up a till sale: invoice, payment, stock and points in one
// call. A nil client_id sells to the walk-in client.
func POSCheckout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("checkout"))
			return
		}
		tenantID, err := tenantIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(payload.PaymentMethod)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown payment method"))
			return
		}

		lines := make([]checkoutsvc.CartLine, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, checkoutsvc.CartLine{
				ProductID:       line.ProductID,
				Quantity:        line.Quantity,
				DiscountPercent: line.DiscountPercent,
			})
		}

		result, err := svc.Execute(r.Context(), checkoutsvc.CheckoutInput{
			TenantID:              tenantID,
			ClientID:              payload.ClientID,
			Lines:                 lines,
			GlobalDiscountPercent: payload.GlobalDiscountPercent,
			Method:                method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

// GetCheckout returns the recorded outcome of a checkout, including the
// failed step and any compensation.
func GetCheckout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("checkout"))
			return
		}
		tenantID, err := tenantIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		checkoutID, err := validators.ParsePathUUID(r, "checkoutId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Get(r.Context(), tenantID, checkoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCheckoutSessionResponse(session))
	}
}

func newCheckoutResponse(result *checkoutsvc.CheckoutResult) checkoutResponse {
	if result == nil {
		return checkoutResponse{}
	}
	return checkoutResponse{
		CheckoutID:     result.SessionID,
		Status:         string(result.Status),
		Client:         newClientResponse(result.Client),
		Invoice:        newDocumentResponse(result.Invoice),
		Payment:        newPaymentResponse(result.Payment),
		StockMovements: newStockMovementList(result.Movements),
		Points:         newPointsMovementResponse(result.Points),
	}
}

func newCheckoutSessionResponse(session *models.CheckoutSession) checkoutSessionResponse {
	resp := checkoutSessionResponse{
		CheckoutID:     session.ID,
		Status:         string(session.Status),
		ClientID:       session.ClientID,
		InvoiceID:      session.InvoiceID,
		PaymentID:      session.PaymentID,
		CreditNoteID:   session.CreditNoteID,
		CompletedSteps: checkoutsvc.CompletedSteps(session),
		FailureReason:  session.FailureReason,
	}
	if session.FailedStep != nil {
		step := string(*session.FailedStep)
		resp.FailedStep = &step
	}
	return resp
}
