package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/responses"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/validators"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/stock"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/pagination"
)

const maxReasonLength = 255

type stockMovementRequest struct {
	Type        string          `json:"type" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	Reason      string          `json:"reason"`
	ReferenceID *uuid.UUID      `json:"reference_id,omitempty"`
}

// RecordStockMovement appends one movement to a product's stock ledger.
// Quantity is a magnitude for IN and OUT and a signed delta for ADJUST.
func RecordStockMovement(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("stock"))
			return
		}
		tenantID, productID, err := productTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload stockMovementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movementType, err := enums.ParseStockMovementType(strings.ToUpper(strings.TrimSpace(payload.Type)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown stock movement type"))
			return
		}

		movement, err := svc.RecordMovement(r.Context(), stock.RecordMovementInput{
			TenantID:    tenantID,
			ProductID:   productID,
			Type:        movementType,
			Quantity:    payload.Quantity,
			Reason:      validators.SanitizeString(payload.Reason, maxReasonLength),
			ReferenceID: payload.ReferenceID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newStockMovementResponse(*movement))
	}
}

// ListStockMovements pages through a product's movements with
// ?cursor=&limit=&order=asc|desc&type=IN,OUT&since=&until= (RFC 3339).
func ListStockMovements(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("stock"))
			return
		}
		tenantID, productID, err := productTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, err := parseMovementFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListMovementsPage(r.Context(), tenantID, productID, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, newStockMovementList(page.Items), page.NextCursor)
	}
}

func parseMovementFilter(r *http.Request) (stock.MovementFilter, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return stock.MovementFilter{}, err
	}
	order, err := pagination.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		return stock.MovementFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order").
			WithDetails(map[string]any{"field": "order"})
	}
	filter := stock.MovementFilter{
		Order:    order,
		Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
		PageSize: limit,
	}
	for _, raw := range validators.ParseQueryList(r, "type") {
		t, err := enums.ParseStockMovementType(strings.ToUpper(raw))
		if err != nil {
			return stock.MovementFilter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown stock movement type").
				WithDetails(map[string]any{"field": "type"})
		}
		filter.Types = append(filter.Types, t)
	}
	if filter.Since, err = parseQueryTime(r, "since"); err != nil {
		return stock.MovementFilter{}, err
	}
	if filter.Until, err = parseQueryTime(r, "until"); err != nil {
		return stock.MovementFilter{}, err
	}
	return filter, nil
}

func parseQueryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "query parameter must be an RFC 3339 timestamp").
			WithDetails(map[string]any{"field": key})
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

func productTarget(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	tenantID, err := tenantIDFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	productID, err := validators.ParsePathUUID(r, "productId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, productID, nil
}
