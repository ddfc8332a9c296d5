package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/responses"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/validators"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/clients"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

const (
	defaultExpiringWindowDays = 30
	maxExpiringWindowDays     = 3650
)

type pointsMovementRequest struct {
	Type             string     `json:"type" validate:"required"`
	Points           int64      `json:"points" validate:"required,gt=0"`
	Debit            bool       `json:"debit"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	SourceMovementID *uuid.UUID `json:"source_movement_id,omitempty"`
	DocumentID       *uuid.UUID `json:"document_id,omitempty"`
	Reason           string     `json:"reason"`
}

type expiringPointsResponse struct {
	ClientID   uuid.UUID                `json:"client_id"`
	WindowDays int                      `json:"window_days"`
	Points     int64                    `json:"points"`
	Movements  []pointsMovementResponse `json:"movements"`
}

// ApplyPointsMovement appends one movement to a client's points ledger.
func ApplyPointsMovement(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("loyalty"))
			return
		}
		tenantID, clientID, err := clientTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload pointsMovementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movementType, err := enums.ParsePointsMovementType(strings.ToUpper(strings.TrimSpace(payload.Type)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown points movement type"))
			return
		}

		movement, err := svc.ApplyMovement(r.Context(), loyalty.ApplyMovementInput{
			TenantID:         tenantID,
			ClientID:         clientID,
			Type:             movementType,
			Points:           payload.Points,
			Debit:            payload.Debit,
			ExpiresAt:        payload.ExpiresAt,
			SourceMovementID: payload.SourceMovementID,
			DocumentID:       payload.DocumentID,
			Reason:           validators.SanitizeString(payload.Reason, maxReasonLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newPointsMovementResponse(movement))
	}
}

// ExpiringPoints lists the client's grants expiring within window_days.
// Points are summed gross: spending since the grant is not netted out.
func ExpiringPoints(svc loyalty.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("loyalty"))
			return
		}
		tenantID, clientID, err := clientTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		window, err := validators.ParseQueryInt(r, "window_days", defaultExpiringWindowDays, 1, maxExpiringWindowDays)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := expiringPointsResponse{
			ClientID:   clientID,
			WindowDays: window,
			Movements:  []pointsMovementResponse{},
		}
		for movement, err := range svc.ExpiringSoon(r.Context(), tenantID, clientID, window) {
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			resp.Points += movement.Points
			resp.Movements = append(resp.Movements, *newPointsMovementResponse(&movement))
		}
		responses.WriteSuccess(w, resp)
	}
}

// GetClient returns a client with its cached points balance.
func GetClient(svc clients.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("client"))
			return
		}
		tenantID, clientID, err := clientTarget(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		client, err := svc.Get(r.Context(), tenantID, clientID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newClientResponse(client))
	}
}

func clientTarget(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	tenantID, err := tenantIDFromRequest(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	clientID, err := validators.ParsePathUUID(r, "clientId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return tenantID, clientID, nil
}
