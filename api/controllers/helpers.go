package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/middleware"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
)

func tenantIDFromRequest(r *http.Request) (uuid.UUID, error) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	if tenantID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant context missing")
	}
	return tenantID, nil
}

func serviceUnavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
