package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/api/responses"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/numbering"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

// AllocateNumber draws the next number of a document type. The number is
// consumed whether or not a document ever uses it.
func AllocateNumber(svc numbering.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("numbering"))
			return
		}
		tenantID, err := tenantIDFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		raw := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "documentType")))
		docType, err := enums.ParseDocumentType(strings.ReplaceAll(raw, "-", "_"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown document type").
				WithDetails(map[string]any{"document_type": chi.URLParam(r, "documentType")}))
			return
		}

		alloc, err := svc.Allocate(r.Context(), tenantID, docType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, alloc)
	}
}
