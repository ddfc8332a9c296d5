package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestTenantContext(t *testing.T) {
	tenantID := uuid.New()
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusBadRequest},
		{"malformed", "store-1", http.StatusBadRequest},
		{"nil uuid", uuid.Nil.String(), http.StatusBadRequest},
		{"valid", tenantID.String(), http.StatusNoContent},
	}

	for _, tt := range tests {
		var seen uuid.UUID
		handler := TenantContext(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = TenantIDFromContext(r.Context())
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/x", nil)
		if tt.header != "" {
			req.Header.Set(TenantHeader, tt.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d got %d", tt.name, tt.status, rec.Code)
		}
		if tt.status == http.StatusNoContent && seen != tenantID {
			t.Fatalf("%s: expected tenant %s in context, got %s", tt.name, tenantID, seen)
		}
	}
}
