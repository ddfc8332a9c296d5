package middleware

import (
	"context"

	"github.com/google/uuid"
)

type (
	tenantKey    struct{}
	requestIDKey struct{}
)

// TenantIDFromContext returns the tenant resolved by TenantContext, or
// uuid.Nil outside of a tenant-scoped route.
func TenantIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := valueOf[uuid.UUID](ctx, tenantKey{})
	return id
}

func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(orBackground(ctx), tenantKey{}, tenantID)
}

// RequestIDFromContext returns the id assigned by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := valueOf[string](ctx, requestIDKey{})
	return id
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(orBackground(ctx), requestIDKey{}, id)
}

func valueOf[T any](ctx context.Context, key any) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
