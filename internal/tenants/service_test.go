package tenants

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/testutil"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
)

var defaults = config.NumberingConfig{
	QuotePrefix:      "DEV-",
	InvoicePrefix:    "FAC-",
	CreditNotePrefix: "AVO-",
	Padding:          5,
	Start:            1,
}

func TestResolveNumberingFallsBackToDefaults(t *testing.T) {
	got := ResolveNumbering(models.Tenant{}, defaults, enums.DocumentTypeCreditNote)
	require.Equal(t, NumberingSettings{Prefix: "AVO-", Start: 1, Padding: 5}, got)
}

func TestResolveNumberingPrefersTenantValues(t *testing.T) {
	tenant := models.Tenant{InvoicePrefix: "F2025-", SequenceStart: 1000, NumberPadding: 6}
	got := ResolveNumbering(tenant, defaults, enums.DocumentTypeInvoice)
	require.Equal(t, NumberingSettings{Prefix: "F2025-", Start: 1000, Padding: 6}, got)

	quote := ResolveNumbering(tenant, defaults, enums.DocumentTypeQuote)
	require.Equal(t, "DEV-", quote.Prefix)
	require.Equal(t, int64(1000), quote.Start)
}

func TestServiceCreateAndGet(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)

	ctx := context.Background()
	created, err := svc.Create(ctx, CreateTenantInput{
		Name:                 "  Atelier Dupont ",
		InvoicePrefix:        "FA-",
		LoyaltyPointsPerUnit: decimal.RequireFromString("0.5"),
		LoyaltyExpiryDays:    180,
	})
	require.NoError(t, err)
	require.Equal(t, "Atelier Dupont", created.Name)

	loaded, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "FA-", loaded.InvoicePrefix)
	require.True(t, loaded.LoyaltyPointsPerUnit.Equal(decimal.RequireFromString("0.5")))
}

func TestServiceValidationAndNotFound(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	svc, err := NewService(NewRepository(client.DB()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, CreateTenantInput{Name: " "})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Create(ctx, CreateTenantInput{Name: "x", NumberPadding: 20})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Get(ctx, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
