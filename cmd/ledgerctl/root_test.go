package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/numbering"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/stock"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/tenants"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox"
)

type fakeStock struct {
	report  stock.ReconcileReport
	repairs []bool
}

func (f *fakeStock) Reconcile(_ context.Context, _, productID uuid.UUID, repair bool) (*stock.ReconcileReport, error) {
	f.repairs = append(f.repairs, repair)
	report := f.report
	report.ProductID = productID
	report.Repaired = repair && report.Drift
	return &report, nil
}

func (f *fakeStock) ReconcileTenant(context.Context, uuid.UUID, bool) ([]stock.ReconcileReport, error) {
	return []stock.ReconcileReport{f.report, f.report}, nil
}

type fakePoints struct{}

func (fakePoints) Reconcile(_ context.Context, _, clientID uuid.UUID, _ bool) (*loyalty.ReconcileReport, error) {
	return &loyalty.ReconcileReport{ClientID: clientID, Cached: 40, Replayed: 40, Movements: 3}, nil
}

func (fakePoints) ReconcileTenant(context.Context, uuid.UUID, bool) ([]loyalty.ReconcileReport, error) {
	return nil, errors.New("db down")
}

type fakeAllocator struct {
	types []enums.DocumentType
}

func (f *fakeAllocator) Allocate(_ context.Context, tenantID uuid.UUID, docType enums.DocumentType) (*numbering.Allocation, error) {
	f.types = append(f.types, docType)
	return &numbering.Allocation{TenantID: tenantID, DocumentType: docType, Value: 7, Number: "AVO-00007"}, nil
}

type fakeTenants struct {
	created tenants.CreateTenantInput
}

func (f *fakeTenants) Create(_ context.Context, input tenants.CreateTenantInput) (*models.Tenant, error) {
	f.created = input
	return &models.Tenant{ID: uuid.MustParse("6f1d0c7e-3f4b-4a53-9e2a-0b8f8a1f2c11"), Name: input.Name}, nil
}

func (f *fakeTenants) Get(context.Context, uuid.UUID) (*models.Tenant, error) {
	return nil, errors.New("not used")
}

type fakeDeadLetters struct {
	rows     []models.OutboxDLQ
	requeued []uuid.UUID
}

func (f *fakeDeadLetters) List(_ context.Context, tenantID *uuid.UUID, limit int) ([]models.OutboxDLQ, error) {
	var out []models.OutboxDLQ
	for _, row := range f.rows {
		if tenantID == nil || row.TenantID == *tenantID {
			out = append(out, row)
		}
	}
	return out[:min(limit, len(out))], nil
}

func (f *fakeDeadLetters) Reason(_ context.Context, eventID uuid.UUID) (enums.OutboxDLQErrorReason, error) {
	for _, row := range f.rows {
		if row.EventID == eventID {
			return row.ErrorReason, nil
		}
	}
	return "", outbox.ErrDeadLetterNotFound
}

func (f *fakeDeadLetters) Requeue(_ context.Context, eventID uuid.UUID) error {
	f.requeued = append(f.requeued, eventID)
	return nil
}

type harness struct {
	stock   *fakeStock
	numbers *fakeAllocator
	tenants *fakeTenants
	dlq     *fakeDeadLetters
	opened  int
	closed  int
}

func newHarness() *harness {
	return &harness{
		stock:   &fakeStock{report: stock.ReconcileReport{Cached: decimal.NewFromInt(5), Replayed: decimal.NewFromInt(5), Movements: 2}},
		numbers: &fakeAllocator{},
		tenants: &fakeTenants{},
		dlq:     &fakeDeadLetters{},
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func(context.Context, io.Writer) (*backend, error) {
		h.opened++
		return &backend{
			Stock:       h.stock,
			Loyalty:     fakePoints{},
			Numbering:   h.numbers,
			Tenants:     h.tenants,
			DeadLetters: h.dlq,
			close: func() error {
				h.closed++
				return nil
			},
		}, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReconcileStockSingleProduct(t *testing.T) {
	h := newHarness()
	productID := uuid.New()

	out, err := h.run(t, "reconcile", "stock", "--tenant", uuid.NewString(), "--product", productID.String())
	require.NoError(t, err)
	require.Contains(t, out, "product "+productID.String())
	require.Contains(t, out, "OK")
	require.Equal(t, []bool{false}, h.stock.repairs)
	require.Equal(t, 1, h.closed)
}

func TestReconcileStockReportsUnrepairedDrift(t *testing.T) {
	h := newHarness()
	h.stock.report.Drift = true

	out, err := h.run(t, "reconcile", "stock", "--tenant", uuid.NewString(), "--product", uuid.NewString())
	require.ErrorIs(t, err, errDrift)
	require.Contains(t, out, "DRIFT")

	out, err = h.run(t, "reconcile", "stock", "--tenant", uuid.NewString(), "--product", uuid.NewString(), "--repair")
	require.NoError(t, err)
	require.Contains(t, out, "REPAIRED")
}

func TestReconcileStockTenantJSON(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "--format", "json", "reconcile", "stock", "--tenant", uuid.NewString())
	require.NoError(t, err)
	var reports []stock.ReconcileReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
}

func TestReconcilePointsPropagatesErrors(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "reconcile", "points", "--tenant", uuid.NewString(), "--client", uuid.NewString())
	require.NoError(t, err)
	require.Contains(t, out, "cached=40 replayed=40")

	_, err = h.run(t, "reconcile", "points", "--tenant", uuid.NewString())
	require.EqualError(t, err, "db down")
}

func TestAllocateNormalisesType(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "allocate", "--tenant", uuid.NewString(), "--type", "credit-note")
	require.NoError(t, err)
	require.Equal(t, "AVO-00007\n", out)
	require.Equal(t, []enums.DocumentType{enums.DocumentTypeCreditNote}, h.numbers.types)
}

func TestInvalidInputNeverOpensBackend(t *testing.T) {
	h := newHarness()

	_, err := h.run(t, "allocate", "--tenant", "nope", "--type", "QUOTE")
	require.Error(t, err)
	_, err = h.run(t, "allocate", "--tenant", uuid.NewString(), "--type", "RECEIPT")
	require.Error(t, err)
	_, err = h.run(t, "--format", "yaml", "allocate", "--tenant", uuid.NewString(), "--type", "QUOTE")
	require.Error(t, err)
	_, err = h.run(t, "reconcile", "stock")
	require.Error(t, err)
	require.Zero(t, h.opened)
}

func TestTenantCreate(t *testing.T) {
	h := newHarness()

	out, err := h.run(t, "tenant", "create", "--name", "Boulangerie Martin", "--invoice-prefix", "F-", "--points-per-unit", "0.5")
	require.NoError(t, err)
	require.Equal(t, "6f1d0c7e-3f4b-4a53-9e2a-0b8f8a1f2c11\n", out)
	require.Equal(t, "F-", h.tenants.created.InvoicePrefix)
	require.True(t, decimal.RequireFromString("0.5").Equal(h.tenants.created.LoyaltyPointsPerUnit))
	require.Equal(t, 365, h.tenants.created.LoyaltyExpiryDays)
}

func TestDLQListAndRequeue(t *testing.T) {
	h := newHarness()
	tenantID := uuid.New()
	routable, broken := uuid.New(), uuid.New()
	msg := "topic not found"
	h.dlq.rows = []models.OutboxDLQ{
		{EventID: routable, TenantID: tenantID, EventType: enums.EventDocumentCreated, ErrorReason: enums.OutboxDLQReasonNoRoute, ErrorMessage: &msg, AttemptCount: 1},
		{EventID: broken, TenantID: uuid.New(), EventType: enums.EventPaymentReceived, ErrorReason: enums.OutboxDLQReasonNonRetryable, AttemptCount: 1},
	}

	out, err := h.run(t, "dlq", "list", "--tenant", tenantID.String())
	require.NoError(t, err)
	require.Equal(t, routable.String()+" document_created no_route attempts=1 topic not found\n", out)

	out, err = h.run(t, "dlq", "requeue", routable.String())
	require.NoError(t, err)
	require.Equal(t, "requeued "+routable.String()+"\n", out)

	_, err = h.run(t, "dlq", "requeue", broken.String())
	require.ErrorContains(t, err, "--force")
	_, err = h.run(t, "dlq", "requeue", broken.String(), "--force")
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{routable, broken}, h.dlq.requeued)

	_, err = h.run(t, "dlq", "requeue", uuid.NewString())
	require.ErrorIs(t, err, outbox.ErrDeadLetterNotFound)
}
