package stock

import (
	"context"
	"slices"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	dbtest "github.com/AlexandreGoumain/my-pro-partner-sub005/internal/testutil"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/pagination"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newTestService(t *testing.T, client *db.Client, m *metrics.LedgerMetrics) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: NewRepository(client.DB()), DB: client, Metrics: m})
	require.NoError(t, err)
	return svc
}

func currentStock(t *testing.T, client *db.Client, productID uuid.UUID) decimal.Decimal {
	t.Helper()
	var product models.Product
	require.NoError(t, client.DB().Where("id = ?", productID).Take(&product).Error)
	return product.CurrentStock
}

func out(tenantID, productID uuid.UUID, qty string) RecordMovementInput {
	return RecordMovementInput{TenantID: tenantID, ProductID: productID, Type: enums.StockMovementOut, Quantity: d(qty), Reason: "sale"}
}

func TestInsufficientStockScenario(t *testing.T) {
	client := dbtest.NewSQLiteClient(t)
	tenant := dbtest.SeedTenant(t, client)
	product := dbtest.SeedProduct(t, client, tenant.ID, "10", "20", "5", true)
	reg := prometheus.NewRegistry()
	svc := newTestService(t, client, metrics.NewLedgerMetrics(reg))
	ctx := context.Background()

	movement, err := svc.RecordMovement(ctx, out(tenant.ID, product.ID, "3"))
	require.NoError(t, err)
	assert.True(t, movement.QuantityDelta.Equal(d("-3")))
	assert.True(t, movement.StockBefore.Equal(d("5")))
	assert.True(t, movement.StockAfter.Equal(d("2")))
	assert.True(t, currentStock(t, client, product.ID).Equal(d("2")))

	_, err = svc.RecordMovement(ctx, out(tenant.ID, product.ID, "5"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "2", details["available"])
	assert.Equal(t, "5", details["requested"])
	assert.True(t, currentStock(t, client, product.ID).Equal(d("2")))

	var count int64
	require.NoError(t, client.DB().Model(&models.StockMovement{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	expected := `
# HELP mpp_stock_movements_total Stock movement attempts, by type and outcome.
# TYPE mpp_stock_movements_total counter
mpp_stock_movements_total{outcome="recorded",type="OUT"} 1
mpp_stock_movements_total{outcome="rejected",type="OUT"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mpp_stock_movements_total"))
}

func TestUntrackedProductMayGoNegative(t *testing.T) {
	client := dbtest.NewSQLiteClient(t)
	tenant := dbtest.SeedTenant(t, client)
	product := dbtest.SeedProduct(t, client, tenant.ID, "4.50", "5.5", "1", false)
	svc := newTestService(t, client, nil)

	movement, err := svc.RecordMovement(context.Background(), out(tenant.ID, product.ID, "2.5"))
	require.NoError(t, err)
	assert.True(t, movement.StockAfter.Equal(d("-1.5")))
}

func TestAdjustAndFractionalQuantities(t *testing.T) {
	client := dbtest.NewSQLiteClient(t)
	tenant := dbtest.SeedTenant(t, client)
	product := dbtest.SeedProduct(t, client, tenant.ID, "12.40", "5.5", "0", true)
	svc := newTestService(t, client, nil)
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, RecordMovementInput{TenantID: tenant.ID, ProductID: product.ID, Type: enums.StockMovementIn, Quantity: d("2.125")})
	require.NoError(t, err)
	_, err = svc.RecordMovement(ctx, RecordMovementInput{TenantID: tenant.ID, ProductID: product.ID, Type: enums.StockMovementAdjust, Quantity: d("-0.125"), Reason: "inventaire"})
	require.NoError(t, err)
	assert.True(t, currentStock(t, client, product.ID).Equal(d("2")))

	_, err = svc.RecordMovement(ctx, RecordMovementInput{TenantID: tenant.ID, ProductID: product.ID, Type: enums.StockMovementAdjust, Quantity: d("-3")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
}

func TestRecordMovementValidation(t *testing.T) {
	client := dbtest.NewSQLiteClient(t)
	tenant := dbtest.SeedTenant(t, client)
	product := dbtest.SeedProduct(t, client, tenant.ID, "1", "0", "10", true)
	svc := newTestService(t, client, nil)
	ctx := context.Background()

	cases := []RecordMovementInput{
		{TenantID: tenant.ID, ProductID: product.ID, Type: enums.StockMovementIn, Quantity: d("0")},
		{TenantID: tenant.ID, ProductID: product.ID, Type: enums.StockMovementOut, Quantity: d("-1")},
		{TenantID: tenant.ID, ProductID: product.ID, Type: enums.StockMovementAdjust, Quantity: d("0")},
		{TenantID: tenant.ID, ProductID: product.ID, Type: enums.StockMovementIn, Quantity: d("0.0001")},
		{TenantID: tenant.ID, ProductID: product.ID, Type: enums.StockMovementType("LOSS"), Quantity: d("1")},
		{TenantID: tenant.ID, Type: enums.StockMovementIn, Quantity: d("1")},
	}
	for i, input := range cases {
		_, err := svc.RecordMovement(ctx, input)
		require.Truef(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "case %d: got %v", i, err)
	}

	_, err := svc.RecordMovement(ctx, out(tenant.ID, uuid.New(), "1"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	other := dbtest.SeedTenant(t, client)
	_, err = svc.RecordMovement(ctx, out(other.ID, product.ID, "1"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestConcurrentOutMovementsNeverOversell(t *testing.T) {
	client := dbtest.NewSQLiteClient(t)
	tenant := dbtest.SeedTenant(t, client)
	product := dbtest.SeedProduct(t, client, tenant.ID, "3", "20", "10", true)
	svc := newTestService(t, client, nil)

	const callers = 15
	results := make([]error, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, results[i] = svc.RecordMovement(context.Background(), out(tenant.ID, product.ID, "1"))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 5, rejected)
	assert.True(t, currentStock(t, client, product.ID).IsZero())

	report, err := svc.Reconcile(context.Background(), tenant.ID, product.ID, false)
	require.NoError(t, err)
	assert.False(t, report.Drift)
	assert.Equal(t, 10, report.Movements)
}

func TestListMovementsOrderFiltersAndRestart(t *testing.T) {
	client := dbtest.NewSQLiteClient(t)
	tenant := dbtest.SeedTenant(t, client)
	product := dbtest.SeedProduct(t, client, tenant.ID, "2", "20", "100", true)
	svc := newTestService(t, client, nil)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		input := out(tenant.ID, product.ID, "1.5")
		if i%3 == 0 {
			input.Type = enums.StockMovementIn
			input.Quantity = d("0.25")
		}
		_, err := svc.RecordMovement(ctx, input)
		require.NoError(t, err)
	}
	history, err := NewRepository(client.DB()).History(ctx, tenant.ID, product.ID)
	require.NoError(t, err)
	require.Len(t, history, 7)

	collect := func(filter MovementFilter) []uuid.UUID {
		var ids []uuid.UUID
		for m, err := range svc.ListMovements(ctx, tenant.ID, product.ID, filter) {
			require.NoError(t, err)
			ids = append(ids, m.ID)
		}
		return ids
	}
	ascending := make([]uuid.UUID, 0, len(history))
	for _, m := range history {
		ascending = append(ascending, m.ID)
	}
	descending := slices.Clone(ascending)
	slices.Reverse(descending)

	assert.Equal(t, descending, collect(MovementFilter{PageSize: 3}))
	assert.Equal(t, ascending, collect(MovementFilter{PageSize: 2, Order: pagination.OldestFirst}))

	ins := collect(MovementFilter{Types: []enums.StockMovementType{enums.StockMovementIn}})
	assert.Len(t, ins, 3)

	resumed := collect(MovementFilter{PageSize: 2, Cursor: MovementCursor(history[len(history)-3], pagination.NewestFirst)})
	assert.Equal(t, descending[3:], resumed)

	for m := range svc.ListMovements(ctx, tenant.ID, product.ID, MovementFilter{}) {
		assert.True(t, m.StockAfter.Equal(m.StockBefore.Add(m.QuantityDelta)))
		if m.Type == enums.StockMovementIn {
			assert.True(t, m.QuantityDelta.Equal(d("0.25")), "quantity %s", m.QuantityDelta)
		}
	}

	seq := svc.ListMovements(ctx, tenant.ID, product.ID, MovementFilter{PageSize: 4})
	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, 7, first)
	assert.Equal(t, first, second)
}

func TestListMovementsPage(t *testing.T) {
	client := dbtest.NewSQLiteClient(t)
	tenant := dbtest.SeedTenant(t, client)
	product := dbtest.SeedProduct(t, client, tenant.ID, "2", "20", "50", true)
	svc := newTestService(t, client, nil)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := svc.RecordMovement(ctx, out(tenant.ID, product.ID, "1"))
		require.NoError(t, err)
	}

	page, err := svc.ListMovementsPage(ctx, tenant.ID, product.ID, MovementFilter{PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	require.NotEmpty(t, page.NextCursor)

	next, err := svc.ListMovementsPage(ctx, tenant.ID, product.ID, MovementFilter{PageSize: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	assert.Len(t, next.Items, 2)
	assert.Empty(t, next.NextCursor)

	_, err = svc.ListMovementsPage(ctx, tenant.ID, product.ID, MovementFilter{Cursor: page.NextCursor, Order: pagination.OldestFirst})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
	_, err = svc.ListMovementsPage(ctx, tenant.ID, product.ID, MovementFilter{Cursor: "garbage!"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestCheckAvailabilityReportsEveryShortage(t *testing.T) {
	client := dbtest.NewSQLiteClient(t)
	tenant := dbtest.SeedTenant(t, client)
	low := dbtest.SeedProduct(t, client, tenant.ID, "1", "20", "1", true)
	plenty := dbtest.SeedProduct(t, client, tenant.ID, "1", "20", "10", true)
	service := dbtest.SeedProduct(t, client, tenant.ID, "1", "20", "0", false)
	svc := newTestService(t, client, nil)
	ctx := context.Background()

	err := svc.CheckAvailability(ctx, tenant.ID, map[uuid.UUID]decimal.Decimal{
		low.ID:     d("2"),
		plenty.ID:  d("3"),
		service.ID: d("9"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "got %v", err)
	details := pkgerrors.As(err).Details().(map[string]any)
	shortages := details["shortages"].([]Shortage)
	require.Len(t, shortages, 1)
	assert.Equal(t, low.ID, shortages[0].ProductID)

	require.NoError(t, svc.CheckAvailability(ctx, tenant.ID, map[uuid.UUID]decimal.Decimal{plenty.ID: d("10")}))

	err = svc.CheckAvailability(ctx, tenant.ID, map[uuid.UUID]decimal.Decimal{uuid.New(): d("1")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)
}

func TestReconcileDetectsAndRepairsDrift(t *testing.T) {
	client := dbtest.NewSQLiteClient(t)
	tenant := dbtest.SeedTenant(t, client)
	product := dbtest.SeedProduct(t, client, tenant.ID, "1", "20", "8", true)
	reg := prometheus.NewRegistry()
	svc := newTestService(t, client, metrics.NewLedgerMetrics(reg))
	ctx := context.Background()

	_, err := svc.RecordMovement(ctx, out(tenant.ID, product.ID, "3"))
	require.NoError(t, err)

	report, err := svc.Reconcile(ctx, tenant.ID, product.ID, false)
	require.NoError(t, err)
	assert.False(t, report.Drift)
	assert.True(t, report.Replayed.Equal(d("5")))

	require.NoError(t, client.DB().Model(&models.Product{}).Where("id = ?", product.ID).Update("current_stock", d("7")).Error)

	report, err = svc.Reconcile(ctx, tenant.ID, product.ID, false)
	require.NoError(t, err)
	assert.True(t, report.Drift)
	assert.False(t, report.Repaired)
	assert.True(t, currentStock(t, client, product.ID).Equal(d("7")))

	reports, err := svc.ReconcileTenant(ctx, tenant.ID, true)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Repaired)
	assert.True(t, currentStock(t, client, product.ID).Equal(d("5")))

	expected := `
# HELP mpp_ledger_drift_detected_total Reconciliations where the cached balance disagreed with the ledger.
# TYPE mpp_ledger_drift_detected_total counter
mpp_ledger_drift_detected_total{ledger="stock"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "mpp_ledger_drift_detected_total"))
}

func TestReplayFlagsBrokenChain(t *testing.T) {
	product := models.Product{ID: uuid.New(), InitialStock: d("10"), CurrentStock: d("7")}
	history := []models.StockMovement{
		{QuantityDelta: d("-2"), StockBefore: d("10"), StockAfter: d("8")},
		{QuantityDelta: d("-1"), StockBefore: d("9"), StockAfter: d("8")},
	}
	report := Replay(product, history)
	assert.True(t, report.ChainBroken)
	assert.True(t, report.Drift)
	assert.True(t, report.Replayed.Equal(d("7")))
}

func TestFindProductForUpdateLocksRow(t *testing.T) {
	mockDB := dbtest.NewMockDB(t)
	tenantID, productID := uuid.New(), uuid.New()

	mockDB.Mock.ExpectQuery(`SELECT \* FROM "products" WHERE .+ FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "stock_tracked", "current_stock"}).
			AddRow(productID.String(), tenantID.String(), true, "4.500"))

	product, err := NewRepository(mockDB.DB).FindProductForUpdate(context.Background(), tenantID, productID)
	require.NoError(t, err)
	assert.True(t, product.CurrentStock.Equal(d("4.5")))
	mockDB.ExpectationsWereMet(t)
}
