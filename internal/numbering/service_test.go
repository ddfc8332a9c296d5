package numbering

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/tenants"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/testutil"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
)

var testDefaults = config.NumberingConfig{
	QuotePrefix:      "DEV-",
	InvoicePrefix:    "FAC-",
	CreditNotePrefix: "AVO-",
	Padding:          5,
	Start:            1,
}

func newTestService(t *testing.T, client *db.Client) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		Tenants:  tenants.NewRepository(client.DB()),
		DB:       client,
		Defaults: testDefaults,
		Metrics:  metrics.NewLedgerMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return svc
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "FAC-00042", FormatNumber("FAC-", 5, 42))
	require.Equal(t, "DEV-123456", FormatNumber("DEV-", 5, 123456))
	require.Equal(t, "7", FormatNumber("", 0, 7))
}

func TestAllocateSequentialPerKey(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	tenant := testutil.SeedTenant(t, client)
	svc := newTestService(t, client)
	ctx := context.Background()

	first, err := svc.Allocate(ctx, tenant.ID, enums.DocumentTypeInvoice)
	require.NoError(t, err)
	second, err := svc.Allocate(ctx, tenant.ID, enums.DocumentTypeInvoice)
	require.NoError(t, err)
	quote, err := svc.Allocate(ctx, tenant.ID, enums.DocumentTypeQuote)
	require.NoError(t, err)

	require.Equal(t, "FAC-00001", first.Number)
	require.Equal(t, "FAC-00002", second.Number)
	require.Equal(t, "DEV-00001", quote.Number)
}

func TestAllocateSeedsFromTenantConfiguration(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	tenant := testutil.SeedTenant(t, client, func(tn *models.Tenant) {
		tn.CreditNotePrefix = ""
		tn.SequenceStart = 900
		tn.NumberPadding = 3
	})
	svc := newTestService(t, client)

	alloc, err := svc.Allocate(context.Background(), tenant.ID, enums.DocumentTypeCreditNote)
	require.NoError(t, err)
	require.Equal(t, int64(900), alloc.Value)
	require.Equal(t, "AVO-900", alloc.Number)
}

func TestAllocateConcurrentCallersNeverCollide(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	tenant := testutil.SeedTenant(t, client)
	svc := newTestService(t, client)

	const callers = 25
	var (
		mu     sync.Mutex
		values []int64
		seen   = map[string]struct{}{}
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			alloc, err := svc.Allocate(ctx, tenant.ID, enums.DocumentTypeInvoice)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if _, dup := seen[alloc.Number]; dup {
				return errors.New("duplicate number " + alloc.Number)
			}
			seen[alloc.Number] = struct{}{}
			values = append(values, alloc.Value)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	require.Len(t, values, callers)
	for i, v := range values {
		require.Equal(t, int64(i+1), v)
	}
}

func TestAllocateTxRollbackReservesNothing(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	tenant := testutil.SeedTenant(t, client)
	svc := newTestService(t, client)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, tenant.ID, enums.DocumentTypeQuote)
	require.NoError(t, err)

	boom := errors.New("document insert failed")
	err = client.WithTx(ctx, func(tx *gorm.DB) error {
		alloc, allocErr := svc.AllocateTx(ctx, tx, tenant.ID, enums.DocumentTypeQuote)
		require.NoError(t, allocErr)
		require.Equal(t, "DEV-00002", alloc.Number)
		return boom
	})
	require.ErrorIs(t, err, boom)

	next, err := svc.Allocate(ctx, tenant.ID, enums.DocumentTypeQuote)
	require.NoError(t, err)
	require.Equal(t, "DEV-00002", next.Number)
}

func TestAllocateRejectsBadInput(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	svc := newTestService(t, client)
	ctx := context.Background()

	_, err := svc.Allocate(ctx, uuid.New(), enums.DocumentTypeInvoice)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	tenant := testutil.SeedTenant(t, client)
	_, err = svc.Allocate(ctx, tenant.ID, enums.DocumentType("RECEIPT"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	var count int64
	require.NoError(t, client.DB().Model(&models.NumberSequence{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestLockSequenceUsesRowLock(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	tenantID := uuid.New()

	mockDB.Mock.ExpectQuery(`SELECT \* FROM "number_sequences" WHERE .+ FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "document_type", "prefix", "padding", "next_value"}).
			AddRow(tenantID.String(), "INVOICE", "FAC-", 5, 7))

	seq, err := NewRepository(mockDB.DB).LockSequence(context.Background(), tenantID, enums.DocumentTypeInvoice)
	require.NoError(t, err)
	require.Equal(t, int64(7), seq.NextValue)
	mockDB.ExpectationsWereMet(t)
}

func TestAllocateTxLostUpdateIsDuplicateNumber(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	tenantID := uuid.New()

	mockDB.Mock.ExpectQuery(`SELECT \* FROM "number_sequences" WHERE .+ FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"tenant_id", "document_type", "prefix", "padding", "next_value"}).
			AddRow(tenantID.String(), "INVOICE", "FAC-", 5, 7))
	mockDB.Mock.ExpectExec(`UPDATE "number_sequences" SET .*next_value.* WHERE .*next_value = `).
		WillReturnResult(sqlmock.NewResult(0, 0))

	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(mockDB.DB),
		Tenants:  tenants.NewRepository(mockDB.DB),
		DB:       db.NewFromGorm(mockDB.DB),
		Defaults: testDefaults,
	})
	require.NoError(t, err)

	_, err = svc.AllocateTx(context.Background(), mockDB.DB, tenantID, enums.DocumentTypeInvoice)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicateNumber), "got %v", err)
	mockDB.ExpectationsWereMet(t)
}
