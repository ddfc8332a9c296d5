// Package testutil holds database fixtures shared by the ledger package tests.
package testutil

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
)

// NewSQLiteClient opens a private in-memory database with every ledger table
// migrated. A single connection makes concurrent writers queue the way row
// locks make them queue on Postgres.
func NewSQLiteClient(t *testing.T) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%s?mode=memory&cache=shared&_foreign_keys=off", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "open sqlite")

	sqlDB, err := conn.DB()
	require.NoError(t, err, "sql handle")
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(models.All()...), "migrate models")
	return db.NewFromGorm(conn)
}

// MockDB wraps a GORM Postgres dialect over sqlmock to assert SQL shape.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB creates a Postgres-flavoured GORM handle backed by sqlmock.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err, "create sqlmock")

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "open gorm over sqlmock")

	t.Cleanup(func() { _ = mockDB.Close() })
	return &MockDB{DB: gormDB, Mock: mock, SqlDB: mockDB}
}

// ExpectationsWereMet verifies that all expectations were met.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "unmet database expectations")
}

// SeedTenant inserts a tenant with the default numbering settings.
func SeedTenant(t *testing.T, client *db.Client, mutate ...func(*models.Tenant)) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{
		Name:                 "Boulangerie " + uuid.NewString()[:8],
		QuotePrefix:          "DEV-",
		InvoicePrefix:        "FAC-",
		CreditNotePrefix:     "AVO-",
		SequenceStart:        1,
		NumberPadding:        5,
		LoyaltyPointsPerUnit: decimal.NewFromInt(1),
		LoyaltyExpiryDays:    365,
	}
	for _, fn := range mutate {
		fn(tenant)
	}
	require.NoError(t, client.DB().Create(tenant).Error, "seed tenant")
	return tenant
}

// SeedClient inserts an identified client with the given points balance.
func SeedClient(t *testing.T, client *db.Client, tenantID uuid.UUID, balance int64) *models.Client {
	t.Helper()
	c := &models.Client{
		TenantID:      tenantID,
		Name:          "Client " + uuid.NewString()[:8],
		PointsBalance: balance,
	}
	require.NoError(t, client.DB().Create(c).Error, "seed client")
	return c
}

// SeedProduct inserts a product whose cached stock equals its initial stock.
func SeedProduct(t *testing.T, client *db.Client, tenantID uuid.UUID, price, taxRate, stock string, tracked bool) *models.Product {
	t.Helper()
	initial := decimal.RequireFromString(stock)
	p := &models.Product{
		TenantID:     tenantID,
		SKU:          "SKU-" + uuid.NewString()[:8],
		Name:         "Produit " + uuid.NewString()[:8],
		UnitPrice:    decimal.RequireFromString(price),
		TaxRate:      decimal.RequireFromString(taxRate),
		StockTracked: tracked,
		InitialStock: initial,
		CurrentStock: initial,
	}
	require.NoError(t, client.DB().Create(p).Error, "seed product")
	return p
}
