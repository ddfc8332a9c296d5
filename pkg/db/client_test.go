package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:dbclient_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := NewFromGorm(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := NewFromGorm(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	if client.Driver() != "sqlite" {
		t.Fatalf("unexpected driver %q", client.Driver())
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&testModel{Name: "dup"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := db.Create(&testModel{Name: "dup"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if IsUniqueViolation(err, "other_constraint") {
		t.Fatalf("constraint filter should not match")
	}
}

func TestClassifyWriteError(t *testing.T) {
	lockErr := &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
	if got := pkgerrors.As(ClassifyWriteError(lockErr, "write")); got == nil || got.Code() != pkgerrors.CodeRetryableConflict {
		t.Fatalf("expected retryable conflict, got %v", got)
	}

	plain := errors.New("connection reset")
	if got := pkgerrors.As(ClassifyWriteError(plain, "write")); got == nil || got.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", got)
	}

	domain := pkgerrors.New(pkgerrors.CodeInsufficientStock, "short")
	if got := ClassifyWriteError(domain, "write"); got != domain {
		t.Fatalf("domain errors must pass through, got %v", got)
	}

	if ClassifyWriteError(nil, "write") != nil {
		t.Fatalf("nil stays nil")
	}
}

func TestQueryLoggerWritesFailuresAndSlowStatements(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{Output: &buf})
	db := newTestDB(t)
	db.Logger = newQueryLogger(logg, time.Hour)

	if err := db.Create(&testModel{Name: "fast"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	var missing testModel
	_ = db.First(&missing, "name = ?", "absent").Error
	if buf.Len() != 0 {
		t.Fatalf("fast statements and not-found lookups must stay silent, got %s", buf.String())
	}

	_ = db.Create(&testModel{Name: "fast"}).Error
	if !strings.Contains(buf.String(), `"message":"query failed"`) {
		t.Fatalf("expected failed insert to be logged, got %s", buf.String())
	}

	buf.Reset()
	db.Logger = newQueryLogger(logg, time.Nanosecond)
	if err := db.Create(&testModel{Name: "slow"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.Contains(buf.String(), `"message":"slow query"`) {
		t.Fatalf("expected slow query line, got %s", buf.String())
	}
}

func TestDialectorFor(t *testing.T) {
	if _, _, err := dialectorFor(config.DBConfig{}); err == nil {
		t.Fatal("expected error without dsn")
	}
	if _, _, err := dialectorFor(config.DBConfig{DSN: "x", Driver: "mysql"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
	_, driver, err := dialectorFor(config.DBConfig{DSN: "postgres://localhost/mpp"})
	if err != nil || driver != config.DriverPostgres {
		t.Fatalf("empty driver should default to postgres, got %q %v", driver, err)
	}
	_, driver, _ = dialectorFor(config.DBConfig{DSN: "file::memory:", Driver: " SQLite "})
	if driver != config.DriverSQLite {
		t.Fatalf("expected sqlite, got %q", driver)
	}
	if newQueryLogger(nil, 0) != gormlogger.Discard {
		t.Fatal("nil service logger should discard gorm output")
	}
}
