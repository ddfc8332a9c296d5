package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/app"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/numbering"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/stock"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/tenants"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/migrate"
)

type stockReconciler interface {
	Reconcile(ctx context.Context, tenantID, productID uuid.UUID, repair bool) (*stock.ReconcileReport, error)
	ReconcileTenant(ctx context.Context, tenantID uuid.UUID, repair bool) ([]stock.ReconcileReport, error)
}

type pointsReconciler interface {
	Reconcile(ctx context.Context, tenantID, clientID uuid.UUID, repair bool) (*loyalty.ReconcileReport, error)
	ReconcileTenant(ctx context.Context, tenantID uuid.UUID, repair bool) ([]loyalty.ReconcileReport, error)
}

type allocator interface {
	Allocate(ctx context.Context, tenantID uuid.UUID, docType enums.DocumentType) (*numbering.Allocation, error)
}

type deadLetters interface {
	List(ctx context.Context, tenantID *uuid.UUID, limit int) ([]models.OutboxDLQ, error)
	Reason(ctx context.Context, eventID uuid.UUID) (enums.OutboxDLQErrorReason, error)
	Requeue(ctx context.Context, eventID uuid.UUID) error
}

// backend is the slice of the ledger services the CLI drives.
type backend struct {
	Stock       stockReconciler
	Loyalty     pointsReconciler
	Numbering   allocator
	Tenants     tenants.Service
	DeadLetters deadLetters
	close       func() error
}

func (b *backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

type backendFactory func(ctx context.Context, logOutput io.Writer) (*backend, error)

// connectBackend loads configuration from the environment and opens the
// database the same way the API does.
func connectBackend(ctx context.Context, logOutput io.Writer) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "ledgerctl",
		Level:       cfg.App.LogLevel,
		Console:     cfg.App.ConsoleLogs(),
		Output:      logOutput,
	})
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		_ = dbClient.Close()
		return nil, fmt.Errorf("dev migrations: %w", err)
	}
	svcs, err := app.NewServices(app.Params{DB: dbClient, Config: cfg, Logger: logg})
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}
	return &backend{
		Stock:       svcs.Stock,
		Loyalty:     svcs.Loyalty,
		Numbering:   svcs.Numbering,
		Tenants:     svcs.TenantSvc,
		DeadLetters: svcs.DeadLetters,
		close:       dbClient.Close,
	}, nil
}
