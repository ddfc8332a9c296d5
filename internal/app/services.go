// Package app assembles the ledger services on top of one database client so
// the API, the cron worker and ledgerctl share the same wiring.
package app

import (
	"fmt"

	checkoutsvc "github.com/AlexandreGoumain/my-pro-partner-sub005/internal/checkout"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/clients"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/documents"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/loyalty"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/numbering"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/stock"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/tenants"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/outbox"
)

// Params configure NewServices. Metrics may be nil.
type Params struct {
	DB      *db.Client
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.LedgerMetrics
}

// Services is every ledger service plus the repositories the cron jobs use
// directly.
type Services struct {
	Tenants     *tenants.Repository
	TenantSvc   tenants.Service
	Outbox      *outbox.Service
	OutboxRep   *outbox.Repository
	DeadLetters *outbox.DLQRepository
	Notifier    *outbox.Notifier
	Clients     clients.Service
	Numbering   numbering.Service
	Documents   documents.Service
	Stock       stock.Service
	Loyalty     loyalty.Service
	Checkout    checkoutsvc.Service
}

func NewServices(p Params) (*Services, error) {
	if p.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	conn := p.DB.DB()
	tenantRepo := tenants.NewRepository(conn)
	clientRepo := clients.NewRepository(conn)
	outboxRepo := outbox.NewRepository(conn)
	outboxSvc := outbox.NewService(outboxRepo, p.Logger)
	notifier := outbox.NewNotifier(p.DB, outboxSvc, p.Logger)

	tenantSvc, err := tenants.NewService(tenantRepo)
	if err != nil {
		return nil, fmt.Errorf("tenant service: %w", err)
	}
	clientSvc, err := clients.NewService(clients.ServiceParams{
		Repo:       clientRepo,
		Tenants:    tenantRepo,
		DB:         p.DB,
		WalkInName: p.Config.Checkout.WalkInClientName,
		Logger:     p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("client service: %w", err)
	}
	numberingSvc, err := numbering.NewService(numbering.ServiceParams{
		Repo:     numbering.NewRepository(conn),
		Tenants:  tenantRepo,
		DB:       p.DB,
		Defaults: p.Config.Numbering,
		Logger:   p.Logger,
		Metrics:  p.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("numbering service: %w", err)
	}
	documentSvc, err := documents.NewService(documents.ServiceParams{
		Repo:      documents.NewRepository(conn),
		Clients:   clientRepo,
		Numbering: numberingSvc,
		DB:        p.DB,
		Notifier:  notifier,
		Logger:    p.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("document service: %w", err)
	}
	stockSvc, err := stock.NewService(stock.ServiceParams{
		Repo:    stock.NewRepository(conn),
		DB:      p.DB,
		Logger:  p.Logger,
		Metrics: p.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("stock service: %w", err)
	}
	loyaltySvc, err := loyalty.NewService(loyalty.ServiceParams{
		Repo:    loyalty.NewRepository(conn),
		Clients: clientRepo,
		Tenants: tenantRepo,
		DB:      p.DB,
		Logger:  p.Logger,
		Metrics: p.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("loyalty service: %w", err)
	}
	checkout, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Sessions:  checkoutsvc.NewRepository(conn),
		Clients:   clientSvc,
		Numbering: numberingSvc,
		Documents: documentSvc,
		Stock:     stockSvc,
		Loyalty:   loyaltySvc,
		Notifier:  notifier,
		Logger:    p.Logger,
		Metrics:   p.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout service: %w", err)
	}

	return &Services{
		Tenants:     tenantRepo,
		TenantSvc:   tenantSvc,
		Outbox:      outboxSvc,
		OutboxRep:   outboxRepo,
		DeadLetters: outbox.NewDLQRepository(conn),
		Notifier:    notifier,
		Clients:     clientSvc,
		Numbering:   numberingSvc,
		Documents:   documentSvc,
		Stock:       stockSvc,
		Loyalty:     loyaltySvc,
		Checkout:    checkout,
	}, nil
}
