package numbering

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/tenants"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	dbpkg "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/metrics"
)

// Allocation is one number handed out by a sequence.
type Allocation struct {
	TenantID     uuid.UUID          `json:"tenant_id"`
	DocumentType enums.DocumentType `json:"document_type"`
	Value        int64              `json:"value"`
	Number       string             `json:"number"`
}

// Service allocates per-tenant, per-document-type numbers.
type Service interface {
	// Allocate draws the next number in its own transaction.
	Allocate(ctx context.Context, tenantID uuid.UUID, docType enums.DocumentType) (*Allocation, error)
	// AllocateTx draws the next number inside the caller's transaction so the
	// number and the document that consumes it commit together.
	AllocateTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, docType enums.DocumentType) (*Allocation, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the numbering service.
type ServiceParams struct {
	Repo     *Repository
	Tenants  *tenants.Repository
	DB       txRunner
	Defaults config.NumberingConfig
	Logger   *logger.Logger
	Metrics  *metrics.LedgerMetrics
}

type service struct {
	repo     *Repository
	tenants  *tenants.Repository
	db       txRunner
	defaults config.NumberingConfig
	logg     *logger.Logger
	metrics  *metrics.LedgerMetrics
}

// NewService builds the numbering service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("numbering repository required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     params.Repo,
		tenants:  params.Tenants,
		db:       params.DB,
		defaults: params.Defaults,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// FormatNumber renders prefix + zero-padded value. Values wider than the
// padding are printed in full.
func FormatNumber(prefix string, padding int, value int64) string {
	if padding < 1 {
		padding = 1
	}
	return fmt.Sprintf("%s%0*d", prefix, padding, value)
}

func (s *service) Allocate(ctx context.Context, tenantID uuid.UUID, docType enums.DocumentType) (*Allocation, error) {
	var alloc *Allocation
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var txErr error
		alloc, txErr = s.AllocateTx(ctx, tx, tenantID, docType)
		return txErr
	})
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "allocate document number")
	}

	if s.logg != nil {
		logCtx := s.logg.WithTenantID(ctx, tenantID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"document_type": docType,
			"number":        alloc.Number,
		})
		s.logg.Info(logCtx, "number allocated")
	}
	return alloc, nil
}

func (s *service) AllocateTx(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, docType enums.DocumentType) (*Allocation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if !docType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown document type").
			WithDetails(map[string]any{"document_type": docType})
	}

	repo := s.repo.WithTx(tx)
	seq, err := repo.LockSequence(ctx, tenantID, docType)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq, err = s.seed(ctx, tx, tenantID, docType)
	}
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "lock number sequence")
	}

	affected, err := repo.Advance(ctx, tenantID, docType, seq.NextValue)
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "advance number sequence")
	}
	if affected != 1 {
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateNumber, "number sequence advanced concurrently").
			WithDetails(map[string]any{
				"tenant_id":     tenantID,
				"document_type": docType,
				"value":         seq.NextValue,
			})
	}

	s.metrics.IncAllocation(string(docType))
	return &Allocation{
		TenantID:     tenantID,
		DocumentType: docType,
		Value:        seq.NextValue,
		Number:       FormatNumber(seq.Prefix, seq.Padding, seq.NextValue),
	}, nil
}

// seed creates the sequence for an unseen key from tenant configuration, then
// takes the row lock. A concurrent seeder loses the insert silently and both
// end up locking the same row.
func (s *service) seed(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, docType enums.DocumentType) (*models.NumberSequence, error) {
	tenant, err := s.tenants.WithTx(tx).FindByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	settings := tenants.ResolveNumbering(*tenant, s.defaults, docType)

	repo := s.repo.WithTx(tx)
	if err := repo.Seed(ctx, &models.NumberSequence{
		TenantID:     tenantID,
		DocumentType: docType,
		Prefix:       settings.Prefix,
		Padding:      settings.Padding,
		NextValue:    settings.Start,
	}); err != nil {
		return nil, err
	}
	return repo.LockSequence(ctx, tenantID, docType)
}
