package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/tenants"
	dbpkg "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/logger"
)

const walkInIndex = "idx_clients_walk_in"

// DefaultWalkInName labels the anonymous counter client.
const DefaultWalkInName = "Client comptoir"

// Service resolves the client a sale is booked against.
type Service interface {
	Get(ctx context.Context, tenantID, clientID uuid.UUID) (*models.Client, error)
	// Resolve returns the identified client, or the tenant's walk-in client
	// when clientID is nil. The walk-in client is created on first use.
	Resolve(ctx context.Context, tenantID uuid.UUID, clientID *uuid.UUID) (*models.Client, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams wires the client service.
type ServiceParams struct {
	Repo       *Repository
	Tenants    *tenants.Repository
	DB         txRunner
	WalkInName string
	Logger     *logger.Logger
}

type service struct {
	repo       *Repository
	tenants    *tenants.Repository
	db         txRunner
	walkInName string
	logg       *logger.Logger
}

// NewService builds the client service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("client repository required")
	}
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	name := strings.TrimSpace(params.WalkInName)
	if name == "" {
		name = DefaultWalkInName
	}
	return &service{
		repo:       params.Repo,
		tenants:    params.Tenants,
		db:         params.DB,
		walkInName: name,
		logg:       params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, tenantID, clientID uuid.UUID) (*models.Client, error) {
	client, err := s.repo.FindByID(ctx, tenantID, clientID)
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "load client")
	}
	return client, nil
}

func (s *service) Resolve(ctx context.Context, tenantID uuid.UUID, clientID *uuid.UUID) (*models.Client, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if clientID != nil {
		return s.Get(ctx, tenantID, *clientID)
	}

	var walkIn *models.Client
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindWalkIn(ctx, tenantID)
		if err == nil {
			walkIn = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if _, err := s.tenants.WithTx(tx).FindByID(ctx, tenantID); err != nil {
			return err
		}
		created := &models.Client{TenantID: tenantID, Name: s.walkInName, IsWalkIn: true}
		if err := repo.Create(ctx, created); err != nil {
			return err
		}
		walkIn = created
		return nil
	})
	if dbpkg.IsUniqueViolation(err, walkInIndex) {
		// Another checkout created it first.
		walkIn, err = s.repo.FindWalkIn(ctx, tenantID)
	}
	if err != nil {
		return nil, dbpkg.ClassifyWriteError(err, "resolve walk-in client")
	}

	if s.logg != nil {
		logCtx := s.logg.WithTenantID(ctx, tenantID.String())
		logCtx = s.logg.WithField(logCtx, "client_id", walkIn.ID.String())
		s.logg.Debug(logCtx, "walk-in client resolved")
	}
	return walkIn, nil
}
