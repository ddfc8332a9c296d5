package tenants

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/config"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/enums"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
)

// NumberingSettings is the effective configuration seeding a number sequence.
type NumberingSettings struct {
	Prefix  string
	Start   int64
	Padding int
}

// ResolveNumbering merges the tenant's numbering fields with the service
// defaults. Blank or zero tenant values fall back to defaults.
func ResolveNumbering(tenant models.Tenant, defaults config.NumberingConfig, docType enums.DocumentType) NumberingSettings {
	settings := NumberingSettings{
		Prefix:  tenant.PrefixFor(docType),
		Start:   tenant.SequenceStart,
		Padding: tenant.NumberPadding,
	}
	if settings.Prefix == "" {
		switch docType {
		case enums.DocumentTypeQuote:
			settings.Prefix = defaults.QuotePrefix
		case enums.DocumentTypeInvoice:
			settings.Prefix = defaults.InvoicePrefix
		case enums.DocumentTypeCreditNote:
			settings.Prefix = defaults.CreditNotePrefix
		}
	}
	if settings.Start < 1 {
		settings.Start = defaults.Start
	}
	if settings.Start < 1 {
		settings.Start = 1
	}
	if settings.Padding < 1 {
		settings.Padding = defaults.Padding
	}
	return settings
}

// CreateTenantInput holds the data needed to open a tenant account.
type CreateTenantInput struct {
	Name                 string
	QuotePrefix          string
	InvoicePrefix        string
	CreditNotePrefix     string
	SequenceStart        int64
	NumberPadding        int
	LoyaltyPointsPerUnit decimal.Decimal
	LoyaltyExpiryDays    int
}

// Service exposes tenant bootstrap and lookup.
type Service interface {
	Create(ctx context.Context, input CreateTenantInput) (*models.Tenant, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

type service struct {
	repo *Repository
}

// NewService wires the tenant service.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tenant repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, input CreateTenantInput) (*models.Tenant, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant name is required")
	}
	if input.SequenceStart < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sequence start cannot be negative")
	}
	if input.NumberPadding < 0 || input.NumberPadding > 12 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "number padding must be between 0 and 12")
	}
	if input.LoyaltyPointsPerUnit.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loyalty points per unit cannot be negative")
	}
	if input.LoyaltyExpiryDays < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loyalty expiry days cannot be negative")
	}

	tenant := &models.Tenant{
		Name:                 name,
		QuotePrefix:          strings.TrimSpace(input.QuotePrefix),
		InvoicePrefix:        strings.TrimSpace(input.InvoicePrefix),
		CreditNotePrefix:     strings.TrimSpace(input.CreditNotePrefix),
		SequenceStart:        input.SequenceStart,
		NumberPadding:        input.NumberPadding,
		LoyaltyPointsPerUnit: input.LoyaltyPointsPerUnit,
		LoyaltyExpiryDays:    input.LoyaltyExpiryDays,
	}
	if err := s.repo.Create(ctx, tenant); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tenant")
	}
	return tenant, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	return s.repo.FindByID(ctx, id)
}
