package clients

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/tenants"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/internal/testutil"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db"
	"github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/db/models"
	pkgerrors "github.com/AlexandreGoumain/my-pro-partner-sub005/pkg/errors"
)

func newTestService(t *testing.T, client *db.Client) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(client.DB()),
		Tenants: tenants.NewRepository(client.DB()),
		DB:      client,
	})
	require.NoError(t, err)
	return svc
}

func TestResolveIdentifiedClient(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	tenant := testutil.SeedTenant(t, client)
	seeded := testutil.SeedClient(t, client, tenant.ID, 40)
	svc := newTestService(t, client)

	got, err := svc.Resolve(context.Background(), tenant.ID, &seeded.ID)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, got.ID)
	require.Equal(t, int64(40), got.PointsBalance)
	require.False(t, got.IsWalkIn)
}

func TestResolveCreatesWalkInOnce(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	tenant := testutil.SeedTenant(t, client)
	svc := newTestService(t, client)
	ctx := context.Background()

	first, err := svc.Resolve(ctx, tenant.ID, nil)
	require.NoError(t, err)
	require.True(t, first.IsWalkIn)
	require.Equal(t, DefaultWalkInName, first.Name)

	second, err := svc.Resolve(ctx, tenant.ID, nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, client.DB().Model(&models.Client{}).
		Where("tenant_id = ? AND is_walk_in = ?", tenant.ID, true).
		Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestResolveWalkInIsPerTenant(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	a := testutil.SeedTenant(t, client)
	b := testutil.SeedTenant(t, client)
	svc := newTestService(t, client)
	ctx := context.Background()

	walkInA, err := svc.Resolve(ctx, a.ID, nil)
	require.NoError(t, err)
	walkInB, err := svc.Resolve(ctx, b.ID, nil)
	require.NoError(t, err)
	require.NotEqual(t, walkInA.ID, walkInB.ID)
}

func TestResolveErrors(t *testing.T) {
	client := testutil.NewSQLiteClient(t)
	tenant := testutil.SeedTenant(t, client)
	other := testutil.SeedTenant(t, client)
	foreign := testutil.SeedClient(t, client, other.ID, 0)
	svc := newTestService(t, client)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, tenant.ID, &foreign.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.Resolve(ctx, uuid.New(), nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "got %v", err)

	_, err = svc.Resolve(ctx, uuid.Nil, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}
