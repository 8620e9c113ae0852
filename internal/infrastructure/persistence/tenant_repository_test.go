package persistence

import (
	"context"
	"testing"

	"github.com/crm/backend/internal/domain/imports"
	"github.com/crm/backend/internal/domain/shared"
	"github.com/crm/backend/internal/domain/tenant"
	"github.com/crm/backend/internal/infrastructure/persistence/tenantscope"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupLandlordDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tenant.Tenant{}, &imports.Batch{}))
	return db
}

func TestTenantRepository_CreateAndFind(t *testing.T) {
	db := setupLandlordDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	ten, err := tenant.New("Acme Corp", "acme-corp")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, ten))

	bySlug, err := repo.FindBySlug(ctx, "ACME-CORP")
	require.NoError(t, err)
	assert.Equal(t, ten.UID, bySlug.UID)
	assert.Equal(t, "tenant_acme_corp", bySlug.Database)

	byUID, err := repo.FindByUID(ctx, ten.UID)
	require.NoError(t, err)
	assert.Equal(t, ten.ID, byUID.ID)

	exists, err := repo.SlugExists(ctx, "acme-corp")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.SlugExists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestTenantRepository_SlugCollision(t *testing.T) {
	db := setupLandlordDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	first, err := tenant.New("Acme", "acme")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, first))

	second, err := tenant.New("Acme Again", "acme")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.Create(ctx, second), shared.ErrAlreadyExists)
}

func TestTenantRepository_NotFound(t *testing.T) {
	db := setupLandlordDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	_, err := repo.FindBySlug(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = repo.FindByUID(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestTenantRepository_FindAllOrdered(t *testing.T) {
	db := setupLandlordDB(t)
	repo := NewGormTenantRepository(db)
	ctx := context.Background()

	for _, slug := range []string{"alpha", "beta", "gamma"} {
		ten, err := tenant.New(slug, slug)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, ten))
	}

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "alpha", all[0].Slug)
}

func batchTenancyCtx(tenantID uuid.UUID) context.Context {
	return tenant.WithTenancy(context.Background(), tenant.Tenancy{
		ID:       tenantID,
		UID:      uuid.New(),
		Slug:     "batch-tenant",
		Database: "tenant_batch_tenant",
	})
}

func TestBatchRepository_Lifecycle(t *testing.T) {
	db := setupLandlordDB(t)
	repo := NewGormBatchRepository(db)
	tenantID := uuid.New()
	ctx := batchTenancyCtx(tenantID)

	b := imports.NewBatch(tenantID, uuid.New(), 2)
	require.NoError(t, repo.Create(ctx, b))

	loaded, err := repo.FindByUID(ctx, b.UID)
	require.NoError(t, err)
	assert.Equal(t, imports.BatchStatusPending, loaded.Status)

	loaded.Start()
	require.NoError(t, repo.Update(ctx, loaded))

	loaded.ApplyProgress(1, 1, 0)
	require.NoError(t, repo.Update(ctx, loaded))

	final, err := repo.FindByUID(ctx, b.UID)
	require.NoError(t, err)
	assert.Equal(t, imports.BatchStatusCompleted, final.Status)
	assert.Equal(t, 1, final.SuccessCount)
	assert.Equal(t, 1, final.FailedCount)
}

func TestBatchRepository_ConcurrencyConflict(t *testing.T) {
	db := setupLandlordDB(t)
	repo := NewGormBatchRepository(db)
	tenantID := uuid.New()
	ctx := batchTenancyCtx(tenantID)

	b := imports.NewBatch(tenantID, uuid.New(), 1)
	require.NoError(t, repo.Create(ctx, b))

	stale := *b
	b.Start()
	require.NoError(t, repo.Update(ctx, b))

	stale.Start()
	assert.ErrorIs(t, repo.Update(ctx, &stale), shared.ErrConcurrencyConflict)
}

func TestBatchRepository_ScopedToTenant(t *testing.T) {
	db := setupLandlordDB(t)
	repo := NewGormBatchRepository(db)
	owner := uuid.New()
	ownerCtx := batchTenancyCtx(owner)

	b := imports.NewBatch(owner, uuid.New(), 1)
	require.NoError(t, repo.Create(ownerCtx, b))

	// another tenant's context never sees the row
	_, err := repo.FindByUID(batchTenancyCtx(uuid.New()), b.UID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	foreign := *b
	foreign.Start()
	assert.ErrorIs(t, repo.Update(batchTenancyCtx(uuid.New()), &foreign), shared.ErrConcurrencyConflict)

	found, err := repo.FindByUID(ownerCtx, b.UID)
	require.NoError(t, err)
	assert.Equal(t, b.UID, found.UID)
}

func TestBatchRepository_RequiresTenancy(t *testing.T) {
	db := setupLandlordDB(t)
	repo := NewGormBatchRepository(db)

	_, err := repo.FindByUID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, tenantscope.ErrTenantRequired)
}
